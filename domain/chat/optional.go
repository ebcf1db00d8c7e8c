package chat

// Optional is a text field that may be absent. An absent field and a present
// empty string are different values and survive the wire round-trip as such.
type Optional struct {
	value   string
	present bool
}

// None is the absent value.
var None = Optional{}

func Some(value string) Optional {
	return Optional{value: value, present: true}
}

// FromPtr maps nil to None.
func FromPtr(value *string) Optional {
	if value == nil {
		return None
	}
	return Some(*value)
}

func (o Optional) Get() (string, bool) {
	return o.value, o.present
}

func (o Optional) IsPresent() bool {
	return o.present
}

// OrEmpty returns the value, or "" when absent.
func (o Optional) OrEmpty() string {
	return o.value
}

// Ptr returns nil when absent and a pointer to a copy otherwise.
func (o Optional) Ptr() *string {
	if !o.present {
		return nil
	}
	v := o.value
	return &v
}

func (o Optional) String() string {
	if !o.present {
		return "<none>"
	}
	return o.value
}
