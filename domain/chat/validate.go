package chat

import (
	"fmt"
	"secure-chat/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// The views below state which fields each kind requires. A nil pointer is an
// absent field; "required" on a pointer only checks presence, so an empty
// credential or content is still accepted.

type loginRequestFields struct {
	Sender  *string `validate:"required"`
	Content *string `validate:"required"`
}

type contentFields struct {
	Content *string `validate:"required"`
}

type roomFields struct {
	Room *string `validate:"required"`
}

type textFields struct {
	Room    *string `validate:"required"`
	Content *string `validate:"required"`
}

type privateFields struct {
	Recipient *string `validate:"required"`
	Content   *string `validate:"required"`
}

func requiredView(m Message) any {
	switch m.Kind {
	case LoginRequest:
		return loginRequestFields{Sender: m.Sender.Ptr(), Content: m.Content.Ptr()}
	case LoginResponse, Error:
		return contentFields{Content: m.Content.Ptr()}
	case JoinRoom:
		return roomFields{Room: m.Room.Ptr()}
	case Text:
		return textFields{Room: m.Room.Ptr(), Content: m.Content.Ptr()}
	case Private:
		return privateFields{Recipient: m.Recipient.Ptr(), Content: m.Content.Ptr()}
	default:
		return nil
	}
}

// Validate checks that m has a recognized kind and every field that kind
// requires. It returns errors.ErrUnknownKind or errors.ErrMissingField.
func Validate(m Message) error {
	if _, ok := ParseKind(string(m.Kind)); !ok {
		return fmt.Errorf("%w: %q", errors.ErrUnknownKind, m.Kind)
	}
	view := requiredView(m)
	if view == nil {
		return nil
	}
	err := validate.Struct(view)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", errors.ErrMissingField, err)
	}
	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: %s requires %s", errors.ErrMissingField, m.Kind, strings.Join(fields, ", "))
}
