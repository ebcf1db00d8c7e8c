package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"secure-chat/domain/chat"
	"secure-chat/errors"
	"unicode/utf8"
)

// envelope is the body layout: one flat JSON object with exactly these keys.
// Absent text fields are written as null, present ones as (possibly empty)
// strings.
type envelope struct {
	Type      string  `json:"type"`
	Version   int     `json:"version"`
	Timestamp int64   `json:"timestamp"`
	Sender    *string `json:"sender"`
	Recipient *string `json:"recipient"`
	Room      *string `json:"room"`
	Content   *string `json:"content"`
}

func encodeBody(m chat.Message) ([]byte, error) {
	for name, field := range map[string]chat.Optional{
		"sender": m.Sender, "recipient": m.Recipient, "room": m.Room, "content": m.Content,
	} {
		if v, ok := field.Get(); ok && !utf8.ValidString(v) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8", errors.ErrMalformedBody, name)
		}
	}
	return json.Marshal(envelope{
		Type:      string(m.Kind),
		Version:   m.Version,
		Timestamp: m.Timestamp,
		Sender:    m.Sender.Ptr(),
		Recipient: m.Recipient.Ptr(),
		Room:      m.Room.Ptr(),
		Content:   m.Content.Ptr(),
	})
}

// envelopeKeys is the exact, case-sensitive key set of a body.
var envelopeKeys = map[string]struct{}{
	"type": {}, "version": {}, "timestamp": {},
	"sender": {}, "recipient": {}, "room": {}, "content": {},
}

func decodeBody(body []byte) (chat.Message, error) {
	if !utf8.Valid(body) {
		return chat.Message{}, fmt.Errorf("%w: body is not valid UTF-8", errors.ErrMalformedBody)
	}
	fields, err := splitObject(body)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrMalformedBody, err)
	}

	var env envelope
	for key, target := range map[string]any{
		"type": &env.Type, "version": &env.Version, "timestamp": &env.Timestamp,
		"sender": &env.Sender, "recipient": &env.Recipient, "room": &env.Room, "content": &env.Content,
	} {
		raw := fields[key]
		if _, nullable := target.(**string); !nullable && bytes.Equal(raw, []byte("null")) {
			return chat.Message{}, fmt.Errorf("%w: %s is null", errors.ErrMalformedBody, key)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return chat.Message{}, fmt.Errorf("%w: %s: %v", errors.ErrMalformedBody, key, err)
		}
	}

	kind, ok := chat.ParseKind(env.Type)
	if !ok {
		return chat.Message{}, fmt.Errorf("%w: %q", errors.ErrUnknownKind, env.Type)
	}
	m := chat.Message{
		Kind:      kind,
		Version:   env.Version,
		Timestamp: env.Timestamp,
		Sender:    chat.FromPtr(env.Sender),
		Recipient: chat.FromPtr(env.Recipient),
		Room:      chat.FromPtr(env.Room),
		Content:   chat.FromPtr(env.Content),
	}
	if err := chat.Validate(m); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

// splitObject walks one top-level JSON object and returns its raw values by
// key. Every key of envelopeKeys must appear exactly once and nothing else is
// allowed, including trailing data after the object.
func splitObject(body []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("body is not an object")
	}

	fields := make(map[string]json.RawMessage, len(envelopeKeys))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, known := envelopeKeys[key]; !known {
			return nil, fmt.Errorf("unknown key %q", key)
		}
		if _, seen := fields[key]; seen {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after envelope")
	}

	for key := range envelopeKeys {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("missing key %q", key)
		}
	}
	return fields, nil
}
