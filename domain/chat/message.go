// Package chat contains the core concepts of the relay: the message envelope
// carried in every frame, sessions and rooms.
// No network or storage logic should be added here.
package chat

import "time"

// ProtocolVersion is stamped on every message built by this package.
const ProtocolVersion = 1

// DefaultRoom is joined automatically after a successful login.
const DefaultRoom = "General"

type Kind string

const (
	LoginRequest    Kind = "LOGIN_REQUEST"
	LoginResponse   Kind = "LOGIN_RESPONSE"
	JoinRoom        Kind = "JOIN_ROOM_REQUEST"
	Text            Kind = "TEXT_MESSAGE"
	Private         Kind = "PRIVATE_MESSAGE"
	UserListRequest Kind = "USER_LIST_REQUEST"
	Error           Kind = "ERROR_RESPONSE"
)

var kinds = map[Kind]struct{}{
	LoginRequest:    {},
	LoginResponse:   {},
	JoinRoom:        {},
	Text:            {},
	Private:         {},
	UserListRequest: {},
	Error:           {},
}

// ParseKind returns false for anything outside the recognized set.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kinds[k]
	return k, ok
}

// Message is the envelope carried inside a frame.
// It is a comparable value: copies never share state, and the With* methods
// return modified copies.
type Message struct {
	Kind      Kind
	Version   int
	Timestamp int64 // milliseconds since epoch
	Sender    Optional
	Recipient Optional
	Room      Optional
	Content   Optional
}

// NewMessage stamps the current protocol version and time.
func NewMessage(kind Kind, sender, recipient, room, content Optional) Message {
	return Message{
		Kind:      kind,
		Version:   ProtocolVersion,
		Timestamp: time.Now().UnixMilli(),
		Sender:    sender,
		Recipient: recipient,
		Room:      room,
		Content:   content,
	}
}

func NewLoginRequest(username, credential string) Message {
	return NewMessage(LoginRequest, Some(username), None, None, Some(credential))
}

func NewLoginResponse(username, token string) Message {
	return NewMessage(LoginResponse, Some(username), None, None, Some(token))
}

func NewJoinRoom(room string) Message {
	return NewMessage(JoinRoom, None, None, Some(room), None)
}

func NewText(room, content string) Message {
	return NewMessage(Text, None, None, Some(room), Some(content))
}

func NewPrivate(recipient, content string) Message {
	return NewMessage(Private, None, Some(recipient), None, Some(content))
}

// NewUserListRequest lists the members of room, or every online user when
// room is None.
func NewUserListRequest(room Optional) Message {
	return NewMessage(UserListRequest, None, None, room, None)
}

func NewError(reason Reason) Message {
	return NewMessage(Error, None, None, None, Some(string(reason)))
}

func (m Message) WithSender(sender string) Message {
	m.Sender = Some(sender)
	return m
}

func (m Message) WithContent(content string) Message {
	m.Content = Some(content)
	return m
}

func (m Message) CreatedAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}
