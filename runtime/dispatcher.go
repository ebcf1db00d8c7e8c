// Package runtime holds the live state of the relay (who is online, who sits
// in which room) and the dispatcher that applies incoming messages to it.
// It never touches the network directly: replies go through chat.Session.
package runtime

import (
	"errors"
	"log/slog"
	"secure-chat/auth"
	"secure-chat/contract"
	"secure-chat/domain/chat"
	apperrors "secure-chat/errors"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// JoinedAck is the content of the acknowledgement sent after a room join.
const JoinedAck = "joined"

// Dispatcher is the per-message state machine. A session is either
// unauthenticated, where only LOGIN_REQUEST is accepted, or authenticated.
// Dispatch is called from the connection's read loop, so the messages of one
// session are handled in order.
type Dispatcher struct {
	log         *slog.Logger
	registry    contract.ISessionRegistry
	directory   contract.IRoomDirectory
	auth        contract.IAuthenticator
	censor      contract.ICensor
	defaultRoom string
}

// NewDispatcher wires the dispatcher. censor may be nil to relay content
// untouched.
func NewDispatcher(log *slog.Logger,
	registry contract.ISessionRegistry,
	directory contract.IRoomDirectory,
	authenticator contract.IAuthenticator,
	censor contract.ICensor,
	defaultRoom string) *Dispatcher {
	if defaultRoom == "" {
		defaultRoom = chat.DefaultRoom
	}
	return &Dispatcher{
		log:         log,
		registry:    registry,
		directory:   directory,
		auth:        authenticator,
		censor:      censor,
		defaultRoom: defaultRoom,
	}
}

func (d *Dispatcher) Dispatch(session *chat.Session, msg chat.Message) {
	if msg.Kind == chat.LoginRequest {
		d.login(session, msg)
		return
	}

	username, ok := session.Username()
	if !ok {
		d.reject(session, chat.ReasonNotAuthenticated)
		return
	}

	switch msg.Kind {
	case chat.Text:
		d.text(session, username, msg)
	case chat.Private:
		d.private(session, username, msg)
	case chat.JoinRoom:
		d.join(session, username, msg)
	case chat.UserListRequest:
		d.userList(session, msg)
	default:
		// LOGIN_RESPONSE and ERROR_RESPONSE only flow server to client
		d.log.Debug("Unexpected message kind from client",
			"session_id", session.ID(), "username", username, "kind", msg.Kind)
		d.reject(session, chat.ReasonUnknownType)
	}
}

// Disconnect releases everything the session holds. It runs at most once per
// session no matter how many times it is called. Room memberships go first so
// that no broadcast can target a name that is already free for someone else.
func (d *Dispatcher) Disconnect(session *chat.Session) {
	if !session.Release() {
		return
	}
	username, ok := session.Username()
	if !ok {
		d.log.Debug("Anonymous session closed", "session_id", session.ID())
		return
	}
	d.directory.RemoveFromAll(session)
	d.registry.Unregister(username)
	d.log.Info("User disconnected", "session_id", session.ID(), "username", username)
}

func (d *Dispatcher) login(session *chat.Session, msg chat.Message) {
	if session.Authenticated() {
		d.reject(session, chat.ReasonAlreadyAuthenticated)
		return
	}

	username, err := auth.NormalizeUsername(msg.Sender.OrEmpty())
	if err != nil {
		d.reject(session, chat.ReasonEmptyUsername)
		return
	}

	// Cheap check first so a taken name never costs a password hash
	if _, taken := d.registry.Lookup(username); taken {
		d.reject(session, chat.ReasonUsernameTaken)
		return
	}

	token, err := d.auth.Authenticate(username, msg.Content.OrEmpty())
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			d.log.Info("Login refused", "session_id", session.ID(), "username", username)
			d.reject(session, chat.ReasonInvalidCredentials)
			return
		}
		d.log.Error("Authentication failed", "session_id", session.ID(), "username", username, "error", err)
		d.reject(session, chat.ReasonInternalError)
		return
	}

	if err := d.registry.Register(username, session); err != nil {
		d.reject(session, chat.ReasonUsernameTaken)
		return
	}
	session.Bind(username)
	d.directory.AddMember(d.defaultRoom, session)

	d.log.Info("User logged in", "session_id", session.ID(), "username", username, "room", d.defaultRoom)
	session.Send(chat.NewLoginResponse(username, token))
}

func (d *Dispatcher) text(session *chat.Session, username string, msg chat.Message) {
	room, ok := roomOf(msg)
	if !ok {
		d.reject(session, chat.ReasonMalformedMessage)
		return
	}
	d.directory.AddMember(room, session)

	out := msg.WithSender(username).WithContent(d.moderate(msg.Content.OrEmpty(), username))
	out.Recipient = chat.None
	out.Room = chat.Some(room)

	members := d.directory.MembersOf(room)
	for _, member := range members {
		if !member.Send(out) {
			d.log.Debug("Message not delivered", "room", room, "session_id", member.ID())
		}
	}
	d.log.Debug("Message broadcast", "room", room, "username", username, "recipients", len(members))
}

func (d *Dispatcher) private(session *chat.Session, username string, msg chat.Message) {
	recipient := msg.Recipient.OrEmpty()
	target, ok := d.registry.Lookup(recipient)
	if !ok {
		d.reject(session, chat.ReasonUserOffline)
		return
	}

	out := msg.WithSender(username).WithContent(d.moderate(msg.Content.OrEmpty(), username))
	out.Room = chat.None
	if !target.Send(out) {
		d.log.Debug("Private message not delivered", "username", username, "recipient", recipient)
	}
}

func (d *Dispatcher) join(session *chat.Session, username string, msg chat.Message) {
	room, ok := roomOf(msg)
	if !ok {
		d.reject(session, chat.ReasonMalformedMessage)
		return
	}
	d.directory.AddMember(room, session)
	d.log.Info("User joined room", "username", username, "room", room)

	ack := chat.NewJoinRoom(room).WithContent(JoinedAck)
	session.Send(ack)
}

// userList answers with one username per line: the members of the requested
// room, or everyone online when no room is given. A blank room is malformed.
func (d *Dispatcher) userList(session *chat.Session, msg chat.Message) {
	var names []string
	if _, present := msg.Room.Get(); present {
		room, ok := roomOf(msg)
		if !ok {
			d.reject(session, chat.ReasonMalformedMessage)
			return
		}
		names = usernamesOf(d.directory.MembersOf(room))
	} else {
		names = d.registry.Usernames()
	}

	reply := chat.NewUserListRequest(msg.Room).WithContent(strings.Join(names, "\n"))
	session.Send(reply)
}

func (d *Dispatcher) moderate(content, username string) string {
	if d.censor == nil {
		return content
	}
	censored, words := d.censor.Censor(content)
	if len(words) > 0 {
		d.log.Info("Content censored", "username", username, "words", len(words))
	}
	return censored
}

func (d *Dispatcher) reject(session *chat.Session, reason chat.Reason) {
	session.Send(chat.NewError(reason))
}

// roomOf returns the room of msg, false when it is absent or blank.
func roomOf(msg chat.Message) (string, bool) {
	room, ok := msg.Room.Get()
	if !ok || strings.TrimSpace(room) == "" {
		return "", false
	}
	return room, true
}

func usernamesOf(sessions []*chat.Session) []string {
	names := lo.FilterMap(sessions, func(s *chat.Session, _ int) (string, bool) {
		return s.Username()
	})
	sort.Strings(names)
	return names
}
