//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"secure-chat/domain/chat"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used in supervision logs so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ISessionRegistry maps usernames to their live session.
type ISessionRegistry interface {
	Register(username string, session *chat.Session) error
	Lookup(username string) (*chat.Session, bool)
	Unregister(username string)
	Usernames() []string
	Count() int
}

// IRoomDirectory owns room membership.
type IRoomDirectory interface {
	EnsureRoom(name string) *chat.Room
	AddMember(room string, session *chat.Session)
	RemoveMember(room string, session *chat.Session)
	MembersOf(room string) []*chat.Session
	RemoveFromAll(session *chat.Session)
	Rooms() []string
}

// IAuthenticator decides whether a login may proceed and issues its token.
type IAuthenticator interface {
	Authenticate(username, credential string) (string, error)
}

// ICensor rewrites message content, returning the words it masked.
type ICensor interface {
	Censor(content string) (string, []string)
}

// IDispatcher is what a connection calls for every decoded message.
type IDispatcher interface {
	Dispatch(session *chat.Session, msg chat.Message)
	Disconnect(session *chat.Session)
}
