//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	goerrors "errors"
	"fmt"
	"secure-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, hashedPassword string) error
	GetUser(username string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is an account able to log in with a password.
type User struct {
	Username     string    `cbor:"username"`
	PasswordHash string    `cbor:"password_hash"`
	CreatedAt    time.Time `cbor:"created_at"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	if encMode, err = encOptions.EncMode(); err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
}

// CreateUser persists a new account. The existence check and the write share
// one transaction, so two first logins racing for a name create one account.
func (u UserRepository) CreateUser(username, hashedPassword string) error {
	data, err := encMode.Marshal(User{
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !goerrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	// A conflict means a concurrent transaction wrote this very key
	if goerrors.Is(err, badger.ErrConflict) {
		return errors.ErrUserAlreadyExists
	}
	return err
}

func (u UserRepository) GetUser(username string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUserNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return decMode.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers returns every account sorted by username.
func ListUsers(db *badger.DB) ([]User, error) {
	var users []User
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user User
			if err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &user)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

func userKey(username string) []byte {
	return []byte(userPrefix + username)
}

// OpenBadger opens the user store at path, or an in-memory one when path is
// empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}
