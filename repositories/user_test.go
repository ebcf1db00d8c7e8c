package repositories

import (
	"fmt"
	"secure-chat/errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	// Given a stored account
	req.NoError(repo.CreateUser("alice", "$argon2id$hash"))

	// When it is read back
	user, err := repo.GetUser("alice")

	// Then every field survives the round trip
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.Equal("$argon2id$hash", user.PasswordHash)
	req.False(user.CreatedAt.IsZero())
}

func TestUserRepository_Duplicate(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	req.NoError(repo.CreateUser("alice", "first"))
	err := repo.CreateUser("alice", "second")

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	user, err := repo.GetUser("alice")
	req.NoError(err)
	req.Equal("first", user.PasswordHash)
}

func TestUserRepository_NamesAreCaseSensitive(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	req.NoError(repo.CreateUser("alice", "lower"))
	req.NoError(repo.CreateUser("Alice", "upper"))

	user, err := repo.GetUser("Alice")
	req.NoError(err)
	req.Equal("upper", user.PasswordHash)
}

func TestUserRepository_NotFound(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetUser("nobody")

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))
	const attempts = 20

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- repo.CreateUser("bob", fmt.Sprintf("hash-%d", i))
		}(i)
	}
	wg.Wait()
	close(results)

	// Exactly one writer wins, every other one sees the account as existing
	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	}
	req.Equal(1, created)
}

func TestListUsers(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewUserRepository(db)

	// Given an empty store
	users, err := ListUsers(db)
	req.NoError(err)
	req.Empty(users)

	// When accounts are created out of order
	for _, name := range []string{"carol", "alice", "bob"} {
		req.NoError(repo.CreateUser(name, "hash-"+name))
	}

	// Then they are listed by username
	users, err = ListUsers(db)
	req.NoError(err)
	req.Len(users, 3)
	req.Equal("alice", users[0].Username)
	req.Equal("hash-alice", users[0].PasswordHash)
	req.Equal("bob", users[1].Username)
	req.Equal("carol", users[2].Username)
}
