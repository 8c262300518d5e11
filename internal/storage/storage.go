package storage

import (
	"context"
	"errors"
	"time"

	"mywallet/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists user accounts. Email is unique at the store level.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UserCount(ctx context.Context) (int, error)
}

// SessionStore persists bearer tokens. Tokens are unique at the store level.
type SessionStore interface {
	CreateSession(ctx context.Context, token, userID string) error
	GetSession(ctx context.Context, token string) (models.Session, error)
}

// TransactionStore persists transactions and lists them newest first.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is a backend holding every record kind.
type Store interface {
	UserStore
	SessionStore
	TransactionStore
	Pinger
	Close() error
}

// Now returns the current time truncated to microseconds in UTC, the finest
// precision every backend round-trips.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
