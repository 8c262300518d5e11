package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction.
type Kind string

const (
	// KindInput is money received. It adds to the balance.
	KindInput Kind = "input"
	// KindOutput is money spent. It subtracts from the balance.
	KindOutput Kind = "output"
)

// ParseKind converts a raw value into a Kind. Only the exact lower-case
// names input and output are accepted.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindInput, KindOutput:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", raw)
	}
}

// User represents a user account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session links an opaque bearer token to a user.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transaction is a single money movement owned by a user. Value is always
// positive; the sign comes from Kind.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Kind        Kind            `json:"kind"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	CreatedAt   time.Time       `json:"date"`
}
