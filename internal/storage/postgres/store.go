// Package postgres implements the wallet storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"mywallet/internal/models"
	"mywallet/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// NewStore wraps pool and makes sure the schema exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL UNIQUE,
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			description TEXT NOT NULL,
			value NUMERIC NOT NULL CHECK (value > 0),
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS transactions_user_created_idx ON transactions (user_id, created_at DESC);
	`)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    storage.Now(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", mapError(err))
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.User{}, storage.ErrNotFound
	}
	return s.getUser(ctx, `
		SELECT id::text, name, email, password_hash, created_at
		FROM users WHERE id = $1
	`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, `
		SELECT id::text, name, email, password_hash, created_at
		FROM users WHERE email = $1
	`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", mapError(err))
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (s *Store) CreateSession(ctx context.Context, token, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, created_at)
		VALUES ($1, $2, $3)
	`, token, userID, storage.Now())
	if err != nil {
		return fmt.Errorf("insert session: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT token, user_id::text, created_at
		FROM sessions WHERE token = $1
	`, token)
	if err := row.Scan(&session.Token, &session.UserID, &session.CreatedAt); err != nil {
		return models.Session{}, fmt.Errorf("scan session: %w", mapError(err))
	}
	session.CreatedAt = session.CreatedAt.UTC()
	return session, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	tx.ID = uuid.NewString()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = storage.Now()
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, user_id, kind, description, value, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
	`, tx.ID, tx.UserID, string(tx.Kind), tx.Description, tx.Value.String(), tx.CreatedAt)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", mapError(err))
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id::text, kind, description, value::text, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			tx    models.Transaction
			kind  string
			value string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &kind, &tx.Description, &value, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Kind = models.Kind(kind)
		tx.CreatedAt = tx.CreatedAt.UTC()
		if tx.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("transaction %s: bad value %q: %w", tx.ID, value, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
