package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mywallet/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB is the SQLite backend. It wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if strings.HasPrefix(path, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			description TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_user_created_idx ON transactions (user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts a user with a fresh ID. A taken email yields ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	u := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    Now(),
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", mapError(err))
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?",
		id,
	)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?",
		email,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", mapError(err))
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)",
		token, userID, Now(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", mapError(err))
	}
	return nil
}

// GetSession looks up a session by token.
func (db *DB) GetSession(ctx context.Context, token string) (models.Session, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT token, user_id, created_at FROM sessions WHERE token = ?",
		token,
	)
	var s models.Session
	if err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt); err != nil {
		return models.Session{}, fmt.Errorf("scan session: %w", mapError(err))
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// CreateTransaction inserts tx with a fresh ID. A zero CreatedAt is set to now.
func (db *DB) CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	tx.ID = uuid.NewString()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = Now()
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, kind, description, value, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		tx.ID, tx.UserID, string(tx.Kind), tx.Description, tx.Value.String(), tx.CreatedAt,
	)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", mapError(err))
	}
	return tx, nil
}

// ListTransactions retrieves all transactions of a user, ordered by date
// descending. Rows sharing a timestamp come back in reverse insertion order.
func (db *DB) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, user_id, kind, description, value, created_at FROM transactions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t     models.Transaction
			kind  string
			value string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Description, &value, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = models.Kind(kind)
		t.CreatedAt = t.CreatedAt.UTC()
		if t.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("transaction %s: bad value %q: %w", t.ID, value, err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}
