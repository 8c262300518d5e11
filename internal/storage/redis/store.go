// Package redis stores sessions in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mywallet/internal/models"
	"mywallet/internal/storage"

	"github.com/redis/go-redis/v9"
)

const prefixSession = "mywallet:session:"

// SessionStore implements storage.SessionStore. Sessions never expire.
type SessionStore struct {
	client redis.UniversalClient
}

var (
	_ storage.SessionStore = (*SessionStore)(nil)
	_ storage.Pinger       = (*SessionStore)(nil)
)

// Config holds Redis connection settings.
type Config struct {
	// Client is an existing Redis client. If set, the other fields are ignored.
	Client redis.UniversalClient

	Addr     string
	Password string
	DB       int
}

// New creates a session store.
func New(cfg Config) *SessionStore {
	client := cfg.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	return &SessionStore{client: client}
}

type sessionRecord struct {
	UserID    string `json:"user_id"`
	CreatedAt int64  `json:"created_at"`
}

// CreateSession stores token. An existing token yields storage.ErrDuplicate.
func (s *SessionStore) CreateSession(ctx context.Context, token, userID string) error {
	data, err := json.Marshal(sessionRecord{UserID: userID, CreatedAt: storage.Now().UnixMicro()})
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, prefixSession+token, data, 0).Result()
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	if !ok {
		return fmt.Errorf("set session: %w", storage.ErrDuplicate)
	}
	return nil
}

// GetSession looks up token.
func (s *SessionStore) GetSession(ctx context.Context, token string) (models.Session, error) {
	data, err := s.client.Get(ctx, prefixSession+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return models.Session{
		Token:     token,
		UserID:    rec.UserID,
		CreatedAt: time.UnixMicro(rec.CreatedAt).UTC(),
	}, nil
}

// Ping checks the server is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
