package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mywallet/internal/config"
	"mywallet/internal/handlers"
	"mywallet/internal/storage"
	"mywallet/internal/storage/postgres"
	"mywallet/internal/storage/redis"
	"mywallet/internal/telemetry"
	"mywallet/internal/wallet"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "mywallet"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer backend.Close()

	svc := wallet.NewService(backend.store, backend.sessions, backend.store, wallet.Options{BcryptCost: cfg.BcryptCost})
	if cfg.SeedEnabled() {
		created, err := svc.SeedUser(ctx, wallet.RegisterInput{
			Name:            cfg.AdminName,
			Email:           cfg.AdminEmail,
			Password:        cfg.AdminPassword,
			ConfirmPassword: cfg.AdminPassword,
		})
		if err != nil {
			log.Fatalf("seed user: %v", err)
		}
		if created {
			log.Printf("seeded user email=%s", cfg.AdminEmail)
		}
	}

	h := handlers.NewHandlers(svc, backend.pingers...)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      setupRouter(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s backend=%s", serviceName, server.Addr, backend.name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// setupRouter wraps the API routes with request logging, CORS and tracing.
func setupRouter(h *handlers.Handlers) http.Handler {
	handler := handlers.LoggingMiddleware(h.Routes())
	handler = cors.AllowAll().Handler(handler)
	return otelhttp.NewHandler(handler, serviceName)
}

// backend bundles the stores chosen by configuration.
type backend struct {
	name     string
	store    storage.Store
	sessions storage.SessionStore
	pingers  []storage.Pinger
	closers  []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

// openBackend selects Postgres when DATABASE_URL is set and SQLite otherwise.
// With REDIS_ADDR set, sessions move to Redis.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		store, err := postgres.NewStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.name = "postgres"
		b.store = store
	} else {
		db, err := storage.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", cfg.DBPath, err)
		}
		b.name = "sqlite"
		b.store = db
	}
	b.sessions = b.store
	b.pingers = append(b.pingers, b.store)
	b.closers = append(b.closers, b.store.Close)

	if cfg.RedisAddr != "" {
		sessions := redis.New(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := sessions.Ping(ctx); err != nil {
			b.Close()
			sessions.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		b.name += "+redis"
		b.sessions = sessions
		b.pingers = append(b.pingers, sessions)
		b.closers = append(b.closers, sessions.Close)
	}

	return b, nil
}
