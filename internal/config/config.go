// Package config reads server settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBPath      string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BcryptCost int

	AdminName     string
	AdminEmail    string
	AdminPassword string

	OTLPEndpoint string
	OTLPInsecure bool
}

// Load returns the configuration. Variables already set in the environment
// win over the .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return Config{
		Port:          readString("PORT", "5000"),
		DBPath:        readString("DB_PATH", "mywallet.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       readInt("REDIS_DB", 0),
		BcryptCost:    readInt("BCRYPT_COST", 0),
		AdminName:     readString("ADMIN_NAME", "Admin"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:  readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// SeedEnabled reports whether an initial account is configured.
func (c Config) SeedEnabled() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

func readString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
