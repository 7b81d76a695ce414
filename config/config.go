/*
Package config loads runtime configuration from the environment.

Everything has a sane local-development default so `go run ./cmd/server`
works with nothing but a writable disk; Redis and S3 settings only matter
when the export pipeline is enabled.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	S3     S3Config
	Export ExportConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DBConfig struct {
	// Path to the SQLite database file. Empty selects the in-memory store.
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

type ExportConfig struct {
	// Enabled gates the whole XLSX export pipeline (Redis + S3 clients).
	Enabled bool
	// URLExpiry bounds how long presigned download links stay valid.
	URLExpiry time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		DB: DBConfig{
			Path: getEnv("DB_PATH", "enrollment.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("S3_SECRET_KEY", "minioadmin"),
			Bucket:          getEnv("S3_BUCKET", "enrollment-exports"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			UseSSL:          getBool("S3_USE_SSL", false),
		},
		Export: ExportConfig{
			Enabled:   getBool("EXPORT_ENABLED", false),
			URLExpiry: getDuration("EXPORT_URL_EXPIRY", 24*time.Hour),
		},
	}

	if cfg.Export.Enabled {
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("config: EXPORT_ENABLED requires S3_BUCKET")
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
