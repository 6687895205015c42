package settings

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a client has no saved settings.
var ErrNotFound = errors.New("settings not found")

// Store persists settings documents keyed by client id.
type Store interface {
	Get(ctx context.Context, clientID string) (Settings, error)
	Save(ctx context.Context, clientID string, s Settings) error
	Delete(ctx context.Context, clientID string) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver string
	SQLite *SQLiteConfig
	Redis  *RedisConfig
}

// SQLiteConfig carries the DSN used when the factory opens its own handle.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
