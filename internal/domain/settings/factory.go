package settings

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"chunks-server-go/internal/platform/storage"
)

// Driver identifiers supported by the settings store.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates a settings store based on the provided configuration.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if deps.SQLiteDB != nil {
			return NewSQLite(deps.SQLiteDB)
		}
		if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
			return nil, fmt.Errorf("sqlite driver requires database handle or dsn")
		}
		db, err := storage.OpenSQLite(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		return &sqliteStore{db: db, owned: true}, nil
	case DriverRedis:
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported settings store driver: %s", driver)
	}
}
