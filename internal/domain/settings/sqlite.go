package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chunks-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db    *gorm.DB
	owned bool
}

// NewSQLite builds a SQLite-backed settings store on a migrated handle.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(ctx context.Context, clientID string) (Settings, error) {
	var rec storage.SettingsRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	var out Settings
	if err := sonic.ConfigStd.Unmarshal(rec.Data, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings %s: %w", clientID, err)
	}
	return out, nil
}

func (s *sqliteStore) Save(ctx context.Context, clientID string, v Settings) error {
	if clientID == "" {
		return fmt.Errorf("client id required")
	}
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	now := time.Now()
	rec := &storage.SettingsRecord{
		ClientID:  clientID,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(rec).Error
}

func (s *sqliteStore) Delete(ctx context.Context, clientID string) error {
	return s.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&storage.SettingsRecord{}).Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.SettingsRecord{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  DriverSQLite,
		"total": total,
	}, nil
}

// Close releases the handle only when the store opened it itself.
func (s *sqliteStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return storage.Close(s.db)
}
