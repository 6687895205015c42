package storage

import (
	"time"

	"gorm.io/gorm"

	"chunks-server-go/internal/platform/errors"
	"chunks-server-go/internal/platform/storage/migrations"
)

// schemaVersion marks an applied migration.
type schemaVersion struct {
	Version   string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaVersion) TableName() string { return "schema_versions" }

// Migrate applies the migrations of list that are not yet recorded, in
// order, and returns the versions it applied. A failing migration leaves
// no record and stops the run.
func Migrate(db *gorm.DB, list []migrations.Migration) ([]string, error) {
	if err := db.AutoMigrate(&schemaVersion{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate.versions", "failed to create schema_versions", err)
	}

	var done []string
	if err := db.Model(&schemaVersion{}).Pluck("version", &done).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migrate.versions", "failed to read schema_versions", err)
	}
	seen := make(map[string]struct{}, len(done))
	for _, v := range done {
		seen[v] = struct{}{}
	}

	var applied []string
	for _, m := range list {
		if _, ok := seen[m.Version]; ok {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&schemaVersion{Version: m.Version, Name: m.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return applied, errors.Wrap(errors.KindStorage, "migrate."+m.Version, "migration failed", err)
		}
		seen[m.Version] = struct{}{}
		applied = append(applied, m.Version)
	}
	return applied, nil
}
