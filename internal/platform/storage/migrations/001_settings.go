package migrations

import (
	"gorm.io/gorm"
)

// Migration is one versioned schema change. Up runs inside a transaction.
type Migration struct {
	Version string
	Name    string
	Up      func(tx *gorm.DB) error
}

// All lists the schema history, oldest first.
func All() []Migration {
	return []Migration{settingsTable}
}

// 创建客户端设置表
var settingsTable = Migration{
	Version: "001_settings",
	Name:    "create client_settings",
	Up: func(tx *gorm.DB) error {
		if err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS client_settings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				client_id VARCHAR(255) NOT NULL UNIQUE,
				data JSON NOT NULL,
				created_at DATETIME,
				updated_at DATETIME
			)
		`).Error; err != nil {
			return err
		}
		return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_client_settings_client_id ON client_settings(client_id)`).Error
	},
}
