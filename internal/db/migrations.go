package db

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table structure
// changes do not use versioned migrations.
func SyncSchema(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("db is required")
	}
	if err := gdb.AutoMigrate(&ExportArtifact{}); err != nil {
		return err
	}
	return gdb.Exec(
		`CREATE INDEX IF NOT EXISTS idx_export_artifacts_created_at ON export_artifacts(created_at DESC);`,
	).Error
}
