// Package artifactdb keeps the history of saved export artifacts so users
// can find what the exporter wrote and when.
package artifactdb

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"tokentrim/cli/internal/db"
)

type Entry struct {
	Mode     string
	Filename string
	Path     string
	Size     int64
	SavedAt  time.Time
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore uses a shared DB. Caller must not close the db.
func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: gdb, now: time.Now}, nil
}

func (s *Store) Record(mode, filename, path string, size int64) error {
	if s == nil || s.db == nil {
		return errors.New("artifact store is not initialized")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return errors.New("filename is required")
	}
	row := db.ExportArtifact{
		Mode:      strings.TrimSpace(mode),
		Filename:  filename,
		Path:      strings.TrimSpace(path),
		Size:      size,
		CreatedAt: s.now().UTC().Unix(),
	}
	return s.db.Create(&row).Error
}

func (s *Store) List(limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("artifact store is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows := make([]db.ExportArtifact, 0, limit)
	if err := s.db.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Mode:     row.Mode,
			Filename: row.Filename,
			Path:     row.Path,
			Size:     row.Size,
			SavedAt:  time.Unix(row.CreatedAt, 0).UTC(),
		})
	}
	return entries, nil
}

func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return errors.New("artifact store is not initialized")
	}
	return s.db.Where("1 = 1").Delete(&db.ExportArtifact{}).Error
}
