package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-hub/internal/database"
	"portfolio-hub/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteBackend stores cache entries in a SQLite table through GORM
type SQLiteBackend struct {
	db *gorm.DB
}

// NewSQLiteBackend opens (or creates) the cache database at path
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

// NewSQLiteBackendWithDB wraps an already migrated database
func NewSQLiteBackendWithDB(db *gorm.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (s *SQLiteBackend) Load(ctx context.Context, key string) (string, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load cache entry %s: %w", key, err)
	}
	return string(entry.Value), true, nil
}

func (s *SQLiteBackend) Store(ctx context.Context, key, value string) error {
	entry := models.CacheEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).Delete(&models.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("remove cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return database.Close(s.db)
}
