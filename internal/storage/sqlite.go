package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Document is the gorm model backing the SQLite document store.
type Document struct {
	Key       string `gorm:"primaryKey"`
	Body      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// SQLiteStore persists documents in a single-table SQLite database.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path
// and migrates the documents table.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// WAL keeps the single-writer document cycle from blocking reads.
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		logger.Warn("Failed to enable WAL mode", slog.Any("error", err))
	}
	if err := db.Exec("PRAGMA busy_timeout=5000;").Error; err != nil {
		logger.Warn("Failed to set busy timeout", slog.Any("error", err))
	}

	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// NewSQLiteStoreFromDB wraps an already-open gorm connection; intended for tests.
func NewSQLiteStoreFromDB(db *gorm.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %q: %w", key, err)
	}
	return json.RawMessage(doc.Body), nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, body json.RawMessage) error {
	doc := Document{Key: key, Body: body, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to store document %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
