package browser

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// StorageRecord is one persisted key-value pair, scoped so multiple
// logical browser sessions can share a database file.
type StorageRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Scope     string `gorm:"uniqueIndex:idx_scope_name;not null"`
	Name      string `gorm:"uniqueIndex:idx_scope_name;not null"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// SQLiteStorage is a Storage backed by gorm+sqlite, used by long-running
// headless agents that want session continuity across process restarts.
// Like MemoryStorage it is read-then-write; concurrent writers can lose
// updates, matching the in-browser behavior.
type SQLiteStorage struct {
	db     *gorm.DB
	scope  string
	logger *slog.Logger
}

// NewSQLiteStorage opens (or creates) the database at path and scopes all
// keys under scope.
func NewSQLiteStorage(path, scope string, logger *slog.Logger) (*SQLiteStorage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage database: %w", err)
	}

	if err := db.AutoMigrate(&StorageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate storage schema: %w", err)
	}

	return &SQLiteStorage{db: db, scope: scope, logger: logger}, nil
}

// Get returns the stored value for key. Database errors read as absence.
func (s *SQLiteStorage) Get(key string) (string, bool) {
	var record StorageRecord
	err := s.db.Where("scope = ? AND name = ?", s.scope, key).First(&record).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.logger.Debug("storage read failed", slog.String("key", key), slog.Any("error", err))
		}
		return "", false
	}
	return record.Value, true
}

// Set upserts a value under key. Failures are logged and swallowed: storage
// errors must never surface to the tracking path.
func (s *SQLiteStorage) Set(key, value string) {
	record := StorageRecord{
		Scope:     s.scope,
		Name:      key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		s.logger.Debug("storage write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Remove deletes a key.
func (s *SQLiteStorage) Remove(key string) {
	err := s.db.Where("scope = ? AND name = ?", s.scope, key).Delete(&StorageRecord{}).Error
	if err != nil {
		s.logger.Debug("storage delete failed", slog.String("key", key), slog.Any("error", err))
	}
}
