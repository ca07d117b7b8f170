// Package store persists the audit trail. Sessions deliberately stay
// in memory; only audit events are written to the database.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OlsenSM91/Open-Server-Shares/internal/models"
)

// ErrRecordNotFound wraps GORM's not found error for consistency
var ErrRecordNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// CreateAuditLogBatch inserts a batch of audit log entries in one
// transaction.
func (s *Store) CreateAuditLogBatch(logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.Create(logs).Error
}

// RecentAuditLogs returns up to limit newest entries, newest first.
func (s *Store) RecentAuditLogs(limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CountAuditLogs returns the total number of stored audit entries.
func (s *Store) CountAuditLogs() (int64, error) {
	var count int64
	err := s.db.Model(&models.AuditLog{}).Count(&count).Error
	return count, err
}

// CleanupOldAuditLogs deletes entries older than retention and returns
// how many were removed.
func (s *Store) CleanupOldAuditLogs(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return res.RowsAffected, res.Error
}

// Health checks database connectivity
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
