package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure EventType = "AUTHENTICATION_FAILURE"
	EventLogout                EventType = "LOGOUT"
	EventSessionExpired        EventType = "SESSION_EXPIRED"

	// Handle operations
	EventHandleReleased      EventType = "HANDLE_RELEASED"
	EventHandleReleaseFailed EventType = "HANDLE_RELEASE_FAILED"
	EventHandleListingFailed EventType = "HANDLE_LISTING_FAILED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog is one recorded operator-console event. Failed logins are
// recorded with the deny reason; passwords are never stored.
type AuditLog struct {
	ID            string        `gorm:"primaryKey;size:36"`
	CreatedAt     time.Time     `gorm:"index"`
	EventType     EventType     `gorm:"size:64;index"`
	Severity      EventSeverity `gorm:"size:16;index"`
	ActorUsername string        `gorm:"size:255;index"`
	ActorIP       string        `gorm:"size:64"`
	HandleID      string        `gorm:"size:64"`
	ResourcePath  string        `gorm:"size:1024"`
	Success       bool
	ErrorMessage  string       `gorm:"size:1024"`
	Details       AuditDetails `gorm:"type:text"`
	UserAgent     string       `gorm:"size:512"`
	RequestPath   string       `gorm:"size:255"`
	RequestMethod string       `gorm:"size:16"`
}
