package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// BookStatus represents the reading status enum
type BookStatus string

const (
	BookStatusUnread   BookStatus = "unread"
	BookStatusReading  BookStatus = "reading"
	BookStatusFinished BookStatus = "finished"
)

// Scan implements the sql.Scanner interface for BookStatus
func (bs *BookStatus) Scan(value interface{}) error {
	if value == nil {
		*bs = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*bs = BookStatus(v)
		return nil
	case []byte:
		*bs = BookStatus(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into BookStatus", value)
}

// Value implements the driver.Valuer interface for BookStatus
func (bs BookStatus) Value() (driver.Value, error) {
	return string(bs), nil
}

// ReminderMode discriminates which due-date computation applies to a book
type ReminderMode string

const (
	ReminderModeDaily      ReminderMode = "daily"
	ReminderModeEveryXDays ReminderMode = "every_x_days"
	ReminderModeWeekly     ReminderMode = "weekly"
)

// Scan implements the sql.Scanner interface for ReminderMode
func (rm *ReminderMode) Scan(value interface{}) error {
	if value == nil {
		*rm = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*rm = ReminderMode(v)
		return nil
	case []byte:
		*rm = ReminderMode(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into ReminderMode", value)
}

// Value implements the driver.Valuer interface for ReminderMode
func (rm ReminderMode) Value() (driver.Value, error) {
	return string(rm), nil
}

// Book represents a tracked book with its reminder configuration.
// The CRUD layer owns creation and updates; this service only reads the
// configuration columns and writes the two reminder-state columns
// (last_reminded_at, reminded_on_date).
type Book struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"` // identity provider UUID
	Title     string     `json:"title" db:"title"`
	Status    BookStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`

	// Normalized reminder configuration. The legacy reminder_frequency and
	// reminder_time columns still exist in the schema but are never read
	// here; precedence between the two shapes is resolved by migration only.
	ReminderEnabled      bool         `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderMode         ReminderMode `json:"reminder_mode" db:"reminder_mode"`
	ReminderIntervalDays int          `json:"reminder_interval_days" db:"reminder_interval_days"`
	ReminderDaysOfWeek   []int64      `json:"reminder_days_of_week" db:"reminder_days_of_week"` // Mon=1 .. Sun=7
	ReminderHour         int          `json:"reminder_hour" db:"reminder_hour"`
	ReminderMinute       int          `json:"reminder_minute" db:"reminder_minute"`

	// Reminder state, mutated only by the dispatch worker.
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty" db:"last_reminded_at"`
	RemindedOnDate *string    `json:"reminded_on_date,omitempty" db:"reminded_on_date"` // YYYY-MM-DD in the configured zone
}
