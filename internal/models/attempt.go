package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// AttemptStatus represents the reminder_attempt_status enum
type AttemptStatus string

const (
	AttemptStatusSent AttemptStatus = "sent"
	// AttemptStatusSkippedNoKey is retained for audit compatibility with
	// historical ledger rows. The worker never writes it: a missing delivery
	// channel is a fatal startup error, not a per-book skip.
	AttemptStatusSkippedNoKey   AttemptStatus = "skipped_no_key"
	AttemptStatusSkippedNoEmail AttemptStatus = "skipped_no_email"
	AttemptStatusError          AttemptStatus = "error"
)

// Scan implements the sql.Scanner interface for AttemptStatus
func (as *AttemptStatus) Scan(value interface{}) error {
	if value == nil {
		*as = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*as = AttemptStatus(v)
		return nil
	case []byte:
		*as = AttemptStatus(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into AttemptStatus", value)
}

// Value implements the driver.Valuer interface for AttemptStatus
func (as AttemptStatus) Value() (driver.Value, error) {
	return string(as), nil
}

// ReminderAttempt is one append-only ledger row. A row is inserted at claim
// time with a NULL status; Record fills in the final status exactly once.
// The NULL-status window is what a reconciliation sweep looks for.
type ReminderAttempt struct {
	ID             string        `json:"id" db:"id"`
	BookID         string        `json:"book_id" db:"book_id"`
	ScheduleDate   string        `json:"schedule_date" db:"schedule_date"` // YYYY-MM-DD, the idempotency period
	ScheduledFor   time.Time     `json:"scheduled_for" db:"scheduled_for"`
	IdempotencyKey string        `json:"idempotency_key" db:"idempotency_key"`
	Status         AttemptStatus `json:"status" db:"status"`
	Error          *string       `json:"error,omitempty" db:"error"`
	AttemptedAt    time.Time     `json:"attempted_at" db:"attempted_at"`
}

// IdempotencyKey derives the ledger key for a (book, schedule-period) pair.
// Uniqueness of this key is the sole correctness mechanism against
// duplicate sends.
func IdempotencyKey(bookID, scheduleDate string) string {
	return fmt.Sprintf("%s:%s", bookID, scheduleDate)
}
