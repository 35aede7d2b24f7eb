package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reminders/internal/models"
)

// LedgerService owns the reminder_logs table: the append-only record of
// dispatch attempts and the source of truth for idempotency.
type LedgerService struct {
	DB *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Claim reserves the dispatch slot for (bookID, scheduleDate) by inserting
// the ledger row before any delivery is attempted. The unique constraint on
// idempotency_key makes the insert the atomic synchronization point: exactly
// one caller gets a claim for a given key, everyone else sees alreadyClaimed.
//
// The row is created with a NULL status; Record fills it in. A crash between
// the two steps leaves an auditable NULL-status row (see StuckClaims), never
// a duplicate send.
func (s *LedgerService) Claim(ctx context.Context, bookID, scheduleDate string, scheduledFor time.Time) (attemptID string, alreadyClaimed bool, err error) {
	query := `
        INSERT INTO reminder_logs (book_id, schedule_date, scheduled_for, idempotency_key, attempted_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (idempotency_key) DO NOTHING
        RETURNING id`

	key := models.IdempotencyKey(bookID, scheduleDate)
	err = s.DB.QueryRowContext(ctx, query, bookID, scheduleDate, scheduledFor, key).Scan(&attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Expected concurrency-safety outcome, not an error.
			return "", true, nil
		}
		return "", false, fmt.Errorf("error claiming ledger key %s: %w", key, err)
	}

	return attemptID, false, nil
}

// Record sets the final status on a claimed row. The status-IS-NULL guard
// keeps the ledger append-only: a recorded outcome is never overwritten.
func (s *LedgerService) Record(ctx context.Context, attemptID string, status models.AttemptStatus, sendErr error) error {
	var errMsg sql.NullString
	if sendErr != nil {
		errMsg = sql.NullString{String: sendErr.Error(), Valid: true}
	}

	query := `
        UPDATE reminder_logs
        SET status = $2, error = $3
        WHERE id = $1 AND status IS NULL`

	result, err := s.DB.ExecContext(ctx, query, attemptID, status, errMsg)
	if err != nil {
		return fmt.Errorf("error recording attempt %s: %w", attemptID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("attempt %s was already recorded or does not exist", attemptID)
	}

	return nil
}

// RecentAttempts returns the newest ledger rows for the audit surface.
func (s *LedgerService) RecentAttempts(ctx context.Context, limit int) ([]models.ReminderAttempt, error) {
	query := `
        SELECT id, book_id, to_char(schedule_date, 'YYYY-MM-DD'), scheduled_for,
               idempotency_key, COALESCE(status, ''), error, attempted_at
        FROM reminder_logs
        ORDER BY attempted_at DESC
        LIMIT $1`

	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent attempts: %w", err)
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// StuckClaims returns claimed rows whose outcome was never recorded, older
// than the given age. A reconciliation sweep resolves these out of band.
func (s *LedgerService) StuckClaims(ctx context.Context, olderThan time.Duration) ([]models.ReminderAttempt, error) {
	query := `
        SELECT id, book_id, to_char(schedule_date, 'YYYY-MM-DD'), scheduled_for,
               idempotency_key, COALESCE(status, ''), error, attempted_at
        FROM reminder_logs
        WHERE status IS NULL AND attempted_at < NOW() - $1::interval
        ORDER BY attempted_at`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := s.DB.QueryContext(ctx, query, interval)
	if err != nil {
		return nil, fmt.Errorf("error querying stuck claims: %w", err)
	}
	defer rows.Close()

	return scanAttempts(rows)
}

func scanAttempts(rows *sql.Rows) ([]models.ReminderAttempt, error) {
	var attempts []models.ReminderAttempt
	for rows.Next() {
		var attempt models.ReminderAttempt
		var errMsg sql.NullString

		err := rows.Scan(
			&attempt.ID,
			&attempt.BookID,
			&attempt.ScheduleDate,
			&attempt.ScheduledFor,
			&attempt.IdempotencyKey,
			&attempt.Status,
			&errMsg,
			&attempt.AttemptedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning attempt: %w", err)
		}

		if errMsg.Valid {
			msg := errMsg.String
			attempt.Error = &msg
		}

		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}
