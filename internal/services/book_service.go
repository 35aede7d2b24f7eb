package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ms-reminders/internal/models"
)

// BookService is the storage query interface over the books table. The CRUD
// layer owns the table; this service reads reminder configuration and writes
// only the two reminder-state columns.
type BookService struct {
	DB *sql.DB
}

func NewBookService(db *sql.DB) *BookService {
	return &BookService{DB: db}
}

const bookColumns = `
        id, user_id, title, status, created_at,
        reminder_enabled, COALESCE(reminder_mode, ''), COALESCE(reminder_interval_days, 0),
        reminder_days_of_week, COALESCE(reminder_hour, 9), COALESCE(reminder_minute, 0),
        last_reminded_at, to_char(reminded_on_date, 'YYYY-MM-DD')`

// ListReminderEnabled returns every book eligible for evaluation:
// reminders on and not yet finished.
func (s *BookService) ListReminderEnabled(ctx context.Context) ([]models.Book, error) {
	query := `
        SELECT` + bookColumns + `
        FROM books
        WHERE reminder_enabled = TRUE AND status <> 'finished'
        ORDER BY user_id, created_at`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying reminder-enabled books: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// ListUserReminderBooks returns one user's reminder-enabled books for the
// per-user configuration audit view.
func (s *BookService) ListUserReminderBooks(ctx context.Context, userID string) ([]models.Book, error) {
	query := `
        SELECT` + bookColumns + `
        FROM books
        WHERE user_id = $1 AND reminder_enabled = TRUE
        ORDER BY created_at`

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying reminder books for user %s: %w", userID, err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

// MarkReminded advances a book's reminder state after a successful send.
// reminded_on_date never regresses: a concurrent or replayed update with an
// older date is absorbed by GREATEST.
func (s *BookService) MarkReminded(ctx context.Context, bookID string, remindedAt time.Time, scheduleDate string) error {
	query := `
        UPDATE books
        SET last_reminded_at = $2,
            reminded_on_date = GREATEST(COALESCE(reminded_on_date, $3::date), $3::date)
        WHERE id = $1`

	result, err := s.DB.ExecContext(ctx, query, bookID, remindedAt, scheduleDate)
	if err != nil {
		return fmt.Errorf("error updating reminder state for book %s: %w", bookID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("book %s not found while updating reminder state", bookID)
	}

	return nil
}

func scanBooks(rows *sql.Rows) ([]models.Book, error) {
	var books []models.Book
	for rows.Next() {
		var book models.Book
		var daysOfWeek pq.Int64Array
		var lastRemindedAt sql.NullTime
		var remindedOnDate sql.NullString

		err := rows.Scan(
			&book.ID,
			&book.UserID,
			&book.Title,
			&book.Status,
			&book.CreatedAt,
			&book.ReminderEnabled,
			&book.ReminderMode,
			&book.ReminderIntervalDays,
			&daysOfWeek,
			&book.ReminderHour,
			&book.ReminderMinute,
			&lastRemindedAt,
			&remindedOnDate,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning book: %w", err)
		}

		book.ReminderDaysOfWeek = []int64(daysOfWeek)
		if lastRemindedAt.Valid {
			t := lastRemindedAt.Time
			book.LastRemindedAt = &t
		}
		if remindedOnDate.Valid {
			d := remindedOnDate.String
			book.RemindedOnDate = &d
		}

		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
}
