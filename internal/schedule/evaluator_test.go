package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reminders/internal/models"
)

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func dailyBook() *models.Book {
	return &models.Book{
		ID:              "book-1",
		UserID:          "user-1",
		Title:           "The Go Programming Language",
		Status:          models.BookStatusReading,
		CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ReminderEnabled: true,
		ReminderMode:    models.ReminderModeDaily,
		ReminderHour:    9,
		ReminderMinute:  0,
	}
}

func TestIsDueDisabledBookNeverDue(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderEnabled = false

	for hour := 0; hour < 24; hour++ {
		now := time.Date(2025, 6, 2, hour, 30, 0, 0, loc)
		due, err := IsDue(book, now, loc)
		assert.NoError(t, err)
		assert.False(t, due, "disabled book must never be due (hour %d)", hour)
	}
}

func TestIsDueFinishedBookNeverDue(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.Status = models.BookStatusFinished

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	due, err := IsDue(book, now, loc)
	assert.NoError(t, err)
	assert.False(t, due)
}

func TestIsDueDailyAtConfiguredTime(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()

	tests := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"before configured time", time.Date(2025, 6, 2, 8, 59, 0, 0, loc), false},
		{"exactly at configured time", time.Date(2025, 6, 2, 9, 0, 0, 0, loc), true},
		{"after configured time", time.Date(2025, 6, 2, 23, 59, 0, 0, loc), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := IsDue(book, tt.now, loc)
			assert.NoError(t, err)
			assert.Equal(t, tt.due, due)
		})
	}
}

func TestIsDueDailyNotTwiceSameDay(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	today := "2025-06-02"
	book.RemindedOnDate = &today

	now := time.Date(2025, 6, 2, 9, 10, 0, 0, loc)
	due, err := IsDue(book, now, loc)
	assert.NoError(t, err)
	assert.False(t, due, "already dispatched today")

	// The next local day it becomes due again.
	nextDay := time.Date(2025, 6, 3, 9, 10, 0, 0, loc)
	due, err = IsDue(book, nextDay, loc)
	assert.NoError(t, err)
	assert.True(t, due)
}

func TestIsDueEveryXDaysInterval(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = models.ReminderModeEveryXDays
	book.ReminderIntervalDays = 3
	last := time.Date(2025, 6, 1, 9, 0, 0, 0, loc) // day 0
	book.LastRemindedAt = &last

	tests := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"day 1", time.Date(2025, 6, 2, 10, 0, 0, 0, loc), false},
		{"day 2", time.Date(2025, 6, 3, 10, 0, 0, 0, loc), false},
		{"day 3 before hour", time.Date(2025, 6, 4, 8, 0, 0, 0, loc), false},
		{"day 3 at hour", time.Date(2025, 6, 4, 9, 0, 0, 0, loc), true},
		{"day 5", time.Date(2025, 6, 6, 9, 0, 0, 0, loc), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := IsDue(book, tt.now, loc)
			assert.NoError(t, err)
			assert.Equal(t, tt.due, due)
		})
	}
}

func TestIsDueEveryXDaysAnchorsOnCreationWhenNeverReminded(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = models.ReminderModeEveryXDays
	book.ReminderIntervalDays = 2
	book.CreatedAt = time.Date(2025, 6, 1, 15, 0, 0, 0, loc)
	book.LastRemindedAt = nil

	due, err := IsDue(book, time.Date(2025, 6, 2, 12, 0, 0, 0, loc), loc)
	assert.NoError(t, err)
	assert.False(t, due, "only one whole day since creation")

	due, err = IsDue(book, time.Date(2025, 6, 3, 12, 0, 0, 0, loc), loc)
	assert.NoError(t, err)
	assert.True(t, due)
}

func TestIsDueEveryXDaysNonPositiveIntervalIsError(t *testing.T) {
	loc := shanghai(t)
	for _, interval := range []int{0, -1} {
		book := dailyBook()
		book.ReminderMode = models.ReminderModeEveryXDays
		book.ReminderIntervalDays = interval

		due, err := IsDue(book, time.Date(2025, 6, 2, 12, 0, 0, 0, loc), loc)
		assert.ErrorIs(t, err, ErrBadInterval, "interval %d must be signaled, not treated as always-due", interval)
		assert.False(t, due)
	}
}

func TestIsDueWeekly(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = models.ReminderModeWeekly
	book.ReminderDaysOfWeek = []int64{1, 3, 5} // Mon/Wed/Fri
	book.ReminderHour = 19
	book.ReminderMinute = 0

	// 2025-06-02 is a Monday.
	tests := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"Monday 19:00", time.Date(2025, 6, 2, 19, 0, 0, 0, loc), true},
		{"Monday 18:59", time.Date(2025, 6, 2, 18, 59, 0, 0, loc), false},
		{"Tuesday 19:00", time.Date(2025, 6, 3, 19, 0, 0, 0, loc), false},
		{"Tuesday 23:59", time.Date(2025, 6, 3, 23, 59, 0, 0, loc), false},
		{"Wednesday 19:30", time.Date(2025, 6, 4, 19, 30, 0, 0, loc), true},
		{"Sunday 19:00", time.Date(2025, 6, 8, 19, 0, 0, 0, loc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := IsDue(book, tt.now, loc)
			assert.NoError(t, err)
			assert.Equal(t, tt.due, due)
		})
	}
}

func TestIsDueWeeklySundayCode(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = models.ReminderModeWeekly
	book.ReminderDaysOfWeek = []int64{7} // Sunday

	// 2025-06-08 is a Sunday.
	due, err := IsDue(book, time.Date(2025, 6, 8, 10, 0, 0, 0, loc), loc)
	assert.NoError(t, err)
	assert.True(t, due)
}

func TestIsDueWeeklyEmptyDaySetIsError(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = models.ReminderModeWeekly
	book.ReminderDaysOfWeek = nil

	_, err := IsDue(book, time.Date(2025, 6, 2, 10, 0, 0, 0, loc), loc)
	assert.ErrorIs(t, err, ErrEmptyWeekdaySet)
}

func TestIsDueMissingModeIsError(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderMode = ""

	_, err := IsDue(book, time.Date(2025, 6, 2, 10, 0, 0, 0, loc), loc)
	assert.ErrorIs(t, err, ErrNoMode)
}

func TestIsDueBadClockTimeIsError(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	book.ReminderHour = 24

	_, err := IsDue(book, time.Date(2025, 6, 2, 10, 0, 0, 0, loc), loc)
	assert.ErrorIs(t, err, ErrBadClockTime)
}

func TestEvaluateUsesLocalCalendarDate(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()

	// 01:05 Shanghai on June 3rd is still June 2nd in UTC. The schedule
	// period must follow the configured zone, not the server clock.
	now := time.Date(2025, 6, 2, 17, 5, 0, 0, time.UTC)
	eval, err := Evaluate(book, now, loc)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", eval.ScheduleDate)
	assert.False(t, eval.Due, "01:05 local is before the 09:00 trigger")
}

func TestEvaluateReportsAuditFields(t *testing.T) {
	loc := shanghai(t)
	book := dailyBook()
	last := time.Date(2025, 5, 30, 9, 0, 0, 0, loc)
	book.LastRemindedAt = &last

	eval, err := Evaluate(book, time.Date(2025, 6, 2, 9, 5, 0, 0, loc), loc)
	require.NoError(t, err)
	assert.True(t, eval.Due)
	assert.True(t, eval.DayEligible)
	assert.True(t, eval.ReachedTime)
	assert.False(t, eval.RemindedToday)
	assert.Equal(t, 3, eval.DaysSinceLast)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, loc), eval.ScheduledFor)
}

func TestScheduleDate(t *testing.T) {
	loc := shanghai(t)
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-01", ScheduleDate(now, loc))
}

func TestIdempotencyKeyDerivation(t *testing.T) {
	key := models.IdempotencyKey("book-1", "2025-06-02")
	assert.Equal(t, "book-1:2025-06-02", key)
	assert.NotEqual(t, key, models.IdempotencyKey("book-1", "2025-06-03"))
	assert.NotEqual(t, key, models.IdempotencyKey("book-2", "2025-06-02"))
}
