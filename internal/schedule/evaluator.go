package schedule

import (
	"errors"
	"fmt"
	"time"

	"ms-reminders/internal/models"
)

// Per-book configuration errors. These are isolated by the dispatch worker:
// the affected book is skipped for the cycle, other books proceed.
var (
	ErrNoMode          = errors.New("reminder mode not set")
	ErrBadInterval     = errors.New("reminder interval must be a positive number of days")
	ErrEmptyWeekdaySet = errors.New("weekly reminder has an empty day-of-week set")
	ErrBadClockTime    = errors.New("reminder hour/minute out of range")
)

// Evaluation is the full result of evaluating one book at one instant.
// The worker only needs Due, but the audit surface exposes the rest.
type Evaluation struct {
	Due           bool      `json:"due"`
	DayEligible   bool      `json:"day_eligible"`
	ReachedTime   bool      `json:"reached_time"`
	RemindedToday bool      `json:"reminded_today"`
	DaysSinceLast int       `json:"days_since_last"`
	ScheduleDate  string    `json:"schedule_date"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

// Evaluate decides whether a book is due for a reminder at the given
// instant. Pure and deterministic: no clock, no I/O. now is converted to
// local wall-clock time in loc before any comparison.
func Evaluate(book *models.Book, now time.Time, loc *time.Location) (Evaluation, error) {
	local := now.In(loc)
	today := FormatDate(local)

	eval := Evaluation{
		ScheduleDate:  today,
		DaysSinceLast: daysSinceLastReminder(book, local, loc),
	}

	if !book.ReminderEnabled || book.Status == models.BookStatusFinished {
		return eval, nil
	}

	if book.ReminderHour < 0 || book.ReminderHour > 23 ||
		book.ReminderMinute < 0 || book.ReminderMinute > 59 {
		return eval, fmt.Errorf("%w: %02d:%02d", ErrBadClockTime, book.ReminderHour, book.ReminderMinute)
	}

	eval.ScheduledFor = time.Date(local.Year(), local.Month(), local.Day(),
		book.ReminderHour, book.ReminderMinute, 0, 0, loc)

	dayEligible, err := dayEligibility(book, local, eval.DaysSinceLast)
	if err != nil {
		return eval, err
	}
	eval.DayEligible = dayEligible

	minuteOfDay := local.Hour()*60 + local.Minute()
	eval.ReachedTime = minuteOfDay >= book.ReminderHour*60+book.ReminderMinute

	eval.RemindedToday = book.RemindedOnDate != nil && *book.RemindedOnDate == today

	eval.Due = eval.DayEligible && eval.ReachedTime && !eval.RemindedToday
	return eval, nil
}

// IsDue is the boolean shorthand over Evaluate.
func IsDue(book *models.Book, now time.Time, loc *time.Location) (bool, error) {
	eval, err := Evaluate(book, now, loc)
	if err != nil {
		return false, err
	}
	return eval.Due, nil
}

// ScheduleDate returns the calendar date in loc that keys the current
// schedule period.
func ScheduleDate(now time.Time, loc *time.Location) string {
	return FormatDate(now.In(loc))
}

// FormatDate renders a local timestamp as its YYYY-MM-DD calendar date.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func dayEligibility(book *models.Book, local time.Time, daysSince int) (bool, error) {
	switch book.ReminderMode {
	case models.ReminderModeDaily:
		return true, nil

	case models.ReminderModeEveryXDays:
		if book.ReminderIntervalDays <= 0 {
			return false, fmt.Errorf("%w: got %d", ErrBadInterval, book.ReminderIntervalDays)
		}
		return daysSince >= book.ReminderIntervalDays, nil

	case models.ReminderModeWeekly:
		if len(book.ReminderDaysOfWeek) == 0 {
			return false, ErrEmptyWeekdaySet
		}
		w := weekdayCode(local.Weekday())
		for _, d := range book.ReminderDaysOfWeek {
			if d == w {
				return true, nil
			}
		}
		return false, nil

	case "":
		return false, ErrNoMode
	}
	return false, fmt.Errorf("unknown reminder mode %q", book.ReminderMode)
}

// daysSinceLastReminder counts whole calendar days in loc between the last
// reminder (or the book's creation, if it was never reminded) and now.
func daysSinceLastReminder(book *models.Book, local time.Time, loc *time.Location) int {
	anchor := book.CreatedAt
	if book.LastRemindedAt != nil {
		anchor = *book.LastRemindedAt
	}
	return wholeDaysBetween(anchor.In(loc), local)
}

// wholeDaysBetween diffs the calendar dates of two local timestamps. The
// dates are rebuilt in UTC so a DST shift cannot skew the division.
func wholeDaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// weekdayCode maps time.Weekday (Sunday=0) to the schema's Mon=1..Sun=7.
func weekdayCode(w time.Weekday) int64 {
	if w == time.Sunday {
		return 7
	}
	return int64(w)
}
