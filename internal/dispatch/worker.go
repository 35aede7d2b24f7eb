package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ms-reminders/internal/config"
	"ms-reminders/internal/models"
	"ms-reminders/internal/schedule"
)

var (
	// ErrCycleRunning is returned when a trigger fires while a cycle is
	// still in flight. Overlapping cycles would race on ledger claims for
	// the same schedule date, so the second trigger is inert.
	ErrCycleRunning = errors.New("a dispatch cycle is already running")

	// ErrNoDeliveryChannel is a configuration error: the worker refuses to
	// dispatch without a configured transport.
	ErrNoDeliveryChannel = errors.New("no delivery channel configured")
)

// BookStore is the storage interface the worker consumes.
type BookStore interface {
	ListReminderEnabled(ctx context.Context) ([]models.Book, error)
	MarkReminded(ctx context.Context, bookID string, remindedAt time.Time, scheduleDate string) error
}

// Ledger is the dedup/idempotency interface: claim before send, record after.
type Ledger interface {
	Claim(ctx context.Context, bookID, scheduleDate string, scheduledFor time.Time) (attemptID string, alreadyClaimed bool, err error)
	Record(ctx context.Context, attemptID string, status models.AttemptStatus, sendErr error) error
}

// Sender is the delivery channel contract.
type Sender interface {
	SendReminderEmail(ctx context.Context, to, subject, text, bookTitle string) error
}

// EmailResolver looks up a book owner's address at the identity provider.
type EmailResolver interface {
	Configured() bool
	GetUserEmail(userID string) (string, error)
}

// Worker runs dispatch cycles: fetch reminder-enabled books, evaluate which
// are due, and for each due book claim the ledger slot, deliver, record the
// outcome, and advance the book's reminder state.
type Worker struct {
	cfg      config.Config
	books    BookStore
	ledger   Ledger
	sender   Sender
	identity EmailResolver

	// Now is the clock, replaceable in tests.
	Now func() time.Time

	cycleMu  sync.Mutex
	requests chan struct{}
}

func NewWorker(cfg config.Config, books BookStore, ledger Ledger, sender Sender, identity EmailResolver) *Worker {
	return &Worker{
		cfg:      cfg,
		books:    books,
		ledger:   ledger,
		sender:   sender,
		identity: identity,
		Now:      time.Now,
		requests: make(chan struct{}, 1),
	}
}

// RunCycle executes one dispatch cycle and returns the number of attempted
// sends. If a cycle is already running the call returns ErrCycleRunning
// without doing any work. Per-book failures never abort the cycle.
func (w *Worker) RunCycle(ctx context.Context) (int, error) {
	if w.sender == nil {
		return 0, ErrNoDeliveryChannel
	}

	if !w.cycleMu.TryLock() {
		return 0, ErrCycleRunning
	}
	defer w.cycleMu.Unlock()

	now := w.Now()
	log.Printf("Starting dispatch cycle at %s (%s)", now.In(w.cfg.Location).Format(time.RFC3339), w.cfg.Timezone)

	books, err := w.books.ListReminderEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch reminder-enabled books: %w", err)
	}

	due := w.evaluate(books, now)
	if len(due) == 0 {
		log.Printf("Dispatch cycle complete: %d books evaluated, none due", len(books))
		return 0, nil
	}

	log.Printf("Dispatch cycle: %d of %d books due", len(due), len(books))

	emails := newEmailCache(w.identity, w.cfg.ReminderTo)

	var attempted int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.DispatchConcurrency)

	for i := range due {
		item := due[i]
		g.Go(func() error {
			// A cancelled context stops between books; each book's
			// claim+send+record is independently committed.
			if gctx.Err() != nil {
				return nil
			}
			if w.dispatchBook(gctx, item.book, item.eval, now, emails) {
				atomic.AddInt64(&attempted, 1)
			}
			return nil
		})
	}
	// Workers never return errors, per-book failures are isolated.
	_ = g.Wait()

	log.Printf("Dispatch cycle complete: %d attempted sends", attempted)
	return int(atomic.LoadInt64(&attempted)), nil
}

type dueBook struct {
	book models.Book
	eval schedule.Evaluation
}

// evaluate partitions the fetched books into due and not-due. A malformed
// per-book configuration is logged and that book alone is skipped.
func (w *Worker) evaluate(books []models.Book, now time.Time) []dueBook {
	var due []dueBook
	for i := range books {
		eval, err := schedule.Evaluate(&books[i], now, w.cfg.Location)
		if err != nil {
			log.Printf("Skipping book %s (%q): invalid reminder config: %v", books[i].ID, books[i].Title, err)
			continue
		}
		if eval.Due {
			due = append(due, dueBook{book: books[i], eval: eval})
		}
	}
	return due
}

// dispatchBook runs claim → deliver → record → advance state for one book.
// Returns true if a send was attempted (a ledger slot was claimed).
func (w *Worker) dispatchBook(ctx context.Context, book models.Book, eval schedule.Evaluation, now time.Time, emails *emailCache) bool {
	attemptID, alreadyClaimed, err := w.ledger.Claim(ctx, book.ID, eval.ScheduleDate, eval.ScheduledFor)
	if err != nil {
		log.Printf("Failed to claim ledger slot for book %s on %s: %v", book.ID, eval.ScheduleDate, err)
		return false
	}
	if alreadyClaimed {
		log.Printf("Book %s already claimed for %s, skipping delivery", book.ID, eval.ScheduleDate)
		return false
	}

	to := emails.resolve(book.UserID)
	if to == "" {
		log.Printf("No recipient address for book %s (user %s), recording skip", book.ID, book.UserID)
		w.record(ctx, attemptID, models.AttemptStatusSkippedNoEmail, nil)
		return true
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.DeliveryTimeout)
	defer cancel()

	err = w.sender.SendReminderEmail(sendCtx, to, w.cfg.ReminderSubject, w.cfg.ReminderText, book.Title)
	if err != nil {
		// State is not advanced, so the book stays due and retries on the
		// next cycle.
		log.Printf("Delivery failed for book %s to %s: %v", book.ID, to, err)
		w.record(ctx, attemptID, models.AttemptStatusError, err)
		return true
	}

	w.record(ctx, attemptID, models.AttemptStatusSent, nil)

	if err := w.books.MarkReminded(ctx, book.ID, now, eval.ScheduleDate); err != nil {
		log.Printf("Failed to advance reminder state for book %s: %v", book.ID, err)
	}

	log.Printf("Reminder sent for book %s (%q) to %s", book.ID, book.Title, to)
	return true
}

func (w *Worker) record(ctx context.Context, attemptID string, status models.AttemptStatus, sendErr error) {
	if err := w.ledger.Record(ctx, attemptID, status, sendErr); err != nil {
		log.Printf("Failed to record attempt %s as %s: %v", attemptID, status, err)
	}
}

// DueToday evaluates all reminder-enabled books at the current instant
// without claiming or sending anything. Serves the audit surface.
func (w *Worker) DueToday(ctx context.Context) ([]DueEntry, error) {
	books, err := w.books.ListReminderEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminder-enabled books: %w", err)
	}

	now := w.Now()
	entries := make([]DueEntry, 0, len(books))
	for i := range books {
		eval, err := schedule.Evaluate(&books[i], now, w.cfg.Location)
		if err != nil {
			entries = append(entries, DueEntry{
				BookID: books[i].ID,
				UserID: books[i].UserID,
				Title:  books[i].Title,
				Error:  err.Error(),
			})
			continue
		}
		entries = append(entries, DueEntry{
			BookID:     books[i].ID,
			UserID:     books[i].UserID,
			Title:      books[i].Title,
			Evaluation: &eval,
		})
	}
	return entries, nil
}

// DueEntry is one row of the due-today audit view.
type DueEntry struct {
	BookID     string               `json:"book_id"`
	UserID     string               `json:"user_id"`
	Title      string               `json:"title"`
	Evaluation *schedule.Evaluation `json:"evaluation,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// RequestCycle asks for an early cycle without blocking. Used by the Kafka
// book-change consumer; coalesces with any pending request.
func (w *Worker) RequestCycle() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

// ServeRequests runs cycles on demand until the context is cancelled.
func (w *Worker) ServeRequests(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, stopping on-demand cycle runner")
			return
		case <-w.requests:
			if _, err := w.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
				log.Printf("On-demand dispatch cycle failed: %v", err)
			}
		}
	}
}

// emailCache memoizes identity lookups for the duration of one cycle so a
// user with many due books costs one admin API call.
type emailCache struct {
	identity EmailResolver
	fallback string

	mu    sync.Mutex
	cache map[string]string
}

func newEmailCache(identity EmailResolver, fallback string) *emailCache {
	return &emailCache{
		identity: identity,
		fallback: fallback,
		cache:    make(map[string]string),
	}
}

func (c *emailCache) resolve(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if email, ok := c.cache[userID]; ok {
		return email
	}

	email := c.fallback
	if c.identity != nil && c.identity.Configured() {
		resolved, err := c.identity.GetUserEmail(userID)
		if err != nil {
			log.Printf("Could not resolve email for user %s, falling back to default recipient: %v", userID, err)
		} else {
			email = resolved
		}
	}

	c.cache[userID] = email
	return email
}
