package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"ms-reminders/internal/auth"
	"ms-reminders/internal/dispatch"
	"ms-reminders/internal/models"
)

const (
	defaultRecentAttemptsLimit = 50
	defaultStuckClaimAge       = 15 * time.Minute
)

// DueLister computes the due-today audit view.
type DueLister interface {
	DueToday(ctx context.Context) ([]dispatch.DueEntry, error)
}

// AttemptReader reads the ledger for the audit surface.
type AttemptReader interface {
	RecentAttempts(ctx context.Context, limit int) ([]models.ReminderAttempt, error)
	StuckClaims(ctx context.Context, olderThan time.Duration) ([]models.ReminderAttempt, error)
}

// ConfigReader reads a user's reminder configuration.
type ConfigReader interface {
	ListUserReminderBooks(ctx context.Context, userID string) ([]models.Book, error)
}

// AuditHandler exposes the read-only operational views over reminder state
// and the attempt ledger. Nothing here mutates anything.
type AuditHandler struct {
	due      DueLister
	attempts AttemptReader
	books    ConfigReader
}

func NewAuditHandler(due DueLister, attempts AttemptReader, books ConfigReader) *AuditHandler {
	return &AuditHandler{
		due:      due,
		attempts: attempts,
		books:    books,
	}
}

// DueToday handles GET /audit/due-today
func (h *AuditHandler) DueToday(w http.ResponseWriter, r *http.Request) {
	entries, err := h.due.DueToday(r.Context())
	if err != nil {
		log.Printf("Error computing due-today view: %v", err)
		http.Error(w, "Failed to compute due books", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"count": len(entries),
		"books": entries,
	})
}

// RecentAttempts handles GET /audit/recent-attempts
func (h *AuditHandler) RecentAttempts(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentAttemptsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	attempts, err := h.attempts.RecentAttempts(r.Context(), limit)
	if err != nil {
		log.Printf("Error reading recent attempts: %v", err)
		http.Error(w, "Failed to read attempt ledger", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"count":    len(attempts),
		"attempts": attempts,
	})
}

// StuckClaims handles GET /audit/stuck-claims: claimed ledger rows whose
// outcome was never recorded, usually evidence of a crash mid-dispatch.
func (h *AuditHandler) StuckClaims(w http.ResponseWriter, r *http.Request) {
	olderThan := defaultStuckClaimAge
	if raw := r.URL.Query().Get("older_than_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "older_than_minutes must be a positive integer", http.StatusBadRequest)
			return
		}
		olderThan = time.Duration(parsed) * time.Minute
	}

	claims, err := h.attempts.StuckClaims(r.Context(), olderThan)
	if err != nil {
		log.Printf("Error reading stuck claims: %v", err)
		http.Error(w, "Failed to read attempt ledger", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"count":  len(claims),
		"claims": claims,
	})
}

// UserConfig handles GET /audit/config, scoped to the calling user.
func (h *AuditHandler) UserConfig(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		log.Printf("Error getting user ID from context: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	books, err := h.books.ListUserReminderBooks(r.Context(), userID)
	if err != nil {
		log.Printf("Error reading reminder config for user %s: %v", userID, err)
		http.Error(w, "Failed to read reminder configuration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"user_id": userID,
		"count":   len(books),
		"books":   books,
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
