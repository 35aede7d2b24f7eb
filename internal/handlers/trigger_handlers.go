package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ms-reminders/internal/auth"
	"ms-reminders/internal/config"
	"ms-reminders/internal/dispatch"
)

// CycleRunner runs one dispatch cycle and reports attempted sends.
type CycleRunner interface {
	RunCycle(ctx context.Context) (int, error)
}

// TriggerHandler exposes the manual "run one cycle" invocation. The caller
// must be authenticated; per-book failures never surface as an HTTP error.
type TriggerHandler struct {
	runner CycleRunner
	cfg    config.Config
}

func NewTriggerHandler(runner CycleRunner, cfg config.Config) *TriggerHandler {
	return &TriggerHandler{
		runner: runner,
		cfg:    cfg,
	}
}

// RunCycle handles POST /run
func (h *TriggerHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r.Context())
	if err != nil {
		log.Printf("Error getting user ID from context: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	log.Printf("Manual dispatch cycle triggered by user %s", userID)

	attempted, err := h.runner.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, dispatch.ErrCycleRunning) {
			http.Error(w, "A dispatch cycle is already running", http.StatusConflict)
			return
		}
		// Only configuration- or storage-level failures reach here.
		log.Printf("Manual dispatch cycle failed: %v", err)
		http.Error(w, "Failed to run dispatch cycle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Dispatch cycle completed",
		"attempted": attempted,
	})
}
