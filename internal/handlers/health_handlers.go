package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// HealthChecker is anything that can report whether a dependency is usable.
type HealthChecker interface {
	CheckConnection() error
}

// HealthHandler provides health check endpoints for readiness and liveness probes
type HealthHandler struct {
	startTime       time.Time
	readinessChecks map[string]func() error
	livenessChecks  map[string]func() error
}

// Health response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db HealthChecker) *HealthHandler {
	h := &HealthHandler{
		startTime:       time.Now(),
		readinessChecks: make(map[string]func() error),
		livenessChecks:  make(map[string]func() error),
	}

	// Readiness checks if the service is ready to accept traffic
	h.readinessChecks["database"] = db.CheckConnection

	// Liveness checks if the service is running properly
	h.livenessChecks["uptime"] = func() error {
		return nil
	}

	return h
}

// HandleReadiness handles readiness probe requests
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, h.readinessChecks, true)
}

// HandleLiveness handles liveness probe requests
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, h.livenessChecks, false)
}

// HandleHealth handles general health check requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	// For simple kubernetes checks, just return OK
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HealthHandler) runChecks(w http.ResponseWriter, checks map[string]func() error, includeDetails bool) {
	details := make(map[string]string)
	allOk := true

	for name, check := range checks {
		if err := check(); err != nil {
			allOk = false
			details[name] = err.Error()
		} else {
			details[name] = "OK"
		}
	}

	response := HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
	}
	if includeDetails {
		response.Details = details
	}

	if !allOk {
		response.Status = "DOWN"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
