package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger verifies connectivity to a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface
type PingerFunc func(ctx context.Context) error

// Ping implements Pinger
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	sessionStore Pinger
	auditDB      Pinger // nil when auditing is disabled
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(sessionStore Pinger, auditDB Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		sessionStore: sessionStore,
		auditDB:      auditDB,
		logger:       logger,
	}
}

// HandleHealth handles GET /health
// Basic health check - always returns 200 if the service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteJSON(w, http.StatusOK, response)
}

// HandleReadiness handles GET /health/ready
// Readiness check - validates that the session store (and audit DB when
// configured) are reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.sessionStore.Ping(ctx); err != nil {
		h.logger.Warn("session store health check failed", zap.Error(err))
		checks["session_store"] = "unhealthy"
		allHealthy = false
	} else {
		checks["session_store"] = "healthy"
	}

	if h.auditDB != nil {
		if err := h.auditDB.Ping(ctx); err != nil {
			h.logger.Warn("audit database health check failed", zap.Error(err))
			checks["audit_database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["audit_database"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if !allHealthy {
		response.Status = "not ready"
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, response)
}
