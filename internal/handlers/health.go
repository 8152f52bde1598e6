package handlers

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/artfolio/artfolio/internal/storage"
)

// HealthHandler reports service health for load balancers and monitoring.
type HealthHandler struct {
	db      *gorm.DB
	backend storage.Backend
	version string
}

func NewHealthHandler(db *gorm.DB, backend storage.Backend, version string) *HealthHandler {
	return &HealthHandler{db: db, backend: backend, version: version}
}

type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Checks  map[string]Check `json:"checks"`
	Uptime  string           `json:"uptime,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

var startTime = time.Now()

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"storage":  h.checkStorage(r.Context()),
	}

	overallStatus := "healthy"
	for _, c := range checks {
		if c.Status != "healthy" {
			overallStatus = "unhealthy"
		}
	}

	response := HealthResponse{
		Status:  overallStatus,
		Version: h.version,
		Checks:  checks,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	start := time.Now()

	sqlDB, err := h.db.DB()
	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}

	return Check{
		Status:  "healthy",
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}
}

func (h *HealthHandler) checkStorage(ctx context.Context) Check {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.backend.HealthCheck(ctx); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}

	return Check{
		Status:  "healthy",
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}
}
