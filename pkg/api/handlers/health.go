// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/goclaw/sigmux/pkg/api/models"
	"github.com/goclaw/sigmux/pkg/api/response"
	"github.com/goclaw/sigmux/pkg/signals"
	"github.com/goclaw/sigmux/pkg/version"
)

// StatusSource exposes the live dispatcher state the probes report on.
type StatusSource interface {
	Healthy() bool
	Stats() map[signals.Kind]int
}

// StatusFuncs adapts plain functions to a StatusSource. The signals
// package-level Healthy and Stats functions slot in directly.
type StatusFuncs struct {
	HealthyFunc func() bool
	StatsFunc   func() map[signals.Kind]int
}

func (s StatusFuncs) Healthy() bool {
	if s.HealthyFunc == nil {
		return false
	}
	return s.HealthyFunc()
}

func (s StatusFuncs) Stats() map[signals.Kind]int {
	if s.StatsFunc == nil {
		return nil
	}
	return s.StatsFunc()
}

// HealthHandler handles the liveness, readiness and status endpoints.
type HealthHandler struct {
	source  StatusSource
	service string
	started time.Time
}

// NewHealthHandler creates a health handler reporting on the given source.
func NewHealthHandler(source StatusSource, service string) *HealthHandler {
	return &HealthHandler{
		source:  source,
		service: service,
		started: time.Now(),
	}
}

// Health handles the /healthz endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthy() {
		response.JSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
		return
	}
	response.JSON(w, http.StatusServiceUnavailable, models.HealthResponse{Status: "unhealthy"})
}

// Ready handles the /readyz endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.healthy() {
		response.JSON(w, http.StatusOK, models.ReadyResponse{Ready: true})
		return
	}
	response.JSON(w, http.StatusServiceUnavailable, models.ReadyResponse{Ready: false})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	subscribers := make(map[string]int)
	if h.source != nil {
		for kind, count := range h.source.Stats() {
			subscribers[kind.String()] = count
		}
	}

	supported := signals.Supported()
	kinds := make([]string, 0, len(supported))
	for _, kind := range supported {
		kinds = append(kinds, kind.String())
	}

	response.JSON(w, http.StatusOK, models.StatusResponse{
		Service:        h.service,
		Version:        version.Version,
		Commit:         version.GitCommit,
		GoVersion:      version.GoVersion,
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		Healthy:        h.healthy(),
		Subscribers:    subscribers,
		SupportedKinds: kinds,
	})
}

func (h *HealthHandler) healthy() bool {
	return h.source != nil && h.source.Healthy()
}
