package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/raglinehq/ragline/internal/store"
)

// HealthStatus is the health state of a component or the whole service.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one component's result.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the payload of the health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheck

// Health aggregates dependency checks behind /healthz, /readyz and /livez.
type Health struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
}

// NewHealth creates an empty health registry.
func NewHealth(version string) *Health {
	return &Health{checks: make(map[string]HealthChecker), version: version}
}

// AddCheck registers a dependency check under name.
func (h *Health) AddCheck(name string, check HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetReady flips readiness; the server clears it while draining.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Register mounts the health endpoints on mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	mux.HandleFunc("/livez", h.handleLive)
}

func (h *Health) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]HealthChecker, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	version := h.version
	h.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(checks)),
	}
	for name, check := range checks {
		result := check(ctx)
		result.Name = name
		resp.Checks = append(resp.Checks, result)
		switch {
		case result.Status == HealthUnhealthy:
			resp.Status = HealthUnhealthy
		case result.Status == HealthDegraded && resp.Status == HealthHealthy:
			resp.Status = HealthDegraded
		}
	}

	code := http.StatusOK
	if resp.Status == HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, resp)
}

func (h *Health) handleReady(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	resp := HealthResponse{Status: HealthHealthy, Timestamp: time.Now().UTC()}
	if !ready {
		resp.Status = HealthUnhealthy
		writeHealth(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeHealth(w, http.StatusOK, resp)
}

func (h *Health) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{Status: HealthHealthy, Timestamp: time.Now().UTC()})
}

func writeHealth(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// StoreHealthChecker pings the vector store.
func StoreHealthChecker(st store.Store) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := st.Ping(ctx); err != nil {
			return HealthCheck{Status: HealthUnhealthy, Message: "store ping failed: " + err.Error()}
		}
		return HealthCheck{Status: HealthHealthy, Message: "store OK"}
	}
}

// ProviderHealthChecker reports the configured model provider. A nil probe
// marks the provider healthy by configuration alone; a failing probe only
// degrades, since cached answers may still be served.
func ProviderHealthChecker(name string, probe func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if probe == nil {
			return HealthCheck{Status: HealthHealthy, Message: "provider configured: " + name}
		}
		if err := probe(ctx); err != nil {
			return HealthCheck{Status: HealthDegraded, Message: "provider degraded: " + err.Error()}
		}
		return HealthCheck{Status: HealthHealthy, Message: "provider OK: " + name}
	}
}
