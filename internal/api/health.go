package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool; Redis is adapted through PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DependencyCheck is one backing service probed by readiness. A failing
// critical dependency makes the instance unready; any other failure only
// degrades it.
type DependencyCheck struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type HealthHandler struct {
	checks  []DependencyCheck
	timeout time.Duration
	env     string
	version string
}

func NewHealthHandler(env, version string, checks ...DependencyCheck) *HealthHandler {
	live := make([]DependencyCheck, 0, len(checks))
	for _, c := range checks {
		if c.Pinger != nil {
			live = append(live, c)
		}
	}
	return &HealthHandler{checks: live, timeout: time.Second, env: env, version: version}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type DependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
}

type ReadinessResponse struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version,omitempty"`
	Env          string                      `json:"env,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness pings every dependency in parallel. With Redis down bookings fail
// but reads still work, so it is wired as non-critical.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	results := make([]DependencyStatus, len(h.checks))

	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func(i int, p Pinger) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
			defer cancel()

			start := time.Now()
			status := "ok"
			if err := p.Ping(ctx); err != nil {
				status = "down"
			}
			results[i] = DependencyStatus{Status: status, LatencyMS: time.Since(start).Milliseconds()}
		}(i, c.Pinger)
	}
	wg.Wait()

	resp := ReadinessResponse{
		Status:       "ok",
		Version:      h.version,
		Env:          h.env,
		Dependencies: make(map[string]DependencyStatus, len(h.checks)),
	}
	for i, c := range h.checks {
		resp.Dependencies[c.Name] = results[i]
		if results[i].Status == "ok" {
			continue
		}
		if c.Critical {
			resp.Status = "error"
		} else if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
