// Package health aggregates dependency probes for the liveness and
// readiness endpoints. The content index is the only critical component;
// Redis, Kafka and Postgres are optional and can only degrade the report.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Probe returns nil when the dependency is usable.
type Probe func(ctx context.Context) error

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type check struct {
	probe    Probe
	critical bool
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker returns a Checker that gives each probe at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: timeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a probe whose failure marks the whole service down.
func (c *Checker) Register(name string, probe Probe) {
	c.add(name, probe, true)
}

// RegisterOptional adds a probe whose failure only degrades the report.
func (c *Checker) RegisterOptional(name string, probe Probe) {
	c.add(name, probe, false)
}

func (c *Checker) add(name string, probe Probe, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{probe: probe, critical: critical}
}

// Run probes every component concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make([]check, 0, len(c.checks))
	for name, ch := range c.checks {
		names = append(names, name)
		checks = append(checks, ch)
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var g errgroup.Group
	for i := range checks {
		i := i
		g.Go(func() error {
			results[i] = c.probe(ctx, names[i], checks[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, res := range results {
		report.Components[names[i]] = res
		switch {
		case res.Status == StatusDown && res.Critical:
			report.Status = StatusDown
		case res.Status != StatusUp && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, name string, ch check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := ch.probe(ctx)
	res := ComponentHealth{
		Status:   StatusUp,
		Critical: ch.critical,
		Latency:  time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		res.Status = StatusDown
		res.Message = err.Error()
		c.logger.Warn("health probe failed", "check", name, "critical", ch.critical, "error", err)
	}
	return res
}

// Names lists the registered checks in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LiveHandler answers as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler returns 503 only when a critical component is down; a
// degraded service keeps receiving traffic.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
