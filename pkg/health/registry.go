// Package health aggregates readiness checks of the service's dependencies.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Optional  bool          `json:"optional,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Report is the outcome of every registered check, sorted by name.
type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Ready reports whether every required check passed.
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Registry holds the checks run for readiness.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds c, replacing any check of the same name.
func (r *Registry) Register(c Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[c.Name] = c
}

// Check runs every check concurrently. The report is unhealthy when a
// required check fails and degraded when only optional ones do.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checks := make([]Check, 0, len(r.checks))
	for _, c := range r.checks {
		checks = append(checks, c)
	}
	r.mu.RUnlock()

	start := time.Now()
	p := pool.NewWithResults[CheckResult]()
	for _, c := range checks {
		p.Go(func() CheckResult { return c.run(ctx) })
	}
	results := p.Wait()
	slices.SortFunc(results, func(a, b CheckResult) int { return strings.Compare(a.Name, b.Name) })

	report := Report{Status: StatusHealthy, Checks: results, Timestamp: start}
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case res.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	report.Duration = time.Since(start)
	return report
}
