package health

import (
	"context"
	"time"
)

const defaultTimeout = 5 * time.Second

// Pinger is a backend that can be pinged, like the MongoDB adapter or the
// Redis rate limiter.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Check is a named check of one dependency.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
	// Timeout bounds the check, 5s when zero.
	Timeout time.Duration
	// Optional marks dependencies the service can serve without. Their
	// failures report degraded and keep the service ready.
	Optional bool
}

// PingCheck pings p.
func PingCheck(name string, p Pinger) Check {
	return Check{Name: name, Run: p.HealthCheck}
}

func (c Check) run(ctx context.Context) CheckResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Run(ctx)
	result := CheckResult{
		Name:      c.Name,
		Status:    StatusHealthy,
		Optional:  c.Optional,
		Timestamp: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		if c.Optional {
			result.Status = StatusDegraded
		}
		result.Error = err.Error()
	}
	return result
}
