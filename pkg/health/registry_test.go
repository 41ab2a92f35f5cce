package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pinger struct {
	err   error
	delay time.Duration
}

func (p pinger) HealthCheck(ctx context.Context) error {
	select {
	case <-time.After(p.delay):
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func optional(c Check) Check {
	c.Optional = true
	return c
}

func TestRegistry_Check(t *testing.T) {
	down := pinger{err: errors.New("no reachable servers")}

	tests := []struct {
		name      string
		checks    []Check
		want      Status
		wantReady bool
	}{
		{name: "no checks", want: StatusHealthy, wantReady: true},
		{
			name:      "all healthy",
			checks:    []Check{PingCheck("mongodb", pinger{}), PingCheck("redis", pinger{})},
			want:      StatusHealthy,
			wantReady: true,
		},
		{
			name:   "required failing",
			checks: []Check{PingCheck("mongodb", down), optional(PingCheck("redis", pinger{}))},
			want:   StatusUnhealthy,
		},
		{
			name:      "optional failing",
			checks:    []Check{PingCheck("mongodb", pinger{}), optional(PingCheck("redis", down))},
			want:      StatusDegraded,
			wantReady: true,
		},
		{
			name:   "both failing",
			checks: []Check{optional(PingCheck("redis", down)), PingCheck("mongodb", down)},
			want:   StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, c := range tt.checks {
				r.Register(c)
			}
			got := r.Check(context.Background())
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
			if got.Ready() != tt.wantReady {
				t.Fatalf("Ready() = %v, want %v", got.Ready(), tt.wantReady)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Fatalf("got %d results, want %d", len(got.Checks), len(tt.checks))
			}
			for i := 1; i < len(got.Checks); i++ {
				if got.Checks[i-1].Name > got.Checks[i].Name {
					t.Fatalf("results not sorted: %+v", got.Checks)
				}
			}
		})
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(PingCheck("mongodb", pinger{err: errors.New("down")}))
	r.Register(PingCheck("mongodb", pinger{}))

	got := r.Check(context.Background())
	if len(got.Checks) != 1 || got.Status != StatusHealthy {
		t.Fatalf("report = %+v", got)
	}
}

func TestCheck_Timeout(t *testing.T) {
	c := PingCheck("mongodb", pinger{delay: time.Second})
	c.Timeout = 20 * time.Millisecond

	res := c.run(context.Background())
	if res.Status != StatusUnhealthy || res.Error != context.DeadlineExceeded.Error() {
		t.Fatalf("result = %+v, want unhealthy on deadline", res)
	}
	if res.Duration >= time.Second {
		t.Fatalf("check ran %v, timeout not applied", res.Duration)
	}
}
