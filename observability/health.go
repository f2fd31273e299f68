package observability

import (
	"context"
	"sync"
)

// HealthStatus is the state of the service or one of its components.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

var severity = map[HealthStatus]int{
	HealthStatusUp:       0,
	HealthStatusDegraded: 1,
	HealthStatusDown:     2,
}

// Health is the report of one component.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth is the body of the health endpoint. Status is the worst
// status of any component.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) Health

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// Check runs the checkers concurrently and adds their reports in argument
// order.
func (sh *ServiceHealth) Check(ctx context.Context, checkers ...HealthChecker) *ServiceHealth {
	reports := make([]Health, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() { reports[i] = c.CheckHealth(ctx) })
	}
	wg.Wait()
	for _, h := range reports {
		sh.AddComponent(h)
	}
	return sh
}

// AddComponent appends h and lowers the overall status to h's when worse.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if severity[h.Status] > severity[sh.Status] {
		sh.Status = h.Status
	}
}

func (sh *ServiceHealth) Healthy() bool { return sh.Status != HealthStatusDown }
