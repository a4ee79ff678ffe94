// Package health aggregates component checks into a single report.
package health

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates that a storage backend failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	stores  map[string]Pinger
	models  map[string]ModelChecker
	timeout time.Duration
}

// New creates a Service. stores are required backends ("vectors",
// "catalog"); a failing store makes the report unhealthy. models may be nil.
func New(stores map[string]Pinger, models map[string]ModelChecker) *Service {
	return &Service{stores: stores, models: models, timeout: DefaultCheckTimeout}
}

// Check runs every component check concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.stores)+len(s.models))
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	for _, name := range slices.Sorted(maps.Keys(s.stores)) {
		run(name, s.stores[name].Ping)
	}
	for _, name := range slices.Sorted(maps.Keys(s.models)) {
		run(name, s.models[name].HealthCheck)
	}
	wg.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if _, store := s.stores[name]; store {
			status = Unhealthy
			break
		}
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
