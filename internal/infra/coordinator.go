package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/circuitbreaker"
)

type registeredService struct {
	reg     ServiceRegistration
	runtime ServiceRuntime
	breaker *circuitbreaker.Breaker
}

// Coordinator is the service registry backing the infrastructure
// coordinator: dependency-ordered initialization, per-service circuit
// breakers, health aggregation, bounded restart, and shutdown.
type Coordinator struct {
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	services map[string]*registeredService
	order    []string // dependency-resolved init order, set by InitializeAll
}

// New builds a Coordinator.
func New(cfg Config, log zerolog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:      cfg,
		log:      log.With().Str("service", "infrastructure_coordinator").Logger(),
		services: make(map[string]*registeredService),
	}, nil
}

// Register adds a service to the registry. It must be called before
// InitializeAll.
func (c *Coordinator) Register(reg ServiceRegistration) error {
	if reg.Name == "" {
		return apperr.New(apperr.ValidationError, "infra.Coordinator.Register", infraErr("service name must not be empty"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[reg.Name]; exists {
		return apperr.New(apperr.ValidationError, "infra.Coordinator.Register", infraErr("service already registered"))
	}

	c.services[reg.Name] = &registeredService{
		reg:     reg,
		runtime: ServiceRuntime{Status: StatusStopped},
		breaker: circuitbreaker.New(c.cfg.CircuitBreaker),
	}
	return nil
}

// InitializeAll resolves a dependency order via Kahn's algorithm
// (leaves — services with no unresolved dependency — first, ties
// broken by service name) and runs each service's Init hook in
// that order.
func (c *Coordinator) InitializeAll(ctx context.Context) error {
	c.mu.Lock()
	order, err := c.resolveOrderLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.order = order
	c.mu.Unlock()

	for _, name := range order {
		c.mu.RLock()
		svc := c.services[name]
		c.mu.RUnlock()

		if svc.reg.Init != nil {
			if err := svc.reg.Init(ctx); err != nil {
				c.mu.Lock()
				svc.runtime.Status = StatusUnhealthy
				svc.runtime.ErrorCount++
				c.mu.Unlock()
				return apperr.New(apperr.ServiceUnavailable, "infra.Coordinator.InitializeAll", err)
			}
		}

		c.mu.Lock()
		svc.runtime.Status = StatusHealthy
		svc.runtime.StartedAt = time.Now()
		c.mu.Unlock()
	}
	return nil
}

// resolveOrderLocked must be called with c.mu held.
func (c *Coordinator) resolveOrderLocked() ([]string, error) {
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)

	remaining := make(map[string][]string, len(names))
	for _, name := range names {
		remaining[name] = append([]string(nil), c.services[name].reg.Dependencies...)
	}

	var order []string
	resolved := make(map[string]bool, len(names))
	for len(order) < len(names) {
		progressed := false
		for _, name := range names {
			if resolved[name] {
				continue
			}
			ready := true
			for _, dep := range remaining[name] {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, name)
				resolved[name] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, apperr.New(apperr.ConfigError, "infra.Coordinator.resolveOrderLocked", infraErr("service dependency graph has a cycle or missing dependency"))
		}
	}
	return order, nil
}

// CheckHealth runs every registered service's health check (gated by
// its circuit breaker), updates its runtime state, and returns an
// aggregated snapshot including the process resource report.
func (c *Coordinator) CheckHealth(ctx context.Context) HealthSnapshot {
	c.mu.Lock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)

	services := make(map[string]ServiceRuntime, len(names))
	for _, name := range names {
		c.mu.Lock()
		svc := c.services[name]
		c.mu.Unlock()

		var checkErr error
		if svc.breaker.Allow() {
			if svc.reg.HealthCheck != nil {
				checkErr = svc.reg.HealthCheck(ctx)
			}
			if checkErr != nil {
				svc.breaker.RecordFailure()
			} else {
				svc.breaker.RecordSuccess()
			}
		} else {
			checkErr = infraErr("circuit breaker open")
		}

		c.mu.Lock()
		if checkErr != nil {
			svc.runtime.Status = StatusUnhealthy
			svc.runtime.ErrorCount++
		} else if svc.runtime.Status != StatusStopped {
			svc.runtime.Status = StatusHealthy
		}
		svc.runtime.LastCheck = time.Now()
		if !svc.runtime.StartedAt.IsZero() {
			svc.runtime.Uptime = time.Since(svc.runtime.StartedAt)
		}
		services[name] = svc.runtime
		c.mu.Unlock()
	}

	return HealthSnapshot{
		Overall:  aggregateHealth(c.servicesWithPriority(), services),
		Services: services,
		Process:  collectProcessReport(c.cfg.DataDir),
		At:       time.Now(),
	}
}

func (c *Coordinator) servicesWithPriority() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.services))
	for name, svc := range c.services {
		out[name] = svc.reg.Priority
	}
	return out
}

// aggregateHealth implements: unhealthy if any priority<=2 service is
// unhealthy; degraded if any service is unhealthy or the degraded
// count exceeds the healthy count; healthy otherwise.
func aggregateHealth(priorities map[string]int, services map[string]ServiceRuntime) ServiceStatus {
	var healthy, degraded, unhealthy int
	criticalUnhealthy := false
	for name, rt := range services {
		switch rt.Status {
		case StatusHealthy:
			healthy++
		case StatusDegraded:
			degraded++
		case StatusUnhealthy:
			unhealthy++
			if priorities[name] <= 2 {
				criticalUnhealthy = true
			}
		}
	}
	if criticalUnhealthy {
		return StatusUnhealthy
	}
	if unhealthy > 0 || degraded > healthy {
		return StatusDegraded
	}
	return StatusHealthy
}

// RestartService re-runs a service's Init hook, bounded by
// max_restart_attempts.
func (c *Coordinator) RestartService(ctx context.Context, name string) error {
	c.mu.Lock()
	svc, ok := c.services[name]
	if !ok {
		c.mu.Unlock()
		return apperr.New(apperr.NotFound, "infra.Coordinator.RestartService", nil)
	}
	if svc.runtime.RestartCount >= c.cfg.MaxRestartAttempts {
		c.mu.Unlock()
		return apperr.New(apperr.RateLimitExceeded, "infra.Coordinator.RestartService", infraErr("max_restart_attempts exceeded"))
	}
	c.mu.Unlock()

	if svc.reg.Init != nil {
		if err := svc.reg.Init(ctx); err != nil {
			c.mu.Lock()
			svc.runtime.RestartCount++
			svc.runtime.ErrorCount++
			svc.runtime.Status = StatusUnhealthy
			c.mu.Unlock()
			return apperr.New(apperr.ServiceUnavailable, "infra.Coordinator.RestartService", err)
		}
	}

	c.mu.Lock()
	svc.runtime.RestartCount++
	svc.runtime.Status = StatusHealthy
	svc.runtime.ErrorCount = 0
	svc.runtime.StartedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Shutdown marks every service stopped, in reverse initialization
// order, bounded by shutdown_timeout_seconds.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	c.mu.RLock()
	order := append([]string(nil), c.order...)
	c.mu.RUnlock()
	if len(order) == 0 {
		c.mu.RLock()
		for name := range c.services {
			order = append(order, name)
		}
		c.mu.RUnlock()
		sort.Strings(order)
	}

	for i := len(order) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			return apperr.New(apperr.Timeout, "infra.Coordinator.Shutdown", ctx.Err())
		default:
		}
		c.mu.Lock()
		if svc, ok := c.services[order[i]]; ok {
			svc.runtime.Status = StatusStopped
		}
		c.mu.Unlock()
	}
	return nil
}

// Service returns a copy of one service's current runtime state.
func (c *Coordinator) Service(name string) (ServiceRuntime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[name]
	if !ok {
		return ServiceRuntime{}, false
	}
	return svc.runtime, true
}

type infraErr string

func (e infraErr) Error() string { return string(e) }
