// Package infra implements the infrastructure coordinator (C11): a
// service registry with dependency-ordered initialization, per-service
// circuit breakers, health aggregation, bounded restart, and a
// process-level resource report.
package infra

import (
	"context"
	"time"
)

// ServiceStatus is one service's current operational state.
type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusDegraded  ServiceStatus = "degraded"
	StatusUnhealthy ServiceStatus = "unhealthy"
	StatusStopped   ServiceStatus = "stopped"
)

// InitFunc performs one-time service startup.
type InitFunc func(ctx context.Context) error

// HealthCheckFunc reports whether a service is currently healthy.
type HealthCheckFunc func(ctx context.Context) error

// ServiceRegistration describes one service's place in the registry:
// its dependencies (by name), its priority (1 = highest, used for
// health-aggregation severity), whether it is eligible for automatic
// restart, and its optional init/health hooks.
type ServiceRegistration struct {
	Name         string
	Dependencies []string
	Priority     int
	AutoRecovery bool
	Init         InitFunc
	HealthCheck  HealthCheckFunc
}

// ServiceRuntime is the registry's live view of one service.
type ServiceRuntime struct {
	Status       ServiceStatus
	LastCheck    time.Time
	StartedAt    time.Time
	Uptime       time.Duration
	ErrorCount   int
	RestartCount int
}

// ProcessReport is the gopsutil-sourced process resource snapshot
// attached to every health check.
type ProcessReport struct {
	CPUPercent            float64
	RSSBytes              uint64
	OpenFDs               int
	DataDirDiskUsedBytes  uint64
	DataDirDiskTotalBytes uint64
}

// HealthSnapshot is the coordinator's full health aggregation: the
// overall verdict, the per-service table, and the process report.
type HealthSnapshot struct {
	Overall  ServiceStatus
	Services map[string]ServiceRuntime
	Process  ProcessReport
	At       time.Time
}
