package health

import (
	"context"
	"time"

	corehealth "selsup/crptgateway/internal/core/health"
)

const checkTimeout = 2 * time.Second

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Checker probes one dependency, e.g. the audit database.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.Label }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	startedAt time.Time
	checkers  []Checker
}

func NewService(meta Metadata, checkers ...Checker) *Service {
	return &Service{
		meta:      meta,
		startedAt: time.Now().UTC(),
		checkers:  checkers,
	}
}

// Status returns the current availability snapshot. A failing checker
// degrades the gateway without taking it down.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      corehealth.StatusUp,
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	for _, checker := range s.checkers {
		dep := corehealth.Dependency{Name: checker.Name(), Status: corehealth.StatusUp}
		if err := probe(ctx, checker); err != nil {
			dep.Status = corehealth.StatusDegraded
			dep.Error = err.Error()
			status.Status = corehealth.StatusDegraded
		}
		status.Dependencies = append(status.Dependencies, dep)
	}
	return status
}

func probe(ctx context.Context, checker Checker) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return checker.Check(ctx)
}
