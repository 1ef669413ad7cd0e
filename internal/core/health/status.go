package health

import "time"

const (
	StatusUp       = "UP"
	StatusDegraded = "DEGRADED"
)

// Dependency is the outcome of one readiness probe.
type Dependency struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status captures the state of the gateway at a moment in time.
type Status struct {
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	Environment  string       `json:"environment"`
	Status       string       `json:"status"`
	StartedAt    time.Time    `json:"startedAt"`
	Uptime       string       `json:"uptime"`
	UptimeSecs   int64        `json:"uptimeSeconds"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Healthy reports whether every dependency answered.
func (s Status) Healthy() bool {
	return s.Status == StatusUp
}
