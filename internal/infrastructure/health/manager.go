// Package health aggregates component checks for the /healthz endpoint
package health

import (
	"sort"
	"sync"

	"leverage_planner/internal/core"
)

// Manager aggregates health status from the planner's components
type Manager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewManager creates a health manager. A nil logger disables logging of
// failed checks.
func NewManager(logger core.ILogger) *Manager {
	m := &Manager{checks: make(map[string]func() error)}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds or replaces the check for a component
func (m *Manager) Register(component string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// Report is the outcome of running every check
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Check runs every registered check
func (m *Manager) Check() Report {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]func() error, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()
	sort.Strings(names)

	report := Report{Healthy: true, Components: make(map[string]string, len(names))}
	for _, name := range names {
		if err := checks[name](); err != nil {
			report.Healthy = false
			report.Components[name] = "unhealthy: " + err.Error()
			if m.logger != nil {
				m.logger.Warn("Health check failed", "check", name, "error", err)
			}
			continue
		}
		report.Components[name] = "healthy"
	}
	return report
}

// IsHealthy reports whether every check passes
func (m *Manager) IsHealthy() bool {
	return m.Check().Healthy
}
