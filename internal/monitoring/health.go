// Package monitoring evaluates dependency health for the readiness endpoint.
package monitoring

import (
	"context"
	"errors"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results.
type HealthReport struct {
	Status ProbeStatus   `json:"status"`
	Checks []ProbeResult `json:"checks"`
}

// Healthy reports whether the service can take traffic. Degraded still counts.
func (r HealthReport) Healthy() bool {
	return r.Status != StatusDown
}

// Check is a single dependency probe. A failing non-critical check only degrades
// the report.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// HealthManager runs the registered checks.
type HealthManager struct {
	checks  []Check
	timeout time.Duration
}

// NewHealthManager constructs a manager; each check gets timeout (default 2s).
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthManager{timeout: timeout}
}

// Register appends a check. Checks without a name or function are ignored.
func (m *HealthManager) Register(check Check) {
	if check.Name == "" || check.Run == nil {
		return
	}
	m.checks = append(m.checks, check)
}

// Evaluate executes all checks sequentially.
func (m *HealthManager) Evaluate(ctx context.Context) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}

	report := HealthReport{
		Status: StatusUp,
		Checks: make([]ProbeResult, 0, len(m.checks)),
	}

	for _, check := range m.checks {
		result := m.run(ctx, check)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (m *HealthManager) run(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	result.Component = check.Name

	defer func() {
		if rec := recover(); rec != nil {
			result.Status = failedStatus(check, nil)
			result.Details = "panic recovered"
		}
		result.Duration = time.Since(start)
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := check.Run(probeCtx)
	if err == nil {
		result.Status = StatusUp
		return result
	}
	result.Status = failedStatus(check, err)
	result.Details = err.Error()
	return result
}

// failedStatus maps a failure onto a status. Timeouts of critical checks degrade.
func failedStatus(check Check, err error) ProbeStatus {
	if !check.Critical {
		return StatusDegraded
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusDegraded
	}
	return StatusDown
}
