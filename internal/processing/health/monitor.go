package health

import (
	"sync"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
)

// criticalFailures is the number of consecutive failed batches that marks the consumer critical.
const criticalFailures = 5

// Monitor tracks batch outcomes and stream connectivity.
type Monitor struct {
	connected func() bool

	mu                  sync.RWMutex
	last                *domain.BatchStatus
	handled             int
	consecutiveFailures int
}

// NewMonitor creates a new health monitor. connected may be nil.
func NewMonitor(connected func() bool) *Monitor {
	return &Monitor{connected: connected}
}

// RecordBatch stores the outcome of a handled batch.
func (m *Monitor) RecordBatch(status domain.BatchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = &status
	m.handled++
	if status.Error != "" {
		m.consecutiveFailures++
	} else {
		m.consecutiveFailures = 0
	}
}

// CheckHealth builds the current health report.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := HealthReport{
		SystemStatus:        StatusHealthy,
		StreamConnected:     m.connected == nil || m.connected(),
		ConsecutiveFailures: m.consecutiveFailures,
		BatchesHandled:      m.handled,
	}
	if m.last != nil {
		last := *m.last
		report.LastBatch = &last
	}

	switch {
	case !report.StreamConnected || m.consecutiveFailures >= criticalFailures:
		report.SystemStatus = StatusCritical
	case m.consecutiveFailures > 0:
		report.SystemStatus = StatusDegraded
	}
	return report
}
