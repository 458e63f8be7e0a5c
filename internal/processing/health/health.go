// Package health provides consumer health monitoring and status reporting.
package health

import "github.com/nypl/cancel-request-consumer/internal/core/domain"

// SystemStatus represents the overall health state of the consumer.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// HealthReport contains the full consumer health report.
type HealthReport struct {
	SystemStatus        SystemStatus        `json:"system_status"`
	StreamConnected     bool                `json:"stream_connected"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	BatchesHandled      int                 `json:"batches_handled"`
	LastBatch           *domain.BatchStatus `json:"last_batch,omitempty"`
}
