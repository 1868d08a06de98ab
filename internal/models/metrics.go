package models

import "time"

// SystemMetrics is a JSON snapshot of the in-process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GatewayCalls             uint64    `json:"gateway_calls"`
	AverageGatewayDurationMs float64   `json:"average_gateway_duration_ms"`
	DeletedItems             uint64    `json:"deleted_items"`
	FailedItems              uint64    `json:"failed_items"`
	BatchesCompleted         uint64    `json:"batches_completed"`
	QueueDepth               int       `json:"queue_depth"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
