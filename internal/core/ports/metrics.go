package ports

import "time"

// HostUsage is one sample of the resources used on the provisioner host.
type HostUsage struct {
	MemoryUsed    int64
	MemoryPercent float64
	CPUPercent    float64
	SampledAt     time.Time
}

// MetricsProvider reports resource usage of the provisioner host.
type MetricsProvider interface {
	HostUsage() HostUsage
}
