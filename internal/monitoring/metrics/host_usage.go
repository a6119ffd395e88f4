package metrics

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/internal/telemetry"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

// cpuWindow is how long a CPU sample measures for.
const cpuWindow = time.Second

// HostSampler caches host usage samples so frequent health checks do not
// block on the CPU measurement window.
type HostSampler struct {
	mu       sync.Mutex
	interval time.Duration
	last     ports.HostUsage
	sample   func() (ports.HostUsage, error)
}

func NewHostSampler(interval time.Duration) *HostSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HostSampler{
		interval: interval,
		sample:   sampleHost,
	}
}

// HostUsage returns the cached sample, refreshing it once it is older than
// the sampling interval. A failed refresh keeps the previous values.
func (s *HostSampler) HostUsage() ports.HostUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.SampledAt.IsZero() && time.Since(s.last.SampledAt) < s.interval {
		return s.last
	}

	usage, err := s.sample()
	if err != nil {
		log := logger.WithComponent("host_sampler")
		log.Warn().Err(err).Msg("Host usage sample incomplete")
	}
	usage.SampledAt = time.Now()
	s.last = usage

	telemetry.RecordHostUsage(usage.MemoryPercent, usage.CPUPercent)
	return usage
}

func sampleHost() (ports.HostUsage, error) {
	var usage ports.HostUsage

	vm, err := mem.VirtualMemory()
	if err != nil {
		return usage, err
	}
	usage.MemoryUsed = int64(vm.Used)
	usage.MemoryPercent = vm.UsedPercent

	percents, err := cpu.Percent(cpuWindow, false)
	if err != nil {
		return usage, err
	}
	if len(percents) > 0 {
		usage.CPUPercent = percents[0]
	}
	return usage, nil
}

var _ ports.MetricsProvider = (*HostSampler)(nil)
