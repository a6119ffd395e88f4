package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/ports"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusOK indicates the component is healthy
	StatusOK Status = "OK"
	// StatusWarning indicates the component has issues but is still functional
	StatusWarning Status = "WARNING"
	// StatusError indicates the component is not functioning
	StatusError Status = "ERROR"
)

func (s Status) severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	default:
		return 2
	}
}

// ComponentHealth represents the health status of a system component
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	LastChecked time.Time `json:"last_checked"`
}

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) (Status, string)

// HealthChecker monitors the health of system components
type HealthChecker struct {
	components   map[string]*ComponentHealth
	checks       map[string]CheckFunc
	mu           sync.RWMutex
	checkFreq    time.Duration
	checkTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewHealthChecker(checkFreq time.Duration) *HealthChecker {
	if checkFreq == 0 {
		checkFreq = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &HealthChecker{
		components:   make(map[string]*ComponentHealth),
		checks:       make(map[string]CheckFunc),
		checkFreq:    checkFreq,
		checkTimeout: 5 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Register adds a named check. It runs on the next CheckAll.
func (hc *HealthChecker) Register(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Start begins periodic health checks
func (hc *HealthChecker) Start() {
	log := logger.WithComponent("health_checker")
	log.Info().Dur("frequency", hc.checkFreq).Msg("Starting health checker")

	ticker := time.NewTicker(hc.checkFreq)
	go func() {
		defer ticker.Stop()

		hc.CheckAll()

		for {
			select {
			case <-ticker.C:
				hc.CheckAll()
			case <-hc.ctx.Done():
				log.Info().Msg("Health checker stopped")
				return
			}
		}
	}()
}

// Stop halts the health checker
func (hc *HealthChecker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
	}
}

// CheckAll runs all health checks
func (hc *HealthChecker) CheckAll() {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		hc.run(name)
	}
}

func (hc *HealthChecker) run(name string) {
	log := logger.WithComponent("health_checker." + name)

	hc.mu.RLock()
	check := hc.checks[name]
	hc.mu.RUnlock()

	ctx, cancel := context.WithTimeout(hc.ctx, hc.checkTimeout)
	defer cancel()

	status, message := check(ctx)
	health := &ComponentHealth{
		Name:        name,
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}

	switch status {
	case StatusOK:
		log.Debug().Msg(message)
	case StatusWarning:
		log.Warn().Msg(message)
	default:
		log.Error().Msg(message)
	}

	hc.mu.Lock()
	hc.components[name] = health
	hc.mu.Unlock()
}

// GetAllHealth returns the health status of all components
func (hc *HealthChecker) GetAllHealth() map[string]*ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(hc.components))
	for k, v := range hc.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// Overall returns the worst status across checked components. Before the
// first check it reports OK.
func (hc *HealthChecker) Overall() Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	overall := StatusOK
	for _, c := range hc.components {
		if c.Status.severity() > overall.severity() {
			overall = c.Status
		}
	}
	return overall
}

// Pinger is implemented by sandbox backends that can report on their daemon.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// BackendCheck reports whether the sandbox backend answers.
func BackendCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (Status, string) {
		if p == nil {
			return StatusError, "Sandbox backend not initialized"
		}
		desc, err := p.Ping(ctx)
		if err != nil {
			return StatusError, err.Error()
		}
		return StatusOK, desc
	}
}

// Thresholds are the host usage percentages at which SystemCheck warns.
type Thresholds struct {
	MemoryPercent float64
	CPUPercent    float64
}

// SystemCheck warns when host memory or CPU usage reaches its threshold.
// A zero threshold disables that comparison.
func SystemCheck(provider ports.MetricsProvider, limits Thresholds) CheckFunc {
	return func(context.Context) (Status, string) {
		usage := provider.HostUsage()
		message := fmt.Sprintf("memory used %d MiB (%.1f%%), cpu %.1f%%",
			usage.MemoryUsed>>20, usage.MemoryPercent, usage.CPUPercent)

		var high []string
		if limits.MemoryPercent > 0 && usage.MemoryPercent >= limits.MemoryPercent {
			high = append(high, "memory")
		}
		if limits.CPUPercent > 0 && usage.CPUPercent >= limits.CPUPercent {
			high = append(high, "cpu")
		}
		if len(high) > 0 {
			return StatusWarning, "high " + strings.Join(high, " and ") + " usage: " + message
		}
		return StatusOK, message
	}
}
