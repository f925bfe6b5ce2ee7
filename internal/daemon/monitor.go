package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

// HealthMonitor drives the liveness state machine for registered backends.
// Every interval it probes all healthy and unhealthy records concurrently,
// applies state transitions, and sweeps expired records whose grace period
// has passed.
type HealthMonitor struct {
	logger    hclog.Logger
	directory contracts.Directory
	ports     contracts.PortAllocator
	caller    contracts.BackendCaller

	interval        time.Duration
	probeTimeout    time.Duration
	expiryThreshold time.Duration
	gracePeriod     time.Duration
	maxProbes       int
}

// MonitorConfig carries the monitor's timing knobs.
type MonitorConfig struct {
	// Interval between probe cycles.
	Interval time.Duration

	// ProbeTimeout bounds each individual probe. Must be below Interval so a
	// cycle cannot outlast its slot.
	ProbeTimeout time.Duration

	// ExpiryThreshold is how long a record may stay unhealthy before expiring.
	ExpiryThreshold time.Duration

	// GracePeriod is how long an expired record lingers before removal frees
	// its name and port.
	GracePeriod time.Duration

	// MaxConcurrentProbes caps probe parallelism per cycle.
	MaxConcurrentProbes int
}

// NewHealthMonitor creates a HealthMonitor.
func NewHealthMonitor(
	logger hclog.Logger,
	directory contracts.Directory,
	ports contracts.PortAllocator,
	caller contracts.BackendCaller,
	cfg MonitorConfig,
) (*HealthMonitor, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if directory == nil || reflect.ValueOf(directory).IsNil() {
		return nil, fmt.Errorf("directory cannot be nil")
	}
	if ports == nil || reflect.ValueOf(ports).IsNil() {
		return nil, fmt.Errorf("port allocator cannot be nil")
	}
	if caller == nil || reflect.ValueOf(caller).IsNil() {
		return nil, fmt.Errorf("backend caller cannot be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.ProbeTimeout <= 0 || cfg.ProbeTimeout >= cfg.Interval {
		return nil, fmt.Errorf("probe timeout must be positive and below the interval, got %v", cfg.ProbeTimeout)
	}
	if cfg.ExpiryThreshold <= 0 {
		return nil, fmt.Errorf("expiry threshold must be positive, got %v", cfg.ExpiryThreshold)
	}
	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period cannot be negative, got %v", cfg.GracePeriod)
	}
	if cfg.MaxConcurrentProbes <= 0 {
		return nil, fmt.Errorf("max concurrent probes must be positive, got %v", cfg.MaxConcurrentProbes)
	}

	return &HealthMonitor{
		logger:          logger.Named("monitor"),
		directory:       directory,
		ports:           ports,
		caller:          caller,
		interval:        cfg.Interval,
		probeTimeout:    cfg.ProbeTimeout,
		expiryThreshold: cfg.ExpiryThreshold,
		gracePeriod:     cfg.GracePeriod,
		maxProbes:       cfg.MaxConcurrentProbes,
	}, nil
}

// Run executes probe cycles until the context is canceled.
func (m *HealthMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Starting health monitor",
		"interval", m.interval,
		"probe_timeout", m.probeTimeout,
		"expiry_threshold", m.expiryThreshold,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes a single probe-and-sweep cycle.
func (m *HealthMonitor) RunCycle(ctx context.Context) {
	m.probeAll(ctx)
	m.expireStale()
	m.sweepExpired()
}

// probeAll probes every routable record concurrently, bounded by maxProbes.
func (m *HealthMonitor) probeAll(ctx context.Context) {
	records := m.directory.List(domain.StateHealthy, domain.StateUnhealthy)
	if len(records) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxProbes)

	for _, rec := range records {
		g.Go(func() error {
			m.probe(gctx, rec.Name, rec.Address)
			return nil
		})
	}

	// Probes report failure through state transitions, never as errors.
	_ = g.Wait()
}

// probe pings one backend and applies the resulting transition.
func (m *HealthMonitor) probe(ctx context.Context, name, addr string) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	started := time.Now()
	pingErr := m.caller.Ping(probeCtx, addr)
	latency := time.Since(started)

	err := m.directory.Update(name, func(rec *domain.ServerRecord) error {
		now := time.Now().UTC()
		rec.LastChecked = &now

		if pingErr != nil {
			if rec.State == domain.StateHealthy {
				m.logger.Warn("Backend became unhealthy", "server", name, "error", pingErr)
				rec.State = domain.StateUnhealthy
				rec.UnhealthySince = &now
			}
			return nil
		}

		if rec.State == domain.StateUnhealthy {
			m.logger.Info("Backend recovered", "server", name)
		}
		rec.State = domain.StateHealthy
		rec.UnhealthySince = nil
		rec.LastSuccessful = &now
		rec.Latency = &latency

		return nil
	})
	// A record deregistered mid-probe is not an error; the late result is
	// simply discarded.
	if err != nil && !stdErrors.Is(err, errors.ErrUnknownServer) {
		m.logger.Error("Failed to record probe result", "server", name, "error", err)
	}
}

// expireStale transitions records unhealthy beyond the threshold to expired.
func (m *HealthMonitor) expireStale() {
	for _, rec := range m.directory.List(domain.StateUnhealthy) {
		if rec.UnhealthySince == nil || time.Since(*rec.UnhealthySince) < m.expiryThreshold {
			continue
		}

		name := rec.Name
		err := m.directory.Update(name, func(r *domain.ServerRecord) error {
			// A heartbeat may have recovered the record since listing.
			if r.State != domain.StateUnhealthy || r.UnhealthySince == nil {
				return nil
			}
			if time.Since(*r.UnhealthySince) < m.expiryThreshold {
				return nil
			}

			now := time.Now().UTC()
			r.State = domain.StateExpired
			r.ExpiredAt = &now
			m.logger.Warn("Backend expired", "server", name, "unhealthy_since", r.UnhealthySince)

			return nil
		})
		if err != nil && !stdErrors.Is(err, errors.ErrUnknownServer) {
			m.logger.Error("Failed to expire record", "server", name, "error", err)
		}
	}
}

// sweepExpired removes expired records past the grace period, freeing their
// names and ports for reuse.
func (m *HealthMonitor) sweepExpired() {
	for _, rec := range m.directory.List(domain.StateExpired) {
		if rec.ExpiredAt == nil || time.Since(*rec.ExpiredAt) < m.gracePeriod {
			continue
		}

		// A re-registration may have taken over the name since listing; only
		// remove the record while it is still expired and past grace.
		removed, err := m.directory.RemoveIf(rec.Name, func(r *domain.ServerRecord) error {
			if r.State != domain.StateExpired || r.ExpiredAt == nil || time.Since(*r.ExpiredAt) < m.gracePeriod {
				return fmt.Errorf("record for %s is no longer sweepable", rec.Name)
			}
			return nil
		})
		if err != nil {
			continue
		}
		m.ports.Release(removed.Port)
		m.logger.Info("Swept expired backend", "server", removed.Name, "port", removed.Port)
	}
}
