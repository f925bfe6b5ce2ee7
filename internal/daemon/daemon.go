// Package daemon wires the coordinator together: the directory, the port
// allocator, the registrar, the health monitor and the HTTP API server. The
// daemon owns component lifecycles; the components themselves only know their
// contracts.
package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/ojamals/mcpregd/internal/client"
	"github.com/ojamals/mcpregd/internal/config"
	"github.com/ojamals/mcpregd/internal/registry"
)

// Daemon is the long-running coordinator process.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger    hclog.Logger
	apiServer *APIServer
	monitor   *HealthMonitor
	directory *registry.Directory
	ports     *registry.PortAllocator
	registrar *registry.Registrar
}

// NewDaemon builds a Daemon from validated configuration.
func NewDaemon(logger hclog.Logger, cfg *config.Config) (*Daemon, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	directory := registry.NewDirectory()

	ports, err := registry.NewPortAllocator(cfg.Registry.PortMin, cfg.Registry.PortMax)
	if err != nil {
		return nil, fmt.Errorf("failed to create port allocator: %w", err)
	}

	caller, err := client.NewCaller(logger, cfg.Call.Timeout.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to create backend caller: %w", err)
	}

	registrar, err := registry.NewRegistrar(
		logger,
		directory,
		ports,
		caller,
		cfg.Registry.Host,
		cfg.Health.ProbeTimeout.Std(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registrar: %w", err)
	}

	monitor, err := NewHealthMonitor(logger, directory, ports, caller, MonitorConfig{
		Interval:            cfg.Health.Interval.Std(),
		ProbeTimeout:        cfg.Health.ProbeTimeout.Std(),
		ExpiryThreshold:     cfg.Health.ExpiryThreshold.Std(),
		GracePeriod:         cfg.Registry.GracePeriod.Std(),
		MaxConcurrentProbes: cfg.Health.MaxConcurrentProbes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create health monitor: %w", err)
	}

	deps, err := NewAPIDependencies(
		logger,
		directory,
		registrar,
		caller,
		cfg.API.Addr,
		cfg.Call.Timeout.Std(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble API server dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(
		deps,
		WithCORSEnabled(cfg.API.CORSEnabled),
		WithCORSAllowOrigins(cfg.API.CORSOrigins),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	return &Daemon{
		logger:    logger.Named("daemon"),
		apiServer: apiServer,
		monitor:   monitor,
		directory: directory,
		ports:     ports,
		registrar: registrar,
	}, nil
}

// StartAndManage runs the API server and the health monitor until the context
// is canceled. Either component failing stops the other.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.apiServer.Start(gctx)
	})
	g.Go(func() error {
		return d.monitor.Run(gctx)
	})

	err := g.Wait()
	if err != nil && !stdErrors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
