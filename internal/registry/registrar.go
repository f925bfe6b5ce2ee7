package registry

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

// serverNamePattern restricts registered names so they are safe in URL paths.
var serverNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Registrar admits, refreshes and removes backend registrations, coordinating
// the Directory and the PortAllocator. It is the only component that creates
// or destroys records; liveness mutations after admission belong to the
// health monitor and to backend heartbeats, both of which go through the same
// Directory operations.
type Registrar struct {
	logger       hclog.Logger
	directory    contracts.Directory
	ports        contracts.PortAllocator
	caller       contracts.BackendCaller
	defaultHost  string
	probeTimeout time.Duration
}

// NewRegistrar creates a Registrar over the given directory and allocator.
// The caller is used for the synchronous admission probe.
func NewRegistrar(
	logger hclog.Logger,
	directory contracts.Directory,
	ports contracts.PortAllocator,
	caller contracts.BackendCaller,
	defaultHost string,
	probeTimeout time.Duration,
) (*Registrar, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if directory == nil {
		return nil, fmt.Errorf("directory cannot be nil")
	}
	if ports == nil {
		return nil, fmt.Errorf("port allocator cannot be nil")
	}
	if caller == nil {
		return nil, fmt.Errorf("backend caller cannot be nil")
	}
	if strings.TrimSpace(defaultHost) == "" {
		return nil, fmt.Errorf("default host cannot be empty")
	}
	if probeTimeout <= 0 {
		return nil, fmt.Errorf("probe timeout must be positive, got %v", probeTimeout)
	}

	return &Registrar{
		logger:       logger.Named("registrar"),
		directory:    directory,
		ports:        ports,
		caller:       caller,
		defaultHost:  defaultHost,
		probeTimeout: probeTimeout,
	}, nil
}

// Register validates and admits a backend. When no port is declared one is
// allocated from the configured range. The backend is probed once
// synchronously before promotion to healthy; if the probe fails the
// registration is rejected and its name and port are released immediately.
func (s *Registrar) Register(ctx context.Context, reg domain.Registration) (*domain.ServerRecord, error) {
	name := strings.TrimSpace(reg.Name)
	if err := validateRegistration(name, reg.Capabilities); err != nil {
		return nil, err
	}

	// A name held by a live record can only be re-registered by the holder of
	// its lease token. Expired records may always be taken over.
	prior, priorExists := s.directory.Get(name)
	if priorExists && prior.State.Live() && prior.LeaseToken != reg.Lease {
		return nil, fmt.Errorf("%w: %s", errors.ErrNameConflict, name)
	}

	port := reg.Port
	if port == 0 {
		allocated, err := s.ports.Allocate(name)
		if err != nil {
			return nil, err
		}
		port = allocated
	} else if err := s.ports.Claim(port, name); err != nil {
		return nil, err
	}

	host := strings.TrimSpace(reg.Host)
	if host == "" {
		host = s.defaultHost
	}

	now := time.Now().UTC()
	rec := &domain.ServerRecord{
		Name:          name,
		Address:       net.JoinHostPort(host, strconv.Itoa(port)),
		Port:          port,
		State:         domain.StateRegistering,
		Capabilities:  reg.Capabilities,
		LeaseToken:    uuid.NewString(),
		RegisteredAt:  now,
		LastHeartbeat: now,
	}

	if err := s.directory.Upsert(rec, reg.Lease); err != nil {
		// Lost a race for the name or port; only release what we leased here.
		if !priorExists || prior.Port != port {
			s.ports.Release(port)
		}
		return nil, err
	}

	if err := s.probe(ctx, rec); err != nil {
		// Only roll back our own record; a competing registration may have
		// replaced it while the probe was in flight.
		_, _ = s.directory.RemoveIf(name, func(r *domain.ServerRecord) error {
			if r.LeaseToken != rec.LeaseToken {
				return fmt.Errorf("%w: record replaced during registration", errors.ErrNameConflict)
			}
			return nil
		})
		s.ports.Release(port)
		if priorExists && prior.Port != port {
			s.ports.Release(prior.Port)
		}
		return nil, fmt.Errorf("%w: initial probe of %s at %s failed: %w",
			errors.ErrTransport, name, rec.Address, err)
	}

	promoted := now
	err := s.directory.Update(name, func(r *domain.ServerRecord) error {
		if r.LeaseToken != rec.LeaseToken {
			return fmt.Errorf("%w: record replaced during registration", errors.ErrNameConflict)
		}
		promoted = time.Now().UTC()
		r.State = domain.StateHealthy
		r.LastHeartbeat = promoted
		r.LastChecked = &promoted
		r.LastSuccessful = &promoted
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The prior record's port is no longer needed once the replacement is live.
	if priorExists && prior.Port != port {
		s.ports.Release(prior.Port)
	}

	s.logger.Info("server registered", "name", name, "address", rec.Address, "tools", len(reg.Capabilities.Tools))

	rec.State = domain.StateHealthy
	rec.LastHeartbeat = promoted
	rec.LastChecked = &promoted
	rec.LastSuccessful = &promoted
	return rec, nil
}

// Heartbeat refreshes liveness for a record. A backend-initiated heartbeat
// forces an unhealthy record back to healthy immediately rather than waiting
// for the next probe cycle.
func (s *Registrar) Heartbeat(name, lease string) error {
	return s.directory.Update(name, func(r *domain.ServerRecord) error {
		if r.LeaseToken != lease {
			return fmt.Errorf("%w: %s", errors.ErrInvalidLease, name)
		}
		if r.State == domain.StateExpired {
			// Mid-expiry records cannot be revived; the backend must re-register.
			return fmt.Errorf("%w: %s", errors.ErrUnknownServer, name)
		}

		r.LastHeartbeat = time.Now().UTC()
		if r.State == domain.StateUnhealthy {
			r.State = domain.StateHealthy
			r.UnhealthySince = nil
		}
		return nil
	})
}

// Deregister removes a record and releases its port immediately. There is no
// grace period: this is an intentional departure, not a failure.
func (s *Registrar) Deregister(name, lease string) error {
	rec, err := s.directory.RemoveIf(name, func(r *domain.ServerRecord) error {
		if r.LeaseToken != lease {
			return fmt.Errorf("%w: %s", errors.ErrInvalidLease, name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ports.Release(rec.Port)
	s.logger.Info("server deregistered", "name", name)
	return nil
}

// RefreshCapabilities replaces the declared capability set without touching
// liveness state.
func (s *Registrar) RefreshCapabilities(name, lease string, caps domain.Capabilities) error {
	if err := validateCapabilities(caps); err != nil {
		return err
	}

	return s.directory.Update(name, func(r *domain.ServerRecord) error {
		if r.LeaseToken != lease {
			return fmt.Errorf("%w: %s", errors.ErrInvalidLease, name)
		}
		r.Capabilities = caps
		return nil
	})
}

func (s *Registrar) probe(ctx context.Context, rec *domain.ServerRecord) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	return s.caller.Ping(probeCtx, rec.Address)
}

func validateRegistration(name string, caps domain.Capabilities) error {
	if name == "" {
		return fmt.Errorf("%w: server name cannot be empty", errors.ErrValidation)
	}
	if !serverNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid server name %q", errors.ErrValidation, name)
	}
	return validateCapabilities(caps)
}

func validateCapabilities(caps domain.Capabilities) error {
	seen := make(map[string]struct{}, len(caps.Tools))
	for _, tool := range caps.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return fmt.Errorf("%w: declared tool with empty name", errors.ErrValidation)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("%w: duplicate tool declaration %q", errors.ErrValidation, tool.Name)
		}
		seen[tool.Name] = struct{}{}

		if _, err := compileToolSchema(tool); err != nil {
			return err
		}
	}

	for _, p := range caps.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: declared prompt with empty name", errors.ErrValidation)
		}
	}
	for _, r := range caps.Resources {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: declared resource with empty name", errors.ErrValidation)
		}
	}

	return nil
}
