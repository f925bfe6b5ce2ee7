package daemon

import (
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ojamals/mcpregd/internal/contracts"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8095").
	Addr string

	// Directory is the source of truth for registered servers.
	Directory contracts.Directory

	// Registrar handles register/heartbeat/deregister requests.
	Registrar contracts.Registrar

	// Caller is the outbound transport for forwarded tool calls.
	Caller contracts.BackendCaller

	// CallTimeout bounds each forwarded tool call.
	CallTimeout time.Duration

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	directory contracts.Directory,
	registrar contracts.Registrar,
	caller contracts.BackendCaller,
	addr string,
	callTimeout time.Duration,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:        addr,
		Directory:   directory,
		Registrar:   registrar,
		Caller:      caller,
		CallTimeout: callTimeout,
		Logger:      logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Directory == nil || reflect.ValueOf(d.Directory).IsNil() {
		return fmt.Errorf("directory cannot be nil")
	}
	if d.Registrar == nil || reflect.ValueOf(d.Registrar).IsNil() {
		return fmt.Errorf("registrar cannot be nil")
	}
	if d.Caller == nil || reflect.ValueOf(d.Caller).IsNil() {
		return fmt.Errorf("backend caller cannot be nil")
	}
	if d.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %v", d.CallTimeout)
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
