package contracts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/domain"
)

// Directory is the concurrency-safe map of server name to registration record.
// It is the single source of truth for every other component; no component
// mutates records except through these operations.
type Directory interface {
	// Upsert inserts or replaces a record, enforcing name and port uniqueness.
	// A name held by a live record may only be replaced when the caller
	// presents that record's lease token.
	Upsert(rec *domain.ServerRecord, presentedLease string) error

	// Get returns a copy of the record for the given name.
	// It returns a boolean to indicate whether the record was found.
	Get(name string) (*domain.ServerRecord, bool)

	// RemoveIf deletes the named record only when fn approves it, holding the
	// write lock across the check and the delete. It returns ErrUnknownServer
	// when the record is absent and fn's error when fn rejects it.
	RemoveIf(name string, fn func(*domain.ServerRecord) error) (*domain.ServerRecord, error)

	// List returns copies of all records whose state is in states.
	// With no states given it returns every record. Results are sorted by name.
	List(states ...domain.ServerState) []*domain.ServerRecord

	// Update applies fn to the named record under the directory's write lock.
	// The mutation is committed only when fn returns nil. Update returns
	// ErrUnknownServer when the record is absent, which lets in-flight probe
	// results for just-removed records be discarded.
	Update(name string, fn func(*domain.ServerRecord) error) error
}

// PortAllocator hands out unused local ports and tracks active leases.
type PortAllocator interface {
	// Allocate returns a port from the configured range not present in any
	// active lease. Fails with ErrPortRangeExhausted when the range is full.
	Allocate(owner string) (int, error)

	// Claim records a lease for a port the backend already listens on.
	// Fails with ErrPortConflict when the port is leased to another owner.
	Claim(port int, owner string) error

	// Release frees a lease. Releasing an unleased port is a no-op.
	Release(port int)

	// Leases returns a copy of all active leases.
	Leases() []domain.PortLease
}

// Registrar accepts register/deregister/heartbeat/refresh requests from
// backends and mutates the Directory accordingly.
type Registrar interface {
	// Register validates and admits a backend, allocating a port when none is
	// declared, and probes it once synchronously before promoting it to
	// healthy. On success the returned record carries the address and lease
	// token to hand back to the backend.
	Register(ctx context.Context, reg domain.Registration) (*domain.ServerRecord, error)

	// Heartbeat refreshes liveness for a record, forcing an immediate
	// unhealthy-to-healthy transition when applicable.
	Heartbeat(name, lease string) error

	// Deregister removes a record and releases its port immediately.
	Deregister(name, lease string) error

	// RefreshCapabilities replaces the declared capability set without
	// touching liveness.
	RefreshCapabilities(name, lease string, caps domain.Capabilities) error
}

// BackendCaller is the outbound request/response transport used to reach
// backends, both for liveness probes and forwarded tool calls.
type BackendCaller interface {
	// Ping issues a lightweight liveness probe to addr.
	Ping(ctx context.Context, addr string) error

	// ListTools asks the backend at addr for its current tool definitions.
	ListTools(ctx context.Context, addr string) ([]mcp.Tool, error)

	// CallTool invokes the named tool on the backend at addr and returns its
	// result verbatim.
	CallTool(ctx context.Context, addr, tool string, args map[string]any) (*mcp.CallToolResult, error)
}
