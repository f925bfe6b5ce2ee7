package domain

import (
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// StateRegistering is the state of a record between acceptance of a
	// registration and the first successful liveness probe.
	StateRegistering ServerState = "registering"

	// StateHealthy is the state of a record whose most recent probe or
	// heartbeat succeeded.
	StateHealthy ServerState = "healthy"

	// StateUnhealthy is the state of a record with at least one failed probe.
	// The record is still probed every cycle and may recover.
	StateUnhealthy ServerState = "unhealthy"

	// StateExpired is the state of a record that stayed unhealthy beyond the
	// expiry threshold. Expired records are removed after a grace period.
	StateExpired ServerState = "expired"
)

// ServerState represents the liveness state of a registered backend server.
type ServerState string

// Capabilities is the set of tools (and optionally prompts and resources)
// a backend declares at registration time.
type Capabilities struct {
	Tools     []mcp.Tool `json:"tools"`
	Prompts   []string   `json:"prompts,omitempty"`
	Resources []string   `json:"resources,omitempty"`
}

// ServerRecord is the directory entry for a single registered backend.
type ServerRecord struct {
	// Name uniquely identifies the backend, chosen by the backend at
	// registration time and stable across its restarts.
	Name string

	// Address is the "host:port" at which the backend accepts requests.
	Address string

	// Port is the allocated (or declared and claimed) port.
	Port int

	// State is the current liveness state.
	State ServerState

	// Capabilities is the declared tool/prompt/resource set.
	Capabilities Capabilities

	// LeaseToken proves ownership of this record. Required on heartbeat,
	// deregistration and capability refresh.
	LeaseToken string

	RegisteredAt  time.Time
	LastHeartbeat time.Time

	// LastChecked and LastSuccessful track monitor-driven probes.
	LastChecked    *time.Time
	LastSuccessful *time.Time

	// Latency of the most recent successful probe.
	Latency *time.Duration

	// UnhealthySince is set when the record transitions to StateUnhealthy and
	// cleared on recovery. Drives expiry.
	UnhealthySince *time.Time

	// ExpiredAt is set when the record transitions to StateExpired and drives
	// removal after the grace period.
	ExpiredAt *time.Time
}

// PortLease is the ephemeral mapping of a leased port to its owning server.
type PortLease struct {
	Port        int
	Owner       string
	AllocatedAt time.Time
}

// Live reports whether the record still holds its name and port, i.e. it has
// not expired. Expired records only linger for late-probe attribution.
func (s ServerState) Live() bool {
	return s == StateRegistering || s == StateHealthy || s == StateUnhealthy
}

// ToolNames returns the declared tool names in declaration order.
func (c Capabilities) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for _, t := range c.Tools {
		names = append(names, t.Name)
	}
	return names
}

// Tool returns the declared tool with the given name.
// It returns a boolean to indicate whether the tool was found.
func (c Capabilities) Tool(name string) (mcp.Tool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return mcp.Tool{}, false
}

// Clone returns a deep enough copy of the record that callers can hold
// without observing later directory mutations.
func (r *ServerRecord) Clone() *ServerRecord {
	if r == nil {
		return nil
	}

	cp := *r
	cp.Capabilities.Tools = slices.Clone(r.Capabilities.Tools)
	cp.Capabilities.Prompts = slices.Clone(r.Capabilities.Prompts)
	cp.Capabilities.Resources = slices.Clone(r.Capabilities.Resources)
	cp.LastChecked = cloneTime(r.LastChecked)
	cp.LastSuccessful = cloneTime(r.LastSuccessful)
	cp.UnhealthySince = cloneTime(r.UnhealthySince)
	cp.ExpiredAt = cloneTime(r.ExpiredAt)
	if r.Latency != nil {
		d := *r.Latency
		cp.Latency = &d
	}

	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
