package domain

// Registration is a backend's request to join the registry.
type Registration struct {
	// Name the backend wants to register under.
	Name string

	// Host the backend is reachable on. Empty means the coordinator's
	// configured default host.
	Host string

	// Port the backend already listens on. Zero means the coordinator should
	// allocate one from its configured range.
	Port int

	// Capabilities declared by the backend.
	Capabilities Capabilities

	// Lease is optional. A backend re-registering a name it already holds
	// presents its current lease token; without it a live name is a conflict.
	Lease string
}
