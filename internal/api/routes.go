// Package api defines the coordinator's HTTP surface: the registration
// endpoint used by backends and the routing/aggregation endpoint used by
// clients. Handlers translate between wire types and the registry's domain
// operations; domain errors are mapped to HTTP status codes by the server
// that mounts these routes.
package api

import (
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ojamals/mcpregd/internal/contracts"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// HeaderLease is the HTTP header carrying the lease token on mutating
// registry requests.
const HeaderLease = "Mcpregd-Lease"

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(
	router huma.API,
	directory contracts.Directory,
	registrar contracts.Registrar,
	caller contracts.BackendCaller,
	callTimeout time.Duration,
) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if directory == nil || reflect.ValueOf(directory).IsNil() {
		return "", fmt.Errorf("directory cannot be nil")
	}
	if registrar == nil || reflect.ValueOf(registrar).IsNil() {
		return "", fmt.Errorf("registrar cannot be nil")
	}
	if caller == nil || reflect.ValueOf(caller).IsNil() {
		return "", fmt.Errorf("backend caller cannot be nil")
	}
	if callTimeout <= 0 {
		return "", fmt.Errorf("call timeout must be positive, got %v", callTimeout)
	}

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterPingRoutes(versionedGroup)
	RegisterRegistryRoutes(huma.NewGroup(versionedGroup, "/registry/servers"), registrar)
	RegisterServerRoutes(huma.NewGroup(versionedGroup, "/servers"), directory)
	RegisterToolRoutes(huma.NewGroup(versionedGroup, "/tools"), directory, caller, callTimeout)
	RegisterHealthRoutes(huma.NewGroup(versionedGroup, "/health"), directory)

	return apiPathPrefix, nil
}
