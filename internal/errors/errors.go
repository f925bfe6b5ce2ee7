// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrValidation indicates that a request carried a malformed payload,
	// e.g. an empty server name, a duplicate tool declaration, or a tool input
	// schema that does not parse as JSON Schema.
	// Recommended to map to HTTP 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidLease indicates that a mutating registry request did not present
	// the lease token held by the current owner of the record.
	// Recommended to map to HTTP 403 Forbidden.
	ErrInvalidLease = errors.New("invalid lease token")

	// ErrUnknownServer indicates that no registered (and not expired) server
	// exists under the requested name.
	// Recommended to map to HTTP 404 Not Found.
	ErrUnknownServer = errors.New("server not found")

	// ErrUnknownTool indicates that no healthy server declares the requested tool.
	// Recommended to map to HTTP 404 Not Found.
	ErrUnknownTool = errors.New("tool not found")

	// ErrNameConflict indicates that a registration attempted to take a name
	// already held by a live record without presenting its lease token.
	// Recommended to map to HTTP 409 Conflict.
	ErrNameConflict = errors.New("server name conflict")

	// ErrPortConflict indicates that a declared port is already leased to
	// another live record.
	// Recommended to map to HTTP 409 Conflict.
	ErrPortConflict = errors.New("port conflict")

	// ErrAmbiguousTool indicates that more than one healthy server declares the
	// requested tool and the caller did not name a server to disambiguate.
	// Recommended to map to HTTP 409 Conflict.
	ErrAmbiguousTool = errors.New("tool name is ambiguous")

	// ErrPortRangeExhausted indicates that every port in the configured
	// allocation range is currently leased.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrPortRangeExhausted = errors.New("port range exhausted")

	// ErrTimeout indicates that an outbound call to a backend did not complete
	// within its deadline. The backend was reachable but too slow.
	// Recommended to map to HTTP 504 Gateway Timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrTransport indicates that a backend could not be reached at the
	// transport layer. Distinct from ErrTimeout, where a connection existed.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrTransport = errors.New("backend unreachable")

	// ErrToolCallFailed indicates that a forwarded tool call reached the
	// backend but the backend reported an execution failure.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")
)
