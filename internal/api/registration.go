package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
)

// RegistrationRequestBody is a backend's request to join the registry.
type RegistrationRequestBody struct {
	// Name the backend registers under. Must be unique among live records.
	Name string `doc:"Unique server name" example:"filesystem" json:"name"`

	// Host the backend is reachable on. Empty means the coordinator's default.
	Host string `doc:"Host the backend listens on" json:"host,omitempty"`

	// Port the backend already listens on. Zero asks the coordinator to
	// allocate one from its configured range.
	Port int `doc:"Declared port; 0 requests allocation" json:"port,omitempty"`

	// Lease is only set when re-registering a name the backend already holds.
	Lease string `doc:"Current lease token when re-registering" json:"lease,omitempty"`

	// Tools declared by the backend.
	Tools []mcp.Tool `doc:"Declared tool definitions" json:"tools,omitempty"`

	// Prompts declared by the backend.
	Prompts []string `doc:"Declared prompt names" json:"prompts,omitempty"`

	// Resources declared by the backend.
	Resources []string `doc:"Declared resource names" json:"resources,omitempty"`
}

// RegisterRequest represents the incoming API request to register a backend.
type RegisterRequest struct {
	Body RegistrationRequestBody
}

// RegistrationResponseBody carries the admitted record's address and lease.
type RegistrationResponseBody struct {
	Name    string `doc:"Registered server name"                json:"name"`
	Address string `doc:"Address the backend must listen on"    json:"address"`
	Port    int    `doc:"Allocated or claimed port"             json:"port"`
	Lease   string `doc:"Lease token for future mutating calls" json:"lease"`
	State   string `doc:"Record state after admission"          json:"state"`
}

// RegisterResponse represents the wrapped API response for a registration.
type RegisterResponse struct {
	Body RegistrationResponseBody
}

// LeasedRequest represents an incoming API request mutating a named record,
// authorized by the record's lease token.
type LeasedRequest struct {
	Name  string `doc:"Name of the server"             example:"filesystem" path:"name"`
	Lease string `doc:"Lease token proving ownership"  header:"Mcpregd-Lease"`
}

// RefreshCapabilitiesRequest represents the incoming API request to replace a
// record's declared capability set.
type RefreshCapabilitiesRequest struct {
	Name  string `doc:"Name of the server"            example:"filesystem" path:"name"`
	Lease string `doc:"Lease token proving ownership" header:"Mcpregd-Lease"`
	Body  struct {
		Tools     []mcp.Tool `doc:"Declared tool definitions" json:"tools,omitempty"`
		Prompts   []string   `doc:"Declared prompt names"     json:"prompts,omitempty"`
		Resources []string   `doc:"Declared resource names"   json:"resources,omitempty"`
	}
}

// AckResponseBody acknowledges a mutating registry call.
type AckResponseBody struct {
	Status string `doc:"Always 'ok' on success" json:"status"`
}

// AckResponse represents the wrapped API response for heartbeat, deregister
// and capability refresh.
type AckResponse struct {
	Body AckResponseBody
}

// RegisterRegistryRoutes sets up the registration endpoints used by backends.
func RegisterRegistryRoutes(parentAPI huma.API, registrar contracts.Registrar) {
	tags := []string{"Registry"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "registerServer",
			Method:      http.MethodPost,
			Summary:     "Register a backend server",
			Description: "Admits a backend, allocating a port when none is declared, and probes it once before it becomes routable.",
			Tags:        tags,
		},
		func(ctx context.Context, input *RegisterRequest) (*RegisterResponse, error) {
			return handleRegister(ctx, registrar, input.Body)
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "heartbeatServer",
			Method:      http.MethodPut,
			Path:        "/{name}/heartbeat",
			Summary:     "Record a backend heartbeat",
			Tags:        tags,
		},
		func(ctx context.Context, input *LeasedRequest) (*AckResponse, error) {
			if err := registrar.Heartbeat(input.Name, input.Lease); err != nil {
				return nil, err
			}
			return ack(), nil
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "deregisterServer",
			Method:      http.MethodDelete,
			Path:        "/{name}",
			Summary:     "Deregister a backend server",
			Tags:        tags,
		},
		func(ctx context.Context, input *LeasedRequest) (*AckResponse, error) {
			if err := registrar.Deregister(input.Name, input.Lease); err != nil {
				return nil, err
			}
			return ack(), nil
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "refreshServerCapabilities",
			Method:      http.MethodPut,
			Path:        "/{name}/capabilities",
			Summary:     "Replace a backend's declared capabilities",
			Tags:        tags,
		},
		func(ctx context.Context, input *RefreshCapabilitiesRequest) (*AckResponse, error) {
			caps := domain.Capabilities{
				Tools:     input.Body.Tools,
				Prompts:   input.Body.Prompts,
				Resources: input.Body.Resources,
			}
			if err := registrar.RefreshCapabilities(input.Name, input.Lease, caps); err != nil {
				return nil, err
			}
			return ack(), nil
		},
	)
}

// handleRegister admits a backend via the registrar.
func handleRegister(
	ctx context.Context,
	registrar contracts.Registrar,
	body RegistrationRequestBody,
) (*RegisterResponse, error) {
	rec, err := registrar.Register(ctx, domain.Registration{
		Name:  body.Name,
		Host:  body.Host,
		Port:  body.Port,
		Lease: body.Lease,
		Capabilities: domain.Capabilities{
			Tools:     body.Tools,
			Prompts:   body.Prompts,
			Resources: body.Resources,
		},
	})
	if err != nil {
		return nil, err
	}

	resp := &RegisterResponse{}
	resp.Body = RegistrationResponseBody{
		Name:    rec.Name,
		Address: rec.Address,
		Port:    rec.Port,
		Lease:   rec.LeaseToken,
		State:   string(rec.State),
	}

	return resp, nil
}

func ack() *AckResponse {
	resp := &AckResponse{}
	resp.Body.Status = "ok"
	return resp
}
