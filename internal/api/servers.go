package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
	apperrors "github.com/ojamals/mcpregd/internal/errors"
)

// ServerInfo is the client-facing view of a registered backend.
type ServerInfo struct {
	Name         string    `doc:"Server name"                         json:"name"`
	Address      string    `doc:"Address the backend listens on"      json:"address"`
	Port         int       `doc:"Port the backend listens on"         json:"port"`
	State        string    `doc:"Current liveness state"              json:"state"`
	Tools        []string  `doc:"Declared tool names"                 json:"tools,omitempty"`
	Prompts      []string  `doc:"Declared prompt names"               json:"prompts,omitempty"`
	Resources    []string  `doc:"Declared resource names"             json:"resources,omitempty"`
	RegisteredAt time.Time `doc:"Time the backend registered"         json:"registeredAt"`
}

// ServersResponse represents the response for listing routable servers.
type ServersResponse struct {
	Body []ServerInfo
}

// ServerToolsRequest represents the incoming API request to list one
// backend's tool definitions.
type ServerToolsRequest struct {
	Name string `doc:"Name of the server" example:"filesystem" path:"name"`
}

// ServerToolsResponse represents the response for one backend's tools.
type ServerToolsResponse struct {
	Body []mcp.Tool
}

// RegisterServerRoutes sets up the client-facing server listing endpoints.
func RegisterServerRoutes(parentAPI huma.API, directory contracts.Directory) {
	tags := []string{"Servers"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List routable servers",
			Description: "Lists healthy and unhealthy servers. Registering and expired records are omitted.",
			Tags:        tags,
		},
		func(ctx context.Context, input *struct{}) (*ServersResponse, error) {
			return handleListServers(directory)
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "listServerTools",
			Method:      http.MethodGet,
			Path:        "/{name}/tools",
			Summary:     "List tools for a server",
			Tags:        append(tags, "Tools"),
		},
		func(ctx context.Context, input *ServerToolsRequest) (*ServerToolsResponse, error) {
			return handleListServerTools(directory, input.Name)
		},
	)
}

// handleListServers returns the routable subset of the directory.
func handleListServers(directory contracts.Directory) (*ServersResponse, error) {
	records := directory.List(domain.StateHealthy, domain.StateUnhealthy)

	infos := make([]ServerInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, serverInfo(rec))
	}

	return &ServersResponse{Body: infos}, nil
}

// handleListServerTools returns the declared tool definitions for one backend.
// Only healthy servers serve tool listings.
func handleListServerTools(directory contracts.Directory, name string) (*ServerToolsResponse, error) {
	rec, ok := directory.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownServer, name)
	}
	if rec.State != domain.StateHealthy {
		return nil, fmt.Errorf("%w: %s is %s", apperrors.ErrUnknownServer, name, rec.State)
	}

	tools := rec.Capabilities.Tools
	if tools == nil {
		tools = []mcp.Tool{}
	}

	return &ServerToolsResponse{Body: tools}, nil
}

func serverInfo(rec *domain.ServerRecord) ServerInfo {
	return ServerInfo{
		Name:         rec.Name,
		Address:      rec.Address,
		Port:         rec.Port,
		State:        string(rec.State),
		Tools:        rec.Capabilities.ToolNames(),
		Prompts:      rec.Capabilities.Prompts,
		Resources:    rec.Capabilities.Resources,
		RegisteredAt: rec.RegisteredAt,
	}
}
