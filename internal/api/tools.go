package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/contracts"
	"github.com/ojamals/mcpregd/internal/domain"
	apperrors "github.com/ojamals/mcpregd/internal/errors"
	"github.com/ojamals/mcpregd/internal/registry"
)

// ToolEntry is one tool in the aggregated view, tagged with the server that
// owns it. The same tool name may appear under multiple servers.
type ToolEntry struct {
	Server string   `doc:"Server that owns the tool" json:"server"`
	Tool   mcp.Tool `doc:"Declared tool definition"  json:"tool"`
}

// ToolsResponse represents the response for the aggregated tool listing.
type ToolsResponse struct {
	Body []ToolEntry
}

// CallToolRequest represents the incoming API request to invoke a tool.
// The server query parameter disambiguates when multiple healthy servers
// declare the same tool name.
type CallToolRequest struct {
	Tool   string         `doc:"Name of the tool"                      example:"read_file" path:"tool"`
	Server string         `doc:"Owning server, required on collisions" query:"server"`
	Body   map[string]any `doc:"Tool call arguments"`
}

// CallToolResponse represents the backend's tool result, forwarded verbatim
// as raw JSON. A result with isError set still arrives here as a successful
// response; the error flag belongs to the tool, not the transport. The raw
// body sidesteps schema generation for the polymorphic content items.
type CallToolResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterToolRoutes sets up the aggregated tool listing and invocation
// endpoints.
func RegisterToolRoutes(
	parentAPI huma.API,
	directory contracts.Directory,
	caller contracts.BackendCaller,
	callTimeout time.Duration,
) {
	tags := []string{"Tools"}

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "listTools",
			Method:      http.MethodGet,
			Summary:     "List tools across all healthy servers",
			Description: "Returns the union of declared tools, each tagged with its owning server. Name collisions are preserved, not merged.",
			Tags:        tags,
		},
		func(ctx context.Context, input *struct{}) (*ToolsResponse, error) {
			return handleListTools(directory)
		},
	)

	huma.Register(
		parentAPI,
		huma.Operation{
			OperationID: "callTool",
			Method:      http.MethodPost,
			Path:        "/{tool}",
			Summary:     "Call a tool on its owning server",
			Tags:        tags,
		},
		func(ctx context.Context, input *CallToolRequest) (*CallToolResponse, error) {
			return handleCallTool(ctx, directory, caller, callTimeout, input)
		},
	)
}

// handleListTools builds the owner-tagged union of tools over healthy servers.
func handleListTools(directory contracts.Directory) (*ToolsResponse, error) {
	records := directory.List(domain.StateHealthy)

	entries := make([]ToolEntry, 0, len(records))
	for _, rec := range records {
		for _, tool := range rec.Capabilities.Tools {
			entries = append(entries, ToolEntry{Server: rec.Name, Tool: tool})
		}
	}

	return &ToolsResponse{Body: entries}, nil
}

// handleCallTool resolves the tool to a single healthy owner, validates the
// arguments against the owner's declared schema, and forwards the call.
func handleCallTool(
	ctx context.Context,
	directory contracts.Directory,
	caller contracts.BackendCaller,
	callTimeout time.Duration,
	input *CallToolRequest,
) (*CallToolResponse, error) {
	owner, tool, err := resolveTool(directory, input.Tool, input.Server)
	if err != nil {
		return nil, err
	}

	if err := registry.ValidateArgs(tool, input.Body); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := caller.CallTool(callCtx, owner.Address, input.Tool, input.Body)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tool %q on %s after %s",
				apperrors.ErrTimeout, input.Tool, owner.Name, callTimeout)
		}
		return nil, fmt.Errorf("%w: tool %q on %s: %w",
			apperrors.ErrToolCallFailed, input.Tool, owner.Name, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: tool %q on %s: cannot encode result: %w",
			apperrors.ErrToolCallFailed, input.Tool, owner.Name, err)
	}

	return &CallToolResponse{ContentType: "application/json", Body: data}, nil
}

// resolveTool finds the healthy server owning the named tool. When server is
// set the search is pinned to that server; otherwise exactly one healthy
// owner must exist.
func resolveTool(
	directory contracts.Directory,
	toolName string,
	server string,
) (*domain.ServerRecord, mcp.Tool, error) {
	if server != "" {
		rec, ok := directory.Get(server)
		if !ok || rec.State != domain.StateHealthy {
			return nil, mcp.Tool{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownServer, server)
		}
		tool, ok := rec.Capabilities.Tool(toolName)
		if !ok {
			return nil, mcp.Tool{}, fmt.Errorf("%w: %q on server %s", apperrors.ErrUnknownTool, toolName, server)
		}
		return rec, tool, nil
	}

	var (
		owners []string
		match  *domain.ServerRecord
		tool   mcp.Tool
	)
	for _, rec := range directory.List(domain.StateHealthy) {
		if t, ok := rec.Capabilities.Tool(toolName); ok {
			owners = append(owners, rec.Name)
			match = rec
			tool = t
		}
	}

	switch len(owners) {
	case 0:
		return nil, mcp.Tool{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownTool, toolName)
	case 1:
		return match, tool, nil
	default:
		return nil, mcp.Tool{}, fmt.Errorf("%w: %q is declared by %v, set the server query parameter",
			apperrors.ErrAmbiguousTool, toolName, owners)
	}
}
