package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/api"
	"github.com/ojamals/mcpregd/internal/domain"
)

// Client talks to one coordinator. It wraps the shared Caller transport with
// the coordinator-only operations: registration, health reporting and the
// aggregated tool surface.
type Client struct {
	caller *Caller
	addr   string
}

// NewClient creates a Client bound to the coordinator at addr ("host:port").
func NewClient(logger hclog.Logger, addr string, timeout time.Duration) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	caller, err := NewCaller(logger, timeout)
	if err != nil {
		return nil, err
	}

	return &Client{caller: caller, addr: addr}, nil
}

// Address returns the coordinator address this client is bound to.
func (c *Client) Address() string {
	return c.addr
}

// Ping checks the coordinator is up.
func (c *Client) Ping(ctx context.Context) error {
	return c.caller.Ping(ctx, c.addr)
}

// Register registers a backend with the coordinator and returns the admitted
// record's address and lease token.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*api.RegistrationResponseBody, error) {
	body := api.RegistrationRequestBody{
		Name:      reg.Name,
		Host:      reg.Host,
		Port:      reg.Port,
		Lease:     reg.Lease,
		Tools:     reg.Capabilities.Tools,
		Prompts:   reg.Capabilities.Prompts,
		Resources: reg.Capabilities.Resources,
	}

	var out api.RegistrationResponseBody
	if err := c.caller.do(ctx, http.MethodPost, c.addr, "/api/v1/registry/servers", body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Heartbeat refreshes liveness for a registered backend.
func (c *Client) Heartbeat(ctx context.Context, name, lease string) error {
	path := "/api/v1/registry/servers/" + url.PathEscape(name) + "/heartbeat"
	return c.caller.doLeased(ctx, http.MethodPut, c.addr, path, lease, nil, nil)
}

// Deregister removes a backend's registration.
func (c *Client) Deregister(ctx context.Context, name, lease string) error {
	path := "/api/v1/registry/servers/" + url.PathEscape(name)
	return c.caller.doLeased(ctx, http.MethodDelete, c.addr, path, lease, nil, nil)
}

// RefreshCapabilities replaces a backend's declared capability set.
func (c *Client) RefreshCapabilities(ctx context.Context, name, lease string, caps domain.Capabilities) error {
	body := struct {
		Tools     []mcp.Tool `json:"tools,omitempty"`
		Prompts   []string   `json:"prompts,omitempty"`
		Resources []string   `json:"resources,omitempty"`
	}{
		Tools:     caps.Tools,
		Prompts:   caps.Prompts,
		Resources: caps.Resources,
	}

	path := "/api/v1/registry/servers/" + url.PathEscape(name) + "/capabilities"

	return c.caller.doLeased(ctx, http.MethodPut, c.addr, path, lease, body, nil)
}

// Servers lists the coordinator's routable servers.
func (c *Client) Servers(ctx context.Context) ([]api.ServerInfo, error) {
	var out []api.ServerInfo
	if err := c.caller.do(ctx, http.MethodGet, c.addr, "/api/v1/servers", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Health reports the monitor's view of every tracked server.
func (c *Client) Health(ctx context.Context) ([]api.ServerHealth, error) {
	var out []api.ServerHealth
	if err := c.caller.do(ctx, http.MethodGet, c.addr, "/api/v1/health/servers", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Tools returns the aggregated, owner-tagged tool listing.
func (c *Client) Tools(ctx context.Context) ([]api.ToolEntry, error) {
	var out []api.ToolEntry
	if err := c.caller.do(ctx, http.MethodGet, c.addr, "/api/v1/tools", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// CallTool invokes a tool through the coordinator's routing endpoint.
// Set server to disambiguate a tool name declared by multiple backends.
func (c *Client) CallTool(
	ctx context.Context,
	tool string,
	server string,
	args map[string]any,
) (*mcp.CallToolResult, error) {
	path := "/api/v1/tools/" + url.PathEscape(tool)
	if server != "" {
		path += "?server=" + url.QueryEscape(server)
	}

	var raw json.RawMessage
	if err := c.caller.do(ctx, http.MethodPost, c.addr, path, args, &raw); err != nil {
		return nil, err
	}

	return parseToolResult(c.addr, raw)
}
