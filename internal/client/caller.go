// Package client contains the HTTP transport for reaching backends and the
// coordinator-bound client used by tooling. Backends expose the same ping and
// tool surface as the coordinator, so one transport serves liveness probes,
// tool listings and forwarded calls alike.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ojamals/mcpregd/internal/api"
	"github.com/ojamals/mcpregd/internal/errors"
)

// maxErrorBody caps how much of an error response is read for diagnostics.
const maxErrorBody = 4 << 10

// Caller is the outbound transport to backend servers. A single Caller is
// shared by the health monitor and the routing endpoint; the http.Client
// underneath pools connections per backend.
type Caller struct {
	logger hclog.Logger
	client *http.Client
}

// NewCaller creates a Caller. The timeout bounds individual requests only
// when the per-call context carries no deadline of its own.
func NewCaller(logger hclog.Logger, timeout time.Duration) (*Caller, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}

	return &Caller{
		logger: logger.Named("client"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Ping issues a liveness probe to the backend at addr.
func (c *Caller) Ping(ctx context.Context, addr string) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, addr, "/api/v1/ping", nil, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("%w: unexpected ping status %q from %s", errors.ErrTransport, body.Status, addr)
	}

	return nil
}

// ListTools asks the backend at addr for its current tool definitions.
func (c *Caller) ListTools(ctx context.Context, addr string) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	if err := c.do(ctx, http.MethodGet, addr, "/api/v1/tools", nil, &tools); err != nil {
		return nil, err
	}

	return tools, nil
}

// CallTool invokes the named tool on the backend at addr. A result with
// isError set is returned as-is with a nil error; the flag belongs to the
// tool, not the transport.
func (c *Caller) CallTool(
	ctx context.Context,
	addr string,
	tool string,
	args map[string]any,
) (*mcp.CallToolResult, error) {
	var raw json.RawMessage
	path := "/api/v1/tools/" + url.PathEscape(tool)
	if err := c.do(ctx, http.MethodPost, addr, path, args, &raw); err != nil {
		return nil, err
	}

	return parseToolResult(addr, raw)
}

// parseToolResult decodes a tool result payload, tolerating the content
// polymorphism of tool results.
func parseToolResult(addr string, raw json.RawMessage) (*mcp.CallToolResult, error) {
	result, err := mcp.ParseCallToolResult(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode tool result from %s: %w", errors.ErrTransport, addr, err)
	}

	return result, nil
}

// do issues one request and decodes the response into out when out is
// non-nil. Non-2xx responses are decoded into domain errors.
func (c *Caller) do(ctx context.Context, method, addr, path string, in, out any) error {
	return c.doLeased(ctx, method, addr, path, "", in, out)
}

// doLeased is do with the lease token header set, for mutating registry
// calls.
func (c *Caller) doLeased(ctx context.Context, method, addr, path, lease string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: cannot encode request body: %w", errors.ErrValidation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+addr+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if lease != "" {
		req.Header.Set(api.HeaderLease, lease)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(addr, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(addr, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: cannot decode response from %s: %w", errors.ErrTransport, addr, err)
	}

	return nil
}

// classifyTransportError turns request failures into domain errors.
// Deadline and timeout failures map to ErrTimeout, everything else to
// ErrTransport.
func classifyTransportError(addr string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", errors.ErrTimeout, addr, err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %w", errors.ErrTimeout, addr, err)
	}

	return fmt.Errorf("%w: %s: %w", errors.ErrTransport, addr, err)
}

// errorModel is the shape of an error response body.
type errorModel struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// decodeError maps a non-2xx response back onto the sentinel the remote
// handler started from. The detail string disambiguates statuses shared by
// more than one sentinel.
func decodeError(addr string, resp *http.Response) error {
	var model errorModel
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(data, &model)

	detail := model.Detail
	if detail == "" {
		detail = strings.TrimSpace(string(data))
	}
	if detail == "" {
		detail = resp.Status
	}

	sentinel := sentinelForStatus(resp.StatusCode, detail)

	return fmt.Errorf("%w: %s: %s", sentinel, addr, detail)
}

func sentinelForStatus(status int, detail string) error {
	lower := strings.ToLower(detail)

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.ErrValidation
	case http.StatusForbidden:
		return errors.ErrInvalidLease
	case http.StatusNotFound:
		if strings.Contains(lower, "tool") {
			return errors.ErrUnknownTool
		}
		return errors.ErrUnknownServer
	case http.StatusConflict:
		switch {
		case strings.Contains(lower, "declared by"):
			return errors.ErrAmbiguousTool
		case strings.Contains(lower, "port"):
			return errors.ErrPortConflict
		default:
			return errors.ErrNameConflict
		}
	case http.StatusBadGateway:
		return errors.ErrToolCallFailed
	case http.StatusServiceUnavailable:
		return errors.ErrPortRangeExhausted
	case http.StatusGatewayTimeout:
		return errors.ErrTimeout
	default:
		return errors.ErrTransport
	}
}
