package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojamals/mcpregd/internal/errors"
)

func testCaller(t *testing.T) *Caller {
	t.Helper()

	c, err := NewCaller(hclog.NewNullLogger(), 2*time.Second)
	require.NoError(t, err)

	return c
}

// addrOf strips the scheme from an httptest server URL so it can be used as
// a backend address.
func addrOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestNewCaller(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		logger  hclog.Logger
		timeout time.Duration
		wantErr string
	}{
		{
			name:    "valid",
			logger:  hclog.NewNullLogger(),
			timeout: time.Second,
		},
		{
			name:    "nil logger",
			timeout: time.Second,
			wantErr: "logger cannot be nil",
		},
		{
			name:    "non-positive timeout",
			logger:  hclog.NewNullLogger(),
			wantErr: "timeout must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewCaller(tc.logger, tc.timeout)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCallerPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ping", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, testCaller(t).Ping(t.Context(), addrOf(srv)))
}

func TestCallerPing_Refused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := addrOf(srv)
	srv.Close()

	err := testCaller(t).Ping(t.Context(), addr)
	require.ErrorIs(t, err, errors.ErrTransport)
}

func TestCallerPing_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewCaller(hclog.NewNullLogger(), 20*time.Millisecond)
	require.NoError(t, err)

	err = c.Ping(t.Context(), addrOf(srv))
	require.ErrorIs(t, err, errors.ErrTimeout)
}

func TestCallerListTools(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tools", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]mcp.Tool{
			{Name: "read_file"},
			{Name: "write_file"},
		})
	}))
	t.Cleanup(srv.Close)

	tools, err := testCaller(t).ListTools(t.Context(), addrOf(srv))
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read_file", tools[0].Name)
}

func TestCallerCallTool(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tools/read_file", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "/tmp/x", args["path"])

		_ = json.NewEncoder(w).Encode(mcp.NewToolResultText("contents"))
	}))
	t.Cleanup(srv.Close)

	result, err := testCaller(t).CallTool(t.Context(), addrOf(srv), "read_file", map[string]any{"path": "/tmp/x"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)
}

func TestCallerCallTool_IsErrorPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(mcp.NewToolResultError("boom"))
	}))
	t.Cleanup(srv.Close)

	result, err := testCaller(t).CallTool(t.Context(), addrOf(srv), "read_file", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSentinelForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		detail string
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, want: errors.ErrValidation},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, want: errors.ErrValidation},
		{name: "forbidden", status: http.StatusForbidden, want: errors.ErrInvalidLease},
		{name: "not found server", status: http.StatusNotFound, detail: "unknown server: x", want: errors.ErrUnknownServer},
		{name: "not found tool", status: http.StatusNotFound, detail: `unknown tool: "x"`, want: errors.ErrUnknownTool},
		{name: "conflict name", status: http.StatusConflict, detail: "server name already registered", want: errors.ErrNameConflict},
		{name: "conflict port", status: http.StatusConflict, detail: "port already in use", want: errors.ErrPortConflict},
		{
			name:   "conflict ambiguous",
			status: http.StatusConflict,
			detail: `tool name is ambiguous: "x" is declared by [a b]`,
			want:   errors.ErrAmbiguousTool,
		},
		{name: "bad gateway", status: http.StatusBadGateway, want: errors.ErrToolCallFailed},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: errors.ErrPortRangeExhausted},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, want: errors.ErrTimeout},
		{name: "teapot", status: http.StatusTeapot, want: errors.ErrTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, sentinelForStatus(tc.status, tc.detail), tc.want)
		})
	}
}

func TestDecodeError_UsesDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(errorModel{
			Title:  "Not Found",
			Status: http.StatusNotFound,
			Detail: "unknown server: ghost",
		})
	}))
	t.Cleanup(srv.Close)

	err := testCaller(t).Ping(t.Context(), addrOf(srv))
	require.ErrorIs(t, err, errors.ErrUnknownServer)
	assert.ErrorContains(t, err, "ghost")
}
