package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojamals/mcpregd/internal/api"
	"github.com/ojamals/mcpregd/internal/domain"
	"github.com/ojamals/mcpregd/internal/errors"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c, err := NewClient(hclog.NewNullLogger(), addrOf(srv), 2*time.Second)
	require.NoError(t, err)

	return c
}

func TestClientRegister(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/registry/servers", r.URL.Path)

		var body api.RegistrationRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alpha", body.Name)
		require.Len(t, body.Tools, 1)

		_ = json.NewEncoder(w).Encode(api.RegistrationResponseBody{
			Name:    body.Name,
			Address: "127.0.0.1:9101",
			Port:    9101,
			Lease:   "lease-abc",
			State:   string(domain.StateHealthy),
		})
	}))
	t.Cleanup(srv.Close)

	out, err := testClient(t, srv).Register(t.Context(), domain.Registration{
		Name: "alpha",
		Capabilities: domain.Capabilities{
			Tools: []mcp.Tool{{Name: "read_file"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 9101, out.Port)
	assert.Equal(t, "lease-abc", out.Lease)
}

func TestClientRegister_NameConflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(errorModel{
			Status: http.StatusConflict,
			Detail: "server name already held by a live record: alpha",
		})
	}))
	t.Cleanup(srv.Close)

	_, err := testClient(t, srv).Register(t.Context(), domain.Registration{Name: "alpha"})
	require.ErrorIs(t, err, errors.ErrNameConflict)
}

func TestClientHeartbeat_SendsLease(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/registry/servers/alpha/heartbeat", r.URL.Path)
		assert.Equal(t, "lease-abc", r.Header.Get(api.HeaderLease))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, testClient(t, srv).Heartbeat(t.Context(), "alpha", "lease-abc"))
}

func TestClientDeregister(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/registry/servers/alpha", r.URL.Path)
		assert.Equal(t, "lease-abc", r.Header.Get(api.HeaderLease))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, testClient(t, srv).Deregister(t.Context(), "alpha", "lease-abc"))
}

func TestClientCallTool_PinsServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tools/shared", r.URL.Path)
		assert.Equal(t, "beta", r.URL.Query().Get("server"))
		_ = json.NewEncoder(w).Encode(mcp.NewToolResultText("done"))
	}))
	t.Cleanup(srv.Close)

	result, err := testClient(t, srv).CallTool(t.Context(), "shared", "beta", map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	latency := "12ms"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health/servers", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]api.ServerHealth{
			{Name: "alpha", State: "healthy", Latency: &latency},
			{Name: "beta", State: "expired"},
		})
	}))
	t.Cleanup(srv.Close)

	health, err := testClient(t, srv).Health(t.Context())
	require.NoError(t, err)
	require.Len(t, health, 2)
	assert.Equal(t, "healthy", health[0].State)
	require.NotNil(t, health[0].Latency)
}

func TestPendingCall(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
			_ = json.NewEncoder(w).Encode(mcp.NewToolResultText("done"))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	p := testClient(t, srv).CallToolAsync(t.Context(), "slow", "", nil)

	select {
	case <-p.Done():
		t.Fatal("call finished before the backend responded")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	result, err := p.Result()
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestPendingCall_Cancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	p := testClient(t, srv).CallToolAsync(t.Context(), "slow", "", nil)
	p.Cancel()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call did not finish")
	}

	_, err := p.Result()
	require.Error(t, err)
}
