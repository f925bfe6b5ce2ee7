package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojamals/mcpregd/internal/api"
	icmd "github.com/ojamals/mcpregd/internal/cmd"
	"github.com/ojamals/mcpregd/internal/cmd/output"
)

func TestStatusCmd_ApplyFilters(t *testing.T) {
	t.Parallel()

	health := []api.ServerHealth{
		{Name: "filesystem", State: "healthy"},
		{Name: "fetch", State: "unhealthy"},
		{Name: "git", State: "healthy"},
	}

	tests := []struct {
		name      string
		filters   map[string]string
		wantNames []string
	}{
		{
			name:      "no filters",
			wantNames: []string{"filesystem", "fetch", "git"},
		},
		{
			name:      "by state",
			filters:   map[string]string{"state": "healthy"},
			wantNames: []string{"filesystem", "git"},
		},
		{
			name:      "by partial name",
			filters:   map[string]string{"name": "f"},
			wantNames: []string{"filesystem", "fetch"},
		},
		{
			name:      "combined",
			filters:   map[string]string{"state": "healthy", "name": "f"},
			wantNames: []string{"filesystem"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := &StatusCmd{Filters: tc.filters}

			got, err := c.applyFilters(health)
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, h := range got {
				names = append(names, h.Name)
			}
			assert.Equal(t, tc.wantNames, names)
		})
	}
}

func TestStatusCmd_OutputHandlerSelection(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := &StatusCmd{Format: icmd.FormatJSON}
	_, ok := c.outputHandler(&buf).(*output.JSONHandler[api.ServerHealth])
	assert.True(t, ok)

	c.Format = icmd.FormatYAML
	_, ok = c.outputHandler(&buf).(*output.YAMLHandler[api.ServerHealth])
	assert.True(t, ok)

	c.Format = icmd.FormatText
	_, ok = c.outputHandler(&buf).(*output.TextHandler[api.ServerHealth])
	assert.True(t, ok)
}

func TestHealthPrinter(t *testing.T) {
	t.Parallel()

	latency := "9ms"
	var buf bytes.Buffer

	handler := output.NewTextHandler[api.ServerHealth](&buf, &healthPrinter{})
	err := handler.HandleResults(
		api.ServerHealth{Name: "filesystem", State: "healthy", Latency: &latency},
		api.ServerHealth{Name: "fetch", State: "expired"},
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Tracking 2 server(s):")
	assert.Contains(t, out, "filesystem")
	assert.Contains(t, out, "latency=9ms")
	assert.Contains(t, out, "last_checked=never")
}

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	root, err := NewRootCmd()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "daemon")
	assert.Contains(t, names, "status")
}
