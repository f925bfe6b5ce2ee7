package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("  ")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcpregd.toml")
	content := `
[registry]
port_min = 7000
port_max = 7010

[health]
interval = "5s"
probe_timeout = "1s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7000, cfg.Registry.PortMin)
	require.Equal(t, 7010, cfg.Registry.PortMax)
	require.Equal(t, 5*time.Second, cfg.Health.Interval.Std())
	require.Equal(t, time.Second, cfg.Health.ProbeTimeout.Std())

	// Untouched sections keep defaults.
	require.Equal(t, Default().API.Addr, cfg.API.Addr)
	require.Equal(t, Default().Call.Timeout, cfg.Call.Timeout)
}

func TestLoad_InvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcpregd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[health`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad api addr",
			mutate:  func(c *Config) { c.API.Addr = "not-an-addr" },
			wantErr: "api.addr",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Registry.Host = " " },
			wantErr: "registry.host",
		},
		{
			name:    "inverted port range",
			mutate:  func(c *Config) { c.Registry.PortMin = 9200; c.Registry.PortMax = 9100 },
			wantErr: "port range",
		},
		{
			name:    "port max too large",
			mutate:  func(c *Config) { c.Registry.PortMax = 70000 },
			wantErr: "port range",
		},
		{
			name: "probe timeout not shorter than interval",
			mutate: func(c *Config) {
				c.Health.Interval = Duration(2 * time.Second)
				c.Health.ProbeTimeout = Duration(2 * time.Second)
			},
			wantErr: "must be shorter",
		},
		{
			name:    "zero probe concurrency",
			mutate:  func(c *Config) { c.Health.MaxConcurrentProbes = 0 },
			wantErr: "max_concurrent_probes",
		},
		{
			name:    "zero call timeout",
			mutate:  func(c *Config) { c.Call.Timeout = 0 },
			wantErr: "call.timeout",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, 90*time.Second, d.Std())

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
