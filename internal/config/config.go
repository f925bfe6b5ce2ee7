// Package config loads and validates the daemon configuration file
// (.mcpregd.toml by default). A missing file yields the defaults so the
// daemon can run without any setup.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root of the daemon configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Registry RegistryConfig `toml:"registry"`
	Health   HealthConfig   `toml:"health"`
	Call     CallConfig     `toml:"call"`
}

// APIConfig configures the coordinator's HTTP API server.
type APIConfig struct {
	// Addr is the "host:port" the API binds.
	Addr string `toml:"addr"`

	// CORSEnabled turns on CORS middleware for browser-based callers.
	CORSEnabled bool `toml:"cors_enabled"`

	// CORSOrigins lists origins allowed when CORS is enabled.
	CORSOrigins []string `toml:"cors_origins"`
}

// RegistryConfig configures registration and port allocation.
type RegistryConfig struct {
	// Host used to build backend addresses when a registration does not
	// declare one. Backends are expected to be local.
	Host string `toml:"host"`

	// PortMin and PortMax bound the allocation range, inclusive.
	PortMin int `toml:"port_min"`
	PortMax int `toml:"port_max"`

	// GracePeriod is how long an expired record lingers before its name and
	// port are released for reuse.
	GracePeriod Duration `toml:"grace_period"`
}

// HealthConfig configures the background health monitor.
type HealthConfig struct {
	// Interval between probe cycles.
	Interval Duration `toml:"interval"`

	// ProbeTimeout bounds each liveness probe. Must be shorter than Interval.
	ProbeTimeout Duration `toml:"probe_timeout"`

	// ExpiryThreshold is how long a record may stay unhealthy before expiring.
	ExpiryThreshold Duration `toml:"expiry_threshold"`

	// MaxConcurrentProbes caps how many probes run at once.
	MaxConcurrentProbes int `toml:"max_concurrent_probes"`
}

// CallConfig configures forwarded tool calls.
type CallConfig struct {
	// Timeout bounds a forwarded tool call. Typically larger than the probe
	// timeout since tool execution is expected to take longer.
	Timeout Duration `toml:"timeout"`
}

// Duration wraps time.Duration so TOML values can be written as "10s", "1m30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Addr: "0.0.0.0:8095",
		},
		Registry: RegistryConfig{
			Host:        "127.0.0.1",
			PortMin:     9100,
			PortMax:     9199,
			GracePeriod: Duration(30 * time.Second),
		},
		Health: HealthConfig{
			Interval:            Duration(10 * time.Second),
			ProbeTimeout:        Duration(3 * time.Second),
			ExpiryThreshold:     Duration(30 * time.Second),
			MaxConcurrentProbes: 8,
		},
		Call: CallConfig{
			Timeout: Duration(15 * time.Second),
		},
	}
}

// Load reads the configuration from path, falling back to defaults when the
// file does not exist. Values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, cfg.Validate()
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to stat config file (%s): %w", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config from file (%s): %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (%s): %w", path, err)
	}

	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if err := validateAddr(c.API.Addr); err != nil {
		return fmt.Errorf("api.addr: %w", err)
	}

	if strings.TrimSpace(c.Registry.Host) == "" {
		return fmt.Errorf("registry.host cannot be empty")
	}
	if c.Registry.PortMin <= 0 || c.Registry.PortMax > 65535 || c.Registry.PortMin > c.Registry.PortMax {
		return fmt.Errorf("invalid port range [%d, %d]", c.Registry.PortMin, c.Registry.PortMax)
	}
	if c.Registry.GracePeriod < 0 {
		return fmt.Errorf("registry.grace_period cannot be negative")
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health.probe_timeout must be positive")
	}
	if c.Health.ProbeTimeout >= c.Health.Interval {
		return fmt.Errorf(
			"health.probe_timeout (%s) must be shorter than health.interval (%s)",
			c.Health.ProbeTimeout.Std(), c.Health.Interval.Std(),
		)
	}
	if c.Health.ExpiryThreshold <= 0 {
		return fmt.Errorf("health.expiry_threshold must be positive")
	}
	if c.Health.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("health.max_concurrent_probes must be positive")
	}

	if c.Call.Timeout <= 0 {
		return fmt.Errorf("call.timeout must be positive")
	}

	return nil
}

// validateAddr checks if the address is a valid "host:port" string.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("address missing port")
	}

	if _, err := strconv.Atoi(port); err != nil {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("invalid address port: %s", port)
		}
	}

	_ = host // an empty host listens on all interfaces
	return nil
}
