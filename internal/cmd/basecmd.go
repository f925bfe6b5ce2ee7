// Package cmd holds shared building blocks for CLI commands: the base
// command with its logger bootstrap, output format selection, and the
// embedded build version.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ojamals/mcpregd/internal/flags"
)

// version is set at build time using -ldflags.
var version = "dev"

// Version returns the build version of the binary.
func Version() string {
	return version
}

// BaseCmd provides common behavior embedded by all CLI commands.
type BaseCmd struct {
	logger hclog.Logger
}

// SetLogger updates the command's logger.
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// Logger returns the current logger for the command, creating one from
// flags and environment variables when none was set.
func (c *BaseCmd) Logger() hclog.Logger {
	if c.logger != nil {
		return c.logger
	}

	// Get log level from flags first, then environment, then default.
	logLevel := flags.LogLevel
	if logLevel == "" {
		logLevel = strings.ToLower(os.Getenv(flags.EnvVarLogLevel))
		if logLevel == "" {
			logLevel = flags.DefaultLogLevel
		}
	}

	// Get log path from flags first, then environment.
	logPath := flags.LogPath
	if logPath == "" {
		logPath = strings.TrimSpace(os.Getenv(flags.EnvVarLogPath))
	}

	// A CLI command's stdout belongs to its own output; logs only go to a
	// file when one is configured.
	var output io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file (%s): %v, discarding logs\n", logPath, err)
		} else {
			output = f
		}
	}

	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:   "mcpregd",
		Level:  hclog.LevelFromString(logLevel),
		Output: output,
	})

	return c.logger
}
