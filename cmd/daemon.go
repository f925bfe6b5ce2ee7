package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ojamals/mcpregd/internal/cmd"
	"github.com/ojamals/mcpregd/internal/config"
	"github.com/ojamals/mcpregd/internal/daemon"
	"github.com/ojamals/mcpregd/internal/flags"
)

// DaemonCmd should be used to represent the 'daemon' command.
type DaemonCmd struct {
	*cmd.BaseCmd
	Addr string
}

// NewDaemonCmd creates a newly configured (Cobra) command.
func NewDaemonCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &DaemonCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "daemon [--addr]",
		Short: "Launches an `mcpregd` daemon instance",
		Long: "Launches an `mcpregd` daemon instance, which accepts backend registrations, " +
			"monitors their health and routes tool calls via HTTP API",
		RunE: c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		"Address for the daemon to bind, overrides the config file",
	)

	return cobraCommand, nil
}

// run is configured (via NewDaemonCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *DaemonCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if addr := strings.TrimSpace(c.Addr); addr != "" {
		cfg.API.Addr = addr
	}

	d, err := daemon.NewDaemon(logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to create mcpregd daemon instance: %w", err)
	}

	// Create the signal handling context for the application.
	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	fmt.Printf("mcpregd daemon listening on %s\nPress CTRL+C to shut down.\n", cfg.API.Addr)

	if err := d.StartAndManage(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon terminated: %w", err)
	}

	return nil
}
