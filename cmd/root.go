package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ojamals/mcpregd/internal/cmd"
	"github.com/ojamals/mcpregd/internal/flags"
)

// RootCmd should be used to represent the root command.
type RootCmd struct {
	*cmd.BaseCmd
}

// Execute builds and runs the root command.
func Execute() error {
	rootCmd, err := NewRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating root command: %s\n", err)
		return err
	}

	return rootCmd.Execute()
}

// NewRootCmd creates a newly configured (Cobra) command.
func NewRootCmd() (*cobra.Command, error) {
	c := &RootCmd{
		BaseCmd: &cmd.BaseCmd{},
	}

	rootCmd := &cobra.Command{
		Use:          "mcpregd <command> [args]",
		Short:        "'mcpregd' coordinates MCP backend servers behind a single endpoint.",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      cmd.Version(),
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	daemonCmd, err := NewDaemonCmd(c.BaseCmd)
	if err != nil {
		return nil, err
	}
	statusCmd, err := NewStatusCmd(c.BaseCmd)
	if err != nil {
		return nil, err
	}

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `'mcpregd' is a registry and coordinator for MCP backend servers.

Backends register themselves, are assigned non-conflicting ports, and are
health-checked continuously. Clients discover and invoke tools across all
healthy backends through one unified HTTP endpoint.`
}
