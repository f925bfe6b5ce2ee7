package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ojamals/mcpregd/internal/api"
	"github.com/ojamals/mcpregd/internal/client"
	"github.com/ojamals/mcpregd/internal/cmd"
	"github.com/ojamals/mcpregd/internal/cmd/output"
	"github.com/ojamals/mcpregd/internal/filter"
)

// StatusCmd should be used to represent the 'status' command.
type StatusCmd struct {
	*cmd.BaseCmd
	Addr    string
	Timeout time.Duration
	Format  cmd.OutputFormat
	Filters map[string]string
}

// NewStatusCmd creates a newly configured (Cobra) command.
func NewStatusCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &StatusCmd{
		BaseCmd: baseCmd,
		Format:  cmd.FormatText,
	}

	cobraCommand := &cobra.Command{
		Use:   "status [--addr] [--format]",
		Short: "Reports health of all servers tracked by a running daemon",
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"localhost:8095",
		"Address of the running daemon",
	)

	cobraCommand.Flags().DurationVar(
		&c.Timeout,
		"timeout",
		5*time.Second,
		"Timeout for talking to the daemon",
	)

	allowedFormats := cmd.AllowedOutputFormats()
	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Output format, one of: %v", allowedFormats.String()),
	)

	cobraCommand.Flags().StringToStringVar(
		&c.Filters,
		"filter",
		nil,
		"Filter results, e.g. --filter state=unhealthy --filter name=file",
	)

	return cobraCommand, nil
}

// run is configured (via NewStatusCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *StatusCmd) run(cobraCmd *cobra.Command, _ []string) error {
	cl, err := client.NewClient(c.Logger(), c.Addr, c.Timeout)
	if err != nil {
		return err
	}

	health, err := cl.Health(cobraCmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch server health from %s: %w", c.Addr, err)
	}

	health, err = c.applyFilters(health)
	if err != nil {
		return err
	}

	handler := c.outputHandler(os.Stdout)

	return handler.HandleResults(health...)
}

// applyFilters narrows the health listing using the --filter flag values.
func (c *StatusCmd) applyFilters(health []api.ServerHealth) ([]api.ServerHealth, error) {
	if len(c.Filters) == 0 {
		return health, nil
	}

	opts := []filter.Option[api.ServerHealth]{
		filter.WithMatcher("state", filter.Equals(func(h api.ServerHealth) string { return h.State })),
		filter.WithMatcher("name", filter.Partial(func(h api.ServerHealth) string { return h.Name })),
	}

	out := make([]api.ServerHealth, 0, len(health))
	for _, h := range health {
		ok, err := filter.Match(h, c.Filters, opts...)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, h)
		}
	}

	return out, nil
}

// outputHandler selects the renderer for the chosen format.
func (c *StatusCmd) outputHandler(w io.Writer) output.Handler[api.ServerHealth] {
	switch c.Format {
	case cmd.FormatJSON:
		return output.NewJSONHandler[api.ServerHealth](w, 2)
	case cmd.FormatYAML:
		return output.NewYAMLHandler[api.ServerHealth](w, 2)
	default:
		return output.NewTextHandler[api.ServerHealth](w, &healthPrinter{})
	}
}

// healthPrinter renders one line per tracked server.
type healthPrinter struct{}

func (p *healthPrinter) Header(w io.Writer, count int) {
	fmt.Fprintf(w, "Tracking %d server(s):\n", count)
}

func (p *healthPrinter) Item(w io.Writer, h api.ServerHealth) error {
	latency := "-"
	if h.Latency != nil {
		latency = *h.Latency
	}

	checked := "never"
	if h.LastChecked != nil {
		checked = h.LastChecked.Local().Format(time.RFC3339)
	}

	_, err := fmt.Fprintf(w, "  %-20s %-12s latency=%-10s last_checked=%s\n", h.Name, h.State, latency, checked)

	return err
}

func (p *healthPrinter) Footer(io.Writer, int) {}
