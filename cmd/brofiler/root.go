package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpcmd "github.com/saveenergy/brofiler/cmd/mcp"
	"github.com/saveenergy/brofiler/cmd/monitor"
	"github.com/saveenergy/brofiler/internal/broctl"
	"github.com/saveenergy/brofiler/internal/config"
	"github.com/saveenergy/brofiler/internal/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "brofiler",
		Short: "Bro cluster controller and capture-loss monitor",
		Long: "brofiler registers Bro cluster nodes, applies the cluster configuration\n" +
			"through broctl and monitors per-device packet capture loss.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (BROFILER_* env vars override it)")

	root.AddCommand(
		newMonitorCmd(opts, version),
		newNodeCmd(opts),
		newScriptCmd(opts),
		newApplyCmd(opts),
		newMCPCmd(version),
		newVersionCmd(version),
	)
	return root
}

// loadConfig also installs the configured logger.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := monitor.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := monitor.ConfigureLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newMonitorCmd(opts *rootOptions, version string) *cobra.Command {
	mopts := monitor.Options{Version: version}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "apply the cluster config and poll capture statistics",
		Long: "Run broctl install and restart, then poll `broctl netstats` every period,\n" +
			"printing each cycle and serving the HTTP API, websocket stream and /metrics.",
		Example: "brofiler monitor --config /etc/brofiler.yaml --plain",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer logging.Sync()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			mopts.Stdout = cmd.OutOrStdout()
			mopts.Stderr = cmd.ErrOrStderr()
			return monitor.Run(ctx, cfg, mopts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&mopts.JSON, "json", false, "emit one JSON object per cycle")
	flags.BoolVar(&mopts.Plain, "plain", false, "emit key=value lines (default when stdout is not a terminal)")
	flags.BoolVar(&mopts.NoColor, "no-color", false, "disable colored output")
	cmd.MarkFlagsMutuallyExclusive("json", "plain")
	return cmd
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "apply",
		Short:   "install and restart the cluster",
		Long:    "Run `broctl install` followed by `broctl restart` so node.cfg and script changes take effect.",
		Example: "brofiler apply",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer logging.Sync()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			c := broctl.New(cfg.BroctlPath, cfg.UseSudo, cfg.CommandTimeout,
				broctl.WithLogger(logging.NewLogger("broctl")))
			if err := c.Apply(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cluster configuration applied")
			return nil
		},
	}
}

func newMCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "run as an MCP server over stdio",
		Long:  "Serve the parse_netstats, format_node and monitor_status tools to AI agents over stdio.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if code := mcpcmd.Run(version); code != 0 {
				return fmt.Errorf("mcp server exited with code %d", code)
			}
			return nil
		},
	}
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "brofiler %s\n", version)
		},
	}
}
