package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saveenergy/brofiler/internal/config"
	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/internal/registry"
	"github.com/saveenergy/brofiler/pkg/types"
)

func withService(opts *rootOptions, fn func(*config.Config, *registry.Service) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	store, err := registry.Open(cfg.RegistryDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	writer := nodecfg.NewWriter(cfg.NodeCfgPath, cfg.LoadFilePath, cfg.ScriptPrefix)
	return fn(cfg, registry.NewService(store, writer, logging.NewLogger("registry")))
}

func newNodeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "manage cluster nodes",
		Long:  "Register, list or remove cluster nodes. Registration appends the node to node.cfg.",
	}
	cmd.AddCommand(newNodeAddCmd(opts), newNodeListCmd(opts), newNodeRemoveCmd(opts))
	return cmd
}

func newNodeAddCmd(opts *rootOptions) *cobra.Command {
	var role, host, iface string
	cmd := &cobra.Command{
		Use:     "add NAME",
		Short:   "register a node and append it to node.cfg",
		Example: "brofiler node add worker-1 --role worker --host 10.0.0.5 --interface eth0",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := types.NewDeviceDescriptor(args[0], types.Role(role), host, iface)
			if err != nil {
				return err
			}
			return withService(opts, func(cfg *config.Config, svc *registry.Service) error {
				if err := svc.Register(d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s on %s) in %s\n", d.Name(), d.Role(), d.Host(), cfg.NodeCfgPath)
				fmt.Fprintln(cmd.OutOrStdout(), "Run `brofiler apply` for the change to take effect.")
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&role, "role", "", "manager, proxy, worker or standalone")
	flags.StringVar(&host, "host", "", "host address of the node")
	flags.StringVar(&iface, "interface", "", "interface to sniff (worker and standalone only)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newNodeListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list registered nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(opts, func(_ *config.Config, svc *registry.Service) error {
				entries, err := svc.List()
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tROLE\tHOST\tINTERFACE")
				for _, e := range entries {
					iface := e.Device.Interface()
					if iface == "" {
						iface = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Device.Name(), e.Device.Role(), e.Device.Host(), iface)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newNodeRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "remove a node from the registry",
		Long:  "Remove a node from the registry. node.cfg is append-only and must be edited by hand.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, func(_ *config.Config, svc *registry.Service) error {
				if err := svc.Deregister(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s from the registry\n", args[0])
				return nil
			})
		},
	}
}

func newScriptCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "manage loaded scripts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "add NAME",
		Short:   "append a script load directive",
		Example: "brofiler script add profile.bro",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(opts, func(cfg *config.Config, svc *registry.Service) error {
				if err := svc.AddScript(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added @load %s%s to %s\n", cfg.ScriptPrefix, args[0], cfg.LoadFilePath)
				return nil
			})
		},
	})
	return cmd
}
