package main

import (
	"github.com/spf13/cobra"

	"github.com/vinayprograms/refinery/registry"
	"github.com/vinayprograms/refinery/shutdown"
)

func newRegistryCommand(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Run the discovery registry",
		Long: `Run the registry agents register with and resolve capability tags against.
Entries live in memory; set registry.ttl to drop agents that stop re-registering.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Registry.Listen = listen
			}
			coord := a.coordinator()
			if err := a.tracing(cmd.Context(), "registry", coord); err != nil {
				return err
			}

			reg := registry.NewMemoryRegistry(registry.MemoryConfig{TTL: a.cfg.Registry.TTL})
			srv := registry.NewServer(a.cfg.Registry.Listen, reg, a.logger)
			coord.RegisterWithPhase("registry", srv, shutdown.PhaseListeners)
			return serve(coord, srv.Start)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to bind (overrides registry.listen)")
	return cmd
}
