package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lukasz-falda/libruscli/internal/config"
	"github.com/lukasz-falda/libruscli/internal/gateway"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local caching gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Gateway.Addr = addr
			}

			gw, err := gateway.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return gw.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (host:port)")

	return cmd
}
