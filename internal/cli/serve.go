package cli

import (
	"github.com/spf13/cobra"

	"as2org/internal/metrics"
	"as2org/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset once and serve lookups over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := metrics.NewRegistry()
			ds, err := a.load(cmd.Context(), reg)
			if err != nil {
				return err
			}
			disc, err := a.discovery()
			if err != nil {
				return err
			}

			srv, err := server.New(server.Config{
				Logger:           a.log,
				Dataset:          ds,
				Lister:           disc,
				Metrics:          reg,
				SnapshotCacheTTL: a.cfg.SnapshotCacheTTL,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context(), a.cfg.ListenAddr, a.cfg.ShutdownTimeout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.cfg.ListenAddr, "listen", a.cfg.ListenAddr, "address to listen on")
	flags.DurationVar(&a.cfg.SnapshotCacheTTL, "snapshot-cache-ttl", a.cfg.SnapshotCacheTTL, "how long to cache the snapshot listing")
	flags.DurationVar(&a.cfg.ShutdownTimeout, "shutdown-timeout", a.cfg.ShutdownTimeout, "how long to wait for in-flight requests on shutdown")
	return cmd
}
