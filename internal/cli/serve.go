package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dbstarter/internal/metrics"
	"github.com/mesh-intelligence/dbstarter/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the databases and serve read-only status endpoints",
		Long: "Run start, then serve /healthz, /meta, /inventory and /metrics until\n" +
			"interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			b, report, err := s.start(ctx, m)
			if err != nil {
				return err
			}
			defer b.Detach()

			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			return server.New(b, m, s.logger, report.RunID).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}
