package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/factkit/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool registry over HTTP",
		Long: `Serve the tool registry over HTTP until interrupted.

  GET  /v1/tools                 list tools
  GET  /v1/tools/{name}          describe one tool
  POST /v1/tools/{name}/invoke   invoke a tool, body is the argument object
  GET  /metrics                  Prometheus metrics
  GET  /healthz                  health check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			sc := a.cfg.Server
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			srv, err := server.NewServer(server.Options{
				Host:               sc.Host,
				Port:               sc.Port,
				RateLimitPerMinute: sc.RateLimitPerMinute,
				MaxBody:            sc.MaxBodyBytes,
				ShutdownTimeout:    time.Duration(sc.ShutdownTimeout) * time.Second,
				Secret:             sc.Secret,
			}, a.registry, a.metrics, log.Logger)
			if err != nil {
				return err
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")

	return cmd
}
