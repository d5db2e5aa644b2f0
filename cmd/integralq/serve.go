package main

import (
	"github.com/spf13/cobra"

	"integralq/internal/app"
	"integralq/internal/infrastructure"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				c.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			logger, err := infrastructure.NewLogger(c.cfg.Logging)
			if err != nil {
				return err
			}
			a, err := app.New(c.cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
