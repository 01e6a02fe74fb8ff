package main

import (
	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [definition files...]",
	Short: "Start the HTTP server",
	Long:  `Exposes the session as a JSON API, with Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := cli.Bootstrap(ctx, options(cmd, args))
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		return app.Serve(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (default from config, :8080)")
}
