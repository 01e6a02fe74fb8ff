package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [definition files...]",
	Short: "Drive process instances from an interactive console",
	Long:  `Loads the definitions and reads commands (start, signal, work, fire, ...) from stdin. Type 'help' for the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := cli.Bootstrap(ctx, options(cmd, args))
		if err != nil {
			return err
		}
		defer app.Close()

		jsonMode, _ := cmd.Flags().GetBool("json")
		console := &cli.Console{
			Session: app.Session,
			In:      os.Stdin,
			Out:     cmd.OutOrStdout(),
			JSON:    jsonMode,
		}
		if start, _ := cmd.Flags().GetString("start"); start != "" {
			if err := console.Exec(ctx, "start "+start); err != nil {
				return err
			}
		}

		err = console.Run(ctx)
		if errors.Is(err, ctx.Err()) && ctx.Signal() != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nInterrupted (%v)\n", ctx.Signal())
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Print snapshots as NDJSON")
	runCmd.Flags().String("start", "", "Start an instance of this definition before reading commands")
}
