package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril runs event-driven process definitions",
	Long: `Tendril executes process definitions with boundary events, timers and compensation.
Definitions are YAML files; instances are driven from a console or over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default tendril.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringSliceP("definitions", "d", nil, "Process definition files")
}

func options(cmd *cobra.Command, args []string) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	defs, _ := cmd.Flags().GetStringSlice("definitions")
	return cli.Options{
		ConfigPath:  configPath,
		LogLevel:    logLevel,
		Definitions: append(defs, args...),
	}
}
