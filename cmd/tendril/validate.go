package main

import (
	"fmt"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [definition files...]",
	Short: "Check process definitions for consistency",
	Long:  `Parses every definition and reports unknown targets, dangling boundary hosts and missing event types.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		defs, err := cli.LoadDefinitions(opts, cfg)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		for _, def := range defs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes\n", def.ID, len(def.Nodes))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Definitions are valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
