package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
)

const defaultConfigPath = "acpu2opp.json"

func newInitCommand(opts *commandConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an acpu2opp.json configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts.shape)
		},
	}
}

func runInit(cmd *cobra.Command, shape string) error {
	out := cmd.OutOrStdout()

	// Check if file already exists
	if fileExists(defaultConfigPath) {
		fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", defaultConfigPath)
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if shape != "" {
		cfg.Shape = shape
		cfg.Tiers = config.DefaultTiers(shape)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(defaultConfigPath); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", defaultConfigPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Table shape (generalized or fixed)")
	fmt.Fprintln(out, "  - Tier designator to voltage slot map")
	fmt.Fprintln(out, "  - Row ceiling and timing output")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
