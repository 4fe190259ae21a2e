package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
	"github.com/robert-at-pretension-io/acpu2opp/internal/facts"
	"github.com/robert-at-pretension-io/acpu2opp/internal/pipeline"
)

type commandConfig struct {
	configPath string
	shape      string
	output     string
	deltaFrom  string
	deltaOut   string
	slots      []int
}

func main() {
	if err := newCommand().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error:")
		fmt.Fprintf(os.Stderr, " %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := new(commandConfig)
	cmd := &cobra.Command{
		Use:           "opp-facts [--output file] [--delta-from prev.json --delta-out delta.json] <path>",
		Short:         "Write the validated OPP row set as JSON fact tables",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write facts JSON to file (default: stdout)")
	cmd.Flags().StringVar(&opts.deltaFrom, "delta-from", "", "Previous facts JSON to compute delta from")
	cmd.Flags().StringVar(&opts.deltaOut, "delta-out", "", "Write delta JSON to file (requires --delta-from)")
	cmd.Flags().IntSliceVar(&opts.slots, "slots", nil, "Keep only these voltage slots, e.g. --slots 0,2")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (json, yaml or toml)")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "Table shape: generalized or fixed")
	return cmd
}

func run(cmd *cobra.Command, opts *commandConfig, path string) error {
	if (opts.deltaFrom == "") != (opts.deltaOut == "") {
		return fmt.Errorf("--delta-from and --delta-out must be used together")
	}

	cfg, err := loadConfig(opts, path)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(logrus.WarnLevel)
	p.SetLogger(log)

	res, err := p.Build(path)
	if err != nil {
		return err
	}

	slots := make(map[int]bool, len(opts.slots))
	for _, s := range opts.slots {
		slots[s] = true
	}
	tables := facts.FilterTablesBySlots(res.Tables, slots)

	if opts.output != "" {
		if err := writeJSON(opts.output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else if err := encodeJSON(cmd.OutOrStdout(), tables); err != nil {
		return fmt.Errorf("encoding facts: %w", err)
	}

	if opts.deltaFrom != "" {
		prev, err := readTables(opts.deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta := facts.FilterDeltaBySlots(facts.ComputeDelta(prev, res.Tables), slots)
		if err := writeJSON(opts.deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func loadConfig(opts *commandConfig, path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.shape != "" && opts.shape != cfg.Shape {
		cfg.Shape = opts.shape
		cfg.Tiers = config.DefaultTiers(opts.shape)
	}
	return cfg, nil
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return encodeJSON(f, data)
}

func encodeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
