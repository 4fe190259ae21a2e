// =============================================================================
// acpu2opp - Main Entry Point
// =============================================================================
//
// Reads a Krait acpuclock source file and prints devicetree OPP nodes for
// every frequency the kernel used for scaling.
//
// THE PIPELINE:
//   1. Locator finds every struct acpu_level table (regex or tree-sitter)
//   2. Tier designators come from the table suffix or the pvs side table
//   3. The first tier creates rows, later tiers merge voltages by frequency
//   4. Row ceiling, unique frequencies and the CUE contract are checked
//   5. OPA lint rules report suspicious tables (fatal with --strict)
//   6. Nodes are rendered to a buffer and written only if all checks passed
//
// WHEN OUTPUT LOOKS WRONG:
//   Start at the beginning of the pipeline, not the end!
//   Table location -> tier pairing -> row parsing -> rendering
//   `opp-debug <file>` prints what each stage saw.
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
	"github.com/robert-at-pretension-io/acpu2opp/internal/pipeline"
)

type commandConfig struct {
	configPath string
	verbose    bool
	shape      string
	locator    string
	maxRows    int
	timing     string
	rules      string
	strict     bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := new(commandConfig)

	cmd := &cobra.Command{
		Use:   "acpu2opp [flags] <path>",
		Short: "Convert acpuclock frequency tables into devicetree OPP nodes",
		Long: `acpu2opp reads the struct acpu_level tables of a Krait acpuclock source
file and prints one devicetree OPP node per scaling frequency to stdout.

Configuration:
  acpu2opp looks for configuration in:
    1. ./acpu2opp.json
    2. ./.acpu2opp.json
    3. acpu2opp.json next to the input file
    4. ~/.config/acpu2opp/config.json

  Every key can be overridden with ACPU2OPP_<KEY>, e.g. ACPU2OPP_SHAPE=fixed.
  Run 'acpu2opp init' to create a default configuration file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0])
		},
	}

	cmd.PersistentFlags().StringVar(&opts.shape, "shape", "", "Table shape: generalized or fixed")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (json, yaml or toml)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log per-table summaries to stderr")
	cmd.Flags().StringVar(&opts.locator, "locator", "", "Table locator: regex or treesitter")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", 0, "Override the row ceiling")
	cmd.Flags().StringVar(&opts.timing, "timing", "", "Write stage timings to this JSONL file")
	cmd.Flags().StringVar(&opts.rules, "rules", "", "Directory of extra .rego lint rules")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on lint errors and warnings")

	cmd.AddCommand(newInitCommand(opts))
	return cmd
}

func run(cmd *cobra.Command, opts *commandConfig, path string) error {
	log := newLogger(cmd.ErrOrStderr(), opts.verbose)

	cfg, err := loadConfig(opts, path, log)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	p.SetLogger(log)

	log.WithFields(logrus.Fields{
		"shape":   cfg.Shape,
		"locator": cfg.Locator,
		"limit":   cfg.RowLimit(),
	}).Debug("configuration")

	return p.Run(path, cmd.OutOrStdout())
}

// loadConfig reads the config file, then applies command-line overrides.
func loadConfig(opts *commandConfig, path string, log logrus.FieldLogger) (*config.Config, error) {
	var cfg *config.Config
	if opts.configPath != "" {
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", opts.configPath, err)
		}
		cfg = loaded
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			log.WithError(err).Warn("could not load config, using defaults")
			loaded = config.DefaultConfig()
		}
		cfg = loaded
	}

	if opts.shape != "" && opts.shape != cfg.Shape {
		// The tier map belongs to the shape it was written for.
		cfg.Shape = opts.shape
		cfg.Tiers = config.DefaultTiers(opts.shape)
	}
	if opts.locator != "" {
		cfg.Locator = opts.locator
	}
	if opts.maxRows != 0 {
		cfg.MaxRows = opts.maxRows
	}
	if opts.timing != "" {
		cfg.Timing.Path = opts.timing
	}
	if opts.rules != "" {
		cfg.Policy.Dir = opts.rules
	}
	if opts.strict {
		cfg.Policy.Strict = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func reportError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprint(w, "Error:")
	fmt.Fprintf(w, " %v\n", err)
}
