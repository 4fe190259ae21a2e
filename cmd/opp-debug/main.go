package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
	"github.com/robert-at-pretension-io/acpu2opp/internal/extractor"
	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error:")
		fmt.Fprintf(os.Stderr, " %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		shape string
		tree  bool
	)
	cmd := &cobra.Command{
		Use:           "opp-debug <path>",
		Short:         "Print every located table, its tier and each row's tokens",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if tree {
				return dumpTree(cmd.OutOrStdout(), src)
			}
			return dump(cmd.OutOrStdout(), src, shape)
		},
	}
	cmd.Flags().StringVar(&shape, "shape", config.ShapeGeneralized, "Table shape: generalized or fixed")
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the tree-sitter C syntax tree instead")
	return cmd
}

func dumpTree(w io.Writer, src []byte) error {
	sexp, err := extractor.NewTreeSitterLocator(patterns.New()).Tree(src)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, sexp)
	return err
}

func dump(w io.Writer, src []byte, shape string) error {
	set := patterns.New()
	ext := extractor.New(set)
	tokens := opp.NewTokenizer(set.Token)
	cfg := &config.Config{Shape: shape, Tiers: config.DefaultTiers(shape)}

	how := extractor.DesignateBySideTable
	if shape == config.ShapeFixed {
		how = extractor.DesignateBySuffix
	}

	if how == extractor.DesignateBySideTable {
		for _, e := range ext.TierEntries(src) {
			fmt.Fprintf(w, "side table line %d: [%s][%s] = %s\n", e.Line, e.Speed, e.Designator, e.Table)
		}
	}

	tables, err := ext.Tables(src, how)
	if err != nil {
		return err
	}

	for _, tbl := range tables {
		slot := "?"
		if s, ok := cfg.TierSlot(tbl.Designator); ok {
			slot = fmt.Sprint(s)
		}
		fmt.Fprintf(w, "\ntable %s (line %d) tier %s slot %s\n", tbl.Name, tbl.Line, tbl.Designator, slot)

		for i, row := range ext.Rows(tbl.Block) {
			fmt.Fprintf(w, "  row %d: %s\n", i+1, strings.Join(strings.Fields(row), " "))
			n := 0
			for tok := range tokens.All(row) {
				fmt.Fprintf(w, "    [%d] %-7s %q @%d\n", n, tok.Kind, tok.Text, tok.Offset)
				n++
			}
		}
	}
	return nil
}
