package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/acpu2opp/internal/facts"
)

func tablesFor(opps []facts.OPPRow, voltages []facts.VoltageRow, tiers []facts.TierRow) facts.Tables {
	return facts.Tables{
		Source:   "test.c",
		Shape:    "fixed",
		RowLimit: 12,
		Tiers:    tiers,
		OPPs:     opps,
		Voltages: voltages,
	}
}

func opp(khz uint32, level uint) facts.OPPRow {
	return facts.OPPRow{Hz: uint64(khz) * 1000, FrequencyKHz: khz, L2Level: 1, PerfLevel: level}
}

func uv(khz uint32, slot int, microvolt uint32) facts.VoltageRow {
	return facts.VoltageRow{Hz: uint64(khz) * 1000, Slot: slot, Microvolt: microvolt}
}

func TestCleanTablesHaveNoFindings(t *testing.T) {
	engine, err := New("")
	require.NoError(t, err)

	res, err := engine.Evaluate(context.Background(), tablesFor(
		[]facts.OPPRow{opp(384000, 1), opp(486000, 1)},
		[]facts.VoltageRow{uv(384000, 0, 950000), uv(486000, 0, 975000)},
		[]facts.TierRow{{Table: "tbl_slow", Designator: "slow", Slot: 0, Role: "base", Line: 1, Rows: 2}},
	))
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	require.Equal(t, Summary{}, res.Summary)
}

func TestBuiltinRules(t *testing.T) {
	engine, err := New("")
	require.NoError(t, err)

	res, err := engine.Evaluate(context.Background(), tablesFor(
		[]facts.OPPRow{opp(486000, 1), opp(384000, 1)},
		[]facts.VoltageRow{uv(486000, 0, 975000), uv(384000, 0, 950000), uv(486000, 1, 900000)},
		[]facts.TierRow{
			{Table: "tbl_slow", Designator: "slow", Slot: 0, Role: "base", Line: 1, Rows: 2},
			{Table: "tbl_nom", Designator: "nom", Slot: 1, Role: "merge", Line: 9, Rows: 3, Merged: 1},
		},
	))
	require.NoError(t, err)

	byRule := map[string]Violation{}
	for _, v := range res.Violations {
		byRule[v.Rule] = v
	}
	require.Len(t, byRule, 4)

	require.Equal(t, Violation{
		Rule:     "frequency_order",
		Severity: SeverityWarning,
		Hz:       384000000,
		Slot:     -1,
		Message:  "opp-384000000 follows opp-486000000; frequencies should rise",
	}, byRule["frequency_order"])
	require.Equal(t, 0, byRule["voltage_order"].Slot)
	require.Equal(t, "opp-384000000 has no voltage for slot 1 (tbl_nom)", byRule["missing_voltage"].Message)
	require.Equal(t, "2 row(s) of tbl_nom matched no base frequency", byRule["unmerged_rows"].Message)
	require.Equal(t, SeverityInfo, byRule["unmerged_rows"].Severity)

	require.Equal(t, Summary{TotalViolations: 4, Warnings: 3, Info: 1}, res.Summary)
	require.Equal(t, 3, res.Summary.Blocking())
}

func TestExtraRulesExtendViolations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pll8.rego"), []byte(`package acpu2opp.lint

import rego.v1

violations contains v if {
	count([o | some o in input.opps; o.is_pll8]) == 0
	v := {"rule": "no_pll8", "severity": "error", "hz": 0, "slot": -1, "message": "no PLL8 row"}
}
`), 0o644))

	engine, err := New(dir)
	require.NoError(t, err)
	res, err := engine.Evaluate(context.Background(), tablesFor(
		[]facts.OPPRow{opp(486000, 1)},
		[]facts.VoltageRow{uv(486000, 0, 975000)},
		[]facts.TierRow{{Table: "tbl_slow", Designator: "slow", Slot: 0, Role: "base", Line: 1, Rows: 1}},
	))
	require.NoError(t, err)
	require.Equal(t, []Violation{{Rule: "no_pll8", Severity: SeverityError, Slot: -1, Message: "no PLL8 row"}}, res.Violations)
	require.Equal(t, 1, res.Summary.Errors)
}

func TestNewRejectsBadRuleDirectories(t *testing.T) {
	_, err := New(t.TempDir())
	require.ErrorContains(t, err, "no policy files")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package acpu2opp.lint\n\nviolations contains"), 0o644))
	_, err = New(dir)
	require.Error(t, err)
}
