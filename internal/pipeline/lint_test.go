package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
	"github.com/robert-at-pretension-io/acpu2opp/internal/policy"
)

const fallingTable = `static struct acpu_level acpu_freq_tbl_slow[] = {
	{ 1, { 486000, HFPLL, 2, 0x12 }, L2(1), 975000 },
	{ 1, { 384000, PLL_8, 0, 0x00 }, L2(2), 950000 },
};`

func newHookedPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *test.Hook) {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	p.SetLogger(log)
	return p, hook
}

func rulesOf(res *policy.Result) map[string]int {
	out := map[string]int{}
	for _, v := range res.Violations {
		out[v.Rule]++
	}
	return out
}

func TestLintSampleReportsUnmergedRows(t *testing.T) {
	p, _ := newHookedPipeline(t, shapeConfig(config.ShapeGeneralized, config.LocatorRegex))
	res, err := p.Build(sample)
	require.NoError(t, err)
	require.NotNil(t, res.Lint)

	require.Equal(t, map[string]int{"unmerged_rows": 2}, rulesOf(res.Lint))
	require.Equal(t, 2, res.Lint.Summary.Info)
	require.Zero(t, res.Lint.Summary.Blocking())
}

func TestLintWarnsOnFallingFrequencies(t *testing.T) {
	p, hook := newHookedPipeline(t, shapeConfig(config.ShapeFixed, config.LocatorRegex))
	res, err := p.BuildSource("falling.c", []byte(fallingTable))
	require.NoError(t, err)

	rules := rulesOf(res.Lint)
	require.Equal(t, 1, rules["frequency_order"])

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["rule"] == "frequency_order" {
			warned = true
			require.Equal(t, uint64(384000000), e.Data["hz"])
		}
	}
	require.True(t, warned, "expected a frequency_order warning")
}

func TestLintStrictModeFails(t *testing.T) {
	cfg := shapeConfig(config.ShapeFixed, config.LocatorRegex)
	cfg.Policy.Strict = true
	p, _ := newHookedPipeline(t, cfg)

	res, err := p.BuildSource("falling.c", []byte(fallingTable))
	require.Nil(t, res)
	require.ErrorIs(t, err, opp.ContractViolation)
}

func TestLintVoltageDropAndMissingVoltage(t *testing.T) {
	src := `static struct acpu_level acpu_freq_tbl_slow[] = {
	{ 1, { 384000, PLL_8, 0, 0x00 }, L2(1), 950000 },
	{ 1, { 486000, HFPLL, 2, 0x12 }, L2(1), 900000 },
};
static struct acpu_level acpu_freq_tbl_nom[] = {
	{ 1, { 384000, PLL_8, 0, 0x00 }, L2(1), 900000 },
};`
	p, _ := newHookedPipeline(t, shapeConfig(config.ShapeFixed, config.LocatorRegex))
	res, err := p.BuildSource("drop.c", []byte(src))
	require.NoError(t, err)

	require.Equal(t, map[string]int{"voltage_order": 1, "missing_voltage": 1}, rulesOf(res.Lint))
	for _, v := range res.Lint.Violations {
		switch v.Rule {
		case "voltage_order":
			require.Equal(t, 0, v.Slot)
			require.Equal(t, uint64(486000000), v.Hz)
		case "missing_voltage":
			require.Equal(t, 1, v.Slot)
			require.Equal(t, uint64(486000000), v.Hz)
			require.Contains(t, v.Message, "acpu_freq_tbl_nom")
		}
	}
}

func TestLintExtraRuleDirectory(t *testing.T) {
	dir := t.TempDir()
	rule := `package acpu2opp.lint

import rego.v1

violations contains v if {
	some o in input.opps
	o.perf_level > 3
	v := {
		"rule": "too_many_levels",
		"severity": "error",
		"hz": o.hz,
		"slot": -1,
		"message": sprintf("opp-%v is at level %v", [o.hz, o.perf_level]),
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "levels.rego"), []byte(rule), 0o644))

	cfg := shapeConfig(config.ShapeGeneralized, config.LocatorRegex)
	cfg.Policy.Dir = dir
	p, _ := newHookedPipeline(t, cfg)
	res, err := p.Build(sample)
	require.NoError(t, err)
	require.Equal(t, 1, rulesOf(res.Lint)["too_many_levels"])
	require.Equal(t, 1, res.Lint.Summary.Errors)

	cfg.Policy.Strict = true
	p, _ = newHookedPipeline(t, cfg)
	_, err = p.Build(sample)
	require.ErrorIs(t, err, opp.ContractViolation)
}

func TestNewRejectsEmptyRuleDirectory(t *testing.T) {
	cfg := shapeConfig(config.ShapeGeneralized, config.LocatorRegex)
	cfg.Policy.Dir = t.TempDir()
	_, err := New(cfg)
	require.Error(t, err)
}
