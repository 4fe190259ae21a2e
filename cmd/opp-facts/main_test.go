package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/acpu2opp/internal/facts"
)

func sampleInput(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("../../testdata/acpuclock-8064.c")
	require.NoError(t, err)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	return abs
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newCommand()
	cmd.SetArgs(append([]string{}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestFactsToStdout(t *testing.T) {
	input := sampleInput(t)
	out, err := execute(t, input)
	require.NoError(t, err)

	var tables facts.Tables
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Equal(t, input, tables.Source)
	require.Equal(t, "generalized", tables.Shape)
	require.Len(t, tables.Tiers, 3)
	require.Len(t, tables.OPPs, 6)
	require.Len(t, tables.Voltages, 18)
	require.Equal(t, uint64(384000000), tables.OPPs[0].Hz)
	require.True(t, tables.OPPs[0].IsPLL8)
}

func TestFactsSlotFilterAndDelta(t *testing.T) {
	input := sampleInput(t)
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "prev.json")
	deltaPath := filepath.Join(dir, "delta.json")

	_, err := execute(t, "--slots", "0", "-o", prevPath, input)
	require.NoError(t, err)
	prev, err := readTables(prevPath)
	require.NoError(t, err)
	require.Len(t, prev.Tiers, 1)
	require.Len(t, prev.Voltages, 6)

	out, err := execute(t, "--delta-from", prevPath, "--delta-out", deltaPath, input)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	raw, err := os.ReadFile(deltaPath)
	require.NoError(t, err)
	var delta facts.Delta
	require.NoError(t, json.Unmarshal(raw, &delta))
	require.Len(t, delta.Added.Tiers, 2)
	require.Len(t, delta.Added.Voltages, 12)
	require.Empty(t, delta.Added.OPPs)
	require.Empty(t, delta.Removed.Voltages)
}

func TestFactsDeltaFlagsTogether(t *testing.T) {
	input := sampleInput(t)
	_, err := execute(t, "--delta-from", "prev.json", input)
	require.ErrorContains(t, err, "must be used together")
}

func TestFactsPropagatesPipelineErrors(t *testing.T) {
	sampleInput(t)
	src := filepath.Join(t.TempDir(), "empty.c")
	require.NoError(t, os.WriteFile(src, []byte("int x;\n"), 0o644))

	out, err := execute(t, src)
	require.ErrorContains(t, err, "structural mismatch")
	require.Empty(t, out)
}
