package extractor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
)

const plainTables = `#include "acpuclock.h"

static struct acpu_level acpu_freq_tbl_slow[] = {
	{ 1, {   384000, PLL_8, 0, 0x00 }, L2(1),   950000 },
	{ 1, {   486000, HFPLL, 2, 0x12 }, L2(1),   975000 },
	{ 0, { 0 } }
};

static int unrelated[] = { 1, 2, 3 };

static struct acpu_level acpu_freq_tbl_nom[] = {
	{ 1, {   384000, PLL_8, 0, 0x00 }, L2(1),   900000 },
	{ 0, { 0 } }
};
`

func TestTreeSitterLocatorMatchesRegexLocator(t *testing.T) {
	set := patterns.New()
	src := []byte(plainTables)

	want, err := NewRegexLocator(set).Locate(src)
	if err != nil {
		t.Fatalf("regex Locate: %v", err)
	}
	got, err := NewTreeSitterLocator(set).Locate(src)
	if err != nil {
		t.Fatalf("tree-sitter Locate: %v", err)
	}

	if len(want) != 2 {
		t.Fatalf("expected 2 regex blocks, got %d", len(want))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("locators disagree (-regex +tree-sitter):\n%s", diff)
	}
}

func TestTreeSitterLocatorFeedsExtractor(t *testing.T) {
	set := patterns.New()
	ext := New(set)
	ext.SetLocator(NewTreeSitterLocator(set))

	tables, err := ext.Tables([]byte(plainTables), DesignateBySuffix)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 2 || tables[0].Designator != "slow" || tables[1].Designator != "nom" {
		t.Fatalf("unexpected tables %+v", tables)
	}
	if rows := ext.Rows(tables[0].Block); len(rows) != 2 {
		t.Fatalf("expected 2 rows in slow table, got %d", len(rows))
	}
}

func TestTreeSitterTree(t *testing.T) {
	tree, err := NewTreeSitterLocator(patterns.New()).Tree([]byte(plainTables))
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if !strings.HasPrefix(tree, "(translation_unit") || !strings.Contains(tree, "initializer_list") {
		t.Fatalf("unexpected tree: %s", tree)
	}
}
