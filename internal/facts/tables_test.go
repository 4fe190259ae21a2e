package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
)

func sampleRows() []opp.Row {
	a := opp.NewRow(384000, true, 1, 1, 0, 950000)
	b := opp.NewRow(594000, false, 3, 2, 0, 1000000)
	return []opp.Row{a, b}
}

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	tiers := []TierRow{{Table: "acpu_freq_tbl_slow", Designator: "PVS_SLOW", Slot: 0, Role: RoleBase}}
	tables := BuildTables("acpuclock.c", "generalized", 20, tiers, sampleRows())

	if len(tables.OPPs) != 2 {
		t.Fatalf("expected 2 opp rows, got %d", len(tables.OPPs))
	}
	first := tables.OPPs[0]
	if first.Hz != 384000000 || first.FrequencyKHz != 384000 || !first.IsPLL8 || first.PerfLevel != 1 {
		t.Fatalf("unexpected first opp row %+v", first)
	}
	if tables.OPPs[1].Hz != 594000000 {
		t.Fatalf("rows must keep creation order, got %+v", tables.OPPs)
	}
	if len(tables.Voltages) != 2 || tables.Voltages[0].Microvolt != 950000 || tables.Voltages[0].Slot != 0 {
		t.Fatalf("unexpected voltage rows %+v", tables.Voltages)
	}
	if len(tables.Tiers) != 1 || tables.RowLimit != 20 || tables.Source != "acpuclock.c" {
		t.Fatalf("unexpected header %+v", tables)
	}
}

func TestBuildTablesEmptyRelationsAreNotNil(t *testing.T) {
	tables := BuildTables("x.c", "fixed", 12, nil, nil)
	if tables.Tiers == nil || tables.OPPs == nil || tables.Voltages == nil {
		t.Fatalf("expected empty, non-nil relations")
	}
}
