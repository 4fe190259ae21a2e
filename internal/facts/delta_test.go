package facts

import "testing"

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		OPPs: []OPPRow{
			{Hz: 384000000, FrequencyKHz: 384000, PerfLevel: 1},
			{Hz: 486000000, FrequencyKHz: 486000, PerfLevel: 1},
		},
		Voltages: []VoltageRow{
			{Hz: 384000000, Slot: 0, Microvolt: 950000},
			{Hz: 486000000, Slot: 0, Microvolt: 975000},
		},
	}
	next := Tables{
		OPPs: []OPPRow{
			{Hz: 384000000, FrequencyKHz: 384000, PerfLevel: 1},
			{Hz: 594000000, FrequencyKHz: 594000, PerfLevel: 2},
		},
		Voltages: []VoltageRow{
			{Hz: 384000000, Slot: 0, Microvolt: 925000},
			{Hz: 594000000, Slot: 0, Microvolt: 1000000},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.OPPs) != 1 || delta.Added.OPPs[0].Hz != 594000000 {
		t.Fatalf("expected 594 MHz added, got %+v", delta.Added.OPPs)
	}
	if len(delta.Removed.OPPs) != 1 || delta.Removed.OPPs[0].Hz != 486000000 {
		t.Fatalf("expected 486 MHz removed, got %+v", delta.Removed.OPPs)
	}
	// 384 MHz changed voltage: one removal and one addition.
	if len(delta.Added.Voltages) != 2 || delta.Added.Voltages[0].Microvolt != 925000 {
		t.Fatalf("unexpected added voltages %+v", delta.Added.Voltages)
	}
	if len(delta.Removed.Voltages) != 2 || delta.Removed.Voltages[0].Microvolt != 950000 {
		t.Fatalf("unexpected removed voltages %+v", delta.Removed.Voltages)
	}
}

func TestComputeDeltaIdenticalIsEmpty(t *testing.T) {
	tables := BuildTables("x.c", "generalized", 20, nil, sampleRows())
	delta := ComputeDelta(tables, tables)
	if len(delta.Added.OPPs) != 0 || len(delta.Removed.Voltages) != 0 || delta.Added.OPPs == nil {
		t.Fatalf("expected empty non-nil delta, got %+v", delta)
	}
}
