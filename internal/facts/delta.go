package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
// A changed voltage shows up as one removed and one added voltage row.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()
	out.Source = to.Source
	out.Shape = to.Shape
	out.RowLimit = to.RowLimit

	out.Tiers = diffTierRows(from.Tiers, to.Tiers)
	out.OPPs = diffOPPRows(from.OPPs, to.OPPs)
	out.Voltages = diffVoltageRows(from.Voltages, to.Voltages)

	return out
}

func diffTierRows(from, to []TierRow) []TierRow {
	return diffRows(from, to, func(r TierRow) string {
		return r.Table + "|" + r.Designator + "|" + intKey(r.Slot) + "|" + r.Role
	})
}

func diffOPPRows(from, to []OPPRow) []OPPRow {
	return diffRows(from, to, func(r OPPRow) string {
		return uintKey(r.Hz) + "|" + boolKey(r.IsPLL8) + "|" + uintKey(uint64(r.L2Level)) + "|" + uintKey(uint64(r.PerfLevel))
	})
}

func diffVoltageRows(from, to []VoltageRow) []VoltageRow {
	return diffRows(from, to, func(r VoltageRow) string {
		return uintKey(r.Hz) + "|" + intKey(r.Slot) + "|" + uintKey(uint64(r.Microvolt))
	})
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}

func uintKey(v uint64) string {
	return strconv.FormatUint(v, 10)
}
