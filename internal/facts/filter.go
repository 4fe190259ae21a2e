package facts

// FilterTablesBySlots keeps only the voltage rows and tier rows of the given
// slots. OPP rows are kept when at least one of their voltages survives.
func FilterTablesBySlots(tables Tables, slots map[int]bool) Tables {
	if len(slots) == 0 {
		return tables
	}

	out := emptyTables()
	out.Source = tables.Source
	out.Shape = tables.Shape
	out.RowLimit = tables.RowLimit

	for _, row := range tables.Tiers {
		if slots[row.Slot] {
			out.Tiers = append(out.Tiers, row)
		}
	}

	kept := make(map[uint64]bool)
	for _, row := range tables.Voltages {
		if slots[row.Slot] {
			out.Voltages = append(out.Voltages, row)
			kept[row.Hz] = true
		}
	}

	for _, row := range tables.OPPs {
		if kept[row.Hz] {
			out.OPPs = append(out.OPPs, row)
		}
	}

	return out
}

// FilterDeltaBySlots applies FilterTablesBySlots to both sides of a delta.
func FilterDeltaBySlots(delta Delta, slots map[int]bool) Delta {
	return Delta{
		Added:   FilterTablesBySlots(delta.Added, slots),
		Removed: FilterTablesBySlots(delta.Removed, slots),
	}
}
