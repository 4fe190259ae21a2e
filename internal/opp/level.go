package opp

// levelFor picks the perf level for a new row in clock domain l2.
//
// Rows of one L2 domain share a level. A domain seen for the first time gets
// the last-created row's level plus one, which is only monotonic when tables
// list frequencies in ascending order. Rows are never sorted to force it.
func levelFor(rows []Row, l2 uint8) uint {
	for _, r := range rows {
		if r.L2Level == l2 {
			return r.PerfLevel
		}
	}
	if len(rows) == 0 {
		return 1
	}
	return rows[len(rows)-1].PerfLevel + 1
}
