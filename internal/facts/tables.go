package facts

import (
	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
)

// Tables is the relational model of one extracted OPP set.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Source   string       `json:"source"`
	Shape    string       `json:"shape"`
	RowLimit int          `json:"row_limit"`
	Tiers    []TierRow    `json:"tiers"`
	OPPs     []OPPRow     `json:"opps"`
	Voltages []VoltageRow `json:"voltages"`
}

// TierRow records which table fed which voltage slot. Role is "base" for the
// table that created the rows and "merge" for the ones folded into it.
type TierRow struct {
	Table      string `json:"table"`
	Designator string `json:"designator"`
	Slot       int    `json:"slot"`
	Role       string `json:"role"`
	Line       int    `json:"line"`
	Rows       int    `json:"rows"`
	Merged     int    `json:"merged"`
}

type OPPRow struct {
	Hz           uint64 `json:"hz"`
	FrequencyKHz uint32 `json:"frequency_khz"`
	IsPLL8       bool   `json:"is_pll8"`
	L2Level      uint8  `json:"l2_level"`
	PerfLevel    uint   `json:"perf_level"`
}

type VoltageRow struct {
	Hz        uint64 `json:"hz"`
	Slot      int    `json:"slot"`
	Microvolt uint32 `json:"microvolt"`
}

const (
	RoleBase  = "base"
	RoleMerge = "merge"
)

// BuildTables flattens rows into relations, keeping creation order.
func BuildTables(source, shape string, rowLimit int, tiers []TierRow, rows []opp.Row) Tables {
	out := emptyTables()
	out.Source = source
	out.Shape = shape
	out.RowLimit = rowLimit
	out.Tiers = append(out.Tiers, tiers...)

	for _, r := range rows {
		out.OPPs = append(out.OPPs, OPPRow{
			Hz:           r.Hz(),
			FrequencyKHz: r.Frequency,
			IsPLL8:       r.IsPLL8,
			L2Level:      r.L2Level,
			PerfLevel:    r.PerfLevel,
		})
		for _, slot := range r.Tiers() {
			uv, _ := r.Voltage(slot)
			out.Voltages = append(out.Voltages, VoltageRow{
				Hz:        r.Hz(),
				Slot:      slot,
				Microvolt: uv,
			})
		}
	}
	return out
}

func emptyTables() Tables {
	return Tables{
		Tiers:    []TierRow{},
		OPPs:     []OPPRow{},
		Voltages: []VoltageRow{},
	}
}
