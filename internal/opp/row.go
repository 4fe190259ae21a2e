package opp

// MaxTiers is the number of voltage slots a row carries.
const MaxTiers = 7

// PLL8Source is the clock-source name that marks a PLL8-fed row.
const PLL8Source = "PLL_8"

// Row is one normalized frequency entry.
//
// A Row is created by a Parser during first-tier traversal; afterwards only its
// voltages change, through Merge. PerfLevel and L2Level never change.
type Row struct {
	// Frequency in kHz, as written in the source table.
	Frequency uint32
	IsPLL8    bool
	// L2Level is the secondary clock-domain index from L2(<n>).
	L2Level   uint8
	PerfLevel uint

	voltages  [MaxTiers]uint32
	populated uint8
}

// NewRow builds a row with a single populated tier.
func NewRow(freq uint32, isPLL8 bool, l2 uint8, perfLevel uint, tier int, uv uint32) Row {
	r := Row{
		Frequency: freq,
		IsPLL8:    isPLL8,
		L2Level:   l2,
		PerfLevel: perfLevel,
	}
	r.setVoltage(tier, uv)
	return r
}

// Hz is the rendered frequency.
func (r Row) Hz() uint64 {
	return uint64(r.Frequency) * 1000
}

// Voltage returns the tier's microvolts and whether the tier was observed.
func (r Row) Voltage(tier int) (uint32, bool) {
	if tier < 0 || tier >= MaxTiers {
		return 0, false
	}
	return r.voltages[tier], r.populated&(1<<tier) != 0
}

// Voltages returns all slots; unobserved tiers are zero.
func (r Row) Voltages() [MaxTiers]uint32 {
	return r.voltages
}

// Tiers lists the observed tiers in ascending order.
func (r Row) Tiers() []int {
	var tiers []int
	for i := 0; i < MaxTiers; i++ {
		if r.populated&(1<<i) != 0 {
			tiers = append(tiers, i)
		}
	}
	return tiers
}

func (r *Row) setVoltage(tier int, uv uint32) {
	r.voltages[tier] = uv
	r.populated |= 1 << tier
}
