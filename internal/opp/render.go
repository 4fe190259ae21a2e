package opp

import (
	"fmt"
	"io"
	"strings"
)

const (
	// SupportedHW is the opp-supported-hw mask written on every node.
	SupportedHW = 0x4007
	// PLL8LatencyNs is the switch latency annotated on PLL8-fed rows.
	PLL8LatencyNs = 244144
)

// Render writes row as a devicetree OPP node followed by a blank line.
func Render(w io.Writer, row Row) error {
	var b strings.Builder
	hz := row.Hz()

	fmt.Fprintf(&b, "opp-%d {\n", hz)
	fmt.Fprintf(&b, "\topp-hz = /bits/ 64 <%d>;\n", hz)
	for _, tier := range row.Tiers() {
		uv := row.voltages[tier]
		fmt.Fprintf(&b, "\topp-microvolt-speed0-pvs%d = <%d %d %d>;\n", tier, uv, uv, uv)
	}
	fmt.Fprintf(&b, "\topp-supported-hw = <%#x>;\n", SupportedHW)
	fmt.Fprintf(&b, "\topp-level = <%d>;\n", row.PerfLevel)
	if row.IsPLL8 {
		b.WriteString("\t/* give enough time to switch between PLL8 and HFPLL */\n")
		fmt.Fprintf(&b, "\tclock-latency-ns = <%d>;\n", PLL8LatencyNs)
	}
	b.WriteString("};\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderAll renders rows in order.
func RenderAll(w io.Writer, rows []Row) error {
	for _, row := range rows {
		if err := Render(w, row); err != nil {
			return err
		}
	}
	return nil
}
