package patterns

import "regexp"

// Set holds every matcher the pipeline scans with. Build it once with New and
// pass it by reference; the compiled expressions are never mutated.
type Set struct {
	// Block matches a whole table declaration.
	// Pattern: static struct acpu_level <name>[...] __initdata = { <body> };
	// Groups: 1 = table identifier, 2 = body.
	Block *regexp.Regexp

	// Header matches the text that precedes a table's opening brace.
	// Pattern: static struct acpu_level <name>[...] __initdata =
	// Groups: 1 = table identifier.
	Header *regexp.Regexp

	// TierEntry matches one designated initializer of the pvs side table.
	// Pattern: [<speed>][<pvs>] = { <table>
	// Groups: 1 = speed bin, 2 = pvs designator, 3 = table identifier.
	TierEntry *regexp.Regexp

	// Row matches one whole element initializer inside a table body, with at
	// most one nested brace list. Field contents are left to the parser.
	// Pattern: { <flag>, { <khz>, <src>, <sel>, <val> }, L2(<n>), <uv> }
	// Groups: 1 = text between the outer braces.
	Row *regexp.Regexp

	// Sentinel matches the text of an all-zero initializer such as
	// { 0, { 0 } } or { }, which terminates a table.
	Sentinel *regexp.Regexp

	// Token is the ordered alternation used to segment a row.
	// Groups: 1 = hex, 2 = decimal, 3 = call-like, 4 = identifier.
	Token *regexp.Regexp

	// Descriptor matches the secondary clock-domain call.
	// Pattern: L2(<n>)
	// Groups: 1 = index.
	Descriptor *regexp.Regexp
}

// New compiles the matcher set.
func New() *Set {
	return &Set{
		Block:      regexp.MustCompile(`static\s+struct\s+acpu_level\s+(\w+)\s*(?:\[[^\]]*\])+[^=;{]*=\s*\{([\s\S]*?)\};`),
		Header:     regexp.MustCompile(`static\s+struct\s+acpu_level\s+(\w+)\s*(?:\[[^\]]*\])+[^=;{]*=\s*$`),
		TierEntry:  regexp.MustCompile(`\[\s*(.*?)\s*\]\[\s*(.*?)\s*\]\s*=\s*\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*`),
		Row:        regexp.MustCompile(`\{([^{}]*(?:\{[^{}]*\}[^{}]*)?)\}`),
		Sentinel:   regexp.MustCompile(`^[\s0,]*(?:\{[\s0,]*\}[\s0,]*)?$`),
		Token:      regexp.MustCompile(`\b(0x[0-9A-Fa-f]+)\b|\b(\d+)\b|\b(\w+\([^)]*\))|\b(\w+)\b`),
		Descriptor: regexp.MustCompile(`^L2\(\s*(\d+)\s*\)$`),
	}
}
