package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
)

// Block is one struct acpu_level array declaration.
type Block struct {
	// Name is the array identifier, e.g. acpu_freq_tbl_slow.
	Name string
	// Body is the text between the outer braces.
	Body string
	Line int
}

// TierEntry is one designated initializer of the pvs side table:
//
//	[<speed>][<designator>] = { <table>, ... }
type TierEntry struct {
	Speed      string
	Designator string
	Table      string
	Line       int
}

// Table is a block with the tier designator it belongs to.
type Table struct {
	Block
	Designator string
}

// Designation selects where a block's tier designator comes from.
type Designation int

const (
	// DesignateBySuffix reads the tier from the identifier suffix
	// (acpu_freq_tbl_<tier>).
	DesignateBySuffix Designation = iota
	// DesignateBySideTable pairs blocks positionally with pvs side-table
	// entries.
	DesignateBySideTable
)

// Locator finds table blocks in source text.
type Locator interface {
	Locate(src []byte) ([]Block, error)
}

// Extractor finds frequency tables and isolates their rows.
type Extractor struct {
	locator  Locator
	tiers    *regexp.Regexp
	rows     *regexp.Regexp
	sentinel *regexp.Regexp

	// Log receives pairing warnings.
	Log logrus.FieldLogger
}

// New creates an Extractor using the regex locator.
func New(set *patterns.Set) *Extractor {
	return &Extractor{
		locator:  NewRegexLocator(set),
		tiers:    set.TierEntry,
		rows:     set.Row,
		sentinel: set.Sentinel,
		Log:      logrus.StandardLogger(),
	}
}

// SetLocator replaces the block locator.
func (e *Extractor) SetLocator(l Locator) {
	e.locator = l
}

// Blocks locates every table block and rejects empty bodies.
func (e *Extractor) Blocks(src []byte) ([]Block, error) {
	blocks, err := e.locator.Locate(src)
	if err != nil {
		return nil, fmt.Errorf("locating tables: %w", err)
	}
	if len(blocks) == 0 {
		return nil, opp.Errorf(opp.StructuralMismatch, "", "no struct acpu_level table found")
	}
	for _, b := range blocks {
		if strings.TrimSpace(b.Body) == "" {
			return nil, opp.Errorf(opp.StructuralMismatch, b.Name,
				"no contents in %s table (line %d)", b.Name, b.Line)
		}
	}
	return blocks, nil
}

// TierEntries returns the side-table entries whose speed bin is numeric, in
// source order.
func (e *Extractor) TierEntries(src []byte) []TierEntry {
	text := string(src)
	var entries []TierEntry
	for _, m := range e.tiers.FindAllStringSubmatchIndex(text, -1) {
		speed := text[m[2]:m[3]]
		if _, err := strconv.ParseUint(speed, 10, 8); err != nil {
			continue
		}
		entries = append(entries, TierEntry{
			Speed:      speed,
			Designator: text[m[4]:m[5]],
			Table:      text[m[6]:m[7]],
			Line:       lineAt(text, m[0]),
		})
	}
	return entries
}

// Tables locates every block and attaches its tier designator.
func (e *Extractor) Tables(src []byte, how Designation) ([]Table, error) {
	blocks, err := e.Blocks(src)
	if err != nil {
		return nil, err
	}

	switch how {
	case DesignateBySuffix:
		tables := make([]Table, 0, len(blocks))
		for _, b := range blocks {
			tables = append(tables, Table{Block: b, Designator: suffix(b.Name)})
		}
		return tables, nil

	case DesignateBySideTable:
		entries := e.TierEntries(src)
		if len(entries) == 0 {
			return nil, opp.Errorf(opp.StructuralMismatch, "",
				"found %d tables but no [speed][pvs] side table entries", len(blocks))
		}
		n := min(len(blocks), len(entries))
		tables := make([]Table, 0, n)
		for i := 0; i < n; i++ {
			b, entry := blocks[i], entries[i]
			if entry.Table != b.Name {
				e.Log.WithFields(logrus.Fields{
					"table": b.Name,
					"entry": entry.Table,
					"pvs":   entry.Designator,
					"line":  entry.Line,
				}).Warn("side table entry names a different table; pairing by position")
			}
			tables = append(tables, Table{Block: b, Designator: entry.Designator})
		}
		for _, b := range blocks[n:] {
			e.Log.WithField("table", b.Name).Warn("table has no side table entry; skipped")
		}
		return tables, nil
	}

	return nil, fmt.Errorf("unknown designation %d", how)
}

// Rows isolates the element initializers of a block and returns the text
// inside each one's braces. The all-zero terminator is not a row; anything
// else is returned as written, so the parser sees malformed rows too.
func (e *Extractor) Rows(b Block) []string {
	var rows []string
	for _, m := range e.rows.FindAllStringSubmatch(b.Body, -1) {
		if e.sentinel.MatchString(m[1]) {
			continue
		}
		rows = append(rows, m[1])
	}
	return rows
}

func suffix(name string) string {
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func lineAt(text string, offset int) int {
	return 1 + strings.Count(text[:offset], "\n")
}

// RegexLocator finds blocks with the block matcher alone.
type RegexLocator struct {
	block *regexp.Regexp
}

// NewRegexLocator creates the default locator.
func NewRegexLocator(set *patterns.Set) *RegexLocator {
	return &RegexLocator{block: set.Block}
}

// Locate returns every declaration in source order.
func (l *RegexLocator) Locate(src []byte) ([]Block, error) {
	text := string(src)
	var blocks []Block
	for _, m := range l.block.FindAllStringSubmatchIndex(text, -1) {
		blocks = append(blocks, Block{
			Name: text[m[2]:m[3]],
			Body: text[m[4]:m[5]],
			Line: lineAt(text, m[0]),
		})
	}
	return blocks, nil
}
