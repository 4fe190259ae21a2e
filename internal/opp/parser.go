package opp

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
)

type field struct {
	name  string
	index int
}

// Positional layout of a row:
//
//	{ <flag>, { <khz>, <src>, <sel>, <val> }, L2(<n>), <uv> }
var (
	fieldScaling   = field{"use for scaling", 0}
	fieldFrequency = field{"frequency", 1}
	fieldSource    = field{"clock source", 2}
	fieldSelector  = field{"source selector", 3}
	fieldValue     = field{"source value", 4}
	fieldL2        = field{"L2 level", 5}
	fieldVoltage   = field{"voltage", 6}
)

// Parser turns row text into Rows.
type Parser struct {
	tokens     *Tokenizer
	descriptor *regexp.Regexp
}

// NewParser builds a Parser on a shared matcher set.
func NewParser(set *patterns.Set) *Parser {
	return &Parser{
		tokens:     NewTokenizer(set.Token),
		descriptor: set.Descriptor,
	}
}

// Tokenizer exposes the parser's tokenizer.
func (p *Parser) Tokenizer() *Tokenizer {
	return p.tokens
}

// ParseRow builds a Row for tier from one element initializer. rows is the set
// built so far and is only read, to pick the perf level. ok is false when the
// row is not used for scaling.
func (p *Parser) ParseRow(tier int, rows []Row, text string) (row Row, ok bool, err error) {
	if err := checkTier(tier); err != nil {
		return Row{}, false, err
	}

	s := p.tokens.Scan(text)
	next := func(f field) (Token, error) {
		tok, ok := s.Next()
		if !ok {
			return Token{}, fieldError(MissingField, f, text, nil)
		}
		return tok, nil
	}

	tok, err := next(fieldScaling)
	if err != nil {
		return Row{}, false, err
	}
	scaling, err := parseUint(tok, fieldScaling, 8, text)
	if err != nil {
		return Row{}, false, err
	}
	if scaling == 0 {
		return Row{}, false, nil
	}

	if tok, err = next(fieldFrequency); err != nil {
		return Row{}, false, err
	}
	freq, err := parseUint(tok, fieldFrequency, 32, text)
	if err != nil {
		return Row{}, false, err
	}

	if tok, err = next(fieldSource); err != nil {
		return Row{}, false, err
	}
	isPLL8 := tok.Text == PLL8Source

	// Selector and value only keep the positions aligned.
	if _, err = next(fieldSelector); err != nil {
		return Row{}, false, err
	}
	if _, err = next(fieldValue); err != nil {
		return Row{}, false, err
	}

	if tok, err = next(fieldL2); err != nil {
		return Row{}, false, err
	}
	l2, err := p.l2Level(tok, text)
	if err != nil {
		return Row{}, false, err
	}

	if tok, err = next(fieldVoltage); err != nil {
		return Row{}, false, err
	}
	uv, err := parseUint(tok, fieldVoltage, 32, text)
	if err != nil {
		return Row{}, false, err
	}

	return NewRow(uint32(freq), isPLL8, l2, levelFor(rows, l2), tier, uint32(uv)), true, nil
}

func (p *Parser) l2Level(tok Token, text string) (uint8, error) {
	m := p.descriptor.FindStringSubmatch(tok.Text)
	if m == nil {
		return 0, fieldError(MalformedDescriptor, fieldL2, text,
			fmt.Errorf("expected L2(<n>), got %q", tok.Text))
	}
	v, err := strconv.ParseUint(m[1], 10, 8)
	if err != nil {
		return 0, fieldError(NumericParseError, fieldL2, text, err)
	}
	return uint8(v), nil
}

func parseUint(tok Token, f field, bits int, text string) (uint64, error) {
	v, err := strconv.ParseUint(tok.Text, 10, bits)
	if err != nil {
		return 0, fieldError(NumericParseError, f, text, err)
	}
	return v, nil
}

func checkTier(tier int) error {
	if tier < 0 || tier >= MaxTiers {
		return &Error{
			Kind:  UnknownTier,
			Field: "voltage slot",
			Index: -1,
			Err:   fmt.Errorf("slot %d outside 0..%d", tier, MaxTiers-1),
		}
	}
	return nil
}
