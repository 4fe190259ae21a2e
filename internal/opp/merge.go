package opp

// Merge folds one later-tier row into rows. Only the frequency and voltage
// positions are read. A frequency that is not already in rows is skipped, so
// later tiers can annotate established frequencies but never add new ones.
// merged reports whether a row was updated.
func (p *Parser) Merge(tier int, rows []Row, text string) (merged bool, err error) {
	if err := checkTier(tier); err != nil {
		return false, err
	}

	s := p.tokens.Scan(text)
	var tok Token
	for i := 0; i <= fieldFrequency.index; i++ {
		var ok bool
		if tok, ok = s.Next(); !ok {
			return false, fieldError(MissingField, fieldFrequency, text, nil)
		}
	}
	freq, err := parseUint(tok, fieldFrequency, 32, text)
	if err != nil {
		return false, err
	}

	i := indexOf(rows, uint32(freq))
	if i < 0 {
		return false, nil
	}

	for n := fieldFrequency.index; n < fieldVoltage.index; n++ {
		var ok bool
		if tok, ok = s.Next(); !ok {
			return false, fieldError(MissingField, fieldVoltage, text, nil)
		}
	}
	uv, err := parseUint(tok, fieldVoltage, 32, text)
	if err != nil {
		return false, err
	}

	rows[i].setVoltage(tier, uint32(uv))
	return true, nil
}

func indexOf(rows []Row, freq uint32) int {
	for i := range rows {
		if rows[i].Frequency == freq {
			return i
		}
	}
	return -1
}
