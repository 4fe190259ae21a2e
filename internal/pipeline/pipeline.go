package pipeline

// =============================================================================
// PIPELINE: VALIDATE EVERYTHING, THEN EMIT
// =============================================================================
//
// read -> locate tables -> resolve tiers -> parse base tier -> merge the rest
//      -> row ceiling -> unique frequencies -> CUE contract -> lint -> render
//      -> write
//
// Output goes to a buffer and is written only after every check passed. A
// half-written OPP table in a build is worse than none, so there is no
// best-effort mode: the first error aborts the run.
// =============================================================================

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/acpu2opp/internal/config"
	"github.com/robert-at-pretension-io/acpu2opp/internal/extractor"
	"github.com/robert-at-pretension-io/acpu2opp/internal/facts"
	"github.com/robert-at-pretension-io/acpu2opp/internal/opp"
	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
	"github.com/robert-at-pretension-io/acpu2opp/internal/policy"
	"github.com/robert-at-pretension-io/acpu2opp/internal/validator"
)

// Pipeline turns one kernel source file into OPP nodes.
type Pipeline struct {
	// Configuration loaded from acpu2opp.json
	Config *config.Config

	// Log receives diagnostics; stdout is reserved for output
	Log logrus.FieldLogger

	// Timing output (JSONL)
	TimingPath string

	extractor *extractor.Extractor
	parser    *opp.Parser
	validator *validator.Validator
	policy    *policy.Engine
}

// Result is a validated row set.
type Result struct {
	// Rows in creation order
	Rows   []opp.Row
	Tables facts.Tables
	// Lint findings; only set when no finding blocked the run
	Lint *policy.Result
}

// New builds the matchers, extractor, parser and validator once for cfg.
func New(cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
	}

	engine, err := policy.New(cfg.Policy.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading lint rules: %w", err)
	}

	log := logrus.StandardLogger()
	set := patterns.New()
	ext := extractor.New(set)
	ext.Log = log
	if cfg.Locator == config.LocatorTreeSitter {
		ext.SetLocator(extractor.NewTreeSitterLocator(set))
	}

	return &Pipeline{
		Config:     cfg,
		Log:        log,
		TimingPath: cfg.Timing.Path,
		extractor:  ext,
		parser:     opp.NewParser(set),
		validator:  v,
		policy:     engine,
	}, nil
}

// SetLogger routes pipeline and extractor diagnostics to log.
func (p *Pipeline) SetLogger(log logrus.FieldLogger) {
	p.Log = log
	p.extractor.Log = log
}

// Run builds the row set for path and writes the rendered nodes to w.
func (p *Pipeline) Run(path string, w io.Writer) error {
	runStart := time.Now()
	timing := newTimingRecorder(runStart, p.resolveTimingPath(path))
	if err := timing.Err(); err != nil {
		p.Log.WithError(err).Warn("timing output disabled")
	}
	defer timing.Close()

	res, err := p.build(path, timing)
	if err != nil {
		timing.RecordStage("total", runStart, time.Since(runStart), "error")
		return err
	}

	stepStart := time.Now()
	var buf bytes.Buffer
	if err := opp.RenderAll(&buf, res.Rows); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	timing.RecordStage("render", stepStart, time.Since(stepStart), "")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	timing.RecordStage("total", runStart, time.Since(runStart), "")
	return nil
}

// Build reads path and returns the validated row set without rendering it.
func (p *Pipeline) Build(path string) (*Result, error) {
	runStart := time.Now()
	timing := newTimingRecorder(runStart, p.resolveTimingPath(path))
	defer timing.Close()

	res, err := p.build(path, timing)
	status := ""
	if err != nil {
		status = "error"
	}
	timing.RecordStage("total", runStart, time.Since(runStart), status)
	return res, err
}

func (p *Pipeline) build(path string, timing *timingRecorder) (*Result, error) {
	// 1. Read the whole file
	stepStart := time.Now()
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	timing.RecordStage("read", stepStart, time.Since(stepStart), "")

	return p.buildSource(path, src, timing)
}

// BuildSource runs every stage after reading on src. name labels the source
// in the fact tables. No timing is recorded.
func (p *Pipeline) BuildSource(name string, src []byte) (*Result, error) {
	return p.buildSource(name, src, nil)
}

func (p *Pipeline) buildSource(name string, src []byte, timing *timingRecorder) (*Result, error) {
	// 2. Locate tables and resolve their tiers
	stepStart := time.Now()
	tables, err := p.extractor.Tables(src, p.designation())
	if err != nil {
		return nil, fmt.Errorf("extracting tables from %s: %w", name, err)
	}
	tiers := make([]facts.TierRow, len(tables))
	for i, tbl := range tables {
		slot, ok := p.Config.TierSlot(tbl.Designator)
		if !ok {
			return nil, &opp.Error{
				Kind:    opp.UnknownTier,
				Field:   "tier",
				Index:   -1,
				Snippet: tbl.Designator,
				Err:     fmt.Errorf("table %s (line %d) has tier %q, not in the %s tier map", tbl.Name, tbl.Line, tbl.Designator, p.Config.Shape),
			}
		}
		tiers[i] = facts.TierRow{
			Table:      tbl.Name,
			Designator: tbl.Designator,
			Slot:       slot,
			Line:       tbl.Line,
		}
	}
	timing.RecordStage("extract", stepStart, time.Since(stepStart), "")
	p.Log.WithField("tables", len(tables)).Debug("located frequency tables")

	// 3. Parse the first populated tier, merge every later one
	rows := make([]opp.Row, 0, min(p.Config.RowLimit(), 32))
	for i, tbl := range tables {
		tier := &tiers[i]
		texts := p.extractor.Rows(tbl.Block)
		stepStart = time.Now()

		if len(rows) == 0 {
			tier.Role = facts.RoleBase
			for _, text := range texts {
				row, ok, err := p.parser.ParseRow(tier.Slot, rows, text)
				if err != nil {
					return nil, fmt.Errorf("table %s (line %d): %w", tbl.Name, tbl.Line, err)
				}
				if ok {
					rows = append(rows, row)
					tier.Rows++
				}
			}
			timing.RecordTable("parse", tbl.Name, stepStart, time.Since(stepStart), "")
		} else {
			tier.Role = facts.RoleMerge
			for _, text := range texts {
				merged, err := p.parser.Merge(tier.Slot, rows, text)
				if err != nil {
					return nil, fmt.Errorf("table %s (line %d): %w", tbl.Name, tbl.Line, err)
				}
				tier.Rows++
				if merged {
					tier.Merged++
				}
			}
			timing.RecordTable("merge", tbl.Name, stepStart, time.Since(stepStart), "")
		}

		p.Log.WithFields(logrus.Fields{
			"table":  tbl.Name,
			"tier":   tbl.Designator,
			"slot":   tier.Slot,
			"role":   tier.Role,
			"rows":   tier.Rows,
			"merged": tier.Merged,
		}).Debug("processed table")
	}

	// 4. Whole-set checks before anything is rendered
	stepStart = time.Now()
	if limit := p.Config.RowLimit(); len(rows) > limit {
		return nil, &opp.Error{
			Kind:  opp.SanityLimitExceeded,
			Index: -1,
			Err:   fmt.Errorf("%d rows exceed the limit of %d; if the output is correct, raise maxRows", len(rows), limit),
		}
	}
	if err := checkUniqueFrequencies(rows); err != nil {
		return nil, err
	}

	tablesOut := facts.BuildTables(name, p.Config.Shape, p.Config.RowLimit(), tiers, rows)
	if err := p.validator.Validate(tablesOut); err != nil {
		return nil, &opp.Error{
			Kind:  opp.ContractViolation,
			Index: -1,
			Err:   fmt.Errorf("CRITICAL: OPP table contract violation: %w", err),
		}
	}
	timing.RecordStage("validate", stepStart, time.Since(stepStart), "")

	// 5. Lint rules; findings are reported, strict mode makes them fatal
	stepStart = time.Now()
	lint, err := p.policy.Evaluate(context.Background(), tablesOut)
	if err != nil {
		return nil, fmt.Errorf("evaluating lint rules: %w", err)
	}
	p.reportLint(lint)
	if p.Config.Policy.Strict && lint.Summary.Blocking() > 0 {
		return nil, &opp.Error{
			Kind:  opp.ContractViolation,
			Index: -1,
			Err: fmt.Errorf("%d lint error(s) and %d warning(s) in strict mode",
				lint.Summary.Errors, lint.Summary.Warnings),
		}
	}
	timing.RecordStage("lint", stepStart, time.Since(stepStart), "")

	return &Result{Rows: rows, Tables: tablesOut, Lint: lint}, nil
}

func (p *Pipeline) reportLint(lint *policy.Result) {
	for _, v := range lint.Violations {
		entry := p.Log.WithField("rule", v.Rule)
		if v.Hz != 0 {
			entry = entry.WithField("hz", v.Hz)
		}
		if v.Slot >= 0 {
			entry = entry.WithField("slot", v.Slot)
		}
		switch v.Severity {
		case policy.SeverityError:
			entry.Error(v.Message)
		case policy.SeverityWarning:
			entry.Warn(v.Message)
		default:
			entry.Info(v.Message)
		}
	}
}

func (p *Pipeline) designation() extractor.Designation {
	if p.Config.Shape == config.ShapeFixed {
		return extractor.DesignateBySuffix
	}
	return extractor.DesignateBySideTable
}

func checkUniqueFrequencies(rows []opp.Row) error {
	seen := make(map[uint32]int, len(rows))
	for i, r := range rows {
		if j, ok := seen[r.Frequency]; ok {
			return &opp.Error{
				Kind:  opp.ContractViolation,
				Field: "frequency",
				Index: -1,
				Err:   fmt.Errorf("%d kHz appears in rows %d and %d", r.Frequency, j+1, i+1),
			}
		}
		seen[r.Frequency] = i
	}
	return nil
}
