package policy

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/acpu2opp/internal/facts"
)

//go:embed lint.rego
var builtinRules string

const (
	violationsQuery = "data.acpu2opp.lint.all_violations"
	summaryQuery    = "data.acpu2opp.lint.summary"

	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Engine evaluates OPA lint rules against OPP fact tables
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Violation represents a lint finding. Hz is 0 and Slot is -1 when the
// finding is not about one node or one slot.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Hz       uint64 `json:"hz"`
	Slot     int    `json:"slot"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation
	Summary    Summary
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Blocking counts the findings that fail a strict run.
func (s Summary) Blocking() int {
	return s.Errors + s.Warnings
}

// New creates a policy engine from the built-in rules plus every .rego file
// in ruleDir. An empty ruleDir loads the built-in rules only.
func New(ruleDir string) (*Engine, error) {
	modules := []func(*rego.Rego){rego.Module("lint.rego", builtinRules)}

	if ruleDir != "" {
		files, err := filepath.Glob(filepath.Join(ruleDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no policy files found in %s", ruleDir)
		}
		sort.Strings(files)
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
		}
	}

	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
	}
	for name, q := range map[string]string{"violations": violationsQuery, "summary": summaryQuery} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(q))
		query, err := rego.New(opts...).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = query
	}

	return engine, nil
}

// Evaluate runs the rules against tables
func (e *Engine) Evaluate(ctx context.Context, tables facts.Tables) (*Result, error) {
	inputMap, err := structToMap(tables)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Hz:       uint64(getInt(vmap, "hz")),
					Slot:     int(getInt(vmap, "slot")),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				TotalViolations: int(getInt(smap, "total_violations")),
				Errors:          int(getInt(smap, "errors")),
				Warnings:        int(getInt(smap, "warnings")),
				Info:            int(getInt(smap, "info")),
			}
		}
	}

	return result, nil
}

// Helper functions

// structToMap keeps numbers as json.Number; as float64 a frequency in Hz
// would reach the rules in exponent form.
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var result map[string]interface{}
	err = dec.Decode(&result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		case json.Number:
			i, _ := n.Int64()
			return i
		}
	}
	return 0
}
