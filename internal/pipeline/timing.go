package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	timingPathEnv = "ACPU2OPP_TIMING_JSONL"
	timingEnv     = "ACPU2OPP_TIMING"
)

type timingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	Table      string  `json:"table,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder appends one JSON object per stage. A nil or disabled
// recorder drops every event.
type timingRecorder struct {
	enabled bool
	start   time.Time
	file    *os.File
	enc     *json.Encoder
	err     error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.enabled = true
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Enabled() bool {
	return tr != nil && tr.enabled
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) record(phase, kind, table, status string, start time.Time, duration time.Duration) {
	if !tr.Enabled() {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	_ = tr.enc.Encode(timingEvent{
		Phase:      phase,
		Kind:       kind,
		Table:      table,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	})
}

func (tr *timingRecorder) RecordStage(phase string, start time.Time, duration time.Duration, status string) {
	tr.record(phase, "stage", "", status, start, duration)
}

func (tr *timingRecorder) RecordTable(phase, table string, start time.Time, duration time.Duration, status string) {
	tr.record(phase, "table", table, status, start, duration)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}

// resolveTimingPath picks the JSONL destination: the explicit environment
// path, then the configured path, then timing.jsonl next to the input when
// ACPU2OPP_TIMING is truthy.
func (p *Pipeline) resolveTimingPath(inputPath string) string {
	if p == nil {
		return ""
	}
	if envPath := os.Getenv(timingPathEnv); envPath != "" {
		return envPath
	}
	if p.TimingPath != "" {
		return p.TimingPath
	}
	if envBool(timingEnv) {
		if inputPath == "" {
			return "timing.jsonl"
		}
		return filepath.Join(filepath.Dir(inputPath), "timing.jsonl")
	}
	return ""
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}
