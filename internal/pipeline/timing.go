package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// timingEvent is one line of the JSONL timing log. Offsets are milliseconds
// since the start of the run.
type timingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	Design     string  `json:"design,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingLog appends spans to a JSONL file. A nil or disabled log still
// measures durations, it just writes nothing.
type timingLog struct {
	origin time.Time

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	err  error
}

func openTimingLog(origin time.Time, path string) *timingLog {
	tl := &timingLog{origin: origin}
	if path == "" {
		return tl
	}
	f, err := os.Create(path)
	if err != nil {
		tl.err = err
		return tl
	}
	tl.file = f
	tl.enc = json.NewEncoder(f)
	return tl
}

func (tl *timingLog) Enabled() bool {
	return tl != nil && tl.enc != nil
}

func (tl *timingLog) Err() error {
	if tl == nil {
		return nil
	}
	return tl.err
}

func (tl *timingLog) Close() {
	if tl == nil || tl.file == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	_ = tl.file.Close()
	tl.file, tl.enc = nil, nil
}

// stage opens a span for a whole pipeline step. Calling the returned func
// closes it and reports the elapsed time.
func (tl *timingLog) stage(phase string) func(status string) time.Duration {
	return tl.span(timingEvent{Phase: phase, Kind: "stage"})
}

// design opens a span for one design inside a step.
func (tl *timingLog) design(phase, name string) func(status string) time.Duration {
	return tl.span(timingEvent{Phase: phase, Kind: "design", Design: name})
}

func (tl *timingLog) span(ev timingEvent) func(status string) time.Duration {
	began := time.Now()
	return func(status string) time.Duration {
		elapsed := time.Since(began)
		if !tl.Enabled() {
			return elapsed
		}
		ev.Status = status
		ev.StartMS = millis(began.Sub(tl.origin))
		ev.DurationMS = millis(elapsed)
		ev.EndMS = ev.StartMS + ev.DurationMS

		tl.mu.Lock()
		defer tl.mu.Unlock()
		if tl.enc != nil {
			_ = tl.enc.Encode(ev)
		}
		return elapsed
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// resolveTimingPath picks the timing log location. HDLGEN_TIMING_JSONL names
// the file outright; otherwise the Timing flags or HDLGEN_TIMING turn on a
// log at TimingPath or <root>/timing.jsonl.
func (p *Pipeline) resolveTimingPath(rootPath string) string {
	if p == nil {
		return ""
	}
	if explicit := os.Getenv("HDLGEN_TIMING_JSONL"); explicit != "" {
		return explicit
	}
	wanted := p.Timing || (p.Config != nil && p.Config.Timing) || envBool("HDLGEN_TIMING")
	switch {
	case !wanted:
		return ""
	case p.TimingPath != "":
		return p.TimingPath
	default:
		return filepath.Join(rootPath, "timing.jsonl")
	}
}
