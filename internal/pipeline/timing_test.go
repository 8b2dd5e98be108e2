package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTimingJSONLWritten(t *testing.T) {
	dir := t.TempDir()
	timingPath := filepath.Join(dir, "timing.jsonl")

	p := newTestPipeline(t)
	p.Timing = true
	p.TimingPath = timingPath

	if _, err := p.Run(context.Background(), dir, []string{"counter", "fanout"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) == 0 {
		t.Fatalf("expected timing events, found none")
	}

	designs := map[string]bool{}
	var foundCompile, foundTotal bool
	for _, line := range lines {
		var ev timingEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		if ev.Kind == "stage" && ev.Phase == "compile" {
			foundCompile = true
		}
		if ev.Kind == "stage" && ev.Phase == "total" {
			foundTotal = true
		}
		if ev.Kind == "design" && ev.Status == "ok" {
			designs[ev.Design] = true
		}
	}
	if !foundCompile || !foundTotal {
		t.Fatalf("expected compile and total timing events")
	}
	if !designs["counter"] || !designs["fanout"] {
		t.Fatalf("expected per-design events, got %v", designs)
	}
}

func TestResolveTimingPath(t *testing.T) {
	t.Setenv("HDLGEN_TIMING_JSONL", "")
	t.Setenv("HDLGEN_TIMING", "")
	p := New()
	if got := p.resolveTimingPath("/root"); got != "" {
		t.Fatalf("expected timing disabled, got %q", got)
	}

	t.Setenv("HDLGEN_TIMING", "yes")
	if got := p.resolveTimingPath("/root"); got != filepath.Join("/root", "timing.jsonl") {
		t.Fatalf("unexpected env timing path %q", got)
	}

	t.Setenv("HDLGEN_TIMING_JSONL", "/tmp/t.jsonl")
	if got := p.resolveTimingPath("/root"); got != "/tmp/t.jsonl" {
		t.Fatalf("expected explicit path, got %q", got)
	}
}

func TestTimingLogWithoutPathStillMeasures(t *testing.T) {
	tl := openTimingLog(time.Now(), "")
	if tl.Enabled() {
		t.Fatalf("expected log without path to be disabled")
	}
	end := tl.stage("resolve")
	time.Sleep(time.Millisecond)
	if d := end(""); d <= 0 {
		t.Fatalf("expected positive duration, got %s", d)
	}
	tl.Close()

	var nilLog *timingLog
	if nilLog.Enabled() || nilLog.Err() != nil {
		t.Fatalf("expected nil log to be inert")
	}
	_ = nilLog.design("compile", "counter")("ok")
}
