package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestPrintTimingStatsRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	verbose, output := Verbose, Output
	defer func() { Verbose, Output = verbose, output }()
	Output = &buf

	stats := &TimingStats{TotalTime: 2 * time.Second, ForwardPassTime: time.Second}
	Verbose = false
	PrintTimingStats(stats, 10)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when Verbose is false, got %q", buf.String())
	}

	Verbose = true
	PrintTimingStats(stats, 10)
	out := buf.String()
	if !strings.Contains(out, "Forward pass: 1s (50.0%)") {
		t.Fatalf("missing forward pass share in %q", out)
	}
	if strings.Contains(out, "Encrypted evaluation") {
		t.Fatalf("encrypted section printed without HE timings")
	}
}
