package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/saveenergy/brofiler/internal/metrics"
	"github.com/saveenergy/brofiler/pkg/types"
)

// OutputFormatter renders cycle reports on the terminal. Every formatter is a
// scheduler.Reporter.
type OutputFormatter interface {
	Report(r types.CycleReport)
	FormatSummary(s metrics.Summary)
	FormatError(err error)
}

// JSONFormatter emits one JSON object per line: every cycle report, then
// the session summary.
type JSONFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	errW   io.Writer
}

func NewJSONFormatter(w, errW io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w, errW: errW}
}

func (f *JSONFormatter) Report(r types.CycleReport) {
	f.encode(map[string]any{"type": "cycle", "report": r})
}

func (f *JSONFormatter) FormatSummary(s metrics.Summary) {
	f.encode(map[string]any{"type": "summary", "summary": s})
}

func (f *JSONFormatter) FormatError(err error) {
	f.encode(map[string]any{"type": "error", "error": err.Error()})
}

func (f *JSONFormatter) encode(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.NewEncoder(f.writer).Encode(v); err != nil {
		fmt.Fprintf(f.errW, "brofiler monitor: encode output: %v\n", err)
	}
}

// PlainFormatter writes key=value lines, one per cycle.
type PlainFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	errW   io.Writer
}

func NewPlainFormatter(w, errW io.Writer) *PlainFormatter {
	return &PlainFormatter{writer: w, errW: errW}
}

func (f *PlainFormatter) Report(r types.CycleReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Failed() {
		fmt.Fprintf(f.writer, "cycle=%d status=%s error=%q\n", r.Cycle, r.Status, r.Error)
		return
	}
	fmt.Fprintf(f.writer, "cycle=%d status=%s", r.Cycle, r.Status)
	if r.Primary != nil {
		fmt.Fprintf(f.writer, " device=%s received=%.0f dropped=%.0f link=%.0f",
			r.Primary.DeviceID, r.Primary.Received, r.Primary.Dropped, r.Primary.LinkTotal)
	}
	fmt.Fprintf(f.writer, " avg_success=%.4f avg_failure=%.4f snapshots=%d inconsistent=%d\n",
		r.RollingSuccessRate, r.RollingLossRate, r.Snapshots, r.Inconsistent)
}

func (f *PlainFormatter) FormatSummary(s metrics.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "snapshots=%d\n", s.Snapshots)
	fmt.Fprintf(f.writer, "avg_success=%.4f\n", s.RollingSuccessRate)
	fmt.Fprintf(f.writer, "avg_failure=%.4f\n", s.RollingLossRate)
	fmt.Fprintf(f.writer, "inconsistent=%d\n", s.Inconsistent)
}

func (f *PlainFormatter) FormatError(err error) {
	fmt.Fprintf(f.errW, "brofiler monitor: error: %v\n", err)
}

// InteractiveFormatter is used on a TTY.
type InteractiveFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	errW    io.Writer
	noColor bool
}

func NewInteractiveFormatter(w, errW io.Writer, noColor bool) *InteractiveFormatter {
	return &InteractiveFormatter{writer: w, errW: errW, noColor: noColor}
}

func (f *InteractiveFormatter) paint(code, s string) string {
	if f.noColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (f *InteractiveFormatter) Report(r types.CycleReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	header := fmt.Sprintf("Cycle %d", r.Cycle)
	if r.Failed() {
		fmt.Fprintf(f.writer, "%s %s %s\n", f.paint("37", header), f.paint("31", "FAILED"), r.Error)
		return
	}
	fmt.Fprintln(f.writer, f.paint("36", header))
	if p := r.Primary; p != nil {
		fmt.Fprintf(f.writer, "  Device:  %s\n", p.DeviceID)
		fmt.Fprintf(f.writer, "  Time:    %s\n", p.Time().UTC().Format("2006-01-02 15:04:05.000"))
		fmt.Fprintf(f.writer, "  Recvd:   %s\n", formatCount(p.Received))
		fmt.Fprintf(f.writer, "  Dropped: %s\n", formatCount(p.Dropped))
		fmt.Fprintf(f.writer, "  Link:    %s\n", formatCount(p.LinkTotal))
		if !p.Confirm() {
			fmt.Fprintf(f.writer, "  %s received + dropped != link\n", f.paint("33", "Inconsistent:"))
		}
	}
	lossColor := "32"
	if r.RollingLossRate > 0.01 {
		lossColor = "31"
	}
	fmt.Fprintf(f.writer, "  Avg success: %.2f%%\n", r.RollingSuccessRate*100)
	fmt.Fprintf(f.writer, "  Avg failure: %s\n", f.paint(lossColor, fmt.Sprintf("%.2f%%", r.RollingLossRate*100)))
	for _, l := range r.Links {
		fmt.Fprintf(f.writer, "  Link %s: %.1f kpps %.1f Mbps\n", l.InterfaceID, l.Kpps, l.Mbps)
	}
}

func (f *InteractiveFormatter) FormatSummary(s metrics.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(f.writer, "\nSummary:")
	fmt.Fprintf(f.writer, " Snapshots: %d\n", s.Snapshots)
	fmt.Fprintf(f.writer, " Avg success: %.2f%%\n", s.RollingSuccessRate*100)
	fmt.Fprintf(f.writer, " Avg failure: %.2f%%\n", s.RollingLossRate*100)
	if s.Inconsistent > 0 {
		fmt.Fprintf(f.writer, " %s %d samples\n", f.paint("33", "Inconsistent:"), s.Inconsistent)
	}
}

func (f *InteractiveFormatter) FormatError(err error) {
	fmt.Fprintf(f.errW, "brofiler monitor: error: %v\n", err)
}

// formatCount groups the integer part of a packet counter by thousands.
func formatCount(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg, s = true, s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
