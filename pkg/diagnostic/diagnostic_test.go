package diagnostic_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/saveenergy/brofiler/pkg/diagnostic"
)

func TestRateCapture(t *testing.T) {
	tests := []struct {
		loss float64
		want string
	}{
		{0, "excellent"},
		{0.001, "excellent"},
		{0.008, "good"},
		{0.03, "fair"},
		{0.1, "poor"},
		{-0.02, "excellent"}, // received exceeded link
	}
	for _, tt := range tests {
		interp := diagnostic.Interpret(diagnostic.Params{LossRate: tt.loss, LossKnown: true, Snapshots: 10, Cycles: 10})
		if interp.CaptureRating != tt.want {
			t.Errorf("loss %v: capture rating = %s, want %s", tt.loss, interp.CaptureRating, tt.want)
		}
	}
}

func TestNoSnapshotsIsUnknown(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{LossRate: 0, LossKnown: true})
	if interp.CaptureRating != "unknown" || interp.IntegrityRating != "unknown" || interp.CollectionRating != "unknown" {
		t.Fatalf("ratings = %s/%s/%s, want unknown", interp.CaptureRating, interp.IntegrityRating, interp.CollectionRating)
	}
	if interp.LossPercent != nil {
		t.Fatalf("loss percent = %v, want unset", *interp.LossPercent)
	}
	if !slices.Contains(interp.Concerns, "no_data") {
		t.Fatalf("concerns = %v, want no_data", interp.Concerns)
	}
	if interp.Grade != "C" {
		t.Fatalf("grade = %s, want C", interp.Grade)
	}
}

func TestIntegrityRating(t *testing.T) {
	tests := []struct {
		inconsistent int
		want         string
	}{
		{0, "consistent"},
		{2, "fair"},
		{10, "degraded"},
		{60, "inconsistent"},
	}
	for _, tt := range tests {
		interp := diagnostic.Interpret(diagnostic.Params{Snapshots: 100, Cycles: 100, Inconsistent: tt.inconsistent})
		if interp.IntegrityRating != tt.want {
			t.Errorf("inconsistent %d: rating = %s, want %s", tt.inconsistent, interp.IntegrityRating, tt.want)
		}
	}
}

func TestGradeA(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{
		LossRate: 0.0005, LossKnown: true, Snapshots: 100, Cycles: 100,
		ThroughputMbps: 25.6, ThroughputKnown: true,
	})
	if interp.Grade != "A" {
		t.Fatalf("grade = %s, want A", interp.Grade)
	}
	for _, use := range []string{"intrusion_detection", "forensics", "traffic_accounting", "trend_monitoring"} {
		if !slices.Contains(interp.SuitableFor, use) {
			t.Errorf("suitable_for = %v, missing %s", interp.SuitableFor, use)
		}
	}
	if len(interp.Concerns) != 0 {
		t.Fatalf("concerns = %v, want none", interp.Concerns)
	}
	if !strings.Contains(interp.Summary, "Excellent capture") || !strings.Contains(interp.Summary, "25.6 Mbps") {
		t.Fatalf("summary = %q", interp.Summary)
	}
}

func TestGradeFWithConcerns(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{
		LossRate: 0.73, LossKnown: true, Snapshots: 10, Inconsistent: 10, Cycles: 20, FailedCycles: 10,
		ThroughputKnown: true,
	})
	if interp.Grade != "F" {
		t.Fatalf("grade = %s, want F", interp.Grade)
	}
	for _, c := range []string{"packet_loss", "inconsistent_counters", "collection_failures", "idle_link"} {
		if !slices.Contains(interp.Concerns, c) {
			t.Errorf("concerns = %v, missing %s", interp.Concerns, c)
		}
	}
	if interp.FailedCycleRatio != 0.5 {
		t.Fatalf("failed ratio = %v, want 0.5", interp.FailedCycleRatio)
	}
	if !strings.Contains(interp.Summary, "10/20 cycles failed") {
		t.Fatalf("summary = %q", interp.Summary)
	}
}

func TestUnknownThroughputIsNotIdle(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{Snapshots: 5, Cycles: 5})
	if slices.Contains(interp.Concerns, "idle_link") {
		t.Fatalf("concerns = %v, unknown throughput must not flag idle_link", interp.Concerns)
	}
}

func TestNegativeLossIsMeasured(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{
		LossRate: -0.25, LossKnown: true, Snapshots: 4, Inconsistent: 4, Cycles: 4,
	})
	if interp.CaptureRating == "unknown" {
		t.Fatal("capture rating = unknown for a measured loss rate")
	}
	if interp.LossPercent == nil || *interp.LossPercent != -25 {
		t.Fatalf("loss percent = %v, want -25", interp.LossPercent)
	}
	if !strings.Contains(interp.Summary, "-25.00% loss over 4 snapshots") {
		t.Fatalf("summary = %q", interp.Summary)
	}
}

func TestUnknownLossIsUnrated(t *testing.T) {
	interp := diagnostic.Interpret(diagnostic.Params{LossRate: 0.5, Snapshots: 10, Cycles: 10})
	if interp.CaptureRating != "unknown" || interp.LossPercent != nil {
		t.Fatalf("capture rating = %s loss percent = %v, want unknown and unset", interp.CaptureRating, interp.LossPercent)
	}
	if slices.Contains(interp.Concerns, "packet_loss") {
		t.Fatalf("concerns = %v, unknown loss must not flag packet_loss", interp.Concerns)
	}
}
