// Package diagnostic interprets rolling capture statistics into human/agent-
// readable grades, ratings, and concerns.
package diagnostic

import (
	"fmt"
	"strings"
)

// Interpretation holds the semantic interpretation of a monitoring session.
type Interpretation struct {
	Grade             string   `json:"grade"`
	Summary           string   `json:"summary"`
	CaptureRating     string   `json:"capture_rating"`
	IntegrityRating   string   `json:"integrity_rating"`
	CollectionRating  string   `json:"collection_rating"`
	SuitableFor       []string `json:"suitable_for"`
	Concerns          []string `json:"concerns"`
	LossPercent       *float64 `json:"loss_percent,omitempty"`
	InconsistentRatio float64  `json:"inconsistent_ratio"`
	FailedCycleRatio  float64  `json:"failed_cycle_ratio"`
}

// Params are the rolling statistics to interpret. LossRate and
// ThroughputMbps are only read when their Known flag is set. Inconsistent
// counters can drive LossRate below zero; it is still a measurement.
type Params struct {
	LossRate        float64 // rolling, nominally 0..1
	LossKnown       bool
	Snapshots       int
	Inconsistent    int
	Cycles          int
	FailedCycles    int
	ThroughputMbps  float64
	ThroughputKnown bool
}

func (p Params) lossMeasured() bool {
	return p.LossKnown && p.Snapshots > 0
}

// Interpret produces a diagnostic Interpretation from rolling statistics.
func Interpret(p Params) *Interpretation {
	interp := &Interpretation{
		SuitableFor: []string{},
		Concerns:    []string{},
	}
	if p.lossMeasured() {
		pct := p.LossRate * 100
		interp.LossPercent = &pct
	}
	if p.Snapshots > 0 {
		interp.InconsistentRatio = float64(p.Inconsistent) / float64(p.Snapshots)
	}
	if p.Cycles > 0 {
		interp.FailedCycleRatio = float64(p.FailedCycles) / float64(p.Cycles)
	}

	interp.CaptureRating = rateCapture(p)
	interp.IntegrityRating = rateIntegrity(p, interp.InconsistentRatio)
	interp.CollectionRating = rateCollection(p, interp.FailedCycleRatio)

	interp.SuitableFor = suitability(p, interp)
	interp.Concerns = concerns(p, interp)

	interp.Grade = computeGrade(interp.CaptureRating, interp.IntegrityRating, interp.CollectionRating)
	interp.Summary = buildSummary(interp.Grade, p)

	return interp
}

func rateCapture(p Params) string {
	if !p.lossMeasured() {
		return "unknown"
	}
	switch {
	case p.LossRate <= 0.001:
		return "excellent"
	case p.LossRate <= 0.01:
		return "good"
	case p.LossRate <= 0.05:
		return "fair"
	default:
		return "poor"
	}
}

func rateIntegrity(p Params, ratio float64) string {
	if p.Snapshots == 0 {
		return "unknown"
	}
	switch {
	case p.Inconsistent == 0:
		return "consistent"
	case ratio <= 0.05:
		return "fair"
	case ratio <= 0.25:
		return "degraded"
	default:
		return "inconsistent"
	}
}

func rateCollection(p Params, ratio float64) string {
	if p.Cycles == 0 {
		return "unknown"
	}
	switch {
	case p.FailedCycles == 0:
		return "reliable"
	case ratio <= 0.05:
		return "good"
	case ratio <= 0.2:
		return "fair"
	default:
		return "unreliable"
	}
}

func suitability(p Params, interp *Interpretation) []string {
	s := []string{}

	// Signature detection tolerates a little loss.
	if interp.CaptureRating == "excellent" || interp.CaptureRating == "good" {
		s = append(s, "intrusion_detection")
	}

	// Session reconstruction needs near lossless capture.
	if interp.CaptureRating == "excellent" && interp.IntegrityRating == "consistent" {
		s = append(s, "forensics")
	}

	// Flow accounting only needs trustworthy counters.
	if interp.IntegrityRating == "consistent" || interp.IntegrityRating == "fair" {
		s = append(s, "traffic_accounting")
	}

	if interp.CollectionRating == "reliable" && p.Snapshots > 0 {
		s = append(s, "trend_monitoring")
	}

	return s
}

func concerns(p Params, interp *Interpretation) []string {
	c := []string{}

	if p.lossMeasured() && p.LossRate > 0.01 {
		c = append(c, "packet_loss")
	}
	if p.Inconsistent > 0 {
		c = append(c, "inconsistent_counters")
	}
	if p.FailedCycles > 0 {
		c = append(c, "collection_failures")
	}
	if p.Snapshots == 0 {
		c = append(c, "no_data")
	}
	if p.ThroughputKnown && p.ThroughputMbps == 0 && p.Snapshots > 0 {
		c = append(c, "idle_link")
	}

	return c
}

var ratingScore = map[string]int{
	"excellent":    4,
	"consistent":   4,
	"reliable":     4,
	"good":         3,
	"fair":         2,
	"degraded":     1,
	"poor":         0,
	"inconsistent": 0,
	"unreliable":   0,
	"unknown":      2, // neutral default
}

func computeGrade(capture, integrity, collection string) string {
	score := ratingScore[capture] + ratingScore[integrity] + ratingScore[collection]
	// Max score = 12 (4+4+4)
	switch {
	case score >= 11:
		return "A"
	case score >= 9:
		return "B"
	case score >= 6:
		return "C"
	case score >= 3:
		return "D"
	default:
		return "F"
	}
}

func buildSummary(grade string, p Params) string {
	gradeDesc := map[string]string{
		"A": "Excellent",
		"B": "Good",
		"C": "Fair",
		"D": "Poor",
		"F": "Very poor",
	}

	parts := []string{}
	if p.lossMeasured() {
		parts = append(parts, fmt.Sprintf("%.2f%% loss over %d snapshots", p.LossRate*100, p.Snapshots))
	}
	if p.ThroughputKnown && p.ThroughputMbps > 0 {
		parts = append(parts, fmt.Sprintf("%.1f Mbps", p.ThroughputMbps))
	}
	if p.FailedCycles > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d cycles failed", p.FailedCycles, p.Cycles))
	}

	summary := gradeDesc[grade] + " capture"
	if len(parts) > 0 {
		summary += ": " + strings.Join(parts, ", ")
	}
	return summary
}
