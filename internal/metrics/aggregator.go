package metrics

import (
	"iter"

	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

// Source is a read-only, ordered series of device snapshots.
// *history.Log and history.View both satisfy it.
type Source interface {
	Len() int
	All() iter.Seq2[int, types.DeviceSnapshot]
}

// Selector picks the sample that represents a snapshot in rolling
// statistics.
type Selector func(types.DeviceSnapshot) (types.DeviceStatSample, bool)

// First selects the first device the source reported.
func First(s types.DeviceSnapshot) (types.DeviceStatSample, bool) {
	return s.Primary()
}

// ByDevice selects the sample of a named device.
func ByDevice(deviceID string) Selector {
	return func(s types.DeviceSnapshot) (types.DeviceStatSample, bool) {
		return s.Lookup(deviceID)
	}
}

// SelectorFor returns ByDevice for a non-empty id, First otherwise.
func SelectorFor(deviceID string) Selector {
	if deviceID == "" {
		return First
	}
	return ByDevice(deviceID)
}

// RollingSuccessRate is the mean SuccessRate of the selected sample across
// every snapshot in h.
func RollingSuccessRate(h Source, pick Selector) (float64, error) {
	if pick == nil {
		pick = First
	}
	if h.Len() == 0 {
		return 0, errors.ErrNoSnapshots
	}

	var total float64
	n := 0
	for i, snap := range h.All() {
		sample, ok := pick(snap)
		if !ok {
			return 0, &errors.EmptySnapshotError{Index: i}
		}
		total += sample.SuccessRate()
		n++
	}
	if n == 0 {
		return 0, errors.ErrNoSnapshots
	}
	return total / float64(n), nil
}

// RollingLossRate is the complement of RollingSuccessRate. Loss is not
// averaged independently; Summary.Inconsistent shows where the two differ.
func RollingLossRate(h Source, pick Selector) (float64, error) {
	success, err := RollingSuccessRate(h, pick)
	if err != nil {
		return 0, err
	}
	return 1 - success, nil
}

type Summary struct {
	Snapshots          int                    `json:"snapshots"`
	RollingSuccessRate float64                `json:"rolling_success_rate"`
	RollingLossRate    float64                `json:"rolling_loss_rate"`
	Inconsistent       int                    `json:"inconsistent"`
	Latest             types.DeviceStatSample `json:"latest"`
}

// Summarize computes the rolling rates together with the number of selected
// samples whose counters do not add up. Pass a history.View when the
// underlying log may grow concurrently.
func Summarize(h Source, pick Selector) (Summary, error) {
	if pick == nil {
		pick = First
	}
	success, err := RollingSuccessRate(h, pick)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RollingSuccessRate: success,
		RollingLossRate:    1 - success,
	}
	for _, snap := range h.All() {
		sample, _ := pick(snap)
		summary.Snapshots++
		if !sample.Confirm() {
			summary.Inconsistent++
		}
		summary.Latest = sample
	}
	return summary, nil
}
