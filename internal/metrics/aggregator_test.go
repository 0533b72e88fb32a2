package metrics_test

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/saveenergy/brofiler/internal/history"
	"github.com/saveenergy/brofiler/internal/metrics"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

func snapshotWithPrimary(received, link float64) types.DeviceSnapshot {
	return types.DeviceSnapshot{Samples: []types.DeviceStatSample{
		{DeviceID: "bro", Received: received, Dropped: link - received, LinkTotal: link},
		{DeviceID: "shmo", Received: 1, Dropped: 1, LinkTotal: 2},
	}}
}

func TestRollingRates(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	h.Append(snapshotWithPrimary(90, 100))
	h.Append(snapshotWithPrimary(80, 100))
	h.Append(snapshotWithPrimary(100, 100))

	success, err := metrics.RollingSuccessRate(h, metrics.First)
	if err != nil {
		t.Fatalf("RollingSuccessRate: %v", err)
	}
	if math.Abs(success-0.9) > 1e-9 {
		t.Fatalf("rolling success = %v, want 0.9", success)
	}

	loss, err := metrics.RollingLossRate(h, metrics.First)
	if err != nil {
		t.Fatalf("RollingLossRate: %v", err)
	}
	if math.Abs(loss-0.1) > 1e-9 {
		t.Fatalf("rolling loss = %v, want 0.1", loss)
	}
}

func TestRollingSuccessRateZeroTrafficCountsAsSuccess(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	h.Append(snapshotWithPrimary(50, 100))
	h.Append(types.DeviceSnapshot{Samples: []types.DeviceStatSample{{DeviceID: "bro"}}})

	got, err := metrics.RollingSuccessRate(h, nil)
	if err != nil {
		t.Fatalf("RollingSuccessRate: %v", err)
	}
	if math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("rolling success = %v, want 0.75", got)
	}
}

func TestRollingSuccessRateEmptySnapshot(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	h.Append(snapshotWithPrimary(90, 100))
	h.Append(types.DeviceSnapshot{})

	_, err := metrics.RollingSuccessRate(h, metrics.First)
	var empty *errors.EmptySnapshotError
	if !stderrors.As(err, &empty) {
		t.Fatalf("err = %v, want *errors.EmptySnapshotError", err)
	}
	if empty.Index != 1 {
		t.Fatalf("Index = %d, want 1", empty.Index)
	}

	if _, err := metrics.RollingLossRate(h, metrics.First); !stderrors.As(err, &empty) {
		t.Fatalf("RollingLossRate err = %v, want *errors.EmptySnapshotError", err)
	}
}

func TestRollingSuccessRateEmptyHistory(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	if _, err := metrics.RollingSuccessRate(h, metrics.First); !stderrors.Is(err, errors.ErrNoSnapshots) {
		t.Fatalf("err = %v, want ErrNoSnapshots", err)
	}
}

func TestByDeviceSelector(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	h.Append(snapshotWithPrimary(90, 100))
	h.Append(snapshotWithPrimary(10, 100))

	got, err := metrics.RollingSuccessRate(h, metrics.ByDevice("shmo"))
	if err != nil {
		t.Fatalf("RollingSuccessRate: %v", err)
	}
	if got != 0.5 {
		t.Fatalf("shmo rolling success = %v, want 0.5", got)
	}

	_, err = metrics.RollingSuccessRate(h, metrics.SelectorFor("missing"))
	var empty *errors.EmptySnapshotError
	if !stderrors.As(err, &empty) || empty.Index != 0 {
		t.Fatalf("err = %v, want EmptySnapshotError at index 0", err)
	}
}

func TestSummarizeCountsInconsistentSamples(t *testing.T) {
	h := history.New[types.DeviceSnapshot]()
	h.Append(types.DeviceSnapshot{Samples: []types.DeviceStatSample{
		{DeviceID: "bro", Received: 25118568, Dropped: 69563523, LinkTotal: 94682096},
	}})
	h.Append(snapshotWithPrimary(90, 100))

	summary, err := metrics.Summarize(h.View(), metrics.First)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Snapshots != 2 {
		t.Errorf("Snapshots = %d, want 2", summary.Snapshots)
	}
	if summary.Inconsistent != 1 {
		t.Errorf("Inconsistent = %d, want 1", summary.Inconsistent)
	}
	if summary.Latest.Received != 90 {
		t.Errorf("Latest.Received = %v, want 90", summary.Latest.Received)
	}
	if math.Abs(summary.RollingSuccessRate+summary.RollingLossRate-1) > 1e-12 {
		t.Errorf("success+loss = %v, want 1", summary.RollingSuccessRate+summary.RollingLossRate)
	}
}
