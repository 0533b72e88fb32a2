package types

import "time"

type CycleStatus string

const (
	CycleStatusOK     CycleStatus = "ok"
	CycleStatusFailed CycleStatus = "failed"
)

// CycleReport is what one poll cycle produced. Readers outside the poll
// loop only ever see reports and history views, never the loop's state.
type CycleReport struct {
	SessionID          string             `json:"session_id"`
	Cycle              int                `json:"cycle"`
	Status             CycleStatus        `json:"status"`
	Error              string             `json:"error,omitempty"`
	StartedAt          time.Time          `json:"started_at"`
	Duration           time.Duration      `json:"duration"`
	NextSleep          time.Duration      `json:"next_sleep"`
	Primary            *DeviceStatSample  `json:"primary,omitempty"`
	Devices            []DeviceStatSample `json:"devices,omitempty"`
	Links              []LinkStatSample   `json:"links,omitempty"`
	Snapshots          int                `json:"snapshots"`
	RollingSuccessRate float64            `json:"rolling_success_rate"`
	RollingLossRate    float64            `json:"rolling_loss_rate"`
	Inconsistent       int                `json:"inconsistent"`
	Aggregated         bool               `json:"aggregated"`
}

func (r CycleReport) Failed() bool {
	return r.Status == CycleStatusFailed
}
