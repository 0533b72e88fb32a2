package types

// Response bodies of the monitor's HTTP API, shared with pkg/client.

type StatusResponse struct {
	SessionID     string       `json:"session_id"`
	State         string       `json:"state"`
	Cycles        int          `json:"cycles"`
	FailedCycles  int          `json:"failed_cycles"`
	Snapshots     int          `json:"snapshots"`
	LinkSnapshots int          `json:"link_snapshots"`
	Last          *CycleReport `json:"last,omitempty"`
}

type HistoryResponse struct {
	Total     int              `json:"total"`
	Snapshots []DeviceSnapshot `json:"snapshots"`
}

type LinksResponse struct {
	Total      int               `json:"total"`
	Snapshots  []LinkSnapshot    `json:"snapshots"`
	Throughput ThroughputMetrics `json:"throughput"`
}

// ThroughputMetrics summarizes total capture throughput across link
// snapshots.
type ThroughputMetrics struct {
	Samples  int     `json:"samples"`
	AvgKpps  float64 `json:"avg_kpps"`
	AvgMbps  float64 `json:"avg_mbps"`
	MinMbps  float64 `json:"min_mbps"`
	MaxMbps  float64 `json:"max_mbps"`
	P50Mbps  float64 `json:"p50_mbps"`
	P95Mbps  float64 `json:"p95_mbps"`
	LastMbps float64 `json:"last_mbps"`
}

// HistoryRow is one CSV export row: the primary sample of a snapshot.
type HistoryRow struct {
	Cycle       int     `csv:"cycle"`
	CollectedAt string  `csv:"collected_at"`
	DeviceID    string  `csv:"device_id"`
	Timestamp   float64 `csv:"timestamp"`
	Received    float64 `csv:"received"`
	Dropped     float64 `csv:"dropped"`
	LinkTotal   float64 `csv:"link_total"`
	SuccessRate float64 `csv:"success_rate"`
	LossRate    float64 `csv:"loss_rate"`
	Consistent  bool    `csv:"consistent"`
}
