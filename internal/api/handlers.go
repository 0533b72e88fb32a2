package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/saveenergy/brofiler/internal/history"
	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/internal/metrics"
	"github.com/saveenergy/brofiler/internal/scheduler"
	"github.com/saveenergy/brofiler/pkg/diagnostic"
	"github.com/saveenergy/brofiler/pkg/types"
)

// StatusSource is the read side of the poll loop. *scheduler.Scheduler
// implements it.
type StatusSource interface {
	SessionID() string
	State() scheduler.State
	LastReport() (types.CycleReport, bool)
	Counts() (cycles, failed int)
}

type Handler struct {
	status  StatusSource
	devices *history.Log[types.DeviceSnapshot]
	links   *history.Log[types.LinkSnapshot]
	pick    metrics.Selector
	version string
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 10000
)

func NewHandler(status StatusSource, devices *history.Log[types.DeviceSnapshot], links *history.Log[types.LinkSnapshot]) *Handler {
	if links == nil {
		links = history.New[types.LinkSnapshot]()
	}
	return &Handler{
		status:  status,
		devices: devices,
		links:   links,
		pick:    metrics.First,
	}
}

// SetPrimaryDevice selects the device used for CSV rows and diagnostics.
func (h *Handler) SetPrimaryDevice(deviceID string) {
	h.pick = metrics.SelectorFor(deviceID)
}

func (h *Handler) SetVersion(version string) {
	if version == "" {
		version = "dev"
	}
	h.version = version
}

type VersionResponse struct {
	Version string `json:"version"`
}

type DiagnosticResponse struct {
	Summary        *metrics.Summary           `json:"summary,omitempty"`
	Throughput     types.ThroughputMetrics    `json:"throughput"`
	Interpretation *diagnostic.Interpretation `json:"interpretation"`
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version := h.version
	if version == "" {
		version = "dev"
	}
	respondJSON(w, VersionResponse{Version: version}, http.StatusOK)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	cycles, failed := h.status.Counts()
	resp := types.StatusResponse{
		SessionID:     h.status.SessionID(),
		State:         h.status.State().String(),
		Cycles:        cycles,
		FailedCycles:  failed,
		Snapshots:     h.devices.Len(),
		LinkSnapshots: h.links.Len(),
	}
	if last, ok := h.status.LastReport(); ok {
		resp.Last = &last
	}
	respondJSON(w, resp, http.StatusOK)
}

// parseLimit reads ?limit=N, the number of most recent snapshots to return.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxHistoryLimit {
		return 0, false
	}
	return n, true
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		respondJSON(w, map[string]string{"error": "limit must be 1-10000"}, http.StatusBadRequest)
		return
	}
	view := h.devices.View()
	tail := view.Tail(limit)

	resp := types.HistoryResponse{
		Total:     view.Len(),
		Snapshots: make([]types.DeviceSnapshot, 0, tail.Len()),
	}
	for _, snap := range tail.All() {
		resp.Snapshots = append(resp.Snapshots, snap)
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetHistoryCSV exports the selected primary sample of every snapshot.
func (h *Handler) GetHistoryCSV(w http.ResponseWriter, r *http.Request) {
	view := h.devices.View()
	rows := make([]types.HistoryRow, 0, view.Len())
	for _, snap := range view.All() {
		sample, ok := h.pick(snap)
		if !ok {
			continue
		}
		rows = append(rows, types.HistoryRow{
			Cycle:       snap.Cycle,
			CollectedAt: snap.CollectedAt.UTC().Format(time.RFC3339Nano),
			DeviceID:    sample.DeviceID,
			Timestamp:   sample.Timestamp,
			Received:    sample.Received,
			Dropped:     sample.Dropped,
			LinkTotal:   sample.LinkTotal,
			SuccessRate: sample.SuccessRate(),
			LossRate:    sample.LossRate(),
			Consistent:  sample.Confirm(),
		})
	}

	body, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		logging.Warn("history csv marshal failed", logging.Field{Key: "error", Value: err})
		respondJSON(w, map[string]string{"error": "internal error"}, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="brofiler-history.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Warn("history csv write failed", logging.Field{Key: "error", Value: err})
	}
}

func (h *Handler) GetLinks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		respondJSON(w, map[string]string{"error": "limit must be 1-10000"}, http.StatusBadRequest)
		return
	}
	view := h.links.View()
	tail := view.Tail(limit)

	resp := types.LinksResponse{
		Total:      view.Len(),
		Snapshots:  make([]types.LinkSnapshot, 0, tail.Len()),
		Throughput: metrics.CalculateThroughput(view),
	}
	for _, snap := range tail.All() {
		resp.Snapshots = append(resp.Snapshots, snap)
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetDiagnostic grades the capture quality of the session so far.
func (h *Handler) GetDiagnostic(w http.ResponseWriter, r *http.Request) {
	cycles, failed := h.status.Counts()
	linkView := h.links.View()
	throughput := metrics.CalculateThroughput(linkView)

	params := diagnostic.Params{
		Cycles:          cycles,
		FailedCycles:    failed,
		ThroughputMbps:  throughput.AvgMbps,
		ThroughputKnown: throughput.Samples > 0,
	}

	resp := DiagnosticResponse{Throughput: throughput}
	if summary, err := metrics.Summarize(h.devices.View(), h.pick); err == nil {
		resp.Summary = &summary
		params.LossRate = summary.RollingLossRate
		params.LossKnown = true
		params.Snapshots = summary.Snapshots
		params.Inconsistent = summary.Inconsistent
	}
	resp.Interpretation = diagnostic.Interpret(params)
	respondJSON(w, resp, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("JSON response encode failed",
			logging.Field{Key: "error", Value: err})
	}
}
