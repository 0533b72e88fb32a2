// Package scheduler drives the poll, parse, aggregate, report cycle on a
// fixed wall-clock cadence.
package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saveenergy/brofiler/internal/history"
	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/internal/metrics"
	"github.com/saveenergy/brofiler/internal/netstats"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateParsing
	StateAggregating
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateParsing:
		return "parsing"
	case StateAggregating:
		return "aggregating"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Collector fetches raw reports from the cluster. *broctl.Client
// implements it.
type Collector interface {
	Netstats(ctx context.Context) (string, error)
	Capstats(ctx context.Context) (string, error)
}

// Reporter receives every cycle's report, failed cycles included. Report is
// called on the poll goroutine and must not block.
type Reporter interface {
	Report(types.CycleReport)
}

type ReporterFunc func(types.CycleReport)

func (f ReporterFunc) Report(r types.CycleReport) { f(r) }

type Config struct {
	Period        time.Duration
	Cycles        int // 0 runs until the context is cancelled
	PollTimeout   time.Duration
	PrimaryDevice string
	CollectLinks  bool
}

var (
	errNoDevices        = stderrors.New("report contains no devices")
	errPrimaryMissing   = stderrors.New("primary device missing from report")
	errInvalidPeriod    = stderrors.New("period must be > 0")
	errInvalidCycles    = stderrors.New("cycles must be >= 0")
	errMissingCollector = stderrors.New("collector is required")
	errMissingHistory   = stderrors.New("device history is required")
)

type Scheduler struct {
	cfg       Config
	collector Collector
	devices   *history.Log[types.DeviceSnapshot]
	links     *history.Log[types.LinkSnapshot]
	pick      metrics.Selector
	logger    *logging.Logger
	sessionID string

	mu        sync.RWMutex
	reporters []Reporter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	state  atomic.Int32
	last   atomic.Pointer[types.CycleReport]
	cycles atomic.Int64
	failed atomic.Int64
}

type Option func(*Scheduler)

// WithLinkHistory enables storage of link snapshots when Config.CollectLinks
// is set.
func WithLinkHistory(l *history.Log[types.LinkSnapshot]) Option {
	return func(s *Scheduler) { s.links = l }
}

func WithReporters(r ...Reporter) Option {
	return func(s *Scheduler) { s.reporters = append(s.reporters, r...) }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithSessionID(id string) Option {
	return func(s *Scheduler) { s.sessionID = id }
}

// WithClock replaces the wall clock and the sleep between cycles. sleep must
// return the context's error when cancelled before d elapses.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) {
		s.now = now
		s.sleep = sleep
	}
}

func New(cfg Config, collector Collector, devices *history.Log[types.DeviceSnapshot], opts ...Option) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, errors.ErrInvalidConfig("scheduler", errInvalidPeriod)
	}
	if cfg.Cycles < 0 {
		return nil, errors.ErrInvalidConfig("scheduler", errInvalidCycles)
	}
	if collector == nil {
		return nil, errors.ErrInvalidConfig("scheduler", errMissingCollector)
	}
	if devices == nil {
		return nil, errors.ErrInvalidConfig("scheduler", errMissingHistory)
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = cfg.Period
	}

	s := &Scheduler{
		cfg:       cfg,
		collector: collector,
		devices:   devices,
		pick:      metrics.SelectorFor(cfg.PrimaryDevice),
		logger:    logging.NewLogger("scheduler"),
		sessionID: uuid.NewString(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddReporter registers r for every later cycle.
func (s *Scheduler) AddReporter(r Reporter) {
	s.mu.Lock()
	s.reporters = append(s.reporters, r)
	s.mu.Unlock()
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) SessionID() string {
	return s.sessionID
}

// LastReport returns the most recent cycle's report.
func (s *Scheduler) LastReport() (types.CycleReport, bool) {
	r := s.last.Load()
	if r == nil {
		return types.CycleReport{}, false
	}
	return *r, true
}

// NextSleep is how long to wait so the next cycle starts on a period
// boundary measured from the loop's start. It is always in (0, period]; a
// cycle that overran skips to the following boundary.
func NextSleep(elapsed, period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return period - elapsed%period
}

// Run polls until the configured cycle count is reached or ctx is cancelled.
// Cancellation is observed between cycles; a poll in flight completes within
// PollTimeout. Run returns ctx.Err() when cancelled and nil otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	start := s.now()
	s.logger.Info("monitoring started",
		logging.Field{Key: "session", Value: s.sessionID},
		logging.Field{Key: "period", Value: s.cfg.Period},
		logging.Field{Key: "cycles", Value: s.cfg.Cycles})

	for cycle := 1; s.cfg.Cycles == 0 || cycle <= s.cfg.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		report := s.runCycle(ctx, cycle)
		report.NextSleep = NextSleep(s.now().Sub(start), s.cfg.Period)
		s.publish(report)

		if s.cfg.Cycles != 0 && cycle == s.cfg.Cycles {
			break
		}
		s.setState(StateSleeping)
		// Reporters run synchronously, so measure again after publishing.
		if err := s.sleep(ctx, NextSleep(s.now().Sub(start), s.cfg.Period)); err != nil {
			return err
		}
	}

	s.logger.Info("monitoring finished",
		logging.Field{Key: "session", Value: s.sessionID},
		logging.Field{Key: "snapshots", Value: s.devices.Len()})
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context, cycle int) types.CycleReport {
	started := s.now()
	report := types.CycleReport{
		SessionID: s.sessionID,
		Cycle:     cycle,
		Status:    types.CycleStatusOK,
		StartedAt: started,
	}

	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PollTimeout)
	defer cancel()

	if err := s.collectDevices(pollCtx, &report); err != nil {
		report.Status = types.CycleStatusFailed
		report.Error = err.Error()
		report.Snapshots = s.devices.Len()
		report.Duration = s.now().Sub(started)
		s.logger.Warn("poll cycle failed",
			logging.Field{Key: "cycle", Value: cycle},
			logging.Field{Key: "error", Value: err})
		return report
	}

	if s.cfg.CollectLinks && s.links != nil {
		s.collectLinks(pollCtx, &report)
	}

	s.setState(StateAggregating)
	summary, err := metrics.Summarize(s.devices.View(), s.pick)
	if err != nil {
		// The history only holds snapshots that carry the primary device,
		// so this means the selector changed underneath the log.
		report.Status = types.CycleStatusFailed
		report.Error = err.Error()
		s.logger.Error("aggregation failed",
			logging.Field{Key: "cycle", Value: cycle},
			logging.Field{Key: "error", Value: err})
	} else {
		report.Snapshots = summary.Snapshots
		report.RollingSuccessRate = summary.RollingSuccessRate
		report.RollingLossRate = summary.RollingLossRate
		report.Inconsistent = summary.Inconsistent
		report.Aggregated = true
	}
	report.Duration = s.now().Sub(started)

	s.logger.Debug("poll cycle complete",
		logging.Field{Key: "cycle", Value: cycle},
		logging.Field{Key: "devices", Value: len(report.Devices)},
		logging.Field{Key: "rolling_success", Value: report.RollingSuccessRate},
		logging.Field{Key: "rolling_loss", Value: report.RollingLossRate},
		logging.Field{Key: "inconsistent", Value: report.Inconsistent})
	return report
}

// collectDevices polls, parses and appends one device snapshot. Nothing is
// appended unless the snapshot is usable by the aggregator.
func (s *Scheduler) collectDevices(ctx context.Context, report *types.CycleReport) error {
	s.setState(StatePolling)
	text, err := s.collector.Netstats(ctx)
	if err != nil {
		return err
	}

	s.setState(StateParsing)
	samples, err := netstats.ParseDevices(text)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.ErrCollectionFailed("netstats", errNoDevices)
	}

	snap := types.DeviceSnapshot{
		Cycle:       report.Cycle,
		CollectedAt: s.now(),
		Samples:     samples,
	}
	primary, ok := s.pick(snap)
	if !ok {
		return errors.ErrCollectionFailed("netstats", errPrimaryMissing)
	}
	if !primary.Confirm() {
		s.logger.Debug("inconsistent counters",
			logging.Field{Key: "device", Value: primary.DeviceID},
			logging.Field{Key: "received", Value: primary.Received},
			logging.Field{Key: "dropped", Value: primary.Dropped},
			logging.Field{Key: "link", Value: primary.LinkTotal})
	}

	s.devices.Append(snap)
	report.Primary = &primary
	report.Devices = samples
	return nil
}

// collectLinks records link throughput. Its failure is logged and leaves
// the device cycle intact.
func (s *Scheduler) collectLinks(ctx context.Context, report *types.CycleReport) {
	s.setState(StatePolling)
	text, err := s.collector.Capstats(ctx)
	if err == nil {
		s.setState(StateParsing)
		var samples []types.LinkStatSample
		samples, err = netstats.ParseLinks(text)
		if err == nil {
			s.links.Append(types.LinkSnapshot{
				Cycle:       report.Cycle,
				CollectedAt: s.now(),
				Samples:     samples,
			})
			report.Links = samples
			return
		}
	}
	s.logger.Warn("link collection failed",
		logging.Field{Key: "cycle", Value: report.Cycle},
		logging.Field{Key: "error", Value: err})
}

// Counts returns how many cycles have completed and how many of them failed.
func (s *Scheduler) Counts() (cycles, failed int) {
	return int(s.cycles.Load()), int(s.failed.Load())
}

func (s *Scheduler) publish(report types.CycleReport) {
	s.last.Store(&report)
	s.cycles.Add(1)
	if report.Failed() {
		s.failed.Add(1)
	}

	s.mu.RLock()
	reporters := make([]Reporter, len(s.reporters))
	copy(reporters, s.reporters)
	s.mu.RUnlock()

	for _, r := range reporters {
		r.Report(report)
	}
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
