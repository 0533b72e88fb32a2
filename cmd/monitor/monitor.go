// Package monitor implements `brofiler monitor`: apply the cluster
// configuration, poll broctl every period and serve the live results.
package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/saveenergy/brofiler/internal/api"
	"github.com/saveenergy/brofiler/internal/broctl"
	"github.com/saveenergy/brofiler/internal/config"
	"github.com/saveenergy/brofiler/internal/history"
	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/internal/metrics"
	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/internal/registry"
	"github.com/saveenergy/brofiler/internal/scheduler"
	"github.com/saveenergy/brofiler/internal/websocket"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Cluster is the broctl surface the monitor drives. *broctl.Client
// implements it.
type Cluster interface {
	scheduler.Collector
	Apply(ctx context.Context) error
}

type Options struct {
	Version string
	JSON    bool
	Plain   bool
	NoColor bool

	Stdout io.Writer
	Stderr io.Writer

	// Cluster overrides the broctl client built from the config.
	Cluster Cluster
	// Ready, when set, receives the HTTP listen address once the server
	// accepts connections.
	Ready func(addr string)
}

// LoadConfig layers defaults, the optional YAML file and BROFILER_*
// environment variables, then validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigureLogging installs the default logger described by cfg.
func ConfigureLogging(cfg *config.Config) error {
	return logging.Configure(logging.Options{
		Level:      logging.ParseLevel(cfg.LogLevel),
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
}

func newFormatter(opts Options) OutputFormatter {
	switch {
	case opts.JSON:
		return NewJSONFormatter(opts.Stdout, opts.Stderr)
	case opts.Plain:
		return NewPlainFormatter(opts.Stdout, opts.Stderr)
	}
	if f, ok := opts.Stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return NewPlainFormatter(opts.Stdout, opts.Stderr)
	}
	return NewInteractiveFormatter(opts.Stdout, opts.Stderr, opts.NoColor)
}

// Run blocks until the configured number of cycles completes or ctx is
// cancelled. Cancellation is a clean exit.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger := logging.NewLogger("monitor")

	cluster := opts.Cluster
	if cluster == nil {
		cluster = broctl.New(cfg.BroctlPath, cfg.UseSudo, cfg.CommandTimeout,
			broctl.WithLogger(logging.NewLogger("broctl")))
	}

	if cfg.ApplyOnStart {
		logger.Info("Applying cluster configuration")
		if err := cluster.Apply(ctx); err != nil {
			return err
		}
	}

	devices := history.New[types.DeviceSnapshot]()
	links := history.New[types.LinkSnapshot]()
	formatter := newFormatter(opts)
	collector := metrics.NewCollector()

	sessionID := uuid.NewString()
	sched, err := scheduler.New(scheduler.Config{
		Period:        cfg.Period,
		Cycles:        cfg.Cycles,
		PollTimeout:   cfg.PollTimeout,
		PrimaryDevice: cfg.PrimaryDevice,
		CollectLinks:  cfg.CollectLinks,
	}, cluster, devices,
		scheduler.WithLinkHistory(links),
		scheduler.WithSessionID(sessionID),
		scheduler.WithLogger(logging.NewLogger("scheduler")),
		scheduler.WithReporters(collector, formatter),
	)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.HTTPEnabled {
		srv, ln, cleanup, err := newHTTPServer(cfg, opts.Version, sched, devices, links, collector)
		if err != nil {
			return err
		}
		defer cleanup()

		addr := ln.Addr().String()
		logger.Info("HTTP server starting", logging.Field{Key: "address", Value: addr})
		if opts.Ready != nil {
			opts.Ready(addr)
		}

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown error", logging.Field{Key: "error", Value: err})
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		if err := sched.Run(gctx); err != nil && !errors.IsContextError(err) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		formatter.FormatError(err)
		return err
	}

	if summary, err := metrics.Summarize(devices.View(), metrics.SelectorFor(cfg.PrimaryDevice)); err == nil {
		formatter.FormatSummary(summary)
	}
	cycles, failed := sched.Counts()
	logger.Info("Monitoring stopped",
		logging.Field{Key: "cycles", Value: cycles},
		logging.Field{Key: "failed_cycles", Value: failed})
	return nil
}

func newHTTPServer(
	cfg *config.Config,
	version string,
	sched *scheduler.Scheduler,
	devices *history.Log[types.DeviceSnapshot],
	links *history.Log[types.LinkSnapshot],
	collector *metrics.Collector,
) (*http.Server, net.Listener, func(), error) {
	store, err := registry.Open(cfg.RegistryDBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	writer := nodecfg.NewWriter(cfg.NodeCfgPath, cfg.LoadFilePath, cfg.ScriptPrefix)
	service := registry.NewService(store, writer, logging.NewLogger("registry"))

	wsServer := websocket.NewServer()
	wsServer.SetAllowedOrigins(cfg.AllowedOrigins)
	wsServer.SetPingInterval(cfg.WebSocketPingInterval)
	sched.AddReporter(wsServer)

	handler := api.NewHandler(sched, devices, links)
	handler.SetVersion(version)
	handler.SetPrimaryDevice(cfg.PrimaryDevice)

	router := api.NewRouter(handler)
	router.SetAllowedOrigins(cfg.AllowedOrigins)
	router.SetWebSocketHandler(wsServer.HandleStream)
	router.SetMetricsHandler(collector.Handler())

	registryHandler := registry.NewHandler(service, logging.NewLogger("registry"), cfg.APIKey)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		wsServer.Close()
		store.Close()
		return nil, nil, nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           router.SetupRoutes(registryHandler),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	cleanup := func() {
		wsServer.Close()
		store.Close()
	}
	return srv, ln, cleanup, nil
}
