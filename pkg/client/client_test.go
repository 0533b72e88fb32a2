package client_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saveenergy/brofiler/internal/api"
	"github.com/saveenergy/brofiler/internal/history"
	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/internal/registry"
	"github.com/saveenergy/brofiler/internal/scheduler"
	"github.com/saveenergy/brofiler/pkg/client"
	"github.com/saveenergy/brofiler/pkg/types"
)

type staticStatus struct{}

func (staticStatus) SessionID() string            { return "sdk-session" }
func (staticStatus) State() scheduler.State       { return scheduler.StatePolling }
func (staticStatus) Counts() (cycles, failed int) { return 2, 0 }
func (staticStatus) LastReport() (types.CycleReport, bool) {
	return types.CycleReport{SessionID: "sdk-session", Cycle: 2, Status: types.CycleStatusOK}, true
}

type monitor struct {
	srv     *httptest.Server
	nodeCfg string
}

func startMonitor(t *testing.T, apiKey string) monitor {
	t.Helper()
	dir := t.TempDir()

	devices := history.New[types.DeviceSnapshot]()
	for i := 1; i <= 2; i++ {
		devices.Append(types.DeviceSnapshot{
			Cycle: i,
			Samples: []types.DeviceStatSample{
				{DeviceID: "bro", Timestamp: 1423861198.685558, Received: 25118568, Dropped: 69563523, LinkTotal: 94682096},
			},
		})
	}

	store, err := registry.Open(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(store.Close)

	nodeCfg := filepath.Join(dir, "node.cfg")
	svc := registry.NewService(store, nodecfg.NewWriter(nodeCfg, filepath.Join(dir, "local.bro"), "brofiler/"), nil)

	handler := api.NewHandler(staticStatus{}, devices, nil)
	handler.SetVersion("0.1.0")
	router := api.NewRouter(handler)
	srv := httptest.NewServer(router.SetupRoutes(registry.NewHandler(svc, nil, apiKey)))
	t.Cleanup(srv.Close)
	return monitor{srv: srv, nodeCfg: nodeCfg}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c := client.New("http://localhost:9470/")
	if c.ServerURL() != "http://localhost:9470" {
		t.Fatalf("server url = %q", c.ServerURL())
	}
}

func TestClientReadEndpoints(t *testing.T) {
	m := startMonitor(t, "")
	c := client.New(m.srv.URL)
	ctx := context.Background()

	if err := c.Healthy(ctx); err != nil {
		t.Fatalf("healthy: %v", err)
	}
	if v, err := c.Version(ctx); err != nil || v != "0.1.0" {
		t.Fatalf("version = %q, %v", v, err)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.SessionID != "sdk-session" || status.State != "polling" || status.Snapshots != 2 {
		t.Fatalf("status = %+v", status)
	}

	hist, err := c.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist.Total != 2 || len(hist.Snapshots) != 1 || hist.Snapshots[0].Cycle != 2 {
		t.Fatalf("history = %+v", hist)
	}

	links, err := c.Links(ctx, 0)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if links.Total != 0 || links.Throughput.Samples != 0 {
		t.Fatalf("links = %+v", links)
	}

	diag, err := c.Diagnostic(ctx)
	if err != nil {
		t.Fatalf("diagnostic: %v", err)
	}
	if diag.Summary == nil || diag.Interpretation == nil {
		t.Fatalf("diagnostic = %+v", diag)
	}
	if diag.Interpretation.CaptureRating != "poor" {
		t.Fatalf("capture rating = %s, want poor", diag.Interpretation.CaptureRating)
	}
}

func TestClientDeviceLifecycle(t *testing.T) {
	m := startMonitor(t, "secret")
	ctx := context.Background()

	d, err := types.NewDeviceDescriptor("worker-1", types.RoleWorker, "10.0.0.5", "eth0")
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	anon := client.New(m.srv.URL)
	if err := anon.RegisterDevice(ctx, d); !stderrors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("register without key = %v, want ErrUnauthorized", err)
	}

	c := client.New(m.srv.URL, client.WithAPIKey("secret"))
	if err := c.RegisterDevice(ctx, d); err != nil {
		t.Fatalf("register: %v", err)
	}

	err = c.RegisterDevice(ctx, d)
	var apiErr *client.APIError
	if !stderrors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register = %v, want 409 APIError", err)
	}

	entries, err := c.Devices(ctx)
	if err != nil || len(entries) != 1 || entries[0].Device.Name() != "worker-1" {
		t.Fatalf("devices = %+v, %v", entries, err)
	}
	entry, err := c.Device(ctx, "worker-1")
	if err != nil || entry.Device.Interface() != "eth0" {
		t.Fatalf("device = %+v, %v", entry, err)
	}

	data, err := os.ReadFile(m.nodeCfg)
	if err != nil {
		t.Fatalf("read node.cfg: %v", err)
	}
	if !strings.Contains(string(data), "[worker-1]\ntype=worker\nhost=10.0.0.5\ninterface=eth0\n") {
		t.Fatalf("node.cfg = %q", data)
	}

	if err := c.AddScript(ctx, "profile.bro"); err != nil {
		t.Fatalf("add script: %v", err)
	}
	if err := c.DeregisterDevice(ctx, "worker-1"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if _, err := c.Device(ctx, "worker-1"); !stderrors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("get after deregister = %v, want 404", err)
	}
}

func TestClientRespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.New(srv.URL).Status(ctx); err == nil {
		t.Fatal("expected error on deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("status took %v, deadline not honored", elapsed)
	}
}

func TestHealthyReportsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := client.New(url).Healthy(context.Background()); err == nil {
		t.Fatal("expected unreachable error")
	}
}
