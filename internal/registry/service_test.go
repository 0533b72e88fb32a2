package registry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/internal/registry"
	"github.com/saveenergy/brofiler/pkg/types"
)

func TestRegisterWarnsOnUnrecognizedRole(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dir := t.TempDir()
	nodeCfg := filepath.Join(dir, "node.cfg")
	svc := registry.NewService(openStore(t),
		nodecfg.NewWriter(nodeCfg, filepath.Join(dir, "local.bro"), "brofiler/"),
		logging.NewWithCore(core))

	if err := svc.Register(device(t, "worker-1", types.RoleWorker, "10.0.0.5", "eth0")); err != nil {
		t.Fatalf("Register(worker-1): %v", err)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Fatalf("warnings for a known role = %d, want 0", n)
	}

	if err := svc.Register(device(t, "tap", types.Role("sensor"), "10.0.0.9", "")); err != nil {
		t.Fatalf("Register(tap): %v", err)
	}
	warns := logs.FilterMessage("device registered with unrecognized role").All()
	if len(warns) != 1 {
		t.Fatalf("unrecognized role warnings = %d, want 1", len(warns))
	}
	if ctx := warns[0].ContextMap(); ctx["name"] != "tap" || ctx["role"] != "sensor" {
		t.Fatalf("warning context = %v", ctx)
	}

	data, err := os.ReadFile(nodeCfg)
	if err != nil {
		t.Fatalf("read node.cfg: %v", err)
	}
	if !strings.Contains(string(data), "###OTHER###\n[tap]\ntype=sensor\n") {
		t.Fatalf("node.cfg = %q", data)
	}
}
