package nodecfg_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/saveenergy/brofiler/internal/nodecfg"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

func TestWriterAppendsWithoutRewriting(t *testing.T) {
	dir := t.TempDir()
	nodeCfg := filepath.Join(dir, "node.cfg")
	existing := "[manager]\ntype=manager\nhost=localhost\n"
	if err := os.WriteFile(nodeCfg, []byte(existing), 0o644); err != nil {
		t.Fatalf("seed node.cfg: %v", err)
	}

	w := nodecfg.NewWriter(nodeCfg, filepath.Join(dir, "local.bro"), "brofiler/")
	d := mustDevice(t, "TEST", types.RoleWorker, "1.1.1.1", "eth0")
	if err := w.AppendNode(d); err != nil {
		t.Fatalf("AppendNode: %v", err)
	}

	data, err := os.ReadFile(nodeCfg)
	if err != nil {
		t.Fatalf("read node.cfg: %v", err)
	}
	if string(data) != existing+nodecfg.Format(d) {
		t.Fatalf("node.cfg = %q", data)
	}
}

func TestWriterAppendScript(t *testing.T) {
	dir := t.TempDir()
	load := filepath.Join(dir, "local.bro")
	w := nodecfg.NewWriter(filepath.Join(dir, "node.cfg"), load, "brofiler/")

	for _, s := range []string{"a.bro", "b.bro"} {
		if err := w.AppendScript(s); err != nil {
			t.Fatalf("AppendScript(%q): %v", s, err)
		}
	}
	data, err := os.ReadFile(load)
	if err != nil {
		t.Fatalf("read load file: %v", err)
	}
	want := "\n###Brofiler###\n@load brofiler/a.bro\n\n###Brofiler###\n@load brofiler/b.bro\n"
	if string(data) != want {
		t.Fatalf("load file = %q, want %q", data, want)
	}

	if err := w.AppendScript("bad name"); !errors.IsCode(err, errors.ErrCodeInvalidScript) {
		t.Fatalf("AppendScript(whitespace) error = %v", err)
	}
}

func TestWriterReportsWriteFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-dir", "node.cfg")
	w := nodecfg.NewWriter(missing, missing, "brofiler/")

	err := w.AppendNode(mustDevice(t, "TEST", types.RoleWorker, "1.1.1.1", "eth0"))
	if !errors.IsCode(err, errors.ErrCodeConfigWriteFailed) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeConfigWriteFailed)
	}
}

func TestWriterSerializesConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	nodeCfg := filepath.Join(dir, "node.cfg")
	w := nodecfg.NewWriter(nodeCfg, filepath.Join(dir, "local.bro"), "brofiler/")

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := types.NewDeviceDescriptor(fmt.Sprintf("worker-%d", i), types.RoleWorker, "10.0.0.1", "eth0")
			if err != nil {
				t.Errorf("descriptor: %v", err)
				return
			}
			if err := w.AppendNode(d); err != nil {
				t.Errorf("AppendNode: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(nodeCfg)
	if err != nil {
		t.Fatalf("read node.cfg: %v", err)
	}
	if got := strings.Count(string(data), "###WORKER###"); got != n {
		t.Fatalf("blocks = %d, want %d", got, n)
	}
	for _, block := range strings.Split(string(data), "#\n###WORKER###\n")[1:] {
		lines := strings.Split(strings.TrimSuffix(block, "\n"), "\n")
		if len(lines) != 4 || !strings.HasPrefix(lines[1], "type=") || !strings.HasPrefix(lines[3], "interface=") {
			t.Fatalf("interleaved block %q", block)
		}
	}
}
