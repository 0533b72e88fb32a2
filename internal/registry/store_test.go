package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/saveenergy/brofiler/internal/registry"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

func openStore(t *testing.T) *registry.Store {
	t.Helper()
	s, err := registry.Open(filepath.Join(t.TempDir(), "data", "brofiler.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func device(t *testing.T, name string, role types.Role, host, iface string) types.DeviceDescriptor {
	t.Helper()
	d, err := types.NewDeviceDescriptor(name, role, host, iface)
	if err != nil {
		t.Fatalf("NewDeviceDescriptor: %v", err)
	}
	return d
}

func TestStoreAddGetList(t *testing.T) {
	s := openStore(t)

	worker := device(t, "worker-1", types.RoleWorker, "10.0.0.5", "eth0")
	manager := device(t, "manager", types.RoleManager, "10.0.0.1", "")
	for _, d := range []types.DeviceDescriptor{manager, worker} {
		if err := s.Add(d); err != nil {
			t.Fatalf("Add(%s): %v", d.Name(), err)
		}
	}

	got, err := s.Get("worker-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Device != worker {
		t.Fatalf("Get() = %+v, want %+v", got.Device, worker)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() len = %d, want 2", len(entries))
	}
	if n, err := s.Count(); err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}

func TestStoreRejectsDuplicateNames(t *testing.T) {
	s := openStore(t)

	if err := s.Add(device(t, "TEST", types.RoleWorker, "1.1.1.1", "eth0")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := s.Add(device(t, "TEST", types.RoleProxy, "2.2.2.2", ""))
	if !errors.IsCode(err, errors.ErrCodeDeviceExists) {
		t.Fatalf("duplicate Add error = %v, want %s", err, errors.ErrCodeDeviceExists)
	}
}

func TestStoreRemove(t *testing.T) {
	s := openStore(t)

	if err := s.Add(device(t, "proxy-1", types.RoleProxy, "10.0.0.2", "")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Remove("proxy-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get("proxy-1"); !errors.IsCode(err, errors.ErrCodeDeviceNotFound) {
		t.Fatalf("Get after Remove error = %v", err)
	}
	if err := s.Remove("proxy-1"); !errors.IsCode(err, errors.ErrCodeDeviceNotFound) {
		t.Fatalf("second Remove error = %v", err)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brofiler.db")
	s, err := registry.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Add(device(t, "standalone", types.RoleStandalone, "localhost", "eth2")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Close()

	reopened, err := registry.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get("standalone")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Device.Interface() != "eth2" {
		t.Fatalf("interface = %q, want eth2", got.Device.Interface())
	}
}
