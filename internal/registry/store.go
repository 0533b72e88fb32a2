package registry

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

// Store persists device descriptors. Samples are never stored here.
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
}

type Entry struct {
	Device    types.DeviceDescriptor `json:"device"`
	CreatedAt time.Time              `json:"created_at"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create registry dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if err := s.db.Close(); err != nil {
			logging.Warn("device registry: close failed", logging.Field{Key: "error", Value: err})
		}
	})
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS devices (
		name TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		host TEXT NOT NULL,
		interface TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_created_at ON devices(created_at)`)
	return err
}

// Add records d. Names are unique; a second Add with the same name fails
// with DEVICE_EXISTS.
func (s *Store) Add(d types.DeviceDescriptor) error {
	if d.Name() == "" {
		return errors.ErrInvalidDevice("descriptor is empty")
	}
	_, err := s.db.Exec(
		`INSERT INTO devices (name, role, host, interface, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.Name(), string(d.Role()), d.Host(), d.Interface(), time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDeviceExists(d.Name())
		}
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func (s *Store) Get(name string) (Entry, error) {
	var (
		role, host, iface string
		createdAt         time.Time
	)
	err := s.db.QueryRow(
		`SELECT role, host, interface, created_at FROM devices WHERE name = ?`, name,
	).Scan(&role, &host, &iface, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Entry{}, errors.ErrDeviceNotFound(name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query device: %w", err)
	}
	d, err := types.NewDeviceDescriptor(name, types.Role(role), host, iface)
	if err != nil {
		return Entry{}, fmt.Errorf("stored device %s: %w", name, err)
	}
	return Entry{Device: d, CreatedAt: createdAt}, nil
}

// List returns every device in registration order.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT name, role, host, interface, created_at FROM devices ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			name, role, host, iface string
			createdAt               time.Time
		)
		if err := rows.Scan(&name, &role, &host, &iface, &createdAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d, err := types.NewDeviceDescriptor(name, types.Role(role), host, iface)
		if err != nil {
			logging.Warn("device registry: skipping invalid row",
				logging.Field{Key: "name", Value: name},
				logging.Field{Key: "error", Value: err})
			continue
		}
		entries = append(entries, Entry{Device: d, CreatedAt: createdAt})
	}
	return entries, rows.Err()
}

func (s *Store) Remove(name string) error {
	res, err := s.db.Exec(`DELETE FROM devices WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrDeviceNotFound(name)
	}
	return nil
}

func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}
