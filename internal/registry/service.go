package registry

import (
	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/types"
)

// ConfigWriter appends rendered configuration. *nodecfg.Writer implements it.
type ConfigWriter interface {
	AppendNode(d types.DeviceDescriptor) error
	AppendScript(script string) error
}

// Service keeps the registry and the cluster's node.cfg in step: a device
// is recorded only if its block was appended.
type Service struct {
	store  *Store
	writer ConfigWriter
	logger *logging.Logger
}

func NewService(store *Store, writer ConfigWriter, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewLogger("registry")
	}
	return &Service{store: store, writer: writer, logger: logger}
}

func (s *Service) Register(d types.DeviceDescriptor) error {
	if err := s.store.Add(d); err != nil {
		return err
	}
	if err := s.writer.AppendNode(d); err != nil {
		if rmErr := s.store.Remove(d.Name()); rmErr != nil {
			s.logger.Error("registry rollback failed",
				logging.Field{Key: "name", Value: d.Name()},
				logging.Field{Key: "error", Value: rmErr})
		}
		return err
	}
	if !d.Role().Known() {
		s.logger.Warn("device registered with unrecognized role",
			logging.Field{Key: "name", Value: d.Name()},
			logging.Field{Key: "role", Value: string(d.Role())})
	}
	s.logger.Info("device registered",
		logging.Field{Key: "name", Value: d.Name()},
		logging.Field{Key: "role", Value: string(d.Role())},
		logging.Field{Key: "host", Value: d.Host()})
	return nil
}

// Deregister forgets a device. Its node.cfg block stays; the file is
// append-only.
func (s *Service) Deregister(name string) error {
	if err := s.store.Remove(name); err != nil {
		return err
	}
	s.logger.Info("device deregistered", logging.Field{Key: "name", Value: name})
	return nil
}

func (s *Service) Get(name string) (Entry, error) {
	return s.store.Get(name)
}

func (s *Service) List() ([]Entry, error) {
	return s.store.List()
}

func (s *Service) Count() (int, error) {
	return s.store.Count()
}

func (s *Service) AddScript(script string) error {
	return s.writer.AppendScript(script)
}
