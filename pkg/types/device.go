package types

import (
	"encoding/json"
	"strings"

	"github.com/saveenergy/brofiler/pkg/errors"
)

type Role string

const (
	RoleManager    Role = "manager"
	RoleProxy      Role = "proxy"
	RoleWorker     Role = "worker"
	RoleStandalone Role = "standalone"
)

// Known reports whether r is one of the node types broctl understands.
func (r Role) Known() bool {
	switch r {
	case RoleManager, RoleProxy, RoleWorker, RoleStandalone:
		return true
	}
	return false
}

// NeedsInterface reports whether nodes of this role sniff an interface.
func (r Role) NeedsInterface() bool {
	return r == RoleWorker || r == RoleStandalone
}

// DeviceDescriptor describes one cluster node as it appears in node.cfg.
// It cannot be changed after NewDeviceDescriptor returns it.
type DeviceDescriptor struct {
	name  string
	role  Role
	host  string
	iface string
}

func NewDeviceDescriptor(name string, role Role, host, iface string) (DeviceDescriptor, error) {
	name = strings.TrimSpace(name)
	host = strings.TrimSpace(host)
	iface = strings.TrimSpace(iface)
	role = Role(strings.ToLower(strings.TrimSpace(string(role))))

	switch {
	case name == "":
		return DeviceDescriptor{}, errors.ErrInvalidDevice("name cannot be empty")
	case strings.ContainsAny(name, "[]\n"):
		return DeviceDescriptor{}, errors.ErrInvalidDevice("name contains reserved characters")
	case role == "":
		return DeviceDescriptor{}, errors.ErrInvalidDevice("role cannot be empty")
	case host == "":
		return DeviceDescriptor{}, errors.ErrInvalidDevice("host cannot be empty")
	case strings.ContainsAny(host+iface, "\n"):
		return DeviceDescriptor{}, errors.ErrInvalidDevice("host and interface must be single-line")
	}

	if role.NeedsInterface() {
		if iface == "" {
			return DeviceDescriptor{}, errors.ErrInvalidDevice("interface is required for role " + string(role))
		}
	} else {
		iface = ""
	}

	return DeviceDescriptor{name: name, role: role, host: host, iface: iface}, nil
}

func (d DeviceDescriptor) Name() string      { return d.name }
func (d DeviceDescriptor) Role() Role        { return d.role }
func (d DeviceDescriptor) Host() string      { return d.host }
func (d DeviceDescriptor) Interface() string { return d.iface }

type deviceJSON struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Host      string `json:"host"`
	Interface string `json:"interface,omitempty"`
}

func (d DeviceDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{Name: d.name, Role: d.role, Host: d.host, Interface: d.iface})
}

func (d *DeviceDescriptor) UnmarshalJSON(data []byte) error {
	var raw deviceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewDeviceDescriptor(raw.Name, raw.Role, raw.Host, raw.Interface)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
