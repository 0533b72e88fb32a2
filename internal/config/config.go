package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/saveenergy/brofiler/pkg/errors"
)

const envPrefix = "BROFILER_"

type Config struct {
	BroctlPath     string        `yaml:"broctl_path"`
	UseSudo        bool          `yaml:"use_sudo"`
	CommandTimeout time.Duration `yaml:"command_timeout"`

	NodeCfgPath  string `yaml:"node_cfg_path"`
	LoadFilePath string `yaml:"load_file_path"`
	ScriptPrefix string `yaml:"script_prefix"`

	Period        time.Duration `yaml:"period"`
	Cycles        int           `yaml:"cycles"` // 0 runs until cancelled
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	PrimaryDevice string        `yaml:"primary_device"` // empty selects the first device
	CollectLinks  bool          `yaml:"collect_links"`
	ApplyOnStart  bool          `yaml:"apply_on_start"`

	HTTPEnabled           bool          `yaml:"http_enabled"`
	ListenAddr            string        `yaml:"listen_addr"`
	AllowedOrigins        []string      `yaml:"allowed_origins"`
	WebSocketPingInterval time.Duration `yaml:"websocket_ping_interval"`
	ReadHeaderTimeout     time.Duration `yaml:"read_header_timeout"`
	APIKey                string        `yaml:"api_key"` // guards registry writes when set

	RegistryDBPath string `yaml:"registry_db_path"`

	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`
}

func DefaultConfig() *Config {
	return &Config{
		BroctlPath:            "/usr/local/bro/bin/broctl",
		UseSudo:               true,
		CommandTimeout:        30 * time.Second,
		NodeCfgPath:           "/usr/local/bro/etc/node.cfg",
		LoadFilePath:          "/usr/local/bro/share/bro/site/local.bro",
		ScriptPrefix:          "brofiler/",
		Period:                5 * time.Second,
		Cycles:                100,
		PollTimeout:           4 * time.Second,
		PrimaryDevice:         "",
		CollectLinks:          false,
		ApplyOnStart:          true,
		HTTPEnabled:           true,
		ListenAddr:            "127.0.0.1:9470",
		AllowedOrigins:        []string{"*"},
		WebSocketPingInterval: 30 * time.Second,
		ReadHeaderTimeout:     10 * time.Second,
		RegistryDBPath:        "./data/brofiler.db",
		LogLevel:              "info",
		LogFormat:             "console",
		LogFile:               "",
		LogMaxSizeMB:          100,
		LogMaxBackups:         5,
		LogMaxAgeDays:         28,
		LogCompress:           false,
	}
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ErrInvalidConfig("read config file "+path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ErrInvalidConfig("parse config file "+path, err)
	}
	return nil
}

func (c *Config) LoadFromEnv() error {
	if v := env("BROCTL_PATH"); v != "" {
		c.BroctlPath = v
	}
	if v := env("USE_SUDO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sUSE_SUDO %q: must be a boolean", envPrefix, v)
		}
		c.UseSudo = b
	}
	if v := env("COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sCOMMAND_TIMEOUT %q: must be a positive duration (e.g. 30s)", envPrefix, v)
		}
		c.CommandTimeout = d
	}

	if v := env("NODE_CFG"); v != "" {
		c.NodeCfgPath = v
	}
	if v := env("LOAD_FILE"); v != "" {
		c.LoadFilePath = v
	}
	if v, ok := os.LookupEnv(envPrefix + "SCRIPT_PREFIX"); ok {
		c.ScriptPrefix = v
	}

	if v := env("PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sPERIOD %q: must be a positive duration (e.g. 5s)", envPrefix, v)
		}
		c.Period = d
	}
	if v := env("CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %sCYCLES %q: must be a non-negative integer", envPrefix, v)
		}
		c.Cycles = n
	}
	if v := env("POLL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sPOLL_TIMEOUT %q: must be a positive duration (e.g. 4s)", envPrefix, v)
		}
		c.PollTimeout = d
	}
	if v := env("PRIMARY_DEVICE"); v != "" {
		c.PrimaryDevice = v
	}
	if v := env("COLLECT_LINKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sCOLLECT_LINKS %q: must be a boolean", envPrefix, v)
		}
		c.CollectLinks = b
	}
	if v := env("APPLY_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPPLY_ON_START %q: must be a boolean", envPrefix, v)
		}
		c.ApplyOnStart = b
	}

	if v := env("HTTP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sHTTP_ENABLED %q: must be a boolean", envPrefix, v)
		}
		c.HTTPEnabled = b
	}
	if v := env("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := env("ALLOWED_ORIGINS"); v != "" {
		entries := strings.Split(v, ",")
		c.AllowedOrigins = make([]string, 0, len(entries))
		for _, entry := range entries {
			value := strings.TrimSpace(entry)
			if value != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, value)
			}
		}
	}
	if v := env("WS_PING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %sWS_PING_INTERVAL %q: must be a positive duration (e.g. 30s)", envPrefix, v)
		}
		c.WebSocketPingInterval = d
	}

	if v := env("API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := env("REGISTRY_DB"); v != "" {
		c.RegistryDBPath = v
	}

	if v := env("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	} else if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := env("LOG_FILE"); v != "" {
		c.LogFile = v
	}

	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.BroctlPath) == "" {
		result = multierror.Append(result, fmt.Errorf("broctl path cannot be empty"))
	}
	if c.CommandTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("command timeout must be > 0"))
	}
	if c.NodeCfgPath == "" {
		result = multierror.Append(result, fmt.Errorf("node.cfg path cannot be empty"))
	}
	if c.LoadFilePath == "" {
		result = multierror.Append(result, fmt.Errorf("script load file path cannot be empty"))
	}
	if strings.ContainsAny(c.ScriptPrefix, " \t\r\n") {
		result = multierror.Append(result, fmt.Errorf("script prefix %q must not contain whitespace", c.ScriptPrefix))
	}
	if c.Period <= 0 {
		result = multierror.Append(result, fmt.Errorf("period must be > 0"))
	}
	if c.Cycles < 0 {
		result = multierror.Append(result, fmt.Errorf("cycles must be >= 0"))
	}
	if c.PollTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll timeout must be > 0"))
	}
	if c.HTTPEnabled {
		if _, port, err := net.SplitHostPort(c.ListenAddr); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err))
		} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			result = multierror.Append(result, fmt.Errorf("invalid listen port %q: must be 0-65535", port))
		}
		if c.WebSocketPingInterval <= 0 {
			result = multierror.Append(result, fmt.Errorf("websocket ping interval must be > 0"))
		}
	}
	if c.RegistryDBPath == "" {
		result = multierror.Append(result, fmt.Errorf("registry database path cannot be empty"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log format %q must be console or json", c.LogFormat))
	}
	if c.LogFile != "" && (c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0) {
		result = multierror.Append(result, fmt.Errorf("log rotation settings must be >= 0"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.ErrInvalidConfig("validate", err)
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}
