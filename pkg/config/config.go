package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/browser/adapters/cdp"
	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/observability"
)

const (
	configDirName  = ".respview"
	configFileName = "config.yaml"
	envPrefix      = "RESPVIEW_"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Devices DevicesConfig `yaml:"devices"`
	Storage StorageConfig `yaml:"storage"`
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

type ServerConfig struct {
	Bind           string        `yaml:"bind"`
	ChannelPrefix  string        `yaml:"channel_prefix"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

type BrowserConfig struct {
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL     string        `yaml:"control_url"`
	Bin            string        `yaml:"bin"`
	Headless       bool          `yaml:"headless"`
	LaunchFlags    []string      `yaml:"launch_flags"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SurfaceWidth   int           `yaml:"surface_width"`
	SurfaceHeight  int           `yaml:"surface_height"`
}

type MirrorConfig struct {
	CaptureInterval  time.Duration `yaml:"capture_interval"`
	AttachTimeout    time.Duration `yaml:"attach_timeout"`
	EmulationTimeout time.Duration `yaml:"emulation_timeout"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	PaintDelay       time.Duration `yaml:"paint_delay"`
	CaptureTimeout   time.Duration `yaml:"capture_timeout"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
	MaxTouchPoints   int           `yaml:"max_touch_points"`
	TeardownTimeout  time.Duration `yaml:"teardown_timeout"`
	ProvisionTimeout time.Duration `yaml:"provision_timeout"`
	// InputRate is mirror/input messages per second per channel; 0 disables.
	InputRate  float64 `yaml:"input_rate"`
	InputBurst int     `yaml:"input_burst"`
}

type DevicesConfig struct {
	// OverridePath is an optional YAML file adding or replacing presets.
	OverridePath string `yaml:"override_path"`
	Watch        bool   `yaml:"watch"`
}

type StorageConfig struct {
	SQLitePath   string        `yaml:"sqlite_path"`
	EphemeralTTL time.Duration `yaml:"ephemeral_ttl"`
}

type BusConfig struct {
	Kind          string `yaml:"kind"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	timings := mirror.DefaultTimings()
	opts := mirror.DefaultOptions()
	surface := browser.DefaultSurfaceOptions()
	cdpDefaults := cdp.DefaultConfig()
	busDefaults := bus.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Bind:          "127.0.0.1:4780",
			ChannelPrefix: mirror.DefaultChannelPrefix,
			WriteTimeout:  opts.SendTimeout,
			PingInterval:  20 * time.Second,
			PingTimeout:   5 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       cdpDefaults.Headless,
			ConnectTimeout: cdpDefaults.ConnectTimeout,
			SurfaceWidth:   surface.Width,
			SurfaceHeight:  surface.Height,
		},
		Mirror: MirrorConfig{
			CaptureInterval:  timings.CaptureInterval,
			AttachTimeout:    timings.AttachTimeout,
			EmulationTimeout: timings.EmulationTimeout,
			NavigateTimeout:  timings.NavigateTimeout,
			SettleDelay:      timings.SettleDelay,
			PaintDelay:       timings.PaintDelay,
			CaptureTimeout:   timings.CaptureTimeout,
			JPEGQuality:      opts.JPEGQuality,
			MaxTouchPoints:   opts.MaxTouchPoints,
			TeardownTimeout:  opts.TeardownTimeout,
			ProvisionTimeout: opts.ProvisionTimeout,
			InputRate:        30,
			InputBurst:       10,
		},
		Storage: StorageConfig{
			SQLitePath:   filepath.Join("~", configDirName, "respview.db"),
			EphemeralTTL: 12 * time.Hour,
		},
		Bus: BusConfig{
			Kind:          busDefaults.Kind,
			URL:           busDefaults.URL,
			SubjectPrefix: bus.DefaultSubjectPrefix,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, ~/.respview/config.yaml, ./.respview/config.yaml, then env.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, configDirName, configFileName)
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", configDirName, configFileName)
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := env("BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := env("CHANNEL_PREFIX"); v != "" {
		cfg.Server.ChannelPrefix = v
	}
	if v := env("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCommaList(v)
	}
	if v := env("CONTROL_URL"); v != "" {
		cfg.Browser.ControlURL = v
	}
	if v := env("CHROME_BIN"); v != "" {
		cfg.Browser.Bin = v
	}
	if val, ok := envBool(envPrefix + "HEADLESS"); ok {
		cfg.Browser.Headless = val
	}
	if d, ok := envDuration(envPrefix + "CAPTURE_INTERVAL"); ok {
		cfg.Mirror.CaptureInterval = d
	}
	if v := env("DEVICES_FILE"); v != "" {
		cfg.Devices.OverridePath = v
	}
	if val, ok := envBool(envPrefix + "DEVICES_WATCH"); ok {
		cfg.Devices.Watch = val
	}
	if v := env("DB_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := env("BUS_KIND"); v != "" {
		cfg.Bus.Kind = v
	}
	if v := env("NATS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if val, ok := envBool(envPrefix + "TRACING"); ok {
		cfg.Tracing.Enabled = val
	}
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Bind) == "" {
		errs = append(errs, errors.New("server.bind is required"))
	}
	if strings.TrimSpace(c.Server.ChannelPrefix) == "" {
		errs = append(errs, errors.New("server.channel_prefix must not be empty"))
	}
	if c.Server.PingInterval < 0 || c.Server.PingTimeout < 0 {
		errs = append(errs, errors.New("server ping settings must not be negative"))
	}
	if err := c.CDP().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}
	if err := c.MirrorOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mirror: %w", err))
	}
	if c.Mirror.InputRate < 0 || c.Mirror.InputBurst < 0 {
		errs = append(errs, errors.New("mirror input rate and burst must not be negative"))
	}
	if c.Storage.EphemeralTTL < 0 {
		errs = append(errs, errors.New("storage.ephemeral_ttl must not be negative"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Bus.Kind)) {
	case bus.KindMemory, bus.KindNATS:
	default:
		errs = append(errs, fmt.Errorf("bus.kind %q must be %s or %s", c.Bus.Kind, bus.KindMemory, bus.KindNATS))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be auto, json or text", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// CDP returns the browser adapter configuration.
func (c *Config) CDP() cdp.Config {
	return cdp.Config{
		ControlURL:     c.Browser.ControlURL,
		Bin:            expandHomeDir(c.Browser.Bin),
		Headless:       c.Browser.Headless,
		LaunchFlags:    c.Browser.LaunchFlags,
		ConnectTimeout: c.Browser.ConnectTimeout,
	}
}

// MirrorOptions returns runtime options for the session registry.
func (c *Config) MirrorOptions() mirror.Options {
	surface := browser.DefaultSurfaceOptions()
	if c.Browser.SurfaceWidth > 0 {
		surface.Width = c.Browser.SurfaceWidth
	}
	if c.Browser.SurfaceHeight > 0 {
		surface.Height = c.Browser.SurfaceHeight
	}
	return mirror.Options{
		Timings: mirror.Timings{
			CaptureInterval:  c.Mirror.CaptureInterval,
			AttachTimeout:    c.Mirror.AttachTimeout,
			EmulationTimeout: c.Mirror.EmulationTimeout,
			NavigateTimeout:  c.Mirror.NavigateTimeout,
			SettleDelay:      c.Mirror.SettleDelay,
			PaintDelay:       c.Mirror.PaintDelay,
			CaptureTimeout:   c.Mirror.CaptureTimeout,
		},
		JPEGQuality:      c.Mirror.JPEGQuality,
		MaxTouchPoints:   c.Mirror.MaxTouchPoints,
		SendTimeout:      c.Server.WriteTimeout,
		TeardownTimeout:  c.Mirror.TeardownTimeout,
		ProvisionTimeout: c.Mirror.ProvisionTimeout,
		Surface:          surface,
	}
}

// InputLimit returns the router's input rate limit.
func (c *Config) InputLimit() (rate.Limit, int) {
	if c.Mirror.InputRate <= 0 {
		return 0, 0
	}
	return rate.Limit(c.Mirror.InputRate), c.Mirror.InputBurst
}

// BusConfig returns the message bus configuration.
func (c *Config) BusConfig() bus.Config {
	cfg := bus.DefaultConfig()
	cfg.Kind = strings.ToLower(strings.TrimSpace(c.Bus.Kind))
	if c.Bus.URL != "" {
		cfg.URL = c.Bus.URL
	}
	return cfg
}

// LogOptions returns logger options; output is left to the caller.
func (c *Config) LogOptions() observability.Options {
	return observability.Options{
		Level:  observability.ParseLevel(c.Logging.Level),
		Format: strings.ToLower(strings.TrimSpace(c.Logging.Format)),
	}
}

// SQLitePath returns the database path with ~ expanded.
func (c *Config) SQLitePath() string {
	return expandHomeDir(c.Storage.SQLitePath)
}

// DevicesPath returns the preset override path with ~ expanded.
func (c *Config) DevicesPath() string {
	return expandHomeDir(c.Devices.OverridePath)
}
