package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Kernel log backends.
const (
	KernelBackendKmsg    = "kmsg"
	KernelBackendFile    = "file"
	KernelBackendKlogctl = "klogctl"
	KernelBackendNone    = "none"
)

// Config represents the monitor configuration
type Config struct {
	LogFile     string            `toml:"log_file"`   // empty discards logs
	TraceFile   string            `toml:"trace_file"` // JSONL record of raw source events, empty disables
	Theme       string            `toml:"theme"`      // auto, mocha, latte, plain
	Sources     SourcesConfig     `toml:"sources"`
	Normalizer  NormalizerConfig  `toml:"normalizer"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Render      RenderConfig      `toml:"render"`
	Resilience  ResilienceConfig  `toml:"resilience"`
}

// SourcesConfig lists the watched inputs
type SourcesConfig struct {
	StatusDirs       []string `toml:"status_dirs"`        // Directories holding JSON/YAML status documents
	CertDirs         []string `toml:"cert_dirs"`          // Directories holding PEM certificates
	Recursive        bool     `toml:"recursive"`          // Watch subdirectories too
	Ignore           []string `toml:"ignore"`             // File name patterns to skip
	KernelLog        string   `toml:"kernel_log"`         // Device or file for the kernel backend
	KernelBackend    string   `toml:"kernel_backend"`     // kmsg, file, klogctl, none
	KernelPoll       Duration `toml:"kernel_poll"`        // Poll interval for file and klogctl backends
	HostInterfaces   bool     `toml:"host_interfaces"`    // Poll live interfaces from the OS
	HostPollInterval Duration `toml:"host_poll_interval"` // Interval between interface polls
}

// DefaultSourcesConfig returns the standard device paths
func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		StatusDirs:       []string{"/run/edgemon/status"},
		CertDirs:         []string{"/persist/certs"},
		Ignore:           []string{".*", "*.tmp", "*~"},
		KernelLog:        "/dev/kmsg",
		KernelBackend:    KernelBackendKmsg,
		KernelPoll:       Duration{time.Second},
		HostInterfaces:   true,
		HostPollInterval: Duration{5 * time.Second},
	}
}

// NormalizerConfig holds event coalescing settings
type NormalizerConfig struct {
	Debounce Duration `toml:"debounce"` // Window for coalescing events on the same key
}

// DiagnosticsConfig holds diagnostic ring settings
type DiagnosticsConfig struct {
	RingCapacity int `toml:"ring_capacity"` // Kernel/log lines kept in memory
}

// RenderConfig holds render loop settings
type RenderConfig struct {
	MaxFPS       int      `toml:"max_fps"`       // Frame rate ceiling
	TickInterval Duration `toml:"tick_interval"` // Liveness tick for relative times
	Mouse        bool     `toml:"mouse"`         // Enable mouse reporting
}

// ResilienceConfig holds source restart settings
type ResilienceConfig struct {
	MaxRetries     int      `toml:"max_retries"`     // Consecutive failures before a source is degraded
	BackoffInitial Duration `toml:"backoff_initial"` // First retry delay
	BackoffMax     Duration `toml:"backoff_max"`     // Retry delay cap
}

// DefaultResilienceConfig returns sensible restart defaults
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:     5,
		BackoffInitial: Duration{500 * time.Millisecond},
		BackoffMax:     Duration{30 * time.Second},
	}
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Theme:       "auto",
		Sources:     DefaultSourcesConfig(),
		Normalizer:  NormalizerConfig{Debounce: Duration{50 * time.Millisecond}},
		Diagnostics: DiagnosticsConfig{RingCapacity: 500},
		Render: RenderConfig{
			MaxFPS:       30,
			TickInterval: Duration{500 * time.Millisecond},
			Mouse:        true,
		},
		Resilience: DefaultResilienceConfig(),
	}
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "edgemon", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "edgemon", "config.toml")
}

// Load loads configuration from a file. Values missing from the file keep
// their defaults. An empty path loads DefaultPath and tolerates its absence.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.LogFile = ExpandHome(cfg.LogFile)
	cfg.TraceFile = ExpandHome(cfg.TraceFile)
	cfg.Sources.StatusDirs = expandAll(cfg.Sources.StatusDirs)
	cfg.Sources.CertDirs = expandAll(cfg.Sources.CertDirs)
	cfg.Sources.KernelLog = ExpandHome(cfg.Sources.KernelLog)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Sources.KernelBackend {
	case KernelBackendKmsg, KernelBackendFile, KernelBackendKlogctl, KernelBackendNone:
	default:
		errs = append(errs, fmt.Errorf("sources.kernel_backend: unknown backend %q", c.Sources.KernelBackend))
	}
	if c.Sources.KernelBackend != KernelBackendNone && c.Sources.KernelBackend != KernelBackendKlogctl && c.Sources.KernelLog == "" {
		errs = append(errs, errors.New("sources.kernel_log: required for this backend"))
	}
	for _, p := range c.Sources.Ignore {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("sources.ignore: bad pattern %q", p))
		}
	}
	if c.Sources.HostInterfaces && c.Sources.HostPollInterval.Duration <= 0 {
		errs = append(errs, errors.New("sources.host_poll_interval: must be positive"))
	}
	if c.Normalizer.Debounce.Duration <= 0 || c.Normalizer.Debounce.Duration > time.Second {
		errs = append(errs, fmt.Errorf("normalizer.debounce: %s outside (0, 1s]", c.Normalizer.Debounce))
	}
	if c.Diagnostics.RingCapacity < 1 {
		errs = append(errs, fmt.Errorf("diagnostics.ring_capacity: %d must be at least 1", c.Diagnostics.RingCapacity))
	}
	if c.Render.MaxFPS < 1 || c.Render.MaxFPS > 120 {
		errs = append(errs, fmt.Errorf("render.max_fps: %d outside [1, 120]", c.Render.MaxFPS))
	}
	if c.Render.TickInterval.Duration <= 0 {
		errs = append(errs, errors.New("render.tick_interval: must be positive"))
	}
	if c.Resilience.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_retries: %d must not be negative", c.Resilience.MaxRetries))
	}
	if c.Resilience.BackoffInitial.Duration <= 0 {
		errs = append(errs, errors.New("resilience.backoff_initial: must be positive"))
	}
	if c.Resilience.BackoffMax.Duration < c.Resilience.BackoffInitial.Duration {
		errs = append(errs, errors.New("resilience.backoff_max: must not be below backoff_initial"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// WatchedPaths returns every status and certificate directory.
func (c *Config) WatchedPaths() []string {
	paths := make([]string, 0, len(c.Sources.StatusDirs)+len(c.Sources.CertDirs))
	paths = append(paths, c.Sources.StatusDirs...)
	paths = append(paths, c.Sources.CertDirs...)
	return paths
}

// Print writes config to a writer in TOML format
func Print(cfg *Config, w io.Writer) error {
	fmt.Fprintln(w, "# edgemon configuration")
	fmt.Fprintln(w)
	return toml.NewEncoder(w).Encode(cfg)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func expandAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, ExpandHome(p))
		}
	}
	return out
}
