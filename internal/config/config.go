package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "line"
	defaultInterval          = 300 * time.Second
	defaultRetentionDays     = 7
	defaultRotationCycles    = 288
	defaultHighTempThreshold = 70.0
	defaultLowDiskThreshold  = 85.0
	defaultDiskPath          = "/"
	defaultSampleTimeout     = 10 * time.Second
	defaultCPUWindow         = time.Second
	defaultStorePath         = "data/hostwatch.db"
	defaultBusyTimeout       = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultAPIListen         = "127.0.0.1:5001"
	defaultHistoryLimit      = 50
	defaultMaxHistoryLimit   = 1000
	defaultGRPCListen        = "127.0.0.1:5002"

	maxTemperatureThreshold = 125.0
)

// Duration wraps time.Duration for TOML/YAML parsing.
// Params: text duration string (e.g. "5s", "1m"); a bare number means seconds.
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses duration values.
// Params: text is raw duration bytes from config.
// Returns: error when value is not a valid Go duration or seconds count.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		d.Duration = time.Duration(seconds * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// UnmarshalYAML parses YAML scalar durations through UnmarshalText.
// Params: node YAML scalar node.
// Returns: parse error on invalid duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Config represents the root service configuration.
// Params: TOML/YAML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global    GlobalConfig    `toml:"global" yaml:"global"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Collector CollectorConfig `toml:"collector" yaml:"collector"`
	Store     StoreConfig     `toml:"store" yaml:"store"`
	API       APIConfig       `toml:"api" yaml:"api"`
	GRPC      GRPCConfig      `toml:"grpc" yaml:"grpc"`
}

// GlobalConfig contains host identity.
// Params: configured host name (empty resolves to os.Hostname).
// Returns: global settings.
type GlobalConfig struct {
	Host string `toml:"host" yaml:"host"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console" yaml:"console"`
	File    LogSinkConfig `toml:"file" yaml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from config.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Level   string `toml:"level" yaml:"level"`
	Format  string `toml:"format" yaml:"format"`
	Path    string `toml:"path" yaml:"path"`
}

// CollectorConfig controls sampling cadence, retention and thresholds.
// Params: [collector] section values.
// Returns: collector loop settings.
type CollectorConfig struct {
	Interval          Duration `toml:"interval" yaml:"interval"`
	RetentionDays     int      `toml:"retention_days" yaml:"retention_days"`
	RotationCycles    int      `toml:"rotation_cycles" yaml:"rotation_cycles"`
	RotateEvery       Duration `toml:"rotate_every" yaml:"rotate_every"`
	HighTempThreshold float64  `toml:"high_temp_threshold" yaml:"high_temp_threshold"`
	LowDiskThreshold  float64  `toml:"low_disk_threshold" yaml:"low_disk_threshold"`
	DiskPath          string   `toml:"disk_path" yaml:"disk_path"`
	ThermalPath       string   `toml:"thermal_path" yaml:"thermal_path"`
	SampleTimeout     Duration `toml:"sample_timeout" yaml:"sample_timeout"`
	CPUWindow         Duration `toml:"cpu_window" yaml:"cpu_window"`
}

// Retention returns the retention horizon.
// Params: none.
// Returns: retention_days as duration.
func (c CollectorConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// StoreConfig contains SQLite storage settings.
// Params: database path and timeouts.
// Returns: store options.
type StoreConfig struct {
	Path         string   `toml:"path" yaml:"path"`
	BusyTimeout  Duration `toml:"busy_timeout" yaml:"busy_timeout"`
	WriteTimeout Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// APIConfig defines the HTTP query endpoint.
// Params: listen address, history limits, pprof toggle.
// Returns: API settings.
type APIConfig struct {
	Listen          string `toml:"listen" yaml:"listen"`
	HistoryLimit    int    `toml:"history_limit" yaml:"history_limit"`
	MaxHistoryLimit int    `toml:"max_history_limit" yaml:"max_history_limit"`
	Pprof           bool   `toml:"pprof" yaml:"pprof"`
}

// GRPCConfig defines the optional gRPC health endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: gRPC settings.
type GRPCConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" yaml:"listen"`
}

// Load reads config from file or directory, applies defaults, and validates it.
// Params: path to .toml/.yaml/.yml file or a directory of *.toml files.
// Returns: validated config or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode YAML %q: %w", path, err)
		}
	default:
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode TOML %q: %w", path, err)
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readConfigSource reads one file or concatenates *.toml files from a directory.
// Params: path file or directory.
// Returns: raw config bytes or error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates *.toml files in lexical order.
// Params: path config directory.
// Returns: merged TOML bytes or error.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills optional values.
// Params: receiver config pointer.
// Returns: error when hostname cannot be resolved.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	col := &c.Collector
	if col.Interval.Duration == 0 {
		col.Interval.Duration = defaultInterval
	}
	if col.RetentionDays == 0 {
		col.RetentionDays = defaultRetentionDays
	}
	if col.RotationCycles == 0 {
		col.RotationCycles = defaultRotationCycles
	}
	if col.HighTempThreshold == 0 {
		col.HighTempThreshold = defaultHighTempThreshold
	}
	if col.LowDiskThreshold == 0 {
		col.LowDiskThreshold = defaultLowDiskThreshold
	}
	if strings.TrimSpace(col.DiskPath) == "" {
		col.DiskPath = defaultDiskPath
	}
	if col.SampleTimeout.Duration == 0 {
		col.SampleTimeout.Duration = defaultSampleTimeout
	}
	if col.CPUWindow.Duration == 0 {
		col.CPUWindow.Duration = defaultCPUWindow
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.BusyTimeout.Duration == 0 {
		c.Store.BusyTimeout.Duration = defaultBusyTimeout
	}
	if c.Store.WriteTimeout.Duration == 0 {
		c.Store.WriteTimeout.Duration = defaultWriteTimeout
	}

	if strings.TrimSpace(c.API.Listen) == "" {
		c.API.Listen = defaultAPIListen
	}
	if c.API.HistoryLimit == 0 {
		c.API.HistoryLimit = defaultHistoryLimit
	}
	if c.API.MaxHistoryLimit == 0 {
		c.API.MaxHistoryLimit = defaultMaxHistoryLimit
	}

	if c.GRPC.Enabled && strings.TrimSpace(c.GRPC.Listen) == "" {
		c.GRPC.Listen = defaultGRPCListen
	}

	return nil
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}
	if err := validateCollector("collector", c.Collector); err != nil {
		return err
	}

	if err := validatePositiveDurationField("store.busy_timeout", c.Store.BusyTimeout.Duration); err != nil {
		return err
	}
	if err := validatePositiveDurationField("store.write_timeout", c.Store.WriteTimeout.Duration); err != nil {
		return err
	}

	if err := validateListen("api.listen", c.API.Listen); err != nil {
		return err
	}
	if c.API.HistoryLimit < 0 {
		return fmt.Errorf("api.history_limit must be > 0")
	}
	if c.API.MaxHistoryLimit < 0 {
		return fmt.Errorf("api.max_history_limit must be > 0")
	}
	if c.API.HistoryLimit > c.API.MaxHistoryLimit {
		return fmt.Errorf("api.history_limit must be <= api.max_history_limit")
	}

	if c.GRPC.Enabled {
		if err := validateListen("grpc.listen", c.GRPC.Listen); err != nil {
			return err
		}
	}

	return nil
}

// validateCollector validates cadence, retention and threshold settings.
// Params: path config path prefix; cfg collector section.
// Returns: validation error or nil.
func validateCollector(path string, cfg CollectorConfig) error {
	if err := validatePositiveDurationField(path+".interval", cfg.Interval.Duration); err != nil {
		return err
	}
	if cfg.RetentionDays <= 0 {
		return fmt.Errorf("%s.retention_days must be > 0", path)
	}
	if cfg.RotationCycles <= 0 {
		return fmt.Errorf("%s.rotation_cycles must be > 0", path)
	}
	if cfg.RotateEvery.Duration < 0 {
		return fmt.Errorf("%s.rotate_every must be >= 0", path)
	}
	if err := validateThreshold(path+".high_temp_threshold", cfg.HighTempThreshold, maxTemperatureThreshold); err != nil {
		return err
	}
	if err := validateThreshold(path+".low_disk_threshold", cfg.LowDiskThreshold, 100); err != nil {
		return err
	}
	if err := validatePositiveDurationField(path+".sample_timeout", cfg.SampleTimeout.Duration); err != nil {
		return err
	}
	if err := validatePositiveDurationField(path+".cpu_window", cfg.CPUWindow.Duration); err != nil {
		return err
	}
	if cfg.CPUWindow.Duration >= cfg.SampleTimeout.Duration {
		return fmt.Errorf("%s.cpu_window must be < %s.sample_timeout", path, path)
	}
	return nil
}

// validateThreshold checks that a percent/temperature limit is in (0, ceiling].
// Params: fieldPath config path; value configured limit; ceiling inclusive max.
// Returns: validation error or nil.
func validateThreshold(fieldPath string, value, ceiling float64) error {
	if math.IsNaN(value) || value <= 0 || value > ceiling {
		return fmt.Errorf("%s must be in (0, %g]", fieldPath, ceiling)
	}
	return nil
}

// validatePositiveDurationField validates one duration field.
// Params: fieldPath config path; value parsed duration.
// Returns: validation error when value <= 0.
func validatePositiveDurationField(fieldPath string, value time.Duration) error {
	if value <= 0 {
		return fmt.Errorf("%s must be > 0", fieldPath)
	}
	return nil
}

// validateListen validates a host:port endpoint.
// Params: fieldPath config path; listen endpoint.
// Returns: validation error for empty or malformed address.
func validateListen(fieldPath, listen string) error {
	if strings.TrimSpace(listen) == "" {
		return fmt.Errorf("%s cannot be empty", fieldPath)
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s must be host:port: %w", fieldPath, err)
	}
	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
