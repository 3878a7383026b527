package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostwatch/internal/config"
)

// TestLoad_ExpandsEnvAndAppliesDefaults verifies env expansion and defaulting.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/var/lib/hostwatch/metrics.db")

	path := writeConfig(t, `
[global]
host = ""

[store]
path = "${TEST_DB_PATH}"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Store.Path != "/var/lib/hostwatch/metrics.db" {
		t.Fatalf("unexpected store.path: %q", cfg.Store.Path)
	}
	if cfg.Global.Host == "" {
		t.Fatalf("expected host default")
	}
	if !cfg.Log.Console.Enabled {
		t.Fatalf("expected console logging to be enabled by default")
	}
	if got := cfg.Collector.Interval.Duration; got != 300*time.Second {
		t.Fatalf("unexpected default interval: %v", got)
	}
	if got := cfg.Collector.Retention(); got != 7*24*time.Hour {
		t.Fatalf("unexpected default retention: %v", got)
	}
	if got := cfg.Collector.RotationCycles; got != 288 {
		t.Fatalf("unexpected default rotation_cycles: %d", got)
	}
	if got := cfg.Collector.HighTempThreshold; got != 70 {
		t.Fatalf("unexpected default high_temp_threshold: %v", got)
	}
	if got := cfg.Collector.LowDiskThreshold; got != 85 {
		t.Fatalf("unexpected default low_disk_threshold: %v", got)
	}
	if got := cfg.Collector.DiskPath; got != "/" {
		t.Fatalf("unexpected default disk_path: %q", got)
	}
	if got := cfg.API.Listen; got != "127.0.0.1:5001" {
		t.Fatalf("unexpected default api.listen: %q", got)
	}
	if got := cfg.API.HistoryLimit; got != 50 {
		t.Fatalf("unexpected default api.history_limit: %d", got)
	}
	if got := cfg.Store.WriteTimeout.Duration; got != 10*time.Second {
		t.Fatalf("unexpected default store.write_timeout: %v", got)
	}
	if cfg.GRPC.Enabled || cfg.GRPC.Listen != "" {
		t.Fatalf("grpc must stay disabled by default: %+v", cfg.GRPC)
	}
}

// TestLoad_ParsesCollectorSection verifies explicit collector values.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ParsesCollectorSection(t *testing.T) {
	path := writeConfig(t, `
[collector]
interval = "60"
retention_days = 2
rotation_cycles = 1440
rotate_every = "24h"
high_temp_threshold = 80.5
low_disk_threshold = 90
disk_path = "/data"
thermal_path = "/sys/class/thermal/thermal_zone1/temp"
sample_timeout = "5s"
cpu_window = "500ms"

[grpc]
enabled = true
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	col := cfg.Collector
	if col.Interval.Duration != time.Minute {
		t.Fatalf("bare number interval must be seconds, got %v", col.Interval.Duration)
	}
	if col.Retention() != 48*time.Hour || col.RotationCycles != 1440 || col.RotateEvery.Duration != 24*time.Hour {
		t.Fatalf("unexpected rotation settings: %+v", col)
	}
	if col.HighTempThreshold != 80.5 || col.LowDiskThreshold != 90 || col.DiskPath != "/data" {
		t.Fatalf("unexpected thresholds: %+v", col)
	}
	if col.CPUWindow.Duration != 500*time.Millisecond || col.SampleTimeout.Duration != 5*time.Second {
		t.Fatalf("unexpected timings: %+v", col)
	}
	if cfg.GRPC.Listen != "127.0.0.1:5002" {
		t.Fatalf("unexpected default grpc.listen: %q", cfg.GRPC.Listen)
	}
}

// TestLoad_ParsesYAML verifies .yaml files are decoded with the same schema.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
global:
  host: edge-01
collector:
  interval: 2m
  low_disk_threshold: 75
store:
  path: /tmp/hw.db
  busy_timeout: 3s
api:
  listen: 0.0.0.0:8080
  history_limit: 20
log:
  console:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Global.Host != "edge-01" {
		t.Fatalf("unexpected host: %q", cfg.Global.Host)
	}
	if cfg.Collector.Interval.Duration != 2*time.Minute || cfg.Collector.LowDiskThreshold != 75 {
		t.Fatalf("unexpected collector: %+v", cfg.Collector)
	}
	if cfg.Store.Path != "/tmp/hw.db" || cfg.Store.BusyTimeout.Duration != 3*time.Second {
		t.Fatalf("unexpected store: %+v", cfg.Store)
	}
	if cfg.API.Listen != "0.0.0.0:8080" || cfg.API.HistoryLimit != 20 {
		t.Fatalf("unexpected api: %+v", cfg.API)
	}
	if cfg.Log.Console.Level != "debug" || cfg.Log.Console.Format != "json" {
		t.Fatalf("unexpected console log: %+v", cfg.Log.Console)
	}
}

// TestLoad_ConfigDirMergesTomlFiles verifies config directory loading and file-order merge.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirMergesTomlFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"00-global.toml": `
[global]
host = "node-a"
`,
		"10-collector.toml": `
[collector]
interval = "30s"
`,
		"20-api.toml": `
[api]
listen = "127.0.0.1:9001"
`,
	})

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load config dir: %v", err)
	}
	if cfg.Global.Host != "node-a" {
		t.Fatalf("unexpected host: %q", cfg.Global.Host)
	}
	if cfg.Collector.Interval.Duration != 30*time.Second {
		t.Fatalf("unexpected interval: %v", cfg.Collector.Interval.Duration)
	}
	if cfg.API.Listen != "127.0.0.1:9001" {
		t.Fatalf("unexpected api.listen: %q", cfg.API.Listen)
	}
}

// TestLoad_ConfigDirRejectsWithoutToml verifies empty config directory handling.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirRejectsWithoutToml(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"README.md": "not a config",
	})

	_, err := config.Load(dir)
	if err == nil || !strings.Contains(err.Error(), "no *.toml files") {
		t.Fatalf("expected no *.toml files error, got %v", err)
	}
}

// TestLoad_RejectsInvalidValues verifies validation messages for bad settings.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "negative interval",
			body: "[collector]\ninterval = \"-5s\"\n",
			want: "collector.interval must be > 0",
		},
		{
			name: "negative retention",
			body: "[collector]\nretention_days = -1\n",
			want: "collector.retention_days must be > 0",
		},
		{
			name: "disk threshold above 100",
			body: "[collector]\nlow_disk_threshold = 101\n",
			want: "collector.low_disk_threshold must be in (0, 100]",
		},
		{
			name: "temperature threshold above ceiling",
			body: "[collector]\nhigh_temp_threshold = 200\n",
			want: "collector.high_temp_threshold must be in (0, 125]",
		},
		{
			name: "cpu window not below sample timeout",
			body: "[collector]\ncpu_window = \"10s\"\nsample_timeout = \"10s\"\n",
			want: "collector.cpu_window must be < collector.sample_timeout",
		},
		{
			name: "history limit above max",
			body: "[api]\nhistory_limit = 500\nmax_history_limit = 100\n",
			want: "api.history_limit must be <= api.max_history_limit",
		},
		{
			name: "bad api listen",
			body: "[api]\nlisten = \"localhost\"\n",
			want: "api.listen must be host:port",
		},
		{
			name: "bad grpc listen",
			body: "[grpc]\nenabled = true\nlisten = \"nope\"\n",
			want: "grpc.listen must be host:port",
		},
		{
			name: "file sink without path",
			body: "[log.file]\nenabled = true\n",
			want: "log.file.path is required",
		},
		{
			name: "unknown log level",
			body: "[log.console]\nlevel = \"trace\"\n",
			want: "log.console.level",
		},
		{
			name: "bad duration",
			body: "[store]\nwrite_timeout = \"soon\"\n",
			want: "decode TOML",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

// TestLoad_MissingFile verifies stat errors are reported.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "stat config") {
		t.Fatalf("expected stat error, got %v", err)
	}
}

// writeConfig writes a temporary TOML config file.
// Params: t test handle; body TOML content.
// Returns: absolute file path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return path
}

// writeConfigDir creates a temp config directory populated with provided files.
// Params: t test handle; files map[name]body.
// Returns: absolute directory path.
func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config file %q: %v", name, err)
		}
	}

	return dir
}
