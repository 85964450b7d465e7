package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meshscope/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Server.Addr != ":1337" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
	if cfg.Coordinator.Address != "2222::3" {
		t.Errorf("Coordinator.Address = %s", cfg.Coordinator.Address)
	}
	if cfg.Coordinator.MDNS.Enabled {
		t.Error("mDNS should be disabled when an address is set")
	}
	if cfg.Transport.Port != 5683 || cfg.Transport.Path != "/devscan" {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	if cfg.Transport.AckTimeout.Duration() != time.Second || cfg.Transport.MaxRetransmit != 3 {
		t.Errorf("Transport timing = %+v", cfg.Transport)
	}
	if cfg.Scan.MaxInFlight != 0 {
		t.Errorf("Scan.MaxInFlight = %d, want unbounded", cfg.Scan.MaxInFlight)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	data := `
server:
  addr: ":8080"
coordinator:
  address: ""
  mdns:
    enabled: true
    instance: border-router
transport:
  ack_timeout: 2s
  max_retransmit: 4
scan:
  max_in_flight: 16
  run_timeout: 90s
  interval: 5m
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  qos: 1
`
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
	if cfg.Coordinator.Address != "" || !cfg.Coordinator.MDNS.Enabled {
		t.Errorf("Coordinator = %+v, want mDNS lookup", cfg.Coordinator)
	}
	if cfg.Coordinator.MDNS.Service != "_coap._udp" || cfg.Coordinator.MDNS.Domain != "local." {
		t.Errorf("MDNS defaults not applied: %+v", cfg.Coordinator.MDNS)
	}
	if cfg.Coordinator.MDNS.Instance != "border-router" {
		t.Errorf("MDNS.Instance = %s", cfg.Coordinator.MDNS.Instance)
	}
	if cfg.Transport.AckTimeout.Duration() != 2*time.Second || cfg.Transport.MaxRetransmit != 4 {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	if cfg.Transport.Port != 5683 {
		t.Errorf("Transport.Port default not applied: %d", cfg.Transport.Port)
	}
	if cfg.Scan.MaxInFlight != 16 || cfg.Scan.RunTimeout.Duration() != 90*time.Second || cfg.Scan.Interval.Duration() != 5*time.Minute {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.QoS != 1 || cfg.MQTT.Topic != "meshscope/topology" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "server: [unclosed"},
		{"bad duration", "scan:\n  interval: soon\n"},
		{"bad coordinator", "coordinator:\n  address: \"2222::3::1\"\n"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n"},
		{"port out of range", "transport:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, err := LoadFromPath(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateCoordinatorError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coordinator.Address = "not-an-address"

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrMalformedAddress) {
		t.Fatalf("expected ErrMalformedAddress, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Coordinator.Address = "fd00::1"
	cfg.Scan.Interval = Duration(10 * time.Minute)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if loaded.Coordinator.Address != "fd00::1" {
		t.Errorf("Coordinator.Address = %s", loaded.Coordinator.Address)
	}
	if loaded.Scan.Interval.Duration() != 10*time.Minute {
		t.Errorf("Scan.Interval = %s", loaded.Scan.Interval.Duration())
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Chdir(tmpDir)

	// Should find config in working directory
	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	// Explicit path that exists wins
	explicit := filepath.Join(tmpDir, "explicit.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found = FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	t.Run("without env override", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		want := []string{
			ConfigFileName,
			filepath.Join(xdg, "meshscope", ConfigFileName),
			"/etc/meshscope/meshscope.yaml",
		}
		got := SearchPaths()
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("SearchPaths() = %v, want %v", got, want)
		}
	})

	t.Run("env override first", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/srv/mesh.yaml")
		got := SearchPaths()
		if len(got) != 4 || got[0] != "/srv/mesh.yaml" {
			t.Errorf("SearchPaths() = %v", got)
		}
	})

	if got := DefaultConfigPath(); got != filepath.Join(xdg, "meshscope", ConfigFileName) {
		t.Errorf("DefaultConfigPath() = %s", got)
	}
}

func TestFindConfigPathUserDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(EnvConfigPath, "")
	t.Chdir(t.TempDir())

	if found := FindConfigPath(); found != "" && found != "/etc/meshscope/meshscope.yaml" {
		t.Fatalf("FindConfigPath() = %s before any file exists", found)
	}

	path := filepath.Join(xdg, "meshscope", ConfigFileName)
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if found := FindConfigPath(); found != path {
		t.Errorf("FindConfigPath() = %s, want %s", found, path)
	}
}

func TestSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coordinator.Address = ""
	cfg.Coordinator.MDNS.Enabled = true

	summary := cfg.Summary()
	if !strings.Contains(summary, "mdns _coap._udp.local.") {
		t.Errorf("summary missing mDNS lookup:\n%s", summary)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	// Test YAML marshaling
	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
