package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Radio.FrequencyHz != 433_000_000 {
		t.Errorf("Expected 433 MHz, got %d", cfg.Radio.FrequencyHz)
	}
	if cfg.Controller.PollInterval != time.Second {
		t.Errorf("Expected 1s poll interval, got %v", cfg.Controller.PollInterval)
	}
	if cfg.FatalPolicy != FatalExit {
		t.Errorf("Expected exit policy, got %s", cfg.FatalPolicy)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, "lorabridge.yaml", `
fatal_policy: halt
radio:
  transport: nats
  nats_url: nats://broker:4222
controller:
  poll_interval: 250ms
api:
  listen: ":8080"
`)
	t.Setenv("LORABRIDGE_CONTROLLER_POLL_INTERVAL", "2s")
	t.Setenv("LORABRIDGE_RADIO_ADDRESS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FatalPolicy != FatalHalt {
		t.Errorf("Expected halt from file, got %s", cfg.FatalPolicy)
	}
	if cfg.Radio.Transport != TransportNATS || cfg.Radio.NATSURL != "nats://broker:4222" {
		t.Errorf("Expected nats transport from file, got %s %s", cfg.Radio.Transport, cfg.Radio.NATSURL)
	}
	if cfg.Controller.PollInterval != 2*time.Second {
		t.Errorf("Expected env to override poll interval, got %v", cfg.Controller.PollInterval)
	}
	if cfg.Radio.Address != 7 {
		t.Errorf("Expected address 7 from env, got %d", cfg.Radio.Address)
	}
	// Untouched keys keep defaults.
	if cfg.Radio.FrequencyHz != 433_000_000 {
		t.Errorf("Expected default frequency, got %d", cfg.Radio.FrequencyHz)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "bogus: 1\n", "failed to load"},
		{"bad yaml", "radio: [\n", "failed to load"},
		{"bad transport", "radio:\n  transport: wifi\n", "unknown transport"},
		{"bad policy", "fatal_policy: reboot\n", "unknown fatal policy"},
		{"zero interval", "controller:\n  poll_interval: 0s\n", "poll interval"},
		{"frequency", "radio:\n  frequency_hz: 2400000000\n", "out of range"},
		{"jitter", "telemetry:\n  heartbeat_interval: 2s\n  heartbeat_jitter: 5s\n", "jitter"},
		{"jwt alg", "api:\n  listen: \":8080\"\n  jwt_algorithm: none\n", "JWT algorithm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("LORABRIDGE_RADIO_BAUD_RATE", "fast")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for non-numeric baud rate")
	}
}
