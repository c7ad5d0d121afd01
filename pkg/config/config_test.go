package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: DEBUG

session:
  begin_string: FIX.4.4
  sender_comp_id: BANZAI
  target_comp_id: EXEC
  connection_type: initiator
  heart_bt_int: 45s

store:
  message_store_type: memory
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected logging.level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default logging.format text, got %q", cfg.Logging.Format)
	}
	if cfg.Session.HeartBtInt != 45*time.Second {
		t.Errorf("expected heart_bt_int 45s, got %v", cfg.Session.HeartBtInt)
	}
	if cfg.Session.LogonTimeout != 30*time.Second {
		t.Errorf("expected default logon_timeout 30s, got %v", cfg.Session.LogonTimeout)
	}
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.BeginString != "FIX.4.4" {
		t.Errorf("expected default begin_string FIX.4.4, got %q", cfg.Session.BeginString)
	}
}

func TestLoad_InvalidFileFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: DEBUG

session:
  connection_type: invalid

store:
  message_store_type: memory
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected Load to fail validation for missing required session fields")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out", "config.yaml")

	cfg := validConfig()
	cfg.Session.SenderCompID = "ROUNDTRIP"

	if err := SaveConfig(&cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after SaveConfig failed: %v", err)
	}
	if loaded.Session.SenderCompID != "ROUNDTRIP" {
		t.Errorf("expected sender_comp_id ROUNDTRIP after round trip, got %q", loaded.Session.SenderCompID)
	}
}
