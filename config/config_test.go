package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"home-setup/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Wizard.MaxFloorplanBytes != 10*1024*1024 {
		t.Errorf("max floorplan: got %d, want 10 MiB", cfg.Wizard.MaxFloorplanBytes)
	}
	if cfg.Backend.SetupPath != "/api/user/setup" {
		t.Errorf("setup path: got %q", cfg.Backend.SetupPath)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HOME_SETUP_BACKEND", "http://backend:9000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend:
  base_url: ${HOME_SETUP_BACKEND}
  hub_device_id: 4
wizard:
  max_floorplan_bytes: 5242880
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Backend.BaseURL != "http://backend:9000" {
		t.Errorf("base url: got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.HubDeviceID != 4 {
		t.Errorf("hub device: got %d, want 4", cfg.Backend.HubDeviceID)
	}
	if cfg.Wizard.MaxFloorplanBytes != 5*1024*1024 {
		t.Errorf("max floorplan: got %d", cfg.Wizard.MaxFloorplanBytes)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %q", cfg.Log.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("backend: [unterminated"), 0644)

	if _, err := config.Load(path); err == nil {
		t.Error("expected parse error")
	}
}
