package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SyncInterval != 60*time.Second {
		t.Errorf("Expected 60s sync interval, got %v", cfg.SyncInterval)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("Expected batch size 10, got %d", cfg.BatchSize)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.RetryBaseDelay != time.Second {
		t.Errorf("Expected 1s retry base delay, got %v", cfg.RetryBaseDelay)
	}
	if cfg.VaultDir == "" {
		t.Error("Expected vault dir to default under home")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
remote_url: https://notes.example.com
token: secret-token
owner_id: u-42
batch_size: 5
sync_interval: 2m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RemoteURL != "https://notes.example.com" {
		t.Errorf("Unexpected remote url: %s", cfg.RemoteURL)
	}
	if cfg.Token != "secret-token" {
		t.Errorf("Unexpected token: %s", cfg.Token)
	}
	if cfg.OwnerID != "u-42" {
		t.Errorf("Unexpected owner id: %s", cfg.OwnerID)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("Expected batch size override 5, got %d", cfg.BatchSize)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("Expected 2m sync interval, got %v", cfg.SyncInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHYNOTE_OWNER_ID", "env-owner")
	t.Setenv("SHYNOTE_REMOTE_URL", "https://env.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OwnerID != "env-owner" {
		t.Errorf("Expected env owner id, got %s", cfg.OwnerID)
	}
	if cfg.RemoteURL != "https://env.example.com" {
		t.Errorf("Expected env remote url, got %s", cfg.RemoteURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{OwnerID: "u-1"}

	if err := cfg.Validate(false); err != nil {
		t.Errorf("Local-only validation should pass: %v", err)
	}
	if err := cfg.Validate(true); err == nil {
		t.Error("Expected error for missing remote url")
	}

	cfg.RemoteURL = "https://notes.example.com"
	cfg.Token = "tok"
	if err := cfg.Validate(true); err != nil {
		t.Errorf("Remote validation should pass: %v", err)
	}

	cfg.OwnerID = ""
	if err := cfg.Validate(false); err == nil {
		t.Error("Expected error for missing owner id")
	}
}

func TestVaultPath(t *testing.T) {
	cfg := &Config{VaultDir: "/data/shynote"}
	if got := cfg.VaultPath(); got != filepath.Join("/data/shynote", "vault.db") {
		t.Errorf("Unexpected vault path: %s", got)
	}
}
