package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Web3.Mode != ModeSimulated {
		t.Fatalf("mode = %s, want simulated", cfg.Web3.Mode)
	}
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9090\nweb3:\n  mode: simulated\n  purchase_timeout: 45s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Web3.PurchaseTimeout != 45*time.Second {
		t.Fatalf("purchase timeout = %s, want 45s", cfg.Web3.PurchaseTimeout)
	}
}

func TestChainModeRequiresTokenContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("web3:\n  mode: chain\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected validation error for chain mode without token contract")
	}
}

func TestUnknownModeRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("web3:\n  mode: teleport\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected validation error for unknown mode")
	}
}
