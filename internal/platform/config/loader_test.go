package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected default store driver memory, got %s", cfg.Store.Driver)
	}
	if cfg.PeerEventMaxWaitSeconds != 300 {
		t.Errorf("expected default peer event max wait 300, got %d", cfg.PeerEventMaxWaitSeconds)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
listen_addr = ":9999"
peer_event_max_wait_seconds = 60

[store]
driver = "sqlite"
data_dir = "/tmp/conduit-data"

[event_bus]
driver = "valkey"

[event_bus.valkey]
addr = "valkey.internal:6379"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(LoaderOptions{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("expected listen :9999, got %s", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected store driver sqlite, got %s", cfg.Store.Driver)
	}
	if cfg.EventBus.Driver != "valkey" {
		t.Errorf("expected event bus driver valkey, got %s", cfg.EventBus.Driver)
	}
	if cfg.EventBus.Valkey.Addr != "valkey.internal:6379" {
		t.Errorf("expected valkey addr override, got %s", cfg.EventBus.Valkey.Addr)
	}
	if cfg.PeerEventMaxWaitSeconds != 60 {
		t.Errorf("expected peer event max wait 60, got %d", cfg.PeerEventMaxWaitSeconds)
	}
}

func TestLoad_Precedence_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	tomlContent := `
listen_addr = ":9000"

[store]
driver = "sqlite"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	listen := ":7000"
	storeDriver := "memory"
	cfg, err := Load(LoaderOptions{
		ConfigPath: configPath,
		FlagOverrides: FlagOverrides{
			ListenAddr:  &listen,
			StoreDriver: &storeDriver,
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":7000" {
		t.Errorf("expected listen addr from flag :7000, got %s", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected store driver from flag memory, got %s", cfg.Store.Driver)
	}
}

func TestLoad_MissingConfigFile_FailsFast(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/path/config.toml"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidTOML_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("this is not valid toml [[["), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestLoad_InvalidStoreDriver_FailsFast(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte(`[store]
driver = "postgres"
`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(LoaderOptions{ConfigPath: configPath})
	if err == nil {
		t.Fatal("expected error for invalid store driver")
	}
}
