package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Shutdown.Timeout.Duration() != DefaultShutdownTimeout {
		t.Errorf("Shutdown.Timeout = %s, want %s", cfg.Shutdown.Timeout.Duration(), DefaultShutdownTimeout)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %s, want %s", cfg.Database.Path, DefaultDatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, an explicit empty path disables the ledger", cfg.Database.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"selection", func(c *Config) { c.Selection = map[string][]string{"drone": {"flood"}} }, ""},
		{"unknown kind", func(c *Config) { c.Selection = map[string][]string{"relay": {"x"}} }, "Selection"},
		{"empty variant", func(c *Config) { c.Selection = map[string][]string{"drone": {""}} }, "Selection"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "Level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "Format"},
		{"metrics addr", func(c *Config) { c.Metrics.Addr = "not an address" }, "Addr"},
		{"metrics port only", func(c *Config) { c.Metrics.Addr = "127.0.0.1:9090" }, ""},
		{"publish addr", func(c *Config) { c.Events.PublishAddr = "tcp://127.0.0.1:40899" }, ""},
		{"api addr", func(c *Config) { c.API.Addr = "nope" }, "Addr"},
		{"zero timeout", func(c *Config) { c.Shutdown.Timeout = 0 }, "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Topology.Path = "/srv/net.toml"
	cfg.Shutdown.Timeout = Duration(1500 * time.Millisecond)
	cfg.Selection = map[string][]string{"drone": {"flood", "sink"}}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}

	if loaded.Topology.Path != "/srv/net.toml" {
		t.Errorf("Topology.Path = %s, want /srv/net.toml", loaded.Topology.Path)
	}
	if loaded.Shutdown.Timeout.Duration() != 1500*time.Millisecond {
		t.Errorf("Shutdown.Timeout = %s, want 1.5s", loaded.Shutdown.Timeout.Duration())
	}
	if got := loaded.Selection["drone"]; len(got) != 2 || got[1] != "sink" {
		t.Errorf("Selection[drone] = %v, want [flood sink]", got)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, _, err := LoadFromPath(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("LoadFromPath() should fail for a missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("shutdown:\n  timeout: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(bad); err == nil {
		t.Error("LoadFromPath() should reject an unparsable duration")
	}

	invalid := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("log:\n  format: xml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(invalid); err == nil {
		t.Error("LoadFromPath() should reject an unknown log format")
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
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	found := FindConfigPath("")
	if found != configPath {
		t.Errorf("FindConfigPath() = %s, want %s", found, configPath)
	}

	// explicit path that does not exist falls back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	if FindConfigPath("") == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	explicit := filepath.Join(tmpDir, "explicit.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if got := FindConfigPath(""); got != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", got, explicit)
	}
}

func TestFindConfigPathNextToTopology(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	cfg := DefaultConfig()
	if err := cfg.Save(filepath.Join(tmpDir, ConfigFileName)); err != nil {
		t.Fatal(err)
	}
	topo := filepath.Join(tmpDir, "nets", "line.yaml")
	beside := filepath.Join(tmpDir, "nets", ConfigFileName)

	// nothing next to the topology yet: the working directory wins
	if got := FindConfigPath(topo); got != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("FindConfigPath() = %s, want working directory config", got)
	}

	if err := cfg.Save(beside); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigPath(topo); got != beside {
		t.Errorf("FindConfigPath() = %s, want %s", got, beside)
	}
	if got := FindConfigPath(""); got == beside {
		t.Error("FindConfigPath() without a topology should not look next to it")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if got, want := DefaultConfigPath("/srv/nets/line.toml"), filepath.Join("/srv/nets", ConfigFileName); got != want {
		t.Errorf("DefaultConfigPath() = %s, want %s", got, want)
	}
	if got, want := DefaultConfigPath(""), filepath.Join(tmpDir, "xdg", ConfigDirName, "config.yaml"); got != want {
		t.Errorf("DefaultConfigPath() = %s, want %s", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if got := DefaultConfigPath(""); got != ConfigFileName {
		t.Errorf("DefaultConfigPath() = %s, want %s", got, ConfigFileName)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
