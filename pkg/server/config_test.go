package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/staffchat/pkg/directory"
)

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9000\"\nbackend: sqlite\nidle_timeout: 5m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadConfig(path, &cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Backend != "sqlite" || cfg.IdleTimeout != 5*time.Minute {
		t.Errorf("overlaid values not applied: %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if cfg.MetricsAddr != ":12346" || cfg.UsersFile != "users.db" {
		t.Errorf("defaults clobbered: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty addr", func(c *Config) { c.Addr = "" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, false},
		{"negative idle timeout", func(c *Config) { c.IdleTimeout = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate: expected error")
			}
		})
	}
}

func TestExportUsersYAMLOmitsHashes(t *testing.T) {
	dir, err := directory.New(directory.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	defer dir.Close()

	if err := dir.Register("alice", "secret123", "Alice Kovalenko", "Engineering", "Developer"); err != nil {
		t.Fatal(err)
	}
	if err := dir.Register("bob", "pass456", "", "Sales", ""); err != nil {
		t.Fatal(err)
	}

	data, err := ExportUsersYAML(dir)
	if err != nil {
		t.Fatalf("ExportUsersYAML: %v", err)
	}
	text := string(data)
	for _, leak := range []string{"secret123", "pass456", "argon2id"} {
		if strings.Contains(text, leak) {
			t.Errorf("export leaks credential material %q:\n%s", leak, text)
		}
	}

	var export UsersExport
	if err := yaml.Unmarshal(data, &export); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(export.Users) != 2 {
		t.Fatalf("exported %d users, want 2", len(export.Users))
	}
	if export.Users[0].Username != "alice" || export.Users[0].Department != "Engineering" {
		t.Errorf("first exported user: %+v", export.Users[0])
	}
}
