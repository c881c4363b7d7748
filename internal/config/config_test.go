package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if len(cfg.Providers) == 0 {
		t.Fatal("default config has no providers")
	}
	if cfg.General.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.General.MaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Web.Port)
	}
}

func TestLoad_File(t *testing.T) {
	content := `
[general]
workspace_dir = "/tmp/ws"
max_retries = 5
provider_timeout = "30s"

[[providers]]
name = "claude-main"
family = "claude-code"
model = "claude-sonnet-4-20250514"

[[providers]]
name = "glm"
family = "opencode"
model = "zai-coding-plan/glm-4.7"
temperature = 0.2

[judge]
family = "claude-code"
model = "claude-opus-4-20250514"

[web]
port = 9090
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	if cfg.Providers[1].Name != "glm" || cfg.Providers[1].Family != "opencode" {
		t.Errorf("providers[1] = %+v", cfg.Providers[1])
	}
	if cfg.Providers[1].Temperature == nil || *cfg.Providers[1].Temperature != 0.2 {
		t.Errorf("Temperature = %v", cfg.Providers[1].Temperature)
	}
	if cfg.General.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.General.MaxRetries)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Web.Port)
	}
	if got := cfg.ProviderNames(); len(got) != 2 || got[0] != "claude-main" {
		t.Errorf("ProviderNames = %v", got)
	}
}

func TestLoad_DuplicateProviderNames(t *testing.T) {
	content := `
[[providers]]
name = "a"

[[providers]]
name = "a"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte(content), 0644)

	if _, err := Load(path); err == nil {
		t.Error("want error for duplicate provider names")
	}
}

func TestParseTimeout(t *testing.T) {
	if got := ParseTimeout("45s", time.Minute); got != 45*time.Second {
		t.Errorf("ParseTimeout = %v", got)
	}
	if got := ParseTimeout("", time.Minute); got != time.Minute {
		t.Errorf("empty fallback = %v", got)
	}
	if got := ParseTimeout("junk", time.Minute); got != time.Minute {
		t.Errorf("invalid fallback = %v", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath = %q", got)
	}
}
