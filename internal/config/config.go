package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Providers  []ProviderConfig `toml:"providers"`
	Judge      JudgeConfig      `toml:"judge"`
	Evaluators EvaluatorsConfig `toml:"evaluators"`
	Web        WebConfig        `toml:"web"`
	Batch      BatchConfig      `toml:"batch"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	WorkspaceDir    string `toml:"workspace_dir"`
	DatabasePath    string `toml:"database_path"`
	GoalsDir        string `toml:"goals_dir"`
	MaxRetries      int    `toml:"max_retries"`
	ProviderTimeout string `toml:"provider_timeout"`
	JudgeTimeout    string `toml:"judge_timeout"`
}

// ProviderConfig describes one configured provider
type ProviderConfig struct {
	Name        string   `toml:"name"`
	Family      string   `toml:"family"`
	Model       string   `toml:"model"`
	Temperature *float64 `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
}

// JudgeConfig holds the judge capability settings
type JudgeConfig struct {
	Family string `toml:"family"`
	Model  string `toml:"model"`
}

// EvaluatorsConfig maps phases to evaluator commands. Empty argv keeps the
// built-in defaults.
type EvaluatorsConfig struct {
	Lint      []string `toml:"lint"`
	TypeCheck []string `toml:"typecheck"`
	Tests     []string `toml:"tests"`
	Timeout   string   `toml:"timeout"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BatchConfig holds scheduled-launch settings
type BatchConfig struct {
	Schedule      string `toml:"schedule"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorkspaceDir:    filepath.Join(home, ".forge-orch", "workspaces"),
			DatabasePath:    filepath.Join(home, ".forge-orch", "forge.db"),
			GoalsDir:        filepath.Join(home, ".forge-orch", "goals"),
			MaxRetries:      3,
			ProviderTimeout: "10m",
			JudgeTimeout:    "2m",
		},
		Providers: []ProviderConfig{
			{Name: "claude", Family: "claude-code", Model: "claude-sonnet-4-20250514"},
		},
		Judge: JudgeConfig{
			Family: "claude-code",
			Model:  "claude-sonnet-4-20250514",
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Batch: BatchConfig{
			Schedule:      "0 2 * * *",
			MaxConcurrent: 1,
		},
	}
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".forge-orch", "config.toml")
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.WorkspaceDir = ExpandPath(cfg.General.WorkspaceDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.GoalsDir = ExpandPath(cfg.General.GoalsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if c.General.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	return nil
}

// ProviderNames returns configured provider names in order
func (c *Config) ProviderNames() []string {
	names := make([]string, len(c.Providers))
	for i, p := range c.Providers {
		names[i] = p.Name
	}
	return names
}

// ParseTimeout parses a duration string, returning fallback on empty or
// invalid input
func ParseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
