package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig failed: %v", err)
	}
	if cfg.DBPath.Source != SourceDefault {
		t.Fatalf("Expected default db path source, got %s", cfg.DBPath.Source)
	}
	if cfg.LLM.Value != "" {
		t.Fatalf("Expected no LLM by default, got %q", cfg.LLM.Value)
	}
}

func TestResolveConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/test.db
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  api_key: sk-test
`)

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("ResolveConfig failed: %v", err)
	}
	if cfg.DBPath.Value != "/tmp/test.db" || cfg.DBPath.Source != SourceConfig {
		t.Fatalf("Unexpected db path: %+v", cfg.DBPath)
	}
	if cfg.LLM.Value != "anthropic/claude-sonnet-4-20250514" {
		t.Fatalf("Expected provider/model join, got %q", cfg.LLM.Value)
	}
	if cfg.LLMAPIKey.Value != "sk-test" {
		t.Fatalf("Expected api key from config, got %q", cfg.LLMAPIKey.Value)
	}
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
db_path: /from/config.db
llm:
  provider: openai
  model: gpt-4o-mini
`)
	t.Setenv("VIEWSCOPE_DB_PATH", "/from/env.db")
	t.Setenv("VIEWSCOPE_LLM", "anthropic/claude-sonnet-4-20250514")

	// Env beats config.
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("ResolveConfig failed: %v", err)
	}
	if cfg.DBPath.Value != "/from/env.db" || cfg.DBPath.Source != SourceEnv {
		t.Fatalf("Expected env to override config, got %+v", cfg.DBPath)
	}
	if cfg.LLM.Value != "anthropic/claude-sonnet-4-20250514" {
		t.Fatalf("Expected env LLM, got %q", cfg.LLM.Value)
	}

	// CLI beats env.
	cfg, err = ResolveConfig(ResolveOptions{
		ConfigPath: path,
		CLIDBPath:  "/from/cli.db",
		CLILLM:     "openai/gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("ResolveConfig failed: %v", err)
	}
	if cfg.DBPath.Value != "/from/cli.db" || cfg.DBPath.Source != SourceCLI {
		t.Fatalf("Expected CLI to win, got %+v", cfg.DBPath)
	}
	if cfg.LLM.Value != "openai/gpt-4o-mini" || cfg.LLM.Source != SourceCLI {
		t.Fatalf("Expected CLI LLM, got %+v", cfg.LLM)
	}
}

func TestResolveConfigMalformedFile(t *testing.T) {
	path := writeConfig(t, "db_path: [not: valid: yaml")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("Expected malformed config to error")
	}
}

func TestResolveConfigProviderWithoutModel(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: anthropic
`)
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("ResolveConfig failed: %v", err)
	}
	if cfg.LLM.Value != "anthropic" {
		t.Fatalf("Expected bare provider, got %q", cfg.LLM.Value)
	}
}
