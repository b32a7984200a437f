// Package config resolves Viewscope configuration from, in order of
// precedence: CLI flags, environment variables, the YAML config file, and
// built-in defaults. Each resolved value remembers where it came from so
// diagnostics can say why a setting is what it is.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus the provenance of its value.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLILLM     string // provider/model, e.g. "anthropic/claude-sonnet-4-20250514"
}

// ResolvedConfig is the fully resolved configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath    ResolvedValue `json:"db_path"`
	LLM       ResolvedValue `json:"llm"` // provider/model; empty = no provider, keyword fallback
	LLMAPIKey ResolvedValue `json:"llm_api_key,omitempty"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"llm"`
}

// DefaultConfigPath is where the config file lives unless overridden.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".viewscope", "config.yaml")
}

// ResolveConfig resolves all settings. A missing config file is not an
// error; a malformed one is.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		if cfg.LLM.Provider != "" {
			llm := cfg.LLM.Provider
			if cfg.LLM.Model != "" {
				llm += "/" + cfg.LLM.Model
			}
			apply(&out.LLM, llm, SourceConfig, path)
		}
		apply(&out.LLMAPIKey, cfg.LLM.APIKey, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "VIEWSCOPE_DB_PATH")
	applyEnv(&out.LLM, "VIEWSCOPE_LLM")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "flag")
	apply(&out.LLM, opts.CLILLM, SourceCLI, "flag")

	if out.DBPath.Value == "" {
		out.DBPath = ResolvedValue{Value: "", Source: SourceDefault, From: "store default"}
	}

	return out, nil
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// apply overrides dst when value is non-empty; higher-precedence sources are
// applied later.
func apply(dst *ResolvedValue, value string, source ValueSource, from string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	*dst = ResolvedValue{Value: value, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, key string) {
	apply(dst, os.Getenv(key), SourceEnv, key)
}
