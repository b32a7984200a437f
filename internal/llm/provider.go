// Package llm provides a provider-agnostic language-model adapter for Viewscope.
// The view engine treats the provider as optional: a nil Provider means every
// component runs its deterministic keyword fallback instead.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider is the interface for language-model completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "anthropic/claude-sonnet-4").
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // Max tokens to generate (0 = provider default)
	Temperature float64 // 0.0-2.0 (0 = deterministic)
	Model       string  // Override model for this request (empty = use provider default)
	System      string  // System prompt (optional)
}

// Config holds provider configuration.
type Config struct {
	Provider string // "anthropic", "openai"
	Model    string // e.g., "claude-sonnet-4-20250514", "gpt-4o-mini"
	APIKey   string // API key (empty = read from env)
	BaseURL  string // Optional URL override (OpenAI-compatible gateways)
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-sonnet-4-20250514"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com/v1"
		}
		return &anthropicProvider{
			apiKey:  key,
			model:   model,
			baseURL: baseURL,
		}, nil

	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY env var")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return newOpenAIProvider(key, model, cfg.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: anthropic, openai)", cfg.Provider)
	}
}

// ParseProviderFlag parses a --llm flag value into a Config.
// Format: "provider/model" e.g., "anthropic/claude-sonnet-4-20250514", "openai/gpt-4o-mini"
func ParseProviderFlag(flag string) (Config, error) {
	if flag == "" {
		return Config{Provider: "anthropic", Model: "claude-sonnet-4-20250514"}, nil
	}

	parts := strings.SplitN(flag, "/", 2)
	if len(parts) < 2 {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g., anthropic/claude-sonnet-4-20250514)", flag)
	}

	provider := strings.ToLower(parts[0])
	model := parts[1]

	switch provider {
	case "anthropic", "openai":
		return Config{Provider: provider, Model: model}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: anthropic, openai)", provider)
	}
}
