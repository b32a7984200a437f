package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/obliq-labs/viewscope/internal/llm"
)

const interpretPrompt = `You are a semantic search assistant. The user wants to find messages related to: %q

Think about the FULL MEANING and CONTEXT of what the user is looking for. Consider:
- The main topic/theme (e.g., "house sale" means real estate transaction, property, buying/selling a home)
- Related concepts and synonyms
- Terms that might appear in conversations about this topic
- People who might be involved (realtors, buyers, family discussing it)

Generate a comprehensive list of search terms that would help find relevant messages.

Respond with ONLY a JSON object:
{
  "viewName": "Short 2-4 word name for this collection",
  "searchTerms": ["term1", "term2", "term3"],
  "concepts": ["broader concept 1", "broader concept 2"],
  "context": "Brief description of what we're looking for"
}`

// Interpretation is the understood form of a view's criteria: a display name,
// expanded search vocabulary, broader concepts, and a one-line summary.
type Interpretation struct {
	ViewName    string   `json:"viewName"`
	SearchTerms []string `json:"searchTerms"`
	Concepts    []string `json:"concepts"`
	Context     string   `json:"context"`
}

// Interpreter turns free-text criteria into an Interpretation, using the
// provider when available and the keyword extractor otherwise.
type Interpreter struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewInterpreter creates an Interpreter. provider may be nil; logger may be nil.
func NewInterpreter(provider llm.Provider, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{provider: provider, logger: logger}
}

// FallbackInterpretation builds an Interpretation without model help. Pure.
func FallbackInterpretation(criteria string) Interpretation {
	return Interpretation{
		ViewName:    FallbackViewName(criteria),
		SearchTerms: ExtractKeywords(criteria),
		Concepts:    nil,
		Context:     fmt.Sprintf("Messages related to: %s", criteria),
	}
}

// Interpret asks the provider to understand the criteria. A provider call
// failure is returned as an error so the caller can drop to pure keyword
// analysis; an unparseable response only degrades to the keyword fallback.
func (in *Interpreter) Interpret(ctx context.Context, criteria string) (Interpretation, error) {
	fallback := FallbackInterpretation(criteria)
	if in.provider == nil {
		return fallback, nil
	}

	resp, err := in.provider.Complete(ctx, fmt.Sprintf(interpretPrompt, criteria), llm.CompletionOpts{
		MaxTokens: 512,
	})
	if err != nil {
		return Interpretation{}, fmt.Errorf("interpreting criteria: %w", err)
	}

	var parsed Interpretation
	if !decodeObject(resp, &parsed) {
		in.logger.Warn("unparseable interpretation response, using keyword fallback",
			zap.String("criteria", criteria))
		return fallback, nil
	}

	// Backfill anything the model left out.
	if strings.TrimSpace(parsed.ViewName) == "" {
		parsed.ViewName = fallback.ViewName
	}
	if len(parsed.SearchTerms) == 0 {
		parsed.SearchTerms = fallback.SearchTerms
	}
	if strings.TrimSpace(parsed.Context) == "" {
		parsed.Context = fallback.Context
	}
	return parsed, nil
}
