package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/obliq-labs/viewscope/internal/llm"
	"github.com/obliq-labs/viewscope/internal/store"
)

const (
	// keywordOnlyScore is the fixed score when a bare keyword match is the
	// only available signal (no provider configured).
	keywordOnlyScore = 0.7

	// degradedCheckScore is the keyword-match score after a provider call or
	// parse failure.
	degradedCheckScore = 0.6
)

const checkPrompt = `Determine if this message is relevant to the topic: %q

Message:
- From: %s
- Chat: %s
- Content: %q

Keywords associated with this topic: %s

Respond with ONLY a JSON object:
{
  "isRelevant": true/false,
  "score": 0.0-1.0,
  "reason": "brief explanation"
}`

// CheckResult is the relevance judgment for one message against one view.
type CheckResult struct {
	IsRelevant bool    `json:"isRelevant"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason,omitempty"`
}

// Checker decides whether a single new message belongs in an existing view.
type Checker struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewChecker creates a Checker. provider may be nil; logger may be nil.
func NewChecker(provider llm.Provider, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{provider: provider, logger: logger}
}

// Check evaluates one message against a view's stored criteria and keywords.
// Fast path: no keyword appears in the content (and the keyword list is
// non-empty) means not relevant, score 0, no provider call. With no provider, a
// keyword match alone scores 0.7. Provider call or parse failures degrade to
// the keyword signal at 0.6. Check never returns an error; the live path must
// not block message delivery on capability trouble.
func (ch *Checker) Check(ctx context.Context, criteria string, keywords []string, msg store.MessageWithContext) CheckResult {
	content := strings.ToLower(msg.Content)
	keywordMatch := false
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			keywordMatch = true
			break
		}
	}

	if !keywordMatch && len(keywords) > 0 {
		return CheckResult{IsRelevant: false, Score: 0}
	}

	if ch.provider == nil {
		if keywordMatch {
			return CheckResult{IsRelevant: true, Score: keywordOnlyScore, Reason: "Keyword match"}
		}
		return CheckResult{IsRelevant: false, Score: 0}
	}

	prompt := fmt.Sprintf(checkPrompt, criteria, msg.ContactName, msg.ChatName, msg.Content, strings.Join(keywords, ", "))
	resp, err := ch.provider.Complete(ctx, prompt, llm.CompletionOpts{MaxTokens: 256})
	if err != nil {
		ch.logger.Warn("relevance check failed, using keyword signal",
			zap.String("message_id", msg.ID), zap.Error(err))
		return ch.degraded(keywordMatch)
	}

	var result CheckResult
	if !decodeObject(resp, &result) {
		ch.logger.Warn("unparseable relevance check response, using keyword signal",
			zap.String("message_id", msg.ID))
		return ch.degraded(keywordMatch)
	}
	return result
}

func (ch *Checker) degraded(keywordMatch bool) CheckResult {
	if keywordMatch {
		return CheckResult{IsRelevant: true, Score: degradedCheckScore}
	}
	return CheckResult{IsRelevant: false, Score: 0}
}
