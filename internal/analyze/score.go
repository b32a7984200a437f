package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/obliq-labs/viewscope/internal/llm"
	"github.com/obliq-labs/viewscope/internal/store"
)

const (
	// scoreBatchSize is the number of candidate messages per scoring call.
	scoreBatchSize = 50

	// maxConcurrentBatches bounds the first scoring wave.
	maxConcurrentBatches = 3

	// maxContentLen truncates message content sent for scoring.
	maxContentLen = 300

	// defaultExtractedScore is assumed when regex extraction finds an id
	// without a usable score.
	defaultExtractedScore = 0.6
)

const scoreBatchPrompt = `Find messages semantically related to: %q

Messages (id, content, sender, chat):
%s

Score each RELEVANT message (0.3-1.0). Only include messages actually related to %q.

Respond with ONLY JSON array:
[{"id":"...", "score":0.95}]`

// Scorer assigns relevance scores to candidate messages in concurrent batches.
type Scorer struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewScorer creates a Scorer. The provider must be non-nil: callers without a
// provider use the keyword-overlap fallback and never construct a Scorer.
func NewScorer(provider llm.Provider, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{provider: provider, logger: logger}
}

// Score partitions candidates into batches of fifty, scores up to three
// batches concurrently (remainder in a second wave), deduplicates by message
// id keeping the maximum score, and returns the result sorted by score
// descending with an id tiebreak so identical inputs always produce identical
// ordering. A batch that fails or yields nothing parseable contributes zero
// matches; Score itself never fails.
func (sc *Scorer) Score(ctx context.Context, criteria string, candidates []store.MessageWithContext) []IDScore {
	if len(candidates) == 0 {
		return nil
	}

	var batches [][]store.MessageWithContext
	for start := 0; start < len(candidates); start += scoreBatchSize {
		end := start + scoreBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	results := make([][]IDScore, len(batches))
	RunWaves(len(batches), maxConcurrentBatches, func(i int) {
		results[i] = sc.scoreBatch(ctx, criteria, batches[i])
	})

	best := make(map[string]float64)
	for _, batch := range results {
		for _, s := range batch {
			if existing, ok := best[s.ID]; !ok || s.Score > existing {
				best[s.ID] = s.Score
			}
		}
	}

	merged := make([]IDScore, 0, len(best))
	for id, score := range best {
		merged = append(merged, IDScore{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// scoreBatch sends one batch for scoring and decodes the response
// best-effort. Any failure degrades to an empty contribution.
func (sc *Scorer) scoreBatch(ctx context.Context, criteria string, batch []store.MessageWithContext) []IDScore {
	var b strings.Builder
	for _, msg := range batch {
		content := msg.Content
		if len(content) > maxContentLen {
			content = content[:maxContentLen]
		}
		fmt.Fprintf(&b, "[%s] %q - %s in %s\n", msg.ID, content, msg.ContactName, msg.ChatName)
	}

	prompt := fmt.Sprintf(scoreBatchPrompt, criteria, strings.TrimRight(b.String(), "\n"), criteria)

	resp, err := sc.provider.Complete(ctx, prompt, llm.CompletionOpts{MaxTokens: 4096})
	if err != nil {
		sc.logger.Warn("scoring batch failed, contributing zero matches",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return nil
	}

	scores := decodeIDScores(resp)
	if len(scores) == 0 {
		sc.logger.Warn("no parseable scores in batch response",
			zap.Int("batch_size", len(batch)))
	}
	return scores
}
