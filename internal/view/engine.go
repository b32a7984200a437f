// Package view implements the dynamic view engine: creating views from
// free-text criteria, live-checking new messages against every live view,
// and view lifecycle operations. It coordinates the analyze pipeline with
// the store and degrades to deterministic keyword analysis whenever the
// language-model provider is missing or misbehaving.
package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obliq-labs/viewscope/internal/analyze"
	"github.com/obliq-labs/viewscope/internal/llm"
	"github.com/obliq-labs/viewscope/internal/store"
)

const (
	// fallbackScoreThreshold is the minimum keyword-overlap score for a
	// message to join a view under fallback analysis.
	fallbackScoreThreshold = 0.3

	// liveAcceptScore is the minimum checker score for a live match.
	liveAcceptScore = 0.5

	// maxFallbackResults caps fallback analysis output.
	maxFallbackResults = 100

	// liveCheckConcurrency bounds the first wave of per-view live checks.
	liveCheckConcurrency = 3
)

// ErrEmptyCriteria is returned when view creation gets blank criteria.
var ErrEmptyCriteria = errors.New("criteria cannot be empty")

// Match reports a message newly added to a view by a live check.
type Match struct {
	ViewID      string             `json:"viewId"`
	ViewName    string             `json:"viewName"`
	Score       float64            `json:"score"`
	ViewMessage *store.ViewMessage `json:"viewMessage"`
}

// Engine is the view orchestrator.
type Engine struct {
	store       store.Store
	provider    llm.Provider
	interpreter *analyze.Interpreter
	scorer      *analyze.Scorer
	checker     *analyze.Checker
	logger      *zap.Logger
}

// NewEngine creates an Engine. provider may be nil, in which case every
// operation uses the deterministic keyword fallback; logger may be nil.
func NewEngine(s store.Store, provider llm.Provider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:       s,
		provider:    provider,
		interpreter: analyze.NewInterpreter(provider, logger),
		checker:     analyze.NewChecker(provider, logger),
		logger:      logger,
	}
	if provider != nil {
		e.scorer = analyze.NewScorer(provider, logger)
	}
	return e
}

// CreateView analyzes the whole corpus against the criteria and persists a
// new live view with its initial matches in one atomic batch. Capability
// trouble anywhere in the AI path degrades to keyword analysis; only store
// failures (or empty criteria) surface as errors.
func (e *Engine) CreateView(ctx context.Context, criteria string) (*store.View, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		return nil, ErrEmptyCriteria
	}

	corpus, err := e.store.MessagesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading message corpus: %w", err)
	}

	if len(corpus) == 0 {
		v := &store.View{
			ID:       uuid.NewString(),
			Name:     analyze.FallbackViewName(criteria),
			Criteria: criteria,
			Context:  fmt.Sprintf("No messages found to analyze for: %s", criteria),
			Keywords: analyze.ExtractKeywords(criteria),
			IsLive:   true,
		}
		if err := e.store.CreateViewWithMessages(ctx, v, nil); err != nil {
			return nil, fmt.Errorf("persisting view: %w", err)
		}
		return v, nil
	}

	interp, matches := e.analyzeCorpus(ctx, criteria, corpus)

	byID := make(map[string]store.MessageWithContext, len(corpus))
	for _, msg := range corpus {
		byID[msg.ID] = msg
	}

	v := &store.View{
		ID:       uuid.NewString(),
		Name:     interp.ViewName,
		Criteria: criteria,
		Context:  interp.Context,
		Keywords: interp.SearchTerms,
		Concepts: interp.Concepts,
		IsLive:   true,
	}

	members := make([]*store.ViewMessage, 0, len(matches))
	for _, m := range matches {
		msg, ok := byID[m.ID]
		if !ok {
			continue // model hallucinated an id
		}
		members = append(members, newViewMessage(v.ID, msg, m.Score))
	}

	if err := e.store.CreateViewWithMessages(ctx, v, members); err != nil {
		return nil, fmt.Errorf("persisting view: %w", err)
	}

	e.logger.Info("view created",
		zap.String("view_id", v.ID),
		zap.String("name", v.Name),
		zap.Int("matches", len(members)))
	return v, nil
}

// analyzeCorpus runs the AI path when a provider is configured and the pure
// keyword fallback otherwise, or when the AI path errors out.
func (e *Engine) analyzeCorpus(ctx context.Context, criteria string, corpus []store.MessageWithContext) (analyze.Interpretation, []analyze.IDScore) {
	if e.provider == nil {
		return e.fallbackAnalysis(criteria, corpus)
	}

	interp, err := e.interpreter.Interpret(ctx, criteria)
	if err != nil {
		e.logger.Warn("criteria interpretation failed, using keyword analysis", zap.Error(err))
		return e.fallbackAnalysis(criteria, corpus)
	}

	candidates := analyze.FilterCandidates(corpus, interp.SearchTerms, interp.Concepts)
	if len(candidates) == 0 {
		return interp, nil
	}

	return interp, e.scorer.Score(ctx, criteria, candidates)
}

// fallbackAnalysis scores every message by keyword overlap
// (matches / total keywords), keeps scores of at least 0.3, sorts descending
// (stable, so corpus order breaks ties), and caps at 100 results. Pure:
// identical corpus and criteria always produce identical output.
func (e *Engine) fallbackAnalysis(criteria string, corpus []store.MessageWithContext) (analyze.Interpretation, []analyze.IDScore) {
	keywords := analyze.ExtractKeywords(criteria)
	interp := analyze.Interpretation{
		ViewName:    analyze.FallbackViewName(criteria),
		SearchTerms: keywords,
		Context:     fmt.Sprintf("Messages containing keywords: %s", strings.Join(keywords, ", ")),
	}
	if len(keywords) == 0 {
		return interp, nil
	}

	var matches []analyze.IDScore
	for _, msg := range corpus {
		if msg.Content == "" {
			continue
		}
		content := strings.ToLower(msg.Content)
		matchCount := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				matchCount++
			}
		}
		if matchCount == 0 {
			continue
		}
		score := float64(matchCount) / float64(len(keywords))
		if score > 1 {
			score = 1
		}
		if score >= fallbackScoreThreshold {
			matches = append(matches, analyze.IDScore{ID: msg.ID, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxFallbackResults {
		matches = matches[:maxFallbackResults]
	}
	return interp, matches
}

// CheckMessage evaluates one just-created message against every live view
// and persists a membership record for each accepted match. Returns the
// newly added matches for the caller to notify on. Checks for distinct views
// run concurrently; persistence happens afterwards in stable view order.
func (e *Engine) CheckMessage(ctx context.Context, messageID string) ([]Match, error) {
	msg, err := e.store.GetMessageWithContext(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("resolving message %s: %w", messageID, err)
	}

	liveViews, err := e.store.ListLiveViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing live views: %w", err)
	}

	// Drop views that already contain this message before spending any
	// capability calls on them.
	pending := make([]*store.View, 0, len(liveViews))
	for _, v := range liveViews {
		member, err := e.store.IsMessageInView(ctx, v.ID, messageID)
		if err != nil {
			return nil, fmt.Errorf("checking membership for view %s: %w", v.ID, err)
		}
		if !member {
			pending = append(pending, v)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	results := make([]analyze.CheckResult, len(pending))
	analyze.RunWaves(len(pending), liveCheckConcurrency, func(i int) {
		results[i] = e.checker.Check(ctx, pending[i].Criteria, pending[i].Keywords, *msg)
	})

	var matches []Match
	for i, v := range pending {
		res := results[i]
		if !res.IsRelevant || res.Score < liveAcceptScore {
			continue
		}

		vm := newViewMessage(v.ID, *msg, res.Score)
		inserted, err := e.store.AddViewMessage(ctx, vm)
		if err != nil {
			return matches, fmt.Errorf("adding message to view %s: %w", v.ID, err)
		}
		if !inserted {
			continue // concurrent duplicate check beat us to it
		}

		e.logger.Info("live match",
			zap.String("view_id", v.ID),
			zap.String("message_id", messageID),
			zap.Float64("score", res.Score))
		matches = append(matches, Match{
			ViewID:      v.ID,
			ViewName:    v.Name,
			Score:       res.Score,
			ViewMessage: vm,
		})
	}
	return matches, nil
}

// GetView returns a view with its membership records.
func (e *Engine) GetView(ctx context.Context, id string) (*store.View, []*store.ViewMessage, error) {
	v, err := e.store.GetView(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	members, err := e.store.ViewMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading view messages: %w", err)
	}
	return v, members, nil
}

// ListViews returns all views with live message counts.
func (e *Engine) ListViews(ctx context.Context) ([]*store.View, error) {
	return e.store.ListViews(ctx)
}

// DeleteView removes a view and all of its membership records.
func (e *Engine) DeleteView(ctx context.Context, id string) error {
	return e.store.DeleteView(ctx, id)
}

// DeleteAllViews removes every view. Used by the demo reset.
func (e *Engine) DeleteAllViews(ctx context.Context) error {
	return e.store.DeleteAllViews(ctx)
}

// SetLive toggles whether new messages are checked against the view.
func (e *Engine) SetLive(ctx context.Context, id string, isLive bool) (*store.View, error) {
	return e.store.UpdateView(ctx, id, store.ViewUpdate{IsLive: &isLive})
}

// Rename changes a view's display name. Criteria never changes.
func (e *Engine) Rename(ctx context.Context, id, name string) (*store.View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("view name cannot be empty")
	}
	return e.store.UpdateView(ctx, id, store.ViewUpdate{Name: &name})
}

// CountMessages reports corpus size, for progress display before creation.
func (e *Engine) CountMessages(ctx context.Context) (int64, error) {
	return e.store.CountMessages(ctx)
}

// newViewMessage snapshots provenance at match time so views render without
// re-joining against possibly-changed chat state.
func newViewMessage(viewID string, msg store.MessageWithContext, score float64) *store.ViewMessage {
	vm := &store.ViewMessage{
		ID:                uuid.NewString(),
		ViewID:            viewID,
		OriginalMessageID: msg.ID,
		SourceChatID:      msg.ChatID,
		SourceContactName: msg.ContactName,
		IsFromGroup:       msg.IsGroup,
		RelevanceScore:    &score,
	}
	if msg.IsGroup {
		chatName := msg.ChatName
		vm.SourceChatName = &chatName
	}
	return vm
}
