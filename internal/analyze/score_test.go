package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/obliq-labs/viewscope/internal/llm"
	"github.com/obliq-labs/viewscope/internal/store"
)

// stubProvider answers Complete with a caller-supplied function and records
// how many calls it saw.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt string) (string, error)
}

func (p *stubProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(prompt)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestScoreBatchesAndMergesMaxScore(t *testing.T) {
	// 60 candidates means two batches of 50 and 10.
	var candidates []store.MessageWithContext
	for i := 0; i < 60; i++ {
		candidates = append(candidates, msg(fmt.Sprintf("m%02d", i), "house sale update", "Sarah", "Sarah"))
	}

	provider := &stubProvider{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "[m00]") {
			return `[{"id":"m05","score":0.9},{"id":"shared","score":0.5}]`, nil
		}
		return `[{"id":"shared","score":0.8},{"id":"m55","score":0.8}]`, nil
	}}

	got := NewScorer(provider, nil).Score(context.Background(), "house sale", candidates)

	if provider.callCount() != 2 {
		t.Fatalf("Expected 2 batch calls, got %d", provider.callCount())
	}
	want := []IDScore{
		{ID: "m05", Score: 0.9},
		{ID: "m55", Score: 0.8},
		{ID: "shared", Score: 0.8},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d merged scores, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

func TestScoreFailedBatchContributesNothing(t *testing.T) {
	var candidates []store.MessageWithContext
	for i := 0; i < 60; i++ {
		candidates = append(candidates, msg(fmt.Sprintf("m%02d", i), "content", "Sarah", "Sarah"))
	}

	provider := &stubProvider{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "[m00]") {
			return "", errors.New("rate limited")
		}
		return `[{"id":"m55","score":0.7}]`, nil
	}}

	got := NewScorer(provider, nil).Score(context.Background(), "anything", candidates)
	if len(got) != 1 || got[0].ID != "m55" {
		t.Fatalf("Expected only the surviving batch's score, got %v", got)
	}
}

func TestScoreAllBatchesFailing(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return "", errors.New("down")
	}}
	got := NewScorer(provider, nil).Score(context.Background(), "anything",
		[]store.MessageWithContext{msg("m1", "content", "Sarah", "Sarah")})
	if len(got) != 0 {
		t.Fatalf("Expected no scores when every batch fails, got %v", got)
	}
}

func TestScoreEmptyCandidates(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		t.Fatal("Expected no provider call for empty candidates")
		return "", nil
	}}
	if got := NewScorer(provider, nil).Score(context.Background(), "anything", nil); got != nil {
		t.Fatalf("Expected nil, got %v", got)
	}
}

func TestScoreTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", 1000)
	var sawLen int
	provider := &stubProvider{fn: func(prompt string) (string, error) {
		start := strings.Index(prompt, `"`+"x")
		end := strings.LastIndex(prompt, "x"+`"`)
		sawLen = end - start
		return "[]", nil
	}}

	NewScorer(provider, nil).Score(context.Background(), "anything",
		[]store.MessageWithContext{msg("m1", long, "Sarah", "Sarah")})
	if sawLen > maxContentLen+1 {
		t.Fatalf("Expected content truncated to %d chars, prompt carried %d", maxContentLen, sawLen)
	}
}
