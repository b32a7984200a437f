package analyze

import (
	"context"
	"errors"
	"testing"
)

func TestCheckFastPathSkipsProvider(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		t.Fatal("Expected no provider call when no keyword matches")
		return "", nil
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		[]string{"house", "sale"}, msg("m1", "see you at lunch", "Mike", "Mike"))

	if res.IsRelevant || res.Score != 0 {
		t.Fatalf("Expected not relevant with score 0, got %+v", res)
	}
}

func TestCheckKeywordOnlyWithoutProvider(t *testing.T) {
	res := NewChecker(nil, nil).Check(context.Background(), "house sale",
		[]string{"house", "sale"}, msg("m1", "Offer on the HOUSE came in", "Sarah", "Sarah"))

	if !res.IsRelevant {
		t.Fatal("Expected keyword match to be relevant without a provider")
	}
	if res.Score != 0.7 {
		t.Fatalf("Expected score 0.7, got %v", res.Score)
	}
}

func TestCheckNoKeywordsNoProvider(t *testing.T) {
	res := NewChecker(nil, nil).Check(context.Background(), "anything",
		nil, msg("m1", "any content", "Sarah", "Sarah"))
	if res.IsRelevant || res.Score != 0 {
		t.Fatalf("Expected not relevant with empty keyword list and no provider, got %+v", res)
	}
}

func TestCheckProviderVerdictPassesThrough(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return `{"isRelevant": true, "score": 0.92, "reason": "discusses the closing"}`, nil
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		[]string{"house"}, msg("m1", "house closing is Friday", "Sarah", "Sarah"))

	if !res.IsRelevant || res.Score != 0.92 || res.Reason != "discusses the closing" {
		t.Fatalf("Expected provider verdict, got %+v", res)
	}
}

func TestCheckProviderRejectionPassesThrough(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return `{"isRelevant": false, "score": 0.1, "reason": "different house"}`, nil
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		[]string{"house"}, msg("m1", "house of cards episode", "Mike", "Mike"))

	if res.IsRelevant {
		t.Fatalf("Expected provider rejection to stand, got %+v", res)
	}
}

func TestCheckDegradesOnProviderError(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return "", errors.New("timeout")
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		[]string{"house"}, msg("m1", "the house inspection", "Sarah", "Sarah"))

	if !res.IsRelevant || res.Score != 0.6 {
		t.Fatalf("Expected degraded keyword score 0.6, got %+v", res)
	}
}

func TestCheckDegradesOnUnparseableResponse(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return "sure, that looks relevant to me!", nil
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		[]string{"house"}, msg("m1", "the house inspection", "Sarah", "Sarah"))

	if !res.IsRelevant || res.Score != 0.6 {
		t.Fatalf("Expected degraded keyword score 0.6, got %+v", res)
	}
}

func TestCheckEmptyKeywordsConsultsProvider(t *testing.T) {
	provider := &stubProvider{fn: func(string) (string, error) {
		return `{"isRelevant": true, "score": 0.8, "reason": "topical"}`, nil
	}}

	res := NewChecker(provider, nil).Check(context.Background(), "house sale",
		nil, msg("m1", "completely fresh phrasing", "Sarah", "Sarah"))

	if provider.callCount() != 1 {
		t.Fatalf("Expected provider consulted when keyword list is empty, calls=%d", provider.callCount())
	}
	if !res.IsRelevant || res.Score != 0.8 {
		t.Fatalf("Expected provider verdict, got %+v", res)
	}
}
