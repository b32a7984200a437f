package analyze

import (
	"fmt"
	"testing"

	"github.com/obliq-labs/viewscope/internal/store"
)

func msg(id, content, contact, chat string) store.MessageWithContext {
	return store.MessageWithContext{
		Message:     store.Message{ID: id, ChatID: chat, Content: content},
		ContactName: contact,
		ChatName:    chat,
	}
}

func TestFilterCandidatesSubstringPass(t *testing.T) {
	messages := []store.MessageWithContext{
		msg("m1", "The buyers made an offer on the house", "Sarah", "Sarah"),
		msg("m2", "Hiking this weekend?", "Mike", "Mike"),
		msg("m3", "Closing the SALE next month", "Sarah", "Sarah"),
		msg("m4", "", "Emma", "Emma"),
		msg("m5", "Dentist on Thursday", "Emma", "Emma"),
		msg("m6", "Moving company quotes", "Me", "Family Planning"),
		msg("m7", "See you at lunch", "Mike", "Mike"),
		msg("m8", "Inspection report attached", "Sarah", "Sarah"),
	}

	got := FilterCandidates(messages, []string{"house", "sale"}, []string{"inspection"})

	wantIDs := []string{"m1", "m3", "m8"}
	assertIDs(t, got, wantIDs)
}

func TestFilterCandidatesMatchesChatAndContactNames(t *testing.T) {
	messages := []store.MessageWithContext{
		msg("m1", "see attached", "Sarah Mitchell", "Sarah Mitchell"),
		msg("m2", "running late", "Mike", "Family Planning"),
		msg("m3", "ok", "Emma", "Emma"),
		msg("m4", "sounds good", "Emma", "Emma"),
		msg("m5", "noted", "Emma", "Emma"),
		msg("m6", "will do", "Emma", "Emma"),
		msg("m7", "thanks", "Emma", "Emma"),
	}

	got := FilterCandidates(messages, []string{"sarah", "family"}, nil)
	assertIDs(t, got, []string{"m1", "m2"})
}

func TestFilterCandidatesFuzzySecondPass(t *testing.T) {
	// Below five substring hits, prefix overlap fills the pool.
	messages := []store.MessageWithContext{
		msg("m1", "the house is listed", "Sarah", "Sarah"),
		msg("m2", "housing market is wild", "Mike", "Mike"),
		msg("m3", "totally unrelated topic", "Emma", "Emma"),
	}

	got := FilterCandidates(messages, []string{"house"}, nil)

	// m1 via substring, m2 via shared "hou" prefix, m3 excluded.
	assertIDs(t, got, []string{"m1", "m2"})
}

func TestFilterCandidatesFuzzyCap(t *testing.T) {
	var messages []store.MessageWithContext
	for i := 0; i < 40; i++ {
		messages = append(messages, msg(fmt.Sprintf("m%02d", i), "housing update", "Sarah", "Sarah"))
	}

	// "houses" never appears as a substring, so every hit comes from pass 2.
	got := FilterCandidates(messages, []string{"houses"}, nil)
	if len(got) != maxFuzzyMatches {
		t.Fatalf("Expected fuzzy pass capped at %d, got %d", maxFuzzyMatches, len(got))
	}
}

func TestFilterCandidatesSkipsEmptyContent(t *testing.T) {
	messages := []store.MessageWithContext{
		msg("m1", "", "Sarah", "Sarah"),
	}
	if got := FilterCandidates(messages, []string{"sarah"}, nil); len(got) != 0 {
		t.Fatalf("Expected no candidates for empty content, got %d", len(got))
	}
}

func assertIDs(t *testing.T, got []store.MessageWithContext, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d candidates %v, got %d", len(want), want, len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("Expected candidate %d to be %s, got %s", i, id, got[i].ID)
		}
	}
}
