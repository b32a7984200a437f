package analyze

import (
	"strings"

	"github.com/obliq-labs/viewscope/internal/store"
)

const (
	// minCandidates is the pass-1 floor below which fuzzy matching kicks in.
	minCandidates = 5

	// maxFuzzyMatches caps how many prefix-overlap matches pass 2 may add.
	maxFuzzyMatches = 20

	// fuzzyPrefixLen is the shared-prefix length for pass-2 word matching.
	fuzzyPrefixLen = 3
)

// FilterCandidates narrows the corpus to messages worth scoring. Pass 1 keeps
// any message whose content, chat name, or contact name contains a search term
// as a substring, or whose content contains a concept. If that yields fewer
// than five candidates, pass 2 scans the remaining messages for prefix-style
// fuzzy overlap between message words and search terms, adding up to twenty.
func FilterCandidates(messages []store.MessageWithContext, searchTerms, concepts []string) []store.MessageWithContext {
	terms := lowerAll(searchTerms)
	conceptsLower := lowerAll(concepts)

	var candidates []store.MessageWithContext
	included := make(map[string]struct{}, len(messages))

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		content := strings.ToLower(msg.Content)
		chatName := strings.ToLower(msg.ChatName)
		contactName := strings.ToLower(msg.ContactName)

		matched := false
		for _, term := range terms {
			if strings.Contains(content, term) || strings.Contains(chatName, term) || strings.Contains(contactName, term) {
				matched = true
				break
			}
		}
		if !matched {
			for _, concept := range conceptsLower {
				if strings.Contains(content, concept) {
					matched = true
					break
				}
			}
		}
		if matched {
			candidates = append(candidates, msg)
			included[msg.ID] = struct{}{}
		}
	}

	if len(candidates) >= minCandidates {
		return candidates
	}

	// Pass 2: sparse vocabularies still deserve a non-trivial candidate pool.
	added := 0
	for _, msg := range messages {
		if added == maxFuzzyMatches {
			break
		}
		if msg.Content == "" {
			continue
		}
		if _, ok := included[msg.ID]; ok {
			continue
		}
		if fuzzyOverlap(strings.ToLower(msg.Content), terms) {
			candidates = append(candidates, msg)
			included[msg.ID] = struct{}{}
			added++
		}
	}

	return candidates
}

// fuzzyOverlap reports whether any word of content and any search term (both
// at least three characters) share a three-character prefix in either
// direction.
func fuzzyOverlap(content string, terms []string) bool {
	words := strings.Fields(content)
	for _, term := range terms {
		if len(term) < fuzzyPrefixLen {
			continue
		}
		for _, word := range words {
			if len(word) < fuzzyPrefixLen {
				continue
			}
			if strings.HasPrefix(word, term[:fuzzyPrefixLen]) || strings.HasPrefix(term, word[:fuzzyPrefixLen]) {
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
