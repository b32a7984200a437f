// Package analyze implements the criteria-understanding and relevance-scoring
// pipeline behind dynamic views: deterministic keyword extraction, LLM-backed
// criteria interpretation, cheap candidate pre-filtering, concurrent batch
// scoring, and single-message live checks. Every LLM-backed step degrades to a
// keyword heuristic, so the pipeline completes without a configured provider.
package analyze

import (
	"regexp"
	"strings"
)

const (
	// maxKeywords caps the deterministic keyword list per criteria.
	maxKeywords = 10

	// minKeywordLen drops short function words that survive the stop list.
	minKeywordLen = 2 // tokens must be strictly longer than this
)

// stopWords is the fixed list of English function words plus chat-domain
// filler ("messages", "related", ...) removed during keyword extraction.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"messages", "related", "to", "about", "regarding", "for", "with",
		"the", "a", "an", "my", "our", "your", "is", "are", "was", "were",
		"be", "been", "being", "have", "has", "had", "do", "does", "did",
		"will", "would", "could", "should", "may", "might", "must", "shall",
		"can", "need", "dare", "ought", "used", "all", "any", "both", "each",
		"few", "more", "most", "other", "some", "such", "no", "nor", "not",
		"only", "own", "same", "so", "than", "too", "very", "just", "but",
		"and", "or", "if", "then", "else", "when", "at", "by", "on", "in",
		"of", "from", "into", "during", "before", "after", "above", "below",
		"between", "under", "again", "further", "once",
	} {
		stopWords[w] = struct{}{}
	}
}

var (
	punctuationRe = regexp.MustCompile(`[^\w\s]`)
	fillerPhrase  = regexp.MustCompile(`(?i)messages?\s*(related\s*to|about|regarding|for|with)`)
)

// ExtractKeywords derives up to ten lowercase keywords from free-text
// criteria: punctuation stripped, stop words removed, tokens longer than two
// characters, insertion order preserved. Deterministic and never fails.
func ExtractKeywords(criteria string) []string {
	cleaned := punctuationRe.ReplaceAllString(strings.ToLower(criteria), " ")

	var keywords []string
	seen := map[string]struct{}{}
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= minKeywordLen {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// FallbackViewName names a view without model help: strip the leading filler
// phrase, take the first three words longer than two characters, title-case
// them. "Collection" when nothing meaningful remains.
func FallbackViewName(criteria string) string {
	stripped := strings.TrimSpace(fillerPhrase.ReplaceAllString(criteria, ""))

	var words []string
	for _, w := range strings.Fields(stripped) {
		if len(w) <= minKeywordLen {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return "Collection"
	}

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
