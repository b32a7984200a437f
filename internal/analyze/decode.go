package analyze

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Best-effort decoding of model output. Models wrap JSON in markdown fences,
// truncate long arrays mid-object, or drift from the requested shape entirely.
// Each strategy below is tried in order; none of them panics or returns an
// error to the caller. The worst case is an empty result.

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)

	idScorePairRe = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"[^}]*"score"\s*:\s*([\d.]+)`)
	idOnlyRe      = regexp.MustCompile(`"id"\s*:\s*"([^"]+)"`)
)

// stripCodeFence removes a markdown code fence (``` or ```json) wrapping the
// response, returning the inner text. Input without a fence passes through.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	var inner []string
	inBlock := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			inner = append(inner, line)
		}
	}
	if len(inner) == 0 {
		return s
	}
	return strings.Join(inner, "\n")
}

// decodeObject finds the outermost JSON object in s and unmarshals it into v.
// Returns false when no parseable object is present.
func decodeObject(s string, v any) bool {
	s = stripCodeFence(s)
	match := jsonObjectRe.FindString(s)
	if match == "" {
		return false
	}
	return json.Unmarshal([]byte(match), v) == nil
}

// IDScore is one scored message reference as returned by the model.
type IDScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// decodeIDScores parses a model response expected to be a JSON array of
// {id, score} objects. Strategies, in order:
//  1. strip code fences and parse the first complete array
//  2. repair a truncated array by cutting at the last complete object
//  3. regex-extract id/score pairs (score defaults to 0.6 when absent)
func decodeIDScores(s string) []IDScore {
	s = stripCodeFence(s)

	raw := jsonArrayRe.FindString(s)
	if raw == "" {
		// Truncated output: opens an array but never closes it.
		if repaired, ok := repairTruncatedArray(s); ok {
			raw = repaired
		}
	}

	if raw != "" {
		var scores []IDScore
		if err := json.Unmarshal([]byte(raw), &scores); err == nil {
			return scores
		}
	}

	return extractIDScores(s)
}

// repairTruncatedArray turns "[{...},{...},{..." into "[{...},{...}]" by
// cutting at the last complete object. Returns false when s never opens an
// array or contains no complete object.
func repairTruncatedArray(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return "", false
	}
	last := strings.LastIndex(trimmed, "}")
	if last <= 0 {
		return "", false
	}
	return trimmed[:last+1] + "]", true
}

// extractIDScores pulls id/score values straight out of malformed text.
// Pairs with an explicit score keep it; bare ids default to 0.6.
func extractIDScores(s string) []IDScore {
	pairs := idScorePairRe.FindAllStringSubmatch(s, -1)
	if len(pairs) > 0 {
		scores := make([]IDScore, 0, len(pairs))
		for _, m := range pairs {
			score, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				score = defaultExtractedScore
			}
			scores = append(scores, IDScore{ID: m[1], Score: score})
		}
		return scores
	}

	ids := idOnlyRe.FindAllStringSubmatch(s, -1)
	scores := make([]IDScore, 0, len(ids))
	for _, m := range ids {
		scores = append(scores, IDScore{ID: m[1], Score: defaultExtractedScore})
	}
	return scores
}
