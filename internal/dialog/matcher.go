package dialog

import (
	"math"
	"regexp"
	"strings"
)

// DefaultThreshold is the score floor below which a literal-command match is
// rejected.
const DefaultThreshold = 0.5

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// MatchOptions control normalization before scoring.
type MatchOptions struct {
	CaseSensitive         bool
	IgnoreNonAlphanumeric bool
	// Threshold defaults to DefaultThreshold when zero or negative.
	Threshold float64
}

// Match is one candidate command that scored at or above the threshold.
type Match struct {
	Candidate string
	Score     float64
}

// FindAllMatches scores the utterance against every candidate command and
// returns the candidates whose score reached the threshold.
func FindAllMatches(utterance string, candidates []string, opts MatchOptions) []Match {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	normalized := normalize(utterance, opts)
	if normalized == "" {
		return nil
	}

	var matches []Match
	for _, candidate := range candidates {
		normalizedCandidate := normalize(candidate, opts)
		if normalizedCandidate == "" {
			continue
		}
		score := scoreCandidate(normalized, normalizedCandidate)
		if score >= threshold {
			matches = append(matches, Match{Candidate: candidate, Score: score})
		}
	}
	return matches
}

// BestScore returns the highest score across all candidates that reached
// the threshold, or false when nothing matched.
func BestScore(utterance string, candidates []string, opts MatchOptions) (float64, bool) {
	matches := FindAllMatches(utterance, candidates, opts)
	if len(matches) == 0 {
		return 0, false
	}
	best := matches[0].Score
	for _, match := range matches[1:] {
		if match.Score > best {
			best = match.Score
		}
	}
	return best, true
}

// scoreCandidate implements the historical scoring rules, quirks included:
// a containment score is not clamped at 1.0, and in the token branch a later
// matching token overwrites an earlier one rather than taking the maximum.
func scoreCandidate(utterance, candidate string) float64 {
	if strings.Contains(candidate, utterance) {
		return float64(len(utterance)) / float64(len(candidate))
	}
	if strings.Contains(utterance, candidate) {
		return math.Min(0.5+float64(len(candidate))/float64(len(utterance)), 0.9)
	}
	score := 0.0
	for _, token := range strings.Split(utterance, " ") {
		if token == "" {
			continue
		}
		if strings.Contains(candidate, token) {
			score = float64(len(token)) / float64(len(candidate))
		}
	}
	return score
}

func normalize(value string, opts MatchOptions) string {
	normalized := strings.TrimSpace(value)
	if opts.IgnoreNonAlphanumeric {
		normalized = strings.TrimSpace(nonAlphanumeric.ReplaceAllString(normalized, ""))
	}
	if !opts.CaseSensitive {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}
