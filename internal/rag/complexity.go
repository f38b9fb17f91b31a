package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sparkforge/nigel/internal/doctrine"
)

// Tier selects the completion model strength for a query.
type Tier string

const (
	// TierFast routes to the cheap, low-latency model.
	TierFast Tier = "fast"

	// TierDeep routes to the stronger model for multi-framework or
	// causal questions.
	TierDeep Tier = "deep"
)

const (
	// deepTierThreshold is the complexity score at which a query routes
	// to the deep tier.
	deepTierThreshold = 40

	// extendedReasoningThreshold is the score at which a deep-tier query
	// additionally gets an extended reasoning budget.
	extendedReasoningThreshold = 60
)

// frameworks are the doctrine framework names recognized in query text.
// Matched as lowercase substrings.
var frameworks = []string{
	"6mx", "six-minute", "fate", "bte", "baseline", "trigger", "exception",
	"four frames", "4 frames", "elicitation", "rapport", "human needs",
	"compass", "authority", "cialdini", "cognitive bias", "body language",
	"profiling", "hierarchy", "influence", "hypnosis", "linguistics",
	"neuroscience", "script hacking", "six-axis", "social skills",
}

// complexityKeywords signal comparative or applied questions.
var complexityKeywords = []string{
	"relationship", "compare", "contrast", "difference", "between",
	"how does", "why does", "combine", "integrate", "connect",
	"multiple", "together", "versus", "vs", "relate", "interaction",
	"apply", "scenario", "example", "practice", "when to use",
}

// Complexity is the routing decision for one query. Score is additive
// over independent signals; Reasons records which signals fired, for
// operator-facing logs only.
type Complexity struct {
	Score      int
	Tier       Tier
	Reasons    []string
	Frameworks []string
}

// ExtendedReasoning reports whether the query earns an extended
// reasoning budget on top of the deep tier.
func (c Complexity) ExtendedReasoning() bool {
	return c.Tier == TierDeep && c.Score >= extendedReasoningThreshold
}

// AnalyzeComplexity scores a query against its retrieved chunks and
// picks the model tier. Pure function of its inputs: the same query and
// chunks always produce the same score, so routing is reproducible from
// logs.
//
// Signals, each capped independently:
//   - framework mentions in the query, 15 each up to 30
//   - more than two distinct frameworks across the chunks, 15
//   - complexity keywords, 10 each up to 30
//   - length, 15 over twenty words or 8 over ten
//   - causal ("why") and application ("how" with "apply"/"use")
//     phrasing, 10 each
//   - more than one question mark, 15
func AnalyzeComplexity(query string, chunks []doctrine.SearchResult) Complexity {
	lower := strings.ToLower(query)
	var (
		score   int
		reasons []string
	)

	var inQuery []string
	for _, f := range frameworks {
		if strings.Contains(lower, f) {
			inQuery = append(inQuery, f)
		}
	}
	score += capped(len(inQuery)*15, 30)
	if len(inQuery) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d framework(s) in query", len(inQuery)))
	}

	chunkFrameworks := map[string]struct{}{}
	for _, c := range chunks {
		for _, tag := range c.Chunk.FrameworkTags {
			chunkFrameworks[strings.ToLower(tag)] = struct{}{}
		}
	}
	if len(chunkFrameworks) > 2 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("%d frameworks in sources", len(chunkFrameworks)))
	}

	var keywordMatches []string
	for _, k := range complexityKeywords {
		if strings.Contains(lower, k) {
			keywordMatches = append(keywordMatches, k)
		}
	}
	score += capped(len(keywordMatches)*10, 30)
	if len(keywordMatches) > 0 {
		shown := keywordMatches
		if len(shown) > 3 {
			shown = shown[:3]
		}
		reasons = append(reasons, "complexity keywords: "+strings.Join(shown, ", "))
	}

	switch words := len(strings.Fields(query)); {
	case words > 20:
		score += 15
		reasons = append(reasons, "long query")
	case words > 10:
		score += 8
	}

	if strings.Contains(lower, "why") {
		score += 10
		reasons = append(reasons, "causal question")
	}
	if strings.Contains(lower, "how") &&
		(strings.Contains(lower, "apply") || strings.Contains(lower, "use")) {
		score += 10
		reasons = append(reasons, "application question")
	}

	if strings.Count(query, "?") > 1 {
		score += 15
		reasons = append(reasons, "multiple questions")
	}

	tier := TierFast
	if score >= deepTierThreshold {
		tier = TierDeep
	}

	// Sorted for deterministic output; map iteration order is not.
	fromChunks := make([]string, 0, len(chunkFrameworks))
	for f := range chunkFrameworks {
		fromChunks = append(fromChunks, f)
	}
	sort.Strings(fromChunks)

	return Complexity{
		Score:      score,
		Tier:       tier,
		Reasons:    reasons,
		Frameworks: append(inQuery, fromChunks...),
	}
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
