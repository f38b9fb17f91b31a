package doctrine

import (
	"sort"
	"strings"
)

// Ranking constants. The title boost must be large enough to overcome
// small semantic-distance differences between an exact-title chunk and
// a sub-section chunk, and it only ever applies to chunks already under
// the distance cutoff, so it can never promote a non-match.
const (
	exactTitleBoost   = 0.15
	partialTitleBoost = 0.05

	// rrfConstant is the k in Reciprocal Rank Fusion.
	rrfConstant = 50

	// boostCandidateFactor over-fetches vector candidates when a boost
	// term is present, so a boosted chunk just outside the requested
	// limit can still surface after re-ranking.
	boostCandidateFactor = 2
)

// genericSuffixes are trailing words that users append to concept names
// ("the FATE framework") but section titles usually omit.
var genericSuffixes = []string{
	"framework", "model", "method", "system", "process", "technique", "protocol",
}

// NormalizeConcept lowercases, trims, and strips one trailing generic
// suffix from a concept or section title, so "FATE framework" and
// "fate" compare equal.
func NormalizeConcept(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range genericSuffixes {
		if trimmed, ok := strings.CutSuffix(s, " "+suffix); ok {
			return strings.TrimSpace(trimmed)
		}
	}
	return s
}

// similarityFromDistance converts a cosine distance in [0,2] to a
// similarity in [0,1].
func similarityFromDistance(distance float64) float64 {
	return 1 - distance/2
}

// titleBoostFor returns the score boost a section title earns for the
// given concept term: exact match (after normalization) beats a title
// that merely contains the term, which beats no match. The exact/partial
// gap is what guarantees "FATE" outranks "FATE (Applications)" even when
// the sub-section chunk sits at a smaller raw distance.
func titleBoostFor(section, term string) float64 {
	if section == "" || term == "" {
		return 0
	}

	normSection := NormalizeConcept(section)
	normTerm := NormalizeConcept(term)
	if normTerm == "" {
		return 0
	}

	if normSection == normTerm {
		return exactTitleBoost
	}
	if strings.Contains(normSection, normTerm) {
		return partialTitleBoost
	}
	return 0
}

// applyTitleBoost boosts title-matching results and re-sorts by the
// boosted score, descending. The input order (ascending distance) is
// preserved among ties via stable sort.
func applyTitleBoost(results []SearchResult, term string) []SearchResult {
	if term == "" {
		return results
	}

	for i := range results {
		results[i].Similarity += titleBoostFor(results[i].Chunk.Section, term)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	return results
}

// fuseRRF merges two independently ranked result lists with Reciprocal
// Rank Fusion:
//
//	fused(chunk) = vectorWeight/(k + vectorRank) + keywordWeight/(k + keywordRank)
//
// with 1-based ranks; a chunk absent from one list contributes 0 for
// that term. A chunk that ranks well under either method therefore
// beats one that ranks moderately under both. The reported Similarity
// is the vector-leg similarity when the chunk appeared there, else the
// keyword-leg similarity.
func fuseRRF(vector, keyword []SearchResult, vectorWeight, keywordWeight float64, limit int) []SearchResult {
	type fused struct {
		result SearchResult
		score  float64
		order  int // first-seen position, for deterministic ties
	}

	merged := make(map[int64]*fused, len(vector)+len(keyword))
	next := 0

	for i, r := range vector {
		merged[r.Chunk.ID] = &fused{
			result: r,
			score:  vectorWeight / float64(rrfConstant+i+1),
			order:  next,
		}
		next++
	}

	for i, r := range keyword {
		contribution := keywordWeight / float64(rrfConstant+i+1)
		if f, ok := merged[r.Chunk.ID]; ok {
			f.score += contribution
			continue
		}
		merged[r.Chunk.ID] = &fused{result: r, score: contribution, order: next}
		next++
	}

	all := make([]*fused, 0, len(merged))
	for _, f := range merged {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	results := make([]SearchResult, len(all))
	for i, f := range all {
		results[i] = f.result
	}
	return results
}
