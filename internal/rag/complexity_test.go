package rag

import (
	"reflect"
	"testing"

	"github.com/sparkforge/nigel/internal/doctrine"
)

func chunksWithTags(tagSets ...[]string) []doctrine.SearchResult {
	results := make([]doctrine.SearchResult, len(tagSets))
	for i, tags := range tagSets {
		results[i] = doctrine.SearchResult{
			Chunk:      doctrine.Chunk{ID: int64(i + 1), FrameworkTags: tags},
			Similarity: 0.8,
		}
	}
	return results
}

func TestAnalyzeComplexity(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		chunks    []doctrine.SearchResult
		wantScore int
		wantTier  Tier
	}{
		{
			name:      "simple definition query stays fast",
			query:     "What is FATE?",
			chunks:    chunksWithTags([]string{"fate"}),
			wantScore: 15,
			wantTier:  TierFast,
		},
		{
			name:      "two frameworks alone stay fast",
			query:     "fate baseline",
			chunks:    nil,
			wantScore: 30,
			wantTier:  TierFast,
		},
		{
			name:      "threshold boundary routes deep",
			query:     "fate baseline example",
			chunks:    nil,
			wantScore: 40,
			wantTier:  TierDeep,
		},
		{
			name:      "framework mentions cap at 30",
			query:     "fate baseline rapport compass",
			chunks:    nil,
			wantScore: 30,
			wantTier:  TierFast,
		},
		{
			name:  "multi-framework causal question routes deep",
			query: "Why does rapport matter when you apply elicitation, and how does it relate to the human needs model? What about compass?",
			chunks: chunksWithTags(
				[]string{"rapport"},
				[]string{"elicitation"},
				[]string{"human needs"},
			),
			// frameworks 30, source frameworks 15, keywords 30,
			// length 15, why 10, application 10, multiple questions 15
			wantScore: 125,
			wantTier:  TierDeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeComplexity(tt.query, tt.chunks)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d (reasons: %v)", got.Score, tt.wantScore, got.Reasons)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("tier = %q, want %q", got.Tier, tt.wantTier)
			}
		})
	}
}

func TestAnalyzeComplexityChunkFrameworkSignal(t *testing.T) {
	query := "tell me more"

	two := AnalyzeComplexity(query, chunksWithTags([]string{"fate"}, []string{"bte"}))
	if two.Score != 0 {
		t.Errorf("two distinct source frameworks scored %d, want 0", two.Score)
	}

	three := AnalyzeComplexity(query, chunksWithTags(
		[]string{"fate"}, []string{"bte"}, []string{"rapport"}))
	if three.Score != 15 {
		t.Errorf("three distinct source frameworks scored %d, want 15", three.Score)
	}

	// Tag case must not split the set.
	mixedCase := AnalyzeComplexity(query, chunksWithTags(
		[]string{"FATE"}, []string{"fate"}, []string{"bte"}))
	if mixedCase.Score != 0 {
		t.Errorf("case-variant tags scored %d, want 0", mixedCase.Score)
	}
}

func TestAnalyzeComplexityDeterministic(t *testing.T) {
	query := "How does FATE relate to baseline and rapport in practice?"
	chunks := chunksWithTags(
		[]string{"fate", "baseline"},
		[]string{"rapport"},
		[]string{"elicitation"},
	)

	first := AnalyzeComplexity(query, chunks)
	for range 50 {
		again := AnalyzeComplexity(query, chunks)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("analysis not deterministic:\n%+v\n%+v", first, again)
		}
	}
}

func TestExtendedReasoning(t *testing.T) {
	tests := []struct {
		name string
		c    Complexity
		want bool
	}{
		{name: "deep below budget threshold", c: Complexity{Score: 45, Tier: TierDeep}, want: false},
		{name: "deep at budget threshold", c: Complexity{Score: 60, Tier: TierDeep}, want: true},
		{name: "fast tier never reasons extended", c: Complexity{Score: 70, Tier: TierFast}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.ExtendedReasoning(); got != tt.want {
				t.Errorf("ExtendedReasoning() = %v, want %v", got, tt.want)
			}
		})
	}
}
