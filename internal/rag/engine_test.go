package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/log"
	"github.com/sparkforge/nigel/internal/provider/claude"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

type stubStore struct {
	mu sync.Mutex

	vectorQueries []doctrine.VectorQuery
	vectorResults []doctrine.SearchResult
	vectorErr     error

	hybridQueries []doctrine.HybridQuery
	hybridResults []doctrine.SearchResult

	names     map[int64]string
	namesErr  error
	threshold float64

	perf []doctrine.QueryPerformance
}

func (s *stubStore) VectorSearch(_ context.Context, q doctrine.VectorQuery) ([]doctrine.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorQueries = append(s.vectorQueries, q)
	if s.vectorErr != nil {
		return nil, s.vectorErr
	}
	return s.vectorResults, nil
}

func (s *stubStore) HybridSearch(_ context.Context, q doctrine.HybridQuery) ([]doctrine.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hybridQueries = append(s.hybridQueries, q)
	return s.hybridResults, nil
}

func (s *stubStore) DocumentNames(_ context.Context, ids []int64) (map[int64]string, error) {
	if s.namesErr != nil {
		return nil, s.namesErr
	}
	out := map[int64]string{}
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (s *stubStore) ConfidenceThreshold(_ context.Context) float64 {
	if s.threshold == 0 {
		return doctrine.DefaultConfidenceThreshold
	}
	return s.threshold
}

func (s *stubStore) LogQueryPerformance(_ context.Context, p doctrine.QueryPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf = append(s.perf, p)
	return nil
}

type stubCompleter struct {
	mu       sync.Mutex
	requests []claude.Request
	answer   string
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, req claude.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func newTestEngine(t *testing.T, store *stubStore, completer *stubCompleter) (*Engine, *stubEmbedder) {
	t.Helper()
	embedder := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	engine, err := NewEngine(Config{
		Embedder:  embedder,
		Store:     store,
		Completer: completer,
		FastModel: "claude-haiku-4-5-20251001",
		DeepModel: "claude-sonnet-4-5-20250929",
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, embedder
}

func sampleResults() []doctrine.SearchResult {
	return []doctrine.SearchResult{
		{Chunk: doctrine.Chunk{ID: 1, DocumentID: 10, Section: "FATE Framework",
			Content: "FATE structures the approach.", FrameworkTags: []string{"fate"}}, Similarity: 0.9},
		{Chunk: doctrine.Chunk{ID: 2, DocumentID: 10, Section: "Baseline",
			Content: "Baseline before deviation.", FrameworkTags: []string{"baseline"}}, Similarity: 0.7},
	}
}

func TestNewEngineValidation(t *testing.T) {
	store := &stubStore{}
	completer := &stubCompleter{}
	embedder := &stubEmbedder{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing embedder", cfg: Config{Store: store, Completer: completer, FastModel: "f", DeepModel: "d"}},
		{name: "missing store", cfg: Config{Embedder: embedder, Completer: completer, FastModel: "f", DeepModel: "d"}},
		{name: "missing completer", cfg: Config{Embedder: embedder, Store: store, FastModel: "f", DeepModel: "d"}},
		{name: "missing models", cfg: Config{Embedder: embedder, Store: store, Completer: completer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.cfg); err == nil {
				t.Error("NewEngine accepted invalid config")
			}
		})
	}
}

func TestRetrieveDistanceCutoff(t *testing.T) {
	override := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		query      string
		stored     float64
		confidence *float64
		wantDist   float64
		wantBoost  string
	}{
		{
			name:     "stored threshold converts to distance",
			query:    "compare rapport and baseline techniques",
			stored:   0.5,
			wantDist: 1.0,
		},
		{
			name:       "override takes precedence",
			query:      "compare rapport and baseline techniques",
			stored:     0.5,
			confidence: override(0.8),
			wantDist:   0.4,
		},
		{
			name:       "out of range override clamps",
			query:      "compare rapport and baseline techniques",
			confidence: override(1.7),
			wantDist:   0,
		},
		{
			name:      "concept query floors the cutoff",
			query:     "What is FATE?",
			stored:    0.9,
			wantDist:  1.4,
			wantBoost: "fate",
		},
		{
			name:      "permissive threshold beats the floor",
			query:     "What is FATE?",
			stored:    0.1,
			wantDist:  1.8,
			wantBoost: "fate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{threshold: tt.stored}
			engine, _ := newTestEngine(t, store, &stubCompleter{})

			if _, err := engine.Retrieve(context.Background(), tt.query, tt.confidence); err != nil {
				t.Fatalf("Retrieve: %v", err)
			}

			if len(store.vectorQueries) != 1 {
				t.Fatalf("store called %d times, want 1", len(store.vectorQueries))
			}
			q := store.vectorQueries[0]
			if !floatsClose(q.MaxDistance, tt.wantDist) {
				t.Errorf("MaxDistance = %v, want %v", q.MaxDistance, tt.wantDist)
			}
			if q.BoostTerm != tt.wantBoost {
				t.Errorf("BoostTerm = %q, want %q", q.BoostTerm, tt.wantBoost)
			}
			if q.Limit != retrievalLimit {
				t.Errorf("Limit = %d, want %d", q.Limit, retrievalLimit)
			}
		})
	}
}

// Raising confidence must never widen the search.
func TestRetrieveCutoffMonotonic(t *testing.T) {
	store := &stubStore{}
	engine, _ := newTestEngine(t, store, &stubCompleter{})
	ctx := context.Background()

	query := "compare rapport and baseline techniques"
	prev := 2.1
	for _, confidence := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0} {
		c := confidence
		if _, err := engine.Retrieve(ctx, query, &c); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		got := store.vectorQueries[len(store.vectorQueries)-1].MaxDistance
		if got > prev {
			t.Fatalf("cutoff widened from %v to %v at confidence %v", prev, got, confidence)
		}
		prev = got
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	store := &stubStore{}
	engine, embedder := newTestEngine(t, store, &stubCompleter{})
	embedder.err = errors.New("embedding backend down")

	_, err := engine.Retrieve(context.Background(), "What is FATE?", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.vectorQueries) != 0 {
		t.Error("store searched despite embedding failure")
	}
}

func TestRetrieveStoreFailure(t *testing.T) {
	store := &stubStore{vectorErr: errors.New("connection refused")}
	engine, _ := newTestEngine(t, store, &stubCompleter{})

	if _, err := engine.Retrieve(context.Background(), "What is FATE?", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieveFilteredForwardsFrameworks(t *testing.T) {
	store := &stubStore{}
	engine, _ := newTestEngine(t, store, &stubCompleter{})

	_, err := engine.RetrieveFiltered(context.Background(), "apply rapport techniques", nil, []string{"fate", "race"})
	if err != nil {
		t.Fatalf("RetrieveFiltered: %v", err)
	}

	if len(store.vectorQueries) != 1 {
		t.Fatalf("VectorSearch calls = %d, want 1", len(store.vectorQueries))
	}
	got := store.vectorQueries[0].Frameworks
	if len(got) != 2 || got[0] != "fate" || got[1] != "race" {
		t.Errorf("Frameworks = %v, want [fate race]", got)
	}

	// Unfiltered retrieval must not constrain by framework.
	store.vectorQueries = nil
	if _, err := engine.Retrieve(context.Background(), "apply rapport techniques", nil); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if fw := store.vectorQueries[0].Frameworks; len(fw) != 0 {
		t.Errorf("Frameworks = %v, want empty", fw)
	}
}

func TestHybridRetrieveDefaultsWeights(t *testing.T) {
	store := &stubStore{hybridResults: sampleResults()}
	engine, _ := newTestEngine(t, store, &stubCompleter{})

	results, err := engine.HybridRetrieve(context.Background(), "rapport", 10, 0, 0)
	if err != nil {
		t.Fatalf("HybridRetrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	q := store.hybridQueries[0]
	if q.VectorWeight != 1.0 || q.KeywordWeight != 1.0 {
		t.Errorf("weights = %v/%v, want 1.0/1.0", q.VectorWeight, q.KeywordWeight)
	}
	if q.Text != "rapport" {
		t.Errorf("Text = %q, want rapport", q.Text)
	}
}

func TestAskEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, &stubStore{}, &stubCompleter{})
	if _, err := engine.Ask(context.Background(), "", AskOptions{}); err == nil {
		t.Fatal("empty query accepted")
	}
}

func TestAskVectorPath(t *testing.T) {
	store := &stubStore{
		vectorResults: sampleResults(),
		names:         map[int64]string{10: "field-manual"},
	}
	completer := &stubCompleter{answer: "FATE structures the opening."}
	engine, _ := newTestEngine(t, store, completer)

	resp, err := engine.Ask(context.Background(), "What is FATE?", AskOptions{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if resp.Answer != "FATE structures the opening." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("Model = %q, want the fast model", resp.Model)
	}
	if !floatsClose(resp.Confidence, 0.8) {
		t.Errorf("Confidence = %v, want 0.8 (mean of 0.9 and 0.7)", resp.Confidence)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].DocumentName != "field-manual" {
		t.Errorf("Sources = %+v", resp.Sources)
	}
	if len(store.hybridQueries) != 0 {
		t.Error("hybrid search ran on the vector path")
	}
}

func TestAskHybridPath(t *testing.T) {
	store := &stubStore{
		hybridResults: sampleResults(),
		names:         map[int64]string{10: "field-manual"},
	}
	completer := &stubCompleter{answer: "answer"}
	engine, _ := newTestEngine(t, store, completer)

	if _, err := engine.Ask(context.Background(), "What is FATE?", AskOptions{Hybrid: true}); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if len(store.hybridQueries) != 1 {
		t.Fatalf("hybrid search ran %d times, want 1", len(store.hybridQueries))
	}
	if got := store.hybridQueries[0].Limit; got != retrievalLimit {
		t.Errorf("hybrid Limit = %d, want %d", got, retrievalLimit)
	}
	if len(store.vectorQueries) != 0 {
		t.Error("vector search ran on the hybrid path")
	}
}

// A provider failure must surface as an error, never be conflated with
// the no-doctrine refusal.
func TestAskProviderFailure(t *testing.T) {
	providerErr := errors.New("overloaded")
	store := &stubStore{vectorResults: sampleResults(), names: map[int64]string{}}
	completer := &stubCompleter{err: providerErr}
	engine, _ := newTestEngine(t, store, completer)

	_, err := engine.Ask(context.Background(), "What is FATE?", AskOptions{})
	if !errors.Is(err, providerErr) {
		t.Fatalf("err = %v, want the provider error", err)
	}
}

func floatsClose(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
