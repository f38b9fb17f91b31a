package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/sparkforge/nigel/internal/doctrine"
)

func TestSynthesizeNoDoctrineShortCircuit(t *testing.T) {
	store := &stubStore{}
	completer := &stubCompleter{answer: "should never be used"}
	engine, _ := newTestEngine(t, store, completer)

	resp, err := engine.Synthesize(context.Background(), "What is FATE?", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if resp.Answer != noDoctrineAnswer {
		t.Errorf("Answer = %q, want the fixed refusal", resp.Answer)
	}
	if resp.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", resp.Confidence)
	}
	if resp.Model != "none" {
		t.Errorf("Model = %q, want none", resp.Model)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources = %+v, want empty", resp.Sources)
	}
	if len(completer.requests) != 0 {
		t.Fatalf("completion model called %d times on empty retrieval", len(completer.requests))
	}
}

func TestSynthesizeRouting(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantModel     string
		wantMaxTokens int64
		wantThinking  bool
	}{
		{
			name:          "simple query uses the fast model",
			query:         "What is FATE?",
			wantModel:     "claude-haiku-4-5-20251001",
			wantMaxTokens: 4096,
			wantThinking:  false,
		},
		{
			// frameworks 30 + keywords 10. Deep without the extended
			// reasoning budget.
			name:          "moderate complexity routes deep without thinking",
			query:         "fate baseline example",
			wantModel:     "claude-sonnet-4-5-20250929",
			wantMaxTokens: 16000,
			wantThinking:  false,
		},
		{
			name:          "high complexity enables extended reasoning",
			query:         "Why does rapport matter when you apply elicitation, and how does it relate to the human needs model? What about compass?",
			wantModel:     "claude-sonnet-4-5-20250929",
			wantMaxTokens: 16000,
			wantThinking:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{names: map[int64]string{10: "field-manual"}}
			completer := &stubCompleter{answer: "answer"}
			engine, _ := newTestEngine(t, store, completer)

			resp, err := engine.Synthesize(context.Background(), tt.query, sampleResults())
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}

			if len(completer.requests) != 1 {
				t.Fatalf("completion model called %d times, want 1", len(completer.requests))
			}
			req := completer.requests[0]
			if req.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", req.Model, tt.wantModel)
			}
			if req.MaxTokens != tt.wantMaxTokens {
				t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, tt.wantMaxTokens)
			}
			if gotThinking := req.ThinkingBudget > 0; gotThinking != tt.wantThinking {
				t.Errorf("ThinkingBudget = %d, want thinking=%v", req.ThinkingBudget, tt.wantThinking)
			}
			if resp.UsedThinking != tt.wantThinking {
				t.Errorf("UsedThinking = %v, want %v", resp.UsedThinking, tt.wantThinking)
			}
			if !req.CacheSystemPrompt || !req.CachePrompt {
				t.Error("prompt caching not requested")
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	chunks := []doctrine.SearchResult{
		{Chunk: doctrine.Chunk{Content: "First chunk.", FrameworkTags: []string{"fate", "bte"}}},
		{Chunk: doctrine.Chunk{Content: "Second chunk.", FrameworkTags: []string{"rapport"}}},
	}

	prompt := buildUserPrompt("What is FATE?", chunks)

	wantContext := "[Framework: fate, bte]\nFirst chunk.\n\n---\n\n[Framework: rapport]\nSecond chunk."
	if !strings.Contains(prompt, wantContext) {
		t.Errorf("prompt missing context block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "<question>\nWhat is FATE?\n</question>") {
		t.Errorf("prompt missing question block:\n%s", prompt)
	}

	// Retrieval order is part of the contract.
	if strings.Index(prompt, "First chunk.") > strings.Index(prompt, "Second chunk.") {
		t.Error("chunk order not preserved")
	}
}

func TestBuildSources(t *testing.T) {
	store := &stubStore{names: map[int64]string{10: "field-manual"}}
	completer := &stubCompleter{answer: "answer"}
	engine, _ := newTestEngine(t, store, completer)

	chunks := []doctrine.SearchResult{
		{Chunk: doctrine.Chunk{ID: 1, DocumentID: 10, Section: "FATE Framework"}, Similarity: 0.876},
		{Chunk: doctrine.Chunk{ID: 2, DocumentID: 99, Section: "Orphan"}, Similarity: 0.654},
	}

	resp, err := engine.Synthesize(context.Background(), "What is FATE?", chunks)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(resp.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(resp.Sources))
	}
	if resp.Sources[0].DocumentName != "field-manual" || resp.Sources[0].Section != "FATE Framework" {
		t.Errorf("Sources[0] = %+v", resp.Sources[0])
	}
	if resp.Sources[0].Similarity != 0.88 {
		t.Errorf("Sources[0].Similarity = %v, want 0.88", resp.Sources[0].Similarity)
	}
	if resp.Sources[1].DocumentName != "Unknown" {
		t.Errorf("unresolved document name = %q, want Unknown", resp.Sources[1].DocumentName)
	}
	if resp.Sources[1].Similarity != 0.65 {
		t.Errorf("Sources[1].Similarity = %v, want 0.65", resp.Sources[1].Similarity)
	}
}
