package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/provider/claude"
)

const (
	fastMaxTokens = 4096
	deepMaxTokens = 16000

	// thinkingBudget is the extended reasoning token budget for queries
	// that earn it.
	thinkingBudget = 8000

	// chunkDelimiter separates chunks in the assembled context block.
	chunkDelimiter = "\n\n---\n\n"
)

// Response is a synthesized, doctrine-grounded answer with its routing
// and attribution metadata. Sources are out-of-band: the answer text
// itself carries no citations.
type Response struct {
	Answer     string
	Sources    []doctrine.Source
	Confidence float64

	// Model is the completion model identifier, or "none" when the
	// no-doctrine short circuit fired.
	Model        string
	Complexity   Complexity
	UsedThinking bool
}

// synthesize turns retrieved chunks into an answer. With no chunks it
// returns the fixed refusal at confidence 0 without touching the
// completion model; doctrine is never fabricated. Otherwise it routes
// by complexity and answers strictly from the chunk content.
func (e *Engine) synthesize(ctx context.Context, logger *slog.Logger, query string, chunks []doctrine.SearchResult) (Response, error) {
	if len(chunks) == 0 {
		logger.Info("no doctrine matched", "query", truncate(query, 80))
		return Response{
			Answer:     noDoctrineAnswer,
			Sources:    []doctrine.Source{},
			Confidence: 0,
			Model:      "none",
			Complexity: Complexity{Tier: TierFast},
		}, nil
	}

	complexity := AnalyzeComplexity(query, chunks)
	model := e.fastModel
	maxTokens := int64(fastMaxTokens)
	if complexity.Tier == TierDeep {
		model = e.deepModel
		maxTokens = deepMaxTokens
	}
	useThinking := complexity.ExtendedReasoning()

	logger.Debug("routing",
		"score", complexity.Score,
		"tier", complexity.Tier,
		"model", model,
		"extended_reasoning", useThinking,
		"reasons", strings.Join(complexity.Reasons, "; "),
	)

	req := claude.Request{
		Model:             model,
		System:            systemPrompt,
		Prompt:            buildUserPrompt(query, chunks),
		MaxTokens:         maxTokens,
		CacheSystemPrompt: true,
		CachePrompt:       true,
	}
	if useThinking {
		req.ThinkingBudget = thinkingBudget
	}

	answer, err := e.completer.Complete(ctx, req)
	if err != nil {
		return Response{}, err
	}

	sources, err := e.buildSources(ctx, chunks)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:       answer,
		Sources:      sources,
		Confidence:   meanSimilarity(chunks),
		Model:        model,
		Complexity:   complexity,
		UsedThinking: useThinking,
	}, nil
}

// buildUserPrompt assembles the doctrine context block and wraps it
// with the query. Chunks keep retrieval order: the instructions tell
// the model to prefer earlier, title-matching chunks when definitions
// conflict, so order is part of the contract.
func buildUserPrompt(query string, chunks []doctrine.SearchResult) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		tags := strings.Join(c.Chunk.FrameworkTags, ", ")
		parts[i] = fmt.Sprintf("[Framework: %s]\n%s", tags, c.Chunk.Content)
	}
	block := strings.Join(parts, chunkDelimiter)
	return fmt.Sprintf(userPromptTemplate, block, query)
}

// buildSources resolves chunk attribution for the response metadata.
// Similarities round to two decimals; they are display values here, the
// exact scores already drove ranking.
func (e *Engine) buildSources(ctx context.Context, chunks []doctrine.SearchResult) ([]doctrine.Source, error) {
	seen := map[int64]struct{}{}
	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Chunk.DocumentID]; ok {
			continue
		}
		seen[c.Chunk.DocumentID] = struct{}{}
		ids = append(ids, c.Chunk.DocumentID)
	}

	names, err := e.store.DocumentNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	sources := make([]doctrine.Source, len(chunks))
	for i, c := range chunks {
		name, ok := names[c.Chunk.DocumentID]
		if !ok {
			name = "Unknown"
		}
		sources[i] = doctrine.Source{
			DocumentName: name,
			Section:      c.Chunk.Section,
			Similarity:   math.Round(c.Similarity*100) / 100,
		}
	}
	return sources, nil
}

func meanSimilarity(chunks []doctrine.SearchResult) float64 {
	var sum float64
	for _, c := range chunks {
		sum += c.Similarity
	}
	return sum / float64(len(chunks))
}
