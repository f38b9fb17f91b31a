// Package rag retrieves doctrine and synthesizes grounded answers.
//
// The pipeline embeds the query, searches the chunk store under a
// confidence-derived distance cutoff, scores the query's complexity to
// pick a completion model tier, and synthesizes an answer strictly from
// the retrieved chunks. When nothing clears the cutoff it returns a
// fixed refusal instead of calling the model at all.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/provider/claude"
)

const (
	// retrievalLimit caps chunks fed into synthesis.
	retrievalLimit = 15

	// conceptDistanceFloor is the minimum distance cutoff for
	// definition-style queries. A strict global threshold must not
	// starve "what is X" of the one authoritative definition chunk,
	// which can score only moderately against a short query.
	conceptDistanceFloor = 1.4

	// slowQueryThreshold is the latency past which a search is recorded
	// in the performance log.
	slowQueryThreshold = time.Second
)

// Embedder turns text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer generates an answer from a completion request.
type Completer interface {
	Complete(ctx context.Context, req claude.Request) (string, error)
}

// Store is the doctrine persistence surface the engine needs.
type Store interface {
	VectorSearch(ctx context.Context, q doctrine.VectorQuery) ([]doctrine.SearchResult, error)
	HybridSearch(ctx context.Context, q doctrine.HybridQuery) ([]doctrine.SearchResult, error)
	DocumentNames(ctx context.Context, ids []int64) (map[int64]string, error)
	ConfidenceThreshold(ctx context.Context) float64
	LogQueryPerformance(ctx context.Context, p doctrine.QueryPerformance) error
}

// Engine is the retrieval and synthesis pipeline.
type Engine struct {
	embedder  Embedder
	store     Store
	completer Completer
	fastModel string
	deepModel string
	logger    *slog.Logger
}

// Config assembles an Engine.
type Config struct {
	Embedder  Embedder
	Store     Store
	Completer Completer

	// FastModel and DeepModel are the completion model identifiers for
	// the two routing tiers.
	FastModel string
	DeepModel string

	Logger *slog.Logger
}

// NewEngine validates the config and builds the pipeline.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if cfg.FastModel == "" || cfg.DeepModel == "" {
		return nil, errors.New("fast and deep model identifiers are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		completer: cfg.Completer,
		fastModel: cfg.FastModel,
		deepModel: cfg.DeepModel,
		logger:    logger,
	}, nil
}

// AskOptions tune a single Ask call.
type AskOptions struct {
	// Confidence overrides the stored threshold when non-nil.
	Confidence *float64

	// Hybrid runs fused keyword + vector retrieval instead of pure
	// vector search.
	Hybrid bool
}

// Ask answers a question from doctrine. The full pipeline: retrieve,
// route by complexity, synthesize. Every call gets a request id that
// tags all its log lines.
func (e *Engine) Ask(ctx context.Context, query string, opts AskOptions) (Response, error) {
	if query == "" {
		return Response{}, errors.New("query is required")
	}

	logger := e.logger.With("request_id", uuid.NewString())
	logger.Info("ask", "query", truncate(query, 80), "hybrid", opts.Hybrid)

	var (
		chunks []doctrine.SearchResult
		err    error
	)
	if opts.Hybrid {
		chunks, err = e.HybridRetrieve(ctx, query, retrievalLimit, 1.0, 1.0)
	} else {
		chunks, err = e.Retrieve(ctx, query, opts.Confidence)
	}
	if err != nil {
		return Response{}, err
	}

	resp, err := e.synthesize(ctx, logger, query, chunks)
	if err != nil {
		return Response{}, err
	}

	logger.Info("answered",
		"chunks", len(chunks),
		"model", resp.Model,
		"tier", resp.Complexity.Tier,
		"confidence", resp.Confidence,
	)
	return resp, nil
}

// Retrieve searches doctrine by vector similarity. confidence overrides
// the stored threshold when non-nil; either way the threshold converts
// to a cosine-distance cutoff of 2*(1-confidence), floored at
// conceptDistanceFloor for definition-style queries. An empty result is
// a valid outcome, not an error.
//
// Results come back in final rank order with title boosting already
// applied when the query named a concept.
func (e *Engine) Retrieve(ctx context.Context, query string, confidence *float64) ([]doctrine.SearchResult, error) {
	return e.RetrieveFiltered(ctx, query, confidence, nil)
}

// RetrieveFiltered is Retrieve restricted to chunks carrying at least
// one of the given framework tags. An empty filter matches everything.
func (e *Engine) RetrieveFiltered(ctx context.Context, query string, confidence *float64, frameworks []string) ([]doctrine.SearchResult, error) {
	start := time.Now()

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	threshold := e.resolveConfidence(ctx, confidence)
	maxDistance := 2 * (1 - threshold)

	concept := ExtractConcept(query)
	if concept != "" && maxDistance < conceptDistanceFloor {
		maxDistance = conceptDistanceFloor
	}

	e.logger.Debug("vector retrieval",
		"confidence", threshold,
		"max_distance", maxDistance,
		"concept", concept,
	)

	results, err := e.store.VectorSearch(ctx, doctrine.VectorQuery{
		Embedding:   embedding,
		MaxDistance: maxDistance,
		Limit:       retrievalLimit,
		Frameworks:  frameworks,
		BoostTerm:   concept,
	})
	if err != nil {
		return nil, err
	}

	e.recordIfSlow(ctx, doctrine.QueryTypeVector, query, time.Since(start), len(results))
	return results, nil
}

// HybridRetrieve searches doctrine with fused keyword and vector
// rankings. Weights default to 1.0 each when non-positive.
func (e *Engine) HybridRetrieve(ctx context.Context, query string, limit int, vectorWeight, keywordWeight float64) ([]doctrine.SearchResult, error) {
	start := time.Now()

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if vectorWeight <= 0 {
		vectorWeight = 1.0
	}
	if keywordWeight <= 0 {
		keywordWeight = 1.0
	}

	results, err := e.store.HybridSearch(ctx, doctrine.HybridQuery{
		Text:          query,
		Embedding:     embedding,
		Limit:         limit,
		VectorWeight:  vectorWeight,
		KeywordWeight: keywordWeight,
	})
	if err != nil {
		return nil, err
	}

	e.recordIfSlow(ctx, doctrine.QueryTypeHybrid, query, time.Since(start), len(results))
	return results, nil
}

// Synthesize generates an answer from already-retrieved chunks. Exposed
// for callers that run retrieval separately.
func (e *Engine) Synthesize(ctx context.Context, query string, chunks []doctrine.SearchResult) (Response, error) {
	return e.synthesize(ctx, e.logger, query, chunks)
}

func (e *Engine) resolveConfidence(ctx context.Context, override *float64) float64 {
	if override != nil {
		v := *override
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v
	}
	return e.store.ConfidenceThreshold(ctx)
}

// recordIfSlow logs slow searches to the performance table. Fire and
// forget: detached from the request's cancellation, and a write failure
// only warns.
func (e *Engine) recordIfSlow(ctx context.Context, queryType, query string, elapsed time.Duration, returned int) {
	if elapsed <= slowQueryThreshold {
		return
	}
	e.logger.Warn("slow search", "type", queryType, "elapsed", elapsed, "chunks", returned)

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		logCtx, cancel := context.WithTimeout(bgCtx, 5*time.Second)
		defer cancel()
		err := e.store.LogQueryPerformance(logCtx, doctrine.QueryPerformance{
			QueryType:      queryType,
			QueryText:      query,
			ExecutionTime:  elapsed,
			ChunksReturned: returned,
		})
		if err != nil {
			e.logger.Warn("recording query performance", "error", err)
		}
	}()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
