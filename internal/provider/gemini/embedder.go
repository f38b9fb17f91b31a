// Package gemini wraps the Gemini embedding API behind a minimal
// text-to-vector client.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/sparkforge/nigel/internal/provider"
)

// DefaultModel is the embedding model used for the doctrine index.
const DefaultModel = "gemini-embedding-001"

// Embedder converts text into fixed-dimension vectors via the Gemini API.
//
// The dimension is pinned at construction and validated on every
// response: the vector index and the embedder must agree for the
// lifetime of the index, so a mismatch is a configuration fault rather
// than a per-request error.
//
// Embedder is safe for concurrent use.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int32
	logger    *slog.Logger
}

// Config holds Embedder construction parameters.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model is the embedding model identifier. Default: DefaultModel.
	Model string

	// Dimension is the vector dimension of the doctrine index. Required.
	Dimension int32

	// Logger for debugging (nil = slog.Default()).
	Logger *slog.Logger
}

// New creates an Embedder.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, provider.NewConfigurationError("gemini API key is not set")
	}
	if cfg.Dimension <= 0 {
		return nil, provider.NewConfigurationError("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Embedder{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		logger:    cfg.Logger,
	}, nil
}

// Embed converts text to a vector of the configured dimension.
//
// Single attempt, no retries: failures surface as *provider.Error and
// the caller decides whether the whole request is retried. A response
// with the wrong dimension is a *provider.ConfigurationError.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, provider.NewError("gemini", "embed", errors.New("empty input text"))
	}

	dim := e.dimension
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim},
	)
	if err != nil {
		return nil, provider.NewError("gemini", "embed", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, provider.NewError("gemini", "embed", errors.New("empty embedding in response"))
	}

	values := resp.Embeddings[0].Values
	if int32(len(values)) != e.dimension {
		return nil, provider.NewConfigurationError(
			"embedder %q returned %d dimensions, index expects %d",
			e.model, len(values), e.dimension)
	}

	e.logger.Debug("embedded text", "model", e.model, "input_len", len(text))
	return values, nil
}
