// Package claude wraps the Anthropic Messages API behind a single
// prompt-in, text-out completion client.
package claude

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sparkforge/nigel/internal/provider"
)

// Request describes a single completion call.
type Request struct {
	// Model is the Claude model identifier.
	Model string

	// System is the persona system prompt.
	System string

	// Prompt is the user prompt (doctrine context plus question).
	Prompt string

	// MaxTokens caps the response length.
	MaxTokens int64

	// ThinkingBudget enables extended thinking with the given token
	// budget when > 0.
	ThinkingBudget int64

	// CacheSystemPrompt marks the system prompt with an ephemeral cache
	// hint. The system prompt is long and identical across calls, so
	// repeated invocations within the provider's cache window are cheap.
	// Cost optimization only; correctness never depends on it.
	CacheSystemPrompt bool

	// CachePrompt marks the user prompt cacheable. Helps when the same
	// doctrine chunks are retrieved for consecutive questions.
	CachePrompt bool
}

// Client calls the Anthropic Messages API.
//
// Client is safe for concurrent use.
type Client struct {
	api    anthropic.Client
	logger *slog.Logger
}

// Config holds Client construction parameters.
type Config struct {
	// APIKey authenticates against the Anthropic API. Required.
	APIKey string

	// Logger for debugging (nil = slog.Default()).
	Logger *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.NewConfigurationError("anthropic API key is not set")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		api:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		logger: cfg.Logger,
	}, nil
}

// Complete sends one completion request and returns the response text.
//
// Single attempt, no retries: failures surface as *provider.Error.
// When extended thinking is enabled the response may lead with thinking
// blocks; the first text block is the answer.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		return "", provider.NewError("claude", "complete", errors.New("model is required"))
	}
	if req.Prompt == "" {
		return "", provider.NewError("claude", "complete", errors.New("empty prompt"))
	}

	params := buildParams(req)

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", provider.NewError("claude", "complete", err)
	}

	c.logger.Debug("completion received",
		"model", req.Model,
		"thinking_budget", req.ThinkingBudget,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"cache_read_tokens", msg.Usage.CacheReadInputTokens,
		"cache_creation_tokens", msg.Usage.CacheCreationInputTokens,
	)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", provider.NewError("claude", "complete", errors.New("no text block in response"))
}

// buildParams assembles the API request. Kept separate from Complete so
// option handling (thinking, cache hints) is testable without the network.
func buildParams(req Request) anthropic.MessageNewParams {
	system := anthropic.TextBlockParam{Text: req.System}
	if req.CacheSystemPrompt {
		system.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	user := anthropic.TextBlockParam{Text: req.Prompt}
	if req.CachePrompt {
		user.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		System:    []anthropic.TextBlockParam{system},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.ContentBlockParamUnion{OfText: &user}),
		},
	}

	if req.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(req.ThinkingBudget)
	}

	return params
}
