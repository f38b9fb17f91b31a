// Package mcp exposes doctrine retrieval over the Model Context
// Protocol, so other agents and editors can query the corpus through a
// standard tool interface.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/rag"
)

// Asker is the retrieval pipeline surface the MCP tools need.
type Asker interface {
	Ask(ctx context.Context, query string, opts rag.AskOptions) (rag.Response, error)
	Retrieve(ctx context.Context, query string, confidence *float64) ([]doctrine.SearchResult, error)
}

// Server wraps the MCP SDK server around the retrieval pipeline.
type Server struct {
	mcpServer *mcp.Server
	engine    Asker
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Engine  Asker
}

// NewServer creates an MCP server with the doctrine tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		engine:    cfg.Engine,
	}

	if err := s.registerAskDoctrine(); err != nil {
		return nil, fmt.Errorf("registering ask_doctrine: %w", err)
	}
	if err := s.registerSearchDoctrine(); err != nil {
		return nil, fmt.Errorf("registering search_doctrine: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// AskDoctrineInput defines the input schema for the ask_doctrine tool.
type AskDoctrineInput struct {
	Query      string   `json:"query" jsonschema:"The question to answer from doctrine"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"Optional confidence threshold in [0,1]; higher is stricter"`
	Hybrid     bool     `json:"hybrid,omitempty" jsonschema:"Use fused keyword + vector retrieval instead of pure vector search"`
}

// AskDoctrineResult is the structured result for ask_doctrine.
type AskDoctrineResult struct {
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Model      string            `json:"model"`
	Sources    []doctrine.Source `json:"sources"`
}

func (s *Server) registerAskDoctrine() error {
	inputSchema, err := jsonschema.For[AskDoctrineInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "ask_doctrine",
		Description: "Answer a question strictly from the doctrine corpus. Returns the synthesized answer with source attribution and an overall confidence score. Refuses rather than speculates when no doctrine matches.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in AskDoctrineInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.Query) == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Error: query is required"}},
				IsError: true,
			}, nil, nil
		}

		resp, err := s.engine.Ask(ctx, in.Query, rag.AskOptions{
			Confidence: in.Confidence,
			Hybrid:     in.Hybrid,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("answering from doctrine: %w", err)
		}

		result := AskDoctrineResult{
			Answer:     resp.Answer,
			Confidence: resp.Confidence,
			Model:      resp.Model,
			Sources:    resp.Sources,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Answer}},
		}, result, nil
	})

	return nil
}

// SearchDoctrineInput defines the input schema for the search_doctrine tool.
type SearchDoctrineInput struct {
	Query      string   `json:"query" jsonschema:"The search query"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"Optional confidence threshold in [0,1]; higher is stricter"`
}

// SearchDoctrineResult is one retrieved chunk in search_doctrine output.
type SearchDoctrineResult struct {
	Section    string   `json:"section"`
	Content    string   `json:"content"`
	Frameworks []string `json:"frameworks"`
	Similarity float64  `json:"similarity"`
}

func (s *Server) registerSearchDoctrine() error {
	inputSchema, err := jsonschema.For[SearchDoctrineInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "search_doctrine",
		Description: "Search the doctrine corpus by semantic similarity, without answer synthesis. Returns matching chunks ranked best first. An empty result means nothing cleared the confidence threshold.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in SearchDoctrineInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.Query) == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Error: query is required"}},
				IsError: true,
			}, nil, nil
		}

		chunks, err := s.engine.Retrieve(ctx, in.Query, in.Confidence)
		if err != nil {
			return nil, nil, fmt.Errorf("searching doctrine: %w", err)
		}

		if len(chunks) == 0 {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "No doctrine matched the query."}},
			}, []SearchDoctrineResult{}, nil
		}

		results := make([]SearchDoctrineResult, len(chunks))
		var b strings.Builder
		for i, c := range chunks {
			results[i] = SearchDoctrineResult{
				Section:    c.Chunk.Section,
				Content:    c.Chunk.Content,
				Frameworks: c.Chunk.FrameworkTags,
				Similarity: c.Similarity,
			}
			fmt.Fprintf(&b, "%d. [%s] (%.2f)\n%s\n\n", i+1, c.Chunk.Section, c.Similarity, c.Chunk.Content)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: strings.TrimSpace(b.String())}},
		}, results, nil
	})

	return nil
}
