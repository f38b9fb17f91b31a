package doctrine

import "time"

// Document is a source text unit of doctrine. Documents are created and
// updated by the ingestion process; the retrieval side only reads them.
type Document struct {
	ID          int64
	Name        string // unique
	Source      string
	DocType     string
	ContentHash string // change detection for re-ingestion
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a retrievable unit of doctrine. A chunk belongs to exactly
// one document. Chunks are immutable once embedded: re-ingestion
// replaces them wholesale, never mutates in place, so the embedding can
// never drift from the content.
type Chunk struct {
	ID            int64
	DocumentID    int64
	Section       string
	Content       string
	FrameworkTags []string
	TokenCount    int32
	Embedding     []float32 // vector of the index dimension; nil when not selected
	CreatedAt     time.Time
}

// SearchResult pairs a chunk with its similarity score in [0,1].
// Produced fresh per query, never persisted or cached.
type SearchResult struct {
	Chunk      Chunk
	Similarity float64
}

// Source describes where a piece of a synthesized answer came from.
// Returned as out-of-band metadata; never rendered inline.
type Source struct {
	DocumentName string
	Section      string
	Similarity   float64
}

// VectorQuery parameterizes a similarity search against the chunk index.
type VectorQuery struct {
	// Embedding is the query vector. Required.
	Embedding []float32

	// MaxDistance is the hard cosine-distance cutoff in [0,2]. Chunks
	// beyond it never appear, boosted or not.
	MaxDistance float64

	// Limit caps the number of results. Default DefaultSearchLimit.
	Limit int

	// Frameworks optionally restricts results to chunks tagged with at
	// least one of the given framework names.
	Frameworks []string

	// BoostTerm optionally names the concept being asked about. Chunks
	// whose section title matches it are boosted before final ranking.
	BoostTerm string
}

// HybridQuery parameterizes a fused keyword + vector search.
type HybridQuery struct {
	Text          string
	Embedding     []float32
	Limit         int
	VectorWeight  float64
	KeywordWeight float64
}

// Query type labels for the performance log.
const (
	QueryTypeVector   = "vector"
	QueryTypeHybrid   = "hybrid"
	QueryTypeFullText = "full_text"
)

// QueryPerformance is one slow-query observation.
type QueryPerformance struct {
	QueryType      string
	QueryText      string
	ExecutionTime  time.Duration
	ChunksReturned int
	ModelUsed      string
}
