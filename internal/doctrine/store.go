package doctrine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Search limits.
const (
	// DefaultSearchLimit is the result cap when a query does not set one.
	DefaultSearchLimit = 15

	// MaxSearchLimit bounds any caller-supplied limit.
	MaxSearchLimit = 100
)

// DefaultConfidenceThreshold applies when the config row is absent or
// unreadable.
const DefaultConfidenceThreshold = 0.5

// thresholdConfigKey is the config-table row holding the process-wide
// confidence threshold. Read fresh on every query so operators can tune
// retrieval strictness without a restart.
const thresholdConfigKey = "rag_threshold"

// chunkCols is the standard SELECT column list for scanChunk.
const chunkCols = `c.id, c.document_id, c.section, c.content, c.framework_tags, c.token_count, c.created_at`

// Store persists doctrine documents and chunks in PostgreSQL + pgvector
// and answers the three search shapes the retrieval engine needs:
// vector, keyword, and RRF-fused hybrid.
//
// Chunk writes happen through ReplaceChunks only, serialized by the
// ingestion process; queries never race with in-place mutation because
// there is none.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// VectorSearch returns chunks within q.MaxDistance of q.Embedding,
// best match first. When q.BoostTerm is set, title-matching chunks are
// boosted and the list re-ranked before truncation; the boost never
// admits a chunk past the distance cutoff because the cutoff is applied
// in SQL first.
//
// Similarity is 1 - distance/2, or the boosted score for boosted rows.
// No matches is a valid empty result, not an error.
func (s *Store) VectorSearch(ctx context.Context, q VectorQuery) ([]SearchResult, error) {
	if len(q.Embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}

	limit := clampLimit(q.Limit)
	fetch := limit
	if q.BoostTerm != "" {
		fetch = limit * boostCandidateFactor
	}

	vec := pgvector.NewVector(q.Embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`, c.embedding <=> $1 AS distance
		 FROM chunks c
		 WHERE c.embedding IS NOT NULL
		   AND (c.embedding <=> $1) <= $2
		   AND (COALESCE(array_length($3::text[], 1), 0) = 0 OR c.framework_tags && $3::text[])
		 ORDER BY c.embedding <=> $1
		 LIMIT $4`,
		vec, q.MaxDistance, q.Frameworks, fetch,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows, similarityFromDistance)
	if err != nil {
		return nil, err
	}

	if q.BoostTerm != "" {
		results = applyTitleBoost(results, q.BoostTerm)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// KeywordSearch returns chunks matching the query text under standard
// lexical ranking (ts_rank_cd over the stemmed search_text index),
// best match first. Similarity is the rank clamped to [0,1].
func (s *Store) KeywordSearch(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	if text == "" {
		return []SearchResult{}, nil
	}
	limit = clampLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`,
		        LEAST(1.0, ts_rank_cd(c.search_text, plainto_tsquery('english', $1), 1)) AS rank
		 FROM chunks c
		 WHERE c.search_text @@ plainto_tsquery('english', $1)
		 ORDER BY rank DESC, c.id
		 LIMIT $2`,
		text, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	// The rank column is already a similarity; no distance conversion.
	return scanResults(rows, func(rank float64) float64 { return rank })
}

// HybridSearch runs the vector and keyword searches independently and
// fuses their rankings with Reciprocal Rank Fusion (k=50). A chunk that
// tops either list tops the fused list for any positive weights.
func (s *Store) HybridSearch(ctx context.Context, q HybridQuery) ([]SearchResult, error) {
	if q.Text == "" {
		return nil, errors.New("query text is required")
	}
	if len(q.Embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	limit := clampLimit(q.Limit)

	// No distance cutoff on the vector leg: fusion ranks are relative,
	// and the keyword leg has no comparable notion of a cutoff.
	vector, err := s.VectorSearch(ctx, VectorQuery{
		Embedding:   q.Embedding,
		MaxDistance: 2.0,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}

	keyword, err := s.KeywordSearch(ctx, q.Text, limit)
	if err != nil {
		return nil, err
	}

	return fuseRRF(vector, keyword, q.VectorWeight, q.KeywordWeight, limit), nil
}

// UpsertDocument inserts a document or updates it by name, returning
// its id. Used by the ingestion process; retrieval only reads.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	if doc.Name == "" {
		return 0, errors.New("document name is required")
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("marshaling document metadata: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO documents (name, source, doc_type, content_hash, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET source = EXCLUDED.source,
		     doc_type = EXCLUDED.doc_type,
		     content_hash = EXCLUDED.content_hash,
		     metadata = EXCLUDED.metadata,
		     updated_at = now()
		 RETURNING id`,
		doc.Name, nullableText(doc.Source), nullableText(doc.DocType),
		nullableText(doc.ContentHash), metadataJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting document %q: %w", doc.Name, err)
	}
	return id, nil
}

// ReplaceChunks atomically replaces all chunks of a document. Chunks
// are immutable once embedded; replacement is the only write path, so
// embedding and content can never skew.
func (s *Store) ReplaceChunks(ctx context.Context, documentID int64, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	for _, chunk := range chunks {
		if chunk.Content == "" {
			return fmt.Errorf("chunk for document %d has empty content", documentID)
		}

		var embedding *pgvector.Vector
		if len(chunk.Embedding) > 0 {
			vec := pgvector.NewVector(chunk.Embedding)
			embedding = &vec
		}

		tags := chunk.FrameworkTags
		if tags == nil {
			tags = []string{}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, section, content, framework_tags, token_count, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			documentID, nullableText(chunk.Section), chunk.Content,
			tags, nullableInt(chunk.TokenCount), embedding,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}

	s.logger.Debug("replaced chunks", "document_id", documentID, "count", len(chunks))
	return nil
}

// DeleteDocument removes a document and, via cascade, its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	return nil
}

// DocumentNames resolves document ids to names for source attribution.
// Unknown ids are simply absent from the map.
func (s *Store) DocumentNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving document names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning document name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document names: %w", err)
	}
	return names, nil
}

// thresholdEnvelope is the JSON shape of the rag_threshold config row,
// kept compatible with the original {"value": 0.5} layout.
type thresholdEnvelope struct {
	Value float64 `json:"value"`
}

// ConfidenceThreshold returns the process-wide confidence threshold
// from the config table. A missing or malformed row falls back to
// DefaultConfidenceThreshold; a read failure is logged and also falls
// back, because an unreadable tuning knob should degrade retrieval
// strictness, not availability.
func (s *Store) ConfidenceThreshold(ctx context.Context) float64 {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM config WHERE key = $1`, thresholdConfigKey,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultConfidenceThreshold
	}
	if err != nil {
		s.logger.Warn("reading confidence threshold", "error", err)
		return DefaultConfidenceThreshold
	}

	var envelope thresholdEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.logger.Warn("malformed confidence threshold row", "error", err)
		return DefaultConfidenceThreshold
	}
	if envelope.Value < 0 || envelope.Value > 1 {
		s.logger.Warn("confidence threshold out of range", "value", envelope.Value)
		return DefaultConfidenceThreshold
	}
	return envelope.Value
}

// SetConfidenceThreshold updates the config row. Takes effect on the
// next query; no restart needed.
func (s *Store) SetConfidenceThreshold(ctx context.Context, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", value)
	}

	raw, err := json.Marshal(thresholdEnvelope{Value: value})
	if err != nil {
		return fmt.Errorf("marshaling threshold: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO config (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		thresholdConfigKey, raw,
	)
	if err != nil {
		return fmt.Errorf("setting confidence threshold: %w", err)
	}
	return nil
}

// LogQueryPerformance records one slow-query observation. Best-effort:
// callers fire and forget.
func (s *Store) LogQueryPerformance(ctx context.Context, p QueryPerformance) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_performance_log (query_type, query_text, execution_time_ms, chunks_returned, model_used)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.QueryType, nullableText(p.QueryText), p.ExecutionTime.Milliseconds(),
		p.ChunksReturned, nullableText(p.ModelUsed),
	)
	if err != nil {
		return fmt.Errorf("logging query performance: %w", err)
	}
	return nil
}

// clampLimit applies the default and the hard cap.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// scanResults reads chunk rows that carry one trailing score column and
// converts the score to a similarity with toSimilarity.
func scanResults(rows pgx.Rows, toSimilarity func(float64) float64) ([]SearchResult, error) {
	results := []SearchResult{}
	for rows.Next() {
		var (
			chunk      Chunk
			section    pgtype.Text
			tokenCount pgtype.Int4
			createdAt  pgtype.Timestamptz
			score      float64
		)
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &section, &chunk.Content,
			&chunk.FrameworkTags, &tokenCount, &createdAt, &score)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}

		chunk.Section = section.String
		chunk.TokenCount = tokenCount.Int32
		if createdAt.Valid {
			chunk.CreatedAt = createdAt.Time
		}

		results = append(results, SearchResult{
			Chunk:      chunk,
			Similarity: toSimilarity(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}
	return results, nil
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullableInt(v int32) pgtype.Int4 {
	return pgtype.Int4{Int32: v, Valid: v != 0}
}
