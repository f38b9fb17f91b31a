// Package doctrine stores and searches the doctrine corpus.
//
// The corpus lives in PostgreSQL with pgvector: documents own chunks,
// each chunk carries a 768-dimension embedding and a full-text index
// column. The package exposes three search shapes over it: pure vector
// similarity with a hard distance cutoff, keyword full-text search, and
// a hybrid of the two fused with Reciprocal Rank Fusion.
package doctrine
