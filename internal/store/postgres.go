package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore searches a pgvector-backed documents table directly.
type PostgresStore struct {
	db     DBTX
	logger *slog.Logger
}

func NewPostgresStore(db DBTX, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "postgres_store"),
	}
}

const matchDocumentsSQL = `SELECT id::text, content, source_url, similarity FROM match_documents($1, $2, $3)`

const insertDocumentSQL = `INSERT INTO documents (id, content, source_url, embedding) VALUES ($1, $2, $3, $4)`

var _ DocumentMatcher = (*PostgresStore)(nil)

// MatchDocuments implements DocumentMatcher.
func (s *PostgresStore) MatchDocuments(ctx context.Context, embedding []float32, threshold float64, count int) ([]RetrievedDocument, error) {
	rows, err := s.db.Query(ctx, matchDocumentsSQL, pgvector.NewVector(embedding), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}
	defer rows.Close()

	var docs []RetrievedDocument
	for rows.Next() {
		var (
			doc       RetrievedDocument
			sourceURL pgtype.Text
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &sourceURL, &doc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan matched document: %w", err)
		}
		doc.SourceURL = sourceURL.String
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}
	return docs, nil
}

// InsertDocument stores a document and its embedding, returning the generated id.
func (s *PostgresStore) InsertDocument(ctx context.Context, content, sourceURL string, embedding []float32) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, insertDocumentSQL,
		pgtype.UUID{Bytes: id, Valid: true},
		content,
		pgtype.Text{String: sourceURL, Valid: sourceURL != ""},
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert document: %w", err)
	}
	s.logger.DebugContext(ctx, "Document inserted", "id", id, "source_url", sourceURL)
	return id, nil
}
