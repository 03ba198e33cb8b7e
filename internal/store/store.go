package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/pkg/models"
)

// Store keeps the document index in Postgres using pgvector.
type Store struct {
	pool *pgxpool.Pool
}

// DocumentStore defines the methods that the Store must implement.
type DocumentStore interface {
	Migrate(ctx context.Context, dim int) error
	Replace(ctx context.Context, docs []models.Document, vecs [][]float32) error
	Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error)
	Ping(ctx context.Context) error
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  id          TEXT PRIMARY KEY,
  position    INT NOT NULL,
  repo        TEXT NOT NULL,
  repository  TEXT NOT NULL DEFAULT '',
  file        TEXT NOT NULL DEFAULT '',
  lines       INT NOT NULL DEFAULT 0,
  content     TEXT NOT NULL,
  embedding   vector(%d),
  indexed_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS documents_repository_idx
  ON documents (repository);
`

// Migrate creates the documents table for vectors of the given dimension. A
// table built for another dimension is dropped first; every run rewrites it.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	current, err := s.embeddingDim(ctx)
	if err != nil {
		return fmt.Errorf("inspect documents table: %w", err)
	}
	if needsRebuild(current, dim) {
		log.Warn().Int("from", current).Int("to", dim).Msg("embedding dimension changed, recreating documents table")
		if _, err := s.pool.Exec(ctx, `DROP TABLE documents`); err != nil {
			return fmt.Errorf("drop documents: %w", err)
		}
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(schema, dim))
	return err
}

// embeddingDim reports the declared dimension of documents.embedding, or 0
// when the table does not exist.
func (s *Store) embeddingDim(ctx context.Context) (int, error) {
	const q = `
SELECT atttypmod FROM pg_attribute
WHERE attrelid = to_regclass('documents') AND attname = 'embedding' AND NOT attisdropped`
	var typmod int32
	err := s.pool.QueryRow(ctx, q).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return int(typmod), err
}

// needsRebuild reports whether an existing embedding column of dimension
// current cannot hold vectors of dimension dim. pgvector stores the
// dimension as the column typmod; -1 means undeclared.
func needsRebuild(current, dim int) bool {
	return current != 0 && current != dim
}

// Replace swaps the table content for docs in a single transaction, so
// readers see either the old index or the new one.
func (s *Store) Replace(ctx context.Context, docs []models.Document, vecs [][]float32) error {
	if len(docs) != len(vecs) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vecs))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}

	const q = `
		INSERT INTO documents (id, position, repo, repository, file, lines, content, embedding)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	batch := &pgx.Batch{}
	for i, d := range docs {
		batch.Queue(q, d.ID, i, d.Metadata.Repo, d.Metadata.Repository, d.Metadata.File,
			d.Metadata.Lines, d.Content, pgvector.NewVector(vecs[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return tx.Commit(ctx)
}

// Search returns the k documents closest to vec by cosine distance.
// Ties keep index order.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return []models.SearchResult{}, nil
	}

	const q = `
SELECT id, repo, repository, file, lines, content,
       COALESCE(1 - (embedding <=> $1::vector), 0) AS score
FROM documents
ORDER BY score DESC, position ASC
LIMIT $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var d models.Document
		var score float64
		if err := rows.Scan(
			&d.ID, &d.Metadata.Repo, &d.Metadata.Repository, &d.Metadata.File, &d.Metadata.Lines, &d.Content,
			&score,
		); err != nil {
			return nil, err
		}
		out = append(out, models.SearchResult{Document: d, Score: score})
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
