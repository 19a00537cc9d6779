package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/zlynx/assistkb/internal/model"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

type ChunkRepo struct {
	db  *sql.DB
	dim int
}

// NewChunkRepo binds the repo to the store's fixed embedding dimensionality;
// vectors of any other length are rejected before they reach the database.
func NewChunkRepo(db *sql.DB, dim int) *ChunkRepo {
	return &ChunkRepo{db: db, dim: dim}
}

func (r *ChunkRepo) Insert(ctx context.Context, chunk *model.Chunk) error {
	if len(chunk.Embedding) != r.dim {
		return fmt.Errorf("%w: got %d, store uses %d", appErr.ErrDimMismatch, len(chunk.Embedding), r.dim)
	}
	const query = `
		INSERT INTO knowledge_chunks (document_id, assistant_id, chunk_index, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.DocumentID,
		chunk.AssistantID,
		chunk.ChunkIndex,
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
		chunk.Ctime,
	)
	return err
}

// Search returns up to k chunks owned by assistantID whose cosine similarity
// to queryVec exceeds threshold, best first. Ties break on chunk id so the
// ordering is deterministic.
func (r *ChunkRepo) Search(ctx context.Context, queryVec []float32, assistantID string, threshold float64, k int) ([]model.ChunkMatch, error) {
	if len(queryVec) != r.dim {
		return nil, fmt.Errorf("%w: got %d, store uses %d", appErr.ErrDimMismatch, len(queryVec), r.dim)
	}
	const query = `
		SELECT id, document_id, content, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_chunks
		WHERE assistant_id = $2 AND 1 - (embedding <=> $1) > $3
		ORDER BY embedding <=> $1, id
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(queryVec), assistantID, threshold, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ChunkMatch
	for rows.Next() {
		var item model.ChunkMatch
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Content, &item.Similarity); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	const query = `
		SELECT id, document_id, assistant_id, chunk_index, content, embedding, ctime
		FROM knowledge_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Chunk
	for rows.Next() {
		var item model.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.AssistantID, &item.ChunkIndex, &item.Content, &embedding, &item.Ctime); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, assistantID, documentID string) (int64, error) {
	const query = `DELETE FROM knowledge_chunks WHERE assistant_id = $1 AND document_id = $2`
	res, err := r.db.ExecContext(ctx, query, assistantID, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) DeleteByAssistant(ctx context.Context, assistantID string) (int64, error) {
	const query = `DELETE FROM knowledge_chunks WHERE assistant_id = $1`
	res, err := r.db.ExecContext(ctx, query, assistantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOrphans removes chunk rows of documents that never completed
// ingestion (processed_at still null) and were created before cutoff. A
// request that died mid-pipeline can leave such rows behind.
func (r *ChunkRepo) DeleteOrphans(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM knowledge_chunks c
		USING documents d
		WHERE c.document_id = d.id AND d.processed_at IS NULL AND d.ctime < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
