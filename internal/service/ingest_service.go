package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/zlynx/assistkb/internal/config"
	"github.com/zlynx/assistkb/internal/extract"
	"github.com/zlynx/assistkb/internal/filestore"
	"github.com/zlynx/assistkb/internal/model"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

// taskTypeDocument/taskTypeQuery are the embedding task hints understood by
// providers that distinguish the two sides of retrieval.
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

type chunkWriter interface {
	Insert(ctx context.Context, chunk *model.Chunk) error
	DeleteByDocument(ctx context.Context, assistantID, documentID string) (int64, error)
	DeleteByAssistant(ctx context.Context, assistantID string) (int64, error)
}

type documentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	MarkProcessed(ctx context.Context, assistantID, docID string, ts int64) error
	GetByID(ctx context.Context, assistantID, docID string) (*model.Document, error)
	ListByAssistant(ctx context.Context, assistantID string) ([]model.Document, error)
	Delete(ctx context.Context, assistantID, docID string) (int64, error)
	DeleteByAssistant(ctx context.Context, assistantID string) (int64, error)
}

type batchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

type fileStore interface {
	Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error
	Delete(ctx context.Context, key string) error
}

type IngestService struct {
	chunks     chunkWriter
	documents  documentStore
	embedder   batchEmbedder
	files      fileStore
	extractCfg config.ExtractConfig
	chunkCfg   config.ChunkConfig
	embedDim   int
}

func NewIngestService(
	chunks chunkWriter,
	documents documentStore,
	embedder batchEmbedder,
	files fileStore,
	extractCfg config.ExtractConfig,
	chunkCfg config.ChunkConfig,
	embedDim int,
) *IngestService {
	return &IngestService{
		chunks:     chunks,
		documents:  documents,
		embedder:   embedder,
		files:      files,
		extractCfg: extractCfg,
		chunkCfg:   chunkCfg,
		embedDim:   embedDim,
	}
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingest runs the full pipeline on raw document bytes: extract, validate,
// chunk, embed in sequential batches, then insert all chunks concurrently
// and stamp the document processed. Every failure before the stamp leaves
// the document retriable (processed_at null); nothing partial is ever
// reported as success.
func (s *IngestService) Ingest(ctx context.Context, assistantID, docName string, data []byte) (*IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("assistant_id", assistantID),
		zap.String("doc_name", docName),
		zap.Int("size", len(data)),
	)

	rawText, err := extract.Extract(data)
	if err != nil {
		logger.Warn("extraction failed", zap.Error(err))
		return nil, fmt.Errorf("extract document: %w", err)
	}
	text, err := extract.Clean(rawText, docName, s.extractCfg)
	if err != nil {
		logger.Warn("validation failed", zap.Error(err), zap.Int("raw_len", len(rawText)))
		return nil, fmt.Errorf("validate document text: %w", err)
	}
	chunks := extract.SplitChunks(text, s.chunkCfg)
	if len(chunks) == 0 {
		logger.Warn("no usable chunks after filtering", zap.Int("text_len", len(text)))
		return nil, fmt.Errorf("validate document text: %w", extract.ErrNoChunks)
	}

	docID := newID()
	fileKey := docID + ".pdf"
	if err := s.files.Save(ctx, fileKey, nopSeekCloser(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store document file: %w", err)
	}
	doc := &model.Document{
		ID:          docID,
		AssistantID: assistantID,
		Name:        docName,
		Size:        int64(len(data)),
		FileKey:     fileKey,
		Ctime:       time.Now().Unix(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if delErr := s.files.Delete(ctx, fileKey); delErr != nil {
			logger.Warn("failed to remove file after create error", zap.Error(delErr))
		}
		return nil, fmt.Errorf("create document row: %w", err)
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := s.embedder.EmbedAll(ctx, texts, taskTypeDocument)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	for i, vec := range vectors {
		if len(vec) != s.embedDim {
			return nil, fmt.Errorf("embed chunks: chunk %d: %w", i, errDim(len(vec), s.embedDim))
		}
	}

	if err := s.insertChunks(ctx, assistantID, docID, chunks, vectors); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	if err := s.documents.MarkProcessed(ctx, assistantID, docID, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("mark document processed: %w", err)
	}
	logger.Info("document ingested", zap.String("doc_id", docID), zap.Int("chunks", len(chunks)))
	return &IngestResult{DocumentID: docID, ChunkCount: len(chunks)}, nil
}

// insertChunks issues all inserts in parallel and waits for the group; the
// writes are independent rows keyed by distinct ordinals. Any single failure
// fails the ingestion.
func (s *IngestService) insertChunks(ctx context.Context, assistantID, docID string, chunks []extract.Chunk, vectors [][]float32) error {
	now := time.Now().Unix()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range chunks {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := s.chunks.Insert(ctx, &model.Chunk{
				DocumentID:  docID,
				AssistantID: assistantID,
				ChunkIndex:  chunks[idx].Index,
				Content:     chunks[idx].Text,
				Embedding:   vectors[idx],
				Ctime:       now,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

type PurgeResult struct {
	Chunks int64 `json:"chunks"`
}

// Purge deletes chunk rows for the assistant, optionally narrowed to one
// document.
func (s *IngestService) Purge(ctx context.Context, assistantID, documentID string) (*PurgeResult, error) {
	var deleted int64
	var err error
	if documentID != "" {
		deleted, err = s.chunks.DeleteByDocument(ctx, assistantID, documentID)
	} else {
		deleted, err = s.chunks.DeleteByAssistant(ctx, assistantID)
	}
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("chunks purged",
		zap.String("assistant_id", assistantID),
		zap.String("document_id", documentID),
		zap.Int64("deleted", deleted),
	)
	return &PurgeResult{Chunks: deleted}, nil
}

type ResetResult struct {
	Chunks    int64 `json:"chunks"`
	Documents int64 `json:"documents"`
	Files     int64 `json:"files"`
}

// Reset wipes the assistant's whole knowledge base: chunk rows, document
// rows and backing files. Storage deletion errors are logged and skipped;
// the database rows go regardless, so DB state never points at a file whose
// deletion was already requested.
func (s *IngestService) Reset(ctx context.Context, assistantID string) (*ResetResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("assistant_id", assistantID))
	docs, err := s.documents.ListByAssistant(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	chunksDeleted, err := s.chunks.DeleteByAssistant(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	var filesDeleted int64
	for _, doc := range docs {
		if doc.FileKey == "" {
			continue
		}
		if err := s.files.Delete(ctx, doc.FileKey); err != nil {
			logger.Warn("failed to delete stored file", zap.String("file_key", doc.FileKey), zap.Error(err))
			continue
		}
		filesDeleted++
	}
	docsDeleted, err := s.documents.DeleteByAssistant(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	logger.Info("knowledge base reset",
		zap.Int64("chunks", chunksDeleted),
		zap.Int64("documents", docsDeleted),
		zap.Int64("files", filesDeleted),
	)
	return &ResetResult{Chunks: chunksDeleted, Documents: docsDeleted, Files: filesDeleted}, nil
}

// DeleteDocument removes one document: its chunks, its stored file
// (tolerated on failure) and its row.
func (s *IngestService) DeleteDocument(ctx context.Context, assistantID, docID string) (*ResetResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("assistant_id", assistantID), zap.String("doc_id", docID))
	doc, err := s.documents.GetByID(ctx, assistantID, docID)
	if err != nil {
		return nil, err
	}
	chunksDeleted, err := s.chunks.DeleteByDocument(ctx, assistantID, docID)
	if err != nil {
		return nil, err
	}
	var filesDeleted int64
	if doc.FileKey != "" {
		if err := s.files.Delete(ctx, doc.FileKey); err != nil {
			logger.Warn("failed to delete stored file", zap.String("file_key", doc.FileKey), zap.Error(err))
		} else {
			filesDeleted = 1
		}
	}
	docsDeleted, err := s.documents.Delete(ctx, assistantID, docID)
	if err != nil {
		return nil, err
	}
	return &ResetResult{Chunks: chunksDeleted, Documents: docsDeleted, Files: filesDeleted}, nil
}

func errDim(got, want int) error {
	return fmt.Errorf("%w: got %d, store uses %d", appErr.ErrDimMismatch, got, want)
}

type byteSeekCloser struct {
	*bytes.Reader
}

func (byteSeekCloser) Close() error { return nil }

func nopSeekCloser(data []byte) filestore.ReadSeekCloser {
	return byteSeekCloser{bytes.NewReader(data)}
}
