package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zlynx/assistkb/internal/config"
	"github.com/zlynx/assistkb/internal/filestore"
	"github.com/zlynx/assistkb/internal/model"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
)

type fakeChunkWriter struct {
	mu         sync.Mutex
	inserted   []*model.Chunk
	failInsert bool
	byDocument int64
	byAll      int64
}

func (f *fakeChunkWriter) Insert(ctx context.Context, chunk *model.Chunk) error {
	if f.failInsert {
		return fmt.Errorf("insert failed")
	}
	f.mu.Lock()
	f.inserted = append(f.inserted, chunk)
	f.mu.Unlock()
	return nil
}

func (f *fakeChunkWriter) DeleteByDocument(ctx context.Context, assistantID, documentID string) (int64, error) {
	return f.byDocument, nil
}

func (f *fakeChunkWriter) DeleteByAssistant(ctx context.Context, assistantID string) (int64, error) {
	return f.byAll, nil
}

type fakeDocumentStore struct {
	created    []*model.Document
	processed  map[string]bool
	failCreate bool
	docs       []model.Document
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *model.Document) error {
	if f.failCreate {
		return fmt.Errorf("create failed")
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocumentStore) MarkProcessed(ctx context.Context, assistantID, docID string, ts int64) error {
	if f.processed == nil {
		f.processed = make(map[string]bool)
	}
	f.processed[docID] = true
	return nil
}

func (f *fakeDocumentStore) GetByID(ctx context.Context, assistantID, docID string) (*model.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == docID {
			return &f.docs[i], nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeDocumentStore) ListByAssistant(ctx context.Context, assistantID string) ([]model.Document, error) {
	return f.docs, nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, assistantID, docID string) (int64, error) {
	return 1, nil
}

func (f *fakeDocumentStore) DeleteByAssistant(ctx context.Context, assistantID string) (int64, error) {
	return int64(len(f.docs)), nil
}

type fakeBatchEmbedder struct {
	dim   int
	calls int
}

func (f *fakeBatchEmbedder) EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, make([]float32, f.dim))
	}
	return out, nil
}

type fakeFileStore struct {
	saved      map[string]int64
	deleted    []string
	failDelete map[string]bool
}

func (f *fakeFileStore) Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error {
	if f.saved == nil {
		f.saved = make(map[string]int64)
	}
	f.saved[key] = size
	return nil
}

func (f *fakeFileStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return fmt.Errorf("delete failed")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func testIngestService(chunks *fakeChunkWriter, docs *fakeDocumentStore, embedder *fakeBatchEmbedder, files *fakeFileStore) *IngestService {
	return NewIngestService(chunks, docs, embedder, files,
		config.ExtractConfig{MinTextChars: 60, MinLetterRatio: 0.45, MinVowelRatio: 0.18, MaxDigitRatio: 0.45},
		config.ChunkConfig{MaxChars: 1800, MinChars: 60},
		3,
	)
}

func prosePDF(n int) []byte {
	const sentence = "The agreement covers support and maintenance for every deployed system. "
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\nBT (")
	for sb.Len() < n {
		sb.WriteString(sentence)
	}
	sb.WriteString(") Tj ET")
	return []byte(sb.String())
}

func TestIngest_Success(t *testing.T) {
	chunks := &fakeChunkWriter{}
	docs := &fakeDocumentStore{}
	embedder := &fakeBatchEmbedder{dim: 3}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, embedder, files)

	result, err := svc.Ingest(context.Background(), "a1", "contract.pdf", prosePDF(400))
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentID)
	require.Equal(t, len(chunks.inserted), result.ChunkCount)
	require.Greater(t, result.ChunkCount, 0)
	require.True(t, docs.processed[result.DocumentID])
	require.Contains(t, files.saved, result.DocumentID+".pdf")
	for _, c := range chunks.inserted {
		require.Equal(t, "a1", c.AssistantID)
		require.Equal(t, result.DocumentID, c.DocumentID)
		require.Len(t, c.Embedding, 3)
	}
}

func TestIngest_RejectsDigitHeavyText(t *testing.T) {
	chunks := &fakeChunkWriter{}
	docs := &fakeDocumentStore{}
	embedder := &fakeBatchEmbedder{dim: 3}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, embedder, files)

	data := []byte("BT (" + strings.Repeat("4417 1234 5678 9113 c 8049 ", 10) + ") Tj ET")
	_, err := svc.Ingest(context.Background(), "a1", "dump.pdf", data)
	require.ErrorIs(t, err, appErr.ErrUnreadableText)
	require.Empty(t, docs.created)
	require.Empty(t, files.saved)
	require.Zero(t, embedder.calls)
}

func TestIngest_RejectsUnextractable(t *testing.T) {
	svc := testIngestService(&fakeChunkWriter{}, &fakeDocumentStore{}, &fakeBatchEmbedder{dim: 3}, &fakeFileStore{})
	_, err := svc.Ingest(context.Background(), "a1", "junk.pdf", []byte{0x01, 0x02, 0x03})
	require.ErrorIs(t, err, appErr.ErrUnextractable)
}

func TestIngest_DimensionMismatchLeavesUnprocessed(t *testing.T) {
	chunks := &fakeChunkWriter{}
	docs := &fakeDocumentStore{}
	embedder := &fakeBatchEmbedder{dim: 2}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, embedder, files)

	_, err := svc.Ingest(context.Background(), "a1", "contract.pdf", prosePDF(400))
	require.ErrorIs(t, err, appErr.ErrDimMismatch)
	require.Empty(t, chunks.inserted)
	require.Empty(t, docs.processed)
}

func TestIngest_InsertFailureLeavesUnprocessed(t *testing.T) {
	chunks := &fakeChunkWriter{failInsert: true}
	docs := &fakeDocumentStore{}
	embedder := &fakeBatchEmbedder{dim: 3}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, embedder, files)

	_, err := svc.Ingest(context.Background(), "a1", "contract.pdf", prosePDF(400))
	require.Error(t, err)
	require.Empty(t, docs.processed)
}

func TestIngest_CreateFailureRemovesFile(t *testing.T) {
	chunks := &fakeChunkWriter{}
	docs := &fakeDocumentStore{failCreate: true}
	embedder := &fakeBatchEmbedder{dim: 3}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, embedder, files)

	_, err := svc.Ingest(context.Background(), "a1", "contract.pdf", prosePDF(400))
	require.Error(t, err)
	require.Len(t, files.deleted, 1)
}

func TestPurge_ScopedToDocument(t *testing.T) {
	chunks := &fakeChunkWriter{byDocument: 4, byAll: 9}
	svc := testIngestService(chunks, &fakeDocumentStore{}, &fakeBatchEmbedder{dim: 3}, &fakeFileStore{})

	result, err := svc.Purge(context.Background(), "a1", "d1")
	require.NoError(t, err)
	require.Equal(t, int64(4), result.Chunks)

	result, err = svc.Purge(context.Background(), "a1", "")
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Chunks)
}

func TestReset_ToleratesFileDeleteFailure(t *testing.T) {
	chunks := &fakeChunkWriter{byAll: 7}
	docs := &fakeDocumentStore{docs: []model.Document{
		{ID: "d1", FileKey: "d1.pdf"},
		{ID: "d2", FileKey: "d2.pdf"},
	}}
	files := &fakeFileStore{failDelete: map[string]bool{"d1.pdf": true}}
	svc := testIngestService(chunks, docs, &fakeBatchEmbedder{dim: 3}, files)

	result, err := svc.Reset(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, int64(7), result.Chunks)
	require.Equal(t, int64(2), result.Documents)
	require.Equal(t, int64(1), result.Files)
	require.Equal(t, []string{"d2.pdf"}, files.deleted)
}

func TestDeleteDocument(t *testing.T) {
	chunks := &fakeChunkWriter{byDocument: 3}
	docs := &fakeDocumentStore{docs: []model.Document{{ID: "d1", FileKey: "d1.pdf"}}}
	files := &fakeFileStore{}
	svc := testIngestService(chunks, docs, &fakeBatchEmbedder{dim: 3}, files)

	result, err := svc.DeleteDocument(context.Background(), "a1", "d1")
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Chunks)
	require.Equal(t, int64(1), result.Documents)
	require.Equal(t, int64(1), result.Files)

	_, err = svc.DeleteDocument(context.Background(), "a1", "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
