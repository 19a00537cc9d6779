package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/zlynx/assistkb/internal/filestore"
	"github.com/zlynx/assistkb/internal/repo"
)

// StaleIngestCleanupJob removes documents whose ingestion started but never
// completed. A null processed marker older than the age limit means the
// pipeline died mid-flight; the partial chunks, the stored file and the row
// itself are all garbage at that point.
type StaleIngestCleanupJob struct {
	documents *repo.DocumentRepo
	chunks    *repo.ChunkRepo
	files     filestore.Store
	maxAge    time.Duration
}

func NewStaleIngestCleanupJob(documents *repo.DocumentRepo, chunks *repo.ChunkRepo, files filestore.Store, maxAge time.Duration) *StaleIngestCleanupJob {
	return &StaleIngestCleanupJob{documents: documents, chunks: chunks, files: files, maxAge: maxAge}
}

func (j *StaleIngestCleanupJob) Name() string {
	return "stale_ingest_cleanup"
}

func (j *StaleIngestCleanupJob) Run(ctx context.Context) error {
	if j.documents == nil || j.chunks == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	cutoff := time.Now().Add(-maxAge).Unix()
	logger := logutil.GetLogger(ctx)

	stale, err := j.documents.ListUnprocessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	chunksDeleted, err := j.chunks.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return err
	}
	if j.files != nil {
		for _, doc := range stale {
			if doc.FileKey == "" {
				continue
			}
			if err := j.files.Delete(ctx, doc.FileKey); err != nil {
				logger.Warn("failed to delete stale file", zap.String("file_key", doc.FileKey), zap.Error(err))
			}
		}
	}
	docsDeleted, err := j.documents.DeleteUnprocessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logger.Info("stale ingests cleaned",
		zap.Int64("chunks", chunksDeleted),
		zap.Int64("documents", docsDeleted),
	)
	return nil
}
