package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type BatchConfig struct {
	BatchSize int
	Delay     time.Duration
	MaxChars  int
}

// BatchEmbedder feeds texts to an embedder in small sequential batches with
// a fixed pause between them, the blunt-but-global-state-free way of staying
// under provider rate limits. A failed batch aborts the whole run.
type BatchEmbedder struct {
	next IEmbedder
	cfg  BatchConfig
}

func NewBatchEmbedder(next IEmbedder, cfg BatchConfig) *BatchEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 200 * time.Millisecond
	}
	return &BatchEmbedder{next: next, cfg: cfg}
}

// EmbedAll returns one vector per input text, in input order. Batch N+1 only
// starts after batch N completed.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if b.next == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx)
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := make([]string, 0, end-start)
		for _, text := range texts[start:end] {
			batch = append(batch, b.truncate(text))
		}
		res, err := b.next.EmbedBatch(ctx, batch, taskType)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(res) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: expected %d vectors, got %d", start, end, len(batch), len(res))
		}
		vectors = append(vectors, res...)
		logger.Debug("embed batch done", zap.Int("start", start), zap.Int("count", len(batch)))
		if end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.cfg.Delay):
			}
		}
	}
	return vectors, nil
}

func (b *BatchEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if b.next == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return b.next.Embed(ctx, b.truncate(text), taskType)
}

func (b *BatchEmbedder) ModelName() string {
	if b.next == nil {
		return ""
	}
	return b.next.ModelName()
}

// truncate bounds a single text before submission. The chunker already caps
// chunk size below MaxChars, so this rarely fires.
func (b *BatchEmbedder) truncate(text string) string {
	if b.cfg.MaxChars > 0 && len(text) > b.cfg.MaxChars {
		return text[:b.cfg.MaxChars]
	}
	return text
}
