package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBatchTarget struct {
	batches  [][]string
	failFrom int
	counter  int
}

func (f *fakeBatchTarget) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := f.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (f *fakeBatchTarget) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if f.failFrom > 0 && len(f.batches)+1 >= f.failFrom {
		return nil, fmt.Errorf("provider overloaded")
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{float32(f.counter)})
		f.counter++
	}
	return out, nil
}

func (f *fakeBatchTarget) ModelName() string { return "fake-embed" }

func makeTexts(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("chunk %d content", i))
	}
	return out
}

func TestBatchEmbedder_SequentialBatchesInOrder(t *testing.T) {
	fake := &fakeBatchTarget{}
	b := NewBatchEmbedder(fake, BatchConfig{BatchSize: 5, Delay: time.Millisecond})

	vectors, err := b.EmbedAll(context.Background(), makeTexts(12), "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, vectors, 12)
	for i, vec := range vectors {
		require.Equal(t, float32(i), vec[0])
	}
	require.Len(t, fake.batches, 3)
	require.Len(t, fake.batches[0], 5)
	require.Len(t, fake.batches[1], 5)
	require.Len(t, fake.batches[2], 2)
}

func TestBatchEmbedder_AbortsOnFailedBatch(t *testing.T) {
	fake := &fakeBatchTarget{failFrom: 2}
	b := NewBatchEmbedder(fake, BatchConfig{BatchSize: 5, Delay: time.Millisecond})

	_, err := b.EmbedAll(context.Background(), makeTexts(12), "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
	require.Contains(t, err.Error(), "embed batch 5-10")
	require.Len(t, fake.batches, 1)
}

func TestBatchEmbedder_TruncatesLongTexts(t *testing.T) {
	fake := &fakeBatchTarget{}
	b := NewBatchEmbedder(fake, BatchConfig{BatchSize: 5, Delay: time.Millisecond, MaxChars: 10})

	_, err := b.EmbedAll(context.Background(), []string{"this text is much longer than ten characters"}, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, "this text ", fake.batches[0][0])
}

func TestBatchEmbedder_EmptyInput(t *testing.T) {
	fake := &fakeBatchTarget{}
	b := NewBatchEmbedder(fake, BatchConfig{})

	vectors, err := b.EmbedAll(context.Background(), nil, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Empty(t, vectors)
	require.Empty(t, fake.batches)
}

func TestBatchEmbedder_CancelledBetweenBatches(t *testing.T) {
	fake := &fakeBatchTarget{}
	b := NewBatchEmbedder(fake, BatchConfig{BatchSize: 2, Delay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := b.EmbedAll(ctx, makeTexts(6), "RETRIEVAL_DOCUMENT")
	require.ErrorIs(t, err, context.Canceled)
}

func TestBatchEmbedder_DefaultConfig(t *testing.T) {
	fake := &fakeBatchTarget{}
	b := NewBatchEmbedder(fake, BatchConfig{})
	require.Equal(t, 5, b.cfg.BatchSize)
	require.Equal(t, 200*time.Millisecond, b.cfg.Delay)
}
