package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zlynx/assistkb/internal/config"
	"github.com/zlynx/assistkb/internal/model"
)

type fakeQueryEmbedder struct {
	lastTaskType string
	failEmbed    bool
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if f.failEmbed {
		return nil, fmt.Errorf("embed failed")
	}
	f.lastTaskType = taskType
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeQueryEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeQueryEmbedder) ModelName() string { return "fake-embed" }

type fakeSearcher struct {
	threshold float64
	k         int
	matches   []model.ChunkMatch
}

func (f *fakeSearcher) Search(ctx context.Context, queryVec []float32, assistantID string, threshold float64, k int) ([]model.ChunkMatch, error) {
	f.threshold = threshold
	f.k = k
	return f.matches, nil
}

type fakeLister struct {
	docs []model.Document
}

func (f *fakeLister) ListByAssistant(ctx context.Context, assistantID string) ([]model.Document, error) {
	return f.docs, nil
}

type fakeGenerator struct {
	lastPrompt string
	reply      string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, nil
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{Threshold: 0.3, WideThreshold: 0.1, TopK: 5, WideTopK: 8}
}

func TestRetrieve_DefaultThreshold(t *testing.T) {
	embedder := &fakeQueryEmbedder{}
	searcher := &fakeSearcher{matches: []model.ChunkMatch{{ID: 1, Content: "relevant passage"}}}
	svc := NewRetrievalService(embedder, &fakeGenerator{}, searcher, &fakeLister{}, testRetrievalConfig())

	result, err := svc.Retrieve(context.Background(), "a1", "what is the renewal fee?")
	require.NoError(t, err)
	require.False(t, result.KnowledgeDirected)
	require.Equal(t, 0.3, searcher.threshold)
	require.Equal(t, 5, searcher.k)
	require.Len(t, result.Matches, 1)
	require.Empty(t, result.DocumentNames)
	require.Equal(t, "RETRIEVAL_QUERY", embedder.lastTaskType)
}

func TestRetrieve_KnowledgeDirectedWidensSearch(t *testing.T) {
	searcher := &fakeSearcher{matches: []model.ChunkMatch{{ID: 1, Content: "x"}}}
	svc := NewRetrievalService(&fakeQueryEmbedder{}, &fakeGenerator{}, searcher, &fakeLister{}, testRetrievalConfig())

	tests := []struct {
		name     string
		question string
		directed bool
	}{
		{name: "mentions documents", question: "What do my documents say about pricing?", directed: true},
		{name: "mentions pdf with punctuation", question: "summarize the PDF, please", directed: true},
		{name: "mentions upload", question: "did the upload finish", directed: true},
		{name: "generic question", question: "what is the renewal fee", directed: false},
		{name: "substring does not count", question: "the documentation mentions nothing", directed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Retrieve(context.Background(), "a1", tt.question)
			require.NoError(t, err)
			require.Equal(t, tt.directed, result.KnowledgeDirected)
			if tt.directed {
				require.Equal(t, 0.1, searcher.threshold)
				require.Equal(t, 8, searcher.k)
			} else {
				require.Equal(t, 0.3, searcher.threshold)
				require.Equal(t, 5, searcher.k)
			}
		})
	}
}

func TestRetrieve_EmptyMatchesFallBackToDocumentNames(t *testing.T) {
	searcher := &fakeSearcher{}
	lister := &fakeLister{docs: []model.Document{{Name: "contract.pdf"}, {Name: "invoice.pdf"}}}
	svc := NewRetrievalService(&fakeQueryEmbedder{}, &fakeGenerator{}, searcher, lister, testRetrievalConfig())

	result, err := svc.Retrieve(context.Background(), "a1", "what is the renewal fee?")
	require.NoError(t, err)
	require.Empty(t, result.Matches)
	require.Equal(t, []string{"contract.pdf", "invoice.pdf"}, result.DocumentNames)
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	svc := NewRetrievalService(&fakeQueryEmbedder{failEmbed: true}, &fakeGenerator{}, &fakeSearcher{}, &fakeLister{}, testRetrievalConfig())
	_, err := svc.Retrieve(context.Background(), "a1", "anything")
	require.Error(t, err)
}

func TestAnswer_GroundsPromptInMatches(t *testing.T) {
	searcher := &fakeSearcher{matches: []model.ChunkMatch{
		{ID: 1, Content: "The renewal fee is 100 dollars per year."},
		{ID: 2, Content: "Fees are waived for the first year."},
	}}
	generator := &fakeGenerator{reply: "  The fee is 100 dollars.  "}
	svc := NewRetrievalService(&fakeQueryEmbedder{}, generator, searcher, &fakeLister{}, testRetrievalConfig())

	assistant := &model.Assistant{ID: "a1", Instructions: "Answer as a support agent."}
	result, err := svc.Answer(context.Background(), assistant, "what is the renewal fee?")
	require.NoError(t, err)
	require.Equal(t, "The fee is 100 dollars.", result.Answer)
	require.Contains(t, generator.lastPrompt, "Answer as a support agent.")
	require.Contains(t, generator.lastPrompt, "[passage 1]")
	require.Contains(t, generator.lastPrompt, "The renewal fee is 100 dollars per year.")
	require.Contains(t, generator.lastPrompt, "QUESTION:")
	require.Contains(t, generator.lastPrompt, "what is the renewal fee?")
}

func TestAnswer_NoMatchesListsAvailableDocuments(t *testing.T) {
	lister := &fakeLister{docs: []model.Document{{Name: "handbook.pdf"}}}
	generator := &fakeGenerator{reply: "I only have handbook.pdf on file."}
	svc := NewRetrievalService(&fakeQueryEmbedder{}, generator, &fakeSearcher{}, lister, testRetrievalConfig())

	result, err := svc.Answer(context.Background(), &model.Assistant{ID: "a1"}, "what about vacations?")
	require.NoError(t, err)
	require.Contains(t, generator.lastPrompt, "Available documents: handbook.pdf")
	require.Equal(t, "I only have handbook.pdf on file.", result.Answer)
	require.Equal(t, []string{"handbook.pdf"}, result.Retrieval.DocumentNames)
}

func TestRetrieve_CustomKeywords(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.Keywords = []string{"manual"}
	searcher := &fakeSearcher{matches: []model.ChunkMatch{{ID: 1, Content: "x"}}}
	svc := NewRetrievalService(&fakeQueryEmbedder{}, &fakeGenerator{}, searcher, &fakeLister{}, cfg)

	result, err := svc.Retrieve(context.Background(), "a1", "check the manual")
	require.NoError(t, err)
	require.True(t, result.KnowledgeDirected)

	result, err = svc.Retrieve(context.Background(), "a1", "check the documents")
	require.NoError(t, err)
	require.False(t, result.KnowledgeDirected)
}
