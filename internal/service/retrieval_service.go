package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/zlynx/assistkb/internal/ai"
	"github.com/zlynx/assistkb/internal/config"
	"github.com/zlynx/assistkb/internal/model"
)

// Default terms marking a question as knowledge-directed. This is a coarse
// intent classifier; the list is overridable through config rather than
// baked in.
var defaultKnowledgeKeywords = []string{
	"document", "documents", "doc", "docs", "file", "files", "pdf", "pdfs",
	"upload", "uploaded", "attachment", "attached", "knowledge",
}

type chunkSearcher interface {
	Search(ctx context.Context, queryVec []float32, assistantID string, threshold float64, k int) ([]model.ChunkMatch, error)
}

type documentLister interface {
	ListByAssistant(ctx context.Context, assistantID string) ([]model.Document, error)
}

type RetrievalService struct {
	embedder  ai.IEmbedder
	generator ai.IGenerator
	chunks    chunkSearcher
	documents documentLister
	cfg       config.RetrievalConfig
	keywords  map[string]bool
}

func NewRetrievalService(
	embedder ai.IEmbedder,
	generator ai.IGenerator,
	chunks chunkSearcher,
	documents documentLister,
	cfg config.RetrievalConfig,
) *RetrievalService {
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = defaultKnowledgeKeywords
	}
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = true
	}
	return &RetrievalService{
		embedder:  embedder,
		generator: generator,
		chunks:    chunks,
		documents: documents,
		cfg:       cfg,
		keywords:  set,
	}
}

type RetrievalResult struct {
	Matches           []model.ChunkMatch `json:"matches"`
	DocumentNames     []string           `json:"document_names,omitempty"`
	KnowledgeDirected bool               `json:"knowledge_directed"`
}

// Retrieve embeds the question and pulls the most relevant chunks for the
// assistant. Knowledge-directed questions get a wider net: looser threshold,
// more results. When nothing clears the threshold the assistant's document
// names are returned instead so the caller can say what is available rather
// than answer ungrounded.
func (s *RetrievalService) Retrieve(ctx context.Context, assistantID, question string) (*RetrievalResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("assistant_id", assistantID))

	directed := s.isKnowledgeDirected(question)
	threshold := s.cfg.Threshold
	topK := s.cfg.TopK
	if directed {
		threshold = s.cfg.WideThreshold
		topK = s.cfg.WideTopK
	}

	queryVec, err := s.embedder.Embed(ctx, question, taskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.chunks.Search(ctx, queryVec, assistantID, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	logger.Debug("retrieval done",
		zap.Bool("knowledge_directed", directed),
		zap.Float64("threshold", threshold),
		zap.Int("matches", len(matches)),
	)

	result := &RetrievalResult{Matches: matches, KnowledgeDirected: directed}
	if len(matches) == 0 {
		docs, err := s.documents.ListByAssistant(ctx, assistantID)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range docs {
			result.DocumentNames = append(result.DocumentNames, doc.Name)
		}
	}
	return result, nil
}

type AnswerResult struct {
	Answer    string           `json:"answer"`
	Retrieval *RetrievalResult `json:"retrieval"`
}

// Answer retrieves grounding context and asks the generator for a response
// framed by the assistant's instructions.
func (s *RetrievalService) Answer(ctx context.Context, assistant *model.Assistant, question string) (*AnswerResult, error) {
	if s.generator == nil {
		return nil, ai.ErrUnavailable
	}
	retrieval, err := s.Retrieve(ctx, assistant.ID, question)
	if err != nil {
		return nil, err
	}
	prompt := buildPrompt(assistant.Instructions, retrieval, question)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &AnswerResult{Answer: strings.TrimSpace(answer), Retrieval: retrieval}, nil
}

func (s *RetrievalService) isKnowledgeDirected(question string) bool {
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if s.keywords[word] {
			return true
		}
	}
	return false
}

func buildPrompt(instructions string, retrieval *RetrievalResult, question string) string {
	var sb strings.Builder
	if strings.TrimSpace(instructions) != "" {
		sb.WriteString(strings.TrimSpace(instructions))
		sb.WriteString("\n\n")
	}
	if len(retrieval.Matches) > 0 {
		sb.WriteString("Use the following passages from the user's documents to ground your answer:\n\n")
		for i, m := range retrieval.Matches {
			sb.WriteString(fmt.Sprintf("[passage %d]\n%s\n\n", i+1, m.Content))
		}
	} else if len(retrieval.DocumentNames) > 0 {
		sb.WriteString("No passage in the user's documents matched the question. Available documents: ")
		sb.WriteString(strings.Join(retrieval.DocumentNames, ", "))
		sb.WriteString(". Tell the user what is available instead of guessing.\n\n")
	}
	sb.WriteString("QUESTION:\n")
	sb.WriteString(question)
	return sb.String()
}
