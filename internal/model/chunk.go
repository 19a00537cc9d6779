package model

type Chunk struct {
	ID          int64     `json:"id"`
	DocumentID  string    `json:"document_id"`
	AssistantID string    `json:"assistant_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}

// ChunkMatch is a similarity-search hit: chunk content plus its score
// against the query vector.
type ChunkMatch struct {
	ID         int64   `json:"id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
