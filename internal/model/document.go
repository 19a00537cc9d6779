package model

type Document struct {
	ID          string `json:"id"`
	AssistantID string `json:"assistant_id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	FileKey     string `json:"file_key"`
	// ProcessedAt stays 0 until ingestion stored every chunk of the document.
	ProcessedAt int64 `json:"processed_at"`
	Ctime       int64 `json:"ctime"`
}
