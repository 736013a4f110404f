package client

// Document is an ingested document as returned by the API.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

type SelectRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

type Selection struct {
	DocumentIDs []string `json:"document_ids"`
	Total       int      `json:"total"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
}

// Answer is a generated answer with its provenance.
type Answer struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ProcessedAt string   `json:"processed_at"`
}
