package models

// IngestURLRequest submits a documentation URL for crawling and indexing.
type IngestURLRequest struct {
	URL      string `json:"url" binding:"required"`
	MaxDepth int    `json:"maxDepth,omitempty"`
}

// IngestNoteRequest submits free text for indexing.
type IngestNoteRequest struct {
	Text  string `json:"text" binding:"required"`
	Title string `json:"title,omitempty"`
}

// DeleteSourceRequest removes every chunk belonging to a source.
type DeleteSourceRequest struct {
	URL string `json:"url" binding:"required"`
}

// QueryRequest asks a question against the knowledge base.
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionID,omitempty"`
	TopK      int    `json:"topK,omitempty"`
}
