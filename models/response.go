package models

// IngestURLResponse reports what a crawl produced.
type IngestURLResponse struct {
	Source string `json:"source"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

// ListChunksResponse is the payload for the GET /notes endpoint.
type ListChunksResponse struct {
	Count  int     `json:"count"`
	Chunks []Chunk `json:"chunks"`
}

// ListSourcesResponse is the payload for the GET /documents endpoint.
type ListSourcesResponse struct {
	Count   int      `json:"count"`
	Sources []Source `json:"sources"`
}

// QueryResponse carries the generated answer plus the chunks it was grounded on.
type QueryResponse struct {
	Answer     string           `json:"answer"`
	SourceDocs []SourceDocument `json:"source_docs,omitempty"`
	SessionID  string           `json:"sessionID"`
}

// StatsResponse reports index-wide counters.
type StatsResponse struct {
	Chunks  int `json:"chunks"`
	Sources int `json:"sources"`
}
