package models

import "time"

// Page is a raw HTML page fetched by the crawler, before extraction.
type Page struct {
	URL       string
	HTML      string
	Depth     int
	FetchedAt time.Time
}

// Chunk represents a single stored piece of text in the vector database.
type Chunk struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SourceDocument represents a retrieved chunk of text and its origin.
type SourceDocument struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Source summarizes an indexed origin: a scraped URL, a note, or a local file.
type Source struct {
	Source string `json:"source"`
	Title  string `json:"title,omitempty"`
	Chunks int    `json:"chunks"`
}
