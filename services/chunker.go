package services

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunker splits extracted text into overlapping pieces sized for embedding.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	MinLength    int
}

// Split breaks text into chunks. Chunks shorter than MinLength are dropped;
// navigation crumbs and stray headings are not worth an embedding.
func (c Chunker) Split(text string) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.ChunkSize),
		textsplitter.WithChunkOverlap(c.ChunkOverlap),
	)
	raw, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(raw))
	for _, chunk := range raw {
		chunk = strings.TrimSpace(chunk)
		if len(chunk) >= c.MinLength {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}
