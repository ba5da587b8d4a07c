package config

import (
	"fmt"
	"net/url"
)

// ValidationError describes a single invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !validHTTPURL(c.LLM.BaseURL) {
		errs = append(errs, ValidationError{
			Field:   "llm.base_url",
			Message: "must be a valid http(s) URL",
		})
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be positive",
		})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}
	if c.LLM.EmbedWorkers < 1 {
		errs = append(errs, ValidationError{
			Field:   "llm.embed_workers",
			Message: "embed_workers must be positive",
		})
	}

	if !validHTTPURL(c.Chroma.URL) {
		errs = append(errs, ValidationError{
			Field:   "chroma.url",
			Message: "must be a valid http(s) URL",
		})
	}
	if c.Chroma.Collection == "" {
		errs = append(errs, ValidationError{
			Field:   "chroma.collection",
			Message: "collection name is required",
		})
	}

	if c.Scraper.MaxDepth < 1 {
		errs = append(errs, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}
	if c.Scraper.RateLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}
	if c.Scraper.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "scraper.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Chunker.ChunkSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Query.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "query.top_k",
			Message: "top_k must be positive",
		})
	}

	return errs
}

// validHTTPURL reports whether raw parses as an absolute http(s) URL with a
// host. url.Parse alone accepts nearly any string.
func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
