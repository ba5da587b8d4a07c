package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/jmorgan-dev/docstack/models"
)

// ErrSourceUnreachable is returned when the starting page of a crawl cannot
// be fetched at all.
var ErrSourceUnreachable = errors.New("source unreachable")

// ErrNoteTooShort is returned when a note yields no chunks at or above the
// configured minimum length.
var ErrNoteTooShort = errors.New("note too short to index")

// KnowledgeService defines every operation the HTTP layer delegates to.
type KnowledgeService interface {
	IngestURL(ctx context.Context, req models.IngestURLRequest) (*models.IngestURLResponse, error)
	IngestNote(ctx context.Context, req models.IngestNoteRequest) error
	IngestFile(ctx context.Context, path, hash string) error
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
	ListSources(ctx context.Context) (*models.ListSourcesResponse, error)
	DeleteSource(ctx context.Context, source string) error
	GetAllChunks(ctx context.Context) (*models.ListChunksResponse, error)
	Stats(ctx context.Context) (*models.StatsResponse, error)
}

// KnowledgeServiceConfig carries the tunables the service needs from config.
type KnowledgeServiceConfig struct {
	Chunker        Chunker
	ScrapeMaxDepth int
	ScrapeRate     float64
	ScrapeTimeout  time.Duration
	IgnorePatterns []string
	TopK           int
	MaxHistory     int
	Temperature    float64
	MaxTokens      int
}

// knowledgeServiceImpl holds the collaborators the service needs to do its job.
type knowledgeServiceImpl struct {
	collection chromago.Collection
	embedder   TextEmbedder
	chat       llms.Model
	cfg        KnowledgeServiceConfig

	mu       sync.Mutex
	sessions map[string][]llms.MessageContent
}

// NewKnowledgeService creates the service backing the HTTP API.
func NewKnowledgeService(collection chromago.Collection, embedder TextEmbedder, chat llms.Model, cfg KnowledgeServiceConfig) KnowledgeService {
	return &knowledgeServiceImpl{
		collection: collection,
		embedder:   embedder,
		chat:       chat,
		cfg:        cfg,
		sessions:   make(map[string][]llms.MessageContent),
	}
}

// IngestURL crawls a documentation site, extracts readable text from every
// page, and stores the resulting chunks. Re-ingesting a URL replaces its
// previous chunks.
func (s *knowledgeServiceImpl) IngestURL(ctx context.Context, req models.IngestURLRequest) (*models.IngestURLResponse, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q", req.URL)
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = s.cfg.ScrapeMaxDepth
	}
	scraper, err := NewScraper(ScraperConfig{
		BaseURL:        req.URL,
		MaxDepth:       maxDepth,
		RateLimit:      s.cfg.ScrapeRate,
		Timeout:        s.cfg.ScrapeTimeout,
		IgnorePatterns: s.cfg.IgnorePatterns,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("SERVICE: crawling %s (max depth %d)", req.URL, maxDepth)
	pages, err := scraper.Crawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	if err := s.DeleteSource(ctx, req.URL); err != nil {
		return nil, fmt.Errorf("could not remove previous chunks for %s: %w", req.URL, err)
	}

	var totalChunks, indexedPages int
	for _, page := range pages {
		extracted, err := ExtractReadable(page)
		if err != nil {
			log.Printf("SERVICE: skipping %s: %v", page.URL, err)
			continue
		}
		n, err := s.storeChunks(ctx, chunkOrigin{
			Source:  req.URL,
			PageURL: page.URL,
			Title:   extracted.Title,
		}, extracted.Text)
		if err != nil {
			return nil, fmt.Errorf("could not index %s: %w", page.URL, err)
		}
		if n > 0 {
			indexedPages++
			totalChunks += n
		}
	}

	log.Printf("SERVICE: indexed %d pages (%d chunks) from %s", indexedPages, totalChunks, req.URL)
	return &models.IngestURLResponse{
		Source: req.URL,
		Pages:  indexedPages,
		Chunks: totalChunks,
	}, nil
}

// IngestNote stores a free-text note.
func (s *knowledgeServiceImpl) IngestNote(ctx context.Context, req models.IngestNoteRequest) error {
	title := req.Title
	if title == "" {
		title = "note"
	}
	source := fmt.Sprintf("note:%s", uuid.New().String())

	n, err := s.storeChunks(ctx, chunkOrigin{Source: source, Title: title}, req.Text)
	if err != nil {
		return fmt.Errorf("could not index note: %w", err)
	}
	if n == 0 {
		return ErrNoteTooShort
	}
	log.Printf("SERVICE: indexed note %q (%d chunks)", title, n)
	return nil
}

// IngestFile extracts, chunks, and stores a local file for the notes
// directory indexer. The content hash rides along in metadata so the indexer
// can detect unchanged files.
func (s *knowledgeServiceImpl) IngestFile(ctx context.Context, path, hash string) error {
	text, err := ExtractTextFromFile(path)
	if err != nil {
		return err
	}
	n, err := s.storeChunks(ctx, chunkOrigin{
		Source:      path,
		Title:       path,
		ContentHash: hash,
	}, text)
	if err != nil {
		return err
	}
	log.Printf("SERVICE: indexed file %s (%d chunks)", path, n)
	return nil
}

// Query runs the retrieval-augmented pipeline: embed the question, pull the
// closest chunks, and ask the chat model with those chunks as context.
// Conversation history is kept in memory per session.
func (s *knowledgeServiceImpl) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	docs, err := s.retrieve(ctx, req.Query, topK)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve context: %w", err)
	}

	sessionID, history := s.sessionHistory(req.SessionID)

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, buildUserTurn(req.Query, docs)))

	resp, err := s.chat.GenerateContent(ctx, messages,
		llms.WithTemperature(s.cfg.Temperature),
		llms.WithMaxTokens(s.cfg.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("chat model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat model returned no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Content)

	s.appendHistory(sessionID, req.Query, answer)

	return &models.QueryResponse{
		Answer:     answer,
		SourceDocs: docs,
		SessionID:  sessionID,
	}, nil
}

// sessionHistory returns the session id (minting one when absent) and a copy
// of its history.
func (s *knowledgeServiceImpl) sessionHistory(sessionID string) (string, []llms.MessageContent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" || s.sessions[sessionID] == nil {
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		s.sessions[sessionID] = []llms.MessageContent{}
	}
	history := make([]llms.MessageContent, len(s.sessions[sessionID]))
	copy(history, s.sessions[sessionID])
	return sessionID, history
}

// appendHistory records a completed turn, trimming old turns past the limit.
func (s *knowledgeServiceImpl) appendHistory(sessionID, query, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID],
		llms.TextParts(llms.ChatMessageTypeHuman, query),
		llms.TextParts(llms.ChatMessageTypeAI, answer),
	)
	if limit := s.cfg.MaxHistory; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	s.sessions[sessionID] = history
}

// retrieve embeds the query and asks Chroma for the closest chunks.
func (s *knowledgeServiceImpl) retrieve(ctx context.Context, query string, topK int) ([]models.SourceDocument, error) {
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(queryVector)),
		chromago.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	var docs []models.SourceDocument
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return docs, nil
	}

	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}
		var meta map[string]interface{}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataToMap(metadataGroups[0][i])
		}
		docs = append(docs, models.SourceDocument{
			Text:     doc.ContentString(),
			Metadata: meta,
		})
	}
	return docs, nil
}

// ListSources groups stored chunks by their source and reports counts.
func (s *knowledgeServiceImpl) ListSources(ctx context.Context) (*models.ListSourcesResponse, error) {
	results, err := s.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chroma: %w", err)
	}

	bySource := make(map[string]*models.Source)
	var order []string
	for _, meta := range results.GetMetadatas() {
		m := metadataToMap(meta)
		src, _ := m["source"].(string)
		if src == "" {
			src = "unknown"
		}
		entry, ok := bySource[src]
		if !ok {
			entry = &models.Source{Source: src}
			bySource[src] = entry
			order = append(order, src)
		}
		entry.Chunks++
		if title, _ := m["title"].(string); title != "" && entry.Title == "" {
			entry.Title = title
		}
	}

	sources := make([]models.Source, 0, len(order))
	for _, src := range order {
		sources = append(sources, *bySource[src])
	}
	return &models.ListSourcesResponse{
		Count:   len(sources),
		Sources: sources,
	}, nil
}

// DeleteSource removes every chunk whose source metadata matches.
func (s *knowledgeServiceImpl) DeleteSource(ctx context.Context, source string) error {
	where := chromago.EqString("source", source)
	if err := s.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete chunks for source %s: %w", source, err)
	}
	return nil
}

// GetAllChunks returns every stored chunk with its id and metadata.
func (s *knowledgeServiceImpl) GetAllChunks(ctx context.Context) (*models.ListChunksResponse, error) {
	results, err := s.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chroma: %w", err)
	}

	ids := results.GetIDs()
	documents := results.GetDocuments()
	metadatas := results.GetMetadatas()

	chunks := make([]models.Chunk, 0, len(documents))
	for i := range documents {
		var id string
		if i < len(ids) {
			id = string(ids[i])
		}
		var meta map[string]interface{}
		if i < len(metadatas) {
			meta = metadataToMap(metadatas[i])
		}
		chunks = append(chunks, models.Chunk{
			ID:       id,
			Text:     documents[i].ContentString(),
			Metadata: meta,
		})
	}
	return &models.ListChunksResponse{
		Count:  len(chunks),
		Chunks: chunks,
	}, nil
}

// Stats reports the chunk and source counts.
func (s *knowledgeServiceImpl) Stats(ctx context.Context) (*models.StatsResponse, error) {
	count, err := s.collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count items in collection: %w", err)
	}
	sources, err := s.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	return &models.StatsResponse{
		Chunks:  int(count),
		Sources: sources.Count,
	}, nil
}

// chunkOrigin describes where a batch of chunks came from.
type chunkOrigin struct {
	Source      string
	PageURL     string
	Title       string
	ContentHash string
}

// storeChunks splits text, embeds the chunks, and adds them to the collection
// in one batch. Returns the number of chunks stored.
func (s *knowledgeServiceImpl) storeChunks(ctx context.Context, origin chunkOrigin, text string) (int, error) {
	chunks, err := s.cfg.Chunker.Split(text)
	if err != nil {
		return 0, fmt.Errorf("failed to split text: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, err
	}

	ids, embs, metas := buildChunkRecords(uuid.New().String(), origin, chunks, vectors)

	err = s.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(chunks...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add chunks to chroma: %w", err)
	}
	return len(chunks), nil
}

// buildChunkRecords turns embedded chunks into the ids, embeddings, and
// metadata Chroma stores. Chunk ids are "<docID>-chunk<n>" so chunks of one
// page sort together; every chunk carries the full origin metadata.
func buildChunkRecords(docID string, origin chunkOrigin, chunks []string, vectors [][]float32) ([]chromago.DocumentID, []embeddings.Embedding, []chromago.DocumentMetadata) {
	ids := make([]chromago.DocumentID, len(chunks))
	embs := make([]embeddings.Embedding, len(chunks))
	metas := make([]chromago.DocumentMetadata, len(chunks))
	for i := range chunks {
		ids[i] = chromago.DocumentID(fmt.Sprintf("%s-chunk%d", docID, i))
		embs[i] = embeddings.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute("source", origin.Source),
			chromago.NewStringAttribute("page_url", origin.PageURL),
			chromago.NewStringAttribute("title", origin.Title),
			chromago.NewStringAttribute("content_hash", origin.ContentHash),
			chromago.NewIntAttribute("chunk_num", int64(i)),
		)
	}
	return ids, embs, metas
}

// metadataToMap converts Chroma metadata to a plain map. DocumentMetadata has
// no public accessor for its values; round-tripping through JSON is the
// supported way to flatten it.
func metadataToMap(meta chromago.DocumentMetadata) map[string]interface{} {
	if meta == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		log.Printf("WARN: could not marshal chunk metadata: %v", err)
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		log.Printf("WARN: could not unmarshal chunk metadata: %v", err)
		return map[string]interface{}{}
	}
	return m
}
