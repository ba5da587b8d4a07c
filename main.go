package main

import (
	"context"
	"log"
	"os"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/jmorgan-dev/docstack/config"
	"github.com/jmorgan-dev/docstack/controller"
	"github.com/jmorgan-dev/docstack/services"
)

func main() {
	cfg, err := config.Load(os.Getenv("DOCSTACK_CONFIG"))
	if err != nil {
		log.Fatalf("FATAL: Failed to load config: %v", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("CONFIG: %v", e)
		}
		log.Fatal("FATAL: Invalid configuration")
	}

	// Chroma client and collection.
	chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.Chroma.URL))
	if err != nil {
		log.Fatalf("FATAL: Failed to create chroma client: %v", err)
	}
	defer func() {
		if err := chromaClient.Close(); err != nil {
			log.Printf("Warning: Failed to close chroma client: %v", err)
		}
	}()

	collection, err := getOrCreateCollection(chromaClient, cfg.Chroma.Collection)
	if err != nil {
		log.Fatalf("FATAL: Failed to get or create collection: %v", err)
	}

	// Local model clients.
	embedder, err := services.NewEmbedder(cfg.LLM.BaseURL, cfg.LLM.EmbedModel, cfg.LLM.EmbedWorkers)
	if err != nil {
		log.Fatalf("FATAL: Failed to create embedder: %v", err)
	}
	chatModel, err := ollama.New(
		ollama.WithModel(cfg.LLM.ChatModel),
		ollama.WithServerURL(cfg.LLM.BaseURL),
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to create chat model: %v", err)
	}
	log.Printf("Connected to Ollama at %s (chat: %s, embed: %s)",
		cfg.LLM.BaseURL, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)

	svc := services.NewKnowledgeService(collection, embedder, chatModel, services.KnowledgeServiceConfig{
		Chunker: services.Chunker{
			ChunkSize:    cfg.Chunker.ChunkSize,
			ChunkOverlap: cfg.Chunker.ChunkOverlap,
			MinLength:    cfg.Chunker.MinLength,
		},
		ScrapeMaxDepth: cfg.Scraper.MaxDepth,
		ScrapeRate:     cfg.Scraper.RateLimit,
		ScrapeTimeout:  time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
		IgnorePatterns: cfg.Scraper.IgnorePatterns,
		TopK:           cfg.Query.TopK,
		MaxHistory:     cfg.Query.MaxHistory,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
	})
	kbController := controller.NewKBController(svc)

	// Optional notes directory indexer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Notes.Dir != "" {
		indexer := services.NewNotesIndexer(svc, cfg.Notes.Dir)
		go func() {
			indexer.ScanAndIndex(ctx)
			indexer.Watch(ctx)
		}()
	}

	router := gin.Default()
	router.Use(controller.CORSMiddleware(cfg.Server.UIOrigin))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "docstack",
			"version": "1.0.0",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents", kbController.IngestURL)
		apiV1.GET("/documents", kbController.ListSources)
		apiV1.DELETE("/documents", kbController.DeleteSource)
		apiV1.POST("/notes", kbController.IngestNote)
		apiV1.GET("/notes", kbController.GetAllChunks)
		apiV1.POST("/query", kbController.Query)
		apiV1.GET("/stats", kbController.Stats)
	}

	log.Printf("docstack backend starting on http://localhost:%s", cfg.Server.Port)
	log.Printf("Allowing UI origin: %s", cfg.Server.UIOrigin)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("FATAL: Failed to start server: %v", err)
	}
}

// getOrCreateCollection fetches the chunk collection, creating it with
// descriptive metadata on first run.
func getOrCreateCollection(client chromago.Client, name string) (chromago.Collection, error) {
	ctx := context.Background()

	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "docstack documentation chunks"),
				chromago.NewStringAttribute("created_by", "docstack"),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Using collection %q", name)
	return collection, nil
}
