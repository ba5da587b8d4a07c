package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmorgan-dev/docstack/models"
	"github.com/jmorgan-dev/docstack/services"
)

// KBController handles the HTTP requests for the knowledge base API. It
// depends on the KnowledgeService to perform the actual work.
type KBController struct {
	svc services.KnowledgeService
}

// NewKBController creates a controller with its service dependency injected.
func NewKBController(svc services.KnowledgeService) *KBController {
	return &KBController{svc: svc}
}

// IngestURL handles POST /api/v1/documents: crawl a URL and index its pages.
func (c *KBController) IngestURL(ctx *gin.Context) {
	var req models.IngestURLRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := c.svc.IngestURL(ctx.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrSourceUnreachable) {
			ctx.JSON(http.StatusBadGateway, gin.H{"error": "Could not fetch the requested URL"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to index documents"})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ListSources handles GET /api/v1/documents.
func (c *KBController) ListSources(ctx *gin.Context) {
	resp, err := c.svc.ListSources(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// DeleteSource handles DELETE /api/v1/documents.
func (c *KBController) DeleteSource(ctx *gin.Context) {
	var req models.DeleteSourceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := c.svc.DeleteSource(ctx.Request.Context(), req.URL); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete source"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Source deleted"})
}

// IngestNote handles POST /api/v1/notes.
func (c *KBController) IngestNote(ctx *gin.Context) {
	var req models.IngestNoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := c.svc.IngestNote(ctx.Request.Context(), req); err != nil {
		if errors.Is(err, services.ErrNoteTooShort) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Note is too short to index"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest note"})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": "Note ingested successfully"})
}

// GetAllChunks handles GET /api/v1/notes.
func (c *KBController) GetAllChunks(ctx *gin.Context) {
	resp, err := c.svc.GetAllChunks(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chunks"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Query handles POST /api/v1/query: the full retrieval + generation pipeline.
func (c *KBController) Query(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := c.svc.Query(ctx.Request.Context(), req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate answer"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Stats handles GET /api/v1/stats.
func (c *KBController) Stats(ctx *gin.Context) {
	resp, err := c.svc.Stats(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// CORSMiddleware lets the local development UI call the API from its own
// origin. All methods and headers are allowed; preflight requests are
// answered directly.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
