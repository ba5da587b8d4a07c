package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan-dev/docstack/models"
	"github.com/jmorgan-dev/docstack/services"
)

// stubService lets each test script the service layer's behavior.
type stubService struct {
	ingestURLResp *models.IngestURLResponse
	ingestURLErr  error
	queryResp     *models.QueryResponse
	queryErr      error
	deleteErr     error
	deletedSource string
	noteErr       error
}

func (s *stubService) IngestURL(ctx context.Context, req models.IngestURLRequest) (*models.IngestURLResponse, error) {
	return s.ingestURLResp, s.ingestURLErr
}

func (s *stubService) IngestNote(ctx context.Context, req models.IngestNoteRequest) error {
	return s.noteErr
}

func (s *stubService) IngestFile(ctx context.Context, path, hash string) error { return nil }

func (s *stubService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	return s.queryResp, s.queryErr
}

func (s *stubService) ListSources(ctx context.Context) (*models.ListSourcesResponse, error) {
	return &models.ListSourcesResponse{
		Count:   1,
		Sources: []models.Source{{Source: "https://docs.example.com", Title: "Docs", Chunks: 12}},
	}, nil
}

func (s *stubService) DeleteSource(ctx context.Context, source string) error {
	s.deletedSource = source
	return s.deleteErr
}

func (s *stubService) GetAllChunks(ctx context.Context) (*models.ListChunksResponse, error) {
	return &models.ListChunksResponse{Count: 0, Chunks: []models.Chunk{}}, nil
}

func (s *stubService) Stats(ctx context.Context) (*models.StatsResponse, error) {
	return &models.StatsResponse{Chunks: 42, Sources: 3}, nil
}

func newTestRouter(svc *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	c := NewKBController(svc)

	router := gin.New()
	router.Use(CORSMiddleware("http://localhost:5173"))
	api := router.Group("/api/v1")
	{
		api.POST("/documents", c.IngestURL)
		api.GET("/documents", c.ListSources)
		api.DELETE("/documents", c.DeleteSource)
		api.POST("/notes", c.IngestNote)
		api.GET("/notes", c.GetAllChunks)
		api.POST("/query", c.Query)
		api.GET("/stats", c.Stats)
	}
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestURL(t *testing.T) {
	svc := &stubService{
		ingestURLResp: &models.IngestURLResponse{Source: "https://docs.example.com", Pages: 4, Chunks: 31},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/documents", `{"url":"https://docs.example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.IngestURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Pages)
	assert.Equal(t, 31, resp.Chunks)
}

func TestIngestURLBadBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodPost, "/api/v1/documents", `{"maxDepth":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestURLUnreachable(t *testing.T) {
	svc := &stubService{ingestURLErr: services.ErrSourceUnreachable}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/documents", `{"url":"https://down.example.com"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestListSources(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodGet, "/api/v1/documents", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ListSourcesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 12, resp.Sources[0].Chunks)
}

func TestDeleteSource(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodDelete, "/api/v1/documents", `{"url":"https://docs.example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://docs.example.com", svc.deletedSource)
}

func TestQuery(t *testing.T) {
	svc := &stubService{
		queryResp: &models.QueryResponse{
			Answer:    "Widgets are configured via YAML.",
			SessionID: "session-1",
			SourceDocs: []models.SourceDocument{
				{Text: "Widgets are configured via YAML."},
			},
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/query", `{"query":"How do I configure widgets?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "session-1", resp.SessionID)
	assert.NotEmpty(t, resp.SourceDocs)
}

func TestQueryBadBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodPost, "/api/v1/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestNote(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodPost, "/api/v1/notes", `{"text":"remember this"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIngestNoteTooShort(t *testing.T) {
	router := newTestRouter(&stubService{noteErr: services.ErrNoteTooShort})

	w := doRequest(router, http.MethodPost, "/api/v1/notes", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too short")
}

func TestStats(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.Chunks)
	assert.Equal(t, 3, resp.Sources)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&stubService{})

	w := doRequest(router, http.MethodOptions, "/api/v1/query", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
