package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan-dev/docstack/models"
)

// fakeKnowledgeService records indexer calls without touching Chroma.
type fakeKnowledgeService struct {
	chunks   []models.Chunk
	ingested map[string]string
	deleted  []string
}

func newFakeKnowledgeService() *fakeKnowledgeService {
	return &fakeKnowledgeService{ingested: make(map[string]string)}
}

func (f *fakeKnowledgeService) IngestURL(ctx context.Context, req models.IngestURLRequest) (*models.IngestURLResponse, error) {
	return &models.IngestURLResponse{Source: req.URL}, nil
}

func (f *fakeKnowledgeService) IngestNote(ctx context.Context, req models.IngestNoteRequest) error {
	return nil
}

func (f *fakeKnowledgeService) IngestFile(ctx context.Context, path, hash string) error {
	f.ingested[path] = hash
	return nil
}

func (f *fakeKnowledgeService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	return &models.QueryResponse{}, nil
}

func (f *fakeKnowledgeService) ListSources(ctx context.Context) (*models.ListSourcesResponse, error) {
	return &models.ListSourcesResponse{}, nil
}

func (f *fakeKnowledgeService) DeleteSource(ctx context.Context, source string) error {
	f.deleted = append(f.deleted, source)
	return nil
}

func (f *fakeKnowledgeService) GetAllChunks(ctx context.Context) (*models.ListChunksResponse, error) {
	return &models.ListChunksResponse{Count: len(f.chunks), Chunks: f.chunks}, nil
}

func (f *fakeKnowledgeService) Stats(ctx context.Context) (*models.StatsResponse, error) {
	return &models.StatsResponse{Chunks: len(f.chunks)}, nil
}

func TestScanAndIndexNewFile(t *testing.T) {
	tmpDir := t.TempDir()
	notePath := filepath.Join(tmpDir, "note.md")
	require.NoError(t, os.WriteFile(notePath, []byte("some note content"), 0644))

	svc := newFakeKnowledgeService()
	indexer := NewNotesIndexer(svc, tmpDir)
	indexer.ScanAndIndex(context.Background())

	hash, ok := svc.ingested[notePath]
	require.True(t, ok, "new file should be indexed")
	assert.NotEmpty(t, hash)
	// reindex always clears previous chunks first
	assert.Contains(t, svc.deleted, notePath)
}

func TestScanAndIndexSkipsUnchanged(t *testing.T) {
	tmpDir := t.TempDir()
	notePath := filepath.Join(tmpDir, "note.md")
	require.NoError(t, os.WriteFile(notePath, []byte("stable content"), 0644))

	hash, err := fileHash(notePath)
	require.NoError(t, err)

	svc := newFakeKnowledgeService()
	svc.chunks = []models.Chunk{{
		ID:   "abc-chunk0",
		Text: "stable content",
		Metadata: map[string]interface{}{
			"source":       notePath,
			"content_hash": hash,
		},
	}}

	indexer := NewNotesIndexer(svc, tmpDir)
	indexer.ScanAndIndex(context.Background())

	assert.Empty(t, svc.ingested)
	assert.Empty(t, svc.deleted)
}

func TestScanAndIndexRemovesDeletedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	gone := filepath.Join(tmpDir, "gone.md")

	svc := newFakeKnowledgeService()
	svc.chunks = []models.Chunk{{
		ID:   "abc-chunk0",
		Text: "old content",
		Metadata: map[string]interface{}{
			"source":       gone,
			"content_hash": "deadbeef",
		},
	}}

	indexer := NewNotesIndexer(svc, tmpDir)
	indexer.ScanAndIndex(context.Background())

	assert.Contains(t, svc.deleted, gone)
	assert.Empty(t, svc.ingested)
}

func TestIndexedHashesIgnoresOutsideSources(t *testing.T) {
	tmpDir := t.TempDir()

	svc := newFakeKnowledgeService()
	svc.chunks = []models.Chunk{
		{Metadata: map[string]interface{}{"source": "https://docs.example.com", "content_hash": "x"}},
		{Metadata: map[string]interface{}{"source": "/somewhere/else/note.md", "content_hash": "y"}},
	}

	indexer := NewNotesIndexer(svc, tmpDir)
	state, err := indexer.indexedHashes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestFileHash(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	h1, err := fileHash(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
	h2, err := fileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0644))
	h3, err := fileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
