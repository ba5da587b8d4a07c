package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	mdPath := filepath.Join(tmpDir, "note.md")
	require.NoError(t, os.WriteFile(mdPath, []byte("# Heading\n\nBody text."), 0644))

	text, err := ExtractTextFromFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, text, "Body text.")
}

func TestExtractTextFromFileUnsupported(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0644))

	_, err := ExtractTextFromFile(path)
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestIsIndexableFile(t *testing.T) {
	assert.True(t, isIndexableFile("notes/todo.md"))
	assert.True(t, isIndexableFile("notes/README.TXT"))
	assert.True(t, isIndexableFile("papers/whitepaper.pdf"))
	assert.False(t, isIndexableFile("notes/script.go"))
	assert.False(t, isIndexableFile("notes/.hidden"))
}
