package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSaveAndReadFileContent(t *testing.T) {
	database := newTestDB(t)

	err := database.SaveFile(&StoredFile{
		ID:          "f1",
		AssistantID: "a1",
		Name:        "cielo.txt",
		MimeType:    "text/plain",
		Size:        17,
		Content:     "El cielo es azul",
	})
	require.NoError(t, err)

	content, err := database.FileContent("f1")
	require.NoError(t, err)
	assert.Equal(t, "El cielo es azul", content)
}

func TestFileContentMissing(t *testing.T) {
	database := newTestDB(t)

	_, err := database.FileContent("missing")
	assert.Error(t, err)
}

func TestDeleteFile(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveFile(&StoredFile{ID: "f1", AssistantID: "a1", Name: "n", Content: "c"}))
	require.NoError(t, database.DeleteFile("f1"))

	_, err := database.FileContent("f1")
	assert.Error(t, err)

	// Deleting an already-deleted file is not an error.
	assert.NoError(t, database.DeleteFile("f1"))
}

func TestDeleteAssistantFiles(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SaveFile(&StoredFile{ID: "f1", AssistantID: "a1", Name: "n1", Content: "c1"}))
	require.NoError(t, database.SaveFile(&StoredFile{ID: "f2", AssistantID: "a1", Name: "n2", Content: "c2"}))
	require.NoError(t, database.SaveFile(&StoredFile{ID: "f3", AssistantID: "a2", Name: "n3", Content: "c3"}))

	require.NoError(t, database.DeleteAssistantFiles("a1"))

	_, err := database.FileContent("f1")
	assert.Error(t, err)
	_, err = database.FileContent("f2")
	assert.Error(t, err)

	content, err := database.FileContent("f3")
	require.NoError(t, err)
	assert.Equal(t, "c3", content)
}
