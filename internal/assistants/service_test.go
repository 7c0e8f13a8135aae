package assistants

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sarasa-inc/assistant-server/internal/db"
	"github.com/sarasa-inc/assistant-server/internal/models"
	"github.com/sarasa-inc/assistant-server/internal/vectorstore"
)

// fakeEmbedder derives a deterministic vector from the text so identical
// content always embeds to the same point.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 13)
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// flakyStore makes deletions in file collections fail while leaving the
// assistant record operations intact.
type flakyStore struct {
	vectorstore.Store
	failFileDeletes bool
	failClassDelete bool
}

func (f *flakyStore) DeleteObject(ctx context.Context, class, id string) error {
	if f.failFileDeletes && strings.HasPrefix(class, "AssistantFile_") {
		return errors.New("vector store unavailable")
	}
	return f.Store.DeleteObject(ctx, class, id)
}

func (f *flakyStore) DeleteClass(ctx context.Context, class string) error {
	if f.failClassDelete {
		return errors.New("vector store unavailable")
	}
	return f.Store.DeleteClass(ctx, class)
}

func newTestService(t *testing.T, store vectorstore.Store) *Service {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc := New(store, &fakeEmbedder{}, database, zap.NewNop())
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func TestFileClassNameIsDeterministic(t *testing.T) {
	assert.Equal(t, "AssistantFile_ab_cd_ef", fileClassName("ab-cd-ef"))
	assert.Equal(t, fileClassName("x"), fileClassName("x"))
}

func TestCreateProvisionsFileCollection(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "test assistant", "Answer briefly in Spanish")
	require.NoError(t, err)
	require.NotEmpty(t, assistant.ID)

	exists, err := store.ClassExists(ctx, fileClassName(assistant.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := svc.Get(ctx, assistant.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "T1", got.Name)
	assert.Equal(t, "Answer briefly in Spanish", got.Prompt)
	assert.Empty(t, got.Files)
}

func TestGetUnknownAssistant(t *testing.T) {
	svc := newTestService(t, vectorstore.NewMemory())

	got, err := svc.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddFileRoundTripSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, vectorstore.NewMemory())

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)

	updated, err := svc.AddFile(ctx, assistant.ID, models.AssistantFile{ID: "f1", Name: "cielo.txt"}, "El cielo es azul")
	require.NoError(t, err)
	require.Len(t, updated.Files, 1)

	items, err := svc.SearchFiles(ctx, assistant.ID, "El cielo es azul", 5, 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "cielo.txt", items[0].Source)
	assert.Equal(t, "El cielo es azul", items[0].Text)
	assert.GreaterOrEqual(t, items[0].Certainty, 0.7)
}

func TestAddFileToUnknownAssistant(t *testing.T) {
	svc := newTestService(t, vectorstore.NewMemory())

	got, err := svc.AddFile(context.Background(), "missing", models.AssistantFile{Name: "x"}, "content")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveFileIsAuthoritativeEvenWhenEmbeddingDeleteFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: vectorstore.NewMemory(), failFileDeletes: true}
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	_, err = svc.AddFile(ctx, assistant.ID, models.AssistantFile{ID: "f1", Name: "cielo.txt"}, "El cielo es azul")
	require.NoError(t, err)

	updated, err := svc.RemoveFile(ctx, assistant.ID, "f1")
	require.NoError(t, err)
	assert.Empty(t, updated.Files)

	// The embedding is still physically present but must not surface.
	items, err := svc.SearchFiles(ctx, assistant.ID, "El cielo es azul", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Nor in the file list.
	got, err := svc.Get(ctx, assistant.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func TestRemoveFileUnknownFileLeavesAssistantUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, vectorstore.NewMemory())

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	_, err = svc.AddFile(ctx, assistant.ID, models.AssistantFile{ID: "f1", Name: "a.txt"}, "contenido")
	require.NoError(t, err)

	updated, err := svc.RemoveFile(ctx, assistant.ID, "no-such-file")
	require.NoError(t, err)
	require.Len(t, updated.Files, 1)
	assert.Equal(t, "f1", updated.Files[0].ID)
}

func TestDeleteCleansUpDespiteFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: vectorstore.NewMemory(), failFileDeletes: true, failClassDelete: true}
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err = svc.AddFile(ctx, assistant.ID, models.AssistantFile{Name: name}, "contenido de "+name)
		require.NoError(t, err)
	}

	ok, err := svc.Delete(ctx, assistant.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Nothing reachable through search afterwards.
	items, err := svc.SearchFiles(ctx, assistant.ID, "contenido de a.txt", 5, 0.0)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Deleting again is tolerated.
	ok, err = svc.Delete(ctx, assistant.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	_, err = svc.AddFile(ctx, assistant.ID, models.AssistantFile{Name: "a.txt"}, "contenido")
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, assistant.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := store.ClassExists(ctx, fileClassName(assistant.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := svc.Get(ctx, assistant.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateAndUpdatePrompt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, vectorstore.NewMemory())

	assistant, err := svc.Create(ctx, "old", "old desc", "old prompt")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, assistant.ID, "new", "new desc", "new prompt")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)

	updated, err = svc.UpdatePrompt(ctx, assistant.ID, "solo el prompt")
	require.NoError(t, err)
	assert.Equal(t, "solo el prompt", updated.Prompt)

	got, err := svc.Get(ctx, assistant.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, "solo el prompt", got.Prompt)
}

func TestFileContentFallsBackToVectorStore(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	_, err = svc.AddFile(ctx, assistant.ID, models.AssistantFile{ID: "f1", Name: "a.txt"}, "texto completo")
	require.NoError(t, err)

	content, err := svc.FileContent(ctx, assistant.ID, "f1")
	require.NoError(t, err)
	assert.Equal(t, "texto completo", content)

	// Remove only the SQLite row; the embedded copy still serves reads.
	require.NoError(t, svc.files.DeleteFile("f1"))

	content, err = svc.FileContent(ctx, assistant.ID, "f1")
	require.NoError(t, err)
	assert.Equal(t, "texto completo", content)
}

func TestSearchFilesMissingCollectionIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemory()
	svc := newTestService(t, store)

	assistant, err := svc.Create(ctx, "T1", "", "")
	require.NoError(t, err)
	require.NoError(t, store.DeleteClass(ctx, fileClassName(assistant.ID)))

	items, err := svc.SearchFiles(ctx, assistant.ID, "cualquier cosa", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListIncludesFiles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, vectorstore.NewMemory())

	a1, err := svc.Create(ctx, "uno", "", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "dos", "", "")
	require.NoError(t, err)
	_, err = svc.AddFile(ctx, a1.ID, models.AssistantFile{Name: "a.txt"}, "contenido")
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byName := map[string]models.Assistant{}
	for _, a := range all {
		byName[a.Name] = a
	}
	assert.Len(t, byName["uno"].Files, 1)
	assert.Empty(t, byName["dos"].Files)
}
