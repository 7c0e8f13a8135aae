// Package assistants manages assistant records and their per-assistant
// vector collections, keeping the file list on the record consistent with
// the embedded entries in the collection.
package assistants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarasa-inc/assistant-server/internal/db"
	"github.com/sarasa-inc/assistant-server/internal/models"
	"github.com/sarasa-inc/assistant-server/internal/vectorstore"
)

// assistantClass holds one object per assistant.
const assistantClass = "Assistant"

var assistantClassProps = map[string]string{
	"name":        "string",
	"description": "string",
	"prompt":      "string",
	"createdAt":   "date",
	"files":       "string[]",
}

var fileClassProps = map[string]string{
	"fileName": "string",
	"fileId":   "string",
	"content":  "text",
}

// Service owns the assistant lifecycle: the record in the fixed Assistant
// class, the dedicated file collection per assistant, and the raw document
// content kept in SQLite.
type Service struct {
	store    vectorstore.Store
	embedder embeddings.Embedder
	files    *db.Database
	logger   *zap.Logger
}

func New(store vectorstore.Store, embedder embeddings.Embedder, files *db.Database, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		files:    files,
		logger:   logger,
	}
}

// Init provisions the shared Assistant class. Idempotent; call at startup.
func (s *Service) Init(ctx context.Context) error {
	return s.store.EnsureClass(ctx, assistantClass, assistantClassProps)
}

// fileClassName derives the collection name for an assistant's files. The
// mapping is a pure function of the assistant ID so it never needs to be
// stored anywhere.
func fileClassName(assistantID string) string {
	return "AssistantFile_" + strings.ReplaceAll(assistantID, "-", "_")
}

func (s *Service) Create(ctx context.Context, name, description, prompt string) (*models.Assistant, error) {
	createdAt := time.Now().UTC()

	id, err := s.store.CreateObject(ctx, assistantClass, nil, map[string]any{
		"name":        name,
		"description": description,
		"prompt":      prompt,
		"createdAt":   createdAt.Format(time.RFC3339),
		"files":       []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}

	if err := s.store.EnsureClass(ctx, fileClassName(id), fileClassProps); err != nil {
		return nil, fmt.Errorf("failed to provision file collection for assistant %s: %w", id, err)
	}

	return &models.Assistant{
		ID:          id,
		Name:        name,
		Description: description,
		Prompt:      prompt,
		CreatedAt:   createdAt,
		Files:       []models.AssistantFile{},
	}, nil
}

// Get returns the assistant, or nil when it does not exist. The file list
// is built from the assistant's file collection, filtered against the names
// recorded on the assistant object: entries without a matching record are
// orphaned embeddings and are ignored.
func (s *Service) Get(ctx context.Context, id string) (*models.Assistant, error) {
	obj, err := s.store.GetObject(ctx, assistantClass, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assistant %s: %w", id, err)
	}
	if obj == nil {
		return nil, nil
	}

	assistant := assistantFromProps(id, obj.Properties)
	assistant.Files = s.listFiles(ctx, id, fileNames(obj.Properties))
	return assistant, nil
}

func (s *Service) List(ctx context.Context) ([]models.Assistant, error) {
	objs, err := s.store.ListObjects(ctx, assistantClass, []string{"name", "description", "prompt", "createdAt", "files"})
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}

	assistants := make([]models.Assistant, 0, len(objs))
	for _, obj := range objs {
		full, err := s.Get(ctx, obj.ID)
		if err != nil || full == nil {
			// Fall back to the basic record when file enrichment fails.
			s.logger.Warn("falling back to basic assistant record",
				zap.String("assistantId", obj.ID),
				zap.Error(err))
			assistants = append(assistants, *assistantFromProps(obj.ID, obj.Properties))
			continue
		}
		assistants = append(assistants, *full)
	}
	return assistants, nil
}

func (s *Service) Update(ctx context.Context, id, name, description, prompt string) (*models.Assistant, error) {
	assistant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, nil
	}

	err = s.store.MergeObject(ctx, assistantClass, id, map[string]any{
		"name":        name,
		"description": description,
		"prompt":      prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update assistant %s: %w", id, err)
	}

	assistant.Name = name
	assistant.Description = description
	assistant.Prompt = prompt
	return assistant, nil
}

func (s *Service) UpdatePrompt(ctx context.Context, id, prompt string) (*models.Assistant, error) {
	assistant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, nil
	}

	if err := s.store.MergeObject(ctx, assistantClass, id, map[string]any{"prompt": prompt}); err != nil {
		return nil, fmt.Errorf("failed to update prompt for assistant %s: %w", id, err)
	}

	assistant.Prompt = prompt
	return assistant, nil
}

// AddFile embeds the content, writes the entry to the assistant's file
// collection and persists the raw content, and only then records the file
// on the assistant object. A crash mid-way leaves an orphaned embedding,
// never a file reference without backing content.
func (s *Service) AddFile(ctx context.Context, assistantID string, file models.AssistantFile, content string) (*models.Assistant, error) {
	assistant, err := s.Get(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, nil
	}

	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	if file.Size == 0 {
		file.Size = int64(len(content))
	}

	vector, err := s.embedder.EmbedQuery(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed file %s: %w", file.Name, err)
	}

	class := fileClassName(assistantID)
	if err := s.store.EnsureClass(ctx, class, fileClassProps); err != nil {
		return nil, fmt.Errorf("failed to ensure file collection for assistant %s: %w", assistantID, err)
	}

	_, err = s.store.CreateObject(ctx, class, vector, map[string]any{
		"fileName": file.Name,
		"fileId":   file.ID,
		"content":  content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store embedding for file %s: %w", file.Name, err)
	}

	err = s.files.SaveFile(&db.StoredFile{
		ID:          file.ID,
		AssistantID: assistantID,
		Name:        file.Name,
		MimeType:    file.Type,
		Size:        file.Size,
		Content:     content,
		UploadedAt:  file.UploadedAt,
	})
	if err != nil {
		return nil, err
	}

	assistant.Files = append(assistant.Files, file)
	names := make([]string, 0, len(assistant.Files))
	for _, f := range assistant.Files {
		names = append(names, f.Name)
	}
	if err := s.store.MergeObject(ctx, assistantClass, assistantID, map[string]any{"files": names}); err != nil {
		return nil, fmt.Errorf("failed to record file %s on assistant %s: %w", file.Name, assistantID, err)
	}

	return assistant, nil
}

// RemoveFile removes the file reference from the assistant record first;
// the record is the source of truth for the file list. Deleting the stored
// content and the embedded entry is best-effort: failures are logged and an
// orphaned embedding is tolerated (and ignored at read time).
func (s *Service) RemoveFile(ctx context.Context, assistantID, fileID string) (*models.Assistant, error) {
	assistant, err := s.Get(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, nil
	}

	var removed *models.AssistantFile
	kept := make([]models.AssistantFile, 0, len(assistant.Files))
	for _, f := range assistant.Files {
		if f.ID == fileID {
			file := f
			removed = &file
			continue
		}
		kept = append(kept, f)
	}
	if removed == nil {
		return assistant, nil
	}
	assistant.Files = kept

	names := make([]string, 0, len(kept))
	for _, f := range kept {
		names = append(names, f.Name)
	}
	if err := s.store.MergeObject(ctx, assistantClass, assistantID, map[string]any{"files": names}); err != nil {
		return nil, fmt.Errorf("failed to remove file %s from assistant %s: %w", fileID, assistantID, err)
	}

	if err := s.files.DeleteFile(fileID); err != nil {
		s.logger.Error("failed to delete stored file content",
			zap.String("assistantId", assistantID),
			zap.String("fileId", fileID),
			zap.Error(err))
	}

	if err := s.deleteFileEmbedding(ctx, assistantID, fileID); err != nil {
		s.logger.Error("failed to delete file embedding",
			zap.String("assistantId", assistantID),
			zap.String("fileId", fileID),
			zap.Error(err))
	}

	return assistant, nil
}

// Delete removes the assistant and everything it owns. Every cleanup step
// runs even when an earlier one fails, so a half-deleted assistant can be
// deleted again; only a failure to remove the record itself is returned.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	assistant, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if assistant == nil {
		return false, nil
	}

	var cleanupErr error
	for _, f := range assistant.Files {
		if err := s.deleteFileEmbedding(ctx, id, f.ID); err != nil {
			cleanupErr = multierr.Append(cleanupErr, err)
		}
	}
	if err := s.files.DeleteAssistantFiles(id); err != nil {
		cleanupErr = multierr.Append(cleanupErr, err)
	}
	if err := s.store.DeleteClass(ctx, fileClassName(id)); err != nil {
		cleanupErr = multierr.Append(cleanupErr, err)
	}
	if cleanupErr != nil {
		s.logger.Error("assistant cleanup finished with failures",
			zap.String("assistantId", id),
			zap.Error(cleanupErr))
	}

	if err := s.store.DeleteObject(ctx, assistantClass, id); err != nil {
		return false, fmt.Errorf("failed to delete assistant %s: %w", id, err)
	}
	return true, nil
}

func (s *Service) Files(ctx context.Context, assistantID string) ([]models.AssistantFile, error) {
	assistant, err := s.Get(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return []models.AssistantFile{}, nil
	}
	return assistant.Files, nil
}

// FileContent reads the raw document content, falling back to the content
// property stored alongside the embedding when the SQLite row is gone.
func (s *Service) FileContent(ctx context.Context, assistantID, fileID string) (string, error) {
	assistant, err := s.Get(ctx, assistantID)
	if err != nil {
		return "", err
	}
	if assistant == nil {
		return "", fmt.Errorf("assistant %s not found", assistantID)
	}

	found := false
	for _, f := range assistant.Files {
		if f.ID == fileID {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("file %s not found on assistant %s", fileID, assistantID)
	}

	content, err := s.files.FileContent(fileID)
	if err == nil {
		return content, nil
	}

	matches, err := s.store.WhereEqual(ctx, fileClassName(assistantID), "fileId", fileID, []string{"content"})
	if err != nil {
		return "", fmt.Errorf("failed to read content for file %s: %w", fileID, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no content found for file %s", fileID)
	}
	content, _ = matches[0].Properties["content"].(string)
	return content, nil
}

// SearchFiles embeds the query and returns the most similar excerpts from
// the assistant's collection. Entries whose file name is no longer on the
// assistant record are orphaned embeddings and are filtered out. A missing
// collection yields an empty result, not an error.
func (s *Service) SearchFiles(ctx context.Context, assistantID, query string, limit int, minCertainty float64) ([]models.ContextItem, error) {
	assistant, err := s.Get(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return []models.ContextItem{}, nil
	}

	class := fileClassName(assistantID)
	exists, err := s.store.ClassExists(ctx, class)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []models.ContextItem{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.store.NearVector(ctx, class, vector, minCertainty, limit, []string{"fileName", "fileId", "content"})
	if err != nil {
		return nil, fmt.Errorf("search in assistant %s failed: %w", assistantID, err)
	}

	known := make(map[string]bool, len(assistant.Files))
	for _, f := range assistant.Files {
		known[f.Name] = true
	}

	items := make([]models.ContextItem, 0, len(matches))
	for _, m := range matches {
		name, _ := m.Properties["fileName"].(string)
		if !known[name] {
			continue
		}
		text, _ := m.Properties["content"].(string)
		items = append(items, models.ContextItem{
			Text:      text,
			Source:    name,
			Certainty: m.Certainty,
		})
	}
	return items, nil
}

func (s *Service) deleteFileEmbedding(ctx context.Context, assistantID, fileID string) error {
	class := fileClassName(assistantID)
	matches, err := s.store.WhereEqual(ctx, class, "fileId", fileID, nil)
	if err != nil {
		return fmt.Errorf("failed to look up embeddings for file %s: %w", fileID, err)
	}
	if len(matches) == 0 {
		s.logger.Info("no embedding entries found for file",
			zap.String("assistantId", assistantID),
			zap.String("fileId", fileID))
		return nil
	}

	var errs error
	for _, m := range matches {
		if err := s.store.DeleteObject(ctx, class, m.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// listFiles builds the assistant's file list from its collection, keeping
// only entries whose name appears on the record, and fills in metadata from
// the document store when available.
func (s *Service) listFiles(ctx context.Context, assistantID string, recordedNames []string) []models.AssistantFile {
	entries, err := s.store.ListObjects(ctx, fileClassName(assistantID), []string{"fileName", "fileId"})
	if err != nil {
		s.logger.Warn("failed to list file collection",
			zap.String("assistantId", assistantID),
			zap.Error(err))
		return []models.AssistantFile{}
	}

	known := make(map[string]bool, len(recordedNames))
	for _, name := range recordedNames {
		known[name] = true
	}

	files := make([]models.AssistantFile, 0, len(entries))
	for _, entry := range entries {
		name, _ := entry.Properties["fileName"].(string)
		if !known[name] {
			continue
		}
		id, _ := entry.Properties["fileId"].(string)
		file := models.AssistantFile{ID: id, Name: name}
		if stored, err := s.files.FileMeta(id); err == nil {
			file.Size = stored.Size
			file.Type = stored.MimeType
			file.UploadedAt = stored.UploadedAt
		}
		files = append(files, file)
	}
	return files
}

func assistantFromProps(id string, props map[string]any) *models.Assistant {
	assistant := &models.Assistant{ID: id, Files: []models.AssistantFile{}}
	assistant.Name, _ = props["name"].(string)
	assistant.Description, _ = props["description"].(string)
	assistant.Prompt, _ = props["prompt"].(string)
	if raw, ok := props["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			assistant.CreatedAt = t
		}
	}
	return assistant
}

func fileNames(props map[string]any) []string {
	raw, ok := props["files"].([]any)
	if !ok {
		// Some clients return string slices directly.
		if names, ok := props["files"].([]string); ok {
			return names
		}
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names
}
