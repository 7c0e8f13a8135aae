package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    assistant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    mime_type TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_files_assistant ON files(assistant_id);`

// Database stores raw document content so file contents remain readable
// even when the embedded entry in the vector store is gone.
type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// StoredFile is one persisted document.
type StoredFile struct {
	ID          string
	AssistantID string
	Name        string
	MimeType    string
	Size        int64
	Content     string
	UploadedAt  time.Time
}

func (db *Database) SaveFile(f *StoredFile) error {
	query := `INSERT OR REPLACE INTO files (id, assistant_id, name, mime_type, size, content, uploaded_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`

	uploadedAt := f.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}

	_, err := db.db.Exec(query, f.ID, f.AssistantID, f.Name, f.MimeType, f.Size, f.Content, uploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save file %s: %w", f.ID, err)
	}
	return nil
}

func (db *Database) FileContent(fileID string) (string, error) {
	var content string
	err := db.db.QueryRow(`SELECT content FROM files WHERE id = ?`, fileID).Scan(&content)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("file %s not found", fileID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return content, nil
}

// FileMeta returns a file's metadata without its content.
func (db *Database) FileMeta(fileID string) (*StoredFile, error) {
	f := StoredFile{ID: fileID}
	err := db.db.QueryRow(
		`SELECT assistant_id, name, mime_type, size, uploaded_at FROM files WHERE id = ?`, fileID,
	).Scan(&f.AssistantID, &f.Name, &f.MimeType, &f.Size, &f.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file metadata %s: %w", fileID, err)
	}
	return &f, nil
}

func (db *Database) DeleteFile(fileID string) error {
	if _, err := db.db.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

func (db *Database) DeleteAssistantFiles(assistantID string) error {
	if _, err := db.db.Exec(`DELETE FROM files WHERE assistant_id = ?`, assistantID); err != nil {
		return fmt.Errorf("failed to delete files for assistant %s: %w", assistantID, err)
	}
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}
