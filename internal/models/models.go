package models

import "time"

// Message roles, matching the chat completion wire format.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantFile describes one ingested document. The file list on the
// assistant record is the source of truth for which documents exist; the
// vector collection holds the embedded content.
type AssistantFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Assistant struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Prompt      string          `json:"prompt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Files       []AssistantFile `json:"files"`
}

// ContextItem is one retrieved excerpt, alive only for the duration of a
// single answering call.
type ContextItem struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Certainty float64 `json:"certainty"`
}
