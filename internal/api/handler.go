package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sarasa-inc/assistant-server/internal/assistants"
	"github.com/sarasa-inc/assistant-server/internal/llm"
	"github.com/sarasa-inc/assistant-server/internal/models"
)

type Handler struct {
	assistants *assistants.Service
	llm        *llm.Service
	logger     *zap.Logger
}

func NewHandler(assistantService *assistants.Service, llmService *llm.Service, logger *zap.Logger) *Handler {
	return &Handler{
		assistants: assistantService,
		llm:        llmService,
		logger:     logger,
	}
}

type ChatRequest struct {
	Question       string `json:"question"`
	AssistantID    string `json:"assistantId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type AssistantRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt,omitempty"`
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type AddFileRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := h.llm.Answer(r.Context(), req.Question, req.AssistantID, req.ConversationID)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyQuestion) {
			http.Error(w, "Question must not be empty", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to answer question", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, answer)
}

// HandleAssistants serves listing (GET) and creation (POST).
func (h *Handler) HandleAssistants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all, err := h.assistants.List(r.Context())
		if err != nil {
			h.logger.Error("failed to list assistants", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, all)

	case http.MethodPost:
		var req AssistantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "Name is required", http.StatusBadRequest)
			return
		}

		assistant, err := h.assistants.Create(r.Context(), req.Name, req.Description, req.Prompt)
		if err != nil {
			h.logger.Error("failed to create assistant", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, assistant)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) GetAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}

	assistant, err := h.assistants.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get assistant", zap.String("assistantId", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if assistant == nil {
		http.Error(w, "Assistant not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, assistant)
}

func (h *Handler) UpdateAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}

	var req AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	assistant, err := h.assistants.Update(r.Context(), id, req.Name, req.Description, req.Prompt)
	if err != nil {
		h.logger.Error("failed to update assistant", zap.String("assistantId", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if assistant == nil {
		http.Error(w, "Assistant not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, assistant)
}

func (h *Handler) DeleteAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.assistants.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete assistant", zap.String("assistantId", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Assistant not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	assistant, err := h.assistants.UpdatePrompt(r.Context(), id, req.Prompt)
	if err != nil {
		h.logger.Error("failed to update prompt", zap.String("assistantId", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if assistant == nil {
		http.Error(w, "Assistant not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, assistant)
}

// HandleFiles serves file listing (GET) and ingestion (POST) for an
// assistant.
func (h *Handler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		files, err := h.assistants.Files(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to list files", zap.String("assistantId", id), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, files)

	case http.MethodPost:
		var req AddFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Content == "" {
			http.Error(w, "File name and content are required", http.StatusBadRequest)
			return
		}

		assistant, err := h.assistants.AddFile(r.Context(), id, models.AssistantFile{
			ID:   req.ID,
			Name: req.Name,
			Type: req.Type,
		}, req.Content)
		if err != nil {
			h.logger.Error("failed to add file",
				zap.String("assistantId", id),
				zap.String("fileName", req.Name),
				zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if assistant == nil {
			http.Error(w, "Assistant not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, assistant)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	fileID := r.URL.Query().Get("fileId")
	if id == "" || fileID == "" {
		http.Error(w, "Assistant ID and file ID are required", http.StatusBadRequest)
		return
	}

	assistant, err := h.assistants.RemoveFile(r.Context(), id, fileID)
	if err != nil {
		h.logger.Error("failed to remove file",
			zap.String("assistantId", id),
			zap.String("fileId", fileID),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if assistant == nil {
		http.Error(w, "Assistant not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, assistant)
}

func (h *Handler) FileContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	fileID := r.URL.Query().Get("fileId")
	if id == "" || fileID == "" {
		http.Error(w, "Assistant ID and file ID are required", http.StatusBadRequest)
		return
	}

	content, err := h.assistants.FileContent(r.Context(), id, fileID)
	if err != nil {
		h.logger.Error("failed to read file content",
			zap.String("assistantId", id),
			zap.String("fileId", fileID),
			zap.Error(err))
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]string{"content": content})
}

func (h *Handler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	query := r.URL.Query().Get("q")
	if id == "" {
		http.Error(w, "Assistant ID is required", http.StatusBadRequest)
		return
	}
	if query == "" {
		http.Error(w, "Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	items, err := h.assistants.SearchFiles(r.Context(), id, query, 5, 0.7)
	if err != nil {
		h.logger.Error("failed to search files", zap.String("assistantId", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, items)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
