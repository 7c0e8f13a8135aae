// Package llm implements the retrieval-augmented answering pipeline:
// follow-up questions are condensed into standalone queries, relevant
// excerpts are retrieved from the assistant's collection, and a grounded
// completion is generated while rolling conversation history is maintained.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/sarasa-inc/assistant-server/internal/conversation"
	"github.com/sarasa-inc/assistant-server/internal/models"
)

const defaultSystemPrompt = `You are a helpful assistant working for Sarasa Inc.
Use the conversation history and the provided context to give the most accurate answer you can.
Do not fabricate information. If the question is ambiguous, ask for clarification.
Your final answer should be in Spanish.`

const condensePrompt = `You are a helpful assistant that rewrites the user's last question into a fully self-contained question.
Use the conversation so far. The final question must stand alone.`

// fallbackAnswer is what callers see when the pipeline fails for any reason
// other than malformed input.
const fallbackAnswer = "Lo siento, ha ocurrido un error al procesar tu pregunta. Por favor, inténtalo de nuevo."

const generateTimeout = 30 * time.Second

// ErrEmptyQuestion is returned for blank questions before any state is
// touched or any provider is called.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Knowledge provides assistant prompts and context retrieval. Implemented
// by the assistants service.
type Knowledge interface {
	Get(ctx context.Context, id string) (*models.Assistant, error)
	SearchFiles(ctx context.Context, assistantID, query string, limit int, minCertainty float64) ([]models.ContextItem, error)
}

// Options are the fixed sampling and retrieval parameters for answering.
type Options struct {
	ContextLimit int
	MinCertainty float64
	MaxTokens    int
	Temperature  float64
	Seed         int

	// CondenseModel, when set, overrides the model used for question
	// condensation.
	CondenseModel string
}

type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources,omitempty"`
	ConversationID string   `json:"conversationId"`
}

type Service struct {
	llm       llms.Model
	knowledge Knowledge
	history   conversation.Store
	logger    *zap.Logger
	opts      Options
}

func New(model llms.Model, knowledge Knowledge, history conversation.Store, logger *zap.Logger, opts Options) *Service {
	return &Service{
		llm:       model,
		knowledge: knowledge,
		history:   history,
		logger:    logger,
		opts:      opts,
	}
}

// Answer runs the full pipeline for one question. Apart from an empty
// question, it never returns an error: every provider failure degrades to
// either a reduced prompt or the fixed fallback answer.
func (s *Service) Answer(ctx context.Context, question, assistantID, conversationID string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	prior := s.history.History(conversationID)
	s.history.Append(conversationID, models.Message{Role: models.RoleUser, Content: question})

	systemPrompt := s.systemPrompt(ctx, assistantID)

	query := question
	if len(prior) > 0 {
		query = s.condense(ctx, prior, question)
	}

	contextItems := s.retrieve(ctx, assistantID, query)

	messages := buildMessages(systemPrompt, contextItems, prior, question)

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := s.llm.GenerateContent(genCtx, messages,
		llms.WithTemperature(s.opts.Temperature),
		llms.WithMaxTokens(s.opts.MaxTokens),
		llms.WithSeed(s.opts.Seed),
	)
	if err != nil || len(resp.Choices) == 0 {
		s.logger.Error("completion failed",
			zap.String("conversationId", conversationID),
			zap.Error(err))
		return &Answer{Answer: fallbackAnswer, ConversationID: conversationID}, nil
	}
	answer := resp.Choices[0].Content

	s.history.Append(conversationID, models.Message{Role: models.RoleAssistant, Content: answer})

	return &Answer{
		Answer:         answer,
		Sources:        sourceNames(contextItems),
		ConversationID: conversationID,
	}, nil
}

// systemPrompt resolves the assistant's own prompt, falling back to the
// default instruction when there is no assistant or the lookup fails.
func (s *Service) systemPrompt(ctx context.Context, assistantID string) string {
	if assistantID == "" {
		return defaultSystemPrompt
	}

	assistant, err := s.knowledge.Get(ctx, assistantID)
	if err != nil {
		s.logger.Warn("assistant lookup failed, using default prompt",
			zap.String("assistantId", assistantID),
			zap.Error(err))
		return defaultSystemPrompt
	}
	if assistant == nil || assistant.Prompt == "" {
		return defaultSystemPrompt
	}
	return assistant.Prompt
}

// condense rewrites a follow-up question into a standalone one at
// temperature 0. On failure the original question is used; a condensation
// failure must never block answering.
func (s *Service) condense(ctx context.Context, history []models.Message, question string) string {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, condensePrompt))
	for _, m := range history {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	condenseCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	opts := []llms.CallOption{llms.WithTemperature(0)}
	if s.opts.CondenseModel != "" {
		opts = append(opts, llms.WithModel(s.opts.CondenseModel))
	}
	resp, err := s.llm.GenerateContent(condenseCtx, messages, opts...)
	if err != nil || len(resp.Choices) == 0 {
		s.logger.Warn("question condensation failed, using raw question", zap.Error(err))
		return question
	}

	condensed := strings.TrimSpace(resp.Choices[0].Content)
	if condensed == "" {
		return question
	}
	s.logger.Debug("condensed question", zap.String("condensed", condensed))
	return condensed
}

// retrieve is best-effort: any failure yields an empty context set.
func (s *Service) retrieve(ctx context.Context, assistantID, query string) []models.ContextItem {
	if assistantID == "" {
		return nil
	}

	items, err := s.knowledge.SearchFiles(ctx, assistantID, query, s.opts.ContextLimit, s.opts.MinCertainty)
	if err != nil {
		s.logger.Warn("context retrieval failed, answering without context",
			zap.String("assistantId", assistantID),
			zap.Error(err))
		return nil
	}
	return items
}

// buildMessages assembles the final request: system prompt, retrieved
// context when present, the prior turns, then the current question.
func buildMessages(systemPrompt string, contextItems []models.ContextItem, history []models.Message, question string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+3)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))

	if len(contextItems) > 0 {
		texts := make([]string, len(contextItems))
		for i, item := range contextItems {
			texts[i] = item.Text
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
			"Additional context from the knowledge base:\n"+strings.Join(texts, "\n")))
	}

	for _, m := range history {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}

	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))
}

func sourceNames(items []models.ContextItem) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Source == "" || seen[item.Source] {
			continue
		}
		seen[item.Source] = true
		names = append(names, item.Source)
	}
	return names
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
