package model

import (
	"fmt"
	"time"
)

// Input limits enforced at the HTTP boundary, before any quota or provider
// cost is incurred. Oversized fields are rejected with INVALID_INPUT.
const (
	MaxMessageLen    = 10_000
	MaxPromptLen     = 5_000
	MaxContentLen    = 50_000 // lesson/procedure bodies fed to training endpoints
	MaxIdentifierLen = 255
	MaxItemCount     = 25 // quiz questions, flashcards per request
)

// ValidateMessage checks a chat message body.
func ValidateMessage(msg string) error {
	if msg == "" {
		return fmt.Errorf("message is required")
	}
	if len(msg) > MaxMessageLen {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLen)
	}
	return nil
}

// ValidatePrompt checks a generation prompt.
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(prompt) > MaxPromptLen {
		return fmt.Errorf("prompt exceeds maximum length of %d characters", MaxPromptLen)
	}
	return nil
}

// ValidateContent checks a lesson or procedure body.
func ValidateContent(field, content string) error {
	if content == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(content) > MaxContentLen {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, MaxContentLen)
	}
	return nil
}

// ValidateIdentifier checks a caller-supplied identifier such as a section ID.
func ValidateIdentifier(field, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, MaxIdentifierLen)
	}
	return nil
}

// ClampItemCount bounds a requested item count to [1, MaxItemCount],
// substituting def when the caller omitted it.
func ClampItemCount(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > MaxItemCount {
		return MaxItemCount
	}
	return n
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// SendMessageRequest is the body for POST /v1/documents/{document_id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse is the result of a document chat exchange.
type SendMessageResponse struct {
	Message               string     `json:"message"`
	Usage                 TokenUsage `json:"token_usage"`
	KnowledgeBaseDocsUsed []string   `json:"knowledge_base_docs_used"`
}

// GenerateSectionRequest is the body for section generation.
type GenerateSectionRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateSectionResponse is the result of section generation.
type GenerateSectionResponse struct {
	Content   string     `json:"content"`
	SectionID string     `json:"section_id"`
	Usage     TokenUsage `json:"token_usage"`
}

// EnhanceLessonRequest is the body for POST /v1/training/enhance.
type EnhanceLessonRequest struct {
	Content        string `json:"content"`
	LessonTitle    string `json:"lesson_title"`
	Category       string `json:"category,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// GenerateQuizRequest is the body for POST /v1/training/quiz.
type GenerateQuizRequest struct {
	LessonContent string   `json:"lesson_content"`
	LessonTitle   string   `json:"lesson_title"`
	QuestionCount int      `json:"question_count,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	QuestionTypes []string `json:"question_types,omitempty"`
}

// GenerateScenarioRequest is the body for POST /v1/training/scenario.
type GenerateScenarioRequest struct {
	ProcedureContent string `json:"procedure_content"`
	ProcedureTitle   string `json:"procedure_title"`
	ScenarioType     string `json:"scenario_type,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
	Context          string `json:"context,omitempty"`
}

// GenerateFlashcardsRequest is the body for POST /v1/training/flashcards.
type GenerateFlashcardsRequest struct {
	Content      string   `json:"content"`
	ContentTitle string   `json:"content_title"`
	CardCount    int      `json:"card_count,omitempty"`
	Category     string   `json:"category,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
}

// WrongAnswerRequest is the body for POST /v1/training/feedback.
type WrongAnswerRequest struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
	Category      string `json:"category,omitempty"`
}

// WrongAnswerResponse carries pedagogical feedback. This endpoint never
// surfaces a hard failure; on provider error the feedback degrades to a
// deterministic template.
type WrongAnswerResponse struct {
	Feedback string `json:"feedback"`
}

// DebriefRequest is the body for POST /v1/training/debrief.
type DebriefRequest struct {
	ScenarioTitle string   `json:"scenario_title"`
	Decisions     []string `json:"decisions"`
	Outcome       string   `json:"outcome"`
	TimeSpent     int      `json:"time_spent_seconds"`
	OptimalPath   string   `json:"optimal_path,omitempty"`
}

// GenerationMetadata is attached to training-content responses.
type GenerationMetadata struct {
	Model       string     `json:"model"`
	Usage       TokenUsage `json:"token_usage"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// QuizQuestion is one generated quiz question.
type QuizQuestion struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizResponse is the result of quiz generation. Questions is empty (not
// fabricated) when the model's output contained no parsable payload, so the
// UI can detect the failure and offer a retry.
type QuizResponse struct {
	Questions []QuizQuestion     `json:"questions"`
	Metadata  GenerationMetadata `json:"metadata"`
}

// ScenarioStep is one decision point in a training scenario.
type ScenarioStep struct {
	Situation string   `json:"situation"`
	Options   []string `json:"options"`
	Best      string   `json:"best"`
	Rationale string   `json:"rationale,omitempty"`
}

// Scenario is a generated branching training scenario.
type Scenario struct {
	Title   string         `json:"title"`
	Setting string         `json:"setting"`
	Steps   []ScenarioStep `json:"steps"`
}

// ScenarioResponse is the result of scenario generation.
type ScenarioResponse struct {
	Scenario *Scenario          `json:"scenario"`
	Metadata GenerationMetadata `json:"metadata"`
}

// Flashcard is one generated flashcard.
type Flashcard struct {
	ID       string `json:"id"`
	Front    string `json:"front"`
	Back     string `json:"back"`
	Category string `json:"category,omitempty"`
}

// FlashcardsResponse is the result of flashcard generation.
type FlashcardsResponse struct {
	Flashcards []Flashcard        `json:"flashcards"`
	Metadata   GenerationMetadata `json:"metadata"`
}

// EnhanceResponse is the result of lesson enhancement.
type EnhanceResponse struct {
	Content  string             `json:"content"`
	Metadata GenerationMetadata `json:"metadata"`
}

// DebriefResponse is the result of scenario debrief generation.
type DebriefResponse struct {
	Debrief  string             `json:"debrief"`
	Metadata GenerationMetadata `json:"metadata"`
}
