package lumen

import "time"

// TokenUsage records provider token counts for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// SendMessageResponse is the result of a document chat exchange.
type SendMessageResponse struct {
	Message               string     `json:"message"`
	Usage                 TokenUsage `json:"token_usage"`
	KnowledgeBaseDocsUsed []string   `json:"knowledge_base_docs_used"`
}

// GenerateSectionResponse is the result of section generation.
type GenerateSectionResponse struct {
	Content   string     `json:"content"`
	SectionID string     `json:"section_id"`
	Usage     TokenUsage `json:"token_usage"`
}

// OrgUsage aggregates token consumption across an organization's
// conversations.
type OrgUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	MessageCount     int `json:"message_count"`
	DocumentCount    int `json:"document_count"`
}

// EnhanceLessonRequest is the input to EnhanceLesson.
type EnhanceLessonRequest struct {
	Content        string `json:"content"`
	LessonTitle    string `json:"lesson_title"`
	Category       string `json:"category,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// GenerateQuizRequest is the input to GenerateQuiz.
type GenerateQuizRequest struct {
	LessonContent string   `json:"lesson_content"`
	LessonTitle   string   `json:"lesson_title"`
	QuestionCount int      `json:"question_count,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	QuestionTypes []string `json:"question_types,omitempty"`
}

// GenerateScenarioRequest is the input to GenerateScenario.
type GenerateScenarioRequest struct {
	ProcedureContent string `json:"procedure_content"`
	ProcedureTitle   string `json:"procedure_title"`
	ScenarioType     string `json:"scenario_type,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
	Context          string `json:"context,omitempty"`
}

// GenerateFlashcardsRequest is the input to GenerateFlashcards.
type GenerateFlashcardsRequest struct {
	Content      string   `json:"content"`
	ContentTitle string   `json:"content_title"`
	CardCount    int      `json:"card_count,omitempty"`
	Category     string   `json:"category,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
}

// WrongAnswerRequest is the input to WrongAnswerFeedback.
type WrongAnswerRequest struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
	Category      string `json:"category,omitempty"`
}

// WrongAnswerResponse carries pedagogical feedback for a wrong quiz answer.
type WrongAnswerResponse struct {
	Feedback string `json:"feedback"`
}

// DebriefRequest is the input to ScenarioDebrief.
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

// QuizResponse is the result of quiz generation. Questions is empty when
// the model's output contained no parsable payload.
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

// ScenarioResponse is the result of scenario generation. Scenario is nil
// when the model's output contained no parsable payload.
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

// HealthResponse is the result of a health check.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Provider string `json:"provider"`
	Uptime   int64  `json:"uptime_seconds"`
}
