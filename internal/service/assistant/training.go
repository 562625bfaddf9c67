package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenlearn/lumen/internal/extract"
	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/prompt"
	"github.com/lumenlearn/lumen/internal/provider"
)

// Training-content operations are stateless with respect to documents: they
// take content in the request body and persist nothing, so quota is keyed by
// subject rather than organization.

const (
	defaultQuestionCount = 5
	defaultCardCount     = 10
)

func (s *Service) metadata(usage model.TokenUsage) model.GenerationMetadata {
	return model.GenerationMetadata{
		Model:       s.modelName(),
		Usage:       usage,
		GeneratedAt: time.Now().UTC(),
	}
}

func setTrainingSpan(ctx context.Context, action string) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("lumen.operation", "training_"+action),
	)
}

// EnhanceLessonContent rewrites raw lesson material into structured training
// content.
func (s *Service) EnhanceLessonContent(ctx context.Context, subjectID string, req model.EnhanceLessonRequest) (model.EnhanceResponse, error) {
	if err := model.ValidateContent("content", req.Content); err != nil {
		return model.EnhanceResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := model.ValidateIdentifier("lesson_title", req.LessonTitle); err != nil {
		return model.EnhanceResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	setTrainingSpan(ctx, "enhance")

	if err := s.guardTraining(ctx, subjectID, "enhance"); err != nil {
		return model.EnhanceResponse{}, err
	}

	system, user := prompt.EnhanceLesson(req)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.EnhanceResponse{}, err
	}
	if comp.Text == "" {
		return model.EnhanceResponse{}, &provider.ProviderError{Err: errors.New("empty enhancement completion")}
	}

	return model.EnhanceResponse{Content: comp.Text, Metadata: s.metadata(comp.Usage)}, nil
}

// GenerateQuizFromContent generates quiz questions from lesson content. A
// completion that contains no parsable payload yields an empty question
// list, never fabricated questions, so the caller can detect and retry.
func (s *Service) GenerateQuizFromContent(ctx context.Context, subjectID string, req model.GenerateQuizRequest) (model.QuizResponse, error) {
	if err := model.ValidateContent("lesson_content", req.LessonContent); err != nil {
		return model.QuizResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := model.ValidateIdentifier("lesson_title", req.LessonTitle); err != nil {
		return model.QuizResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	setTrainingSpan(ctx, "quiz")

	if err := s.guardTraining(ctx, subjectID, "quiz"); err != nil {
		return model.QuizResponse{}, err
	}

	count := model.ClampItemCount(req.QuestionCount, defaultQuestionCount)
	system, user := prompt.Quiz(req, count)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.QuizResponse{}, err
	}

	questions, err := extract.Questions(comp.Text, count)
	if err != nil {
		s.logger.Warn("assistant: quiz payload extraction failed, returning empty set",
			"subject_id", subjectID, "error", err)
		questions = []model.QuizQuestion{}
	}

	return model.QuizResponse{Questions: questions, Metadata: s.metadata(comp.Usage)}, nil
}

// GenerateScenarioFromProcedure turns a procedure into a branching decision
// scenario.
func (s *Service) GenerateScenarioFromProcedure(ctx context.Context, subjectID string, req model.GenerateScenarioRequest) (model.ScenarioResponse, error) {
	if err := model.ValidateContent("procedure_content", req.ProcedureContent); err != nil {
		return model.ScenarioResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := model.ValidateIdentifier("procedure_title", req.ProcedureTitle); err != nil {
		return model.ScenarioResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	setTrainingSpan(ctx, "scenario")

	if err := s.guardTraining(ctx, subjectID, "scenario"); err != nil {
		return model.ScenarioResponse{}, err
	}

	system, user := prompt.Scenario(req)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.ScenarioResponse{}, err
	}

	scenario, err := extract.Scenario(comp.Text)
	if err != nil {
		s.logger.Warn("assistant: scenario payload extraction failed, returning empty result",
			"subject_id", subjectID, "error", err)
		scenario = nil
	}

	return model.ScenarioResponse{Scenario: scenario, Metadata: s.metadata(comp.Usage)}, nil
}

// GenerateFlashcardsFromContent generates flashcards from training content.
func (s *Service) GenerateFlashcardsFromContent(ctx context.Context, subjectID string, req model.GenerateFlashcardsRequest) (model.FlashcardsResponse, error) {
	if err := model.ValidateContent("content", req.Content); err != nil {
		return model.FlashcardsResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := model.ValidateIdentifier("content_title", req.ContentTitle); err != nil {
		return model.FlashcardsResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	setTrainingSpan(ctx, "flashcards")

	if err := s.guardTraining(ctx, subjectID, "flashcards"); err != nil {
		return model.FlashcardsResponse{}, err
	}

	count := model.ClampItemCount(req.CardCount, defaultCardCount)
	system, user := prompt.Flashcards(req, count)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.FlashcardsResponse{}, err
	}

	cards, err := extract.Flashcards(comp.Text, count)
	if err != nil {
		s.logger.Warn("assistant: flashcard payload extraction failed, returning empty set",
			"subject_id", subjectID, "error", err)
		cards = []model.Flashcard{}
	}

	return model.FlashcardsResponse{Flashcards: cards, Metadata: s.metadata(comp.Usage)}, nil
}

// WrongAnswerExplanation generates pedagogical feedback for an incorrect
// answer. This operation never fails the caller: validation, quota, and
// provider errors all degrade to a deterministic fallback so a learner's
// flow is never blocked by infrastructure.
func (s *Service) WrongAnswerExplanation(ctx context.Context, subjectID string, req model.WrongAnswerRequest) model.WrongAnswerResponse {
	setTrainingSpan(ctx, "feedback")

	if req.Question == "" || req.CorrectAnswer == "" {
		return model.WrongAnswerResponse{Feedback: wrongAnswerFallback}
	}
	if err := s.guardTraining(ctx, subjectID, "feedback"); err != nil {
		s.logger.Warn("assistant: feedback degraded to fallback", "subject_id", subjectID, "error", err)
		return model.WrongAnswerResponse{Feedback: wrongAnswerFallback}
	}

	system, user := prompt.WrongAnswer(req)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: 512,
	})
	if err != nil {
		s.logger.Warn("assistant: feedback degraded to fallback", "subject_id", subjectID, "error", err)
		return model.WrongAnswerResponse{Feedback: wrongAnswerFallback}
	}

	return model.WrongAnswerResponse{Feedback: extract.TextOrFallback(comp.Text, wrongAnswerFallback)}
}

// ScenarioDebrief reviews a learner's path through a scenario.
func (s *Service) ScenarioDebrief(ctx context.Context, subjectID string, req model.DebriefRequest) (model.DebriefResponse, error) {
	if err := model.ValidateIdentifier("scenario_title", req.ScenarioTitle); err != nil {
		return model.DebriefResponse{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(req.Decisions) == 0 {
		return model.DebriefResponse{}, fmt.Errorf("%w: at least one decision is required", ErrInvalidInput)
	}
	setTrainingSpan(ctx, "debrief")

	if err := s.guardTraining(ctx, subjectID, "debrief"); err != nil {
		return model.DebriefResponse{}, err
	}

	system, user := prompt.Debrief(req)
	comp, err := s.complete(ctx, provider.Request{
		System:    system,
		Turns:     []provider.Turn{{Role: model.TurnUser, Content: user}},
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return model.DebriefResponse{}, err
	}

	debrief := extract.TextOrFallback(comp.Text, "No debrief could be generated for this attempt.")
	return model.DebriefResponse{Debrief: debrief, Metadata: s.metadata(comp.Usage)}, nil
}
