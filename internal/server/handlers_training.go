package server

import (
	"net/http"

	"github.com/lumenlearn/lumen/internal/model"
)

// Training-content handlers. All POST, all stateless: content in, generated
// material out, nothing persisted.

// HandleEnhanceLesson handles POST /v1/training/enhance.
func (h *Handlers) HandleEnhanceLesson(w http.ResponseWriter, r *http.Request) {
	var req model.EnhanceLessonRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.EnhanceLessonContent(r.Context(), subjectID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerateQuiz handles POST /v1/training/quiz.
func (h *Handlers) HandleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateQuizRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.GenerateQuizFromContent(r.Context(), subjectID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerateScenario handles POST /v1/training/scenario.
func (h *Handlers) HandleGenerateScenario(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateScenarioRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.GenerateScenarioFromProcedure(r.Context(), subjectID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerateFlashcards handles POST /v1/training/flashcards.
func (h *Handlers) HandleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateFlashcardsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.GenerateFlashcardsFromContent(r.Context(), subjectID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleWrongAnswerFeedback handles POST /v1/training/feedback.
// Never returns a failure to the learner: a malformed body still produces
// the deterministic fallback via the service.
func (h *Handlers) HandleWrongAnswerFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.WrongAnswerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp := h.svc.WrongAnswerExplanation(r.Context(), subjectID(r), req)
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleScenarioDebrief handles POST /v1/training/debrief.
func (h *Handlers) HandleScenarioDebrief(w http.ResponseWriter, r *http.Request) {
	var req model.DebriefRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.ScenarioDebrief(r.Context(), subjectID(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}
