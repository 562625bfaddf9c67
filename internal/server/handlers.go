package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen/internal/model"
	"github.com/lumenlearn/lumen/internal/provider"
	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/service/assistant"
	"github.com/lumenlearn/lumen/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	svc                 *assistant.Service
	index               *retrieval.Index
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): OpenAPISpec.
type HandlersDeps struct {
	DB                  *storage.DB
	Assistant           *assistant.Service
	Index               *retrieval.Index
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		svc:                 d.Assistant,
		index:               d.Index,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// subjectID extracts the authenticated subject from the request context.
// Auth middleware guarantees claims are present on protected routes.
func subjectID(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// writeServiceError maps assistant service errors onto the API taxonomy.
// Validation and authorization reasons are safe to surface verbatim;
// provider and internal failures are logged in full and surfaced generically.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assistant.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, assistant.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, err.Error())
	case errors.Is(err, assistant.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	case errors.Is(err, assistant.ErrQuotaExceeded):
		var qerr *assistant.QuotaError
		if errors.As(err, &qerr) {
			for k, v := range qerr.Result.FormatHeaders() {
				w.Header().Set(k, v)
			}
		}
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeQuotaExceeded, err.Error())
	case errors.Is(err, assistant.ErrProviderUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeProviderUnavailable, "generation provider is not configured")
	default:
		var perr *provider.ProviderError
		if errors.As(err, &perr) {
			h.logger.Error("provider failure", "request_id", RequestIDFromContext(r.Context()),
				"retryable", perr.Retryable, "error", err)
			writeError(w, r, http.StatusBadGateway, model.ErrCodeInternalError, "generation failed")
			return
		}
		h.logger.Error("internal error", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// HandleSendMessage handles POST /v1/documents/{document_id}/messages.
func (h *Handlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	docID, ok := pathUUID(w, r, "document_id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.SendMessage(r.Context(), subjectID(r), docID, req.Message)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleGenerateSection handles
// POST /v1/documents/{document_id}/sections/{section_id}/generate.
func (h *Handlers) HandleGenerateSection(w http.ResponseWriter, r *http.Request) {
	docID, ok := pathUUID(w, r, "document_id")
	if !ok {
		return
	}
	sectionID := r.PathValue("section_id")

	var req model.GenerateSectionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.svc.GenerateSectionContent(r.Context(), subjectID(r), docID, sectionID, req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleOrgUsage handles GET /v1/orgs/{org_id}/usage.
func (h *Handlers) HandleOrgUsage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "org_id")
	if !ok {
		return
	}

	usage, err := h.svc.OrgTokenUsage(r.Context(), subjectID(r), orgID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, usage)
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Provider string `json:"provider"`
	Uptime   int64  `json:"uptime_seconds"`
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	providerStatus := "configured"
	if !h.svc.Configured() {
		providerStatus = "not_configured"
		if status == "healthy" {
			status = "degraded"
		}
	}

	writeJSON(w, r, httpStatus, healthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Provider: providerStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}
