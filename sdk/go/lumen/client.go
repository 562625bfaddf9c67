package lumen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Lumen server (e.g. "http://localhost:8080").
	BaseURL string

	// Token is the bearer JWT issued by the account service.
	Token string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 120-second timeout is used (generation requests are slow).
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 120 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Lumen document assistant API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL or Token is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lumen: BaseURL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("lumen: Token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
	}, nil
}

// SendMessage sends a chat message in a document's conversation and returns
// the assistant's reply.
func (c *Client) SendMessage(ctx context.Context, documentID uuid.UUID, message string) (*SendMessageResponse, error) {
	body := map[string]any{"message": message}
	var resp SendMessageResponse
	if err := c.post(ctx, "/v1/documents/"+documentID.String()+"/messages", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateSection generates content for one section of a document and
// persists it server-side.
func (c *Client) GenerateSection(ctx context.Context, documentID uuid.UUID, sectionID, prompt string) (*GenerateSectionResponse, error) {
	body := map[string]any{"prompt": prompt}
	path := "/v1/documents/" + documentID.String() + "/sections/" + sectionID + "/generate"
	var resp GenerateSectionResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Usage retrieves aggregate token consumption for an organization.
func (c *Client) Usage(ctx context.Context, orgID uuid.UUID) (*OrgUsage, error) {
	var resp OrgUsage
	if err := c.get(ctx, "/v1/orgs/"+orgID.String()+"/usage", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Training content generation
// ---------------------------------------------------------------------------

// EnhanceLesson rewrites rough lesson notes into structured training content.
func (c *Client) EnhanceLesson(ctx context.Context, req EnhanceLessonRequest) (*EnhanceResponse, error) {
	var resp EnhanceResponse
	if err := c.post(ctx, "/v1/training/enhance", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateQuiz produces quiz questions from lesson content. Questions is
// empty (never fabricated) when the model output could not be parsed.
func (c *Client) GenerateQuiz(ctx context.Context, req GenerateQuizRequest) (*QuizResponse, error) {
	var resp QuizResponse
	if err := c.post(ctx, "/v1/training/quiz", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateScenario produces a branching training scenario from a procedure.
func (c *Client) GenerateScenario(ctx context.Context, req GenerateScenarioRequest) (*ScenarioResponse, error) {
	var resp ScenarioResponse
	if err := c.post(ctx, "/v1/training/scenario", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateFlashcards produces study flashcards from training content.
func (c *Client) GenerateFlashcards(ctx context.Context, req GenerateFlashcardsRequest) (*FlashcardsResponse, error) {
	var resp FlashcardsResponse
	if err := c.post(ctx, "/v1/training/flashcards", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WrongAnswerFeedback explains why a quiz answer was wrong. This endpoint
// degrades to a generic template on provider failure rather than erroring.
func (c *Client) WrongAnswerFeedback(ctx context.Context, req WrongAnswerRequest) (*WrongAnswerResponse, error) {
	var resp WrongAnswerResponse
	if err := c.post(ctx, "/v1/training/feedback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScenarioDebrief summarizes a completed training scenario run.
func (c *Client) ScenarioDebrief(ctx context.Context, req DebriefRequest) (*DebriefResponse, error) {
	var resp DebriefResponse
	if err := c.post(ctx, "/v1/training/debrief", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server's health status. This endpoint does not require
// authentication and will work even if the client has invalid credentials.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.getNoAuth(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("lumen: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("lumen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("lumen: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) getNoAuth(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("lumen: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("lumen: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("lumen: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("lumen: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("lumen: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
