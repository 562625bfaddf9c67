package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lumenlearn/lumen/internal/model"
)

// OpenAI is the chat-completions implementation of Client.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI builds an OpenAI client. Returns ErrNotConfigured when apiKey is
// empty so the caller can decide to run degraded rather than fail per request.
func NewOpenAI(apiKey, modelName string, timeout time.Duration, logger *slog.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if modelName == "" {
		modelName = string(openai.ChatModelGPT4o)
	}
	return &OpenAI{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   modelName,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// ModelName reports the configured chat model.
func (o *OpenAI) ModelName() string { return o.model }

// Complete sends one chat completion request. Timeouts surface as a retryable
// ProviderError; every other failure is non-retryable.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case model.TurnAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(turn.Content))
		default:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		retryable := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		o.logger.Error("provider: completion failed",
			"model", o.model,
			"retryable", retryable,
			"elapsed", time.Since(start),
			"error", err)
		return Completion{}, &ProviderError{Retryable: retryable, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &ProviderError{Err: errors.New("empty choices in completion response")}
	}

	usage := model.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	o.logger.Debug("provider: completion ok",
		"model", o.model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"elapsed", time.Since(start))

	return Completion{Text: resp.Choices[0].Message.Content, Usage: usage}, nil
}
