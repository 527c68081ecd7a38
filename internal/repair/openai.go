package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const DefaultModel = "gpt-4o-mini"

type OpenAIOptions struct {
	APIKey  string
	Model   string // default DefaultModel
	BaseURL string // empty means the OpenAI API

	// RequestsPerMinute paces completions across every caller sharing this client. Zero disables pacing.
	RequestsPerMinute int

	Logger *slog.Logger
}

// OpenAI is a Completer backed by the chat completions API. It is safe for concurrent use.
type OpenAI struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	logger.Debug("initializing OpenAI completer", "model", model)
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error("OpenAI API call failed", "model", o.model, "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	o.logger.Debug("received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason, "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
