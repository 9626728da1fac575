package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// DefaultModel is used when neither the request nor the client names a model.
const DefaultModel = "gpt-3.5-turbo"

// KeySource supplies the API key for each call.
type KeySource interface {
	EffectiveAPIKey(ctx context.Context) (string, error)
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	// BaseURL of the API, e.g. https://api.openai.com/v1. Empty uses the provider default.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient implements Client with the langchaingo OpenAI provider.
type OpenAIClient struct {
	cfg        OpenAIConfig
	keys       KeySource
	httpClient *http.Client
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithLogger sets the logger. Failed requests are logged before being returned.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(c *OpenAIClient) { c.logger = l }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient = hc }
}

// NewOpenAIClient returns a client that reads its API key from keys on every call.
func NewOpenAIClient(cfg OpenAIConfig, keys KeySource, opts ...OpenAIOption) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	c := &OpenAIClient{
		cfg:    cfg,
		keys:   keys,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return c
}

// Complete sends req and returns the trimmed text of the first choice. It is not retried.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (string, error) {
	key, err := c.keys.EffectiveAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrMissingAPIKey
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(model),
		openai.WithHTTPClient(c.httpClient),
	}
	if c.cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(c.cfg.BaseURL, "/")))
	}
	provider, err := openai.New(opts...)
	if err != nil {
		return "", &RemoteError{Err: err}
	}

	resp, err := provider.GenerateContent(ctx, toMessageContent(req.Messages), llms.WithTemperature(req.Temperature))
	if err != nil {
		c.logger.Error("chat completion failed", zap.String("model", model), zap.Error(err))
		return "", &RemoteError{Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		err := errors.New("response has no choices")
		c.logger.Error("chat completion failed", zap.String("model", model), zap.Error(err))
		return "", &RemoteError{Err: err}
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	c.logger.Debug("chat completion", zap.String("model", model), zap.Int("chars", len(text)))
	return text, nil
}

func toMessageContent(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llms.TextParts(messageType(m.Role), m.Content))
	}
	return out
}

func messageType(r Role) schema.ChatMessageType {
	switch r {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
