package openaiLLM

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// GroqBaseURL points the OpenAI client at Groq's compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

type llmClient struct {
	client       openai.Client
	defaultModel string
	name         string
	logger       *logger_i.Logger
}

// NewOpenAIClient talks to any OpenAI-compatible chat completions API.
// Retries are left to llm.RetryingProvider.
func NewOpenAIClient(apiKey, baseURL, defaultModel string, httpClient *http.Client) llm.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	name := "openai"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		if strings.Contains(baseURL, "groq.com") {
			name = "groq"
		}
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	logger := logger_i.NewLogger("llm_" + name)
	logger.Info("OpenAI-compatible client created", "model", defaultModel, "base_url", baseURL)
	return &llmClient{
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
		name:         name,
		logger:       logger,
	}
}

func (c *llmClient) Name() string {
	return c.name
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	c.logger.WithContext(ctx).Debug("openai_generate", "model", model, "chars", len(text))
	return text, nil
}

func (c *llmClient) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &llm.RateLimitError{RetryAfter: retryAfter, Err: err}
	}
	return fmt.Errorf("%s generate: %w", c.name, err)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
