package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client       *genai.Client
	defaultModel string
	logger       *logger_i.Logger
}

// NewGeminiClient builds a provider on the shared HTTP client. The model on
// each request wins over defaultModel.
func NewGeminiClient(ctx context.Context, apiKey, defaultModel string, httpClient *http.Client) (llm.Provider, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini client created", "model", defaultModel)
	return &llmClient{client: c, defaultModel: defaultModel, logger: logger}, nil
}

func (c *llmClient) Name() string {
	return "gemini"
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		contentConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.JSONMode {
		contentConfig.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), contentConfig)
	if err != nil {
		return "", classify(err)
	}
	if result == nil {
		return "", llm.ErrEmptyResponse
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	c.logger.WithContext(ctx).Debug("gemini_generate", "model", model, "chars", len(text))
	return text, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &llm.RateLimitError{Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests {
		return &llm.RateLimitError{Err: err}
	}
	return fmt.Errorf("gemini generate: %w", err)
}
