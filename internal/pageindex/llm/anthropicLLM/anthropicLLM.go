package anthropicLLM

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

type llmClient struct {
	client       anthropic.Client
	defaultModel string
	logger       *logger_i.Logger
}

func NewAnthropicClient(apiKey, defaultModel string, httpClient *http.Client) llm.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	logger := logger_i.NewLogger("llm_anthropic")
	logger.Info("Anthropic client created", "model", defaultModel)
	return &llmClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

func (c *llmClient) Name() string {
	return "anthropic"
}

// Generate has no native JSON mode; JSON requests get an extra instruction
// in the system prompt.
func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	system := req.SystemPrompt
	if req.JSONMode {
		system = strings.TrimSpace(system + "\nRespond with a single JSON value and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", &llm.RateLimitError{Err: err}
		}
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	c.logger.WithContext(ctx).Debug("anthropic_generate", "model", model, "chars", len(text))
	return text, nil
}
