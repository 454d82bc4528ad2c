package llmMock

import (
	"context"
	"sync"

	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
)

// Provider is a hand-written llm.Provider for tests. Calls are recorded.
type Provider struct {
	OnGenerate func(ctx context.Context, req llm.Request) (string, error)

	mu    sync.Mutex
	calls []llm.Request
}

func (m *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	return "", nil
}

func (m *Provider) Name() string {
	return "mock"
}

func (m *Provider) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Replies returns responses in order, repeating the last one once exhausted.
func Replies(responses ...string) func(context.Context, llm.Request) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, llm.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return "", nil
		}
		r := responses[min(i, len(responses)-1)]
		i++
		return r, nil
	}
}
