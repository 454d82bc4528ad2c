package telemetry

import (
	"context"
	"time"

	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

// LLMCall describes one completed model call, successful or not.
type LLMCall struct {
	Component   string
	Model       string
	Latency     time.Duration
	Temperature float64
	Success     bool
	Error       string
}

type ErrorEvent struct {
	Component      string
	ErrorType      string
	Message        string
	RecoveryAction string
}

type Sink interface {
	LogLLMCall(ctx context.Context, call LLMCall)
	LogError(ctx context.Context, event ErrorEvent)
}

// Safe wraps sink so that a nil sink is a no-op and a panicking sink never
// reaches the caller.
func Safe(sink Sink) Sink {
	if sink == nil {
		return nopSink{}
	}
	if s, ok := sink.(safeSink); ok {
		return s
	}
	return safeSink{inner: sink, logger: logger_i.NewLogger("telemetry")}
}

type safeSink struct {
	inner  Sink
	logger *logger_i.Logger
}

func (s safeSink) LogLLMCall(ctx context.Context, call LLMCall) {
	defer s.recover("log_llm_call")
	s.inner.LogLLMCall(ctx, call)
}

func (s safeSink) LogError(ctx context.Context, event ErrorEvent) {
	defer s.recover("log_error")
	s.inner.LogError(ctx, event)
}

func (s safeSink) recover(op string) {
	if r := recover(); r != nil {
		s.logger.Warn("telemetry_sink_panic", "op", op, "panic", r)
	}
}

type nopSink struct{}

func (nopSink) LogLLMCall(context.Context, LLMCall)   {}
func (nopSink) LogError(context.Context, ErrorEvent) {}

// Multi fans every event out to each sink in order. Each sink is made Safe.
func Multi(sinks ...Sink) Sink {
	var safe []Sink
	for _, s := range sinks {
		if s != nil {
			safe = append(safe, Safe(s))
		}
	}
	return multiSink(safe)
}

type multiSink []Sink

func (m multiSink) LogLLMCall(ctx context.Context, call LLMCall) {
	for _, s := range m {
		s.LogLLMCall(ctx, call)
	}
}

func (m multiSink) LogError(ctx context.Context, event ErrorEvent) {
	for _, s := range m {
		s.LogError(ctx, event)
	}
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *logger_i.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: logger_i.NewLogger("telemetry")}
}

func (l *LogSink) LogLLMCall(ctx context.Context, call LLMCall) {
	log := l.logger.WithContext(ctx)
	args := []any{
		"llm_component", call.Component,
		"model", call.Model,
		"latency_ms", call.Latency.Milliseconds(),
		"temperature", call.Temperature,
		"success", call.Success,
	}
	if call.Success {
		log.Debug("llm_call", args...)
		return
	}
	log.Warn("llm_call", append(args, "error", call.Error)...)
}

func (l *LogSink) LogError(ctx context.Context, event ErrorEvent) {
	l.logger.WithContext(ctx).Error("telemetry_error",
		"llm_component", event.Component,
		"error_type", event.ErrorType,
		"message", event.Message,
		"recovery_action", event.RecoveryAction,
	)
}
