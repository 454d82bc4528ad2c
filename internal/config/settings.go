package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	ArtifactBackendFile = "file"
	ArtifactBackendGCS  = "gcs"
)

// Settings holds everything that differs between deployments.
// Infrastructure defaults that never change at runtime stay as constants.
type Settings struct {
	Env        string
	LogLevel   slog.Level
	ListenAddr string

	// LLM
	LLMProvider          string
	GeminiAPIKey         string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	AnthropicAPIKey      string
	TreeGenModel         string
	TreeSearchModel      string
	SummaryModel         string
	LLMMaxAttempts       int
	LLMRequestsPerSecond float64
	LLMTimeout           time.Duration

	// Tree shape
	MaxPagesPerNode    int
	MaxTreeDepth       int
	TreeSearchBreadth  int
	SummaryConcurrency int

	// PDF limits
	MaxPDFSizeMB    int
	MaxPDFPages     int
	MaxContextPages int

	// Storage
	DataDir         string
	ArtifactBackend string
	GCSBucket       string
	GCSPrefix       string
	RedisAddr       string
	RedisPassword   string

	// Auth and per-IP HTTP limits
	AuthToken     string
	NoAuthBypass  bool
	HTTPRateLimit float64
	HTTPRateBurst int
}

func Load() Settings {
	s := Settings{
		Env:        envOr("PAGEINDEX_ENV", "development"),
		ListenAddr: envOr("LISTEN_ADDR", ServerListenAddr),

		LLMProvider:          strings.ToLower(envOr("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		TreeGenModel:         os.Getenv("TREE_GEN_MODEL"),
		TreeSearchModel:      os.Getenv("TREE_SEARCH_MODEL"),
		SummaryModel:         os.Getenv("SUMMARY_MODEL"),
		LLMMaxAttempts:       envInt("LLM_MAX_ATTEMPTS", 3),
		LLMRequestsPerSecond: envFloat("LLM_REQUESTS_PER_SECOND", 2),
		LLMTimeout:           envDuration("LLM_TIMEOUT", LLMConnectionTimeout),

		MaxPagesPerNode:    envInt("MAX_PAGES_PER_NODE", DefaultMaxPagesPerNode),
		MaxTreeDepth:       envInt("MAX_TREE_DEPTH", DefaultMaxTreeDepth),
		TreeSearchBreadth:  envInt("TREE_SEARCH_BREADTH", DefaultSearchBreadth),
		SummaryConcurrency: envInt("SUMMARY_CONCURRENCY", DefaultSummaryWorkers),

		MaxPDFSizeMB:    envInt("MAX_PDF_SIZE_MB", 50),
		MaxPDFPages:     envInt("MAX_PDF_PAGES", 500),
		MaxContextPages: envInt("MAX_CONTEXT_PAGES", 20),

		DataDir:         envOr("DATA_DIR", "./data"),
		ArtifactBackend: strings.ToLower(envOr("ARTIFACT_BACKEND", ArtifactBackendFile)),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		GCSPrefix:       envOr("GCS_PREFIX", "trees/"),
		RedisAddr:       envOr("REDIS_ADDR", RedisAddr),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),

		AuthToken:     os.Getenv("AUTH_TOKEN"),
		NoAuthBypass:  envBool("AUTH_BYPASS", false),
		HTTPRateLimit: envFloat("HTTP_RATE_LIMIT", RATE_LIMIT_PER_SECOND),
		HTTPRateBurst: envInt("HTTP_RATE_BURST", BURST_RATE_LIMIT_PER_SECOND),
	}

	s.LogLevel = parseLevel(os.Getenv("LOG_LEVEL"), s.IsProd())
	s.applyModelDefaults()

	if s.LLMMaxAttempts <= 0 {
		s.LLMMaxAttempts = 3
	}
	if s.LLMRequestsPerSecond <= 0 {
		s.LLMRequestsPerSecond = 2
	}
	if s.MaxPagesPerNode <= 0 {
		s.MaxPagesPerNode = DefaultMaxPagesPerNode
	}
	if s.MaxTreeDepth <= 0 {
		s.MaxTreeDepth = DefaultMaxTreeDepth
	}
	if s.TreeSearchBreadth <= 0 {
		s.TreeSearchBreadth = DefaultSearchBreadth
	}
	if s.SummaryConcurrency <= 0 {
		s.SummaryConcurrency = DefaultSummaryWorkers
	}
	if s.MaxPDFSizeMB <= 0 {
		s.MaxPDFSizeMB = 50
	}
	if s.MaxPDFPages <= 0 {
		s.MaxPDFPages = 500
	}
	if s.MaxContextPages <= 0 {
		s.MaxContextPages = 20
	}
	return s
}

func (s Settings) Validate() error {
	switch s.LLMProvider {
	case ProviderGemini:
		if s.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", s.LLMProvider)
		}
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", s.LLMProvider)
		}
	case ProviderAnthropic:
		if s.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", s.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", s.LLMProvider)
	}

	switch s.ArtifactBackend {
	case ArtifactBackendFile:
	case ArtifactBackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when ARTIFACT_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_BACKEND %q", s.ArtifactBackend)
	}

	if s.IsProd() && !s.NoAuthBypass && s.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required in production")
	}
	return nil
}

func (s Settings) IsProd() bool {
	return s.Env == "production" || s.Env == "prod"
}

func (s Settings) TreesDir() string {
	return filepath.Join(s.DataDir, "trees")
}

func (s Settings) PDFsDir() string {
	return filepath.Join(s.DataDir, "pdfs")
}

// UploadsDir stages HTTP uploads until their ingest job has run.
func (s Settings) UploadsDir() string {
	return filepath.Join(s.DataDir, "uploads")
}

func (s Settings) MaxPDFSizeBytes() int64 {
	return int64(s.MaxPDFSizeMB) << 20
}

func (s *Settings) applyModelDefaults() {
	var main, fast string
	switch s.LLMProvider {
	case ProviderOpenAI:
		main, fast = DefaultOpenAIModel, DefaultOpenAIModel
	case ProviderAnthropic:
		main, fast = DefaultAnthropic, DefaultAnthropic
	default:
		main, fast = DefaultGeminiModel, DefaultGeminiFast
	}
	if s.TreeGenModel == "" {
		s.TreeGenModel = main
	}
	if s.TreeSearchModel == "" {
		s.TreeSearchModel = main
	}
	if s.SummaryModel == "" {
		s.SummaryModel = fast
	}
}

func parseLevel(v string, prod bool) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if prod {
		return LOG_LEVEL_PROD
	}
	return slog.LevelDebug
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
