package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to the in-memory stores
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//ingestion can take a while: one structure call plus a summary call per thin node
	IngestJobTimeout = 10 * time.Minute
	QueryJobTimeout  = 2 * time.Minute

	//serverTimeouts
	ReadTimeout            = 15 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	MaxUploadSize = 64 << 20

	//llm
	LLMConnectionTimeout = 90 * time.Second
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultGeminiFast    = "gemini-2.5-flash-lite"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultAnthropic     = "claude-3-5-haiku-latest"

	//tree generation and search
	TreeGenTemperature     = 0.1
	TreeGenMaxTokens       = 4096
	SummaryMaxTokens       = 150
	SearchTemperature      = 0.1
	SearchMaxTokens        = 1024
	SamplePageChars        = 800
	SummaryContentChars    = 2000
	MaxTOCEntries          = 30
	MinSummaryChars        = 10
	ImageOnlyTextRatio     = 0.1
	PageExtractTimeout     = 10 * time.Second
	DefaultMaxPagesPerNode = 10
	DefaultMaxTreeDepth    = 4
	DefaultSearchBreadth   = 3
	DefaultSummaryWorkers  = 5

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore      = 0
	RedisMetadataIndex = 2

	//redis timeouts
	RedisJobStoreTTL = 24 * time.Hour
)
