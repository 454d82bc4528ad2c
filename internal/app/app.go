package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/customHttpClient"
	"github.com/akolanti/PageIndexAPI/internal/data/artifactStore"
	"github.com/akolanti/PageIndexAPI/internal/data/redisStore"
	"github.com/akolanti/PageIndexAPI/internal/data/store"
	"github.com/akolanti/PageIndexAPI/internal/data/treeStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/generator"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm/anthropicLLM"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm/gemini"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm/openaiLLM"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/searcher"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

// statsWindow is how far back /health latency percentiles look.
const statsWindow = 15 * time.Minute

// App is the wired set of components shared by the HTTP server and the CLI.
type App struct {
	Settings  config.Settings
	Service   pageindex.Service
	Extractor *extractor.PageExtractor
	Trees     *treeStore.Store
	JobStore  jobModel.JobStore

	closers []func() error
	logger  *logger_i.Logger
}

type Options struct {
	// WithJobStore connects the job store; the CLI runs jobs inline and skips it.
	WithJobStore bool
	// Provider overrides the provider built from settings. Used by tests.
	Provider llm.Provider
}

// New builds every component from settings. On error, whatever was already
// opened is closed.
func New(ctx context.Context, settings config.Settings, opts Options) (*App, error) {
	a := &App{Settings: settings, logger: logger_i.NewLogger("app")}

	provider := opts.Provider
	if provider == nil {
		p, err := NewProvider(ctx, settings)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	provider = llm.NewRetryingProvider(provider, llm.RetryConfig{
		RequestsPerSecond: settings.LLMRequestsPerSecond,
		MaxAttempts:       settings.LLMMaxAttempts,
	})

	stats := telemetry.NewLLMStats(statsWindow)
	sink := telemetry.Multi(telemetry.NewLogSink(), metrics.NewSink(), stats)

	a.Extractor = extractor.NewPageExtractor(extractor.Options{
		MaxFileSizeBytes: settings.MaxPDFSizeBytes(),
		PageTimeout:      config.PageExtractTimeout,
	})

	artifacts, err := a.artifactStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	index, inMemory, err := a.metadataIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Trees = treeStore.New(artifacts, index)
	if inMemory {
		if _, err := a.Trees.Reindex(ctx, a.managedPDF); err != nil {
			a.logger.Warn("reindex_failed", "error", err)
		}
	}

	if opts.WithJobStore {
		if a.JobStore, err = a.jobStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	gen := generator.NewTreeGenerator(a.Extractor, provider, sink, generator.Config{
		Model:              settings.TreeGenModel,
		SummaryModel:       settings.SummaryModel,
		MaxPagesPerNode:    settings.MaxPagesPerNode,
		SummaryConcurrency: settings.SummaryConcurrency,
	})
	search := searcher.NewTreeSearcher(provider, sink, searcher.Config{
		Model:      settings.TreeSearchModel,
		MaxBreadth: settings.TreeSearchBreadth,
		MaxDepth:   settings.MaxTreeDepth,
	})

	a.Service = pageindex.NewService(pageindex.Deps{
		Generator:    gen,
		Searcher:     search,
		Extractor:    a.Extractor,
		Store:        a.Trees,
		Stats:        stats,
		ProviderName: provider.Name(),
	}, pageindex.Config{
		PDFDir:          settings.PDFsDir(),
		UploadDir:       settings.UploadsDir(),
		MaxPDFPages:     settings.MaxPDFPages,
		MaxContextPages: settings.MaxContextPages,
		DefaultDepth:    settings.MaxTreeDepth,
	})

	a.logger.Info("app_initialized", "provider", provider.Name(), "artifacts", settings.ArtifactBackend,
		"data_dir", settings.DataDir)
	return a, nil
}

// NewProvider picks the LLM client named by LLM_PROVIDER.
func NewProvider(ctx context.Context, settings config.Settings) (llm.Provider, error) {
	httpClient := customHttpClient.New(settings.LLMTimeout)
	switch settings.LLMProvider {
	case config.ProviderGemini:
		return gemini.NewGeminiClient(ctx, settings.GeminiAPIKey, settings.TreeGenModel, httpClient)
	case config.ProviderOpenAI:
		return openaiLLM.NewOpenAIClient(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.TreeGenModel, httpClient), nil
	case config.ProviderAnthropic:
		return anthropicLLM.NewAnthropicClient(settings.AnthropicAPIKey, settings.TreeGenModel, httpClient), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", settings.LLMProvider)
}

func (a *App) artifactStore(ctx context.Context) (artifactStore.Store, error) {
	if a.Settings.ArtifactBackend == config.ArtifactBackendGCS {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return artifactStore.NewGCSStore(client, a.Settings.GCSBucket, a.Settings.GCSPrefix), nil
	}
	fs, err := artifactStore.NewFileStore(a.Settings.TreesDir())
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// metadataIndex prefers redis and falls back to memory when allowed. An
// in-memory index starts empty and is rebuilt from the stored trees.
func (a *App) metadataIndex(ctx context.Context) (treeModel.MetadataIndex, bool, error) {
	rs, err := redisStore.Connect(ctx, a.Settings, config.RedisMetadataIndex)
	if err != nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return nil, false, err
		}
		a.logger.Warn("metadata_index_in_memory", "error", err)
		return store.NewInMemoryMetadataIndex(), true, nil
	}
	a.closers = append(a.closers, rs.Close)
	return store.NewRedisMetadataIndex(rs), false, nil
}

// managedPDF is where ingestion keeps its copy of a document's PDF.
func (a *App) managedPDF(docID string) string {
	path := filepath.Join(a.Settings.PDFsDir(), docID+".pdf")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (a *App) jobStore(ctx context.Context) (jobModel.JobStore, error) {
	rs, err := redisStore.Connect(ctx, a.Settings, config.RedisJobStore)
	if err != nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return nil, err
		}
		a.logger.Warn("job_store_in_memory", "error", err)
		return store.NewInMemoryJobStore(), nil
	}
	a.closers = append(a.closers, rs.Close)
	return store.NewRedisJobStore(rs), nil
}

// Close releases redis and GCS clients in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
