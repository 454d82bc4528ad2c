package pageindex

import (
	"context"
	"errors"

	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

/*
OPAQUE INTERFACE PATTERN

Workers, handlers, the MCP server and the CLI only see Service. The private
service struct owns the generator, searcher, extractor and tree store, all
injected through Deps so tests can swap any of them for a mock.
*/

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrTooManyPages     = errors.New("pdf has too many pages")
	ErrEmptyQuestion    = errors.New("question must not be empty")
	ErrEmptyDocID       = errors.New("doc_id must not be empty")
)

type TreeGenerator interface {
	GenerateTree(ctx context.Context, pdfPath string) (*treeModel.DocumentTree, error)
}

type TreeSearcher interface {
	Search(ctx context.Context, query string, tree *treeModel.DocumentTree, maxDepth int) (*treeModel.SearchResult, error)
}

type PageExtractor interface {
	ExtractPages(ctx context.Context, pdfPath string, pages []int, docID string) (*extractor.ExtractionResult, error)
	GetDocumentMetadata(ctx context.Context, pdfPath string) (*extractor.DocumentInfo, error)
}

type TreeStore interface {
	SaveTree(ctx context.Context, tree *treeModel.DocumentTree, pdfPath string) (string, error)
	LoadTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error)
	GetMetadata(ctx context.Context, docID string) (treeModel.DocumentMetadata, bool, error)
	ListDocuments(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error)
	DeleteTree(ctx context.Context, docID string) (bool, error)
	PurgeStaleEntries(ctx context.Context) (int, error)
	DocumentCount(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

type StatsSource interface {
	Snapshot() telemetry.StatsSnapshot
}

// Service is everything the outer layers can ask of PageIndex.
type Service interface {
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	ProcessQuery(ctx context.Context, job jobModel.Job) jobModel.Job

	Ingest(ctx context.Context, pdfPath string) (*IngestResult, error)
	Query(ctx context.Context, docID, question string, maxDepth int) (*QueryResult, error)

	ListDocuments(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error)
	GetTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error)
	DeleteDocument(ctx context.Context, docID string) (bool, error)
	PurgeStaleEntries(ctx context.Context) (int, error)
	GetPage(ctx context.Context, docID string, page int) (*extractor.PageContent, error)
	Health(ctx context.Context) HealthReport
}

type Deps struct {
	Generator    TreeGenerator
	Searcher     TreeSearcher
	Extractor    PageExtractor
	Store        TreeStore
	Stats        StatsSource
	ProviderName string
}

type Config struct {
	// PDFDir holds the managed copy of every ingested PDF as {doc_id}.pdf.
	PDFDir          string
	UploadDir       string
	MaxPDFPages     int
	MaxContextPages int
	DefaultDepth    int
}

type IngestResult struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	Title      string `json:"title"`
	TotalPages int    `json:"total_pages"`
	TreeDepth  int    `json:"tree_depth"`
	NodeCount  int    `json:"node_count"`
	PDFPath    string `json:"pdf_path"`
}

type QueryResult struct {
	DocID          string                 `json:"doc_id"`
	Question       string                 `json:"question"`
	RelevantPages  []int                  `json:"relevant_pages"`
	Citations      []jobModel.Citation    `json:"citations"`
	Confidence     float64                `json:"confidence"`
	ReasoningTrace []treeModel.SearchStep `json:"reasoning_trace"`
	LLMCalls       int                    `json:"llm_calls"`
	Warning        string                 `json:"warning,omitempty"`
}

type HealthReport struct {
	Status        string                  `json:"status"`
	Provider      string                  `json:"llm_provider"`
	DocumentCount int                     `json:"document_count"`
	Index         string                  `json:"metadata_index"`
	LLMStats      telemetry.StatsSnapshot `json:"llm_stats"`
}

type service struct {
	generator TreeGenerator
	searcher  TreeSearcher
	extractor PageExtractor
	store     TreeStore
	stats     StatsSource
	provider  string
	cfg       Config
	logger    *logger_i.Logger
}

func NewService(deps Deps, cfg Config) Service {
	if cfg.MaxContextPages <= 0 {
		cfg.MaxContextPages = 20
	}
	return &service{
		generator: deps.Generator,
		searcher:  deps.Searcher,
		extractor: deps.Extractor,
		store:     deps.Store,
		stats:     deps.Stats,
		provider:  deps.ProviderName,
		cfg:       cfg,
		logger:    logger_i.NewLogger("pageindex_service"),
	}
}
