package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

const (
	componentTree    = "tree_generator"
	componentSummary = "tree_generator_summary"
)

var ErrFileNotFound = errors.New("pdf file not found")

// TreeGenerationError is returned when no usable tree could be produced.
type TreeGenerationError struct {
	DocID string
	Stage string
	Err   error
}

func (e *TreeGenerationError) Error() string {
	return fmt.Sprintf("tree generation failed for %s (%s): %v", e.DocID, e.Stage, e.Err)
}

func (e *TreeGenerationError) Unwrap() error {
	return e.Err
}

type StructureReader interface {
	ReadStructure(ctx context.Context, pdfPath string) (*extractor.DocumentStructure, error)
}

type Config struct {
	Model              string
	SummaryModel       string
	MaxPagesPerNode    int
	SummaryConcurrency int
}

type TreeGenerator struct {
	reader   StructureReader
	provider llm.Provider
	sink     telemetry.Sink
	cfg      Config
	logger   *logger_i.Logger
}

func NewTreeGenerator(reader StructureReader, provider llm.Provider, sink telemetry.Sink, cfg Config) *TreeGenerator {
	if cfg.MaxPagesPerNode <= 0 {
		cfg.MaxPagesPerNode = config.DefaultMaxPagesPerNode
	}
	if cfg.SummaryConcurrency <= 0 {
		cfg.SummaryConcurrency = config.DefaultSummaryWorkers
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.Model
	}
	logger := logger_i.NewLogger(componentTree)
	logger.Info("tree_generator_initialized", "model", cfg.Model, "summary_model", cfg.SummaryModel,
		"max_pages_per_node", cfg.MaxPagesPerNode)
	return &TreeGenerator{
		reader:   reader,
		provider: provider,
		sink:     telemetry.Safe(sink),
		cfg:      cfg,
		logger:   logger,
	}
}

// GenerateTree builds the full tree index for one PDF. Nothing is persisted.
func (g *TreeGenerator) GenerateTree(ctx context.Context, pdfPath string) (*treeModel.DocumentTree, error) {
	start := time.Now()
	resolved, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, pdfPath)
	}
	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, resolved)
		}
		return nil, err
	}

	filename := filepath.Base(resolved)
	docID := DocID(filename)
	log := g.logger.WithContext(ctx).With("doc_id", docID)
	log.Info("generate_tree_start", "pdf_path", resolved)

	tree, err := g.generate(ctx, log, resolved, filename, docID)
	if err != nil {
		log.Error("generate_tree_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		g.sink.LogError(ctx, telemetry.ErrorEvent{
			Component:      componentTree,
			ErrorType:      errorType(err),
			Message:        err.Error(),
			RecoveryAction: "abort",
		})
		return nil, err
	}

	log.Info("generate_tree_complete", "total_pages", tree.TotalPages, "node_count", tree.NodeCount(),
		"tree_depth", tree.Depth(), "elapsed_ms", time.Since(start).Milliseconds())
	return tree, nil
}

func (g *TreeGenerator) generate(ctx context.Context, log *logger_i.Logger, path, filename, docID string) (*treeModel.DocumentTree, error) {
	structure, err := g.readStructure(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TreeGenerationError{DocID: docID, Stage: "extract", Err: err}
	}

	totalChars, pagesWithText := textStats(structure.PageTexts)
	isImageOnly := false
	switch {
	case totalChars == 0:
		isImageOnly = true
		log.Warn("zero_text_extraction", "total_pages", structure.TotalPages,
			"reason", "no text extracted from any page, pdf may be image-only")
	case float64(pagesWithText) < float64(structure.TotalPages)*config.ImageOnlyTextRatio:
		isImageOnly = true
		log.Warn("low_text_extraction", "total_pages", structure.TotalPages, "pages_with_text", pagesWithText,
			"reason", "very few pages produced text, pdf may be mostly images")
	}
	log.Info("pdf_extracted", "total_pages", structure.TotalPages, "total_chars", totalChars,
		"pages_with_text", pagesWithText)

	response, err := g.buildTreeWithLLM(ctx, structure)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TreeGenerationError{DocID: docID, Stage: "llm", Err: err}
	}

	parsed, err := parseTreeResponse(response)
	if err != nil {
		return nil, &TreeGenerationError{DocID: docID, Stage: "parse", Err: err}
	}

	roots, clamped := sectionsToNodes(parsed.Sections, structure.TotalPages)
	for _, c := range clamped {
		log.Warn("page_range_clamped", "node_id", c.NodeID, "start_page", c.Start, "end_page", c.End,
			"total_pages", structure.TotalPages)
	}
	coverage := checkCoverage(roots, structure.TotalPages, clamped)
	if len(roots) == 0 {
		log.Warn("validation_no_nodes")
	}
	if len(coverage.Missing) > 0 {
		log.Warn("validation_missing_pages", "count", len(coverage.Missing), "sample", sample(coverage.Missing))
	}
	if coverage.Extra > 0 {
		log.Warn("validation_extra_pages", "count", coverage.Extra, "sample", coverage.ExtraSample)
	}
	if len(coverage.Overlaps) > 0 {
		log.Warn("validation_overlapping_pages", "count", len(coverage.Overlaps), "sample", sample(coverage.Overlaps))
	}
	if len(coverage.Uncontained) > 0 {
		log.Warn("validation_child_outside_parent", "count", len(coverage.Uncontained),
			"node_ids", coverage.Uncontained[:min(len(coverage.Uncontained), 10)])
	}

	if err := g.backfillSummaries(ctx, log, roots, structure.PageTexts); err != nil {
		return nil, err
	}

	title := parsed.Title
	if title == "" {
		title = structure.Title
	}
	if title == "" {
		title = filename
	}

	return &treeModel.DocumentTree{
		DocID:       docID,
		Filename:    filename,
		Title:       title,
		Description: parsed.Description,
		TotalPages:  structure.TotalPages,
		RootNodes:   roots,
		Metadata: map[string]any{
			"has_toc":               len(structure.Outline) > 0,
			"toc_entries":           len(structure.Outline),
			"generation_model":      g.cfg.Model,
			"summary_model":         g.cfg.SummaryModel,
			"text_extraction_chars": totalChars,
			"pages_with_text":       pagesWithText,
			"is_image_only":         isImageOnly,
			"coverage_missing":      len(coverage.Missing),
			"coverage_extra":        coverage.Extra,
			"coverage_overlap":      len(coverage.Overlaps),
			"generated_at":          time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// readStructure runs extraction on its own goroutine so cancellation
// releases the caller immediately.
func (g *TreeGenerator) readStructure(ctx context.Context, path string) (*extractor.DocumentStructure, error) {
	type result struct {
		structure *extractor.DocumentStructure
		err       error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := g.reader.ReadStructure(ctx, path)
		ch <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err == nil && r.structure == nil {
			return nil, errors.New("no structure returned")
		}
		return r.structure, r.err
	}
}

func (g *TreeGenerator) buildTreeWithLLM(ctx context.Context, s *extractor.DocumentStructure) (string, error) {
	prompt := fmt.Sprintf(treePromptTemplate,
		s.TotalPages,
		contentSample(s.PageTexts),
		tocSection(s.Outline),
		g.cfg.MaxPagesPerNode,
	)
	return g.call(ctx, componentTree, llm.Request{
		Prompt:       prompt,
		SystemPrompt: treeSystemPrompt,
		Model:        g.cfg.Model,
		MaxTokens:    config.TreeGenMaxTokens,
		Temperature:  config.TreeGenTemperature,
		JSONMode:     true,
	})
}

// call times one LLM request and reports it to telemetry either way.
func (g *TreeGenerator) call(ctx context.Context, component string, req llm.Request) (string, error) {
	start := time.Now()
	out, err := g.provider.Generate(ctx, req)
	event := telemetry.LLMCall{
		Component:   component,
		Model:       req.Model,
		Latency:     time.Since(start),
		Temperature: req.Temperature,
		Success:     err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	g.sink.LogLLMCall(ctx, event)
	return out, err
}

// DocID derives a stable id from the file name: up to 20 characters of the
// stem plus 12 hex characters of its SHA-256.
func DocID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if r := []rune(stem); len(r) > 20 {
		stem = string(r[:20])
	}
	return strings.ReplaceAll(stem, " ", "_") + "_" + hex.EncodeToString(sum[:])[:12]
}

func textStats(pages []string) (totalChars, pagesWithText int) {
	for _, p := range pages {
		totalChars += len([]rune(p))
		if strings.TrimSpace(p) != "" {
			pagesWithText++
		}
	}
	return totalChars, pagesWithText
}

func errorType(err error) string {
	var genErr *TreeGenerationError
	switch {
	case errors.As(err, &genErr):
		return "TreeGenerationError:" + genErr.Stage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	}
	return fmt.Sprintf("%T", err)
}
