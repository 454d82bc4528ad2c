package pageindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/data/treeStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

// Query finds the pages of docID that answer question and cites them. A
// failed search is not an error: the result has no pages, confidence 0 and
// a warning.
func (s *service) Query(ctx context.Context, docID, question string, maxDepth int) (*QueryResult, error) {
	return s.query(ctx, docID, question, maxDepth, func(jobModel.InternalStatus) {})
}

func (s *service) ProcessQuery(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("tree_query", time.Since(start)) }()

	log := s.logger.WithContext(ctx).With("job_id", job.Id, "doc_id", job.JobPayload.DocID)
	job = logOutput(job, jobModel.UserQueryInit, log)

	p := job.JobPayload
	res, err := s.query(ctx, p.DocID, p.Question, p.MaxDepth, func(step jobModel.InternalStatus) {
		job = logOutput(job, step, log)
	})
	if err != nil {
		return s.jobError(ctx, job, err, "query failed")
	}

	job.JobPayload.RelevantPages = res.RelevantPages
	job.JobPayload.Citations = res.Citations
	job.JobPayload.Confidence = res.Confidence
	job.JobPayload.ReasoningTrace = res.ReasoningTrace
	job.JobPayload.Warning = res.Warning
	return logOutput(job, jobModel.Complete, log)
}

func (s *service) query(ctx context.Context, docID, question string, maxDepth int, progress func(jobModel.InternalStatus)) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	switch {
	case docID == "":
		return nil, ErrEmptyDocID
	case question == "":
		return nil, ErrEmptyQuestion
	}
	if maxDepth <= 0 {
		maxDepth = s.cfg.DefaultDepth
	}
	log := s.logger.WithContext(ctx).With("doc_id", docID)

	progress(jobModel.TreeLoad)
	tree, err := s.loadTree(ctx, docID)
	if err != nil {
		return nil, err
	}

	res := &QueryResult{
		DocID:          docID,
		Question:       question,
		RelevantPages:  []int{},
		Citations:      []jobModel.Citation{},
		ReasoningTrace: []treeModel.SearchStep{},
	}

	progress(jobModel.TreeSearch)
	found, err := s.searcher.Search(ctx, question, tree, maxDepth)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("search_failed", "error", err)
		metrics.ObserveSearchConfidence(0)
		res.Warning = "search failed: " + err.Error()
		return res, nil
	}
	metrics.ObserveSearchConfidence(found.Confidence)
	res.Confidence = found.Confidence
	res.LLMCalls = found.LLMCalls
	if found.RelevantPages != nil {
		res.RelevantPages = found.RelevantPages
	}
	if found.ReasoningTrace != nil {
		res.ReasoningTrace = found.ReasoningTrace
	}
	if len(res.RelevantPages) == 0 {
		log.Info("query_no_relevant_pages", "llm_calls", res.LLMCalls)
		return res, nil
	}

	progress(jobModel.PageExtract)
	s.cite(ctx, log, res)
	log.Info("query_complete", "relevant_pages", len(res.RelevantPages), "citations", len(res.Citations),
		"confidence", res.Confidence)
	return res, nil
}

// cite extracts at most MaxContextPages of the relevant pages. Extraction
// problems become a warning rather than failing the query.
func (s *service) cite(ctx context.Context, log *logger_i.Logger, res *QueryResult) {
	meta, ok, err := s.store.GetMetadata(ctx, res.DocID)
	if err != nil || !ok || meta.PDFPath == "" {
		log.Warn("citation_source_missing", "error", err)
		res.Warning = "source pdf unavailable, citations omitted"
		return
	}

	pages, dropped := withinDocument(res.RelevantPages, meta.TotalPages)
	if len(dropped) > 0 {
		sample := dropped[:min(len(dropped), 10)]
		log.Warn("citation_pages_out_of_range", "total_pages", meta.TotalPages, "count", len(dropped), "sample", sample)
		res.Warning = fmt.Sprintf("%d relevant pages are outside the %d-page document and were not cited (e.g. %v)",
			len(dropped), meta.TotalPages, sample)
	}
	if len(pages) == 0 {
		return
	}
	if len(pages) > s.cfg.MaxContextPages {
		log.Debug("citations_capped", "relevant_pages", len(pages), "max_context_pages", s.cfg.MaxContextPages)
		pages = pages[:s.cfg.MaxContextPages]
	}
	extracted, err := s.extractor.ExtractPages(ctx, meta.PDFPath, pages, res.DocID)
	if err != nil {
		log.Warn("citation_extract_failed", "error", err)
		res.Warning = "page extraction failed: " + err.Error()
		return
	}
	for _, p := range extracted.Pages {
		res.Citations = append(res.Citations, jobModel.Citation{
			Page:      p.PageNumber,
			Text:      p.Text,
			HasImages: p.HasImages,
		})
	}
}

// withinDocument splits pages into those inside 1..total and the rest. A
// non-positive total keeps everything.
func withinDocument(pages []int, total int) (kept, dropped []int) {
	if total <= 0 {
		return pages, nil
	}
	kept = make([]int, 0, len(pages))
	for _, p := range pages {
		if p >= 1 && p <= total {
			kept = append(kept, p)
		} else {
			dropped = append(dropped, p)
		}
	}
	return kept, dropped
}

func (s *service) loadTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error) {
	if docID == "" {
		return nil, ErrEmptyDocID
	}
	tree, err := s.store.LoadTree(ctx, docID)
	if errors.Is(err, treeStore.ErrTreeNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	return tree, err
}
