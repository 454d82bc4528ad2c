package pageindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
)

func (s *service) ListDocuments(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error) {
	return s.store.ListDocuments(ctx, validate)
}

func (s *service) GetTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error) {
	return s.loadTree(ctx, docID)
}

func (s *service) PurgeStaleEntries(ctx context.Context) (int, error) {
	return s.store.PurgeStaleEntries(ctx)
}

// DeleteDocument removes the tree, its index row and the managed PDF copy.
// It reports false when the document was unknown.
func (s *service) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	if docID == "" {
		return false, ErrEmptyDocID
	}
	meta, _, err := s.store.GetMetadata(ctx, docID)
	if err != nil {
		return false, err
	}
	deleted, err := s.store.DeleteTree(ctx, docID)
	if err != nil || !deleted {
		return deleted, err
	}

	if s.managed(meta.PDFPath) {
		if err := os.Remove(meta.PDFPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithContext(ctx).Warn("pdf_remove_failed", "doc_id", docID, "error", err)
		}
	}
	return true, nil
}

func (s *service) GetPage(ctx context.Context, docID string, page int) (*extractor.PageContent, error) {
	if docID == "" {
		return nil, ErrEmptyDocID
	}
	meta, ok, err := s.store.GetMetadata(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	if meta.PDFPath == "" {
		return nil, fmt.Errorf("%w: no stored pdf for %s", ErrDocumentNotFound, docID)
	}

	res, err := s.extractor.ExtractPages(ctx, meta.PDFPath, []int{page}, docID)
	if err != nil {
		return nil, err
	}
	if len(res.Pages) == 0 {
		return nil, fmt.Errorf("%w: page %d", extractor.ErrPageOutOfRange, page)
	}
	return &res.Pages[0], nil
}

func (s *service) Health(ctx context.Context) HealthReport {
	report := HealthReport{Status: "healthy", Provider: s.provider, Index: "ok"}
	if err := s.store.HealthCheck(ctx); err != nil {
		report.Status = "degraded"
		report.Index = err.Error()
	}
	if count, err := s.store.DocumentCount(ctx); err == nil {
		report.DocumentCount = count
	}
	if s.stats != nil {
		report.LLMStats = s.stats.Snapshot()
	}
	return report
}

// managed reports whether path is a copy this service made under PDFDir.
func (s *service) managed(path string) bool {
	if s.cfg.PDFDir == "" || path == "" {
		return false
	}
	root, err := filepath.Abs(s.cfg.PDFDir)
	if err != nil {
		return false
	}
	return filepath.Dir(path) == root
}
