package pageindex

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
)

// Ingest validates, indexes and stores one PDF. The file is copied into
// PDFDir so later queries can cite it after the original is gone.
func (s *service) Ingest(ctx context.Context, pdfPath string) (*IngestResult, error) {
	return s.ingest(ctx, pdfPath, func(jobModel.InternalStatus) {})
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	log := s.logger.WithContext(ctx).With("job_id", job.Id, "file", job.JobPayload.IngestFileName)
	defer s.removeUpload(job.JobPayload.IngestPath)

	res, err := s.ingest(ctx, job.JobPayload.IngestPath, func(step jobModel.InternalStatus) {
		job = logOutput(job, step, log)
	})
	if err != nil {
		return s.jobError(ctx, job, err, "ingestion failed")
	}

	job.JobPayload.DocID = res.DocID
	job.JobPayload.Title = res.Title
	job.JobPayload.TotalPages = res.TotalPages
	job.JobPayload.TreeDepth = res.TreeDepth
	job.JobPayload.NodeCount = res.NodeCount
	return logOutput(job, jobModel.Complete, log)
}

func (s *service) ingest(ctx context.Context, pdfPath string, progress func(jobModel.InternalStatus)) (*IngestResult, error) {
	log := s.logger.WithContext(ctx).With("pdf_path", pdfPath)

	progress(jobModel.IngestValidate)
	info, err := s.extractor.GetDocumentMetadata(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxPDFPages > 0 && info.PageCount > s.cfg.MaxPDFPages {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPages, info.PageCount, s.cfg.MaxPDFPages)
	}

	progress(jobModel.TreeGeneration)
	tree, err := s.generator.GenerateTree(ctx, pdfPath)
	if err != nil {
		return nil, err
	}

	progress(jobModel.TreeSave)
	stored, err := s.keepPDF(pdfPath, tree.DocID)
	if err != nil {
		return nil, fmt.Errorf("store pdf: %w", err)
	}
	if _, err := s.store.SaveTree(ctx, tree, stored); err != nil {
		return nil, err
	}
	metrics.ObserveTreeNodes(tree.NodeCount())

	res := &IngestResult{
		DocID:      tree.DocID,
		Filename:   tree.Filename,
		Title:      tree.Title,
		TotalPages: tree.TotalPages,
		TreeDepth:  tree.Depth(),
		NodeCount:  tree.NodeCount(),
		PDFPath:    stored,
	}
	log.Info("ingest_complete", "doc_id", res.DocID, "total_pages", res.TotalPages,
		"node_count", res.NodeCount)
	return res, nil
}

// keepPDF copies src to PDFDir/{docID}.pdf. Without a PDFDir the source path
// is kept as is.
func (s *service) keepPDF(src, docID string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	if s.cfg.PDFDir == "" {
		return abs, nil
	}
	if err := os.MkdirAll(s.cfg.PDFDir, 0o755); err != nil {
		return "", err
	}
	dst, err := filepath.Abs(filepath.Join(s.cfg.PDFDir, docID+".pdf"))
	if err != nil {
		return "", err
	}
	if dst == abs {
		return dst, nil
	}
	return dst, copyFile(abs, dst)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pdf-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// removeUpload deletes a staged upload and its per-job directory. Paths
// outside UploadDir are left alone.
func (s *service) removeUpload(path string) {
	if s.cfg.UploadDir == "" || path == "" {
		return
	}
	root, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}

	target := abs
	if dir := filepath.Dir(abs); dir != root {
		target = dir
	}
	if err := os.RemoveAll(target); err != nil {
		s.logger.Warn("upload_cleanup_failed", "path", target, "error", err)
	}
}
