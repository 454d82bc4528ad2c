package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

var (
	ErrFileNotFound   = errors.New("pdf file not found")
	ErrNotAFile       = errors.New("path is not a regular file")
	ErrFileTooLarge   = errors.New("pdf file exceeds maximum size")
	ErrEmptyFile      = errors.New("pdf file is empty")
	ErrInvalidPDF     = errors.New("file is not a valid pdf")
	ErrNoPages        = errors.New("no pages requested")
	ErrInvalidRange   = errors.New("start page must not exceed end page")
	ErrPageOutOfRange = errors.New("page numbers out of range")
)

var pdfMagic = []byte("%PDF")

// PageRangeError lists every requested page outside 1..Total.
type PageRangeError struct {
	Invalid []int
	Total   int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page numbers out of range (1-%d): %v", e.Total, e.Invalid)
}

func (e *PageRangeError) Is(target error) bool {
	return target == ErrPageOutOfRange
}

type PageContent struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Tables     []string `json:"tables,omitempty"`
	HasImages  bool     `json:"has_images"`
	CharCount  int      `json:"char_count"`
}

type ExtractionResult struct {
	DocID               string        `json:"doc_id"`
	Pages               []PageContent `json:"pages"`
	TotalChars          int           `json:"total_chars"`
	TotalTokensEstimate int           `json:"total_tokens_estimate"`
}

// OutlineEntry is one bookmark. Page is 0 when the destination is unknown.
type OutlineEntry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page,omitempty"`
}

type DocumentInfo struct {
	Title         string         `json:"title"`
	Author        string         `json:"author"`
	PageCount     int            `json:"page_count"`
	Outline       []OutlineEntry `json:"toc"`
	HasTOC        bool           `json:"has_toc"`
	FileSizeBytes int64          `json:"file_size_bytes"`
}

// DocumentStructure is everything the tree generator reads from a PDF.
// PageTexts[i] holds page i+1 with any detected tables appended.
type DocumentStructure struct {
	Title      string
	TotalPages int
	PageTexts  []string
	Outline    []OutlineEntry
}

type Options struct {
	MaxFileSizeBytes int64
	PageTimeout      time.Duration
}

type PageExtractor struct {
	maxFileSize int64
	pageTimeout time.Duration
	logger      *logger_i.Logger
}

func NewPageExtractor(opts Options) *PageExtractor {
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = 50 << 20
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = config.PageExtractTimeout
	}
	logger := logger_i.NewLogger("page_extractor")
	logger.Info("page_extractor_initialized", "max_file_size_mb", opts.MaxFileSizeBytes>>20)
	return &PageExtractor{
		maxFileSize: opts.MaxFileSizeBytes,
		pageTimeout: opts.PageTimeout,
		logger:      logger,
	}
}

// ExtractPages returns the content of the given 1-indexed pages, deduplicated
// and ascending. Every page is range checked before any is extracted.
func (e *PageExtractor) ExtractPages(ctx context.Context, pdfPath string, pages []int, docID string) (*ExtractionResult, error) {
	resolved, _, err := e.validatePath(pdfPath)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	if docID == "" {
		docID = stem(resolved)
	}
	log := e.logger.WithContext(ctx).With("doc_id", docID)
	log.Info("extract_pages_start", "pdf_path", resolved, "requested_pages", pages)

	doc, err := e.open(resolved)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.NumPage()
	var invalid []int
	for _, p := range pages {
		if p < 1 || p > total {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return nil, &PageRangeError{Invalid: invalid, Total: total}
	}

	result := &ExtractionResult{DocID: docID}
	for _, p := range uniqueSorted(pages) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pc := e.extractPage(ctx, doc, p)
		result.Pages = append(result.Pages, pc)
		result.TotalChars += pc.CharCount
	}
	result.TotalTokensEstimate = result.TotalChars / 4

	log.Info("extract_pages_complete", "pages_extracted", len(result.Pages), "total_chars", result.TotalChars,
		"token_estimate", result.TotalTokensEstimate)
	return result, nil
}

func (e *PageExtractor) ExtractPageRange(ctx context.Context, pdfPath string, start, end int, docID string) (*ExtractionResult, error) {
	if start > end {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, start, end)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return e.ExtractPages(ctx, pdfPath, pages, docID)
}

func (e *PageExtractor) GetDocumentMetadata(ctx context.Context, pdfPath string) (*DocumentInfo, error) {
	resolved, info, err := e.validatePath(pdfPath)
	if err != nil {
		return nil, err
	}
	doc, err := e.open(resolved)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	title, author := doc.Info()
	outline := doc.Outline()
	count := e.crossCheckPageCount(ctx, doc)

	result := &DocumentInfo{
		Title:         title,
		Author:        author,
		PageCount:     count,
		Outline:       outline,
		HasTOC:        len(outline) > 0,
		FileSizeBytes: info.Size(),
	}
	e.logger.WithContext(ctx).Info("metadata_extracted", "pdf_path", resolved, "page_count", count,
		"has_toc", result.HasTOC, "toc_entries", len(outline), "file_size_bytes", info.Size())
	return result, nil
}

func (e *PageExtractor) GetPageCount(ctx context.Context, pdfPath string) (int, error) {
	resolved, _, err := e.validatePath(pdfPath)
	if err != nil {
		return 0, err
	}
	doc, err := e.open(resolved)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// ReadStructure reads every page. Table failures only drop the tables of
// that page.
func (e *PageExtractor) ReadStructure(ctx context.Context, pdfPath string) (*DocumentStructure, error) {
	resolved, _, err := e.validatePath(pdfPath)
	if err != nil {
		return nil, err
	}
	doc, err := e.open(resolved)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.NumPage()
	s := &DocumentStructure{
		TotalPages: total,
		PageTexts:  make([]string, 0, total),
	}
	s.Title, _ = doc.Info()

	for p := 1; p <= total; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pc := e.extractPage(ctx, doc, p)
		text := pc.Text
		if len(pc.Tables) > 0 {
			text += "\n\n[TABLES ON THIS PAGE]\n" + strings.Join(pc.Tables, "\n\n")
		}
		s.PageTexts = append(s.PageTexts, text)
	}
	s.Outline = resolveOutlinePages(doc.Outline(), s.PageTexts)
	return s, nil
}

func (e *PageExtractor) extractPage(ctx context.Context, doc *document, pageNum int) PageContent {
	log := e.logger.WithContext(ctx)
	page := doc.Page(pageNum)
	pc := PageContent{PageNumber: pageNum}
	if page.V.IsNull() {
		log.Debug("page_value_null", "page_number", pageNum)
		return pc
	}

	text, err := protectExtract(ctx, page, e.pageTimeout)
	if err != nil {
		log.Warn("page_text_failed", "page_number", pageNum, "error", err)
	}
	pc.Text = strings.TrimSpace(text)
	pc.CharCount = utf8.RuneCountInString(pc.Text)

	tables, err := detectTables(page)
	if err != nil {
		log.Warn("table_detection_failed", "page_number", pageNum, "error", err)
	}
	pc.Tables = tables
	pc.HasImages = hasImages(page)
	return pc
}

// validatePath canonicalises the path and checks it points at a plausible PDF.
func (e *PageExtractor) validatePath(pdfPath string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, pdfPath)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, abs)
		}
		return "", nil, fmt.Errorf("resolving %s: %w", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrFileNotFound, resolved)
		}
		return "", nil, err
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", ErrNotAFile, resolved)
	}
	if info.Size() > e.maxFileSize {
		return "", nil, fmt.Errorf("%w (%.1fMB > %dMB): %s", ErrFileTooLarge,
			float64(info.Size())/(1<<20), e.maxFileSize>>20, filepath.Base(resolved))
	}
	if info.Size() == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyFile, filepath.Base(resolved))
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, pdfMagic) {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidPDF, filepath.Base(resolved))
	}
	return resolved, info, nil
}

func uniqueSorted(pages []int) []int {
	seen := make(map[int]struct{}, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
