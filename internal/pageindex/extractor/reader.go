package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// document is an open PDF. Close releases the file and any repaired copy.
type document struct {
	reader  *pdf.Reader
	file    *os.File
	path    string
	cleanup []string
}

func (d *document) Close() {
	if d.file != nil {
		_ = d.file.Close()
	}
	for _, p := range d.cleanup {
		_ = os.Remove(p)
	}
}

func (d *document) NumPage() int {
	return d.reader.NumPage()
}

func (d *document) Page(n int) pdf.Page {
	return d.reader.Page(n)
}

// Info reads title and author from the trailer's info dictionary.
func (d *document) Info() (title, author string) {
	defer func() {
		if recover() != nil {
			title, author = "", ""
		}
	}()
	info := d.reader.Trailer().Key("Info")
	if info.IsNull() {
		return "", ""
	}
	return strings.TrimSpace(info.Key("Title").Text()), strings.TrimSpace(info.Key("Author").Text())
}

// Outline flattens the bookmark tree in document order; top level is 1.
func (d *document) Outline() (entries []OutlineEntry) {
	defer func() {
		if recover() != nil {
			entries = nil
		}
	}()
	var walk func(o pdf.Outline, level int)
	walk = func(o pdf.Outline, level int) {
		for _, child := range o.Child {
			if title := strings.TrimSpace(child.Title); title != "" {
				entries = append(entries, OutlineEntry{Level: level, Title: title})
			}
			walk(child, level+1)
		}
	}
	walk(d.reader.Outline(), 1)
	return entries
}

// open tries the pure-Go reader first and falls back to a relaxed pdfcpu
// rewrite of the file.
func (e *PageExtractor) open(path string) (*document, error) {
	doc, err := openReader(path)
	if err == nil {
		return doc, nil
	}
	e.logger.Warn("pdf_open_failed", "pdf_path", path, "error", err)

	repaired, rerr := repairPDF(path)
	if rerr != nil {
		e.logger.Warn("pdf_repair_failed", "pdf_path", path, "error", rerr)
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	doc, err = openReader(repaired)
	if err != nil {
		_ = os.Remove(repaired)
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	doc.cleanup = append(doc.cleanup, repaired)
	e.logger.Info("pdf_repaired", "pdf_path", path)
	return doc, nil
}

func openReader(path string) (doc *document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = f.Close()
			doc, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if r.NumPage() == 0 {
		_ = f.Close()
		return nil, errors.New("pdf has no pages")
	}
	return &document{reader: r, file: f, path: path}, nil
}

func repairPDF(path string) (string, error) {
	tmp, err := os.CreateTemp("", "pageindex-repair-*.pdf")
	if err != nil {
		return "", err
	}
	out := tmp.Name()
	_ = tmp.Close()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, out, cfg); err != nil {
		_ = os.Remove(out)
		return "", err
	}
	return out, nil
}

// crossCheckPageCount compares the reader's count with pdfcpu's and logs
// disagreement. The reader's count wins since pages are addressed through it.
func (e *PageExtractor) crossCheckPageCount(ctx context.Context, doc *document) int {
	n := doc.NumPage()
	count, err := pdfcpuPageCount(doc.path)
	if err != nil {
		e.logger.WithContext(ctx).Debug("pdfcpu_page_count_failed", "pdf_path", doc.path, "error", err)
		return n
	}
	if count != n {
		e.logger.WithContext(ctx).Warn("page_count_mismatch", "pdf_path", doc.path, "reader", n, "pdfcpu", count)
	}
	if n == 0 {
		return count
	}
	return n
}

func pdfcpuPageCount(path string) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count, err = 0, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return api.PageCountFile(path)
}

// protectExtract bounds text extraction of a single page.
func protectExtract(ctx context.Context, page pdf.Page, timeout time.Duration) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{"", fmt.Errorf("text extraction panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", fmt.Errorf("page text extraction timed out after %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func hasImages(page pdf.Page) (found bool) {
	defer func() {
		if recover() != nil {
			found = false
		}
	}()
	xobjects := page.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
