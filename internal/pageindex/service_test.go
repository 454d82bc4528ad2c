package pageindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/akolanti/PageIndexAPI/internal/data/artifactStore"
	"github.com/akolanti/PageIndexAPI/internal/data/store"
	"github.com/akolanti/PageIndexAPI/internal/data/treeStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/generator"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
)

type mockGenerator struct {
	OnGenerateTree func(ctx context.Context, pdfPath string) (*treeModel.DocumentTree, error)
}

func (m *mockGenerator) GenerateTree(ctx context.Context, pdfPath string) (*treeModel.DocumentTree, error) {
	return m.OnGenerateTree(ctx, pdfPath)
}

type mockSearcher struct {
	OnSearch func(ctx context.Context, query string, tree *treeModel.DocumentTree, maxDepth int) (*treeModel.SearchResult, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, tree *treeModel.DocumentTree, maxDepth int) (*treeModel.SearchResult, error) {
	return m.OnSearch(ctx, query, tree, maxDepth)
}

type mockExtractor struct {
	OnExtractPages        func(ctx context.Context, pdfPath string, pages []int, docID string) (*extractor.ExtractionResult, error)
	OnGetDocumentMetadata func(ctx context.Context, pdfPath string) (*extractor.DocumentInfo, error)
}

func (m *mockExtractor) ExtractPages(ctx context.Context, pdfPath string, pages []int, docID string) (*extractor.ExtractionResult, error) {
	return m.OnExtractPages(ctx, pdfPath, pages, docID)
}

func (m *mockExtractor) GetDocumentMetadata(ctx context.Context, pdfPath string) (*extractor.DocumentInfo, error) {
	return m.OnGetDocumentMetadata(ctx, pdfPath)
}

type mockStats struct {
	snapshot telemetry.StatsSnapshot
}

func (m mockStats) Snapshot() telemetry.StatsSnapshot { return m.snapshot }

func reportTree() *treeModel.DocumentTree {
	return &treeModel.DocumentTree{
		DocID:      "report_3f2a9c1b7d4e",
		Filename:   "report.pdf",
		Title:      "Annual Report",
		TotalPages: 20,
		RootNodes: []*treeModel.TreeNode{
			{Title: "Intro", NodeID: "L0_N0_intro", StartPage: 1, EndPage: 5},
			{Title: "Financials", NodeID: "L0_N1_financials", StartPage: 6, EndPage: 20, Children: []*treeModel.TreeNode{
				{Title: "Income", NodeID: "L1_N0_income", StartPage: 6, EndPage: 12, Level: 1},
				{Title: "Balance Sheet", NodeID: "L1_N1_balance_sheet", StartPage: 13, EndPage: 20, Level: 1},
			}},
		},
	}
}

func pagesOf(pages []int) *extractor.ExtractionResult {
	res := &extractor.ExtractionResult{}
	for _, p := range pages {
		res.Pages = append(res.Pages, extractor.PageContent{PageNumber: p, Text: fmt.Sprintf("page %d text", p)})
	}
	return res
}

type fixture struct {
	svc       Service
	trees     *treeStore.Store
	generator *mockGenerator
	searcher  *mockSearcher
	extractor *mockExtractor
	pdfDir    string
	uploadDir string
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	root := t.TempDir()
	files, err := artifactStore.NewFileStore(filepath.Join(root, "trees"))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		trees: treeStore.New(files, store.NewInMemoryMetadataIndex()),
		generator: &mockGenerator{OnGenerateTree: func(context.Context, string) (*treeModel.DocumentTree, error) {
			return reportTree(), nil
		}},
		searcher: &mockSearcher{},
		extractor: &mockExtractor{
			OnGetDocumentMetadata: func(context.Context, string) (*extractor.DocumentInfo, error) {
				return &extractor.DocumentInfo{PageCount: 20}, nil
			},
			OnExtractPages: func(_ context.Context, _ string, pages []int, _ string) (*extractor.ExtractionResult, error) {
				return pagesOf(pages), nil
			},
		},
		pdfDir:    filepath.Join(root, "pdfs"),
		uploadDir: filepath.Join(root, "uploads"),
	}
	cfg.PDFDir = f.pdfDir
	cfg.UploadDir = f.uploadDir
	f.svc = NewService(Deps{
		Generator:    f.generator,
		Searcher:     f.searcher,
		Extractor:    f.extractor,
		Store:        f.trees,
		Stats:        mockStats{snapshot: telemetry.StatsSnapshot{Count: 4, Failures: 1}},
		ProviderName: "mock",
	}, cfg)
	return f
}

// stage writes a fake upload the way the ingest handler does.
func (f *fixture) stage(t *testing.T, jobID string) string {
	t.Helper()
	dir := filepath.Join(f.uploadDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ingestJob(path string) jobModel.Job {
	return jobModel.Job{
		Id:      "job-1",
		JobType: jobModel.JobTypeIngest,
		Status:  jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			IngestFileName: filepath.Base(path),
			IngestPath:     path,
		},
	}
}

func TestIngestDocument(t *testing.T) {
	f := newFixture(t, Config{MaxPDFPages: 500})
	upload := f.stage(t, "job-1")

	got := f.svc.IngestDocument(context.Background(), ingestJob(upload))

	if got.Status == jobModel.JobStatusError {
		t.Fatalf("unexpected job error: %+v", got.Error)
	}
	if got.CurrentStep != jobModel.Complete {
		t.Errorf("got step %v, want %v", got.CurrentStep, jobModel.Complete)
	}
	p := got.JobPayload
	if p.DocID != "report_3f2a9c1b7d4e" || p.Title != "Annual Report" || p.TotalPages != 20 {
		t.Errorf("got payload %+v", p)
	}
	if p.NodeCount != 4 || p.TreeDepth != 2 {
		t.Errorf("got node_count %d depth %d, want 4 and 2", p.NodeCount, p.TreeDepth)
	}

	if _, err := os.Stat(filepath.Dir(upload)); !os.IsNotExist(err) {
		t.Errorf("upload dir still present: %v", err)
	}
	managed := filepath.Join(f.pdfDir, p.DocID+".pdf")
	if data, err := os.ReadFile(managed); err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("managed pdf not written: %v", err)
	}
	meta, ok, err := f.trees.GetMetadata(context.Background(), p.DocID)
	if err != nil || !ok {
		t.Fatalf("metadata missing: ok=%v err=%v", ok, err)
	}
	if meta.PDFPath != managed {
		t.Errorf("got pdf_path %q, want %q", meta.PDFPath, managed)
	}
}

func TestIngestDocument_Failures(t *testing.T) {
	tests := []struct {
		name      string
		pages     int
		infoErr   error
		genErr    error
		wantCode  int
		wantRetry bool
		wantMsg   string
	}{
		{name: "tooManyPages", pages: 501, wantCode: http.StatusBadRequest, wantMsg: "ingestion failed: pdf has too many pages: 501 > 500"},
		{name: "invalidPDF", infoErr: fmt.Errorf("%w: report.pdf", extractor.ErrInvalidPDF), wantCode: http.StatusBadRequest,
			wantMsg: "ingestion failed: file is not a valid pdf"},
		{name: "generation", genErr: &generator.TreeGenerationError{DocID: "report", Stage: "parse", Err: llm.ErrNoJSON},
			wantCode: http.StatusInternalServerError, wantRetry: true, wantMsg: "ingestion failed: tree generation failed"},
		{name: "rateLimited", genErr: &llm.RateLimitError{Err: errors.New("429")},
			wantCode: http.StatusServiceUnavailable, wantRetry: true, wantMsg: "ingestion failed: rate limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{MaxPDFPages: 500})
			pages := tt.pages
			if pages == 0 {
				pages = 20
			}
			f.extractor.OnGetDocumentMetadata = func(context.Context, string) (*extractor.DocumentInfo, error) {
				if tt.infoErr != nil {
					return nil, tt.infoErr
				}
				return &extractor.DocumentInfo{PageCount: pages}, nil
			}
			generated := false
			f.generator.OnGenerateTree = func(context.Context, string) (*treeModel.DocumentTree, error) {
				generated = true
				if tt.genErr != nil {
					return nil, tt.genErr
				}
				return reportTree(), nil
			}
			upload := f.stage(t, "job-1")

			got := f.svc.IngestDocument(context.Background(), ingestJob(upload))

			if got.Status != jobModel.JobStatusError {
				t.Fatalf("got status %v, want %v", got.Status, jobModel.JobStatusError)
			}
			if got.Error.Code != tt.wantCode || got.Error.Retry != tt.wantRetry {
				t.Errorf("got code %d retry %v, want %d %v", got.Error.Code, got.Error.Retry, tt.wantCode, tt.wantRetry)
			}
			if !strings.HasPrefix(got.Error.Message, tt.wantMsg) {
				t.Errorf("got message %q, want prefix %q", got.Error.Message, tt.wantMsg)
			}
			if generated != (tt.genErr != nil) {
				t.Errorf("got generated %v, want %v", generated, tt.genErr != nil)
			}
			if docs, _ := f.trees.ListDocuments(context.Background(), false); len(docs) != 0 {
				t.Errorf("got %d stored documents, want 0", len(docs))
			}
			if _, err := os.Stat(upload); !os.IsNotExist(err) {
				t.Errorf("upload not cleaned up: %v", err)
			}
		})
	}
}

func TestIngest_KeepsSourceOutsideUploads(t *testing.T) {
	f := newFixture(t, Config{})
	src := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.7"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Ingest(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed: %v", err)
	}
	if res.PDFPath != filepath.Join(f.pdfDir, res.DocID+".pdf") {
		t.Errorf("got pdf path %q", res.PDFPath)
	}
}

// ingested stores reportTree with a managed PDF, bypassing generation.
func (f *fixture) ingested(t *testing.T) string {
	t.Helper()
	upload := f.stage(t, "seed")
	if _, err := f.svc.Ingest(context.Background(), upload); err != nil {
		t.Fatal(err)
	}
	return reportTree().DocID
}

func queryJob(docID, question string) jobModel.Job {
	return jobModel.Job{
		Id:         "job-2",
		JobType:    jobModel.JobTypeQuery,
		JobPayload: jobModel.JobPayload{DocID: docID, Question: question},
	}
}

func TestProcessQuery(t *testing.T) {
	f := newFixture(t, Config{MaxContextPages: 5, DefaultDepth: 3})
	docID := f.ingested(t)

	var gotDepth int
	f.searcher.OnSearch = func(_ context.Context, query string, tree *treeModel.DocumentTree, maxDepth int) (*treeModel.SearchResult, error) {
		gotDepth = maxDepth
		if query != "What were total assets?" || tree.DocID != docID {
			t.Errorf("got query %q tree %q", query, tree.DocID)
		}
		node := tree.FindNode("L1_N1_balance_sheet")
		return &treeModel.SearchResult{
			RelevantNodes: []*treeModel.TreeNode{node},
			RelevantPages: node.Pages(),
			ReasoningTrace: []treeModel.SearchStep{
				{Level: 0, NodeID: "L0_N1_financials", Selected: true, Confidence: 0.9},
				{Level: 1, NodeID: "L1_N1_balance_sheet", Selected: true, Confidence: 0.9},
			},
			Confidence: 0.56,
			LLMCalls:   2,
		}, nil
	}
	var extracted []int
	f.extractor.OnExtractPages = func(_ context.Context, pdfPath string, pages []int, _ string) (*extractor.ExtractionResult, error) {
		if pdfPath != filepath.Join(f.pdfDir, docID+".pdf") {
			t.Errorf("got pdf path %q", pdfPath)
		}
		extracted = pages
		return pagesOf(pages), nil
	}

	got := f.svc.ProcessQuery(context.Background(), queryJob(docID, "  What were total assets?  "))

	if got.Status == jobModel.JobStatusError {
		t.Fatalf("unexpected job error: %+v", got.Error)
	}
	p := got.JobPayload
	if want := []int{13, 14, 15, 16, 17, 18, 19, 20}; !reflect.DeepEqual(p.RelevantPages, want) {
		t.Errorf("got pages %v, want %v", p.RelevantPages, want)
	}
	if want := []int{13, 14, 15, 16, 17}; !reflect.DeepEqual(extracted, want) {
		t.Errorf("got extracted %v, want %v", extracted, want)
	}
	if len(p.Citations) != 5 || p.Citations[0].Page != 13 || p.Citations[0].Text != "page 13 text" {
		t.Errorf("got citations %+v", p.Citations)
	}
	if p.Confidence != 0.56 || len(p.ReasoningTrace) != 2 || p.Warning != "" {
		t.Errorf("got confidence %v trace %d warning %q", p.Confidence, len(p.ReasoningTrace), p.Warning)
	}
	if gotDepth != 3 {
		t.Errorf("got depth %d, want default 3", gotDepth)
	}
	if got.CurrentStep != jobModel.Complete {
		t.Errorf("got step %v", got.CurrentStep)
	}
}

func TestProcessQuery_UnknownDocument(t *testing.T) {
	f := newFixture(t, Config{})

	got := f.svc.ProcessQuery(context.Background(), queryJob("missing_000000000000", "What were total assets?"))

	if got.Status != jobModel.JobStatusError || got.Error.Code != http.StatusNotFound || got.Error.Retry {
		t.Fatalf("got %+v", got.Error)
	}
	if want := "query failed: document not found: missing_000000000000"; got.Error.Message != want {
		t.Errorf("got message %q, want %q", got.Error.Message, want)
	}
	if got.CurrentStep != jobModel.Error {
		t.Errorf("got step %v", got.CurrentStep)
	}
}

func TestQuery_SearchFailureIsAWarning(t *testing.T) {
	f := newFixture(t, Config{})
	docID := f.ingested(t)
	f.searcher.OnSearch = func(context.Context, string, *treeModel.DocumentTree, int) (*treeModel.SearchResult, error) {
		return nil, errors.New("search level 0: upstream unavailable")
	}

	res, err := f.svc.Query(context.Background(), docID, "anything?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RelevantPages) != 0 || len(res.Citations) != 0 || res.Confidence != 0 {
		t.Errorf("got %+v", res)
	}
	if !strings.HasPrefix(res.Warning, "search failed: ") {
		t.Errorf("got warning %q", res.Warning)
	}
	if res.RelevantPages == nil || res.ReasoningTrace == nil {
		t.Error("empty result slices must not be nil")
	}
}

func TestQuery_CitationFailureKeepsPages(t *testing.T) {
	f := newFixture(t, Config{})
	docID := f.ingested(t)
	f.searcher.OnSearch = func(_ context.Context, _ string, tree *treeModel.DocumentTree, _ int) (*treeModel.SearchResult, error) {
		return &treeModel.SearchResult{RelevantPages: []int{1, 2}, Confidence: 0.7}, nil
	}
	f.extractor.OnExtractPages = func(context.Context, string, []int, string) (*extractor.ExtractionResult, error) {
		return nil, extractor.ErrInvalidPDF
	}

	res, err := f.svc.Query(context.Background(), docID, "intro?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.RelevantPages, []int{1, 2}) || len(res.Citations) != 0 {
		t.Errorf("got %+v", res)
	}
	if !strings.HasPrefix(res.Warning, "page extraction failed") {
		t.Errorf("got warning %q", res.Warning)
	}
}

func TestQuery_CitesOnlyPagesInsideTheDocument(t *testing.T) {
	f := newFixture(t, Config{MaxContextPages: 5})
	docID := f.ingested(t)
	f.searcher.OnSearch = func(context.Context, string, *treeModel.DocumentTree, int) (*treeModel.SearchResult, error) {
		return &treeModel.SearchResult{RelevantPages: []int{19, 20, 21, 22}, Confidence: 0.6}, nil
	}
	var extracted []int
	f.extractor.OnExtractPages = func(_ context.Context, _ string, pages []int, _ string) (*extractor.ExtractionResult, error) {
		for _, p := range pages {
			if p > 20 {
				return nil, extractor.ErrPageOutOfRange
			}
		}
		extracted = pages
		return pagesOf(pages), nil
	}

	res, err := f.svc.Query(context.Background(), docID, "appendix?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(extracted, []int{19, 20}) {
		t.Errorf("got extracted %v, want [19 20]", extracted)
	}
	if len(res.Citations) != 2 || res.Citations[1].Page != 20 {
		t.Errorf("got citations %+v", res.Citations)
	}
	if !reflect.DeepEqual(res.RelevantPages, []int{19, 20, 21, 22}) {
		t.Errorf("relevant pages should be reported unchanged, got %v", res.RelevantPages)
	}
	if !strings.Contains(res.Warning, "2 relevant pages are outside the 20-page document") {
		t.Errorf("got warning %q", res.Warning)
	}
}

func TestQuery_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	tests := []struct {
		name     string
		docID    string
		question string
		want     error
	}{
		{name: "noDoc", question: "q?", want: ErrEmptyDocID},
		{name: "blankQuestion", docID: "report", question: "   ", want: ErrEmptyQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Query(context.Background(), tt.docID, tt.question, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if code, _ := StatusFor(err); code != http.StatusBadRequest {
				t.Errorf("got code %d, want 400", code)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	docID := f.ingested(t)

	docs, err := f.svc.ListDocuments(ctx, true)
	if err != nil || len(docs) != 1 || docs[0].DocID != docID {
		t.Fatalf("got %v %v", docs, err)
	}

	tree, err := f.svc.GetTree(ctx, docID)
	if err != nil || tree.NodeCount() != 4 {
		t.Fatalf("got %v %v", tree, err)
	}

	page, err := f.svc.GetPage(ctx, docID, 7)
	if err != nil || page.PageNumber != 7 {
		t.Fatalf("got %+v %v", page, err)
	}
	if _, err := f.svc.GetPage(ctx, "nope", 1); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("got %v, want ErrDocumentNotFound", err)
	}

	health := f.svc.Health(ctx)
	if health.Status != "healthy" || health.DocumentCount != 1 || health.Provider != "mock" || health.LLMStats.Count != 4 {
		t.Errorf("got health %+v", health)
	}

	deleted, err := f.svc.DeleteDocument(ctx, docID)
	if err != nil || !deleted {
		t.Fatalf("got deleted %v err %v", deleted, err)
	}
	if _, err := os.Stat(filepath.Join(f.pdfDir, docID+".pdf")); !os.IsNotExist(err) {
		t.Errorf("managed pdf still present: %v", err)
	}
	if deleted, err := f.svc.DeleteDocument(ctx, docID); err != nil || deleted {
		t.Errorf("second delete: got %v %v, want false nil", deleted, err)
	}
	if _, err := f.svc.GetTree(ctx, docID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("got %v, want ErrDocumentNotFound", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantRetry bool
	}{
		{"notFound", fmt.Errorf("%w: x", ErrDocumentNotFound), http.StatusNotFound, false},
		{"fileNotFound", generator.ErrFileNotFound, http.StatusNotFound, false},
		{"pageRange", &extractor.PageRangeError{Total: 3, Invalid: []int{9}}, http.StatusBadRequest, false},
		{"tooLarge", extractor.ErrFileTooLarge, http.StatusBadRequest, false},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, true},
		{"rateLimited", &llm.RateLimitError{Err: errors.New("slow down")}, http.StatusServiceUnavailable, true},
		{"other", errors.New("boom"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, retry := StatusFor(tt.err)
			if code != tt.wantCode || retry != tt.wantRetry {
				t.Errorf("got %d %v, want %d %v", code, retry, tt.wantCode, tt.wantRetry)
			}
		})
	}
}
