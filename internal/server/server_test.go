package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/api"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/data/store"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/handlers"
	"github.com/akolanti/PageIndexAPI/internal/job"
	"github.com/akolanti/PageIndexAPI/internal/mcpServer"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/internal/middleware"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const token = "test-token"

type mockService struct {
	pageindex.Service
	OnListDocuments  func(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error)
	OnGetTree        func(ctx context.Context, docID string) (*treeModel.DocumentTree, error)
	OnDeleteDocument func(ctx context.Context, docID string) (bool, error)
	OnPurge          func(ctx context.Context) (int, error)
	OnGetPage        func(ctx context.Context, docID string, page int) (*extractor.PageContent, error)
	OnHealth         func(ctx context.Context) pageindex.HealthReport
}

func (m *mockService) ListDocuments(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error) {
	return m.OnListDocuments(ctx, validate)
}

func (m *mockService) GetTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error) {
	return m.OnGetTree(ctx, docID)
}

func (m *mockService) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	return m.OnDeleteDocument(ctx, docID)
}

func (m *mockService) PurgeStaleEntries(ctx context.Context) (int, error) {
	return m.OnPurge(ctx)
}

func (m *mockService) GetPage(ctx context.Context, docID string, page int) (*extractor.PageContent, error) {
	return m.OnGetPage(ctx, docID, page)
}

func (m *mockService) Health(ctx context.Context) pageindex.HealthReport {
	return m.OnHealth(ctx)
}

type fixture struct {
	router    http.Handler
	jobs      *job.Service
	svc       *mockService
	uploadDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	jobs := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          store.NewInMemoryJobStore(),
	})
	svc := &mockService{
		OnListDocuments: func(context.Context, bool) ([]treeModel.DocumentMetadata, error) { return nil, nil },
		OnHealth: func(context.Context) pageindex.HealthReport {
			return pageindex.HealthReport{Status: "healthy", Index: "ok"}
		},
	}
	uploadDir := filepath.Join(t.TempDir(), "uploads")
	h := handlers.NewHandler(jobs, svc, handlers.Options{UploadDir: uploadDir})
	mw := middleware.New(config.Settings{AuthToken: token})
	return &fixture{router: NewRouter(h, mw, nil), jobs: jobs, svc: svc, uploadDir: uploadDir}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"notBearer", "Basic " + token, http.StatusUnauthorized},
		{"wrongToken", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}

	t.Run("healthNeedsNoToken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("got %d, want 200", rec.Code)
		}
	})
}

func TestTraceIdIsEchoed(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Trace-Id", "trace-123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-Id"); got != "trace-123" {
		t.Errorf("got trace %q, want trace-123", got)
	}
}

func TestQueryHandler(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"badJSON", `{"question":`, http.StatusBadRequest},
		{"shortQuestion", `{"question":"hi","doc_id":"report"}`, http.StatusBadRequest},
		{"longQuestion", fmt.Sprintf(`{"question":%q,"doc_id":"report"}`, strings.Repeat("a", 2001)), http.StatusBadRequest},
		{"missingDoc", `{"question":"What were total assets?"}`, http.StatusBadRequest},
		{"depthTooLarge", `{"question":"What were total assets?","doc_id":"report","max_depth":11}`, http.StatusBadRequest},
		{"valid", `{"question":"  What were total assets?  ","doc_id":"report","max_depth":2}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/query", []byte(tt.body), "application/json")
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusAccepted {
				if len(f.jobs.JobChannel) != 0 {
					t.Error("rejected request was queued")
				}
				return
			}

			res := decode[api.InitJobResponse](t, rec)
			if res.StatusURL != "status/"+res.Id {
				t.Errorf("got status url %q", res.StatusURL)
			}
			queued := <-f.jobs.JobChannel
			if queued.Id != res.Id || queued.JobType != jobModel.JobTypeQuery {
				t.Errorf("got queued job %+v", queued)
			}
			p := queued.JobPayload
			if p.Question != "What were total assets?" || p.DocID != "report" || p.MaxDepth != 2 {
				t.Errorf("got payload %+v", p)
			}
			stored, ok := f.jobs.JobStore.GetJob(context.Background(), res.Id)
			if !ok || stored.Status != jobModel.JobStatusQueued {
				t.Errorf("got stored job %+v ok=%v", stored, ok)
			}
		})
	}
}

func multipartBody(t *testing.T, filename string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func TestPostIngestHandler(t *testing.T) {
	t.Run("stagesUploadAndQueues", func(t *testing.T) {
		f := newFixture(t)
		body, contentType := multipartBody(t, "report.pdf", []byte("%PDF-1.7 fake"))

		rec := f.do(t, http.MethodPost, "/ingest", body, contentType)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
		}
		res := decode[api.InitJobResponse](t, rec)

		queued := <-f.jobs.JobChannel
		want := filepath.Join(f.uploadDir, res.Id, "report.pdf")
		if queued.JobType != jobModel.JobTypeIngest || queued.JobPayload.IngestPath != want {
			t.Errorf("got queued job %+v, want path %q", queued, want)
		}
		if queued.JobPayload.IngestFileName != "report.pdf" {
			t.Errorf("got file name %q", queued.JobPayload.IngestFileName)
		}
		if data, err := os.ReadFile(want); err != nil || string(data) != "%PDF-1.7 fake" {
			t.Errorf("staged file: %q %v", data, err)
		}
		select {
		case <-f.jobs.DispatcherChannel:
		default:
			t.Error("ingest did not signal the dispatcher")
		}
	})

	t.Run("rejectsNonPDF", func(t *testing.T) {
		f := newFixture(t)
		body, contentType := multipartBody(t, "notes.docx", []byte("PK"))
		rec := f.do(t, http.MethodPost, "/ingest", body, contentType)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got %d, want 400", rec.Code)
		}
	})

	t.Run("missingFile", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/ingest", []byte("x"), "text/plain")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got %d, want 400", rec.Code)
		}
	})
}

func TestGetStatusHandler(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/status/unknown", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}

	done := jobModel.Job{
		Id:          "job-1",
		JobType:     jobModel.JobTypeQuery,
		Status:      jobModel.JobStatusComplete,
		CurrentStep: jobModel.Complete,
		CreatedTime: time.Now(),
		JobPayload: jobModel.JobPayload{
			DocID:         "report",
			Question:      "What were total assets?",
			RelevantPages: []int{13, 14},
			Citations:     []jobModel.Citation{{Page: 13, Text: "Total assets 4.2bn"}},
			Confidence:    0.56,
		},
	}
	if err := f.jobs.JobStore.SaveJob(context.Background(), done); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/status/job-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	res := decode[api.JobResponse](t, rec)
	if res.Result.Status != string(jobModel.JobStatusComplete) || res.Result.Query == nil {
		t.Fatalf("got %+v", res.Result)
	}
	q := res.Result.Query
	if len(q.RelevantPages) != 2 || q.Citations[0].Text != "Total assets 4.2bn" || q.Confidence != 0.56 {
		t.Errorf("got query result %+v", q)
	}
	if res.Error != nil {
		t.Errorf("got error %+v", res.Error)
	}
}

func documentFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.svc.OnListDocuments = func(_ context.Context, validate bool) ([]treeModel.DocumentMetadata, error) {
		if !validate {
			return nil, nil
		}
		return []treeModel.DocumentMetadata{{DocID: "report", Title: "Annual Report"}}, nil
	}
	f.svc.OnGetTree = func(_ context.Context, docID string) (*treeModel.DocumentTree, error) {
		if docID != "report" {
			return nil, fmt.Errorf("%w: %s", pageindex.ErrDocumentNotFound, docID)
		}
		return &treeModel.DocumentTree{DocID: "report", RootNodes: []*treeModel.TreeNode{
			{Title: "Intro", NodeID: "L0_N0_intro", StartPage: 1, EndPage: 5},
		}}, nil
	}
	f.svc.OnDeleteDocument = func(_ context.Context, docID string) (bool, error) {
		return docID == "report", nil
	}
	f.svc.OnPurge = func(context.Context) (int, error) { return 2, nil }
	f.svc.OnGetPage = func(_ context.Context, _ string, page int) (*extractor.PageContent, error) {
		if page > 20 {
			return nil, &extractor.PageRangeError{Invalid: []int{page}, Total: 20}
		}
		return &extractor.PageContent{PageNumber: page, Text: "page text", CharCount: 9}, nil
	}
	return f
}

func TestDocumentRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   int
		check  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{name: "list", method: http.MethodGet, path: "/documents", want: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if res := decode[api.DocumentListResponse](t, rec); res.Count != 1 || res.Documents[0].DocID != "report" {
					t.Errorf("got %+v", res)
				}
			}},
		{name: "listWithoutValidation", method: http.MethodGet, path: "/documents?validate=false", want: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if !strings.Contains(rec.Body.String(), `"documents":[]`) {
					t.Errorf("got %s", rec.Body.String())
				}
			}},
		{name: "tree", method: http.MethodGet, path: "/documents/report/tree", want: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				res := decode[map[string]any](t, rec)
				if res["doc_id"] != "report" || len(res["root_nodes"].([]any)) != 1 {
					t.Errorf("got %v", res)
				}
			}},
		{name: "treeUnknown", method: http.MethodGet, path: "/documents/other/tree", want: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: "/documents/report", want: http.StatusOK},
		{name: "deleteUnknown", method: http.MethodDelete, path: "/documents/other", want: http.StatusNotFound},
		{name: "purge", method: http.MethodPost, path: "/documents/purge", want: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if res := decode[api.PurgeResponse](t, rec); res.Removed != 2 {
					t.Errorf("got %+v", res)
				}
			}},
		{name: "page", method: http.MethodGet, path: "/page/report/7", want: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if res := decode[api.PageResponse](t, rec); res.PageNumber != 7 || res.Text != "page text" {
					t.Errorf("got %+v", res)
				}
			}},
		{name: "pageNotANumber", method: http.MethodGet, path: "/page/report/seven", want: http.StatusBadRequest},
		{name: "pageOutOfRange", method: http.MethodGet, path: "/page/report/21", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := documentFixture(t)
			rec := f.do(t, tt.method, tt.path, nil, "")
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	f := newFixture(t)
	f.svc.OnHealth = func(context.Context) pageindex.HealthReport {
		return pageindex.HealthReport{Status: "degraded", Index: "connection refused"}
	}
	rec := f.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rec.Code)
	}
	if res := decode[pageindex.HealthReport](t, rec); res.Index != "connection refused" {
		t.Errorf("got %+v", res)
	}
}

func TestRateLimiter(t *testing.T) {
	f := newFixture(t)
	limited := 0
	for range config.BURST_RATE_LIMIT_PER_SECOND + 3 {
		if rec := f.do(t, http.MethodGet, "/documents", nil, ""); rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("burst was never rate limited")
	}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(r)
}

func TestMCPEndpoint(t *testing.T) {
	f := newFixture(t)
	f.svc.OnListDocuments = func(context.Context, bool) ([]treeModel.DocumentMetadata, error) {
		return []treeModel.DocumentMetadata{{DocID: "guide_0123456789ab", Title: "Guide", TotalPages: 8}}, nil
	}
	h := handlers.NewHandler(f.jobs, f.svc, handlers.Options{UploadDir: f.uploadDir})
	mw := middleware.New(config.Settings{AuthToken: token, HTTPRateBurst: 100})
	srv := httptest.NewServer(NewRouter(h, mw, mcpServer.HTTPHandler(f.svc, "test")))
	defer srv.Close()

	t.Run("needsToken", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("got %d, want 401", resp.StatusCode)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "router-test", Version: "test"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   srv.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}},
	}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "list_documents", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || len(res.Content) == 0 {
		t.Fatalf("got %+v", res)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "guide_0123456789ab") {
		t.Errorf("got content %+v", res.Content[0])
	}
}

func TestStatusRecorderStreams(t *testing.T) {
	base := httptest.NewRecorder()
	rec := &metrics.HttpStatusRecorder{ResponseWriter: base, Status: http.StatusOK}

	if err := http.NewResponseController(rec).Flush(); err != nil {
		t.Fatalf("flush through controller: %v", err)
	}
	if !base.Flushed {
		t.Error("underlying writer was not flushed")
	}
	var w http.ResponseWriter = rec
	if _, ok := w.(http.Flusher); !ok {
		t.Error("recorder should implement http.Flusher")
	}
}
