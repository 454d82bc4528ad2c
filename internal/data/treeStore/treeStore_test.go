package treeStore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/data/artifactStore"
	"github.com/akolanti/PageIndexAPI/internal/data/redisStore"
	"github.com/akolanti/PageIndexAPI/internal/data/store"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockArtifacts struct {
	artifactStore.Store
	OnWrite func(ctx context.Context, name string, data []byte) (string, error)
}

func (m *mockArtifacts) Location(name string) string {
	return "mock://" + name
}

func (m *mockArtifacts) Write(ctx context.Context, name string, data []byte) (string, error) {
	return m.OnWrite(ctx, name, data)
}

func sampleTree(docID, title string) *treeModel.DocumentTree {
	return &treeModel.DocumentTree{
		DocID:      docID,
		Filename:   docID + ".pdf",
		Title:      title,
		TotalPages: 20,
		RootNodes: []*treeModel.TreeNode{
			{Title: "Intro", NodeID: "L0_N0_intro", StartPage: 1, EndPage: 5, Summary: "Overview"},
			{Title: "Financials", NodeID: "L0_N1_financials", StartPage: 6, EndPage: 20, Children: []*treeModel.TreeNode{
				{Title: "Income", NodeID: "L1_N0_income", StartPage: 6, EndPage: 12, Level: 1},
				{Title: "Balance Sheet", NodeID: "L1_N1_balance_sheet", StartPage: 13, EndPage: 20, Level: 1},
			}},
		},
		Metadata: map[string]any{"has_toc": true},
	}
}

type fixture struct {
	store *Store
	dir   string
	clock time.Time
}

func newFixture(t *testing.T, index treeModel.MetadataIndex) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "trees")
	files, err := artifactStore.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{dir: dir, clock: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	f.store = New(files, index)
	f.store.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func indexes(t *testing.T) map[string]treeModel.MetadataIndex {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]treeModel.MetadataIndex{
		"redis":    store.NewRedisMetadataIndex(redisStore.NewTestStore(client)),
		"inMemory": store.NewInMemoryMetadataIndex(),
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	for name, index := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, index)
			ctx := context.Background()
			tree := sampleTree("report_1", "Annual Report")

			id, err := f.store.SaveTree(ctx, tree, "report_1.pdf")
			if err != nil || id != "report_1" {
				t.Fatalf("SaveTree got %q, %v", id, err)
			}
			loaded, err := f.store.LoadTree(ctx, "report_1")
			if err != nil {
				t.Fatalf("LoadTree: %v", err)
			}
			if !reflect.DeepEqual(loaded.ToMap()["root_nodes"], tree.ToMap()["root_nodes"]) {
				t.Errorf("round trip changed the nodes")
			}

			meta, ok, err := f.store.GetMetadata(ctx, "report_1")
			if err != nil || !ok {
				t.Fatalf("GetMetadata: %v %v", ok, err)
			}
			if meta.TreeDepth != 2 || meta.NodeCount != 4 || meta.Status != treeModel.StatusCompleted {
				t.Errorf("metadata got %+v", meta)
			}
			if !filepath.IsAbs(meta.PDFPath) || meta.TreePath != filepath.Join(f.dir, "report_1.json") {
				t.Errorf("paths got pdf=%q tree=%q", meta.PDFPath, meta.TreePath)
			}
		})
	}
}

func TestSaveTree_Idempotent(t *testing.T) {
	for name, index := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, index)
			ctx := context.Background()

			if _, err := f.store.SaveTree(ctx, sampleTree("doc", "First"), ""); err != nil {
				t.Fatal(err)
			}
			if _, err := f.store.SaveTree(ctx, sampleTree("doc", "Second"), ""); err != nil {
				t.Fatal(err)
			}

			if n, _ := f.store.DocumentCount(ctx); n != 1 {
				t.Errorf("count got %d, want 1", n)
			}
			files, _ := os.ReadDir(f.dir)
			if len(files) != 1 {
				t.Errorf("artifacts got %d, want 1", len(files))
			}
			loaded, err := f.store.LoadTree(ctx, "doc")
			if err != nil || loaded.Title != "Second" {
				t.Errorf("LoadTree got %v, %v, want the second tree", loaded, err)
			}
		})
	}
}

func TestLoadTree_StaleSelfHeal(t *testing.T) {
	for name, index := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, index)
			ctx := context.Background()
			if _, err := f.store.SaveTree(ctx, sampleTree("gone", "Gone"), ""); err != nil {
				t.Fatal(err)
			}
			if err := os.Remove(filepath.Join(f.dir, "gone.json")); err != nil {
				t.Fatal(err)
			}

			if _, err := f.store.LoadTree(ctx, "gone"); !errors.Is(err, ErrTreeNotFound) {
				t.Errorf("got %v, want ErrTreeNotFound", err)
			}
			rows, err := f.store.ListDocuments(ctx, false)
			if err != nil || len(rows) != 0 {
				t.Errorf("stale row should be gone, got %v, %v", rows, err)
			}
		})
	}
}

func TestLoadTree_Errors(t *testing.T) {
	f := newFixture(t, store.NewInMemoryMetadataIndex())
	ctx := context.Background()

	if _, err := f.store.LoadTree(ctx, "unknown"); !errors.Is(err, ErrTreeNotFound) {
		t.Errorf("unknown id got %v", err)
	}
	if _, err := f.store.LoadTree(ctx, ""); !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("empty id got %v", err)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{ this is not json"},
		{"missing required key", `{"doc_id": "bad", "filename": "bad.pdf", "root_nodes": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.store.SaveTree(ctx, sampleTree("bad", "Bad"), ""); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(f.dir, "bad.json"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := f.store.LoadTree(ctx, "bad")
			var corrupt *CorruptTreeError
			if !errors.Is(err, ErrCorruptTree) || !errors.As(err, &corrupt) || corrupt.DocID != "bad" {
				t.Errorf("got %v, want CorruptTreeError", err)
			}
			if errors.Is(err, ErrTreeNotFound) {
				t.Error("corrupt tree must not read as not found")
			}
		})
	}
}

func TestSaveTree_Failures(t *testing.T) {
	index := store.NewInMemoryMetadataIndex()
	boom := errors.New("disk full")
	s := New(&mockArtifacts{OnWrite: func(context.Context, string, []byte) (string, error) { return "", boom }}, index)

	if _, err := s.SaveTree(context.Background(), &treeModel.DocumentTree{}, ""); !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("empty doc id got %v", err)
	}
	_, err := s.SaveTree(context.Background(), sampleTree("doc", "Doc"), "")
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, boom) {
		t.Errorf("got %v, want ErrWriteFailed wrapping the cause", err)
	}
	if n, _ := index.Count(context.Background()); n != 0 {
		t.Error("failed write must not register metadata")
	}
}

func TestDeleteListAndPurge(t *testing.T) {
	for name, index := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, index)
			ctx := context.Background()
			for _, id := range []string{"a", "b", "c"} {
				if _, err := f.store.SaveTree(ctx, sampleTree(id, id), ""); err != nil {
					t.Fatal(err)
				}
			}

			rows, _ := f.store.ListDocuments(ctx, false)
			if len(rows) != 3 || rows[0].DocID != "c" || rows[2].DocID != "a" {
				t.Errorf("list should be newest first, got %v", rows)
			}

			deleted, err := f.store.DeleteTree(ctx, "a")
			if err != nil || !deleted {
				t.Errorf("DeleteTree got %v, %v", deleted, err)
			}
			if deleted, _ := f.store.DeleteTree(ctx, "a"); deleted {
				t.Error("second delete should report false")
			}
			if _, err := os.Stat(filepath.Join(f.dir, "a.json")); !os.IsNotExist(err) {
				t.Error("artifact not removed")
			}

			if err := os.Remove(filepath.Join(f.dir, "b.json")); err != nil {
				t.Fatal(err)
			}
			if n, _ := f.store.DocumentCount(ctx); n != 2 {
				t.Errorf("count before purge got %d, want 2", n)
			}
			validated, _ := f.store.ListDocuments(ctx, true)
			if len(validated) != 1 || validated[0].DocID != "c" {
				t.Errorf("validated list got %v", validated)
			}

			if err := os.Remove(filepath.Join(f.dir, "c.json")); err != nil {
				t.Fatal(err)
			}
			removed, err := f.store.PurgeStaleEntries(ctx)
			if err != nil || removed != 1 {
				t.Errorf("purge got %d, %v, want 1", removed, err)
			}
			if exists, _ := f.store.DocumentExists(ctx, "c"); exists {
				t.Error("purged document still exists")
			}
			if err := f.store.HealthCheck(ctx); err != nil {
				t.Errorf("HealthCheck: %v", err)
			}
		})
	}
}

func TestReindex_RecoversRowsFromArtifacts(t *testing.T) {
	f := newFixture(t, store.NewInMemoryMetadataIndex())
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, err := f.store.SaveTree(ctx, sampleTree(id, id), ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(f.dir, "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := artifactStore.NewFileStore(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	restarted := New(files, store.NewInMemoryMetadataIndex())
	pdfFor := func(docID string) string {
		if docID == "a" {
			return "/data/pdfs/a.pdf"
		}
		return ""
	}

	added, err := restarted.Reindex(ctx, pdfFor)
	if err != nil || added != 2 {
		t.Fatalf("Reindex got %d, %v, want 2", added, err)
	}
	meta, ok, _ := restarted.GetMetadata(ctx, "a")
	if !ok || meta.PDFPath != "/data/pdfs/a.pdf" || meta.NodeCount != 4 {
		t.Errorf("got metadata %+v", meta)
	}
	if _, err := restarted.LoadTree(ctx, "b"); err != nil {
		t.Errorf("LoadTree after reindex: %v", err)
	}

	if added, err := restarted.Reindex(ctx, pdfFor); err != nil || added != 0 {
		t.Errorf("second Reindex got %d, %v, want 0", added, err)
	}
}
