package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/akolanti/PageIndexAPI/internal/app"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm/llmMock"
	"github.com/alicebob/miniredis/v2"
)

func TestParsePages(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"1,3,5", []int{1, 3, 5}, false},
		{" 2 , 4,", []int{2, 4}, false},
		{"1,x", nil, true},
		{",", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePages(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("got err %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end int
		wantErr    bool
	}{
		{"2-4", 2, 4, false},
		{"7", 7, 7, false},
		{" 3 - 3 ", 3, 3, false},
		{"5-2", 0, 0, true},
		{"a-b", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, err := parseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("got err %v, wantErr %v", err, tt.wantErr)
			}
			if start != tt.start || end != tt.end {
				t.Errorf("got %d-%d, want %d-%d", start, end, tt.start, tt.end)
			}
		})
	}
}

func TestFormatPages(t *testing.T) {
	tests := map[string][]int{
		"none":       nil,
		"4":          {4},
		"1-3, 7":     {1, 2, 3, 7},
		"2, 4, 9-10": {2, 4, 9, 10},
	}
	for want, in := range tests {
		if got := formatPages(in); got != want {
			t.Errorf("formatPages(%v) got %q, want %q", in, got, want)
		}
	}
}

// useTestApp points every command at miniredis and a mock model.
func useTestApp(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	original := openApp
	openApp = func(ctx context.Context, settings config.Settings, needLLM bool) (*app.App, error) {
		settings.RedisAddr = mr.Addr()
		return app.New(ctx, settings, app.Options{Provider: &llmMock.Provider{}})
	}
	t.Cleanup(func() { openApp = original })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCatalogCommands(t *testing.T) {
	useTestApp(t)
	dataDir := t.TempDir()

	settings := config.Load()
	settings.DataDir = dataDir
	a, err := openApp(context.Background(), settings, false)
	if err != nil {
		t.Fatal(err)
	}
	tree := &treeModel.DocumentTree{
		DocID:      "guide_0123456789ab",
		Filename:   "guide.pdf",
		Title:      "Guide",
		TotalPages: 8,
		RootNodes:  []*treeModel.TreeNode{{Title: "Start", NodeID: "L0_N0_start", StartPage: 1, EndPage: 8}},
	}
	if _, err := a.Trees.SaveTree(context.Background(), tree, ""); err != nil {
		t.Fatal(err)
	}
	closeApp(a)

	out, err := run(t, "list", "--json", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var docs []treeModel.DocumentMetadata
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	if len(docs) != 1 || docs[0].DocID != tree.DocID || docs[0].NodeCount != 1 {
		t.Errorf("got %+v", docs)
	}

	out, err = run(t, "list", "--data-dir", dataDir)
	if err != nil || !strings.Contains(out, "1 document") || !strings.Contains(out, "Guide") {
		t.Errorf("styled list got %q, %v", out, err)
	}

	out, err = run(t, "delete", tree.DocID, "--data-dir", dataDir)
	if err != nil || !strings.Contains(out, tree.DocID) {
		t.Errorf("delete got %q, %v", out, err)
	}
	if _, err := run(t, "delete", tree.DocID, "--data-dir", dataDir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("second delete got %v, want not found", err)
	}

	out, err = run(t, "purge", "--data-dir", dataDir)
	if err != nil || !strings.Contains(out, "0 stale entries") {
		t.Errorf("purge got %q, %v", out, err)
	}
}

func TestExtractRejectsBothSelectors(t *testing.T) {
	_, err := run(t, "extract", "doc.pdf", "--pages", "1", "--range", "1-2")
	if err == nil || !strings.Contains(err.Error(), "either --pages or --range") {
		t.Errorf("got %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "pageindex dev") {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestOfflineProvider(t *testing.T) {
	if _, err := (offlineProvider{}).Generate(context.Background(), llm.Request{}); err != errOffline {
		t.Errorf("got %v, want errOffline", err)
	}
}
