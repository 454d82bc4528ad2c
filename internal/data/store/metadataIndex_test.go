package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/data/store"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
)

func metadataIndexes(t *testing.T) map[string]treeModel.MetadataIndex {
	_, rs := newRedis(t)
	return map[string]treeModel.MetadataIndex{
		"redis":    store.NewRedisMetadataIndex(rs),
		"inMemory": store.NewInMemoryMetadataIndex(),
	}
}

func row(id string, created time.Time) treeModel.DocumentMetadata {
	return treeModel.DocumentMetadata{
		DocID:     id,
		Filename:  id + ".pdf",
		Title:     "Title " + id,
		CreatedAt: created,
		UpdatedAt: created,
		Status:    treeModel.StatusCompleted,
	}
}

func TestMetadataIndex(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for name, idx := range metadataIndexes(t) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			for i, id := range []string{"old", "mid", "new"} {
				if err := idx.Upsert(ctx, row(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
					t.Fatalf("Upsert %s: %v", id, err)
				}
			}

			rows, err := idx.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var order []string
			for _, r := range rows {
				order = append(order, r.DocID)
			}
			if got, want := len(order), 3; got != want || order[0] != "new" || order[2] != "old" {
				t.Errorf("list order got %v, want [new mid old]", order)
			}

			updated := row("mid", base.Add(5*time.Hour))
			updated.Title = "Replaced"
			if err := idx.Upsert(ctx, updated); err != nil {
				t.Fatalf("Upsert replace: %v", err)
			}
			got, ok, err := idx.Get(ctx, "mid")
			if err != nil || !ok {
				t.Fatalf("Get mid: ok=%v err=%v", ok, err)
			}
			if got.Title != "Replaced" || !got.CreatedAt.Equal(updated.CreatedAt) {
				t.Errorf("row not replaced, got %+v", got)
			}
			if n, _ := idx.Count(ctx); n != 3 {
				t.Errorf("count after replace got %d, want 3", n)
			}
			rows, _ = idx.List(ctx)
			if rows[0].DocID != "mid" {
				t.Errorf("re-saved row should sort first, got %s", rows[0].DocID)
			}

			deleted, err := idx.Delete(ctx, "old")
			if err != nil || !deleted {
				t.Errorf("Delete old got %v, %v", deleted, err)
			}
			deleted, err = idx.Delete(ctx, "old")
			if err != nil || deleted {
				t.Errorf("second Delete got %v, %v, want false", deleted, err)
			}
			if _, ok, _ := idx.Get(ctx, "old"); ok {
				t.Error("deleted row still readable")
			}
			if n, _ := idx.Count(ctx); n != 2 {
				t.Errorf("count after delete got %d, want 2", n)
			}
		})
	}
}

func TestRedisMetadataIndex_DropsOrphanedIds(t *testing.T) {
	mr, rs := newRedis(t)
	idx := store.NewRedisMetadataIndex(rs)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"a", "b"} {
		if err := idx.Upsert(ctx, row(id, now)); err != nil {
			t.Fatal(err)
		}
	}
	mr.Del("pageindex:doc:a")

	rows, err := idx.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].DocID != "b" {
		t.Errorf("got %v, want only b", rows)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("orphan should be removed from the sorted set, count %d", n)
	}
}
