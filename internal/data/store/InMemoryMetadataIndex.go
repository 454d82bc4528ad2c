package store

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
)

// InMemoryMetadataIndex is the fallback index used when Redis is offline.
// Rows are lost on restart.
type InMemoryMetadataIndex struct {
	mu   sync.RWMutex
	rows map[string]treeModel.DocumentMetadata
}

func NewInMemoryMetadataIndex() *InMemoryMetadataIndex {
	return &InMemoryMetadataIndex{rows: make(map[string]treeModel.DocumentMetadata)}
}

func (idx *InMemoryMetadataIndex) Upsert(_ context.Context, meta treeModel.DocumentMetadata) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rows[meta.DocID] = meta
	return nil
}

func (idx *InMemoryMetadataIndex) Get(_ context.Context, docID string) (treeModel.DocumentMetadata, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	meta, ok := idx.rows[docID]
	return meta, ok, nil
}

func (idx *InMemoryMetadataIndex) Delete(_ context.Context, docID string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.rows[docID]
	delete(idx.rows, docID)
	return ok, nil
}

func (idx *InMemoryMetadataIndex) List(_ context.Context) ([]treeModel.DocumentMetadata, error) {
	idx.mu.RLock()
	rows := make([]treeModel.DocumentMetadata, 0, len(idx.rows))
	for _, meta := range idx.rows {
		rows = append(rows, meta)
	}
	idx.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].DocID > rows[j].DocID
	})
	return rows, nil
}

func (idx *InMemoryMetadataIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rows), nil
}

func (idx *InMemoryMetadataIndex) Ping(context.Context) error {
	return nil
}
