package treeModel

import (
	"context"
	"time"
)

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusCompleted DocumentStatus = "completed"
	StatusFailed    DocumentStatus = "failed"
)

// DocumentMetadata is the index row kept for every stored tree.
type DocumentMetadata struct {
	DocID      string         `json:"doc_id"`
	Filename   string         `json:"filename"`
	Title      string         `json:"title"`
	TotalPages int            `json:"total_pages"`
	TreeDepth  int            `json:"tree_depth"`
	NodeCount  int            `json:"node_count"`
	TreePath   string         `json:"tree_path"`
	PDFPath    string         `json:"pdf_path"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Status     DocumentStatus `json:"status"`
}

// MetadataIndex stores one row per document. List returns rows newest first.
// Upsert replaces the whole row.
type MetadataIndex interface {
	Upsert(ctx context.Context, meta DocumentMetadata) error
	Get(ctx context.Context, docID string) (DocumentMetadata, bool, error)
	Delete(ctx context.Context, docID string) (bool, error)
	List(ctx context.Context) ([]DocumentMetadata, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
