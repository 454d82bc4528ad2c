package treeStore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/data/artifactStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

var (
	ErrEmptyDocID   = errors.New("document tree must have a non-empty doc_id")
	ErrTreeNotFound = errors.New("tree not found")
	ErrWriteFailed  = errors.New("failed to write tree")
	ErrCorruptTree  = errors.New("stored tree is corrupt")
)

// CorruptTreeError means the artifact exists but cannot be decoded.
type CorruptTreeError struct {
	DocID string
	Err   error
}

func (e *CorruptTreeError) Error() string {
	return fmt.Sprintf("failed to parse tree JSON for %s: %v", e.DocID, e.Err)
}

func (e *CorruptTreeError) Unwrap() error { return e.Err }

func (e *CorruptTreeError) Is(target error) bool { return target == ErrCorruptTree }

// Store pairs an artifact store holding the tree JSON with a metadata index
// row per document. A row whose artifact has gone missing is stale and is
// removed when noticed.
type Store struct {
	artifacts artifactStore.Store
	index     treeModel.MetadataIndex
	logger    *logger_i.Logger
	now       func() time.Time
}

func New(artifacts artifactStore.Store, index treeModel.MetadataIndex) *Store {
	s := &Store{
		artifacts: artifacts,
		index:     index,
		logger:    logger_i.NewLogger("tree_store"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.logger.Info("tree_store_initialized", "location", artifacts.Location(""))
	return s
}

func artifactName(docID string) string {
	return docID + ".json"
}

// SaveTree writes the tree and replaces its metadata row. Saving the same
// doc id again overwrites both.
func (s *Store) SaveTree(ctx context.Context, tree *treeModel.DocumentTree, pdfPath string) (string, error) {
	if tree == nil || tree.DocID == "" {
		return "", ErrEmptyDocID
	}
	log := s.logger.WithContext(ctx).With("doc_id", tree.DocID)

	data, err := json.MarshalIndent(tree.ToMap(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWriteFailed, tree.DocID, err)
	}
	location, err := s.artifacts.Write(ctx, artifactName(tree.DocID), data)
	if err != nil {
		log.Error("save_tree_write_failed", "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrWriteFailed, tree.DocID, err)
	}

	if pdfPath != "" {
		if abs, err := filepath.Abs(pdfPath); err == nil {
			pdfPath = abs
		}
	}
	meta := s.metadataFor(tree, location, pdfPath)
	if err := s.index.Upsert(ctx, meta); err != nil {
		log.Error("save_tree_index_failed", "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrWriteFailed, tree.DocID, err)
	}

	log.Info("save_tree_complete", "tree_depth", meta.TreeDepth, "node_count", meta.NodeCount,
		"tree_path", location, "json_size_bytes", len(data))
	return tree.DocID, nil
}

func (s *Store) LoadTree(ctx context.Context, docID string) (*treeModel.DocumentTree, error) {
	if docID == "" {
		return nil, ErrEmptyDocID
	}
	log := s.logger.WithContext(ctx).With("doc_id", docID)

	if _, ok, err := s.index.Get(ctx, docID); err != nil {
		return nil, err
	} else if !ok {
		log.Debug("load_tree_not_found")
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, docID)
	}

	data, err := s.artifacts.Read(ctx, artifactName(docID))
	if errors.Is(err, artifactStore.ErrArtifactNotFound) {
		log.Warn("load_tree_artifact_missing")
		s.removeStale(ctx, docID, "tree artifact missing")
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, docID)
	}
	if err != nil {
		return nil, err
	}

	tree, err := decodeTree(docID, data)
	if err != nil {
		log.Error("load_tree_parse_failed", "error", err)
		return nil, err
	}

	log.Debug("load_tree_complete", "node_count", tree.NodeCount())
	return tree, nil
}

func decodeTree(docID string, data []byte) (*treeModel.DocumentTree, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &CorruptTreeError{DocID: docID, Err: err}
	}
	tree, err := treeModel.DocumentTreeFromMap(raw)
	if err != nil {
		return nil, &CorruptTreeError{DocID: docID, Err: err}
	}
	return tree, nil
}

func (s *Store) metadataFor(tree *treeModel.DocumentTree, location, pdfPath string) treeModel.DocumentMetadata {
	now := s.now()
	return treeModel.DocumentMetadata{
		DocID:      tree.DocID,
		Filename:   tree.Filename,
		Title:      tree.Title,
		TotalPages: tree.TotalPages,
		TreeDepth:  tree.Depth(),
		NodeCount:  tree.NodeCount(),
		TreePath:   location,
		PDFPath:    pdfPath,
		CreatedAt:  now,
		UpdatedAt:  now,
		Status:     treeModel.StatusCompleted,
	}
}

// Reindex adds an index row for every stored tree that has none, which is
// how an in-memory index recovers after a restart. pdfPath maps a doc id to
// its source PDF and may return "". Unreadable artifacts are skipped.
func (s *Store) Reindex(ctx context.Context, pdfPath func(docID string) string) (int, error) {
	names, err := s.artifacts.List(ctx)
	if err != nil {
		return 0, err
	}
	log := s.logger.WithContext(ctx)
	added := 0
	for _, name := range names {
		docID, ok := strings.CutSuffix(name, ".json")
		if !ok || docID == "" {
			continue
		}
		if _, found, err := s.index.Get(ctx, docID); err != nil {
			return added, err
		} else if found {
			continue
		}
		data, err := s.artifacts.Read(ctx, name)
		if err != nil {
			log.Warn("reindex_read_failed", "doc_id", docID, "error", err)
			continue
		}
		tree, err := decodeTree(docID, data)
		if err != nil || tree.DocID != docID {
			log.Warn("reindex_skip_corrupt", "doc_id", docID, "error", err)
			continue
		}
		pdf := ""
		if pdfPath != nil {
			pdf = pdfPath(docID)
		}
		if err := s.index.Upsert(ctx, s.metadataFor(tree, s.artifacts.Location(name), pdf)); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		log.Info("reindex_complete", "added", added)
	}
	return added, nil
}

func (s *Store) GetMetadata(ctx context.Context, docID string) (treeModel.DocumentMetadata, bool, error) {
	return s.index.Get(ctx, docID)
}

func (s *Store) DocumentExists(ctx context.Context, docID string) (bool, error) {
	_, ok, err := s.index.Get(ctx, docID)
	return ok, err
}

func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

// ListDocuments returns rows newest first. With validate, rows whose
// artifact is gone are removed and left out.
func (s *Store) ListDocuments(ctx context.Context, validate bool) ([]treeModel.DocumentMetadata, error) {
	rows, err := s.index.List(ctx)
	if err != nil {
		return nil, err
	}
	if !validate {
		return rows, nil
	}

	valid := rows[:0]
	for _, row := range rows {
		exists, err := s.artifacts.Exists(ctx, artifactName(row.DocID))
		if err != nil {
			return nil, err
		}
		if !exists {
			s.removeStale(ctx, row.DocID, "tree artifact missing (list validate)")
			continue
		}
		valid = append(valid, row)
	}
	s.logger.WithContext(ctx).Debug("list_documents", "count", len(valid))
	return valid, nil
}

func (s *Store) DeleteTree(ctx context.Context, docID string) (bool, error) {
	log := s.logger.WithContext(ctx).With("doc_id", docID)
	if _, ok, err := s.index.Get(ctx, docID); err != nil {
		return false, err
	} else if !ok {
		log.Debug("delete_tree_not_found")
		return false, nil
	}

	if _, err := s.artifacts.Delete(ctx, artifactName(docID)); err != nil {
		return false, fmt.Errorf("delete tree artifact %s: %w", docID, err)
	}
	if _, err := s.index.Delete(ctx, docID); err != nil {
		return false, err
	}
	log.Info("delete_tree_complete")
	return true, nil
}

func (s *Store) PurgeStaleEntries(ctx context.Context) (int, error) {
	rows, err := s.index.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, row := range rows {
		exists, err := s.artifacts.Exists(ctx, artifactName(row.DocID))
		if err != nil {
			return removed, err
		}
		if !exists {
			s.removeStale(ctx, row.DocID, "tree artifact missing (purge)")
			removed++
		}
	}
	if removed > 0 {
		s.logger.WithContext(ctx).Warn("purge_stale_entries_complete", "removed", removed,
			"remaining", len(rows)-removed)
	}
	return removed, nil
}

// HealthCheck pings the index and purges stale rows.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.index.Ping(ctx); err != nil {
		s.logger.WithContext(ctx).Error("health_check_failed", "error", err)
		return err
	}
	_, err := s.PurgeStaleEntries(ctx)
	return err
}

func (s *Store) removeStale(ctx context.Context, docID, reason string) {
	log := s.logger.WithContext(ctx).With("doc_id", docID)
	if _, err := s.index.Delete(ctx, docID); err != nil {
		log.Error("stale_entry_remove_failed", "error", err)
		return
	}
	log.Info("stale_entry_removed", "reason", reason)
}
