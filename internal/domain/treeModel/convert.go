package treeModel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrMalformedTree = errors.New("malformed tree")

// ToMap renders the tree in the generic mapping form used at API boundaries.
func (t *DocumentTree) ToMap() map[string]any {
	roots := make([]any, 0, len(t.RootNodes))
	for _, r := range t.RootNodes {
		if r != nil {
			roots = append(roots, r.ToMap())
		}
	}
	meta := make(map[string]any, len(t.Metadata))
	for k, v := range t.Metadata {
		meta[k] = v
	}
	return map[string]any{
		"doc_id":      t.DocID,
		"filename":    t.Filename,
		"title":       t.Title,
		"description": t.Description,
		"total_pages": t.TotalPages,
		"root_nodes":  roots,
		"metadata":    meta,
	}
}

func (n *TreeNode) ToMap() map[string]any {
	children := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		if c != nil {
			children = append(children, c.ToMap())
		}
	}
	return map[string]any{
		"title":      n.Title,
		"node_id":    n.NodeID,
		"start_page": n.StartPage,
		"end_page":   n.EndPage,
		"summary":    n.Summary,
		"level":      n.Level,
		"children":   children,
	}
}

// DocumentTreeFromMap is the inverse of ToMap. Numbers may arrive as any
// integral numeric type, including float64 from encoding/json.
func DocumentTreeFromMap(m map[string]any) (*DocumentTree, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil mapping", ErrMalformedTree)
	}
	t := &DocumentTree{Metadata: map[string]any{}}
	var err error

	if t.DocID, err = requiredString(m, "doc_id"); err != nil {
		return nil, err
	}
	if t.Filename, err = requiredString(m, "filename"); err != nil {
		return nil, err
	}
	if t.Title, err = requiredString(m, "title"); err != nil {
		return nil, err
	}
	if t.TotalPages, err = requiredInt(m, "total_pages"); err != nil {
		return nil, err
	}
	if t.Description, err = optionalString(m, "description"); err != nil {
		return nil, err
	}

	if raw, ok := m["metadata"]; ok && raw != nil {
		meta, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: metadata is %T", ErrMalformedTree, raw)
		}
		for k, v := range meta {
			t.Metadata[k] = v
		}
	}

	roots, err := nodeList(m, "root_nodes")
	if err != nil {
		return nil, err
	}
	t.RootNodes = roots
	return t, nil
}

func TreeNodeFromMap(m map[string]any) (*TreeNode, error) {
	n := &TreeNode{}
	var err error
	if n.Title, err = requiredString(m, "title"); err != nil {
		return nil, err
	}
	if n.NodeID, err = requiredString(m, "node_id"); err != nil {
		return nil, err
	}
	if n.StartPage, err = requiredInt(m, "start_page"); err != nil {
		return nil, err
	}
	if n.EndPage, err = requiredInt(m, "end_page"); err != nil {
		return nil, err
	}
	if n.Summary, err = optionalString(m, "summary"); err != nil {
		return nil, err
	}
	if _, ok := m["level"]; ok {
		if n.Level, err = requiredInt(m, "level"); err != nil {
			return nil, err
		}
	}
	if n.Children, err = nodeList(m, "children"); err != nil {
		return nil, err
	}
	return n, nil
}

func nodeList(m map[string]any, key string) ([]*TreeNode, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return []*TreeNode{}, nil
	}

	var items []map[string]any
	switch v := raw.(type) {
	case []any:
		for i, item := range v {
			nm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is %T", ErrMalformedTree, key, i, item)
			}
			items = append(items, nm)
		}
	case []map[string]any:
		items = v
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrMalformedTree, key, raw)
	}

	nodes := make([]*TreeNode, 0, len(items))
	for _, item := range items {
		n, err := TreeNodeFromMap(item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func requiredString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedTree, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrMalformedTree, key, raw)
	}
	return s, nil
}

func optionalString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrMalformedTree, key, raw)
	}
	return s, nil
}

func requiredInt(m map[string]any, key string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrMalformedTree, key)
	}
	n, ok := asInt(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %v, want integer", ErrMalformedTree, key, raw)
	}
	return n, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
