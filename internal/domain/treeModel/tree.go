package treeModel

import "fmt"

// TreeNode is one section of a document. Leaves are the unit of retrieval.
// Page numbers are 1-indexed and inclusive.
type TreeNode struct {
	Title     string      `json:"title"`
	NodeID    string      `json:"node_id"`
	StartPage int         `json:"start_page"`
	EndPage   int         `json:"end_page"`
	Summary   string      `json:"summary"`
	Level     int         `json:"level"`
	Children  []*TreeNode `json:"children"`
}

type DocumentTree struct {
	DocID       string         `json:"doc_id"`
	Filename    string         `json:"filename"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	TotalPages  int            `json:"total_pages"`
	RootNodes   []*TreeNode    `json:"root_nodes"`
	Metadata    map[string]any `json:"metadata"`
}

func (n *TreeNode) IsLeaf() bool {
	return len(n.Children) == 0
}

func (n *TreeNode) PageRange() string {
	return fmt.Sprintf("p.%d-%d", n.StartPage, n.EndPage)
}

// Pages lists every page the node spans.
func (n *TreeNode) Pages() []int {
	if n.EndPage < n.StartPage {
		return nil
	}
	pages := make([]int, 0, n.EndPage-n.StartPage+1)
	for p := n.StartPage; p <= n.EndPage; p++ {
		pages = append(pages, p)
	}
	return pages
}

// PagesWithin lists the node's pages clipped to 1..total. A non-positive
// total leaves the range as stored.
func (n *TreeNode) PagesWithin(total int) []int {
	if total <= 0 {
		return n.Pages()
	}
	start, end := max(n.StartPage, 1), min(n.EndPage, total)
	if end < start {
		return nil
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Walk visits nodes depth first, parents before children.
// Returning false from fn skips the node's subtree.
func (t *DocumentTree) Walk(fn func(node *TreeNode) bool) {
	if t == nil {
		return
	}
	for _, root := range t.RootNodes {
		walk(root, fn)
	}
}

func walk(n *TreeNode, fn func(node *TreeNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

func (t *DocumentTree) LeafNodes() []*TreeNode {
	var leaves []*TreeNode
	t.Walk(func(n *TreeNode) bool {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

func (t *DocumentTree) NodeCount() int {
	count := 0
	t.Walk(func(*TreeNode) bool {
		count++
		return true
	})
	return count
}

// Depth is the number of levels in the tree; a tree of root leaves has depth 1.
func (t *DocumentTree) Depth() int {
	if t == nil {
		return 0
	}
	max := 0
	for _, r := range t.RootNodes {
		if d := nodeDepth(r); d > max {
			max = d
		}
	}
	return max
}

func nodeDepth(n *TreeNode) int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, c := range n.Children {
		if d := nodeDepth(c); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func (t *DocumentTree) FindNode(nodeID string) *TreeNode {
	var found *TreeNode
	t.Walk(func(n *TreeNode) bool {
		if found != nil {
			return false
		}
		if n.NodeID == nodeID {
			found = n
			return false
		}
		return true
	})
	return found
}
