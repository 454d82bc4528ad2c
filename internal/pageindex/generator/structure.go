package generator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
)

const maxSlugRunes = 20

// contentSample picks the first three pages, three around the middle of
// longer documents and the last two.
func contentSample(pageTexts []string) string {
	total := len(pageTexts)
	picked := map[int]bool{}
	for i := 0; i < min(3, total); i++ {
		picked[i] = true
	}
	if total > 10 {
		mid := total / 2
		for i := max(0, mid-1); i < min(total, mid+2); i++ {
			picked[i] = true
		}
	}
	for i := max(0, total-2); i < total; i++ {
		picked[i] = true
	}

	indexes := make([]int, 0, len(picked))
	for i := range picked {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	parts := make([]string, 0, len(indexes))
	for _, i := range indexes {
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, truncateRunes(pageTexts[i], config.SamplePageChars)))
	}
	return strings.Join(parts, "\n\n")
}

func tocSection(outline []extractor.OutlineEntry) string {
	if len(outline) == 0 {
		return noTOCInstruction
	}
	lines := make([]string, 0, min(len(outline), config.MaxTOCEntries))
	for _, e := range outline[:min(len(outline), config.MaxTOCEntries)] {
		indent := strings.Repeat("  ", max(e.Level-1, 0))
		if e.Page > 0 {
			lines = append(lines, fmt.Sprintf("%s- %s (p.%d)", indent, e.Title, e.Page))
		} else {
			lines = append(lines, fmt.Sprintf("%s- %s", indent, e.Title))
		}
	}
	return tocPreamble + strings.Join(lines, "\n") + tocInstruction
}

type treeResponse struct {
	Title       string
	Description string
	Sections    []map[string]any
}

func parseTreeResponse(text string) (*treeResponse, error) {
	obj, err := llm.ExtractObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w (response preview: %q)", err, truncateRunes(text, 200))
	}
	return &treeResponse{
		Title:       strings.TrimSpace(stringField(obj, "title")),
		Description: strings.TrimSpace(stringField(obj, "description")),
		Sections:    mapList(obj["sections"]),
	}, nil
}

// clampedRange records a node whose model-reported pages fell outside the
// document. Start and End are the values before clamping.
type clampedRange struct {
	NodeID string
	Start  int
	End    int
	Leaf   bool
}

// sectionsToNodes converts the model's sections recursively. Ids follow
// L{level}_N{index}_{slug}; a numeric suffix keeps colliding ids unique.
// Page ranges are clamped into 1..totalPages and the originals returned.
func sectionsToNodes(sections []map[string]any, totalPages int) ([]*treeModel.TreeNode, []clampedRange) {
	last := max(totalPages, 1)
	seen := map[string]int{}
	var clamped []clampedRange
	var build func(sections []map[string]any, level int) []*treeModel.TreeNode
	build = func(sections []map[string]any, level int) []*treeModel.TreeNode {
		nodes := make([]*treeModel.TreeNode, 0, len(sections))
		for idx, s := range sections {
			title := strings.TrimSpace(stringField(s, "title"))
			if title == "" {
				title = fmt.Sprintf("Section %d", idx+1)
			}
			start := intField(s, "start_page", 1)
			end := intField(s, "end_page", 1)
			if end < start {
				end = start
			}

			id := fmt.Sprintf("L%d_N%d_%s", level, idx, slugify(title))
			if n := seen[id]; n > 0 {
				seen[id] = n + 1
				id = fmt.Sprintf("%s_%d", id, n+1)
			} else {
				seen[id] = 1
			}

			children := mapList(s["subsections"])
			if children == nil {
				children = mapList(s["children"])
			}
			node := &treeModel.TreeNode{
				Title:     title,
				NodeID:    id,
				StartPage: min(max(start, 1), last),
				EndPage:   min(max(end, 1), last),
				Summary:   strings.TrimSpace(stringField(s, "summary")),
				Level:     level,
				Children:  build(children, level+1),
			}
			if node.StartPage != start || node.EndPage != end {
				clamped = append(clamped, clampedRange{NodeID: id, Start: start, End: end, Leaf: node.IsLeaf()})
			}
			nodes = append(nodes, node)
		}
		return nodes
	}
	return build(sections, 0), clamped
}

func slugify(title string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	slug := truncateRunes(sb.String(), maxSlugRunes)
	slug = strings.TrimRight(slug, "_")
	if slug == "" {
		return "section"
	}
	return slug
}

type coverageReport struct {
	Missing []int
	// Extra counts leaf pages the model placed outside 1..totalPages,
	// measured on the ranges before clamping.
	Extra       int
	ExtraSample []int
	// Overlaps lists pages covered by more than one leaf.
	Overlaps []int
	// Uncontained lists nodes whose range leaves their parent's range.
	Uncontained []string
}

// checkCoverage compares the pages covered by leaves with 1..totalPages. The
// roots must already be clamped; clamped carries the original leaf ranges.
func checkCoverage(roots []*treeModel.TreeNode, totalPages int, clamped []clampedRange) coverageReport {
	var report coverageReport
	hits := make(map[int]int, max(totalPages, 0))
	tree := &treeModel.DocumentTree{RootNodes: roots}
	for _, leaf := range tree.LeafNodes() {
		for _, p := range leaf.Pages() {
			hits[p]++
		}
	}
	for p := 1; p <= totalPages; p++ {
		switch {
		case hits[p] == 0:
			report.Missing = append(report.Missing, p)
		case hits[p] > 1:
			report.Overlaps = append(report.Overlaps, p)
		}
	}

	for _, c := range clamped {
		if !c.Leaf {
			continue
		}
		if c.Start < 1 {
			below := min(c.End, 0) - c.Start + 1
			report.Extra += below
			for p := c.Start; p < c.Start+below && len(report.ExtraSample) < 10; p++ {
				report.ExtraSample = append(report.ExtraSample, p)
			}
		}
		if c.End > totalPages {
			from := max(c.Start, totalPages+1)
			report.Extra += c.End - from + 1
			for p := from; p <= c.End && len(report.ExtraSample) < 10; p++ {
				report.ExtraSample = append(report.ExtraSample, p)
			}
		}
	}

	var contain func(parent *treeModel.TreeNode)
	contain = func(parent *treeModel.TreeNode) {
		for _, child := range parent.Children {
			if child.StartPage < parent.StartPage || child.EndPage > parent.EndPage {
				report.Uncontained = append(report.Uncontained, child.NodeID)
			}
			contain(child)
		}
	}
	for _, root := range roots {
		contain(root)
	}
	return report
}

func sample(pages []int) []int {
	return pages[:min(len(pages), 10)]
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return int(v)
		}
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func mapList(raw any) []map[string]any {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
