package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

const component = "tree_searcher"

var ErrEmptyTree = errors.New("document tree has no root nodes")

type Config struct {
	Model      string
	MaxBreadth int
	MaxDepth   int
}

// TreeSearcher walks a DocumentTree top-down, asking the model at each level
// which sibling sections are worth opening. It holds no per-search state and
// is safe for concurrent use.
type TreeSearcher struct {
	provider llm.Provider
	sink     telemetry.Sink
	cfg      Config
	logger   *logger_i.Logger
}

func NewTreeSearcher(provider llm.Provider, sink telemetry.Sink, cfg Config) *TreeSearcher {
	if cfg.MaxBreadth <= 0 {
		cfg.MaxBreadth = config.DefaultSearchBreadth
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = config.DefaultMaxTreeDepth
	}
	logger := logger_i.NewLogger(component)
	logger.Info("tree_searcher_initialized", "model", cfg.Model, "max_breadth", cfg.MaxBreadth,
		"max_depth", cfg.MaxDepth)
	return &TreeSearcher{
		provider: provider,
		sink:     telemetry.Safe(sink),
		cfg:      cfg,
		logger:   logger,
	}
}

type evaluation struct {
	node       *treeModel.TreeNode
	reasoning  string
	selected   bool
	confidence float64
}

// Search returns the pages most likely to answer query. maxDepth <= 0 uses
// the configured depth. Model errors abort the search; unparseable replies
// fall back to positional selection for that level.
func (s *TreeSearcher) Search(ctx context.Context, query string, tree *treeModel.DocumentTree, maxDepth int) (*treeModel.SearchResult, error) {
	start := time.Now()
	if tree == nil || len(tree.RootNodes) == 0 {
		return nil, ErrEmptyTree
	}
	if maxDepth <= 0 {
		maxDepth = s.cfg.MaxDepth
	}

	log := s.logger.WithContext(ctx).With("doc_id", tree.DocID)
	log.Info("search_start", "query", truncate(query, 100), "root_nodes", len(tree.RootNodes),
		"max_depth", maxDepth)

	result := &treeModel.SearchResult{}
	frontier := tree.RootNodes
	var path []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		log.Debug("evaluating_level", "depth", depth, "candidates", len(frontier))

		evals, err := s.evaluate(ctx, log, query, frontier, path)
		result.LLMCalls++
		if err != nil {
			return nil, fmt.Errorf("search level %d: %w", depth, err)
		}

		var drill []*treeModel.TreeNode
		for _, e := range evals {
			result.ReasoningTrace = append(result.ReasoningTrace, treeModel.SearchStep{
				Level:      depth,
				NodeID:     e.node.NodeID,
				NodeTitle:  e.node.Title,
				Reasoning:  e.reasoning,
				Selected:   e.selected,
				Confidence: e.confidence,
				PageRange:  e.node.PageRange(),
			})
			if !e.selected {
				continue
			}
			if e.node.IsLeaf() {
				result.RelevantNodes = append(result.RelevantNodes, e.node)
			} else {
				drill = append(drill, e.node)
				path = append(path, e.node.Title)
			}
		}

		if len(drill) == 0 && len(result.RelevantNodes) == 0 {
			log.Info("no_relevant_nodes", "depth", depth)
			break
		}

		var next []*treeModel.TreeNode
		for _, n := range drill {
			next = append(next, n.Children...)
		}
		if depth == maxDepth-1 && len(next) > 0 {
			log.Debug("depth_cap_promotion", "promoted", len(next))
			result.RelevantNodes = append(result.RelevantNodes, next...)
		}
		frontier = next
	}

	result.RelevantPages = collectPages(result.RelevantNodes, tree.TotalPages)
	result.Confidence = confidence(result)
	result.Elapsed = time.Since(start)

	log.Info("search_complete", "relevant_pages", len(result.RelevantPages),
		"relevant_nodes", len(result.RelevantNodes), "trace_steps", len(result.ReasoningTrace),
		"confidence", result.Confidence, "llm_calls", result.LLMCalls,
		"elapsed_ms", result.Elapsed.Milliseconds())
	return result, nil
}

func (s *TreeSearcher) evaluate(ctx context.Context, log *logger_i.Logger, query string, nodes []*treeModel.TreeNode, path []string) ([]evaluation, error) {
	req := llm.Request{
		Prompt:       buildPrompt(query, nodes, path, s.cfg.MaxBreadth),
		SystemPrompt: searchSystemPrompt,
		Model:        s.cfg.Model,
		MaxTokens:    config.SearchMaxTokens,
		Temperature:  config.SearchTemperature,
	}

	began := time.Now()
	reply, err := s.provider.Generate(ctx, req)
	call := telemetry.LLMCall{
		Component:   component,
		Model:       req.Model,
		Latency:     time.Since(began),
		Temperature: req.Temperature,
		Success:     err == nil,
	}
	if err != nil {
		call.Error = err.Error()
	}
	s.sink.LogLLMCall(ctx, call)
	if err != nil {
		s.sink.LogError(ctx, telemetry.ErrorEvent{
			Component:      component,
			ErrorType:      "LLMError",
			Message:        err.Error(),
			RecoveryAction: "abort_search",
		})
		return nil, err
	}

	evals, err := parseEvaluations(reply, nodes, s.cfg.MaxBreadth)
	if err != nil {
		log.Warn("parse_failed", "error", err, "response_preview", truncate(reply, 200))
		s.sink.LogError(ctx, telemetry.ErrorEvent{
			Component:      component,
			ErrorType:      "ParseError",
			Message:        err.Error(),
			RecoveryAction: "positional_fallback",
		})
		return fallback(nodes, s.cfg.MaxBreadth), nil
	}
	return evals, nil
}

func buildPrompt(query string, nodes []*treeModel.TreeNode, path []string, breadth int) string {
	parts := make([]string, 0, len(nodes))
	for i, n := range nodes {
		summary := n.Summary
		if summary == "" {
			summary = fmt.Sprintf("Section covering pages %d-%d", n.StartPage, n.EndPage)
		}
		parts = append(parts, fmt.Sprintf("%d. [%s] %q (Pages %d-%d)\n   Summary: %s",
			i+1, n.NodeID, n.Title, n.StartPage, n.EndPage, summary))
	}
	navigation := ""
	if len(path) > 0 {
		navigation = fmt.Sprintf(navigationTemplate, strings.Join(path, " > "))
	}
	return fmt.Sprintf(evaluatePromptTemplate, query, navigation, strings.Join(parts, "\n\n"), breadth)
}

// parseEvaluations matches reply items to nodes by node_id, then by array
// position. Unmatched and repeated items are dropped; nodes the reply skips
// are recorded as unselected. Selections past breadth are demoted in reply
// order.
func parseEvaluations(reply string, nodes []*treeModel.TreeNode, breadth int) ([]evaluation, error) {
	items, err := replyItems(reply)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*treeModel.TreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}

	seen := map[string]bool{}
	evals := make([]evaluation, 0, len(nodes))
	selected := 0
	for idx, item := range items {
		id, _ := item["node_id"].(string)
		node := byID[id]
		if node == nil {
			if idx >= len(nodes) {
				continue
			}
			node = nodes[idx]
		}
		if seen[node.NodeID] {
			continue
		}
		seen[node.NodeID] = true

		e := evaluation{
			node:       node,
			reasoning:  "No reasoning provided",
			confidence: 0.5,
		}
		if r, ok := item["reasoning"].(string); ok && r != "" {
			e.reasoning = r
		}
		if c, ok := item["confidence"].(float64); ok {
			e.confidence = clamp(c)
		}
		e.selected, _ = item["selected"].(bool)
		if e.selected && selected >= breadth {
			e.selected = false
			e.reasoning += " (breadth limit reached)"
		}
		if e.selected {
			selected++
		}
		evals = append(evals, e)
	}

	for _, n := range nodes {
		if !seen[n.NodeID] {
			evals = append(evals, evaluation{node: n, reasoning: "Not evaluated by LLM"})
		}
	}
	return evals, nil
}

// replyItems accepts a bare array of objects or an object wrapping one.
// Arrays holding anything but objects, such as "[1]" in prose, are skipped.
func replyItems(reply string) ([]map[string]any, error) {
	var items []map[string]any
	err := llm.DecodeArray(reply, &items)
	if err == nil {
		return items, nil
	}
	obj, objErr := llm.ExtractObject(reply)
	if objErr != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := objectList(obj[k]); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("%w: object reply without an array of objects", llm.ErrNoJSON)
}

func objectList(raw any) ([]map[string]any, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}

func fallback(nodes []*treeModel.TreeNode, breadth int) []evaluation {
	evals := make([]evaluation, len(nodes))
	for i, n := range nodes {
		evals[i] = evaluation{
			node:       n,
			reasoning:  "fallback: parse error",
			selected:   i < breadth,
			confidence: 0.5,
		}
	}
	return evals
}

func collectPages(nodes []*treeModel.TreeNode, totalPages int) []int {
	set := map[int]struct{}{}
	for _, n := range nodes {
		for _, p := range n.PagesWithin(totalPages) {
			set[p] = struct{}{}
		}
	}
	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func confidence(r *treeModel.SearchResult) float64 {
	if len(r.RelevantNodes) == 0 || len(r.ReasoningTrace) == 0 {
		return 0
	}
	score := 0.3
	score += 0.3 * float64(r.SelectedSteps()) / float64(len(r.ReasoningTrace))
	score += 0.2 * min(float64(len(r.RelevantNodes))/5, 1)
	score += 0.1
	return clamp(score)
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
