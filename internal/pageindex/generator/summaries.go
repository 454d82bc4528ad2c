package generator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/llm"
	"github.com/akolanti/PageIndexAPI/internal/telemetry"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

// backfillSummaries asks the summary model for every node whose summary is
// too thin. Failures leave the summary as it was; only cancellation is an
// error.
func (g *TreeGenerator) backfillSummaries(ctx context.Context, log *logger_i.Logger, roots []*treeModel.TreeNode, pageTexts []string) error {
	var pending []*treeModel.TreeNode
	tree := &treeModel.DocumentTree{RootNodes: roots}
	tree.Walk(func(n *treeModel.TreeNode) bool {
		if nonSpaceLen(n.Summary) < config.MinSummaryChars {
			pending = append(pending, n)
		}
		return true
	})
	if len(pending) == 0 {
		return nil
	}
	log.Info("generating_summaries", "node_count", len(pending))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.SummaryConcurrency)
	for _, node := range pending {
		eg.Go(func() error {
			g.summarize(egCtx, log, node, nodeContent(node, pageTexts))
			return nil
		})
	}
	_ = eg.Wait()
	return ctx.Err()
}

func (g *TreeGenerator) summarize(ctx context.Context, log *logger_i.Logger, node *treeModel.TreeNode, content string) {
	prompt := fmt.Sprintf(summaryPromptTemplate, node.Title, node.StartPage, node.EndPage, content)
	summary, err := g.call(ctx, componentSummary, llm.Request{
		Prompt:      prompt,
		Model:       g.cfg.SummaryModel,
		MaxTokens:   config.SummaryMaxTokens,
		Temperature: config.TreeGenTemperature,
	})
	if err != nil {
		log.Warn("summary_failed", "node_id", node.NodeID, "error", err)
		g.sink.LogError(ctx, telemetry.ErrorEvent{
			Component:      componentSummary,
			ErrorType:      "SummaryError",
			Message:        err.Error(),
			RecoveryAction: "keep_existing_summary",
		})
		return
	}
	if summary = strings.TrimSpace(summary); summary != "" {
		node.Summary = summary
	}
}

// nodeContent joins the node's own pages and caps the result.
func nodeContent(node *treeModel.TreeNode, pageTexts []string) string {
	start := max(0, node.StartPage-1)
	end := min(len(pageTexts), node.EndPage)
	if start >= end {
		return ""
	}
	return truncateRunes(strings.Join(pageTexts[start:end], "\n"), config.SummaryContentChars)
}

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
