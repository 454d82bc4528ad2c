package main

import (
	"fmt"
	"strings"

	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/internal/pageindex/extractor"
	"github.com/charmbracelet/lipgloss"
)

const snippetLen = 300

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Width(14)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func renderIngest(res *pageindex.IngestResult) string {
	body := strings.Join([]string{
		titleStyle.Render("Indexed " + res.Filename),
		field("doc_id", res.DocID),
		field("title", res.Title),
		field("pages", res.TotalPages),
		field("tree depth", res.TreeDepth),
		field("nodes", res.NodeCount),
		field("pdf", res.PDFPath),
	}, "\n")
	return boxStyle.Render(body)
}

func renderQuery(res *pageindex.QueryResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Question) + "\n")
	b.WriteString(field("doc_id", res.DocID) + "\n")
	b.WriteString(field("pages", formatPages(res.RelevantPages)) + "\n")
	b.WriteString(field("confidence", fmt.Sprintf("%.2f", res.Confidence)) + "\n")
	b.WriteString(field("llm calls", res.LLMCalls) + "\n")
	if res.Warning != "" {
		b.WriteString(warnStyle.Render("warning: "+res.Warning) + "\n")
	}

	if len(res.ReasoningTrace) > 0 {
		b.WriteString("\n" + titleStyle.Render("Reasoning") + "\n")
		for _, step := range res.ReasoningTrace {
			mark := dimStyle.Render("·")
			if step.Selected {
				mark = successStyle.Render("✓")
			}
			fmt.Fprintf(&b, "%s%s %s %s\n", strings.Repeat("  ", step.Level), mark, step.NodeTitle,
				dimStyle.Render(fmt.Sprintf("(pp. %s, %.2f) %s", step.PageRange, step.Confidence, step.Reasoning)))
		}
	}

	if len(res.Citations) > 0 {
		b.WriteString("\n" + titleStyle.Render("Citations") + "\n")
		for _, c := range res.Citations {
			b.WriteString(boxStyle.Render(fmt.Sprintf("page %d\n%s", c.Page, snippet(c.Text))) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDocuments(docs []treeModel.DocumentMetadata) string {
	if len(docs) == 0 {
		return dimStyle.Render("no documents indexed")
	}
	var b strings.Builder
	noun := "documents"
	if len(docs) == 1 {
		noun = "document"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d %s", len(docs), noun)) + "\n")
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = d.Filename
		}
		fmt.Fprintf(&b, "%s  %s %s\n", d.DocID, title,
			dimStyle.Render(fmt.Sprintf("(%d pages, %d nodes, %s)", d.TotalPages, d.NodeCount,
				d.UpdatedAt.Format("2006-01-02 15:04"))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderExtraction(res *extractor.ExtractionResult) string {
	var b strings.Builder
	for _, p := range res.Pages {
		header := fmt.Sprintf("page %d", p.PageNumber)
		if p.HasImages {
			header += " (image heavy)"
		}
		b.WriteString(titleStyle.Render(header) + "\n")
		b.WriteString(p.Text + "\n")
		for _, t := range p.Tables {
			b.WriteString(dimStyle.Render(t) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d chars, ~%d tokens", res.TotalChars, res.TotalTokensEstimate)))
	return b.String()
}

func renderInfo(info *extractor.DocumentInfo) string {
	lines := []string{
		field("title", info.Title),
		field("author", info.Author),
		field("pages", info.PageCount),
		field("size", fmt.Sprintf("%.1f KB", float64(info.FileSizeBytes)/1024)),
		field("outline", info.HasTOC),
	}
	for _, e := range info.Outline {
		page := ""
		if e.Page > 0 {
			page = dimStyle.Render(fmt.Sprintf(" p.%d", e.Page))
		}
		lines = append(lines, strings.Repeat("  ", e.Level)+"- "+e.Title+page)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// formatPages collapses consecutive runs: [1 2 3 7] -> "1-3, 7".
func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "none"
	}
	var parts []string
	start, prev := pages[0], pages[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprint(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, p := range pages[1:] {
		if p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()
	return strings.Join(parts, ", ")
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > snippetLen {
		return string(r[:snippetLen]) + "…"
	}
	return text
}
