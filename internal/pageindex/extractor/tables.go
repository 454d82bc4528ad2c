package extractor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
)

const (
	rowTolerance   = 2.0
	cellGapFactor  = 1.5
	minTableRows   = 2
	minTableColumn = 2
)

// detectTables finds runs of consecutive text rows that split into at least
// two cells and renders each run as a markdown table. The first row is the
// header.
func detectTables(page pdf.Page) (tables []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, fmt.Errorf("reading page content: %v", r)
		}
	}()
	return tablesFromRuns(page.Content().Text), nil
}

func tablesFromRuns(runs []pdf.Text) []string {
	rows := groupRows(runs)

	var tables []string
	var current [][]string
	flush := func() {
		if len(current) >= minTableRows {
			tables = append(tables, renderMarkdown(current))
		}
		current = nil
	}
	for _, row := range rows {
		cells := splitCells(row)
		if len(cells) >= minTableColumn {
			current = append(current, cells)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// groupRows buckets runs by baseline, top of page first, each row sorted by X.
func groupRows(runs []pdf.Text) [][]pdf.Text {
	sorted := make([]pdf.Text, 0, len(runs))
	for _, r := range runs {
		if strings.TrimSpace(r.S) != "" || r.S == " " {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > rowTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]pdf.Text
	for _, r := range sorted {
		n := len(rows)
		if n > 0 && math.Abs(rows[n-1][0].Y-r.Y) <= rowTolerance {
			rows[n-1] = append(rows[n-1], r)
			continue
		}
		rows = append(rows, []pdf.Text{r})
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// splitCells joins runs into cells, starting a new cell wherever the
// horizontal gap is wider than a few glyphs.
func splitCells(row []pdf.Text) []string {
	var cells []string
	var sb strings.Builder
	prevEnd := math.Inf(-1)
	for _, r := range row {
		size := r.FontSize
		if size <= 0 {
			size = 10
		}
		if sb.Len() > 0 && r.X-prevEnd > size*cellGapFactor {
			if cell := strings.TrimSpace(sb.String()); cell != "" {
				cells = append(cells, cell)
			}
			sb.Reset()
		}
		sb.WriteString(r.S)
		prevEnd = r.X + r.W
	}
	if cell := strings.TrimSpace(sb.String()); cell != "" {
		cells = append(cells, cell)
	}
	return cells
}

func renderMarkdown(rows [][]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	line := func(cells []string) string {
		padded := make([]string, width)
		for i := range padded {
			if i < len(cells) {
				padded[i] = strings.ReplaceAll(cells[i], "|", "\\|")
			}
		}
		return "| " + strings.Join(padded, " | ") + " |"
	}

	sep := make([]string, width)
	for i := range sep {
		sep[i] = "---"
	}

	lines := []string{line(rows[0]), "| " + strings.Join(sep, " | ") + " |"}
	for _, r := range rows[1:] {
		lines = append(lines, line(r))
	}
	return strings.Join(lines, "\n")
}
