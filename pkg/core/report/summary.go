// Package report renders a human-readable summary of a collection run.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dart_finstate/pkg/core/collector"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown summarizes an export: request, per-unit outcomes, and what the
// spreadsheet repair pass did.
func Markdown(exp *collector.Export) string {
	res := exp.Result
	var sb strings.Builder

	fmt.Fprintf(&sb, "# DART Financial Statement Collection\n\n")
	fmt.Fprintf(&sb, "- **Run:** `%s`\n", res.RunID)
	fmt.Fprintf(&sb, "- **Report:** %s (%s)\n", res.Request.Report.Label(), res.Request.Report.Code())
	fmt.Fprintf(&sb, "- **Years:** %s\n", joinYears(res.Request.Years))
	fmt.Fprintf(&sb, "- **Duration:** %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	success, empty, failed := res.Partition()
	fmt.Fprintf(&sb, "- **Units:** %d success, %d empty, %d failed\n", len(success), len(empty), len(failed))
	fmt.Fprintf(&sb, "- **Rows:** %d\n", res.Dataset.Len())
	if exp.Delivered() {
		fmt.Fprintf(&sb, "- **Spreadsheet:** `%s`\n", exp.Path)
	} else {
		sb.WriteString("- **Spreadsheet:** none (nothing collected)\n")
	}

	sb.WriteString("\n## Units\n\n")
	sb.WriteString("| Company | Code | Year | Status | Rows | Error |\n")
	sb.WriteString("|---|---|---|---|---:|---|\n")
	for _, u := range res.Units {
		fmt.Fprintf(&sb, "| %s | %s | %d | %s | %d | %s |\n",
			cell(u.Entity.Name), cell(u.Entity.ID), u.Year, u.Status, u.Rows, cell(u.ErrorText()))
	}

	if len(res.AmountColumns) > 0 {
		sb.WriteString("\n## Amounts\n\n")
		fmt.Fprintf(&sb, "Amount columns: %s\n\n", strings.Join(res.AmountColumns, ", "))
		fmt.Fprintf(&sb, "Unparseable values blanked: %d\n", res.Unparseable)
	}

	if exp.Sheet != nil {
		sb.WriteString("\n## Spreadsheet Repair\n\n")
		fmt.Fprintf(&sb, "Cells converted from text: %d\n", exp.Sheet.Repaired)
		if len(exp.Sheet.Irreparable) > 0 {
			sb.WriteString("\n| Cell | Column | Text |\n|---|---|---|\n")
			for _, c := range exp.Sheet.Irreparable {
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", c.Cell, cell(c.Column), cell(c.Text))
			}
		}
	}
	return sb.String()
}

// RenderHTML converts the Markdown summary to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.String(), nil
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}

// cell escapes text for a table cell.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
