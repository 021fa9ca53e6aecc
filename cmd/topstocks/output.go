package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aluiziolira/go-scrape-topstocks/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.SetOutputMirror(w)
	return t
}

func printResult(w io.Writer, path string, result *models.ScrapeResult, metrics map[string]interface{}) {
	fmt.Fprintf(w, "Saved: %s\n", path)
	printTable(w, result.Table)
	printSummary(w, result, metrics)
}

func printTable(w io.Writer, rows models.ResultTable) {
	t := newTable(w)

	header := make(table.Row, len(rows.Columns))
	for i, column := range rows.Columns {
		header[i] = column
	}
	t.AppendHeader(header)

	for _, row := range rows.Rows {
		cells := row.Cells()
		record := make(table.Row, len(cells))
		for i, cell := range cells {
			record[i] = cell
		}
		t.AppendRow(record)
	}
	t.Render()
}

func printSummary(w io.Writer, result *models.ScrapeResult, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "Extraction complete")

	rows := int64(result.Table.Len())
	if processed, ok := metrics["processed_rows"].(int64); ok {
		rows = processed
	}

	fmt.Fprintf(w, "  Run:           %s\n", result.RunID)
	fmt.Fprintf(w, "  Source:        %s\n", result.Source)
	if result.AuthMode != "" {
		fmt.Fprintf(w, "  Auth:          %s\n", result.AuthMode)
	}
	fmt.Fprintf(w, "  Rows saved:    %d\n", rows)
	fmt.Fprintf(w, "  Rows skipped:  %d\n", len(result.Diagnostics))
	fmt.Fprintf(w, "  Overlay:       %s\n", overlayLabel(result.OverlayDismissed))
	fmt.Fprintf(w, "  Duration:      %v\n", result.Duration().Round(time.Millisecond))
	fmt.Fprintln(w, separator)
}

func overlayLabel(dismissed bool) string {
	if dismissed {
		return "dismissed"
	}
	return "not shown"
}
