package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-topstocks/models"
)

// RowOutcome is the tagged result of validating one source row.
type RowOutcome struct {
	Index    int
	Cells    []string
	Accepted bool
	Reason   string
}

// NormalizeCell trims spacing from the cell text.
func NormalizeCell(text string) string {
	return strings.TrimSpace(text)
}

// NormalizeCells trims every cell, returning a new slice.
func NormalizeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		out[i] = NormalizeCell(cell)
	}
	return out
}

// ValidateRow accepts a row only when it has exactly models.ColumnCount cells.
func ValidateRow(index int, cells []string) RowOutcome {
	outcome := RowOutcome{Index: index, Cells: cells}
	if len(cells) != models.ColumnCount {
		outcome.Reason = fmt.Sprintf("expected %d cells, got %d", models.ColumnCount, len(cells))
		return outcome
	}
	outcome.Accepted = true
	return outcome
}

// BuildTable normalises and validates raw rows in source order. Accepted rows
// land in the table; rejected rows come back as diagnostics.
func BuildTable(raw [][]string) (models.ResultTable, []models.RowDiagnostic) {
	table := models.NewResultTable()
	var diagnostics []models.RowDiagnostic

	for i, cells := range raw {
		outcome := ValidateRow(i, NormalizeCells(cells))
		if !outcome.Accepted {
			diagnostics = append(diagnostics, models.RowDiagnostic{
				Index:     outcome.Index,
				CellCount: len(outcome.Cells),
				Cells:     outcome.Cells,
				Reason:    outcome.Reason,
			})
			continue
		}
		row, err := models.StockRowFromCells(outcome.Cells)
		if err != nil {
			// arity already checked; never emit a partial row
			diagnostics = append(diagnostics, models.RowDiagnostic{
				Index:     i,
				CellCount: len(outcome.Cells),
				Cells:     outcome.Cells,
				Reason:    err.Error(),
			})
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, diagnostics
}

// CellTexts returns the text of every cell under row, in document order.
func CellTexts(row *goquery.Selection, cellSelector string) []string {
	cells := row.Find(cellSelector)
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, cell.Text())
	})
	return out
}
