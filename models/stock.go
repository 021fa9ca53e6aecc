// Package models defines data structures for the scraper.
package models

import (
	"fmt"
	"time"
)

// ColumnCount is the fixed arity of a Top Stock row.
const ColumnCount = 6

// Columns is the output header, in cell order.
var Columns = []string{"Buy", "N.Val", "N.Lot", "N.Freq", "Avg", "N.Foreign"}

// StockRow is one accepted row of the Top Stock table. Values are the trimmed
// cell texts; no numeric parsing happens at extraction time.
type StockRow struct {
	Buy          string `csv:"Buy" json:"buy"`
	NetValue     string `csv:"N.Val" json:"net_value"`
	NetLot       string `csv:"N.Lot" json:"net_lot"`
	NetFrequency string `csv:"N.Freq" json:"net_frequency"`
	AveragePrice string `csv:"Avg" json:"average_price"`
	NetForeign   string `csv:"N.Foreign" json:"net_foreign"`
}

// StockRowFromCells maps exactly ColumnCount cells onto a row.
func StockRowFromCells(cells []string) (StockRow, error) {
	if len(cells) != ColumnCount {
		return StockRow{}, fmt.Errorf("row has %d cells, want %d", len(cells), ColumnCount)
	}
	return StockRow{
		Buy:          cells[0],
		NetValue:     cells[1],
		NetLot:       cells[2],
		NetFrequency: cells[3],
		AveragePrice: cells[4],
		NetForeign:   cells[5],
	}, nil
}

// Cells returns the row values in Columns order.
func (r StockRow) Cells() []string {
	return []string{r.Buy, r.NetValue, r.NetLot, r.NetFrequency, r.AveragePrice, r.NetForeign}
}

// ResultTable is the ordered output of one extraction call.
type ResultTable struct {
	Columns []string
	Rows    []StockRow
}

// NewResultTable returns an empty table carrying the fixed schema.
func NewResultTable() ResultTable {
	columns := make([]string, len(Columns))
	copy(columns, Columns)
	return ResultTable{Columns: columns, Rows: []StockRow{}}
}

// Len reports the number of accepted rows.
func (t ResultTable) Len() int {
	return len(t.Rows)
}

// RowDiagnostic records a source row that was dropped.
type RowDiagnostic struct {
	Index     int      `json:"index"`
	CellCount int      `json:"cell_count"`
	Cells     []string `json:"cells"`
	Reason    string   `json:"reason"`
}

// AuthMode tells whether a session was restored from disk or logged in by hand.
type AuthMode string

const (
	AuthAutomatic AuthMode = "automatic"
	AuthManual    AuthMode = "manual"
)

// ScrapeResult holds the overall result of an extraction.
type ScrapeResult struct {
	RunID            string
	Source           string
	Table            ResultTable
	Diagnostics      []RowDiagnostic
	OverlayDismissed bool
	AuthMode         AuthMode
	StartTime        time.Time
	EndTime          time.Time
}

// Duration is the wall time between start and end.
func (r *ScrapeResult) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
