package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-topstocks/models"
)

type mockWriter struct {
	mu          sync.Mutex
	tables      []models.ResultTable
	writeErr    error
	validateErr error
	closed      bool
	aborted     bool
}

func (mw *mockWriter) Write(table models.ResultTable) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	mw.tables = append(mw.tables, table)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Abort() {
	mw.mu.Lock()
	mw.aborted = true
	mw.mu.Unlock()
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func sampleTable(buys ...string) models.ResultTable {
	table := models.NewResultTable()
	for _, buy := range buys {
		table.Rows = append(table.Rows, models.StockRow{
			Buy:          buy,
			NetValue:     "1.2 B",
			NetLot:       "12,000",
			NetFrequency: "340",
			AveragePrice: "9,150",
			NetForeign:   "+500 M",
		})
	}
	return table
}

func TestPipelineProcess(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	if err := p.Process(sampleTable("BBCA", "BBRI")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(writer.tables) != 1 || writer.tables[0].Len() != 2 {
		t.Fatalf("writer received %+v", writer.tables)
	}
	if !writer.closed || writer.aborted {
		t.Fatalf("closed=%v aborted=%v, want committed", writer.closed, writer.aborted)
	}

	metrics := p.GetMetrics()
	if got := metrics["processed_rows"].(int64); got != 2 {
		t.Fatalf("processed_rows = %d, want 2", got)
	}
}

func TestPipelineRejectsSchemaMismatch(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer)

	table := sampleTable("BBCA")
	table.Columns = []string{"Buy", "N.Val"}

	err := p.Process(table)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if len(writer.tables) != 0 {
		t.Fatalf("mismatched table should not be written")
	}
	if closeErr := p.Close(); !errors.Is(closeErr, ErrSchemaMismatch) {
		t.Fatalf("close should report the processing error, got %v", closeErr)
	}
	if !writer.aborted || writer.closed {
		t.Fatalf("aborted=%v closed=%v, want aborted", writer.aborted, writer.closed)
	}
}

func TestPipelineWriteFailureIsSticky(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("disk full")}
	p := NewPipeline(writer)

	if err := p.Process(sampleTable("BBCA")); err == nil {
		t.Fatalf("expected write failure")
	}
	writer.writeErr = nil
	if err := p.Process(sampleTable("BBRI")); err == nil {
		t.Fatalf("pipeline should keep failing after the first error")
	}
	if p.Err() == nil {
		t.Fatalf("Err should report the first failure")
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(sampleTable("BBCA")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPipelineValidateFailure(t *testing.T) {
	writer := &mockWriter{validateErr: errors.New("empty")}
	p := NewPipeline(writer)

	if err := p.Process(sampleTable()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPipelineWithCSVWriterLeavesNoFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top_stocks.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	p := NewPipeline(writer)

	bad := sampleTable("BBCA")
	bad.Columns = nil
	if err := p.Process(bad); err == nil {
		t.Fatalf("expected schema error")
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected close to report failure")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output file should not exist, stat err = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staged files left behind: %v", entries)
	}
}
