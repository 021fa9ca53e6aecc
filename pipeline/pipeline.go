// Package pipeline persists extracted tables.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aluiziolira/go-scrape-topstocks/models"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrSchemaMismatch is returned for a table whose columns differ from models.Columns.
	ErrSchemaMismatch = errors.New("pipeline: column schema mismatch")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(table models.ResultTable) error
	Close() error
	Validate() error
}

// aborter is implemented by writers that can discard staged output.
type aborter interface {
	Abort()
}

// Pipeline checks tables against the output schema and hands them to a writer.
type Pipeline struct {
	writer OutputWriter

	mu        sync.Mutex // guards everything below
	closed    bool
	err       error
	processed int64
	tables    int64
}

// NewPipeline builds a pipeline around writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{writer: writer}
}

// Process writes table. The first failure is sticky and the staged output
// is discarded on Close.
func (p *Pipeline) Process(table models.ResultTable) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	if p.err != nil {
		return p.err
	}

	if !slices.Equal(table.Columns, models.Columns) {
		p.err = fmt.Errorf("%w: got %v", ErrSchemaMismatch, table.Columns)
		return p.err
	}
	if err := p.writer.Write(table); err != nil {
		p.err = fmt.Errorf("write table: %w", err)
		return p.err
	}

	p.processed += int64(table.Len())
	p.tables++
	return nil
}

// Close finalises the output. After a processing error nothing is committed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.err
	}
	p.closed = true

	if p.err != nil {
		if a, ok := p.writer.(aborter); ok {
			a.Abort()
		} else if err := p.writer.Close(); err != nil {
			slog.Warn("close writer after failure", slog.Any("error", err))
		}
		return p.err
	}
	if err := p.writer.Close(); err != nil {
		p.err = fmt.Errorf("close writer: %w", err)
		return p.err
	}
	if err := p.writer.Validate(); err != nil {
		p.err = fmt.Errorf("validate output: %w", err)
		return p.err
	}
	return nil
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]interface{}{
		"processed_rows":   p.processed,
		"processed_tables": p.tables,
	}
}
