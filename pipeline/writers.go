package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-topstocks/models"
)

// stagedFile is written under a temporary name next to its destination and
// only renamed into place by commit.
type stagedFile struct {
	final string
	file  *os.File
}

func stage(filename string) (*stagedFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", filename, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("chmod %s: %w", f.Name(), err)
	}
	return &stagedFile{final: filename, file: f}, nil
}

func (s *stagedFile) commit() error {
	if err := s.file.Close(); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("close %s: %w", s.file.Name(), err)
	}
	if err := os.Rename(s.file.Name(), s.final); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("rename into %s: %w", s.final, err)
	}
	return nil
}

func (s *stagedFile) abort() {
	s.file.Close()
	os.Remove(s.file.Name())
}

// CSVWriter writes the result table as CSV with a single header row.
type CSVWriter struct {
	staged *stagedFile
	writer *csv.Writer
	closed bool
	mu     sync.Mutex
}

// NewCSVWriter stages filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	staged, err := stage(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(staged.file)
	if err := writer.Write(models.Columns); err != nil {
		staged.abort()
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	return &CSVWriter{
		staged: staged,
		writer: writer,
	}, nil
}

// Write appends the rows of table.
func (cw *CSVWriter) Write(table models.ResultTable) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return ErrPipelineClosed
	}
	for _, row := range table.Rows {
		if err := cw.writer.Write(row.Cells()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes the records and moves the file into place.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return nil
	}
	cw.closed = true

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.staged.abort()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.staged.commit()
}

// Abort discards the staged file without touching the destination.
func (cw *CSVWriter) Abort() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return
	}
	cw.closed = true
	cw.staged.abort()
}

// Validate checks the committed file holds at least the header row.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.staged.final, "csv")
}

// Path is the destination of the CSV file.
func (cw *CSVWriter) Path() string {
	return cw.staged.final
}

// JSONWriter writes one JSON object per row (JSONL).
type JSONWriter struct {
	staged  *stagedFile
	writer  *bufio.Writer
	encoder *json.Encoder
	closed  bool
	mu      sync.Mutex
}

// NewJSONWriter stages filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	staged, err := stage(filename)
	if err != nil {
		return nil, err
	}

	buffer := bufio.NewWriter(staged.file)
	return &JSONWriter{
		staged:  staged,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends the rows of table in JSONL format.
func (jw *JSONWriter) Write(table models.ResultTable) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrPipelineClosed
	}
	for _, row := range table.Rows {
		if err := jw.encoder.Encode(row); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and moves the file into place.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return nil
	}
	jw.closed = true

	if err := jw.writer.Flush(); err != nil {
		jw.staged.abort()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.staged.commit()
}

// Abort discards the staged file.
func (jw *JSONWriter) Abort() {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return
	}
	jw.closed = true
	jw.staged.abort()
}

// Validate checks the committed file exists. An empty table yields an
// empty JSONL file, which is valid.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.staged.final); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

// Path is the destination of the JSONL file.
func (jw *JSONWriter) Path() string {
	return jw.staged.final
}

// WriteSnapshot stores the rendered page HTML at path.
func WriteSnapshot(path, html string) error {
	staged, err := stage(path)
	if err != nil {
		return err
	}
	if _, err := staged.file.WriteString(html); err != nil {
		staged.abort()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return staged.commit()
}

func validateFile(filename, kind string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
