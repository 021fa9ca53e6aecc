package scraper

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-topstocks/browser"
	"github.com/aluiziolira/go-scrape-topstocks/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// scriptedPage is a browser.Page whose selectors either resolve or time out.
type scriptedPage struct {
	visible  map[string]bool
	clickErr map[string]error
	rows     [][]string
	queryErr error

	calls []string
}

func (p *scriptedPage) Goto(url string) error {
	p.calls = append(p.calls, "goto "+url)
	return nil
}

func (p *scriptedPage) Click(selector string) error {
	p.calls = append(p.calls, "click "+selector)
	return p.clickErr[selector]
}

func (p *scriptedPage) WaitFor(selector string, timeout time.Duration) error {
	p.calls = append(p.calls, fmt.Sprintf("wait %s %s", selector, timeout))
	if p.visible[selector] {
		return nil
	}
	return fmt.Errorf("wait for %s: %w", selector, browser.ErrTimeout)
}

func (p *scriptedPage) QueryTable(rowSelector, cellSelector string) ([][]string, error) {
	p.calls = append(p.calls, "query "+rowSelector+" "+cellSelector)
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	out := make([][]string, len(p.rows))
	for i, row := range p.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (p *scriptedPage) Content() (string, error) {
	return "<html></html>", nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DownloadPath = "unused"
	cfg.OverlayTimeout = 50 * time.Millisecond
	return cfg
}

func renderedPage(cfg *config.Config, rows [][]string) *scriptedPage {
	return &scriptedPage{
		visible: map[string]bool{cfg.Selectors.Table: true},
		rows:    rows,
	}
}

func TestExtractTopStocksOverlayAbsent(t *testing.T) {
	cfg := testConfig()
	page := renderedPage(cfg, [][]string{
		{"BBCA", "1.2 B", "12,000", "340", "9,150", "+500 M"},
	})

	e := NewExtractor(cfg)
	result, err := e.ExtractTopStocks(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.OverlayDismissed {
		t.Fatalf("overlay should not be reported as dismissed")
	}
	if result.Table.Len() != 1 {
		t.Fatalf("rows = %d, want 1", result.Table.Len())
	}

	want := []string{
		"goto " + cfg.LandingURL,
		fmt.Sprintf("wait %s %s", cfg.Selectors.OverlayDismiss, cfg.OverlayTimeout),
		"click " + cfg.Selectors.FeatureMenu,
		"click " + cfg.Selectors.SubTab,
		fmt.Sprintf("wait %s %s", cfg.Selectors.Table, time.Duration(0)),
		"query " + cfg.Selectors.TableRows + " " + cfg.Selectors.TableCells,
	}
	if !reflect.DeepEqual(page.calls, want) {
		t.Fatalf("calls =\n%q\nwant\n%q", page.calls, want)
	}
	if got := testutil.ToFloat64(e.Metrics.OverlayTotal.WithLabelValues("absent")); got != 1 {
		t.Fatalf("overlay absent metric = %v, want 1", got)
	}
}

func TestExtractTopStocksDismissesOverlay(t *testing.T) {
	cfg := testConfig()
	page := renderedPage(cfg, nil)
	page.visible[cfg.Selectors.OverlayDismiss] = true

	e := NewExtractor(cfg)
	result, err := e.ExtractTopStocks(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !result.OverlayDismissed {
		t.Fatalf("overlay should be dismissed")
	}
	if page.calls[2] != "click "+cfg.Selectors.OverlayDismiss {
		t.Fatalf("overlay not clicked before menu: %q", page.calls)
	}
}

func TestExtractTopStocksOverlayClickFailureIsNotFatal(t *testing.T) {
	cfg := testConfig()
	page := renderedPage(cfg, nil)
	page.visible[cfg.Selectors.OverlayDismiss] = true
	page.clickErr = map[string]error{cfg.Selectors.OverlayDismiss: errors.New("detached")}

	result, err := NewExtractor(cfg).ExtractTopStocks(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.OverlayDismissed {
		t.Fatalf("failed click should not count as dismissed")
	}
}

func TestExtractTopStocksDropsMalformedRows(t *testing.T) {
	cfg := testConfig()
	page := renderedPage(cfg, [][]string{
		{" BBCA ", "1.2 B", "12,000", "340", "9,150", "+500 M"},
		{"A", "B", "C"},
		{"10", "1000", "5", "3", "9.5", "200"},
	})

	e := NewExtractor(cfg)
	result, err := e.ExtractTopStocks(context.Background(), page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", result.Table.Len())
	}
	if result.Table.Rows[0].Buy != "BBCA" || result.Table.Rows[1].Buy != "10" {
		t.Fatalf("rows out of order: %+v", result.Table.Rows)
	}
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].CellCount != 3 {
		t.Fatalf("diagnostics = %+v", result.Diagnostics)
	}
	if result.RunID == "" {
		t.Fatalf("run id should be set")
	}
	if got := testutil.ToFloat64(e.Metrics.RowsTotal.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("rejected rows metric = %v, want 1", got)
	}
}

func TestExtractTopStocksEmptyTable(t *testing.T) {
	cfg := testConfig()
	result, err := NewExtractor(cfg).ExtractTopStocks(context.Background(), renderedPage(cfg, nil))
	if err != nil {
		t.Fatalf("empty table should not fail: %v", err)
	}
	if result.Table.Len() != 0 {
		t.Fatalf("rows = %d, want 0", result.Table.Len())
	}
	if !reflect.DeepEqual(result.Table.Columns, []string{"Buy", "N.Val", "N.Lot", "N.Freq", "Avg", "N.Foreign"}) {
		t.Fatalf("columns = %v", result.Table.Columns)
	}
}

func TestExtractTopStocksIdempotent(t *testing.T) {
	cfg := testConfig()
	rows := [][]string{
		{"BBRI", "1", "2", "3", "4", "5"},
		{"short"},
		{"ASII", "6", "7", "8", "9", "10"},
	}
	e := NewExtractor(cfg)

	first, err := e.ExtractTopStocks(context.Background(), renderedPage(cfg, rows))
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := e.ExtractTopStocks(context.Background(), renderedPage(cfg, rows))
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if !reflect.DeepEqual(first.Table, second.Table) {
		t.Fatalf("tables differ:\n%+v\n%+v", first.Table, second.Table)
	}
}

func TestExtractTopStocksTableNeverRenders(t *testing.T) {
	cfg := testConfig()
	page := &scriptedPage{visible: map[string]bool{}}

	e := NewExtractor(cfg)
	result, err := e.ExtractTopStocks(context.Background(), page)
	if result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
	var notRendered ErrTableNotRendered
	if !errors.As(err, &notRendered) {
		t.Fatalf("expected ErrTableNotRendered, got %v", err)
	}
	if !errors.Is(err, browser.ErrTimeout) {
		t.Fatalf("expected timeout in chain, got %v", err)
	}
	for _, call := range page.calls {
		if call == "query "+cfg.Selectors.TableRows+" "+cfg.Selectors.TableCells {
			t.Fatalf("rows should not be read when the table is missing")
		}
	}
	if got := testutil.ToFloat64(e.Metrics.ErrorsTotal.WithLabelValues("table_not_rendered")); got != 1 {
		t.Fatalf("error metric = %v, want 1", got)
	}
}

func TestExtractTopStocksControlFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	page := renderedPage(cfg, nil)
	page.clickErr = map[string]error{cfg.Selectors.SubTab: fmt.Errorf("click: %w", browser.ErrTimeout)}

	_, err := NewExtractor(cfg).ExtractTopStocks(context.Background(), page)
	var control ErrControl
	if !errors.As(err, &control) {
		t.Fatalf("expected ErrControl, got %v", err)
	}
	if control.Selector != cfg.Selectors.SubTab {
		t.Fatalf("selector = %q, want %q", control.Selector, cfg.Selectors.SubTab)
	}
}

func TestCheckOptional(t *testing.T) {
	tests := []struct {
		name     string
		page     *scriptedPage
		expected Presence
		wantErr  bool
	}{
		{
			name:     "present",
			page:     &scriptedPage{visible: map[string]bool{"#skip": true}},
			expected: Present,
		},
		{
			name:     "timed out",
			page:     &scriptedPage{visible: map[string]bool{}},
			expected: Absent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkOptional(tt.page, "#skip", time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkOptional() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expected {
				t.Fatalf("checkOptional() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "table", err: ErrTableNotRendered{Selector: "table", Err: browser.ErrTimeout}, expected: "table_not_rendered"},
		{name: "control", err: ErrControl{Selector: "#tab", Err: errors.New("detached")}, expected: "control"},
		{name: "navigation", err: ErrNavigation{URL: "https://example.test", Err: errors.New("dns")}, expected: "navigation"},
		{name: "bare timeout", err: fmt.Errorf("read: %w", browser.ErrTimeout), expected: "timeout"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}
