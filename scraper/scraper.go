package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-topstocks/browser"
	"github.com/aluiziolira/go-scrape-topstocks/config"
	"github.com/aluiziolira/go-scrape-topstocks/models"
	"github.com/aluiziolira/go-scrape-topstocks/parser"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("topstocks/scraper")

// Presence is the outcome of probing for an optional element.
type Presence int

const (
	Absent Presence = iota
	Present
)

func (p Presence) String() string {
	if p == Present {
		return "present"
	}
	return "absent"
}

// Extractor pulls the Top Stock table out of an authenticated page.
type Extractor struct {
	cfg     *config.Config
	Metrics *Metrics
}

// NewExtractor builds an extractor configured from cfg.
func NewExtractor(cfg *config.Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		Metrics: NewMetrics(),
	}
}

// ExtractTopStocks navigates to the Top Stock view of page and returns the
// validated table. Malformed rows are reported in the result, not as errors.
func (e *Extractor) ExtractTopStocks(ctx context.Context, page browser.Page) (result *models.ScrapeResult, err error) {
	_, span := tracer.Start(ctx, "scraper.ExtractTopStocks")
	defer func() {
		if err != nil {
			e.Metrics.IncError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	sel := e.cfg.Selectors

	slog.Info("opening top stock view", slog.String("url", e.cfg.LandingURL))
	if err := page.Goto(e.cfg.LandingURL); err != nil {
		return nil, ErrNavigation{URL: e.cfg.LandingURL, Err: err}
	}

	dismissed := e.dismissOverlay(page)

	if err := page.Click(sel.FeatureMenu); err != nil {
		return nil, ErrControl{Selector: sel.FeatureMenu, Err: err}
	}
	if err := page.Click(sel.SubTab); err != nil {
		return nil, ErrControl{Selector: sel.SubTab, Err: err}
	}

	if err := page.WaitFor(sel.Table, 0); err != nil {
		return nil, ErrTableNotRendered{Selector: sel.Table, Err: err}
	}

	raw, err := page.QueryTable(sel.TableRows, sel.TableCells)
	if err != nil {
		return nil, fmt.Errorf("read table rows: %w", err)
	}

	table, diagnostics := parser.BuildTable(raw)
	logDiagnostics(diagnostics)
	e.Metrics.AddRows(table.Len(), len(diagnostics))
	span.SetAttributes(
		attribute.Int("rows.accepted", table.Len()),
		attribute.Int("rows.rejected", len(diagnostics)),
	)

	result = &models.ScrapeResult{
		RunID:            uuid.NewString(),
		Source:           e.cfg.LandingURL,
		Table:            table,
		Diagnostics:      diagnostics,
		OverlayDismissed: dismissed,
		StartTime:        start,
		EndTime:          time.Now(),
	}
	e.Metrics.ObservePhase("extract", result.Duration())
	return result, nil
}

// dismissOverlay clicks the onboarding overlay's skip control when it shows
// up within the overlay timeout. It never fails the extraction.
func (e *Extractor) dismissOverlay(page browser.Page) bool {
	selector := e.cfg.Selectors.OverlayDismiss

	presence, err := checkOptional(page, selector, e.cfg.OverlayTimeout)
	if err != nil {
		slog.Warn("overlay check failed, continuing", slog.String("selector", selector), slog.Any("error", err))
	}
	if presence == Absent {
		slog.Info("overlay not shown, continuing", slog.Duration("waited", e.cfg.OverlayTimeout))
		e.Metrics.IncOverlay("absent")
		return false
	}

	if err := page.Click(selector); err != nil {
		slog.Warn("overlay click failed, continuing", slog.String("selector", selector), slog.Any("error", err))
		e.Metrics.IncOverlay("click_failed")
		return false
	}
	slog.Info("overlay dismissed", slog.String("selector", selector))
	e.Metrics.IncOverlay("dismissed")
	return true
}

// checkOptional waits up to timeout for selector. Expiry of the timeout is
// Absent with a nil error; any other engine failure is Absent plus the error.
func checkOptional(page browser.Page, selector string, timeout time.Duration) (Presence, error) {
	err := page.WaitFor(selector, timeout)
	switch {
	case err == nil:
		return Present, nil
	case errors.Is(err, browser.ErrTimeout):
		return Absent, nil
	default:
		return Absent, err
	}
}

func logDiagnostics(diagnostics []models.RowDiagnostic) {
	for _, d := range diagnostics {
		slog.Warn("skipping row with unexpected cell count",
			slog.Int("index", d.Index),
			slog.Int("cell_count", d.CellCount),
			slog.Any("cells", d.Cells),
		)
	}
}
