package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-topstocks/config"
	"github.com/aluiziolira/go-scrape-topstocks/models"
	"github.com/aluiziolira/go-scrape-topstocks/parser"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

// Replayer re-extracts the Top Stock table from a saved page snapshot,
// without a browser or a session.
type Replayer struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics
}

// NewReplayer builds a replayer that can read http(s) and file URLs.
func NewReplayer(cfg *config.Config) *Replayer {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	collector.WithTransport(transport)
	if cfg.ActionTimeout > 0 {
		collector.SetRequestTimeout(cfg.ActionTimeout)
	}

	return &Replayer{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
	}
}

// Replay loads target (a file path or URL) and runs the same row validation
// as a live extraction.
func (r *Replayer) Replay(ctx context.Context, target string) (result *models.ScrapeResult, err error) {
	defer func() {
		if err != nil {
			r.Metrics.IncError(err)
		}
	}()

	source, err := snapshotURL(target)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	sel := r.cfg.Selectors
	c := r.collector.Clone()

	var (
		tableFound bool
		raw        [][]string
		visitErr   error
	)
	c.OnHTML(sel.Table, func(_ *colly.HTMLElement) {
		tableFound = true
	})
	c.OnHTML(sel.TableRows, func(e *colly.HTMLElement) {
		raw = append(raw, parser.CellTexts(e.DOM, sel.TableCells))
	})
	c.OnError(func(resp *colly.Response, err error) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		visitErr = fmt.Errorf("fetch snapshot (status %d): %w", status, err)
	})

	slog.Info("replaying snapshot", slog.String("source", source))
	if err := c.Visit(source); err != nil {
		return nil, ErrNavigation{URL: source, Err: err}
	}
	if visitErr != nil {
		return nil, ErrNavigation{URL: source, Err: visitErr}
	}
	if !tableFound {
		return nil, ErrTableNotRendered{Selector: sel.Table, Err: fmt.Errorf("no match in snapshot")}
	}

	table, diagnostics := parser.BuildTable(raw)
	logDiagnostics(diagnostics)
	r.Metrics.AddRows(table.Len(), len(diagnostics))

	result = &models.ScrapeResult{
		RunID:       uuid.NewString(),
		Source:      source,
		Table:       table,
		Diagnostics: diagnostics,
		StartTime:   start,
		EndTime:     time.Now(),
	}
	r.Metrics.ObservePhase("replay", result.Duration())
	return result, nil
}

// snapshotURL turns a filesystem path into a file URL and passes URLs through.
func snapshotURL(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("snapshot target cannot be empty")
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "file://") {
		return target, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
