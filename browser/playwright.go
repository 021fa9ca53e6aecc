package browser

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

// EngineOptions configures the playwright driver.
type EngineOptions struct {
	// Install downloads the driver and Chromium before starting.
	Install bool
	// Verbose forwards driver output to stdout/stderr.
	Verbose bool
}

type playwrightEngine struct {
	pw *playwright.Playwright
}

// StartPlaywright starts the playwright driver.
func StartPlaywright(opts EngineOptions) (Engine, error) {
	runOpts := &playwright.RunOptions{
		Verbose: opts.Verbose,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if opts.Verbose {
		runOpts.Stdout = nil
		runOpts.Stderr = nil
	}

	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &playwrightEngine{pw: pw}, nil
}

func (e *playwrightEngine) Launch(opts LaunchOptions) (Browser, error) {
	b, err := e.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &playwrightBrowser{browser: b, defaultTimeout: opts.DefaultTimeout}, nil
}

func (e *playwrightEngine) Stop() error {
	if err := e.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	return nil
}

type playwrightBrowser struct {
	browser        playwright.Browser
	defaultTimeout time.Duration
}

func (b *playwrightBrowser) NewContext(opts ContextOptions) (Context, error) {
	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	ctx, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	return &playwrightContext{context: ctx, defaultTimeout: b.defaultTimeout}, nil
}

func (b *playwrightBrowser) Close() error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type playwrightContext struct {
	context        playwright.BrowserContext
	defaultTimeout time.Duration
}

func (c *playwrightContext) NewPage() (Page, error) {
	page, err := c.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	if c.defaultTimeout > 0 {
		page.SetDefaultTimeout(milliseconds(c.defaultTimeout))
	}
	return &playwrightPage{page: page}, nil
}

func (c *playwrightContext) SaveStorageState(path string) error {
	if _, err := c.context.StorageState(path); err != nil {
		return fmt.Errorf("save storage state: %w", err)
	}
	return nil
}

func (c *playwrightContext) Close() error {
	if err := c.context.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}
	return nil
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string) error {
	if _, err := p.page.Goto(url); err != nil {
		return fmt.Errorf("goto %s: %w", url, translate(err))
	}
	return nil
}

func (p *playwrightPage) Click(selector string) error {
	if err := p.page.Click(selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, translate(err))
	}
	return nil
}

func (p *playwrightPage) WaitFor(selector string, timeout time.Duration) error {
	opts := playwright.PageWaitForSelectorOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(milliseconds(timeout))
	}
	if _, err := p.page.WaitForSelector(selector, opts); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, translate(err))
	}
	return nil
}

func (p *playwrightPage) QueryTable(rowSelector, cellSelector string) ([][]string, error) {
	rows, err := p.page.QuerySelectorAll(rowSelector)
	if err != nil {
		return nil, fmt.Errorf("query rows %s: %w", rowSelector, translate(err))
	}

	out := make([][]string, 0, len(rows))
	for i, row := range rows {
		cells, err := row.QuerySelectorAll(cellSelector)
		if err != nil {
			return nil, fmt.Errorf("query cells of row %d: %w", i, translate(err))
		}
		texts := make([]string, 0, len(cells))
		for j, cell := range cells {
			text, err := cell.InnerText()
			if err != nil {
				return nil, fmt.Errorf("read cell %d of row %d: %w", j, i, translate(err))
			}
			texts = append(texts, text)
		}
		out = append(out, texts)
	}
	return out, nil
}

func (p *playwrightPage) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", translate(err))
	}
	return html, nil
}

// translate maps engine timeouts onto ErrTimeout while keeping the underlying
// message in the chain.
func translate(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
