// Package browser narrows the browser-automation engine down to the handful
// of operations the downloader needs. The playwright-backed implementation
// lives in playwright.go; tests substitute in-memory fakes.
package browser

import (
	"errors"
	"time"
)

// ErrTimeout is matched by errors.Is when the engine gave up waiting.
var ErrTimeout = errors.New("browser: timeout")

// Engine is the automation driver process.
type Engine interface {
	Launch(opts LaunchOptions) (Browser, error)
	Stop() error
}

// Browser is a launched browser instance.
type Browser interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browser context holding cookies and storage.
type Context interface {
	NewPage() (Page, error)
	// SaveStorageState serialises cookies and local storage to path.
	SaveStorageState(path string) error
	Close() error
}

// Page is the active view of a context.
type Page interface {
	Goto(url string) error
	Click(selector string) error
	// WaitFor blocks until selector is visible. A zero timeout uses the
	// engine default.
	WaitFor(selector string, timeout time.Duration) error
	// QueryTable returns the raw text of every cell under every row match,
	// both in document order.
	QueryTable(rowSelector, cellSelector string) ([][]string, error)
	Content() (string, error)
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless bool
	// DefaultTimeout applies to every page action without an explicit
	// timeout. Zero keeps the engine's own default.
	DefaultTimeout time.Duration
}

// ContextOptions configures a new context.
type ContextOptions struct {
	// StorageStatePath restores a previously saved state when non-empty.
	StorageStatePath string
}
