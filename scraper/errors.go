package scraper

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-topstocks/browser"
)

// ErrNavigation indicates the page could not be loaded.
type ErrNavigation struct {
	URL string
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation to %s: %w", e.URL, e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrControl indicates a required UI control could not be clicked.
type ErrControl struct {
	Selector string
	Err      error
}

func (e ErrControl) Error() string {
	return fmt.Errorf("control %s: %w", e.Selector, e.Err).Error()
}

func (e ErrControl) Unwrap() error {
	return e.Err
}

// ErrTableNotRendered indicates the target table never appeared.
type ErrTableNotRendered struct {
	Selector string
	Err      error
}

func (e ErrTableNotRendered) Error() string {
	return fmt.Errorf("table %s not rendered: %w", e.Selector, e.Err).Error()
}

func (e ErrTableNotRendered) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var table ErrTableNotRendered
	if errors.As(err, &table) {
		return "table_not_rendered"
	}
	var control ErrControl
	if errors.As(err, &control) {
		return "control"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	if errors.Is(err, browser.ErrTimeout) {
		return "timeout"
	}
	return "other"
}
