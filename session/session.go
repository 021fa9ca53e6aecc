// Package session owns the browser lifecycle and decides between restoring
// a saved AuthState and a manual, operator-confirmed login.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-scrape-topstocks/browser"
	"github.com/aluiziolira/go-scrape-topstocks/config"
	"github.com/aluiziolira/go-scrape-topstocks/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("topstocks/session")

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("session: invalid state")

// State is a Manager lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateSessionReady
	StateAwaitingConfirmation
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSessionReady:
		return "session_ready"
	case StateAwaitingConfirmation:
		return "awaiting_manual_confirmation"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LaunchFunc starts the automation engine.
type LaunchFunc func() (browser.Engine, error)

// Manager is the owned handle for one run's browser session.
type Manager struct {
	cfg       *config.Config
	launch    LaunchFunc
	confirmer Confirmer
	store     *StateStore

	state State
	mode  models.AuthMode

	engine  browser.Engine
	browser browser.Browser
	context browser.Context
	page    browser.Page
}

// NewManager builds a manager. Nothing is acquired until Initialize.
func NewManager(cfg *config.Config, launch LaunchFunc, confirmer Confirmer) *Manager {
	return &Manager{
		cfg:       cfg,
		launch:    launch,
		confirmer: confirmer,
		store:     NewStateStore(cfg.StatePath()),
		state:     StateUninitialized,
	}
}

// State returns the current lifecycle stage.
func (m *Manager) State() State {
	return m.state
}

// Mode reports how the session was (or will be) authenticated. Empty before
// Initialize.
func (m *Manager) Mode() models.AuthMode {
	return m.mode
}

// Page is the session's active page, nil before Initialize succeeds.
func (m *Manager) Page() browser.Page {
	return m.page
}

// Store exposes the AuthState store.
func (m *Manager) Store() *StateStore {
	return m.store
}

// Initialize acquires engine, browser, context, and page. The context is
// restored from AuthState when the file exists. On error, whatever was
// acquired stays owned by m and is released by Teardown.
func (m *Manager) Initialize(ctx context.Context) (err error) {
	_, span := tracer.Start(ctx, "session.Initialize")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if m.state != StateUninitialized {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidState, m.state)
	}

	if err := os.MkdirAll(m.cfg.DownloadPath, 0o755); err != nil {
		return fmt.Errorf("create download path %q: %w", m.cfg.DownloadPath, err)
	}

	engine, err := m.launch()
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	m.engine = engine

	b, err := engine.Launch(browser.LaunchOptions{
		Headless:       m.cfg.Headless,
		DefaultTimeout: m.cfg.ActionTimeout,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	m.browser = b

	exists, err := m.store.Exists()
	if err != nil {
		return err
	}

	opts := browser.ContextOptions{}
	if exists {
		m.mode = models.AuthAutomatic
		opts.StorageStatePath = m.store.Path()
		slog.Info("auth state found, restoring session", slog.String("path", m.store.Path()))
	} else {
		m.mode = models.AuthManual
		slog.Info("no auth state, manual login required", slog.String("path", m.store.Path()))
	}
	span.SetAttributes(attribute.String("auth.mode", string(m.mode)))

	bctx, err := b.NewContext(opts)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	m.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	m.page = page

	m.state = StateSessionReady
	return nil
}

// EnsureAuthenticated is a pass-through when AuthState was restored. On the
// manual path it opens the login page, waits for the operator, and writes
// AuthState exactly once.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "session.EnsureAuthenticated")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	switch m.state {
	case StateAuthenticated:
		return nil
	case StateSessionReady:
	default:
		return fmt.Errorf("%w: authenticate from %s", ErrInvalidState, m.state)
	}

	if m.mode == models.AuthAutomatic {
		m.state = StateAuthenticated
		return nil
	}

	unlock, err := m.store.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			slog.Warn("release auth state lock", slog.Any("error", uerr))
		}
	}()

	if err := m.page.Goto(m.cfg.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	m.state = StateAwaitingConfirmation
	prompt := "Log in manually in the browser window, including any email verification."
	if err := m.confirmer.Confirm(ctx, prompt); err != nil {
		m.state = StateSessionReady
		return fmt.Errorf("wait for login confirmation: %w", err)
	}

	if err := m.store.Write(m.context.SaveStorageState); err != nil {
		m.state = StateSessionReady
		return fmt.Errorf("persist auth state: %w", err)
	}
	slog.Info("auth state saved", slog.String("path", m.store.Path()))

	m.state = StateAuthenticated
	return nil
}

// Teardown releases context, browser, and engine in that order. Each release
// runs only if the resource was acquired and is attempted even when an
// earlier one failed. Calling it again is a no-op.
func (m *Manager) Teardown() error {
	var errs []error

	if m.context != nil {
		if err := m.context.Close(); err != nil {
			errs = append(errs, err)
		}
		m.context = nil
		m.page = nil
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		m.browser = nil
	}
	if m.engine != nil {
		if err := m.engine.Stop(); err != nil {
			errs = append(errs, err)
		}
		m.engine = nil
	}

	m.state = StateClosed
	return errors.Join(errs...)
}
