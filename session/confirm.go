package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"
)

// Confirmer blocks until an operator signals that the manual login finished.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) error

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// ConsoleConfirmer prints the prompt and waits for a line on In.
type ConsoleConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// NewConsoleConfirmer reads from stdin and prompts on stdout.
func NewConsoleConfirmer() *ConsoleConfirmer {
	return &ConsoleConfirmer{In: os.Stdin, Out: os.Stdout}
}

// Confirm prints prompt and returns once a line is read, or with ctx.Err()
// if ctx ends first. On cancellation the read stays blocked on In until the
// next line or EOF; the CLI exits right after, so the goroutine is dropped
// with the process.
func (c *ConsoleConfirmer) Confirm(ctx context.Context, prompt string) error {
	fmt.Fprintf(c.Out, "%s\nPress Enter once the login is complete... ", prompt)

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(c.In).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("console closed before confirmation: %w", err)
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// SignalConfirmer waits for a process signal, SIGUSR1 on Unix unless Signal
// is set.
type SignalConfirmer struct {
	Signal os.Signal
	Out    io.Writer
}

// Confirm prints prompt with this process's pid and returns once the signal
// arrives or ctx ends.
func (c *SignalConfirmer) Confirm(ctx context.Context, prompt string) error {
	sig := c.Signal
	if sig == nil {
		sig = defaultConfirmSignal
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s\nSend %v to pid %d once the login is complete.\n", prompt, sig, os.Getpid())
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	defer signal.Stop(ch)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// HTTPConfirmer serves POST /confirm on Addr for the duration of the wait.
type HTTPConfirmer struct {
	Addr string
}

// Confirm logs prompt with the confirmation URL and returns after the first
// POST to /confirm, or when ctx ends. The listener is closed before it returns.
func (c *HTTPConfirmer) Confirm(ctx context.Context, prompt string) error {
	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("listen for confirmation: %w", err)
	}
	slog.Info(prompt, slog.String("confirm_url", "http://"+ln.Addr().String()+"/confirm"))
	return serveConfirmation(ctx, ln)
}

func serveConfirmation(ctx context.Context, ln net.Listener) error {
	confirmed := make(chan struct{})
	var once sync.Once

	mux := http.NewServeMux()
	mux.HandleFunc("/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, "confirmed")
		once.Do(func() { close(confirmed) })
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	var result error
	select {
	case <-ctx.Done():
		result = ctx.Err()
	case <-confirmed:
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("confirmation server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Debug("confirmation server shutdown", slog.Any("error", err))
	}
	return result
}
