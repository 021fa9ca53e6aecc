package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(false, &buf)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("disabled tracing wrote %q", buf.String())
	}
}

func TestInitExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(true, &buf)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _, _ = Init(false, nil) })

	_, span := Tracer("test").Start(context.Background(), "session.Initialize")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"session.Initialize", ServiceName} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported spans missing %q: %s", want, out)
		}
	}
}
