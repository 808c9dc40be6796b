package chat

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// Engine spans resolve through the global tracer provider, so any process
// that installs one (observability.Setup does) records them.
func TestEngineOperationsRecordSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx := context.Background()
	store := newTestStore(t)
	e := newTestEngine(t, store, nil)

	if err := e.SendMessage(ctx, "halo"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := e.LoadPage(ctx, true); err != nil {
		t.Fatalf("load: %v", err)
	}
	msgs := e.Messages()
	if len(msgs) == 0 {
		t.Fatal("expected at least one message in the buffer")
	}
	if err := e.Rate(ctx, msgs[0].ID, domain.FeedbackLike, ""); err != nil {
		t.Fatalf("rate: %v", err)
	}

	seen := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		seen[span.Name] = true
		if span.InstrumentationScope.Name != "chat/Engine" {
			t.Fatalf("unexpected tracer scope %q for span %q", span.InstrumentationScope.Name, span.Name)
		}
	}
	for _, name := range []string{"SendMessage", "LoadPage", "Rate"} {
		if !seen[name] {
			t.Fatalf("no %s span recorded, got %v", name, seen)
		}
	}
}
