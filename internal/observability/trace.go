package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the package-wide otel tracer used to open one span per turn,
// with the deterministic trace[] tags attached as span events so a trace
// viewer and the JSON graph_trace[] agree.
var Tracer = otel.Tracer("parksuite-core")

// Trace accumulates the deterministic, wall-clock-free string tags each
// resolver/workflow stage appends, and mirrors each append as an otel span
// event carrying the same tag name.
type Trace struct {
	span trace.Span
	tags []string
}

// NewTrace starts an otel span named name under ctx and returns a Trace
// bound to it, plus the context carrying the new span.
func NewTrace(ctx context.Context, name string) (context.Context, *Trace) {
	ctx, span := Tracer.Start(ctx, name)
	return ctx, &Trace{span: span}
}

// Append records tag in trace order and emits a matching span event.
func (t *Trace) Append(tag string) {
	t.tags = append(t.tags, tag)
	if t.span != nil {
		t.span.AddEvent(tag)
	}
}

// Tags returns the accumulated tag slice in append order.
func (t *Trace) Tags() []string {
	return t.tags
}

// SetTraceID attaches the propagated X-Trace-Id as a span attribute.
func (t *Trace) SetTraceID(id string) {
	if t.span != nil {
		t.span.SetAttributes(attribute.String("trace_id", id))
	}
}

// End closes the underlying span. Safe to call once per Trace.
func (t *Trace) End() {
	if t.span != nil {
		t.span.End()
	}
}
