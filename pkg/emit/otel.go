package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by turning each event into a span.
// Adapted from the teacher's graph/emit.OTelEmitter: run_id/step/node_id
// attributes become execution_id/job_id/node_id, and the LLM cost-tracking
// metadata (tokens_in/tokens_out/cost_usd/latency_ms/model) keeps its
// attribute-name mapping since the LLM collaborator still emits it.
type OTelEmitter struct {
	tracer trace.Tracer
}

func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit starts and immediately ends a span: events here are points in time,
// not durations, so there's nothing to leave open.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush force-flushes the active tracer provider, if it supports it (the
// SDK provider does; the no-op provider used when tracing isn't configured
// does not).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("swisspipe.source", string(event.Source)),
		attribute.String("swisspipe.execution_id", event.ExecutionID),
		attribute.String("swisspipe.node_id", event.NodeID),
		attribute.String("swisspipe.job_id", event.JobID),
	)
	for key, value := range event.Meta {
		attrKey := key
		switch key {
		case "tokens_in":
			attrKey = "swisspipe.llm.tokens_in"
		case "tokens_out":
			attrKey = "swisspipe.llm.tokens_out"
		case "cost_usd":
			attrKey = "swisspipe.llm.cost_usd"
		case "latency_ms":
			attrKey = "swisspipe.node.latency_ms"
		case "model":
			attrKey = "swisspipe.llm.model"
		}
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
