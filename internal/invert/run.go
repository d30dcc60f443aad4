package invert

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"invertix/internal/engine"
	"invertix/internal/ledger"
	"invertix/internal/paths"
	"invertix/internal/pubsub"
	"invertix/internal/registration"
	"invertix/internal/tracing"
)

// RunConfig wires one build-inverse-transforms run.
type RunConfig struct {
	Engine engine.RegistrationEngine

	Events *pubsub.Broker[pubsub.Progress]
	Ledger *ledger.Ledger
	Tracer trace.Tracer
	RunID  string

	OutDir    string
	Workers   int
	NoClobber bool
	Strict    bool
}

// Run builds the inversion job graph from the forward registration tree
// and dispatches it. The inversion order document is written only after a
// run that was not cancelled, so a partial tree is never mistaken for a
// finished one.
func Run(ctx context.Context, cfg *registration.Config, rc RunConfig) (Summary, error) {
	tracer := rc.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("invertix")
	}

	ctx, span := tracer.Start(ctx, tracing.SpanBuild, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if err := paths.EnsureDir(rc.OutDir); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	jobs, order, err := NewBuilder().Build(ctx, cfg, rc.OutDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrJobs, len(jobs)),
		attribute.Int(tracing.AttrWorkers, rc.Workers),
	)

	inverter := NewInverter(rc.Engine, InverterOptions{
		NoClobber:    rc.NoClobber,
		StrictResume: rc.Strict,
		Ledger:       rc.Ledger,
	})
	dispatcher := NewDispatcher(inverter, DispatcherConfig{
		Workers: rc.Workers,
		Events:  rc.Events,
		Ledger:  rc.Ledger,
		RunID:   rc.RunID,
		Tracer:  tracer,
	})

	sum, err := dispatcher.Dispatch(ctx, jobs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}

	if err := order.Write(filepath.Join(rc.OutDir, OrderConfigName)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, fmt.Errorf("finalizing inverted tree: %w", err)
	}

	if rc.Events != nil {
		rc.Events.Publish(pubsub.RunFinishedEvent, pubsub.Progress{
			Detail: fmt.Sprintf("%d completed, %d skipped, %d failed", sum.Completed, sum.Skipped, sum.Failed),
			Index:  sum.Total(),
			Total:  sum.Total(),
		})
	}
	return sum, nil
}
