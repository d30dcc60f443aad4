package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"invertix/internal/engine"
	"invertix/internal/invert"
	"invertix/internal/ledger"
	"invertix/internal/log"
	"invertix/internal/paths"
	"invertix/internal/pubsub"
	"invertix/internal/tracing"
)

// Options wire observation and resume verification into an Engine.
type Options struct {
	Events *pubsub.Broker[pubsub.Progress]
	Ledger *ledger.Ledger
	RunID  string
	Tracer trace.Tracer

	// NoClobber skips a stage whose output directory already exists.
	NoClobber bool
	// Strict requires a completed ledger record before honoring a
	// no-clobber skip; unverifiable stage outputs are recomputed.
	Strict bool
}

// Engine applies an inverted transform chain to artifacts, one stage at a
// time. Stages are strictly sequential: each stage's inverse assumes the
// image space produced by the previous one.
type Engine struct {
	order  *invert.OrderConfig
	exec   engine.TransformationEngine
	opts   Options
	tracer trace.Tracer
}

// NewEngine creates an application engine over the given order config.
func NewEngine(order *invert.OrderConfig, exec engine.TransformationEngine, opts Options) *Engine {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("invertix")
	}
	return &Engine{order: order, exec: exec, opts: opts, tracer: tracer}
}

// Request describes one artifact application.
type Request struct {
	// Artifact is the input volume or point set. ApplyPath also accepts a
	// directory of artifacts.
	Artifact string
	Variant  Variant
	// OutDir is the output root; stage outputs land in
	// <OutDir>/<stage>/<volume>/.
	OutDir  string
	Threads int
}

// Apply chains one artifact through every stage in order and returns the
// final stage's output directory.
func (e *Engine) Apply(ctx context.Context, req Request) (string, error) {
	spec, err := lookupVariant(req.Variant)
	if err != nil {
		return "", err
	}

	volume := paths.Stem(req.Artifact)
	total := len(e.order.InversionOrder)
	current := req.Artifact
	finalDir := ""

	log.Info(log.CatApply, "applying chain",
		"artifact", req.Artifact, "variant", string(req.Variant), "stages", total)

	for i, stage := range e.order.InversionOrder {
		stageOut := filepath.Join(req.OutDir, stage, volume)
		canonical := filepath.Join(stageOut, filepath.Base(req.Artifact))

		if e.shouldSkip(stage, volume, req.Variant, stageOut) {
			log.Info(log.CatApply, "stage output exists, skipping", "stage", stage, "volume", volume)
			e.record(stage, volume, req.Variant, stageOut, ledger.StatusSkipped, nil)
			e.publish(pubsub.StageSkippedEvent, stage, volume, req.Variant, i+1, total, nil)
			current = canonical
			finalDir = stageOut
			continue
		}

		if err := e.applyStage(ctx, spec, req, stage, volume, current, stageOut, canonical, i, total); err != nil {
			return "", err
		}

		current = canonical
		finalDir = stageOut
	}

	return finalDir, nil
}

// applyStage runs one engine invocation and promotes its fixed-named
// output to the canonical artifact name.
func (e *Engine) applyStage(ctx context.Context, spec variantSpec, req Request, stage, volume, input, stageOut, canonical string, index, total int) error {
	ctx, span := e.tracer.Start(ctx, tracing.SpanApplyStage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(tracing.AttrStage, stage),
			attribute.String(tracing.AttrVolume, volume),
			attribute.String(tracing.AttrVariant, string(req.Variant)),
		))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.record(stage, volume, req.Variant, stageOut, ledger.StatusFailed, err)
		e.publish(pubsub.StageAppliedEvent, stage, volume, req.Variant, index+1, total, err)
		return err
	}

	transformPath := e.transformFor(spec, stage, volume)
	if !paths.Exists(transformPath) {
		return fail(fmt.Errorf("stage %s/%s: missing transform %s", stage, volume, transformPath))
	}

	if err := paths.EnsureDir(stageOut); err != nil {
		return fail(err)
	}

	treq := engine.TransformRequest{
		Transform: transformPath,
		OutDir:    stageOut,
		Threads:   req.Threads,
	}
	if spec.pointsInput {
		treq.InputPoints = input
	} else {
		treq.InputVolume = input
	}

	if err := e.exec.Transform(ctx, treq); err != nil {
		return fail(fmt.Errorf("stage %s/%s: %w", stage, volume, err))
	}

	if err := os.Rename(filepath.Join(stageOut, spec.resultName), canonical); err != nil {
		return fail(fmt.Errorf("stage %s/%s: promoting output: %w", stage, volume, err))
	}

	e.record(stage, volume, req.Variant, stageOut, ledger.StatusCompleted, nil)
	e.publish(pubsub.StageAppliedEvent, stage, volume, req.Variant, index+1, total, nil)
	log.Info(log.CatApply, "stage applied", "stage", stage, "volume", volume, "output", canonical)
	return nil
}

// ApplyPath accepts a file or a directory of artifacts. Directory inputs
// chain every contained file whose stem matches a tree volume, each
// independently. It returns the final output directory per volume.
func (e *Engine) ApplyPath(ctx context.Context, req Request) (map[string]string, error) {
	spec, err := lookupVariant(req.Variant)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(req.Artifact)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", req.Artifact, err)
	}
	if !info.IsDir() {
		final, err := e.Apply(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]string{paths.Stem(req.Artifact): final}, nil
	}

	entries, err := os.ReadDir(req.Artifact)
	if err != nil {
		return nil, fmt.Errorf("artifact directory %s: %w", req.Artifact, err)
	}

	finals := make(map[string]string)
	chained, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		volume := paths.Stem(entry.Name())
		if !e.hasVolume(spec, volume) {
			log.Warn(log.CatApply, "no tree volume for artifact, skipping",
				"artifact", entry.Name(), "volume", volume)
			continue
		}

		chained++
		sub := req
		sub.Artifact = filepath.Join(req.Artifact, entry.Name())
		final, err := e.Apply(ctx, sub)
		if err != nil {
			// Mesh chains poison the whole run; volume chains fail alone.
			if spec.abortsRun || isCancellation(err) {
				return finals, err
			}
			failed++
			log.ErrorErr(log.CatApply, "artifact chain failed", err, "artifact", sub.Artifact)
			continue
		}
		finals[volume] = final
	}

	if chained == 0 {
		return finals, fmt.Errorf("no artifacts in %s match tree volumes", req.Artifact)
	}
	if failed > 0 {
		return finals, fmt.Errorf("%d of %d artifact chains failed", failed, chained)
	}
	return finals, nil
}

// transformFor selects the stage transform. Mesh chains read the forward
// registration tree; everything else reads the inverted tree.
func (e *Engine) transformFor(spec variantSpec, stage, volume string) string {
	root := e.order.TreeRoot()
	if spec.usesForward {
		root = e.order.ForwardRoot()
	}
	return filepath.Join(root, stage, volume, spec.transformName)
}

// hasVolume reports whether the chain's source tree has a directory for
// the volume in the first stage to apply.
func (e *Engine) hasVolume(spec variantSpec, volume string) bool {
	if len(e.order.InversionOrder) == 0 {
		return false
	}
	root := e.order.TreeRoot()
	if spec.usesForward {
		root = e.order.ForwardRoot()
	}
	return paths.IsDir(filepath.Join(root, e.order.InversionOrder[0], volume))
}

// shouldSkip applies the no-clobber policy to one stage. Default
// semantics trust an existing output directory; strict mode additionally
// demands a completed ledger record.
func (e *Engine) shouldSkip(stage, volume string, variant Variant, stageOut string) bool {
	if !e.opts.NoClobber || !paths.IsDir(stageOut) {
		return false
	}

	if e.opts.Strict {
		verified := false
		if e.opts.Ledger != nil {
			ok, err := e.opts.Ledger.HasCompletedStage(stage, volume, string(variant))
			if err != nil {
				log.Warn(log.CatLedger, "stage verification failed", "stage", stage, "volume", volume, "error", err)
			}
			verified = ok && err == nil
		}
		if !verified {
			log.Warn(log.CatApply, "existing stage output unverified, recomputing", "stage", stage, "volume", volume)
			return false
		}
	}

	return true
}

func (e *Engine) record(stage, volume string, variant Variant, outDir string, status ledger.Status, stageErr error) {
	if e.opts.Ledger == nil {
		return
	}
	if err := e.opts.Ledger.RecordStage(e.opts.RunID, stage, volume, string(variant), outDir, status, stageErr); err != nil {
		log.Warn(log.CatLedger, "failed to record stage", "stage", stage, "volume", volume, "error", err)
	}
}

func (e *Engine) publish(eventType pubsub.EventType, stage, volume string, variant Variant, index, total int, stageErr error) {
	if e.opts.Events == nil {
		return
	}
	e.opts.Events.Publish(eventType, pubsub.Progress{
		Stage:  stage,
		Volume: volume,
		Detail: string(variant),
		Index:  index,
		Total:  total,
		Err:    stageErr,
	})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
