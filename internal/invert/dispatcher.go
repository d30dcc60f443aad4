package invert

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"invertix/internal/ledger"
	"invertix/internal/log"
	"invertix/internal/pubsub"
	"invertix/internal/tracing"
)

// DefaultWorkers is the number of concurrent inversion jobs when the
// caller does not choose one. Each elastix invocation already saturates
// its own threads, so the pool stays serial unless asked otherwise.
const DefaultWorkers = 1

// queued pairs a job with its 1-based position in the build order.
type queued struct {
	job   Job
	index int
}

// Result reports the outcome of one dispatched job.
type Result struct {
	Job     Job
	Index   int
	Skipped bool
	Err     error
}

// Summary aggregates the outcomes of a full dispatch.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Cancelled int
}

// Total returns the number of jobs accounted for in the summary.
func (s Summary) Total() int {
	return s.Completed + s.Skipped + s.Failed + s.Cancelled
}

// DispatcherConfig holds configuration for the job dispatcher.
type DispatcherConfig struct {
	Workers int // Concurrent jobs (default: 1)

	// Events receives job lifecycle events when non-nil.
	Events *pubsub.Broker[pubsub.Progress]
	// Ledger records job outcomes when non-nil.
	Ledger *ledger.Ledger
	// RunID tags ledger records with the owning run.
	RunID string
	// Tracer emits one span per job. Defaults to a no-op tracer.
	Tracer trace.Tracer
}

// Dispatcher runs inversion jobs across a bounded worker pool. Jobs are
// independent; a failed job never stops the others, only context
// cancellation drains the queue early.
type Dispatcher struct {
	inverter JobInverter
	workers  int
	events   *pubsub.Broker[pubsub.Progress]
	ledger   *ledger.Ledger
	runID    string
	tracer   trace.Tracer
}

// NewDispatcher creates a dispatcher running jobs through the given
// inverter.
func NewDispatcher(inverter JobInverter, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("invertix")
	}
	return &Dispatcher{
		inverter: inverter,
		workers:  cfg.Workers,
		events:   cfg.Events,
		ledger:   cfg.Ledger,
		runID:    cfg.RunID,
		tracer:   tracer,
	}
}

// Dispatch runs all jobs and blocks until every outcome is collected.
// The returned summary counts every submitted job exactly once. The
// error is non-nil only when the context was cancelled; per-job failures
// are reported through the summary and the ledger instead.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []Job) (Summary, error) {
	total := len(jobs)
	if total == 0 {
		return Summary{}, nil
	}

	log.Info(log.CatInvert, "dispatching jobs", "subsystem", "pool", "jobs", total, "workers", d.workers)

	jobCh := make(chan queued)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range jobCh {
				results <- d.runJob(ctx, q, total)
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for i, job := range jobs {
			d.publish(pubsub.JobQueuedEvent, pubsub.Progress{
				Stage:  job.Stage,
				Volume: job.Volume,
				Index:  i + 1,
				Total:  total,
			})
			select {
			case jobCh <- queued{job: job, index: i + 1}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var sum Summary
	for res := range results {
		sum = d.collect(sum, res, total)
	}

	// Jobs never handed to a worker produce no result; they were cancelled
	// in the queue.
	if undispatched := total - sum.Total(); undispatched > 0 {
		sum.Cancelled += undispatched
	}

	if err := ctx.Err(); err != nil {
		log.Warn(log.CatInvert, "dispatch cancelled", "subsystem", "pool",
			"completed", sum.Completed, "skipped", sum.Skipped, "failed", sum.Failed)
		return sum, err
	}
	return sum, nil
}

// runJob executes one job inside its own span. Panics are converted to
// job failures so one bad job cannot take down the pool.
func (d *Dispatcher) runJob(ctx context.Context, q queued, total int) (res Result) {
	res = Result{Job: q.job, Index: q.index}
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatInvert, "job panic recovered",
				"subsystem", "pool",
				"panic", r,
				"job", q.job.Name(),
				"stack", string(debug.Stack()))
			res.Err = fmt.Errorf("job %s panicked: %v", q.job.Name(), r)
		}
	}()

	// Jobs still queued at cancellation are counted, not run.
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	ctx, span := d.tracer.Start(ctx, tracing.SpanInvertJob,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(tracing.AttrStage, q.job.Stage),
			attribute.String(tracing.AttrVolume, q.job.Volume),
		))
	defer span.End()

	d.publish(pubsub.JobStartedEvent, pubsub.Progress{
		Stage:  q.job.Stage,
		Volume: q.job.Volume,
		Index:  q.index,
		Total:  total,
	})
	log.Debug(log.CatInvert, "job started", "job", q.job.Name(), "index", q.index, "total", total)

	skipped, err := d.inverter.Invert(ctx, q.job)
	res.Skipped = skipped
	res.Err = err

	span.SetAttributes(attribute.Bool(tracing.AttrSkipped, skipped))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res
}

// collect folds one result into the summary, recording it in the ledger
// and publishing the matching lifecycle event. Cancelled jobs get no
// ledger row, so a strict resume recomputes them.
func (d *Dispatcher) collect(sum Summary, res Result, total int) Summary {
	prog := pubsub.Progress{
		Stage:  res.Job.Stage,
		Volume: res.Job.Volume,
		Index:  res.Index,
		Total:  total,
		Err:    res.Err,
	}

	switch {
	case isCancellation(res.Err):
		sum.Cancelled++
	case res.Err != nil:
		sum.Failed++
		log.ErrorErr(log.CatInvert, "job failed", res.Err, "job", res.Job.Name())
		d.record(res.Job, ledger.StatusFailed, res.Err)
		d.publish(pubsub.JobFinishedEvent, prog)
	case res.Skipped:
		sum.Skipped++
		d.record(res.Job, ledger.StatusSkipped, nil)
		d.publish(pubsub.JobSkippedEvent, prog)
	default:
		sum.Completed++
		log.Info(log.CatInvert, "job completed", "job", res.Job.Name(), "index", res.Index, "total", total)
		d.record(res.Job, ledger.StatusCompleted, nil)
		d.publish(pubsub.JobFinishedEvent, prog)
	}
	return sum
}

func (d *Dispatcher) record(job Job, status ledger.Status, jobErr error) {
	if d.ledger == nil {
		return
	}
	if err := d.ledger.RecordJob(d.runID, job.Stage, job.Volume, status, jobErr); err != nil {
		log.Warn(log.CatLedger, "failed to record job", "job", job.Name(), "error", err)
	}
}

func (d *Dispatcher) publish(eventType pubsub.EventType, prog pubsub.Progress) {
	if d.events == nil {
		return
	}
	d.events.Publish(eventType, prog)
}

func isCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
