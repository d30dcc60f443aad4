package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"invertix/internal/config"
	"invertix/internal/flags"
	"invertix/internal/ledger"
	"invertix/internal/log"
	"invertix/internal/pubsub"
	"invertix/internal/tracing"
	"invertix/internal/transform"
)

// runEnv carries the wiring shared by every pipeline subcommand: feature
// flags, the event broker and its console printer, the run ledger, and
// the trace provider.
type runEnv struct {
	runID    string
	flags    *flags.Registry
	events   *pubsub.Broker[pubsub.Progress]
	ledger   *ledger.Ledger
	tracer   trace.Tracer
	provider *tracing.Provider
	printer  *progressPrinter
	logStop  func()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newRunEnv validates the tool settings and opens the ledger, broker, and
// tracer for one run. The run is registered in the ledger immediately so an
// interrupted invocation still leaves a row behind.
func newRunEnv(ctx context.Context, mode, configPath, artifact, outDir string) (*runEnv, error) {
	logStop, err := setupLogging()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		logStop()
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	reg := flags.New(cfg.Flags)
	transform.SetDiffLogging(reg.Enabled(flags.FlagRewriteDiff))

	tc := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}
	if tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		logStop()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	led, err := ledger.Open(filepath.Join(outDir, cfg.Ledger.Filename))
	if err != nil {
		shutdownProvider(provider)
		logStop()
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}

	runID := uuid.NewString()
	if err := led.StartRun(runID, mode, configPath, artifact, outDir); err != nil {
		_ = led.Close()
		shutdownProvider(provider)
		logStop()
		return nil, fmt.Errorf("recording run start: %w", err)
	}

	events := pubsub.NewBroker[pubsub.Progress]()
	printer := startProgressPrinter(ctx, events, os.Stdout)

	log.Info(log.CatConfig, "run starting", "runID", runID, "mode", mode, "outdir", outDir)

	return &runEnv{
		runID:    runID,
		flags:    reg,
		events:   events,
		ledger:   led,
		tracer:   provider.Tracer(),
		provider: provider,
		printer:  printer,
		logStop:  logStop,
	}, nil
}

// finish records the run outcome, drains the event printer, and flushes
// spans. Call it exactly once, after the pipeline returns.
func (e *runEnv) finish(runErr error) {
	status := ledger.RunCompleted
	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		status = ledger.RunCancelled
	case runErr != nil:
		status = ledger.RunFailed
	}
	if err := e.ledger.FinishRun(e.runID, status); err != nil {
		log.ErrorErr(log.CatLedger, "failed to record run finish", err, "runID", e.runID)
	}

	e.events.Close()
	e.printer.wait()

	if err := e.ledger.Close(); err != nil {
		log.ErrorErr(log.CatLedger, "failed to close ledger", err)
	}
	shutdownProvider(e.provider)
	e.logStop()
}

// shutdownProvider flushes spans on a fresh context so a cancelled run
// still exports what it traced.
func shutdownProvider(p *tracing.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "failed to flush traces", err)
	}
}
