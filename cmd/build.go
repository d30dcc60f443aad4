package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invertix/internal/engine"
	"invertix/internal/flags"
	"invertix/internal/invert"
	"invertix/internal/registration"
	"invertix/internal/tracing"
)

var buildCmd = &cobra.Command{
	Use:   "build-inverse-transforms",
	Short: "Compute an inverse transform tree from a forward registration tree",
	Long: `Walk the forward registration tree named by the registration config and
compute, for every stage and specimen pair, an image inverse transform
and a labelmap inverse transform. The inverted tree mirrors the forward
layout and carries an inversion order document (invert.yaml) that the
apply modes read.

Jobs run on a bounded worker pool; -t sets the pool size (default: the
workers setting). With --no-clobber, pairs whose outputs already exist
are skipped, so an interrupted run can resume where it stopped.

Example:
  invertix build-inverse-transforms -c registration.yaml -o inverted/
  invertix build-inverse-transforms -c registration.yaml -o inverted/ -t 4 --no-clobber`,
	RunE: runBuild,
}

var (
	buildConfigPath string
	buildOutDir     string
	buildThreads    int
	buildNoClobber  bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildConfigPath, "config", "c", "",
		"registration config file (required)")
	buildCmd.Flags().StringVarP(&buildOutDir, "outdir", "o", "",
		"output directory for the inverted tree (required)")
	buildCmd.Flags().IntVarP(&buildThreads, "threads", "t", 0,
		"parallel inversion jobs (default: workers setting)")
	buildCmd.Flags().BoolVar(&buildNoClobber, "no-clobber", false,
		"skip pairs whose outputs already exist")
	_ = buildCmd.MarkFlagRequired("config")
	_ = buildCmd.MarkFlagRequired("outdir")
}

func runBuild(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	regCfg, err := registration.LoadConfig(buildConfigPath)
	if err != nil {
		return fmt.Errorf("loading registration config: %w", err)
	}

	env, err := newRunEnv(ctx, "build-inverse-transforms", buildConfigPath, "", buildOutDir)
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if buildThreads > 0 {
		workers = buildThreads
	}

	ctx, span := env.tracer.Start(ctx, tracing.SpanRun,
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, env.runID),
			attribute.String(tracing.AttrMode, "build-inverse-transforms"),
		))

	sum, runErr := invert.Run(ctx, regCfg, invert.RunConfig{
		Engine: engine.NewElastix(cfg.Engine.RegistrationBinary, engine.Options{
			Events: env.events,
			Watch:  env.flags.Enabled(flags.FlagEngineWatch),
		}),
		Events:    env.events,
		Ledger:    env.ledger,
		Tracer:    env.tracer,
		RunID:     env.runID,
		OutDir:    buildOutDir,
		Workers:   workers,
		NoClobber: buildNoClobber,
		Strict:    env.flags.Enabled(flags.FlagStrictResume),
	})
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	span.End()

	env.finish(runErr)

	fmt.Printf("%d jobs: %d completed, %d skipped, %d failed",
		sum.Total(), sum.Completed, sum.Skipped, sum.Failed)
	if sum.Cancelled > 0 {
		fmt.Printf(", %d cancelled", sum.Cancelled)
	}
	fmt.Println()

	if runErr != nil {
		return fmt.Errorf("building inverse transforms: %w", runErr)
	}
	fmt.Printf("wrote %s\n", filepath.Join(buildOutDir, invert.OrderConfigName))
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d inversion jobs failed", sum.Failed, sum.Total())
	}
	return nil
}
