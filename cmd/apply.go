package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invertix/internal/apply"
	"invertix/internal/engine"
	"invertix/internal/flags"
	"invertix/internal/invert"
	"invertix/internal/tracing"
)

// applyFlags holds the per-invocation inputs shared by the four apply modes.
type applyFlags struct {
	configPath string
	artifact   string
	outDir     string
	threads    int
	noClobber  bool
}

// registerApplyFlags wires the shared -c/-i/-o/-t/--no-clobber flag set.
func registerApplyFlags(cmd *cobra.Command, f *applyFlags) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"inversion order document (invert.yaml) from build-inverse-transforms (required)")
	cmd.Flags().StringVarP(&f.artifact, "input", "i", "",
		"artifact file or directory of artifacts (required)")
	cmd.Flags().StringVarP(&f.outDir, "outdir", "o", "",
		"output directory for stage results (required)")
	cmd.Flags().IntVarP(&f.threads, "threads", "t", 0,
		"threads per engine invocation")
	cmd.Flags().BoolVar(&f.noClobber, "no-clobber", false,
		"skip stages whose output directory already exists")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("outdir")
}

// runApply drives one apply mode end to end and prints the final stage
// directory of every artifact that made it through the whole chain.
func runApply(mode string, variant apply.Variant, f applyFlags) error {
	ctx, cancel := signalContext()
	defer cancel()

	order, err := invert.LoadOrderConfig(f.configPath)
	if err != nil {
		return fmt.Errorf("loading inversion order: %w", err)
	}

	env, err := newRunEnv(ctx, mode, f.configPath, f.artifact, f.outDir)
	if err != nil {
		return err
	}

	ctx, span := env.tracer.Start(ctx, tracing.SpanRun,
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, env.runID),
			attribute.String(tracing.AttrMode, mode),
		))

	applier := apply.NewEngine(order, engine.NewTransformix(cfg.Engine.TransformationBinary, engine.Options{
		Events: env.events,
		Watch:  env.flags.Enabled(flags.FlagEngineWatch),
	}), apply.Options{
		Events:    env.events,
		Ledger:    env.ledger,
		RunID:     env.runID,
		Tracer:    env.tracer,
		NoClobber: f.noClobber,
		Strict:    env.flags.Enabled(flags.FlagStrictResume),
	})

	finals, runErr := applier.ApplyPath(ctx, apply.Request{
		Artifact: f.artifact,
		Variant:  variant,
		OutDir:   f.outDir,
		Threads:  f.threads,
	})
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	span.End()

	env.finish(runErr)

	// Deterministic output order for scripting.
	volumes := make([]string, 0, len(finals))
	for v := range finals {
		volumes = append(volumes, v)
	}
	sort.Strings(volumes)
	for _, v := range volumes {
		fmt.Printf("%s -> %s\n", v, finals[v])
	}

	if runErr != nil {
		return fmt.Errorf("%s: %w", mode, runErr)
	}
	return nil
}
