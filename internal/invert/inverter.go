package invert

import (
	"context"
	"fmt"
	"path/filepath"

	"invertix/internal/engine"
	"invertix/internal/ledger"
	"invertix/internal/log"
	"invertix/internal/paths"
	"invertix/internal/transform"
)

// JobInverter runs a single inversion job.
type JobInverter interface {
	Invert(ctx context.Context, job Job) (skipped bool, err error)
}

// InverterOptions configure skip behavior.
type InverterOptions struct {
	// NoClobber skips a job whose image and label outputs both exist.
	NoClobber bool
	// StrictResume requires a completed ledger record before honoring a
	// no-clobber skip; unverifiable outputs are recomputed.
	StrictResume bool
	Ledger       *ledger.Ledger
}

// Compile-time check that Inverter implements JobInverter.
var _ JobInverter = (*Inverter)(nil)

// Inverter runs inversion jobs against the registration engine.
type Inverter struct {
	engine engine.RegistrationEngine
	opts   InverterOptions
}

func NewInverter(eng engine.RegistrationEngine, opts InverterOptions) *Inverter {
	return &Inverter{engine: eng, opts: opts}
}

// Invert produces the job's image-typed and label-typed inverted
// transforms. Steps run in order and the first failure aborts the job;
// partial outputs are never promoted past their scratch files.
func (inv *Inverter) Invert(ctx context.Context, job Job) (bool, error) {
	if inv.shouldSkip(job) {
		log.Info(log.CatInvert, "outputs exist, skipping", "stage", job.Stage, "volume", job.Volume)
		return true, nil
	}

	if err := paths.EnsureDir(job.OutDir); err != nil {
		return false, err
	}

	if err := transform.RewriteParameters(job.StageParams, job.InversionParams(), transform.ImageSubstitutions()); err != nil {
		return false, fmt.Errorf("rewriting parameters: %w", err)
	}

	// The fixed volume registers onto itself; the forward transform as the
	// initial transform makes the engine solve for its inverse.
	req := engine.RegistrationRequest{
		Fixed:            job.FixedVol,
		Moving:           job.FixedVol,
		InitialTransform: job.ForwardTransform,
		ParamFile:        job.InversionParams(),
		OutDir:           job.OutDir,
		Threads:          1,
	}
	if err := inv.engine.Register(ctx, req); err != nil {
		return false, err
	}

	engineOut := filepath.Join(job.OutDir, engine.ForwardTransformName)
	if _, err := transform.SeverInitialTransform(engineOut, job.ImageTransform()); err != nil {
		return false, fmt.Errorf("post-processing image transform: %w", err)
	}

	if err := transform.RewriteParameters(job.ImageTransform(), job.LabelTransform(), transform.LabelSubstitutions()); err != nil {
		return false, fmt.Errorf("rewriting label transform: %w", err)
	}
	if _, err := transform.SeverInitialTransform(job.LabelTransform(), job.LabelTransform()); err != nil {
		return false, fmt.Errorf("post-processing label transform: %w", err)
	}

	return false, nil
}

// shouldSkip applies the no-clobber policy. Default semantics trust files
// on disk; strict resume additionally demands a completed ledger record.
func (inv *Inverter) shouldSkip(job Job) bool {
	if !inv.opts.NoClobber {
		return false
	}
	if !paths.Exists(job.ImageTransform()) || !paths.Exists(job.LabelTransform()) {
		return false
	}

	if inv.opts.StrictResume {
		verified := false
		if inv.opts.Ledger != nil {
			ok, err := inv.opts.Ledger.HasCompletedJob(job.Stage, job.Volume)
			if err != nil {
				log.Warn(log.CatLedger, "job verification failed", "stage", job.Stage, "volume", job.Volume, "error", err)
			}
			verified = ok && err == nil
		}
		if !verified {
			log.Warn(log.CatInvert, "existing outputs unverified, recomputing", "stage", job.Stage, "volume", job.Volume)
			return false
		}
	}

	return true
}
