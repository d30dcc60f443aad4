package invert

import (
	"context"
	"fmt"
	"path/filepath"

	"invertix/internal/log"
	"invertix/internal/paths"
	"invertix/internal/registration"
)

// Builder assembles the inversion job list from a forward registration
// tree. Volumes come from the first configured stage's directory; metadata
// lookups go through a per-run cache.
type Builder struct {
	fixedVols *registration.FixedVolumes
}

func NewBuilder() *Builder {
	return &Builder{fixedVols: registration.NewFixedVolumes()}
}

// Build walks every configured stage for every discovered volume. Stage
// names accumulate by prepending, so forward order [rigid, affine] comes
// out as inversion order [affine, rigid]. Pairs with missing inputs are
// logged and skipped; only volume discovery itself is fatal.
func (b *Builder) Build(ctx context.Context, cfg *registration.Config, outDir string) ([]Job, *OrderConfig, error) {
	tree := registration.NewTree(cfg.Root())

	volumes, err := tree.Volumes(cfg.FirstStage())
	if err != nil {
		return nil, nil, fmt.Errorf("discovering volumes: %w", err)
	}
	log.Info(log.CatBuild, "discovered volumes", "stage", cfg.FirstStage(), "count", len(volumes))

	var jobs []Job
	var order []string
	for _, stage := range cfg.Stages {
		order = append([]string{stage}, order...)

		params, err := tree.ParamFile(stage)
		if err != nil {
			log.Warn(log.CatBuild, "no parameter file, skipping stage", "stage", stage, "error", err)
			continue
		}

		for _, volume := range volumes {
			job, err := b.buildJob(ctx, tree, stage, volume, params, outDir)
			if err != nil {
				log.Warn(log.CatBuild, "skipping pair", "stage", stage, "volume", volume, "error", err)
				continue
			}
			jobs = append(jobs, job)
		}
	}

	orderCfg := &OrderConfig{
		InversionOrder:        order,
		RegistrationDirectory: tree.Root,
	}
	log.Info(log.CatBuild, "jobs built", "count", len(jobs), "stages", len(cfg.Stages), "volumes", len(volumes))
	return jobs, orderCfg, nil
}

func (b *Builder) buildJob(ctx context.Context, tree *registration.Tree, stage, volume, params, outDir string) (Job, error) {
	if !paths.IsDir(tree.VolumeDir(stage, volume)) {
		return Job{}, fmt.Errorf("volume has no %s directory", stage)
	}

	forward := tree.ForwardTransform(stage, volume)
	if !paths.Exists(forward) {
		return Job{}, fmt.Errorf("missing forward transform %s", forward)
	}

	fixedVol, err := b.fixedVols.Get(ctx, tree.MetadataPath(stage, volume))
	if err != nil {
		return Job{}, fmt.Errorf("reading metadata: %w", err)
	}
	if !paths.Exists(fixedVol) {
		return Job{}, fmt.Errorf("fixed volume %s does not exist", fixedVol)
	}

	return Job{
		Stage:            stage,
		Volume:           volume,
		ForwardTransform: forward,
		StageParams:      params,
		FixedVol:         fixedVol,
		OutDir:           filepath.Join(outDir, stage, volume),
	}, nil
}
