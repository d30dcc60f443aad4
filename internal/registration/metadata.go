package registration

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"invertix/internal/cachemanager"
	"invertix/internal/paths"
)

// Metadata is a per-volume registration metadata document, written by the
// pipeline next to each volume's stage output.
type Metadata struct {
	// FixedVol is the fixed image this volume was registered against,
	// relative to the metadata document unless absolute.
	FixedVol string `yaml:"fixed_vol"`
}

// FixedVolume reads a metadata document and returns the fixed volume path
// resolved against the document.
func FixedVolume(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304 path comes from tree discovery
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	if md.FixedVol == "" {
		return "", fmt.Errorf("metadata %s has no fixed_vol", path)
	}

	return paths.ResolveAgainst(path, md.FixedVol), nil
}

// FixedVolumes caches fixed-volume lookups keyed by metadata path. The same
// document is consulted once per stage during job building, so each file is
// parsed at most once per run.
type FixedVolumes struct {
	cache *cachemanager.ReadThroughCache[string, string]
}

func NewFixedVolumes() *FixedVolumes {
	manager := cachemanager.NewInMemoryCacheManager[string](
		"reg-metadata",
		cachemanager.DefaultExpiration,
		cachemanager.DefaultCleanupInterval,
	)
	return &FixedVolumes{
		cache: cachemanager.NewReadThroughCache[string, string](
			manager,
			func(_ context.Context, path string) (string, error) {
				return FixedVolume(path)
			},
			false,
		),
	}
}

func (f *FixedVolumes) Get(ctx context.Context, metadataPath string) (string, error) {
	return f.cache.Get(ctx, metadataPath, metadataPath, cachemanager.DefaultExpiration)
}
