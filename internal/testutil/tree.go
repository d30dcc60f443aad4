// Package testutil provides test fixtures: on-disk forward registration
// trees, scripted engine fakes, and ledger setup.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"invertix/internal/registration"
)

// DefaultStageParams is realistic registration parameter content carrying
// every key the inversion rewriter substitutes.
const DefaultStageParams = `(FixedInternalImagePixelType "float")
(MovingInternalImagePixelType "float")
(Registration "MultiResolutionRegistration")
(Transform "BSplineTransform")
(Metric "AdvancedMattesMutualInformation")
(FinalBSplineInterpolationOrder 3)
(ResultImagePixelType "float")
(WriteResultImage "true")
(NumberOfResolutions 4)
(MaximumNumberOfIterations 400)
`

// DefaultForwardTransform is realistic forward transform content.
const DefaultForwardTransform = `(Transform "EulerTransform")
(NumberOfParameters 6)
(TransformParameters 0.01 -0.02 0.005 1.2 -3.4 0.8)
(InitialTransformParametersFileName "NoInitialTransform")
(HowToCombineTransforms "Compose")
(FixedImageDimension 3)
(MovingImageDimension 3)
(ResultImagePixelType "float")
(FinalBSplineInterpolationOrder 3)
`

// stageVolume keys per-pair tree tweaks.
type stageVolume struct {
	stage  string
	volume string
}

// TreeBuilder assembles a fake forward registration tree on disk. The
// default tree is complete: every stage has a parameter file, every
// stage/volume pair has a directory with a forward transform and metadata
// pointing at an existing fixed volume.
type TreeBuilder struct {
	t       *testing.T
	root    string
	stages  []string
	volumes []string

	stageParams     map[string]string
	missingParams   map[string]bool
	missingForward  map[stageVolume]bool
	missingMetadata map[stageVolume]bool
	missingFixedVol map[stageVolume]bool
	missingVolDir   map[stageVolume]bool
}

// NewTree creates a builder rooted in a fresh temp directory.
func NewTree(t *testing.T) *TreeBuilder {
	t.Helper()
	return &TreeBuilder{
		t:               t,
		root:            t.TempDir(),
		stages:          []string{"rigid", "affine"},
		volumes:         []string{"specimen1"},
		stageParams:     make(map[string]string),
		missingParams:   make(map[string]bool),
		missingForward:  make(map[stageVolume]bool),
		missingMetadata: make(map[stageVolume]bool),
		missingFixedVol: make(map[stageVolume]bool),
		missingVolDir:   make(map[stageVolume]bool),
	}
}

// WithStages replaces the default stage list, in forward registration order.
func (b *TreeBuilder) WithStages(stages ...string) *TreeBuilder {
	b.stages = stages
	return b
}

// WithVolumes replaces the default volume list.
func (b *TreeBuilder) WithVolumes(volumes ...string) *TreeBuilder {
	b.volumes = volumes
	return b
}

// WithStageParams overrides one stage's parameter file content.
func (b *TreeBuilder) WithStageParams(stage, content string) *TreeBuilder {
	b.stageParams[stage] = content
	return b
}

// WithoutParamFile omits the stage's parameter file.
func (b *TreeBuilder) WithoutParamFile(stage string) *TreeBuilder {
	b.missingParams[stage] = true
	return b
}

// WithoutForwardTransform omits the pair's forward transform file.
func (b *TreeBuilder) WithoutForwardTransform(stage, volume string) *TreeBuilder {
	b.missingForward[stageVolume{stage, volume}] = true
	return b
}

// WithoutMetadata omits the pair's metadata document.
func (b *TreeBuilder) WithoutMetadata(stage, volume string) *TreeBuilder {
	b.missingMetadata[stageVolume{stage, volume}] = true
	return b
}

// WithMissingFixedVol writes metadata naming a fixed volume that does not
// exist on disk.
func (b *TreeBuilder) WithMissingFixedVol(stage, volume string) *TreeBuilder {
	b.missingFixedVol[stageVolume{stage, volume}] = true
	return b
}

// WithoutVolumeDir omits the pair's directory entirely.
func (b *TreeBuilder) WithoutVolumeDir(stage, volume string) *TreeBuilder {
	b.missingVolDir[stageVolume{stage, volume}] = true
	return b
}

// Tree is a built fixture. ConfigPath points at a registration config
// naming the tree's stages; FixedVol is the shared reference volume the
// metadata documents resolve to.
type Tree struct {
	Root       string
	ConfigPath string
	FixedVol   string
	Stages     []string
	Volumes    []string
}

// Build writes the tree to disk and returns its handle.
func (b *TreeBuilder) Build() Tree {
	b.t.Helper()

	// Shared reference volume, reached from metadata by a doc-relative path.
	targetDir := filepath.Join(b.root, "target")
	require.NoError(b.t, os.MkdirAll(targetDir, 0755))
	fixedVol := filepath.Join(targetDir, "ref_volume.nrrd")
	require.NoError(b.t, os.WriteFile(fixedVol, []byte("nrrd-stub\n"), 0644))

	for _, stage := range b.stages {
		stageDir := filepath.Join(b.root, stage)
		require.NoError(b.t, os.MkdirAll(stageDir, 0755))

		if !b.missingParams[stage] {
			content, ok := b.stageParams[stage]
			if !ok {
				content = DefaultStageParams
			}
			paramPath := filepath.Join(stageDir, registration.ParamFilePrefix+stage+".txt")
			require.NoError(b.t, os.WriteFile(paramPath, []byte(content), 0644))
		}

		for _, volume := range b.volumes {
			key := stageVolume{stage, volume}
			if b.missingVolDir[key] {
				continue
			}
			volDir := filepath.Join(stageDir, volume)
			require.NoError(b.t, os.MkdirAll(volDir, 0755))

			if !b.missingForward[key] {
				forward := filepath.Join(volDir, registration.ForwardTransformName)
				require.NoError(b.t, os.WriteFile(forward, []byte(DefaultForwardTransform), 0644))
			}

			if !b.missingMetadata[key] {
				fixedRef := "../../target/ref_volume.nrrd"
				if b.missingFixedVol[key] {
					fixedRef = "../../target/no_such_volume.nrrd"
				}
				meta := fmt.Sprintf("fixed_vol: %s\n", fixedRef)
				metaPath := filepath.Join(volDir, registration.MetadataFileName)
				require.NoError(b.t, os.WriteFile(metaPath, []byte(meta), 0644))
			}
		}
	}

	configPath := filepath.Join(b.root, "invertix.yaml")
	config := "stages:\n"
	for _, stage := range b.stages {
		config += "  - " + stage + "\n"
	}
	config += "registration_directory: .\n"
	require.NoError(b.t, os.WriteFile(configPath, []byte(config), 0644))

	return Tree{
		Root:       b.root,
		ConfigPath: configPath,
		FixedVol:   fixedVol,
		Stages:     b.stages,
		Volumes:    b.volumes,
	}
}

// LoadConfig parses the tree's registration config.
func (tr Tree) LoadConfig(t *testing.T) *registration.Config {
	t.Helper()
	cfg, err := registration.LoadConfig(tr.ConfigPath)
	require.NoError(t, err)
	return cfg
}
