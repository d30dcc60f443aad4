package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"invertix/internal/engine"
	"invertix/internal/registration"
)

func TestTreeBuilder_DefaultTreeIsComplete(t *testing.T) {
	tr := NewTree(t).Build()

	cfg := tr.LoadConfig(t)
	require.Equal(t, []string{"rigid", "affine"}, cfg.Stages)
	require.Equal(t, tr.Root, cfg.Root())

	tree := registration.NewTree(tr.Root)

	volumes, err := tree.Volumes("rigid")
	require.NoError(t, err)
	require.Equal(t, []string{"specimen1"}, volumes)

	params, err := tree.ParamFile("affine")
	require.NoError(t, err)
	require.FileExists(t, params)

	require.FileExists(t, tree.ForwardTransform("rigid", "specimen1"))
	require.FileExists(t, tree.ForwardTransform("affine", "specimen1"))

	fixed, err := registration.FixedVolume(tree.MetadataPath("rigid", "specimen1"))
	require.NoError(t, err)
	require.Equal(t, tr.FixedVol, fixed)
	require.FileExists(t, fixed)
}

func TestTreeBuilder_Omissions(t *testing.T) {
	tr := NewTree(t).
		WithStages("rigid", "affine", "deformable").
		WithVolumes("specimen1", "specimen2").
		WithoutParamFile("affine").
		WithoutForwardTransform("rigid", "specimen2").
		WithoutMetadata("deformable", "specimen1").
		WithoutVolumeDir("deformable", "specimen2").
		Build()

	tree := registration.NewTree(tr.Root)

	_, err := tree.ParamFile("affine")
	require.Error(t, err, "omitted parameter file should not resolve")

	require.NoFileExists(t, tree.ForwardTransform("rigid", "specimen2"))
	require.FileExists(t, tree.ForwardTransform("rigid", "specimen1"))

	require.NoFileExists(t, tree.MetadataPath("deformable", "specimen1"))
	require.NoDirExists(t, tree.VolumeDir("deformable", "specimen2"))
}

func TestTreeBuilder_MissingFixedVolResolvesButAbsent(t *testing.T) {
	tr := NewTree(t).WithMissingFixedVol("rigid", "specimen1").Build()

	tree := registration.NewTree(tr.Root)
	fixed, err := registration.FixedVolume(tree.MetadataPath("rigid", "specimen1"))
	require.NoError(t, err, "metadata still parses")
	require.NoFileExists(t, fixed)
}

func TestFakeRegistrationEngine_WritesTransform(t *testing.T) {
	outDir := t.TempDir()
	eng := &FakeRegistrationEngine{}

	err := eng.Register(context.Background(), engine.RegistrationRequest{
		Fixed:            "/target/ref.nrrd",
		Moving:           "/target/ref.nrrd",
		InitialTransform: "/reg/rigid/specimen1/TransformParameters.0.txt",
		OutDir:           outDir,
	})
	require.NoError(t, err)

	calls := eng.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, outDir, calls[0].OutDir)

	out := filepath.Join(outDir, engine.ForwardTransformName)
	require.FileExists(t, out)
}

func TestFakeTransformationEngine_OutputMatchesInputKind(t *testing.T) {
	volDir := t.TempDir()
	eng := &FakeTransformationEngine{}

	err := eng.Transform(context.Background(), engine.TransformRequest{
		InputVolume: "/labels/specimen1.nrrd",
		Transform:   "/inverted/rigid/specimen1/labelInvertedTransform.txt",
		OutDir:      volDir,
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(volDir, engine.ResultVolumeName))

	pointsDir := t.TempDir()
	err = eng.Transform(context.Background(), engine.TransformRequest{
		InputPoints: "/meshes/specimen1.vtk",
		Transform:   "/reg/rigid/specimen1/TransformParameters.0.txt",
		OutDir:      pointsDir,
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(pointsDir, engine.ResultPointsName))

	require.Len(t, eng.Calls(), 2)
}
