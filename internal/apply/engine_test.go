package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"invertix/internal/engine"
	"invertix/internal/invert"
	"invertix/internal/ledger"
	"invertix/internal/pubsub"
	"invertix/internal/testutil"
)

// buildInvertedTree runs the inversion pipeline over a fixture tree so
// application tests chain real severed transforms.
func buildInvertedTree(t *testing.T, tr testutil.Tree) *invert.OrderConfig {
	t.Helper()
	outDir := filepath.Join(t.TempDir(), "inverted")

	_, err := invert.Run(context.Background(), tr.LoadConfig(t), invert.RunConfig{
		Engine: &testutil.FakeRegistrationEngine{},
		OutDir: outDir,
	})
	require.NoError(t, err)

	order, err := invert.LoadOrderConfig(filepath.Join(outDir, invert.OrderConfigName))
	require.NoError(t, err)
	return order
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("artifact-stub\n"), 0644))
	return path
}

func TestEngine_LabelChainWalksInversionOrder(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine", "deformable").Build()
	order := buildInvertedTree(t, tr)
	require.Equal(t, []string{"deformable", "affine", "rigid"}, order.InversionOrder)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	outDir := filepath.Join(t.TempDir(), "applied")
	exec := &testutil.FakeTransformationEngine{}

	eng := NewEngine(order, exec, Options{})
	finalDir, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "rigid", "specimen1"), finalDir)

	calls := exec.Calls()
	require.Len(t, calls, 3)

	// Stage order is the inversion order, strictly sequential.
	for i, stage := range []string{"deformable", "affine", "rigid"} {
		require.Equal(t,
			filepath.Join(order.TreeRoot(), stage, "specimen1", invert.LabelTransformName),
			calls[i].Transform)
		require.Empty(t, calls[i].InputPoints)
	}

	// Each stage's canonical output feeds the next stage.
	require.Equal(t, artifact, calls[0].InputVolume)
	require.Equal(t, filepath.Join(outDir, "deformable", "specimen1", "specimen1.nrrd"), calls[1].InputVolume)
	require.Equal(t, filepath.Join(outDir, "affine", "specimen1", "specimen1.nrrd"), calls[2].InputVolume)

	// Fixed-named engine outputs were promoted to the artifact's name.
	for _, stage := range order.InversionOrder {
		stageDir := filepath.Join(outDir, stage, "specimen1")
		require.FileExists(t, filepath.Join(stageDir, "specimen1.nrrd"))
		require.NoFileExists(t, filepath.Join(stageDir, engine.ResultVolumeName))
	}
}

func TestEngine_ImageChainSelectsImageTransforms(t *testing.T) {
	tr := testutil.NewTree(t).Build()
	order := buildInvertedTree(t, tr)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	exec := &testutil.FakeTransformationEngine{}

	eng := NewEngine(order, exec, Options{})
	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantImage,
		OutDir:   filepath.Join(t.TempDir(), "applied"),
	})
	require.NoError(t, err)

	for _, call := range exec.Calls() {
		require.Equal(t, invert.ImageTransformName, filepath.Base(call.Transform))
	}
}

func TestEngine_MeshChainReadsForwardTreeOnly(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.vtk")
	outDir := filepath.Join(t.TempDir(), "applied")
	exec := &testutil.FakeTransformationEngine{}

	eng := NewEngine(order, exec, Options{})
	finalDir, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantMesh,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "rigid", "specimen1"), finalDir)

	calls := exec.Calls()
	require.Len(t, calls, 2)

	for i, stage := range []string{"affine", "rigid"} {
		want := filepath.Join(order.ForwardRoot(), stage, "specimen1", "TransformParameters.0.txt")
		require.Equal(t, want, calls[i].Transform)
		require.False(t, strings.HasPrefix(calls[i].Transform, order.TreeRoot()),
			"mesh chains must never read the inverted tree")
		require.Empty(t, calls[i].InputVolume)
		require.NotEmpty(t, calls[i].InputPoints)
	}

	// Point outputs are promoted under the mesh's name.
	require.FileExists(t, filepath.Join(outDir, "rigid", "specimen1", "specimen1.vtk"))
}

func TestEngine_NoClobberSkipsExistingStageDir(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	outDir := filepath.Join(t.TempDir(), "applied")

	// First stage in inversion order is already on disk.
	writeArtifact(t, filepath.Join(outDir, "affine", "specimen1"), "specimen1.nrrd")

	exec := &testutil.FakeTransformationEngine{}
	eng := NewEngine(order, exec, Options{NoClobber: true})

	finalDir, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "rigid", "specimen1"), finalDir)

	calls := exec.Calls()
	require.Len(t, calls, 1, "existing stage output is not recomputed")
	require.Equal(t, filepath.Join(outDir, "rigid", "specimen1"), calls[0].OutDir)
	require.Equal(t, filepath.Join(outDir, "affine", "specimen1", "specimen1.nrrd"),
		calls[0].InputVolume, "skipped stage output still feeds the next stage")
}

func TestEngine_StrictRecomputesUnverifiedStage(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)
	led := testutil.NewTestLedger(t)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	outDir := filepath.Join(t.TempDir(), "applied")
	writeArtifact(t, filepath.Join(outDir, "affine", "specimen1"), "specimen1.nrrd")

	exec := &testutil.FakeTransformationEngine{}
	eng := NewEngine(order, exec, Options{NoClobber: true, Strict: true, Ledger: led})

	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Len(t, exec.Calls(), 2, "unverified stage output is recomputed")
}

func TestEngine_StrictHonorsLedgerRecord(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)
	led := testutil.NewTestLedger(t)

	outDir := filepath.Join(t.TempDir(), "applied")
	stageOut := filepath.Join(outDir, "affine", "specimen1")
	writeArtifact(t, stageOut, "specimen1.nrrd")

	require.NoError(t, led.StartRun("run-0", "labelmap", "", "", outDir))
	require.NoError(t, led.RecordStage("run-0", "affine", "specimen1", string(VariantLabelmap), stageOut, ledger.StatusCompleted, nil))

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	exec := &testutil.FakeTransformationEngine{}
	eng := NewEngine(order, exec, Options{NoClobber: true, Strict: true, Ledger: led})

	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Len(t, exec.Calls(), 1, "verified stage output is trusted")
}

func TestEngine_StageFailureAbortsVolumeChain(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine", "deformable").Build()
	order := buildInvertedTree(t, tr)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	outDir := filepath.Join(t.TempDir(), "applied")

	bad := errors.New("transformix failed: exit status 1")
	exec := &testutil.FakeTransformationEngine{
		FailOn: func(req engine.TransformRequest) error {
			if strings.Contains(req.Transform, string(filepath.Separator)+"affine"+string(filepath.Separator)) {
				return bad
			}
			return nil
		},
	}

	eng := NewEngine(order, exec, Options{})
	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.ErrorIs(t, err, bad)

	require.Len(t, exec.Calls(), 2, "no stage runs after the failure")
	require.NoDirExists(t, filepath.Join(outDir, "rigid", "specimen1"),
		"later stages must not leave outputs")
}

func TestEngine_UnknownVariant(t *testing.T) {
	tr := testutil.NewTree(t).Build()
	order := buildInvertedTree(t, tr)

	eng := NewEngine(order, &testutil.FakeTransformationEngine{}, Options{})
	_, err := eng.Apply(context.Background(), Request{
		Artifact: "specimen1.nrrd",
		Variant:  Variant("pointcloud"),
	})
	require.ErrorIs(t, err, ErrUnknownVariant)

	_, err = eng.ApplyPath(context.Background(), Request{
		Artifact: "specimen1.nrrd",
		Variant:  Variant("pointcloud"),
	})
	require.ErrorIs(t, err, ErrUnknownVariant)
}

func TestEngine_RecordsStagesInLedger(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)
	led := testutil.NewTestLedger(t)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	eng := NewEngine(order, &testutil.FakeTransformationEngine{}, Options{Ledger: led, RunID: "run-7"})

	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   filepath.Join(t.TempDir(), "applied"),
	})
	require.NoError(t, err)

	for _, stage := range []string{"affine", "rigid"} {
		ok, err := led.HasCompletedStage(stage, "specimen1", string(VariantLabelmap))
		require.NoError(t, err)
		require.True(t, ok, "stage %s should verify", stage)
	}
}

func TestEngine_PublishesStageEvents(t *testing.T) {
	tr := testutil.NewTree(t).WithStages("rigid", "affine").Build()
	order := buildInvertedTree(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := pubsub.NewBroker[pubsub.Progress]()
	defer broker.Close()
	events := broker.Subscribe(ctx)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	eng := NewEngine(order, &testutil.FakeTransformationEngine{}, Options{Events: broker})

	_, err := eng.Apply(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   filepath.Join(t.TempDir(), "applied"),
	})
	require.NoError(t, err)

	applied := 0
drain:
	for {
		select {
		case evt := <-events:
			if evt.Type == pubsub.StageAppliedEvent {
				applied++
				require.Equal(t, string(VariantLabelmap), evt.Payload.Detail)
				require.Equal(t, 2, evt.Payload.Total)
			}
		default:
			break drain
		}
	}
	require.Equal(t, 2, applied)
}

func TestEngine_ApplyPathChainsMatchingDirectoryEntries(t *testing.T) {
	tr := testutil.NewTree(t).WithVolumes("specimen1", "specimen2").Build()
	order := buildInvertedTree(t, tr)

	artifactDir := t.TempDir()
	writeArtifact(t, artifactDir, "specimen1.nrrd")
	writeArtifact(t, artifactDir, "specimen2.nrrd")
	writeArtifact(t, artifactDir, "notes.txt") // no matching tree volume
	writeArtifact(t, artifactDir, ".specimen1.nrrd.tmp-1")

	outDir := filepath.Join(t.TempDir(), "applied")
	exec := &testutil.FakeTransformationEngine{}
	eng := NewEngine(order, exec, Options{})

	finals, err := eng.ApplyPath(context.Background(), Request{
		Artifact: artifactDir,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"specimen1": filepath.Join(outDir, "rigid", "specimen1"),
		"specimen2": filepath.Join(outDir, "rigid", "specimen2"),
	}, finals)

	// Two volumes times two stages.
	require.Len(t, exec.Calls(), 4)
}

func TestEngine_ApplyPathSingleFile(t *testing.T) {
	tr := testutil.NewTree(t).Build()
	order := buildInvertedTree(t, tr)

	artifact := writeArtifact(t, t.TempDir(), "specimen1.nrrd")
	outDir := filepath.Join(t.TempDir(), "applied")
	eng := NewEngine(order, &testutil.FakeTransformationEngine{}, Options{})

	finals, err := eng.ApplyPath(context.Background(), Request{
		Artifact: artifact,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"specimen1": filepath.Join(outDir, "rigid", "specimen1")}, finals)
}

func TestEngine_ApplyPathVolumeFailuresAreIsolated(t *testing.T) {
	tr := testutil.NewTree(t).WithVolumes("specimen1", "specimen2").Build()
	order := buildInvertedTree(t, tr)

	artifactDir := t.TempDir()
	writeArtifact(t, artifactDir, "specimen1.nrrd")
	writeArtifact(t, artifactDir, "specimen2.nrrd")

	exec := &testutil.FakeTransformationEngine{
		FailOn: func(req engine.TransformRequest) error {
			if strings.Contains(req.InputVolume, "specimen1") {
				return errors.New("transformix failed: exit status 1")
			}
			return nil
		},
	}

	outDir := filepath.Join(t.TempDir(), "applied")
	eng := NewEngine(order, exec, Options{})

	finals, err := eng.ApplyPath(context.Background(), Request{
		Artifact: artifactDir,
		Variant:  VariantLabelmap,
		OutDir:   outDir,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 2 artifact chains failed")
	require.Equal(t, map[string]string{"specimen2": filepath.Join(outDir, "rigid", "specimen2")}, finals,
		"surviving chains still land")
}

func TestEngine_ApplyPathMeshFailureAbortsRun(t *testing.T) {
	tr := testutil.NewTree(t).WithVolumes("specimen1", "specimen2").Build()
	order := buildInvertedTree(t, tr)

	artifactDir := t.TempDir()
	writeArtifact(t, artifactDir, "specimen1.vtk")
	writeArtifact(t, artifactDir, "specimen2.vtk")

	bad := errors.New("transformix failed: exit status 1")
	exec := &testutil.FakeTransformationEngine{
		FailOn: func(engine.TransformRequest) error { return bad },
	}

	eng := NewEngine(order, exec, Options{})
	_, err := eng.ApplyPath(context.Background(), Request{
		Artifact: artifactDir,
		Variant:  VariantMesh,
		OutDir:   filepath.Join(t.TempDir(), "applied"),
	})
	require.ErrorIs(t, err, bad)
	require.Len(t, exec.Calls(), 1, "a mesh failure stops the whole run")
}

func TestEngine_ApplyPathRejectsUnmatchedDirectory(t *testing.T) {
	tr := testutil.NewTree(t).Build()
	order := buildInvertedTree(t, tr)

	artifactDir := t.TempDir()
	writeArtifact(t, artifactDir, "unknown_volume.nrrd")

	eng := NewEngine(order, &testutil.FakeTransformationEngine{}, Options{})
	_, err := eng.ApplyPath(context.Background(), Request{
		Artifact: artifactDir,
		Variant:  VariantLabelmap,
		OutDir:   filepath.Join(t.TempDir(), "applied"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "match tree volumes")
}
