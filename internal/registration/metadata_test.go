package registration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedVolume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("fixed_vol: ../../target/fixed.nrrd\n"), 0644))

	got, err := FixedVolume(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(filepath.Join(dir, "..", "..", "target", "fixed.nrrd")), got)
}

func TestFixedVolume_Absolute(t *testing.T) {
	dir := t.TempDir()
	fixed := filepath.Join(dir, "fixed.nrrd")
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("fixed_vol: "+fixed+"\n"), 0644))

	got, err := FixedVolume(path)
	require.NoError(t, err)
	require.Equal(t, fixed, got)
}

func TestFixedVolume_MissingKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("pairwise_registration: false\n"), 0644))

	_, err := FixedVolume(path)
	require.ErrorContains(t, err, "fixed_vol")
}

func TestFixedVolume_MissingFile(t *testing.T) {
	_, err := FixedVolume(filepath.Join(t.TempDir(), MetadataFileName))
	require.Error(t, err)
}

func TestFixedVolumes_CachesAcrossReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("fixed_vol: fixed.nrrd\n"), 0644))

	fixedVols := NewFixedVolumes()

	first, err := fixedVols.Get(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "fixed.nrrd"), first)

	// A second lookup is served from cache even after the file changes.
	require.NoError(t, os.WriteFile(path, []byte("fixed_vol: other.nrrd\n"), 0644))

	second, err := fixedVols.Get(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFixedVolumes_PropagatesLoadError(t *testing.T) {
	fixedVols := NewFixedVolumes()

	_, err := fixedVols.Get(context.Background(), filepath.Join(t.TempDir(), MetadataFileName))
	require.Error(t, err)
}
