package registration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
stages:
  - rigid
  - affine
  - deformable
registration_directory: output/registrations
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, []string{"rigid", "affine", "deformable"}, cfg.Stages)
	require.Equal(t, "rigid", cfg.FirstStage())
	require.Equal(t, filepath.Join(dir, "output", "registrations"), cfg.Root())
}

func TestLoadConfig_AbsoluteRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "regs")
	path := writeConfig(t, dir, `
stages: [rigid]
registration_directory: `+root+`
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, root, cfg.Root())
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "stages: [unclosed")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_NoStages(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "registration_directory: regs\n")
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "no stages")
}

func TestLoadConfig_NoRoot(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "stages: [rigid]\n")
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "registration_directory")
}
