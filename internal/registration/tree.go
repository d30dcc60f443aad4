package registration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ParamFilePrefix marks a stage's registration parameter file.
	ParamFilePrefix = "elastix_params_"
	// ForwardTransformName is the transform the registration engine writes
	// after a successful stage.
	ForwardTransformName = "TransformParameters.0.txt"
	// MetadataFileName is the per-volume registration metadata document.
	MetadataFileName = "reg_metadata.yaml"
)

// Tree navigates a forward registration output tree. Layout:
//
//	<root>/<stage>/<volume>/TransformParameters.0.txt
//	<root>/<stage>/<volume>/reg_metadata.yaml
//	<root>/<stage>/elastix_params_*  (one per stage)
type Tree struct {
	Root string
}

func NewTree(root string) *Tree {
	return &Tree{Root: root}
}

func (t *Tree) StageDir(stage string) string {
	return filepath.Join(t.Root, stage)
}

func (t *Tree) VolumeDir(stage, volume string) string {
	return filepath.Join(t.Root, stage, volume)
}

func (t *Tree) ForwardTransform(stage, volume string) string {
	return filepath.Join(t.Root, stage, volume, ForwardTransformName)
}

func (t *Tree) MetadataPath(stage, volume string) string {
	return filepath.Join(t.Root, stage, volume, MetadataFileName)
}

// Volumes returns the volume directory names under the given stage in
// lexical order. Plain files in the stage directory are not volumes.
func (t *Tree) Volumes(stage string) ([]string, error) {
	dir := t.StageDir(stage)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list volumes in %s: %w", dir, err)
	}

	var volumes []string
	for _, entry := range entries {
		if entry.IsDir() {
			volumes = append(volumes, entry.Name())
		}
	}
	return volumes, nil
}

// ParamFile returns the stage's registration parameter file: the first
// entry of the stage directory whose name starts with ParamFilePrefix.
func (t *Tree) ParamFile(stage string) (string, error) {
	dir := t.StageDir(stage)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), ParamFilePrefix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no %s* parameter file in %s", ParamFilePrefix, dir)
}
