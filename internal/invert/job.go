// Package invert builds and runs the inversion pipeline: one job per
// stage/volume pair, fanned out over a bounded worker pool, producing the
// inverted transform tree and its order config.
package invert

import "path/filepath"

const (
	// ImageTransformName is the image-typed inverted transform a job writes.
	ImageTransformName = "ImageInvertedTransform.txt"
	// LabelTransformName is the label-typed inverted transform a job writes.
	LabelTransformName = "labelInvertedTransform.txt"
	// InversionParamsName is the rewritten parameter file a job feeds to the
	// registration engine.
	InversionParamsName = "inversion_parameters.txt"
)

// Job is one stage/volume inversion unit. All paths are absolute by the
// time a job is built.
type Job struct {
	Stage  string
	Volume string

	// ForwardTransform is the forward tree's transform for this pair; the
	// engine inverts it by registering the fixed volume onto itself with
	// this as the initial transform.
	ForwardTransform string
	// StageParams is the stage's forward registration parameter file.
	StageParams string
	// FixedVol is the original fixed volume from the pair's metadata.
	FixedVol string
	// OutDir is the job's directory in the inverted tree.
	OutDir string
}

// Name identifies the job in logs and errors.
func (j Job) Name() string {
	return j.Stage + "/" + j.Volume
}

// ImageTransform is the job's image-typed output path.
func (j Job) ImageTransform() string {
	return filepath.Join(j.OutDir, ImageTransformName)
}

// LabelTransform is the job's label-typed output path.
func (j Job) LabelTransform() string {
	return filepath.Join(j.OutDir, LabelTransformName)
}

// InversionParams is the job's rewritten parameter file path.
func (j Job) InversionParams() string {
	return filepath.Join(j.OutDir, InversionParamsName)
}
