// Package apply walks an inverted transform chain over one artifact,
// invoking the transformation engine once per stage with strict stage
// ordering.
package apply

import (
	"errors"
	"fmt"

	"invertix/internal/engine"
	"invertix/internal/invert"
	"invertix/internal/registration"
)

// ErrUnknownVariant is returned for an artifact variant outside the table.
var ErrUnknownVariant = errors.New("unknown artifact variant")

// Variant selects the transform flavor and engine invocation shape for an
// artifact kind.
type Variant string

const (
	// VariantLabelmap resamples a label volume with nearest-neighbor
	// transforms.
	VariantLabelmap Variant = "labelmap"
	// VariantImage resamples an intensity volume with cubic transforms.
	VariantImage Variant = "image"
	// VariantMesh warps a point set. The engine can only push points
	// through a forward transform, so mesh chains read the forward tree.
	VariantMesh Variant = "mesh"
	// VariantROI runs the label-typed chain; the final directory is handed
	// to the padding-compensation step downstream.
	VariantROI Variant = "roi"
)

// variantSpec fixes a variant's per-stage transform file, input shape,
// engine output name, and failure scope.
type variantSpec struct {
	transformName string
	usesForward   bool
	pointsInput   bool
	resultName    string
	abortsRun     bool
}

var variantTable = map[Variant]variantSpec{
	VariantLabelmap: {
		transformName: invert.LabelTransformName,
		resultName:    engine.ResultVolumeName,
	},
	VariantImage: {
		transformName: invert.ImageTransformName,
		resultName:    engine.ResultVolumeName,
	},
	VariantMesh: {
		transformName: registration.ForwardTransformName,
		usesForward:   true,
		pointsInput:   true,
		resultName:    engine.ResultPointsName,
		abortsRun:     true,
	},
	VariantROI: {
		transformName: invert.LabelTransformName,
		resultName:    engine.ResultVolumeName,
	},
}

func lookupVariant(v Variant) (variantSpec, error) {
	spec, ok := variantTable[v]
	if !ok {
		return variantSpec{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return spec, nil
}
