// Package engine wraps the external registration and transformation
// binaries behind executor interfaces so the pipeline can be driven by
// scripted fakes in tests.
package engine

import (
	"context"

	"invertix/internal/pubsub"
)

// Fixed names the engines write into their -out directory.
const (
	// ResultVolumeName is the resampled volume the transformation engine
	// writes for image and label inputs.
	ResultVolumeName = "result.nrrd"
	// ResultPointsName is the warped point set the transformation engine
	// writes for mesh inputs.
	ResultPointsName = "outputpoints.vtk"
	// ForwardTransformName is the transform file the registration engine
	// writes after a successful run.
	ForwardTransformName = "TransformParameters.0.txt"
)

// RegistrationRequest describes one registration engine invocation.
type RegistrationRequest struct {
	Fixed            string // -fixed
	Moving           string // -moving
	InitialTransform string // -t0, omitted when empty
	ParamFile        string // -p
	OutDir           string // -out
	Threads          int    // -threads, omitted when zero
}

// RegistrationEngine runs a registration. A nil error means the engine
// exited zero; outputs are whatever it wrote into OutDir.
type RegistrationEngine interface {
	Register(ctx context.Context, req RegistrationRequest) error
}

// TransformRequest describes one transformation engine invocation. Exactly
// one of InputVolume and InputPoints must be set.
type TransformRequest struct {
	InputVolume string // -in, image and label volumes
	InputPoints string // -def, mesh point sets
	Transform   string // -tp
	OutDir      string // -out
	Threads     int    // -threads, omitted when zero
}

// TransformationEngine applies a transform to an artifact.
type TransformationEngine interface {
	Transform(ctx context.Context, req TransformRequest) error
}

// Options configure the real engine wrappers.
type Options struct {
	// Events receives heartbeat events while a subprocess runs, when Watch
	// is set. Nil disables heartbeats regardless of Watch.
	Events *pubsub.Broker[pubsub.Progress]
	Watch  bool
}
