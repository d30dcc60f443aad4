package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"invertix/internal/engine"
)

// InverseTransformTemplate is the transform content a successful scripted
// registration writes. The initial transform slot carries whatever the
// request passed, the way the real engine records its -t0 argument.
const InverseTransformTemplate = `(Transform "BSplineTransform")
(NumberOfParameters 96)
(TransformParameters 0.11 -0.08 0.02 0.4 -0.3 0.07)
(InitialTransformParametersFileName "%s")
(HowToCombineTransforms "Compose")
(Metric "DisplacementMagnitudePenalty")
(FixedInternalImagePixelType "float")
(MovingInternalImagePixelType "float")
(ResultImagePixelType "float")
(ResampleInterpolator "FinalBSplineInterpolator")
(FinalBSplineInterpolationOrder 3)
`

// Compile-time checks that the fakes satisfy the engine interfaces.
var (
	_ engine.RegistrationEngine   = (*FakeRegistrationEngine)(nil)
	_ engine.TransformationEngine = (*FakeTransformationEngine)(nil)
)

// FakeRegistrationEngine scripts registration runs. A successful call
// writes the standard output transform into the request's OutDir.
type FakeRegistrationEngine struct {
	// FailOn, when set, is consulted per request; a non-nil return fails
	// the call before any output is written.
	FailOn func(req engine.RegistrationRequest) error
	// Output overrides the transform content written on success.
	Output string

	mu    sync.Mutex
	calls []engine.RegistrationRequest
}

// Register records the request and writes the scripted output.
func (f *FakeRegistrationEngine) Register(ctx context.Context, req engine.RegistrationRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailOn != nil {
		if err := f.FailOn(req); err != nil {
			return err
		}
	}

	content := f.Output
	if content == "" {
		content = fmt.Sprintf(InverseTransformTemplate, req.InitialTransform)
	}
	out := filepath.Join(req.OutDir, engine.ForwardTransformName)
	return os.WriteFile(out, []byte(content), 0644)
}

// Calls returns a copy of every recorded request.
func (f *FakeRegistrationEngine) Calls() []engine.RegistrationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.RegistrationRequest(nil), f.calls...)
}

// FakeTransformationEngine scripts transform applications. A successful
// call writes result.nrrd for volume inputs or outputpoints.vtk for point
// inputs, mirroring the real engine's outputs.
type FakeTransformationEngine struct {
	// FailOn, when set, is consulted per request; a non-nil return fails
	// the call before any output is written.
	FailOn func(req engine.TransformRequest) error

	mu    sync.Mutex
	calls []engine.TransformRequest
}

// Transform records the request and writes the scripted output.
func (f *FakeTransformationEngine) Transform(ctx context.Context, req engine.TransformRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailOn != nil {
		if err := f.FailOn(req); err != nil {
			return err
		}
	}

	name := engine.ResultVolumeName
	content := "nrrd-result\n"
	if req.InputPoints != "" {
		name = engine.ResultPointsName
		content = "# vtk DataFile Version 3.0\nwarped points\n"
	}
	return os.WriteFile(filepath.Join(req.OutDir, name), []byte(content), 0644)
}

// Calls returns a copy of every recorded request.
func (f *FakeTransformationEngine) Calls() []engine.TransformRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.TransformRequest(nil), f.calls...)
}
