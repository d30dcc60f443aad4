package engine

import (
	"context"
	"strconv"
)

// Compile-time check that Elastix implements RegistrationEngine.
var _ RegistrationEngine = (*Elastix)(nil)

// Elastix runs registrations through the elastix binary.
type Elastix struct {
	binary string
	opts   Options
}

// NewElastix creates an Elastix wrapper. An empty binary falls back to
// "elastix" on PATH.
func NewElastix(binary string, opts Options) *Elastix {
	if binary == "" {
		binary = "elastix"
	}
	return &Elastix{binary: binary, opts: opts}
}

func (e *Elastix) Register(ctx context.Context, req RegistrationRequest) error {
	stop := watchActivity(e.opts, req.OutDir)
	defer stop()

	return run(ctx, e.binary, registrationArgs(req))
}

func registrationArgs(req RegistrationRequest) []string {
	args := []string{
		"-fixed", req.Fixed,
		"-moving", req.Moving,
	}
	if req.InitialTransform != "" {
		args = append(args, "-t0", req.InitialTransform)
	}
	args = append(args,
		"-p", req.ParamFile,
		"-out", req.OutDir,
	)
	if req.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(req.Threads))
	}
	return args
}
