package engine

import (
	"context"
	"errors"
	"strconv"
)

// ErrAmbiguousInput reports a TransformRequest that does not name exactly
// one input artifact.
var ErrAmbiguousInput = errors.New("transform request needs exactly one of -in and -def")

// Compile-time check that Transformix implements TransformationEngine.
var _ TransformationEngine = (*Transformix)(nil)

// Transformix applies transforms through the transformix binary.
type Transformix struct {
	binary string
	opts   Options
}

// NewTransformix creates a Transformix wrapper. An empty binary falls back
// to "transformix" on PATH.
func NewTransformix(binary string, opts Options) *Transformix {
	if binary == "" {
		binary = "transformix"
	}
	return &Transformix{binary: binary, opts: opts}
}

func (t *Transformix) Transform(ctx context.Context, req TransformRequest) error {
	args, err := transformArgs(req)
	if err != nil {
		return err
	}

	stop := watchActivity(t.opts, req.OutDir)
	defer stop()

	return run(ctx, t.binary, args)
}

func transformArgs(req TransformRequest) ([]string, error) {
	if (req.InputVolume == "") == (req.InputPoints == "") {
		return nil, ErrAmbiguousInput
	}

	var args []string
	if req.InputVolume != "" {
		args = append(args, "-in", req.InputVolume)
	} else {
		args = append(args, "-def", req.InputPoints)
	}
	args = append(args,
		"-tp", req.Transform,
		"-out", req.OutDir,
	)
	if req.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(req.Threads))
	}
	return args, nil
}
