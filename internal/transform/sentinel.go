package transform

import (
	"fmt"
	"os"
	"strings"

	"invertix/internal/paths"
)

// SentinelNoInitialTransform is the value that severs a transform's
// back-reference to its predecessor. With the reference gone, each stage's
// inverted transform stands alone and chains are composed explicitly by the
// application engine instead of implicitly by the external engine.
const SentinelNoInitialTransform = "NoInitialTransform"

const initialTransformKey = "InitialTransformParametersFileName"

// SeverInitialTransform rewrites the InitialTransformParametersFileName
// field of the transform file at src to the sentinel, leaving every other
// line byte-identical. The result is written to dst, or to a scratch
// temporary next to src when dst is empty. Returns the path written.
// Applying it to an already severed file is a no-op rewrite.
func SeverInitialTransform(src, dst string) (string, error) {
	data, err := os.ReadFile(src) //nolint:gosec // G304: paths come from engine output directories
	if err != nil {
		return "", fmt.Errorf("reading transform file %s: %w", src, err)
	}

	severed := SeverInitialTransformText(string(data))

	if dst == "" {
		tmp, err := os.CreateTemp(os.TempDir(), "severed-*.txt")
		if err != nil {
			return "", fmt.Errorf("creating scratch transform file: %w", err)
		}
		dst = tmp.Name()
		if err := tmp.Close(); err != nil {
			return "", fmt.Errorf("closing scratch transform file: %w", err)
		}
	}

	if err := paths.WriteFileAtomic(dst, []byte(severed), 0644); err != nil {
		return "", fmt.Errorf("writing severed transform: %w", err)
	}
	return dst, nil
}

// SeverInitialTransformText is the pure core of SeverInitialTransform.
func SeverInitialTransformText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		record, ok := ParseLine(line)
		if ok && record.Key == initialTransformKey {
			out = append(out, formatRecord(initialTransformKey, SentinelNoInitialTransform))
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}
