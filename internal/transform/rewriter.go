package transform

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sergi/go-diff/diffmatchpatch"

	"invertix/internal/log"
	"invertix/internal/paths"
)

// InversionMetric replaces whatever similarity metric drove the forward
// registration. It makes the engine search for the deformation that undoes
// the initial transform, which is exactly the inverse we want.
const InversionMetric = "DisplacementMagnitudePenalty"

// Keys the rewriter forces on every pass, independent of the caller's
// substitution table.
const (
	metricKey              = "Metric"
	writeResultImageKey    = "WriteResultImage"
	writeResultPerResKey   = "WriteResultImageAfterEachResolution"
	writeResultImageForced = "false"
)

// Substitutions maps parameter keys to replacement values. Values are given
// unquoted; quoting is decided at write time (integers bare, strings quoted).
type Substitutions map[string]string

// ImageSubstitutions returns the replacement table for continuous image
// outputs: cubic interpolation and float pixel types.
func ImageSubstitutions() Substitutions {
	return Substitutions{
		"FinalBSplineInterpolationOrder": "3",
		"FixedInternalImagePixelType":    "float",
		"MovingInternalImagePixelType":   "float",
		"ResultImagePixelType":           "float",
	}
}

// LabelSubstitutions returns the replacement table for label outputs:
// nearest-neighbor interpolation and integer-preserving pixel types, so
// label identities survive resampling.
func LabelSubstitutions() Substitutions {
	return Substitutions{
		"FinalBSplineInterpolationOrder": "0",
		"FixedInternalImagePixelType":    "short",
		"MovingInternalImagePixelType":   "short",
		"ResultImagePixelType":           "unsigned char",
		"ResampleInterpolator":           "FinalNearestNeighborInterpolator",
	}
}

var diffLogging atomic.Bool

// SetDiffLogging toggles debug logging of a diff for every rewrite.
// Off by default; enabled via the rewrite-diff feature flag.
func SetDiffLogging(enabled bool) {
	diffLogging.Store(enabled)
}

// RewriteParameters reads the parameter file at src, applies the forced
// inversion fields plus the given substitutions, and writes the result to
// dst atomically. Unmatched lines are preserved byte-for-byte.
func RewriteParameters(src, dst string, subs Substitutions) error {
	data, err := os.ReadFile(src) //nolint:gosec // G304: paths come from the discovered registration tree
	if err != nil {
		return fmt.Errorf("reading parameter file %s: %w", src, err)
	}

	rewritten := RewriteParameterText(string(data), subs)

	if diffLogging.Load() {
		log.Debug(log.CatRewrite, "Parameter rewrite", "src", src, "dst", dst,
			"diff", diffSummary(string(data), rewritten))
	}

	if err := paths.WriteFileAtomic(dst, []byte(rewritten), 0644); err != nil {
		return fmt.Errorf("writing rewritten parameters: %w", err)
	}
	return nil
}

// RewriteParameterText is the pure core of RewriteParameters, exposed for
// property tests and diff logging.
func RewriteParameterText(text string, subs Substitutions) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		record, ok := ParseLine(line)
		if !ok {
			out = append(out, line)
			continue
		}

		switch record.Key {
		case metricKey:
			out = append(out, formatRecord(metricKey, InversionMetric))
		case writeResultImageKey:
			out = append(out, formatRecord(writeResultImageKey, writeResultImageForced))
		case writeResultPerResKey:
			// Intermediate resolution images are useless for inversion
			continue
		default:
			if replacement, found := subs[record.Key]; found {
				out = append(out, formatRecord(record.Key, replacement))
			} else {
				out = append(out, line)
			}
		}
	}

	return strings.Join(out, "\n")
}

// formatRecord renders a rewritten parameter line. Integer replacement
// values stay bare; everything else is quoted as a string literal.
func formatRecord(key, value string) string {
	if _, err := strconv.Atoi(value); err == nil {
		return fmt.Sprintf("(%s %s)", key, value)
	}
	return fmt.Sprintf("(%s %q)", key, value)
}

// diffSummary renders the changed segments of a rewrite as one log-friendly
// line. Equal segments are elided.
func diffSummary(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, " -%q", text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, " +%q", text)
		case diffmatchpatch.DiffEqual:
			// Elided
		}
	}
	if b.Len() == 0 {
		return "no changes"
	}
	return strings.TrimSpace(b.String())
}
