// Package transform edits elastix parameter and transform files while
// preserving their line structure. Only recognized fields are rewritten;
// every other line passes through byte-identical.
package transform

import "strings"

// Record is one parsed parameter line of the form "(Key Value...)".
// Values holds the raw text between the key and the closing paren, with
// surrounding whitespace trimmed but quoting untouched.
type Record struct {
	Key    string
	Values string
}

// ParseLine parses a single line into a Record. ok is false for blank
// lines, comments, and anything else that is not a "(Key ...)" record.
func ParseLine(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "(") {
		return Record{}, false
	}
	end := strings.LastIndex(trimmed, ")")
	if end < 0 {
		return Record{}, false
	}
	inner := strings.TrimSpace(trimmed[1:end])
	if inner == "" {
		return Record{}, false
	}

	key := inner
	values := ""
	if i := strings.IndexAny(inner, " \t"); i >= 0 {
		key = inner[:i]
		values = strings.TrimSpace(inner[i+1:])
	}
	return Record{Key: key, Values: values}, true
}

// Unquote strips one pair of surrounding double quotes from a value, if
// present. Parameter files quote string literals but not numbers.
func Unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}
