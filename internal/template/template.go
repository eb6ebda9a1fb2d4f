// Package template implements the "{{var}}" / "{{var | default}}"
// substitution engine used to resolve prompt and config templates
// (spec §4.14). It is not reentrant: a resolved value's contents are
// never re-scanned for markers.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
)

const maxValueLength = 100 * 1024 // 100 KiB

// markerPattern captures the identifier and optional default:
// {{ name }} or {{ name | default }}. Whitespace/tabs/newlines around
// the name and pipe are trimmed by the capture groups' \s* escapes.
var markerPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|\s*([^}]*?)\s*)?\}\}`)

// Resolve substitutes every "{{name}}"/"{{name|default}}" marker in s
// using vars. A missing variable with no default fails with
// apperr.InvalidArgument naming the variable and the available ones.
func Resolve(s string, vars map[string]any) (string, error) {
	var firstErr error
	result := markerPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := markerPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := strings.Contains(match, "|")
		defaultVal := sub[2]

		val, present := vars[name]
		if !present {
			if hasDefault {
				return defaultVal
			}
			firstErr = missingVarError(name, vars)
			return match
		}

		str, err := stringify(val)
		if err != nil {
			firstErr = err
			return match
		}
		if len(str) > maxValueLength {
			firstErr = apperr.New(apperr.InvalidArgument, fmt.Sprintf("value for %q exceeds maximum length", name))
			return match
		}
		return str
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func missingVarError(name string, vars map[string]any) error {
	available := make([]string, 0, len(vars))
	for k := range vars {
		available = append(available, k)
	}
	return apperr.New(apperr.InvalidArgument,
		fmt.Sprintf("variable %q not found; available variables: %s", name, strings.Join(available, ", ")))
}

// stringify converts a resolved value to its string form. Only
// primitive types (string, int-ish, float, bool) and nil are supported;
// anything else is rejected as unsupported-type.
func stringify(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", apperr.New(apperr.InvalidArgument, fmt.Sprintf("unsupported value type %T", val))
	}
}

// ResolveObject recursively descends maps and sequences, resolving any
// string leaf as a template and passing non-string leaves through
// unchanged. Resolution happens once: a value produced by resolution is
// never re-walked, so calling ResolveObject again on the result is a
// no-op (idempotent, spec §8).
func ResolveObject(obj any, vars map[string]any) (any, error) {
	switch v := obj.(type) {
	case string:
		return Resolve(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			resolved, err := ResolveObject(val, vars)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			resolved, err := ResolveObject(val, vars)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
