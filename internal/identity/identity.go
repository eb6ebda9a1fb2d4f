// Package identity implements the pure identifier-parsing and path-safety
// primitives used at every boundary that accepts an external name: model
// identifiers, dataset filenames, and registry lookups (spec §4.1).
package identity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
)

// quantizationPattern matches an uppercase-letters/digits/underscores
// token of length <= 16, e.g. "Q4_K_M".
var quantizationPattern = regexp.MustCompile(`^[A-Z0-9_]{1,16}$`)

// ParseIdentifier splits a wire-form model identifier "<id>:<quant>" on
// its last colon. If the suffix looks like a quantization token it is
// returned separately; otherwise the whole string is returned as the
// base id with no quantization.
func ParseIdentifier(s string) (baseID string, quantization string, hasQuant bool) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, "", false
	}
	suffix := s[idx+1:]
	if quantizationPattern.MatchString(suffix) {
		return s[:idx], suffix, true
	}
	return s, "", false
}

// FormatIdentifier is the inverse of ParseIdentifier, used by round-trip
// tests (spec §8): FormatIdentifier(ParseIdentifier(s)) == s when s had a
// quantization suffix.
func FormatIdentifier(baseID, quantization string) string {
	if quantization == "" {
		return baseID
	}
	return baseID + ":" + quantization
}

// CacheKey builds the deterministic cache key for a model cache entry.
// Two models differing only in normalization mode or context window are
// not interchangeable, so both are folded into the key.
func CacheKey(family, id, quantization string, contextWindow int, normalization string) string {
	quant := quantization
	if quant == "" {
		quant = "default"
	}
	ctx := "auto"
	if contextWindow > 0 {
		ctx = fmt.Sprintf("%d", contextWindow)
	}
	norm := normalization
	if norm == "" {
		norm = "default"
	}
	return strings.Join([]string{family, id, quant, ctx, norm}, "|")
}

// glob metacharacters rejected by SafeJoin, beyond the traversal and
// separator checks.
var globMetachars = "*?[]{}"

// SafeJoin joins base with a single user-supplied path component,
// rejecting anything that could escape base or inject a glob pattern.
// Containment is checked on canonical (Clean'd, absolute) paths, not by
// string-prefix comparison, to rule out sibling-directory false
// positives (e.g. "/data/dataset-evil" prefix-matching "/data/dataset").
func SafeJoin(base, userComponent string) (string, error) {
	if userComponent == "" {
		return "", apperr.New(apperr.InvalidPath, "empty path component")
	}
	if filepath.IsAbs(userComponent) {
		return "", apperr.New(apperr.InvalidPath, "absolute paths are not allowed")
	}
	if strings.Contains(userComponent, "\\") {
		return "", apperr.New(apperr.InvalidPath, "backslashes are not allowed")
	}
	if strings.Contains(userComponent, ":") {
		return "", apperr.New(apperr.InvalidPath, "colons are not allowed")
	}
	for _, c := range globMetachars {
		if strings.ContainsRune(userComponent, c) {
			return "", apperr.New(apperr.InvalidPath, "glob metacharacters are not allowed")
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(userComponent), "/") {
		if part == ".." {
			return "", apperr.New(apperr.InvalidPath, "parent directory references are not allowed")
		}
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "resolve base path", err)
	}
	absBase = filepath.Clean(absBase)

	joined := filepath.Join(absBase, userComponent)
	joined = filepath.Clean(joined)

	if !isDescendant(absBase, joined) {
		return "", apperr.New(apperr.InvalidPath, "resolved path escapes base directory")
	}
	return joined, nil
}

// isDescendant reports whether candidate is base itself or a path
// underneath it, compared component-wise on cleaned paths.
func isDescendant(base, candidate string) bool {
	if base == candidate {
		return true
	}
	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}

// Basename reduces a possibly-nested upload filename to its basename, to
// prevent folder-upload filenames from creating nested directories
// (spec §4.8).
func Basename(name string) string {
	name = filepath.ToSlash(name)
	return filepath.Base(name)
}
