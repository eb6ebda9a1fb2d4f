// Package embedcheck validates embedding vectors produced by the RAG
// ingestion and retrieval pipelines (spec §4.12).
package embedcheck

import "math"

const zeroTolerance = 1e-10

// Options configures a single validation call.
type Options struct {
	// ExpectedDimension, when > 0, is checked against len(vector).
	ExpectedDimension int
	// AllowZero permits an all-zero vector to pass validation.
	AllowZero bool
}

// Validate checks a single embedding vector, returning ("", true) when
// valid or a human-readable reason and false otherwise.
func Validate(vector []float32, opts Options) (reason string, ok bool) {
	if vector == nil {
		return "vector is nil", false
	}
	if len(vector) == 0 {
		return "vector is empty", false
	}
	if opts.ExpectedDimension > 0 && len(vector) != opts.ExpectedDimension {
		return "dimension mismatch", false
	}
	allBelowTolerance := true
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "vector contains NaN or Inf", false
		}
		if math.Abs(f) >= zeroTolerance {
			allBelowTolerance = false
		}
	}
	if allBelowTolerance && !opts.AllowZero {
		return "vector is all-zero", false
	}
	return "", true
}

// ValidateBatch validates each vector independently, without
// short-circuiting on the first failure (spec §4.12).
func ValidateBatch(vectors [][]float32, opts Options) (allValid bool, invalidIndex []int, messages []string) {
	allValid = true
	for i, v := range vectors {
		if reason, ok := Validate(v, opts); !ok {
			allValid = false
			invalidIndex = append(invalidIndex, i)
			messages = append(messages, reason)
		}
	}
	return allValid, invalidIndex, messages
}

// ZeroVector returns a zero vector of the given dimension, used as the
// fail_fast=false substitution for a rejected embedding (spec §4.5).
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}
