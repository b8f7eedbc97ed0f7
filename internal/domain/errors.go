package domain

import "errors"

// Computation errors. All are detected synchronously at the point of
// violation; there is no retry or partial result. Callers match with
// errors.Is.
var (
	// ErrShapeMismatch indicates that the field and its area weights
	// disagree on spatial shape or hold invalid weights.
	ErrShapeMismatch = errors.New("field and weights shapes disagree")

	// ErrEmptyRegionSelection indicates that the region mask selected
	// zero grid cells, leaving the spatial average undefined.
	ErrEmptyRegionSelection = errors.New("region selects no grid cells")

	// ErrDegenerateNormalization indicates a zero standard deviation of
	// the unsmoothed anomaly series, e.g. for constant input.
	ErrDegenerateNormalization = errors.New("anomaly standard deviation is zero")

	// ErrInvalidThreshold indicates a non-positive classification threshold.
	ErrInvalidThreshold = errors.New("threshold must be strictly positive")

	// ErrInsufficientTimeLength indicates fewer time steps than the
	// smoothing window needs to produce any defined value.
	ErrInsufficientTimeLength = errors.New("too few time steps for smoothing window")
)
