package domain

import (
	"fmt"
	"math"
)

// DefaultThreshold is the index magnitude above which a month is labeled
// El Niño (or below the negative of which, La Niña).
const DefaultThreshold = 0.4

// ThresholdAnnotatedSeries is an EnsoIndexSeries plus the four derived
// sequences used by the layered chart: the index clipped at the positive
// and negative thresholds (the shaded excess areas) and the two constant
// threshold lines. All four are purely derived; where the index value is
// undefined all four are undefined at that step.
type ThresholdAnnotatedSeries struct {
	Index EnsoIndexSeries

	PositiveExcess    []float64
	NegativeExcess    []float64
	PositiveThreshold []float64
	NegativeThreshold []float64

	Threshold float64
}

// AnnotateThresholds derives the El Niño / La Niña threshold sequences
// from an index series. The threshold must be strictly positive; the
// same magnitude is used for both polarities. The input series is not
// mutated.
func AnnotateThresholds(series EnsoIndexSeries, threshold float64) (ThresholdAnnotatedSeries, error) {
	if math.IsNaN(threshold) || threshold <= 0 {
		return ThresholdAnnotatedSeries{}, fmt.Errorf("%w: got %g", ErrInvalidThreshold, threshold)
	}

	n := series.Len()
	out := ThresholdAnnotatedSeries{
		Index:             series,
		PositiveExcess:    make([]float64, n),
		NegativeExcess:    make([]float64, n),
		PositiveThreshold: make([]float64, n),
		NegativeThreshold: make([]float64, n),
		Threshold:         threshold,
	}

	for i := 0; i < n; i++ {
		v := series.Values[i]
		if math.IsNaN(v) {
			out.PositiveExcess[i] = math.NaN()
			out.NegativeExcess[i] = math.NaN()
			out.PositiveThreshold[i] = math.NaN()
			out.NegativeThreshold[i] = math.NaN()
			continue
		}
		out.PositiveExcess[i] = math.Max(v, threshold)
		out.NegativeExcess[i] = math.Min(v, -threshold)
		out.PositiveThreshold[i] = threshold
		out.NegativeThreshold[i] = -threshold
	}

	return out, nil
}
