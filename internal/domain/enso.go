package domain

import (
	"fmt"
	"math"
	"time"
)

// SmoothingWindow is the width of the centered moving average applied to
// the area-averaged anomaly series. With a 5-step window the first two
// and last two output entries are always undefined.
const SmoothingWindow = 5

// EnsoIndexSeries is the normalized, smoothed anomaly index, aligned 1:1
// with the time axis of the field it was computed from. Undefined entries
// at the series edges are NaN.
type EnsoIndexSeries struct {
	Time   []time.Time
	Values []float64
}

// Len returns the number of time steps.
func (s EnsoIndexSeries) Len() int {
	return len(s.Time)
}

// IsDefined reports whether the value at step i is defined.
func (s EnsoIndexSeries) IsDefined(i int) bool {
	return i >= 0 && i < len(s.Values) && !math.IsNaN(s.Values[i])
}

// TimeWindow is an inclusive time-axis sub-range.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeOptions holds the optional parameters of ComputeIndex.
type ComputeOptions struct {
	// ClimatologyWindow restricts the monthly climatology and the
	// normalizing standard deviation to a sub-range of the time axis.
	// When nil, the full axis is used. The two always share one window.
	ClimatologyWindow *TimeWindow
}

// ComputeIndex computes the standardized, smoothed SST anomaly index over
// a region:
//
//  1. select cells inside the region
//  2. remove the per-cell monthly climatology
//  3. area-weighted spatial average
//  4. 5-step centered moving average
//  5. divide by the standard deviation of the unsmoothed series
//
// The result has exactly one entry per input time step; the first two and
// last two are NaN. ComputeIndex is a pure function of its inputs.
func ComputeIndex(field *GriddedField, weights AreaWeights, region Region, opts ComputeOptions) (EnsoIndexSeries, error) {
	if err := field.Validate(); err != nil {
		return EnsoIndexSeries{}, fmt.Errorf("invalid field: %w", err)
	}
	if len(weights) != field.NumCells() {
		return EnsoIndexSeries{}, fmt.Errorf("%w: %d weights for %d cells", ErrShapeMismatch, len(weights), field.NumCells())
	}
	if err := weights.Validate(); err != nil {
		return EnsoIndexSeries{}, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := region.Validate(); err != nil {
		return EnsoIndexSeries{}, fmt.Errorf("%w: %v", ErrEmptyRegionSelection, err)
	}

	n := len(field.Time)
	if n < SmoothingWindow {
		return EnsoIndexSeries{}, fmt.Errorf("%w: got %d steps, need at least %d", ErrInsufficientTimeLength, n, SmoothingWindow)
	}

	cells := field.MaskCells(region)
	if len(cells) == 0 {
		return EnsoIndexSeries{}, fmt.Errorf("%w: region %q", ErrEmptyRegionSelection, region.Name)
	}

	windowSteps, err := resolveWindow(field.Time, opts.ClimatologyWindow)
	if err != nil {
		return EnsoIndexSeries{}, err
	}

	clim := monthlyClimatology(field, cells, windowSteps)
	anomaly := weightedAnomalyMean(field, weights, cells, clim)

	std, err := windowStdDev(anomaly, windowSteps)
	if err != nil {
		return EnsoIndexSeries{}, err
	}

	smoothed := centeredMovingAverage(anomaly, SmoothingWindow)
	for i := range smoothed {
		smoothed[i] /= std
	}

	return EnsoIndexSeries{Time: field.Time, Values: smoothed}, nil
}

// resolveWindow maps the optional climatology window onto time-step
// indices. A nil window selects the full axis.
func resolveWindow(times []time.Time, window *TimeWindow) ([]int, error) {
	steps := make([]int, 0, len(times))
	for i, t := range times {
		if window == nil || window.Contains(t) {
			steps = append(steps, i)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: climatology window selects no time steps", ErrInsufficientTimeLength)
	}
	return steps, nil
}

// monthlyClimatology computes, per calendar month and per selected cell,
// the mean SST across the window. Undefined samples are skipped; a cell
// with no defined samples for a month gets a NaN climatology.
//
// The result is indexed [month 1..12][position in cells].
func monthlyClimatology(field *GriddedField, cells []int, windowSteps []int) [13][]float64 {
	var sums, counts [13][]float64
	var clim [13][]float64
	for m := 1; m <= 12; m++ {
		sums[m] = make([]float64, len(cells))
		counts[m] = make([]float64, len(cells))
	}

	for _, t := range windowSteps {
		m := int(field.Time[t].Month())
		row := field.Values[t]
		for j, c := range cells {
			v := row[c]
			if math.IsNaN(v) {
				continue
			}
			sums[m][j] += v
			counts[m][j]++
		}
	}

	for m := 1; m <= 12; m++ {
		clim[m] = make([]float64, len(cells))
		for j := range cells {
			if counts[m][j] == 0 {
				clim[m][j] = math.NaN()
				continue
			}
			clim[m][j] = sums[m][j] / counts[m][j]
		}
	}
	return clim
}

// weightedAnomalyMean subtracts the monthly climatology per cell and
// collapses the cell dimension with an area-weighted mean, producing one
// scalar anomaly per time step. Steps where no selected cell carries a
// defined anomaly (or all weights are zero) come out NaN.
func weightedAnomalyMean(field *GriddedField, weights AreaWeights, cells []int, clim [13][]float64) []float64 {
	out := make([]float64, len(field.Time))
	for t := range field.Time {
		m := int(field.Time[t].Month())
		row := field.Values[t]

		var sum, wsum float64
		for j, c := range cells {
			v := row[c]
			base := clim[m][j]
			if math.IsNaN(v) || math.IsNaN(base) {
				continue
			}
			w := weights[c]
			sum += w * (v - base)
			wsum += w
		}

		if wsum == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = sum / wsum
	}
	return out
}

// windowStdDev computes the population standard deviation of the
// unsmoothed anomaly series over the window steps, skipping NaN entries.
func windowStdDev(series []float64, windowSteps []int) (float64, error) {
	var sum, count float64
	for _, t := range windowSteps {
		if math.IsNaN(series[t]) {
			continue
		}
		sum += series[t]
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: no defined anomaly values in window", ErrDegenerateNormalization)
	}
	mean := sum / count

	var sqsum float64
	for _, t := range windowSteps {
		if math.IsNaN(series[t]) {
			continue
		}
		d := series[t] - mean
		sqsum += d * d
	}
	std := math.Sqrt(sqsum / count)
	if std == 0 {
		return 0, ErrDegenerateNormalization
	}
	return std, nil
}

// centeredMovingAverage smooths the series with a centered window. The
// half-window entries at each edge are NaN, as is any entry whose window
// contains an undefined sample.
func centeredMovingAverage(series []float64, window int) []float64 {
	half := window / 2
	out := make([]float64, len(series))
	for i := range out {
		if i < half || i >= len(series)-half {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for k := i - half; k <= i+half; k++ {
			sum += series[k]
		}
		// NaN inside the window propagates through the sum.
		out[i] = sum / float64(window)
	}
	return out
}
