package domain

import (
	"fmt"
	"math"
	"time"
)

// AxisRole identifies a coordinate axis by its semantic role rather than
// by variable name. Name-to-role resolution (e.g. "nav_lat" -> latitude)
// is the responsibility of the store adapters; the domain only ever deals
// in roles.
type AxisRole string

const (
	// AxisTime is the ordered monthly time axis.
	AxisTime AxisRole = "time"
	// AxisLatitude is the per-cell latitude coordinate in degrees north.
	AxisLatitude AxisRole = "latitude"
	// AxisLongitude is the per-cell longitude coordinate in degrees east.
	AxisLongitude AxisRole = "longitude"
)

// GriddedField is a sea-surface-temperature time series over a spatial
// grid. The spatial dimensions are flattened to a single cell axis with
// per-cell latitude/longitude values, which covers rectilinear grids
// (where lat/lon are true axes) and curvilinear or unstructured grids
// (where they are cell attributes) with one representation.
//
// Values[t][c] is the SST of cell c at time step t. Undefined samples
// (land cells, fill values) are NaN.
type GriddedField struct {
	Time   []time.Time
	Lat    []float64
	Lon    []float64
	Values [][]float64
}

// NewRectilinearField builds a GriddedField from separate latitude and
// longitude axes and values indexed [time][lat][lon], flattening the
// spatial dimensions in row-major (lat, lon) order.
func NewRectilinearField(times []time.Time, lats, lons []float64, values [][][]float64) (*GriddedField, error) {
	nLat := len(lats)
	nLon := len(lons)
	nCells := nLat * nLon

	cellLat := make([]float64, 0, nCells)
	cellLon := make([]float64, 0, nCells)
	for _, lat := range lats {
		for _, lon := range lons {
			cellLat = append(cellLat, lat)
			cellLon = append(cellLon, lon)
		}
	}

	flat := make([][]float64, len(values))
	for t, step := range values {
		if len(step) != nLat {
			return nil, fmt.Errorf("time step %d has %d latitude rows, expected %d", t, len(step), nLat)
		}
		row := make([]float64, 0, nCells)
		for i, latRow := range step {
			if len(latRow) != nLon {
				return nil, fmt.Errorf("time step %d, latitude row %d has %d values, expected %d", t, i, len(latRow), nLon)
			}
			row = append(row, latRow...)
		}
		flat[t] = row
	}

	field := &GriddedField{Time: times, Lat: cellLat, Lon: cellLon, Values: flat}
	if err := field.Validate(); err != nil {
		return nil, err
	}
	return field, nil
}

// NewCurvilinearField builds a GriddedField from an already-flattened
// cell dimension with per-cell coordinates.
func NewCurvilinearField(times []time.Time, cellLat, cellLon []float64, values [][]float64) (*GriddedField, error) {
	field := &GriddedField{Time: times, Lat: cellLat, Lon: cellLon, Values: values}
	if err := field.Validate(); err != nil {
		return nil, err
	}
	return field, nil
}

// Validate checks internal shape consistency and time-axis ordering.
func (f *GriddedField) Validate() error {
	if len(f.Time) == 0 {
		return fmt.Errorf("field has no time steps")
	}
	if len(f.Lat) != len(f.Lon) {
		return fmt.Errorf("latitude and longitude coordinates disagree: %d vs %d cells", len(f.Lat), len(f.Lon))
	}
	if len(f.Lat) == 0 {
		return fmt.Errorf("field has no grid cells")
	}
	if len(f.Values) != len(f.Time) {
		return fmt.Errorf("value rows (%d) must match time steps (%d)", len(f.Values), len(f.Time))
	}
	for t, row := range f.Values {
		if len(row) != len(f.Lat) {
			return fmt.Errorf("time step %d has %d values, expected %d cells", t, len(row), len(f.Lat))
		}
	}
	for i := 1; i < len(f.Time); i++ {
		if !f.Time[i].After(f.Time[i-1]) {
			return fmt.Errorf("time axis must be strictly increasing (step %d)", i)
		}
	}
	return nil
}

// NumCells returns the size of the flattened cell dimension.
func (f *GriddedField) NumCells() int {
	return len(f.Lat)
}

// CellCoordinates resolves a spatial axis by role.
func (f *GriddedField) CellCoordinates(role AxisRole) ([]float64, error) {
	switch role {
	case AxisLatitude:
		return f.Lat, nil
	case AxisLongitude:
		return f.Lon, nil
	case AxisTime:
		return nil, fmt.Errorf("time axis has no cell coordinates - use the Time field")
	default:
		return nil, fmt.Errorf("unknown axis role: %s", role)
	}
}

// MaskCells returns the indices of cells inside the region. The result
// depends only on the cell coordinates, so applying it twice selects the
// same cells as applying it once.
func (f *GriddedField) MaskCells(r Region) []int {
	cells := make([]int, 0)
	for i := range f.Lat {
		if r.Contains(f.Lat[i], f.Lon[i]) {
			cells = append(cells, i)
		}
	}
	return cells
}

// AreaWeights gives the physical area of each grid cell, used only as
// averaging weights. Cell ordering matches the owning GriddedField.
type AreaWeights []float64

// Validate rejects negative and NaN weights.
func (w AreaWeights) Validate() error {
	for i, v := range w {
		if math.IsNaN(v) {
			return fmt.Errorf("weight %d is NaN", i)
		}
		if v < 0 {
			return fmt.Errorf("weight %d is negative (%g)", i, v)
		}
	}
	return nil
}

// Region is a latitude/longitude bounding box. Latitude bounds are
// exclusive on both ends; longitude is the half-open interval
// [LonMin, LonMax) on a 0-360 degree axis.
type Region struct {
	Name   string
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Contains reports whether a cell coordinate falls inside the region.
// Longitudes given in the -180..180 convention are wrapped onto the
// 0-360 axis before the comparison.
func (r Region) Contains(lat, lon float64) bool {
	if !(lat > r.LatMin && lat < r.LatMax) {
		return false
	}
	lon = normalizeLon360(lon)
	return lon >= r.LonMin && lon < r.LonMax
}

// Validate checks that the bounds describe a non-empty box.
func (r Region) Validate() error {
	if r.LatMin >= r.LatMax {
		return fmt.Errorf("region %q: latitude bounds inverted or empty (%g >= %g)", r.Name, r.LatMin, r.LatMax)
	}
	if r.LonMin >= r.LonMax {
		return fmt.Errorf("region %q: longitude bounds inverted or empty (%g >= %g)", r.Name, r.LonMin, r.LonMax)
	}
	return nil
}

// normalizeLon360 maps arbitrary degree longitudes into the [0, 360) range.
//
// Niño regions are defined on a 0-360 longitude axis, so cell coordinates
// using the conventional -180..180 representation must be wrapped before
// the containment check.
func normalizeLon360(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	if lon < 0 {
		lon += 360.0
	}
	return lon
}
