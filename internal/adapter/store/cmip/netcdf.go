// Package cmip loads CMIP-style NetCDF model output: a monthly SST
// variable (tos) plus the matching cell-area variable (areacello).
package cmip

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/r-ford/enso-api/internal/adapter/store"
	"github.com/r-ford/enso-api/internal/domain"
)

// Variable name fallbacks. CMIP output names the SST field "tos", but
// observational and regridded products use the other spellings.
var (
	sstVarNames  = []string{"tos", "sst", "ts", "temperature"}
	areaVarNames = []string{"areacello", "areacella", "cell_area", "area"}
	timeVarNames = []string{"time", "t"}
	latVarNames  = []string{"lat", "latitude", "nav_lat", "y"}
	lonVarNames  = []string{"lon", "longitude", "nav_lon", "x"}
)

// Loader reads SST fields and area weights from NetCDF files, caching
// loaded datasets by path.
type Loader struct {
	cache map[string]*cachedDataset
	mu    sync.RWMutex // Protect cache.
}

type cachedDataset struct {
	field      *domain.GriddedField
	weights    domain.AreaWeights
	provenance store.Provenance
}

// NewLoader creates a new NetCDF dataset loader.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*cachedDataset)}
}

// Load materializes the SST field from sstPath and its area weights from
// areaPath. Results are cached; repeated loads of the same pair are
// served from memory.
func (l *Loader) Load(sstPath, areaPath string) (*domain.GriddedField, domain.AreaWeights, store.Provenance, error) {
	key := sstPath + "|" + areaPath

	l.mu.RLock()
	if ds, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return ds.field, ds.weights, ds.provenance, nil
	}
	l.mu.RUnlock()

	field, provenance, err := loadField(sstPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load SST from %s: %w", sstPath, err)
	}

	weights, err := loadWeights(areaPath, field.NumCells())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load area weights from %s: %w", areaPath, err)
	}

	l.mu.Lock()
	l.cache[key] = &cachedDataset{field: field, weights: weights, provenance: provenance}
	l.mu.Unlock()

	return field, weights, provenance, nil
}

// loadField reads the SST variable, its time axis, and its spatial
// coordinates from a NetCDF file.
func loadField(path string) (*domain.GriddedField, store.Provenance, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	dataVar, err := findVar(nc, sstVarNames)
	if err != nil {
		return nil, nil, err
	}

	timeVar, err := findVar(nc, timeVarNames)
	if err != nil {
		return nil, nil, err
	}
	times, err := decodeTimeAxis(timeVar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode time axis: %w", err)
	}

	latVar, err := findVar(nc, latVarNames)
	if err != nil {
		return nil, nil, err
	}
	lonVar, err := findVar(nc, lonVarNames)
	if err != nil {
		return nil, nil, err
	}

	field, err := assembleField(dataVar, latVar, lonVar, times)
	if err != nil {
		return nil, nil, err
	}

	return field, readProvenance(nc), nil
}

// assembleField reads the coordinate and data variables and builds the
// flattened-cell field, handling rectilinear axes (1D lat/lon),
// curvilinear grids (2D lat/lon), unstructured cell dimensions, and
// data stored with the time dimension first or last.
func assembleField(dataVar, latVar, lonVar netcdf.Var, times []time.Time) (*domain.GriddedField, error) {
	latDims, err := latVar.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get latitude dimensions: %w", err)
	}

	dataDims, err := dataVar.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get data dimensions: %w", err)
	}
	shape, err := dimLengths(dataDims)
	if err != nil {
		return nil, err
	}
	if len(shape) < 2 || len(shape) > 3 {
		return nil, fmt.Errorf("expected 2D (time, cell) or 3D (time, y, x) data, got %dD", len(shape))
	}

	// Determine which end holds the time dimension. Most output is
	// time-major, but some regridded products store time last.
	nTime := len(times)
	timeLast := false
	switch {
	case shape[0] == nTime:
	case shape[len(shape)-1] == nTime:
		timeLast = true
	default:
		return nil, fmt.Errorf("no leading or trailing data dimension matches the time length %d (shape %v)", nTime, shape)
	}

	spatial := shape[1:]
	if timeLast {
		spatial = shape[:len(shape)-1]
	}
	nCells := 1
	for _, n := range spatial {
		nCells *= n
	}

	flat, err := readNumericVar(dataVar, nTime*nCells)
	if err != nil {
		return nil, fmt.Errorf("failed to read SST values: %w", err)
	}
	applyFillValue(dataVar, flat, math.NaN())

	values := make([][]float64, nTime)
	if timeLast {
		// Data is [cell..., time] - transpose to time-major.
		for t := range values {
			row := make([]float64, nCells)
			for c := 0; c < nCells; c++ {
				row[c] = flat[c*nTime+t]
			}
			values[t] = row
		}
	} else {
		for t := range values {
			values[t] = flat[t*nCells : (t+1)*nCells]
		}
	}

	cellLat, cellLon, err := cellCoordinates(latVar, lonVar, latDims, spatial, nCells)
	if err != nil {
		return nil, err
	}

	return domain.NewCurvilinearField(times, cellLat, cellLon, values)
}

// cellCoordinates expands the coordinate variables to one latitude and
// longitude per flattened cell.
func cellCoordinates(latVar, lonVar netcdf.Var, latDims []netcdf.Dim, spatialShape []int, nCells int) ([]float64, []float64, error) {
	switch len(latDims) {
	case 1:
		lats, err := readNumericVar1D(latVar)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read latitude: %w", err)
		}
		lons, err := readNumericVar1D(lonVar)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read longitude: %w", err)
		}

		if len(spatialShape) == 1 {
			// Unstructured cell dimension with per-cell coordinates.
			if len(lats) != nCells || len(lons) != nCells {
				return nil, nil, fmt.Errorf("coordinate lengths (%d, %d) do not match %d cells", len(lats), len(lons), nCells)
			}
			return lats, lons, nil
		}

		// Rectilinear axes, expanded in (lat, lon) row-major order.
		if len(lats) != spatialShape[0] || len(lons) != spatialShape[1] {
			return nil, nil, fmt.Errorf("coordinate axes (%d, %d) do not match data shape (%d, %d)",
				len(lats), len(lons), spatialShape[0], spatialShape[1])
		}
		cellLat := make([]float64, 0, nCells)
		cellLon := make([]float64, 0, nCells)
		for _, lat := range lats {
			for _, lon := range lons {
				cellLat = append(cellLat, lat)
				cellLon = append(cellLon, lon)
			}
		}
		return cellLat, cellLon, nil

	case 2:
		// Curvilinear grid: lat/lon are 2D cell attributes.
		cellLat, err := readNumericVar(latVar, nCells)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read 2D latitude: %w", err)
		}
		cellLon, err := readNumericVar(lonVar, nCells)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read 2D longitude: %w", err)
		}
		return cellLat, cellLon, nil

	default:
		return nil, nil, fmt.Errorf("unsupported latitude rank: %dD", len(latDims))
	}
}

// loadWeights reads the cell-area variable and flattens it to match the
// field's cell dimension. Fill values become zero weight, excluding the
// cell from averages.
func loadWeights(path string, nCells int) (domain.AreaWeights, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	areaVar, err := findVar(nc, areaVarNames)
	if err != nil {
		return nil, err
	}

	flat, err := readNumericVar(areaVar, nCells)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell areas: %w", err)
	}
	applyFillValue(areaVar, flat, 0)

	weights := domain.AreaWeights(flat)
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cell areas: %w", err)
	}
	return weights, nil
}

// readProvenance collects the global attributes used for labeling.
// Missing attributes are simply omitted.
func readProvenance(nc netcdf.Dataset) store.Provenance {
	prov := make(store.Provenance)
	keys := map[string]string{
		"source_id":      "source_id",
		"institution_id": "institution_id",
		"experiment_id":  "experiment_id",
		"variant_label":  "member_id",
		"grid_label":     "grid_label",
	}
	for attr, key := range keys {
		if v, ok := readStringAttr(nc.Attr(attr)); ok {
			prov[key] = v
		}
	}
	return prov
}

// findVar returns the first variable matching one of the candidate names.
func findVar(nc netcdf.Dataset, names []string) (netcdf.Var, error) {
	for _, name := range names {
		if v, err := nc.Var(name); err == nil {
			return v, nil
		}
	}
	return netcdf.Var{}, fmt.Errorf("variable not found (tried: %v)", names)
}

// decodeTimeAxis converts a CF "units since reference" time variable to
// concrete timestamps, honoring the model calendar (360_day, noleap, or
// a standard calendar).
func decodeTimeAxis(v netcdf.Var) ([]time.Time, error) {
	units, ok := readStringAttr(v.Attr("units"))
	if !ok {
		return nil, fmt.Errorf("time variable has no units attribute")
	}
	calendar, _ := readStringAttr(v.Attr("calendar"))
	calendar = strings.ToLower(calendar)

	unit, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}

	offsets, err := readNumericVar1D(v)
	if err != nil {
		return nil, fmt.Errorf("failed to read time offsets: %w", err)
	}

	times := make([]time.Time, len(offsets))
	for i, offset := range offsets {
		days := offset
		switch unit {
		case "hours":
			days = offset / 24.0
		case "months":
			times[i] = ref.AddDate(0, int(offset), 0)
			continue
		}

		switch calendar {
		case "360_day":
			times[i] = addDays360(ref, days)
		case "noleap", "365_day":
			times[i] = addDaysNoLeap(ref, days)
		default: // standard, gregorian, proleptic_gregorian
			// Whole days via AddDate: a Duration of days overflows
			// int64 for distant references like "days since 0001-01-01".
			whole := math.Floor(days)
			frac := days - whole
			times[i] = ref.AddDate(0, 0, int(whole)).Add(time.Duration(frac * 24 * float64(time.Hour)))
		}
	}

	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("decoded time axis is not strictly increasing at step %d", i)
		}
	}
	return times, nil
}

// parseTimeUnits splits a CF units string like "days since 1850-01-01"
// into the unit and the reference time.
func parseTimeUnits(units string) (string, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return "", time.Time{}, fmt.Errorf("unsupported time units: %q", units)
	}

	unit := strings.ToLower(strings.TrimSpace(parts[0]))
	switch unit {
	case "days", "hours", "months":
	default:
		return "", time.Time{}, fmt.Errorf("unsupported time unit: %q", unit)
	}

	refStr := strings.TrimSpace(parts[1])
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006-1-2 15:04:05",
		"2006-1-2",
	}
	for _, layout := range layouts {
		if ref, err := time.Parse(layout, refStr); err == nil {
			return unit, ref.UTC(), nil
		}
	}
	return "", time.Time{}, fmt.Errorf("unsupported reference time: %q", refStr)
}

// addDays360 advances a date in the 360-day calendar, where every month
// has exactly 30 days. Sub-day fractions are dropped; monthly data gets
// snapped to the first of the month downstream anyway.
func addDays360(ref time.Time, days float64) time.Time {
	total := (ref.Year()*12+int(ref.Month())-1)*30 + (ref.Day() - 1) + int(days)
	year := total / 360
	rem := total % 360
	month := rem/30 + 1
	day := rem%30 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

var noLeapCumDays = [13]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}

// addDaysNoLeap advances a date in the 365-day (no leap year) calendar.
func addDaysNoLeap(ref time.Time, days float64) time.Time {
	total := ref.Year()*365 + noLeapCumDays[int(ref.Month())-1] + (ref.Day() - 1) + int(days)
	year := total / 365
	rem := total % 365
	month := 1
	for m := 1; m <= 12; m++ {
		if rem >= noLeapCumDays[m-1] && rem < noLeapCumDays[m] {
			month = m
			break
		}
	}
	day := rem - noLeapCumDays[month-1] + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// readStringAttr reads a character attribute as a string.
func readStringAttr(a netcdf.Attr) (string, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	return strings.TrimRight(string(buf), "\x00"), true
}

// getNumericAttr returns a numeric attribute as float64 if present.
func getNumericAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	return 0, false
}

// applyFillValue replaces _FillValue/missing_value entries with the
// given replacement. The data has already been unpacked, so the packed
// fill value is mapped through the same scale/offset transform first.
func applyFillValue(v netcdf.Var, data []float64, replacement float64) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		fill, ok := getNumericAttr(v, name)
		if !ok {
			continue
		}
		if scale, ok := getNumericAttr(v, "scale_factor"); ok {
			fill *= scale
		}
		if offset, ok := getNumericAttr(v, "add_offset"); ok {
			fill += offset
		}
		for i := range data {
			if data[i] == fill {
				data[i] = replacement
			}
		}
	}
}

// readNumericVar reads a variable of any supported numeric type as a
// flat float64 slice of the expected total length, applying
// scale_factor/add_offset unpacking when present.
func readNumericVar(v netcdf.Var, total int) ([]float64, error) {
	length, err := varLen(v)
	if err != nil {
		return nil, err
	}
	if length != total {
		return nil, fmt.Errorf("variable holds %d values, expected %d", length, total)
	}

	flat, err := readRaw(v, total)
	if err != nil {
		return nil, err
	}

	if scale, ok := getNumericAttr(v, "scale_factor"); ok {
		for i := range flat {
			flat[i] *= scale
		}
	}
	if offset, ok := getNumericAttr(v, "add_offset"); ok {
		for i := range flat {
			flat[i] += offset
		}
	}
	return flat, nil
}

// readNumericVar1D reads a 1D variable of any supported numeric type.
func readNumericVar1D(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readNumericVar(v, int(length))
}

func varLen(v netcdf.Var) (int, error) {
	dims, err := v.Dims()
	if err != nil {
		return 0, fmt.Errorf("failed to get dimensions: %w", err)
	}
	total := 1
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return 0, fmt.Errorf("failed to get dim %d length: %w", i, err)
		}
		total *= int(n)
	}
	return total, nil
}

func dimLengths(dims []netcdf.Dim) ([]int, error) {
	shape := make([]int, len(dims))
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get dim %d length: %w", i, err)
		}
		shape[i] = int(n)
	}
	return shape, nil
}

func readRaw(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
