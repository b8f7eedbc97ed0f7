package cmip

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

type sstFileSpec struct {
	timeOffsets []float64
	timeUnits   string
	calendar    string
	lat         []float64
	lon         []float64
	values      []float64 // len(timeOffsets) * len(lat) * len(lon)
	fillValue   float64
	hasFill     bool
	timeLast    bool // store tos as (lat, lon, time) instead of (time, lat, lon)
	globalAttrs map[string]string
}

// writeSSTFile creates a minimal (time, lat, lon) tos file.
func writeSSTFile(t *testing.T, path string, spec sstFileSpec) {
	t.Helper()

	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	timeDim, _ := f.AddDim("time", uint64(len(spec.timeOffsets)))
	latDim, _ := f.AddDim("lat", uint64(len(spec.lat)))
	lonDim, _ := f.AddDim("lon", uint64(len(spec.lon)))

	vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	vlat, _ := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	vlon, _ := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	tosDims := []netcdf.Dim{timeDim, latDim, lonDim}
	if spec.timeLast {
		tosDims = []netcdf.Dim{latDim, lonDim, timeDim}
	}
	vtos, _ := f.AddVar("tos", netcdf.DOUBLE, tosDims)

	if err := vtime.Attr("units").WriteBytes([]byte(spec.timeUnits)); err != nil {
		t.Fatalf("write time units: %v", err)
	}
	if spec.calendar != "" {
		if err := vtime.Attr("calendar").WriteBytes([]byte(spec.calendar)); err != nil {
			t.Fatalf("write calendar: %v", err)
		}
	}
	if spec.hasFill {
		if err := vtos.Attr("_FillValue").WriteFloat64s([]float64{spec.fillValue}); err != nil {
			t.Fatalf("write fill value: %v", err)
		}
	}
	for name, value := range spec.globalAttrs {
		if err := f.Attr(name).WriteBytes([]byte(value)); err != nil {
			t.Fatalf("write global attr %s: %v", name, err)
		}
	}

	if err := vtime.WriteFloat64s(spec.timeOffsets); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vlat.WriteFloat64s(spec.lat); err != nil {
		t.Fatalf("write lat: %v", err)
	}
	if err := vlon.WriteFloat64s(spec.lon); err != nil {
		t.Fatalf("write lon: %v", err)
	}
	if err := vtos.WriteFloat64s(spec.values); err != nil {
		t.Fatalf("write tos: %v", err)
	}
}

// writeAreaFile creates a minimal (lat, lon) areacello file.
func writeAreaFile(t *testing.T, path string, lat, lon, area []float64) {
	t.Helper()

	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	latDim, _ := f.AddDim("lat", uint64(len(lat)))
	lonDim, _ := f.AddDim("lon", uint64(len(lon)))
	varea, _ := f.AddVar("areacello", netcdf.DOUBLE, []netcdf.Dim{latDim, lonDim})

	if err := varea.WriteFloat64s(area); err != nil {
		t.Fatalf("write area: %v", err)
	}
}

func defaultSpec(nTime int) sstFileSpec {
	lat := []float64{-2.0, 0.0, 2.0}
	lon := []float64{200.0, 210.0}
	offsets := make([]float64, nTime)
	values := make([]float64, nTime*len(lat)*len(lon))
	for step := 0; step < nTime; step++ {
		offsets[step] = float64(step * 30)
		for c := 0; c < len(lat)*len(lon); c++ {
			values[step*len(lat)*len(lon)+c] = 300.0 + float64(step) + 0.1*float64(c)
		}
	}
	return sstFileSpec{
		timeOffsets: offsets,
		timeUnits:   "days since 2000-01-01",
		calendar:    "360_day",
		lat:         lat,
		lon:         lon,
		values:      values,
	}
}

func TestLoad_RectilinearRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(3)
	spec.globalAttrs = map[string]string{
		"source_id":     "TEST-ESM",
		"experiment_id": "historical",
	}
	writeSSTFile(t, sstPath, spec)
	area := []float64{1, 2, 3, 4, 5, 6}
	writeAreaFile(t, areaPath, spec.lat, spec.lon, area)

	loader := NewLoader()
	field, weights, prov, err := loader.Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if field.NumCells() != 6 {
		t.Fatalf("expected 6 cells, got %d", field.NumCells())
	}
	if len(field.Time) != 3 {
		t.Fatalf("expected 3 time steps, got %d", len(field.Time))
	}

	// 360-day calendar: offsets 0, 30, 60 land on the first of
	// consecutive months.
	for i, want := range []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC),
	} {
		if !field.Time[i].Equal(want) {
			t.Errorf("time[%d] = %v, want %v", i, field.Time[i], want)
		}
	}

	// Row-major (lat, lon) flattening: cell 1 is lat=-2, lon=210.
	if field.Lat[1] != -2.0 || field.Lon[1] != 210.0 {
		t.Errorf("cell 1 coordinates = (%v, %v), want (-2, 210)", field.Lat[1], field.Lon[1])
	}
	if got := field.Values[1][2]; math.Abs(got-301.2) > 1e-12 {
		t.Errorf("values[1][2] = %v, want 301.2", got)
	}

	for i, w := range area {
		if weights[i] != w {
			t.Errorf("weight[%d] = %v, want %v", i, weights[i], w)
		}
	}

	if prov["source_id"] != "TEST-ESM" || prov["experiment_id"] != "historical" {
		t.Errorf("unexpected provenance: %v", prov)
	}
}

func TestLoad_TimeLastDimensionOrder(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	// 4 time steps against 3x2 cells, so the time length matches
	// neither spatial dimension.
	spec := defaultSpec(4)
	nTime := len(spec.timeOffsets)
	nCells := len(spec.lat) * len(spec.lon)

	// Rearrange the time-major reference values into the file's
	// (lat, lon, time) layout.
	timeMajor := spec.values
	cellMajor := make([]float64, len(timeMajor))
	for step := 0; step < nTime; step++ {
		for c := 0; c < nCells; c++ {
			cellMajor[c*nTime+step] = timeMajor[step*nCells+c]
		}
	}
	spec.values = cellMajor
	spec.timeLast = true
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	field, _, _, err := NewLoader().Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(field.Time) != nTime {
		t.Fatalf("expected %d time steps, got %d", nTime, len(field.Time))
	}
	if field.NumCells() != nCells {
		t.Fatalf("expected %d cells, got %d", nCells, field.NumCells())
	}

	// The loaded field must be time-major regardless of file layout.
	for step := 0; step < nTime; step++ {
		for c := 0; c < nCells; c++ {
			want := timeMajor[step*nCells+c]
			if got := field.Values[step][c]; math.Abs(got-want) > 1e-12 {
				t.Fatalf("values[%d][%d] = %v, want %v", step, c, got, want)
			}
		}
	}

	if field.Lat[1] != -2.0 || field.Lon[1] != 210.0 {
		t.Errorf("cell 1 coordinates = (%v, %v), want (-2, 210)", field.Lat[1], field.Lon[1])
	}
}

func TestLoad_TimeDimensionInMiddle(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	lat := []float64{-2.0, 0.0, 2.0}
	lon := []float64{200.0, 210.0}

	// Data dimensioned (lat, time, lon): the time length appears at
	// neither end, which the loader cannot reorder.
	func() {
		f, err := netcdf.CreateFile(sstPath, netcdf.CLOBBER|netcdf.NETCDF4)
		if err != nil {
			t.Fatalf("create nc: %v", err)
		}
		defer f.Close()

		timeDim, _ := f.AddDim("time", 4)
		latDim, _ := f.AddDim("lat", uint64(len(lat)))
		lonDim, _ := f.AddDim("lon", uint64(len(lon)))

		vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
		vlat, _ := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
		vlon, _ := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
		vtos, _ := f.AddVar("tos", netcdf.DOUBLE, []netcdf.Dim{latDim, timeDim, lonDim})

		if err := vtime.Attr("units").WriteBytes([]byte("days since 2000-01-01")); err != nil {
			t.Fatalf("write time units: %v", err)
		}
		if err := vtime.WriteFloat64s([]float64{0, 31, 60, 91}); err != nil {
			t.Fatalf("write time: %v", err)
		}
		if err := vlat.WriteFloat64s(lat); err != nil {
			t.Fatalf("write lat: %v", err)
		}
		if err := vlon.WriteFloat64s(lon); err != nil {
			t.Fatalf("write lon: %v", err)
		}
		if err := vtos.WriteFloat64s(make([]float64, 4*len(lat)*len(lon))); err != nil {
			t.Fatalf("write tos: %v", err)
		}
	}()
	writeAreaFile(t, areaPath, lat, lon, []float64{1, 1, 1, 1, 1, 1})

	if _, _, _, err := NewLoader().Load(sstPath, areaPath); err == nil {
		t.Fatalf("expected an error when no leading or trailing dimension matches the time length")
	}
}

func TestLoad_FillValueBecomesNaN(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(2)
	spec.fillValue = 1e20
	spec.hasFill = true
	spec.values[3] = 1e20
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	field, _, _, err := NewLoader().Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !math.IsNaN(field.Values[0][3]) {
		t.Errorf("fill value not mapped to NaN: got %v", field.Values[0][3])
	}
	if math.IsNaN(field.Values[0][2]) {
		t.Errorf("non-fill value mapped to NaN")
	}
}

func TestLoad_CachesByPathPair(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(2)
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	loader := NewLoader()
	first, _, _, err := loader.Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, _, _, err := loader.Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Errorf("expected the cached field on the second load")
	}
}

func TestLoad_MissingAreaVariable(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")

	spec := defaultSpec(2)
	writeSSTFile(t, sstPath, spec)

	// The SST file has no area variable under any known name.
	if _, _, _, err := NewLoader().Load(sstPath, sstPath); err == nil {
		t.Fatalf("expected an error for a file without cell areas")
	}
}

func TestLoad_TimeLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(2)
	writeSSTFile(t, sstPath, spec)
	// Area grid smaller than the field's cell count.
	writeAreaFile(t, areaPath, []float64{0.0}, []float64{200.0}, []float64{1})

	if _, _, _, err := NewLoader().Load(sstPath, areaPath); err == nil {
		t.Fatalf("expected an error for mismatched area grid")
	}
}

func TestDecodeTimeAxis_NoLeapCalendar(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(3)
	spec.calendar = "noleap"
	// First-of-month offsets in a 365-day year: Jan 1, Feb 1, Mar 1.
	spec.timeOffsets = []float64{0, 31, 59}
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	field, _, _, err := NewLoader().Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC)
	if !field.Time[2].Equal(want) {
		t.Errorf("time[2] = %v, want %v", field.Time[2], want)
	}
}

func TestDecodeTimeAxis_MonthsUnits(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(3)
	spec.timeUnits = "months since 1980-01-01"
	spec.calendar = ""
	spec.timeOffsets = []float64{0, 1, 2}
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	field, _, _, err := NewLoader().Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := time.Date(1980, 3, 1, 0, 0, 0, 0, time.UTC)
	if !field.Time[2].Equal(want) {
		t.Errorf("time[2] = %v, want %v", field.Time[2], want)
	}
}

func TestDecodeTimeAxis_DistantReference(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "tos.nc")
	areaPath := filepath.Join(dir, "areacello.nc")

	spec := defaultSpec(3)
	spec.timeUnits = "days since 0001-01-01"
	spec.calendar = "proleptic_gregorian"
	// 730119 days after 0001-01-01 is 2000-01-01 in the proleptic
	// Gregorian calendar.
	spec.timeOffsets = []float64{730119, 730150, 730179}
	writeSSTFile(t, sstPath, spec)
	writeAreaFile(t, areaPath, spec.lat, spec.lon, []float64{1, 1, 1, 1, 1, 1})

	field, _, _, err := NewLoader().Load(sstPath, areaPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for i, want := range []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC),
	} {
		if !field.Time[i].Equal(want) {
			t.Errorf("time[%d] = %v, want %v", i, field.Time[i], want)
		}
	}
}

func TestParseTimeUnits(t *testing.T) {
	unit, ref, err := parseTimeUnits("days since 1850-01-01")
	if err != nil {
		t.Fatalf("parseTimeUnits: %v", err)
	}
	if unit != "days" || ref.Year() != 1850 {
		t.Errorf("got unit=%q ref=%v", unit, ref)
	}

	if _, _, err := parseTimeUnits("fortnights since 1850-01-01"); err == nil {
		t.Errorf("expected an error for an unsupported unit")
	}
	if _, _, err := parseTimeUnits("just days"); err == nil {
		t.Errorf("expected an error for a malformed units string")
	}
}

func TestAddDays360(t *testing.T) {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	got := addDays360(ref, 390)
	want := time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("addDays360(ref, 390) = %v, want %v", got, want)
	}
}

func TestAddDaysNoLeap(t *testing.T) {
	ref := time.Date(1999, 12, 1, 0, 0, 0, 0, time.UTC)
	got := addDaysNoLeap(ref, 31)
	want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("addDaysNoLeap(ref, 31) = %v, want %v", got, want)
	}

	// No February 29 in this calendar: day 59 of 2000 is March 1.
	ref = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	got = addDaysNoLeap(ref, 59)
	want = time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("addDaysNoLeap(ref, 59) = %v, want %v", got, want)
	}
}
