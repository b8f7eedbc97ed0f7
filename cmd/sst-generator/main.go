package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// GridSpec defines the geographic bounds and resolution of the
// generated grid.
type GridSpec struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

const earthRadius = 6.371e6 // meters

func main() {
	// Command line flags
	outDir := flag.String("out", "./data", "Output directory for NetCDF files and catalog")
	months := flag.Int("months", 600, "Number of monthly time steps")
	startYear := flag.Int("start-year", 1950, "First year of the time axis")
	resolution := flag.Float64("resolution", 2.0, "Grid resolution in degrees")
	calendar := flag.String("calendar", "noleap", "Time axis calendar: noleap, 360_day, or standard")
	sourceID := flag.String("source-id", "SYN-ESM1", "source_id global attribute")
	institutionID := flag.String("institution-id", "SYN", "institution_id global attribute")
	experimentID := flag.String("experiment-id", "historical", "experiment_id global attribute")
	memberID := flag.String("member-id", "r1i1p1f1", "variant_label global attribute")
	gridLabel := flag.String("grid-label", "gn", "grid_label global attribute")
	ensoPeriod := flag.Float64("enso-period", 54.0, "Period of the synthetic ENSO oscillation in months")
	ensoAmplitude := flag.Float64("enso-amplitude", 1.5, "Peak SST anomaly of the synthetic ENSO oscillation in kelvin")

	flag.Parse()

	grid := GridSpec{
		LatMin:     -89.0,
		LatMax:     89.0,
		LonMin:     1.0,
		LonMax:     359.0,
		Resolution: *resolution,
	}

	if *months < 1 {
		log.Fatalf("months must be positive, got %d", *months)
	}

	nLat := int((grid.LatMax-grid.LatMin)/grid.Resolution) + 1
	nLon := int((grid.LonMax-grid.LonMin)/grid.Resolution) + 1

	log.Printf("Generating synthetic CMIP output: %d months, %d × %d grid", *months, nLat, nLon)
	log.Printf("Grid: %.1f°-%.1f°N, %.1f°-%.1f°E, resolution: %.2f°",
		grid.LatMin, grid.LatMax, grid.LonMin, grid.LonMax, grid.Resolution)
	log.Printf("ENSO signal: period %.0f months, amplitude %.2f K", *ensoPeriod, *ensoAmplitude)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	attrs := map[string]string{
		"source_id":      *sourceID,
		"institution_id": *institutionID,
		"experiment_id":  *experimentID,
		"variant_label":  *memberID,
		"grid_label":     *gridLabel,
	}

	sstPath := filepath.Join(*outDir, fmt.Sprintf("tos_Omon_%s_%s_%s_%s.nc", *sourceID, *experimentID, *memberID, *gridLabel))
	areaPath := filepath.Join(*outDir, fmt.Sprintf("areacello_Ofx_%s_%s_%s_%s.nc", *sourceID, *experimentID, *memberID, *gridLabel))
	catalogPath := filepath.Join(*outDir, "catalog.csv")

	if err := writeSST(sstPath, grid, nLat, nLon, *months, *startYear, *calendar, *ensoPeriod, *ensoAmplitude, attrs); err != nil {
		log.Fatalf("Failed to write SST file: %v", err)
	}
	log.Printf("✓ Wrote %s", sstPath)

	if err := writeCellArea(areaPath, grid, nLat, nLon, attrs); err != nil {
		log.Fatalf("Failed to write cell-area file: %v", err)
	}
	log.Printf("✓ Wrote %s", areaPath)

	if err := writeCatalog(catalogPath, attrs, sstPath, areaPath); err != nil {
		log.Fatalf("Failed to write catalog: %v", err)
	}
	log.Printf("✓ Wrote %s", catalogPath)

	totalMB := float64(*months*nLat*nLon*8) / 1024 / 1024
	log.Printf("\n=== Generation Complete ===")
	log.Printf("SST file size: ~%.1f MB", totalMB)
	log.Printf("Point the server at it with CATALOG_PATH=%s", catalogPath)
}

// sstValue computes the synthetic SST at one cell and one time step:
// a meridional base gradient, a hemisphere-aware seasonal cycle, and
// an ENSO-like oscillation localized over the equatorial Pacific.
func sstValue(lat, lon float64, step int, ensoPeriod, ensoAmplitude float64) float64 {
	month := step % 12

	// Warm equator, cold poles.
	base := 300.0 - 27.0*math.Pow(math.Sin(lat*math.Pi/180.0), 2)

	// Seasonal cycle, antiphased across hemispheres and vanishing at
	// the equator.
	seasonal := 4.0 * math.Sin(lat*math.Pi/180.0) * math.Cos(2.0*math.Pi*float64(month-7)/12.0)

	// ENSO-like anomaly: sinusoid in time, Gaussian footprint centered
	// on the central equatorial Pacific.
	latDist := lat / 8.0
	lonDist := (lon - 215.0) / 40.0
	footprint := math.Exp(-(latDist*latDist + lonDist*lonDist))
	enso := ensoAmplitude * footprint * math.Sin(2.0*math.Pi*float64(step)/ensoPeriod)

	// Low-amplitude deterministic variability so no two cells match.
	texture := 0.2*math.Sin(lon*math.Pi/45.0+float64(step)/11.0) +
		0.1*math.Cos(lat*math.Pi/30.0-float64(step)/17.0)

	return base + seasonal + enso + texture
}

// writeSST writes the tos file: (time, lat, lon) values with a CF time
// axis and the CMIP provenance attributes.
func writeSST(path string, grid GridSpec, nLat, nLon, months, startYear int, calendar string, ensoPeriod, ensoAmplitude float64, attrs map[string]string) error {
	lat, lon := makeAxes(grid, nLat, nLon)

	timeOffsets, err := makeTimeOffsets(months, startYear, calendar)
	if err != nil {
		return err
	}

	data := make([]float64, months*nLat*nLon)
	for step := 0; step < months; step++ {
		for i := 0; i < nLat; i++ {
			for j := 0; j < nLon; j++ {
				idx := step*nLat*nLon + i*nLon + j
				data[idx] = sstValue(lat[i], lon[j], step, ensoPeriod, ensoAmplitude)
			}
		}
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer ds.Close()

	timeDim, err := ds.AddDim("time", uint64(months))
	if err != nil {
		return err
	}
	latDim, err := ds.AddDim("lat", uint64(nLat))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(nLon))
	if err != nil {
		return err
	}

	timeVar, err := ds.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	units := fmt.Sprintf("days since %d-01-01", startYear)
	if err := timeVar.Attr("units").WriteBytes([]byte(units)); err != nil {
		return err
	}
	if err := timeVar.Attr("calendar").WriteBytes([]byte(calendar)); err != nil {
		return err
	}
	if err := timeVar.WriteFloat64s(timeOffsets); err != nil {
		return err
	}

	latVar, err := ds.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	if err := latVar.Attr("units").WriteBytes([]byte("degrees_north")); err != nil {
		return err
	}
	if err := latVar.WriteFloat64s(lat); err != nil {
		return err
	}

	lonVar, err := ds.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}
	if err := lonVar.Attr("units").WriteBytes([]byte("degrees_east")); err != nil {
		return err
	}
	if err := lonVar.WriteFloat64s(lon); err != nil {
		return err
	}

	dataVar, err := ds.AddVar("tos", netcdf.DOUBLE, []netcdf.Dim{timeDim, latDim, lonDim})
	if err != nil {
		return err
	}
	if err := dataVar.Attr("units").WriteBytes([]byte("K")); err != nil {
		return err
	}
	if err := dataVar.Attr("standard_name").WriteBytes([]byte("sea_surface_temperature")); err != nil {
		return err
	}
	if err := dataVar.WriteFloat64s(data); err != nil {
		return err
	}

	return writeGlobalAttrs(ds, attrs)
}

// writeCellArea writes the areacello file: per-cell ocean area in m²,
// proportional to cos(lat) on this regular grid.
func writeCellArea(path string, grid GridSpec, nLat, nLon int, attrs map[string]string) error {
	lat, _ := makeAxes(grid, nLat, nLon)

	dLat := grid.Resolution * math.Pi / 180.0
	dLon := grid.Resolution * math.Pi / 180.0

	area := make([]float64, nLat*nLon)
	for i := 0; i < nLat; i++ {
		cellArea := earthRadius * earthRadius * dLat * dLon * math.Cos(lat[i]*math.Pi/180.0)
		for j := 0; j < nLon; j++ {
			area[i*nLon+j] = cellArea
		}
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer ds.Close()

	latDim, err := ds.AddDim("lat", uint64(nLat))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(nLon))
	if err != nil {
		return err
	}

	areaVar, err := ds.AddVar("areacello", netcdf.DOUBLE, []netcdf.Dim{latDim, lonDim})
	if err != nil {
		return err
	}
	if err := areaVar.Attr("units").WriteBytes([]byte("m2")); err != nil {
		return err
	}
	if err := areaVar.WriteFloat64s(area); err != nil {
		return err
	}

	return writeGlobalAttrs(ds, attrs)
}

// writeCatalog writes a one-entry dataset catalog pointing at the
// generated files.
func writeCatalog(path string, attrs map[string]string, sstPath, areaPath string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	records := [][]string{
		{"activity_id", "institution_id", "source_id", "experiment_id", "member_id", "table_id", "variable_id", "grid_label", "path", "area_path"},
		{"CMIP", attrs["institution_id"], attrs["source_id"], attrs["experiment_id"], attrs["variant_label"], "Omon", "tos", attrs["grid_label"], sstPath, areaPath},
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// makeAxes builds the 1D latitude and longitude axes.
func makeAxes(grid GridSpec, nLat, nLon int) ([]float64, []float64) {
	lat := make([]float64, nLat)
	for i := 0; i < nLat; i++ {
		lat[i] = grid.LatMin + float64(i)*grid.Resolution
	}
	lon := make([]float64, nLon)
	for j := 0; j < nLon; j++ {
		lon[j] = grid.LonMin + float64(j)*grid.Resolution
	}
	return lat, lon
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// makeTimeOffsets returns first-of-month day offsets from the reference
// date in the requested calendar.
func makeTimeOffsets(months, startYear int, calendar string) ([]float64, error) {
	offsets := make([]float64, months)
	day := 0
	ref := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	for step := 0; step < months; step++ {
		switch calendar {
		case "360_day":
			offsets[step] = float64(day)
			day += 30
		case "noleap", "365_day":
			offsets[step] = float64(day)
			day += monthDays[step%12]
		case "standard", "gregorian":
			first := ref.AddDate(0, step, 0)
			offsets[step] = first.Sub(ref).Hours() / 24.0
		default:
			return nil, fmt.Errorf("unsupported calendar: %q", calendar)
		}
	}
	return offsets, nil
}

func writeGlobalAttrs(ds netcdf.Dataset, attrs map[string]string) error {
	for name, value := range attrs {
		if err := ds.Attr(name).WriteBytes([]byte(value)); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", name, err)
		}
	}
	return nil
}
