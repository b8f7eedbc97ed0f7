package usecase

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/r-ford/enso-api/internal/adapter/store"
	"github.com/r-ford/enso-api/internal/adapter/store/catalog"
	"github.com/r-ford/enso-api/internal/domain"
	"github.com/r-ford/enso-api/internal/observability"
)

// Usecase-level errors, matched by the HTTP layer with errors.Is.
var (
	// ErrInvalidRequest marks request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDatasetNotFound means no catalog entry matched the facet query.
	ErrDatasetNotFound = errors.New("no catalog entry matches the query")
	// ErrDatasetLoad means the dataset exists but could not be materialized.
	ErrDatasetLoad = errors.New("failed to load dataset")
)

// ComputeRequest encapsulates an index computation request.
type ComputeRequest struct {
	// Catalog facets (mutually exclusive with explicit paths).
	SourceID     string
	ExperimentID string
	MemberID     string
	GridLabel    string

	// Explicit dataset paths (mutually exclusive with facets).
	DatasetPath string
	AreaPath    string

	// Region selection: a preset name, or explicit bounds. Empty means
	// the Niño 3.4 default.
	RegionName string
	Region     *domain.Region

	// Optional climatology window, both "YYYY-MM" or both empty.
	ClimatologyStart string
	ClimatologyEnd   string

	// Threshold for the El Niño / La Niña annotation; 0 means the
	// configured default.
	Threshold float64
}

// ComputeResponse contains the chart-ready annotated index series.
type ComputeResponse struct {
	Region            RegionResponse    `json:"region"`
	Threshold         float64           `json:"threshold"`
	Climatology       *WindowResponse   `json:"climatology_window,omitempty"`
	Times             []string          `json:"times"`
	Index             []*float64        `json:"index"`
	PositiveExcess    []*float64        `json:"positive_excess"`
	NegativeExcess    []*float64        `json:"negative_excess"`
	PositiveThreshold []*float64        `json:"positive_threshold"`
	NegativeThreshold []*float64        `json:"negative_threshold"`
	Title             string            `json:"title"`
	Meta              map[string]string `json:"meta"`
}

// RegionResponse describes the bounding box actually used.
type RegionResponse struct {
	Name   string  `json:"name"`
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// WindowResponse echoes the climatology window.
type WindowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RegionResolver maps a preset name to a region.
type RegionResolver func(name string) (domain.Region, bool)

// ComputeUseCase orchestrates catalog lookup, dataset loading, index
// computation, and threshold annotation.
type ComputeUseCase struct {
	catalog          *catalog.Catalog
	loader           store.DatasetLoader
	resolveRegion    RegionResolver
	defaultThreshold float64
	metrics          *observability.Metrics
}

// NewComputeUseCase creates a new compute use case. The metrics argument
// may be nil (e.g. in tests).
func NewComputeUseCase(cat *catalog.Catalog, loader store.DatasetLoader, resolve RegionResolver, defaultThreshold float64, metrics *observability.Metrics) *ComputeUseCase {
	if resolve == nil {
		resolve = domain.RegionByName
	}
	if defaultThreshold <= 0 {
		defaultThreshold = domain.DefaultThreshold
	}
	return &ComputeUseCase{
		catalog:          cat,
		loader:           loader,
		resolveRegion:    resolve,
		defaultThreshold: defaultThreshold,
		metrics:          metrics,
	}
}

// Validate checks if the request is valid.
func (r *ComputeRequest) Validate() error {
	hasFacets := r.SourceID != "" || r.ExperimentID != "" || r.MemberID != "" || r.GridLabel != ""
	hasPaths := r.DatasetPath != ""

	if !hasFacets && !hasPaths {
		return fmt.Errorf("%w: either catalog facets or a dataset path must be provided", ErrInvalidRequest)
	}
	if hasFacets && hasPaths {
		return fmt.Errorf("%w: catalog facets and an explicit dataset path are mutually exclusive", ErrInvalidRequest)
	}
	if hasPaths && r.AreaPath == "" {
		return fmt.Errorf("%w: area_path is required with dataset_path", ErrInvalidRequest)
	}

	if r.RegionName != "" && r.Region != nil {
		return fmt.Errorf("%w: region name and explicit bounds are mutually exclusive", ErrInvalidRequest)
	}

	if (r.ClimatologyStart == "") != (r.ClimatologyEnd == "") {
		return fmt.Errorf("%w: climatology window needs both start and end", ErrInvalidRequest)
	}
	if r.ClimatologyStart != "" {
		start, err := time.Parse("2006-01", r.ClimatologyStart)
		if err != nil {
			return fmt.Errorf("%w: invalid climatology start (expected YYYY-MM): %v", ErrInvalidRequest, err)
		}
		end, err := time.Parse("2006-01", r.ClimatologyEnd)
		if err != nil {
			return fmt.Errorf("%w: invalid climatology end (expected YYYY-MM): %v", ErrInvalidRequest, err)
		}
		if end.Before(start) {
			return fmt.Errorf("%w: climatology window end precedes start", ErrInvalidRequest)
		}
	}

	if r.Threshold < 0 || math.IsNaN(r.Threshold) {
		return fmt.Errorf("%w: threshold must be positive", ErrInvalidRequest)
	}

	return nil
}

// Execute performs the index computation.
func (uc *ComputeUseCase) Execute(req ComputeRequest) (*ComputeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	region, err := uc.region(req)
	if err != nil {
		return nil, err
	}

	sstPath, areaPath, meta, err := uc.resolveDataset(req)
	if err != nil {
		return nil, err
	}

	field, weights, provenance, err := uc.loader.Load(sstPath, areaPath)
	if uc.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		uc.metrics.DatasetLoads.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}
	for k, v := range provenance {
		meta[k] = v
	}

	// Model output stamps monthly samples anywhere within the month;
	// snap them so climatology windows compare cleanly.
	if normalized, changed := domain.NormalizeCalendar(field.Time); changed {
		log.Debug().Str("dataset", sstPath).Msg("Normalized mid-month timestamps")
		field = &domain.GriddedField{Time: normalized, Lat: field.Lat, Lon: field.Lon, Values: field.Values}
	}

	opts := domain.ComputeOptions{}
	var windowResp *WindowResponse
	if req.ClimatologyStart != "" {
		winStart, _ := time.Parse("2006-01", req.ClimatologyStart)
		winEnd, _ := time.Parse("2006-01", req.ClimatologyEnd)
		opts.ClimatologyWindow = &domain.TimeWindow{Start: winStart, End: winEnd}
		windowResp = &WindowResponse{Start: req.ClimatologyStart, End: req.ClimatologyEnd}
	}

	series, err := domain.ComputeIndex(field, weights, region, opts)
	if err != nil {
		return nil, err
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = uc.defaultThreshold
	}
	annotated, err := domain.AnnotateThresholds(series, threshold)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	}

	return buildResponse(region, annotated, windowResp, meta), nil
}

// SearchCatalog returns the catalog entries matching the query.
func (uc *ComputeUseCase) SearchCatalog(q catalog.Query) []catalog.Entry {
	if uc.catalog == nil {
		return nil
	}
	if uc.metrics != nil {
		uc.metrics.CatalogSearches.Inc()
	}
	return uc.catalog.Search(q)
}

// region resolves the requested region, defaulting to Niño 3.4.
func (uc *ComputeUseCase) region(req ComputeRequest) (domain.Region, error) {
	if req.Region != nil {
		r := *req.Region
		if r.Name == "" {
			r.Name = "custom"
		}
		if err := r.Validate(); err != nil {
			return domain.Region{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return r, nil
	}
	if req.RegionName == "" {
		return domain.Nino34(), nil
	}
	r, ok := uc.resolveRegion(req.RegionName)
	if !ok {
		return domain.Region{}, fmt.Errorf("%w: unknown region %q", ErrInvalidRequest, req.RegionName)
	}
	return r, nil
}

// resolveDataset maps the request to concrete dataset paths, via the
// catalog for facet queries.
func (uc *ComputeUseCase) resolveDataset(req ComputeRequest) (string, string, map[string]string, error) {
	meta := make(map[string]string)

	if req.DatasetPath != "" {
		return req.DatasetPath, req.AreaPath, meta, nil
	}

	if uc.catalog == nil {
		return "", "", nil, fmt.Errorf("%w: no catalog configured", ErrDatasetNotFound)
	}

	query := catalog.Query{
		SourceID:     req.SourceID,
		ExperimentID: req.ExperimentID,
		MemberID:     req.MemberID,
		GridLabel:    req.GridLabel,
	}
	if uc.metrics != nil {
		uc.metrics.CatalogSearches.Inc()
	}
	entries := uc.catalog.Search(query)
	if len(entries) == 0 {
		return "", "", nil, fmt.Errorf("%w: source_id=%q experiment_id=%q member_id=%q",
			ErrDatasetNotFound, req.SourceID, req.ExperimentID, req.MemberID)
	}

	entry := entries[0]
	if len(entries) > 1 {
		meta["catalog_matches"] = fmt.Sprintf("%d", len(entries))
	}
	meta["source_id"] = entry.SourceID
	meta["experiment_id"] = entry.ExperimentID
	meta["member_id"] = entry.MemberID
	return entry.Path, entry.AreaPath, meta, nil
}

// buildResponse converts the annotated series to its JSON form, mapping
// undefined entries to nulls.
func buildResponse(region domain.Region, annotated domain.ThresholdAnnotatedSeries, window *WindowResponse, meta map[string]string) *ComputeResponse {
	n := annotated.Index.Len()
	resp := &ComputeResponse{
		Region: RegionResponse{
			Name:   region.Name,
			LatMin: region.LatMin,
			LatMax: region.LatMax,
			LonMin: region.LonMin,
			LonMax: region.LonMax,
		},
		Threshold:         annotated.Threshold,
		Climatology:       window,
		Times:             make([]string, n),
		Index:             make([]*float64, n),
		PositiveExcess:    make([]*float64, n),
		NegativeExcess:    make([]*float64, n),
		PositiveThreshold: make([]*float64, n),
		NegativeThreshold: make([]*float64, n),
		Title:             buildTitle(region, meta),
		Meta:              meta,
	}

	for i := 0; i < n; i++ {
		resp.Times[i] = annotated.Index.Time[i].UTC().Format(time.RFC3339)
		resp.Index[i] = nullable(annotated.Index.Values[i])
		resp.PositiveExcess[i] = nullable(annotated.PositiveExcess[i])
		resp.NegativeExcess[i] = nullable(annotated.NegativeExcess[i])
		resp.PositiveThreshold[i] = nullable(annotated.PositiveThreshold[i])
		resp.NegativeThreshold[i] = nullable(annotated.NegativeThreshold[i])
	}
	return resp
}

// buildTitle assembles a human-readable chart title from provenance.
func buildTitle(region domain.Region, meta map[string]string) string {
	parts := make([]string, 0, 3)
	if v := meta["source_id"]; v != "" {
		parts = append(parts, v)
	}
	if v := meta["experiment_id"]; v != "" {
		parts = append(parts, v)
	}
	if v := meta["member_id"]; v != "" {
		parts = append(parts, "member "+v)
	}
	label := strings.Join(parts, ", ")
	if label == "" {
		return fmt.Sprintf("ENSO index (%s)", region.Name)
	}
	return fmt.Sprintf("ENSO index (%s) - %s", region.Name, label)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	rounded := roundToDecimal(v, 4)
	return &rounded
}

// roundToDecimal rounds to a fixed number of decimal places.
func roundToDecimal(val float64, precision int) float64 {
	multiplier := math.Pow(10, float64(precision))
	return math.Round(val*multiplier) / multiplier
}
