package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r-ford/enso-api/internal/adapter/store/catalog"
	"github.com/r-ford/enso-api/internal/domain"
	"github.com/r-ford/enso-api/internal/observability"
	"github.com/r-ford/enso-api/internal/usecase"
)

// Handler handles HTTP requests for the ENSO index service.
type Handler struct {
	computeUC *usecase.ComputeUseCase
	regions   []domain.Region
	metrics   *observability.Metrics
}

// NewHandler creates a new HTTP handler. The regions slice is the full
// preset list (built-in plus configured extras); metrics may be nil.
func NewHandler(computeUC *usecase.ComputeUseCase, regions []domain.Region, metrics *observability.Metrics) *Handler {
	return &Handler{
		computeUC: computeUC,
		regions:   regions,
		metrics:   metrics,
	}
}

// GetIndex handles GET /v1/enso/index.
func (h *Handler) GetIndex(c *gin.Context) {
	req := usecase.ComputeRequest{
		SourceID:         c.Query("source_id"),
		ExperimentID:     c.Query("experiment_id"),
		MemberID:         c.Query("member_id"),
		GridLabel:        c.Query("grid_label"),
		DatasetPath:      c.Query("dataset_path"),
		AreaPath:         c.Query("area_path"),
		RegionName:       c.Query("region"),
		ClimatologyStart: c.Query("climatology_start"),
		ClimatologyEnd:   c.Query("climatology_end"),
	}

	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			h.fail(c, "index", http.StatusBadRequest, "invalid threshold: "+err.Error())
			return
		}
		req.Threshold = threshold
	}

	region, ok, err := parseCustomRegion(c)
	if err != nil {
		h.fail(c, "index", http.StatusBadRequest, err.Error())
		return
	}
	if ok {
		req.Region = region
	}

	response, err := h.computeUC.Execute(req)
	if err != nil {
		h.fail(c, "index", statusFor(err), err.Error())
		return
	}

	h.count("index", "ok")
	c.JSON(http.StatusOK, response)
}

// GetRegions handles GET /v1/regions.
func (h *Handler) GetRegions(c *gin.Context) {
	type regionInfo struct {
		Name   string  `json:"name"`
		LatMin float64 `json:"lat_min"`
		LatMax float64 `json:"lat_max"`
		LonMin float64 `json:"lon_min"`
		LonMax float64 `json:"lon_max"`
	}

	response := make([]regionInfo, len(h.regions))
	for i, r := range h.regions {
		response[i] = regionInfo{
			Name:   r.Name,
			LatMin: r.LatMin,
			LatMax: r.LatMax,
			LonMin: r.LonMin,
			LonMax: r.LonMax,
		}
	}

	h.count("regions", "ok")
	c.JSON(http.StatusOK, gin.H{
		"regions": response,
		"count":   len(response),
	})
}

// GetCatalog handles GET /v1/catalog.
func (h *Handler) GetCatalog(c *gin.Context) {
	query := catalog.Query{
		ActivityID:   c.Query("activity_id"),
		SourceID:     c.Query("source_id"),
		ExperimentID: c.Query("experiment_id"),
		MemberID:     c.Query("member_id"),
		TableID:      c.Query("table_id"),
		VariableID:   c.Query("variable_id"),
		GridLabel:    c.Query("grid_label"),
	}

	entries := h.computeUC.SearchCatalog(query)

	type entryInfo struct {
		ActivityID    string `json:"activity_id"`
		InstitutionID string `json:"institution_id"`
		SourceID      string `json:"source_id"`
		ExperimentID  string `json:"experiment_id"`
		MemberID      string `json:"member_id"`
		TableID       string `json:"table_id"`
		VariableID    string `json:"variable_id"`
		GridLabel     string `json:"grid_label"`
	}

	response := make([]entryInfo, len(entries))
	for i, e := range entries {
		response[i] = entryInfo{
			ActivityID:    e.ActivityID,
			InstitutionID: e.InstitutionID,
			SourceID:      e.SourceID,
			ExperimentID:  e.ExperimentID,
			MemberID:      e.MemberID,
			TableID:       e.TableID,
			VariableID:    e.VariableID,
			GridLabel:     e.GridLabel,
		}
	}

	h.count("catalog", "ok")
	c.JSON(http.StatusOK, gin.H{
		"datasets": response,
		"count":    len(response),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// parseCustomRegion reads explicit bounding-box parameters. All four
// must be present together.
func parseCustomRegion(c *gin.Context) (*domain.Region, bool, error) {
	params := []string{"lat_min", "lat_max", "lon_min", "lon_max"}
	values := make([]float64, len(params))

	present := 0
	for i, name := range params {
		s := c.Query(name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, errors.New("invalid " + name + ": " + err.Error())
		}
		values[i] = v
		present++
	}

	if present == 0 {
		return nil, false, nil
	}
	if present != len(params) {
		return nil, false, errors.New("custom region needs all of lat_min, lat_max, lon_min, lon_max")
	}

	return &domain.Region{
		Name:   "custom",
		LatMin: values[0],
		LatMax: values[1],
		LonMin: values[2],
		LonMax: values[3],
	}, true, nil
}

// statusFor maps usecase and domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrDatasetLoad):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrShapeMismatch),
		errors.Is(err, domain.ErrEmptyRegionSelection),
		errors.Is(err, domain.ErrDegenerateNormalization),
		errors.Is(err, domain.ErrInvalidThreshold),
		errors.Is(err, domain.ErrInsufficientTimeLength):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, endpoint string, status int, message string) {
	outcome := "client_error"
	if status >= 500 {
		outcome = "server_error"
	}
	h.count(endpoint, outcome)
	c.JSON(status, gin.H{"error": message})
}

func (h *Handler) count(endpoint, outcome string) {
	if h.metrics != nil {
		h.metrics.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	}
}
