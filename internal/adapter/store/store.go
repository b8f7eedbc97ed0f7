package store

import "github.com/r-ford/enso-api/internal/domain"

// Provenance carries free-form dataset attributes (source identifier,
// ensemble member, experiment) used only for downstream labeling. The
// computation never inspects these.
type Provenance map[string]string

// DatasetLoader materializes a gridded SST field and its matching area
// weights from a pair of dataset paths.
type DatasetLoader interface {
	Load(sstPath, areaPath string) (*domain.GriddedField, domain.AreaWeights, Provenance, error)
}
