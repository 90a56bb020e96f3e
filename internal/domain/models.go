package domain

// PatientAttributes holds the demographic and administrative fields a
// prediction is made from. Constructed once per request and never mutated.
type PatientAttributes struct {
	Age                   int    `json:"edad"`
	Gender                string `json:"genero"`
	PopulationGroup       string `json:"ppertenencia"`
	ReferralSource        string `json:"fuente"`
	ResidenceDepartment   string `json:"deptoresiden"`
	ResidenceMunicipality string `json:"muniresiden"`
}

// BundleKind distinguishes the two model types served by the store.
type BundleKind int

const (
	// TopLevelBundle predicts a CIE-10 diagnostic group.
	TopLevelBundle BundleKind = iota
	// CategoryBundle predicts a specific cause code within one group.
	CategoryBundle
)

// String returns a human-readable bundle kind name.
func (k BundleKind) String() string {
	switch k {
	case TopLevelBundle:
		return "top-level"
	case CategoryBundle:
		return "category"
	default:
		return "unknown"
	}
}

// RankedPrediction is one entry of a top-N ranking: a decoded output label
// and its probability scaled to a 0-100 percentage, rounded to 2 decimals.
type RankedPrediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"prob"`
}

// EnrichedPrediction is a ranked prediction joined with its human-readable
// description text.
type EnrichedPrediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"prob"`
	Description string  `json:"descripcion"`
}

// Department is a reference-store residence department row.
type Department struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
}

// Municipality is a reference-store municipality row, keyed by department.
type Municipality struct {
	ID             int    `json:"id"`
	DepartamentoID int    `json:"departamento_id"`
	Nombre         string `json:"nombre"`
}
