// Package encoder maps a (year, month, medicine, season) request to the fixed-order numeric
// feature vector the quantity model was trained on.
package encoder

import (
	"github.com/Yafet01/drug-prescription-app/vocabulary"
)

// Feature vector layout. Any reordering silently corrupts predictions, keep FeatureNames in sync.
const (
	yearIndex     = 0
	monthIndex    = 1
	diseaseOffset = 2
	medicineStart = diseaseOffset + vocabulary.DiseaseCount
	seasonOffset  = medicineStart + vocabulary.MedicineCount
	dryIndex      = seasonOffset
	wetIndex      = seasonOffset + 1

	// FeatureCount is the width of a feature vector
	FeatureCount = wetIndex + 1

	// MonthsPerYear is the number of points in a trend
	MonthsPerYear = 12
)

// FeatureNames is the canonical column order expected by the model
var FeatureNames = [FeatureCount]string{
	"year",
	"month",
	"disease_pain",
	"disease_malaria",
	"disease_fever",
	"disease_arthritis",
	"disease_pneumonia",
	"disease_diabetes",
	"disease_asthma",
	"disease_gastritis",
	"disease_allergy",
	"medicine_aspirin",
	"medicine_ibuprofen",
	"medicine_artemether",
	"medicine_paracetamol",
	"medicine_diclofenac",
	"medicine_amoxicillin",
	"medicine_azithromycin",
	"medicine_metformin",
	"medicine_salbutamol",
	"medicine_omeprazole",
	"medicine_cetirizine",
	"season_dry",
	"season_wet",
}

// FeatureVector is one model input row
type FeatureVector [FeatureCount]float64

// Categorical returns the 20 disease and medicine indicator positions
func (fv FeatureVector) Categorical() []float64 {
	return fv[diseaseOffset:seasonOffset]
}

// Season returns the (dry, wet) pair
func (fv FeatureVector) Season() (dry, wet float64) {
	return fv[dryIndex], fv[wetIndex]
}

// Slice returns a copy of the vector as a plain slice, in canonical order
func (fv FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, fv[:])
	return out
}

// Catalog supplies the one-hot indicator block of a medicine
type Catalog interface {
	Indicators(medicine string) vocabulary.Indicators
}

// Encoder builds feature vectors from a catalog. It holds no mutable state.
type Encoder struct {
	catalog Catalog
}

// New creates an encoder backed by the given catalog
func New(catalog Catalog) *Encoder {
	return &Encoder{catalog: catalog}
}

// Default returns an encoder backed by the built-in vocabulary
func Default() *Encoder {
	return New(vocabulary.Default())
}

// Encode builds the feature vector for one (year, month, medicine, season) point.
// Unknown medicines yield an all-zero categorical block; it never fails.
func (e *Encoder) Encode(year, month int, medicine, season string) FeatureVector {
	var fv FeatureVector

	fv[yearIndex] = float64(year)
	fv[monthIndex] = float64(month)

	ind := e.catalog.Indicators(medicine)
	for i, set := range ind.Diseases {
		if set {
			fv[diseaseOffset+i] = 1
		}
	}
	for i, set := range ind.Medicines {
		if set {
			fv[medicineStart+i] = 1
		}
	}

	if ParseSeason(season) == Wet {
		fv[wetIndex] = 1
	} else {
		fv[dryIndex] = 1
	}

	return fv
}

// EncodeTrend builds one vector per calendar month 1..12 with year and season held constant
func (e *Encoder) EncodeTrend(year int, medicine, season string) []FeatureVector {
	rows := make([]FeatureVector, 0, MonthsPerYear)
	for month := 1; month <= MonthsPerYear; month++ {
		rows = append(rows, e.Encode(year, month, medicine, season))
	}
	return rows
}
