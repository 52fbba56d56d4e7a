// Package vocabulary holds the fixed medicine and disease vocabulary the quantity model was
// trained on, together with the one-hot indicator table derived from it.
package vocabulary

import (
	"fmt"
	"slices"
)

const (
	// DiseaseCount is the number of disease-category indicators in a feature vector
	DiseaseCount = 9
	// MedicineCount is the number of medicine-specific indicators in a feature vector
	MedicineCount = 11
)

// Category is a disease category. Key is the lower-case feature suffix, Label the display name.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Medicine is a known medicine and the disease category it treats.
type Medicine struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Disease string `json:"disease"`
}

// Indicators is the one-hot block of a medicine: one flag per disease category and one flag per
// (category, medicine) combination, both in canonical order.
type Indicators struct {
	Diseases  [DiseaseCount]bool
	Medicines [MedicineCount]bool
}

// Order matters: it is the column order of the trained model.
var categories = [DiseaseCount]Category{
	{Key: "pain", Label: "Pain"},
	{Key: "malaria", Label: "Malaria"},
	{Key: "fever", Label: "Fever"},
	{Key: "arthritis", Label: "Arthritis"},
	{Key: "pneumonia", Label: "Pneumonia"},
	{Key: "diabetes", Label: "Diabetes"},
	{Key: "asthma", Label: "Asthma"},
	{Key: "gastritis", Label: "Gastritis"},
	{Key: "allergy", Label: "Allergy"},
}

var medicines = [MedicineCount]Medicine{
	{Name: "Aspirin", Key: "aspirin", Disease: "Pain"},
	{Name: "Ibuprofen", Key: "ibuprofen", Disease: "Pain"},
	{Name: "Artemether", Key: "artemether", Disease: "Malaria"},
	{Name: "Paracetamol", Key: "paracetamol", Disease: "Fever"},
	{Name: "Diclofenac", Key: "diclofenac", Disease: "Arthritis"},
	{Name: "Amoxicillin", Key: "amoxicillin", Disease: "Pneumonia"},
	{Name: "Azithromycin", Key: "azithromycin", Disease: "Pneumonia"},
	{Name: "Metformin", Key: "metformin", Disease: "Diabetes"},
	{Name: "Salbutamol", Key: "salbutamol", Disease: "Asthma"},
	{Name: "Omeprazole", Key: "omeprazole", Disease: "Gastritis"},
	{Name: "Cetirizine", Key: "cetirizine", Disease: "Allergy"},
}

// Vocabulary is the read-only lookup table. The zero value is not usable, use Default.
type Vocabulary struct {
	categories []Category
	medicines  []Medicine
	table      map[string]Indicators
	diseaseOf  map[string]string
}

var defaultVocabulary = build()

// Default returns the process-wide vocabulary. It is immutable and safe for concurrent use.
func Default() *Vocabulary {
	return defaultVocabulary
}

func build() *Vocabulary {
	v := &Vocabulary{
		categories: categories[:],
		medicines:  medicines[:],
		table:      make(map[string]Indicators, MedicineCount),
		diseaseOf:  make(map[string]string, MedicineCount),
	}

	for i, m := range medicines {
		var ind Indicators
		if c := categoryIndex(m.Disease); c >= 0 {
			ind.Diseases[c] = true
		}
		ind.Medicines[i] = true
		v.table[m.Name] = ind
		v.diseaseOf[m.Name] = m.Disease
	}

	return v
}

func categoryIndex(label string) int {
	for i, c := range categories {
		if c.Label == label {
			return i
		}
	}
	return -1
}

// DiseaseOf returns the disease label of a medicine. ok is false for unknown medicines.
func (v *Vocabulary) DiseaseOf(medicine string) (string, bool) {
	disease, ok := v.diseaseOf[medicine]
	return disease, ok
}

// Indicators returns the one-hot block for a medicine. Unknown medicines get an all-false block.
func (v *Vocabulary) Indicators(medicine string) Indicators {
	return v.table[medicine]
}

// IsKnown reports whether the medicine is part of the vocabulary
func (v *Vocabulary) IsKnown(medicine string) bool {
	_, ok := v.table[medicine]
	return ok
}

// Medicines returns the medicines in canonical order
func (v *Vocabulary) Medicines() []Medicine {
	return slices.Clone(v.medicines)
}

// Diseases returns the disease categories in canonical order
func (v *Vocabulary) Diseases() []Category {
	return slices.Clone(v.categories)
}

// Validate checks that every known medicine sets exactly one disease flag and one medicine flag,
// and that the medicine flag sits under the medicine's own disease category.
func (v *Vocabulary) Validate() error {
	if len(v.table) != len(v.medicines) {
		return fmt.Errorf("duplicate medicine names: %d entries for %d medicines", len(v.table), len(v.medicines))
	}

	for i, m := range v.medicines {
		ind := v.table[m.Name]

		diseaseSet := countTrue(ind.Diseases[:])
		if diseaseSet != 1 {
			return fmt.Errorf("medicine %s sets %d disease indicators, want 1", m.Name, diseaseSet)
		}
		medicineSet := countTrue(ind.Medicines[:])
		if medicineSet != 1 {
			return fmt.Errorf("medicine %s sets %d medicine indicators, want 1", m.Name, medicineSet)
		}
		if !ind.Medicines[i] {
			return fmt.Errorf("medicine %s indicator is not at position %d", m.Name, i)
		}

		c := categoryIndex(m.Disease)
		if c < 0 {
			return fmt.Errorf("medicine %s has unknown disease %q", m.Name, m.Disease)
		}
		if !ind.Diseases[c] {
			return fmt.Errorf("medicine %s does not set its own disease indicator %s", m.Name, m.Disease)
		}
	}

	return nil
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
