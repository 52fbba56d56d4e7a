package records

import (
	"slices"
	"strings"
)

// MedicineStats aggregates the records of one medicine
type MedicineStats struct {
	Medicine     string  `json:"medicine"`
	Records      int     `json:"records"`
	MeanQuantity float64 `json:"mean_quantity"`
	MaxQuantity  float64 `json:"max_quantity"`
}

// Summary holds the Explore statistics of a record set
type Summary struct {
	TotalRecords    int             `json:"total_records"`
	UniqueMedicines int             `json:"unique_medicines"`
	MeanQuantity    float64         `json:"mean_quantity"`
	MaxQuantity     float64         `json:"max_quantity"`
	Medicines       []MedicineStats `json:"medicines"`
}

// Summarize computes the statistics of records. Per-medicine stats are sorted by medicine name.
func Summarize(records []Record) Summary {
	summary := Summary{Medicines: []MedicineStats{}}
	if len(records) == 0 {
		return summary
	}

	byMedicine := make(map[string]*MedicineStats)
	var total float64

	for _, r := range records {
		total += r.Quantity
		if summary.TotalRecords == 0 || r.Quantity > summary.MaxQuantity {
			summary.MaxQuantity = r.Quantity
		}
		summary.TotalRecords++

		stats, ok := byMedicine[r.Medicine]
		if !ok {
			stats = &MedicineStats{Medicine: r.Medicine, MaxQuantity: r.Quantity}
			byMedicine[r.Medicine] = stats
		}
		stats.Records++
		stats.MeanQuantity += r.Quantity
		if r.Quantity > stats.MaxQuantity {
			stats.MaxQuantity = r.Quantity
		}
	}

	summary.MeanQuantity = total / float64(summary.TotalRecords)
	summary.UniqueMedicines = len(byMedicine)

	for _, stats := range byMedicine {
		stats.MeanQuantity /= float64(stats.Records)
		summary.Medicines = append(summary.Medicines, *stats)
	}
	slices.SortFunc(summary.Medicines, func(a, b MedicineStats) int {
		return strings.Compare(a.Medicine, b.Medicine)
	})

	return summary
}

// Filter returns the records whose medicine is in medicines. An empty selection keeps every record.
func Filter(records []Record, medicines []string) []Record {
	if len(medicines) == 0 {
		return records
	}

	keep := make(map[string]struct{}, len(medicines))
	for _, m := range medicines {
		keep[m] = struct{}{}
	}

	filtered := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := keep[r.Medicine]; ok {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
