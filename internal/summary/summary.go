// Package summary reduces a record collection to the aggregate statistics
// shown on the dashboard: counts, category distributions, and averages.
package summary

import (
	"math"

	"github.com/tphummel/insight_hub/internal/models"
)

// Summarize computes the aggregate view of records in a single pass.
//
// Averages are rounded the way the dashboard displays them: cost and runtime
// hours to the nearest whole number, efficiency rating to one decimal place.
// An empty input yields a summary with zero counts, zero averages, and empty
// distribution maps; no division takes place.
func Summarize(records []models.EquipmentRecord) models.DataSummary {
	s := models.DataSummary{
		EquipmentTypeDistribution: make(map[string]int),
		StatusDistribution:        make(map[string]int),
		ManufacturerDistribution:  make(map[string]int),
	}

	var totalCost, totalEfficiency, totalRuntime float64
	for _, r := range records {
		s.EquipmentTypeDistribution[r.EquipmentType]++
		s.StatusDistribution[r.Status]++
		s.ManufacturerDistribution[r.Manufacturer]++
		totalCost += r.Cost
		totalEfficiency += r.EfficiencyRating
		totalRuntime += r.RuntimeHours
	}

	s.TotalCount = len(records)
	if s.TotalCount == 0 {
		return s
	}

	n := float64(s.TotalCount)
	s.Averages = models.Averages{
		Cost:             math.Round(totalCost / n),
		EfficiencyRating: math.Round(totalEfficiency/n*10) / 10,
		RuntimeHours:     math.Round(totalRuntime / n),
	}
	return s
}
