// Package demo generates plausible equipment datasets so a fresh local
// instance has something to show before the first real upload.
package demo

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tphummel/insight_hub/internal/datasource"
	"github.com/tphummel/insight_hub/internal/models"
)

var (
	equipmentTypes = []string{"Pump", "Motor", "Compressor", "Generator", "Conveyor", "Valve"}
	manufacturers  = []string{"Siemens", "ABB", "GE", "Caterpillar", "Bosch", "Schneider"}
	statuses       = []string{models.StatusOperational, models.StatusMaintenance, models.StatusFaulty, models.StatusRetired}
	locations      = []string{"Building A", "Building B", "Warehouse 1", "Plant Floor", "Utility Room"}

	filenames = []string{
		"q1_equipment_data.csv",
		"maintenance_report_jan.csv",
		"factory_a_inventory.csv",
		"annual_equipment_audit.csv",
		"equipment_updates_dec.csv",
	}
)

// Records generates n demo equipment records from rng.
func Records(rng *rand.Rand, n int) []models.EquipmentRecord {
	out := make([]models.EquipmentRecord, n)
	for i := range out {
		id := fmt.Sprintf("EQ-%04d", i+1)
		installed := time.Date(2018+rng.Intn(6), time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
		maintained := time.Date(2024, time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
		out[i] = models.EquipmentRecord{
			ID:               id,
			EquipmentID:      id,
			EquipmentType:    equipmentTypes[rng.Intn(len(equipmentTypes))],
			Manufacturer:     manufacturers[rng.Intn(len(manufacturers))],
			Model:            fmt.Sprintf("Model-%d", rng.Intn(100)),
			InstallationDate: installed.Format("2006-01-02"),
			LastMaintenance:  maintained.Format("2006-01-02"),
			Status:           statuses[rng.Intn(len(statuses))],
			Location:         locations[rng.Intn(len(locations))],
			Cost:             float64(rng.Intn(50000) + 5000),
			EfficiencyRating: float64(rng.Intn(301)+700) / 10,
			RuntimeHours:     float64(rng.Intn(15000) + 1000),
		}
	}
	return out
}

// Seed imports one demo dataset per known filename into src, staggered back
// in time so the history panel shows a spread of upload dates. The oldest
// file is imported first so the history order matches upload order.
func Seed(ctx context.Context, src *datasource.Local, rng *rand.Rand) error {
	now := time.Now().UTC()
	for i := len(filenames) - 1; i >= 0; i-- {
		records := Records(rng, rng.Intn(100)+30)
		uploadedAt := now.Add(-time.Duration(i*24) * time.Hour)
		if _, err := src.Import(ctx, filenames[i], records, uploadedAt); err != nil {
			return fmt.Errorf("seed %s: %w", filenames[i], err)
		}
	}
	return nil
}
