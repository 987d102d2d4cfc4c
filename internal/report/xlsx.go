package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tphummel/insight_hub/internal/models"
)

// recordColumns are the fixed columns of the Records sheet, in order.
var recordColumns = []struct {
	header string
	value  func(models.EquipmentRecord) any
}{
	{"Equipment ID", func(r models.EquipmentRecord) any { return r.EquipmentID }},
	{"Type", func(r models.EquipmentRecord) any { return r.EquipmentType }},
	{"Manufacturer", func(r models.EquipmentRecord) any { return r.Manufacturer }},
	{"Model", func(r models.EquipmentRecord) any { return r.Model }},
	{"Status", func(r models.EquipmentRecord) any { return r.Status }},
	{"Location", func(r models.EquipmentRecord) any { return r.Location }},
	{"Installed", func(r models.EquipmentRecord) any { return r.InstallationDate }},
	{"Last Maintenance", func(r models.EquipmentRecord) any { return r.LastMaintenance }},
	{"Cost", func(r models.EquipmentRecord) any { return r.Cost }},
	{"Efficiency", func(r models.EquipmentRecord) any { return r.EfficiencyRating }},
	{"Runtime Hours", func(r models.EquipmentRecord) any { return r.RuntimeHours }},
}

// XLSX renders the current view as a workbook: a Summary sheet with the
// aggregate statistics and a Records sheet with every record's fixed
// columns.
func XLSX(filename string, sum models.DataSummary, records []models.EquipmentRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "Summary"
	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(summarySheet, "A1", "Equipment Analytics Summary")
	f.SetCellValue(summarySheet, "A2", "Source File")
	f.SetCellValue(summarySheet, "B2", filename)
	f.SetCellValue(summarySheet, "A3", "Total Equipment")
	f.SetCellValue(summarySheet, "B3", sum.TotalCount)
	f.SetCellValue(summarySheet, "A4", "Average Cost")
	f.SetCellValue(summarySheet, "B4", sum.Averages.Cost)
	f.SetCellValue(summarySheet, "A5", "Average Efficiency")
	f.SetCellValue(summarySheet, "B5", sum.Averages.EfficiencyRating)
	f.SetCellValue(summarySheet, "A6", "Average Runtime Hours")
	f.SetCellValue(summarySheet, "B6", sum.Averages.RuntimeHours)

	row := 8
	row = writeDistribution(f, summarySheet, row, "Equipment Types", sum.EquipmentTypeDistribution)
	row = writeDistribution(f, summarySheet, row, "Statuses", sum.StatusDistribution)
	writeDistribution(f, summarySheet, row, "Manufacturers", sum.ManufacturerDistribution)

	recordSheet := "Records"
	if _, err := f.NewSheet(recordSheet); err != nil {
		return nil, fmt.Errorf("create records sheet: %w", err)
	}
	for i, col := range recordColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(recordSheet, cell, col.header)
	}
	for i, r := range records {
		for j, col := range recordColumns {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(recordSheet, cell, col.value(r))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDistribution(f *excelize.File, sheet string, row int, title string, dist map[string]int) int {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	f.SetCellValue(sheet, cell, title)
	row++
	for _, name := range sortedByCount(dist) {
		nameCell, _ := excelize.CoordinatesToCellName(1, row)
		countCell, _ := excelize.CoordinatesToCellName(2, row)
		f.SetCellValue(sheet, nameCell, name)
		f.SetCellValue(sheet, countCell, dist[name])
		row++
	}
	return row + 1
}
