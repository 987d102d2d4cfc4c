// Package report renders the current dataset view into downloadable
// documents: a PDF analytics report and an XLSX workbook.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/tphummel/insight_hub/internal/models"
)

// maxPDFRecords caps the raw-data table in the PDF report.
const maxPDFRecords = 50

// PDF renders the analytics report: summary statistics, the type and status
// distributions with percentages, and the first 50 records.
func PDF(filename string, sum models.DataSummary, records []models.EquipmentRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetMargins(10, 10, 10)

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(190, 12, "Equipment Analytics Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, "Generated: "+time.Now().Format("Monday, January 2, 2006"), "", 1, "C", false, 0, "")
	if filename != "" {
		pdf.CellFormat(190, 6, "Source: "+filename, "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	sectionTitle(pdf, "Summary Statistics")
	statRow(pdf, "Metric", "Value", true)
	statRow(pdf, "Total Equipment", fmt.Sprintf("%d", sum.TotalCount), false)
	statRow(pdf, "Average Cost", fmt.Sprintf("$%.0f", sum.Averages.Cost), false)
	statRow(pdf, "Average Efficiency", fmt.Sprintf("%.1f%%", sum.Averages.EfficiencyRating), false)
	statRow(pdf, "Average Runtime", fmt.Sprintf("%.0f h", sum.Averages.RuntimeHours), false)
	pdf.Ln(8)

	distributionTable(pdf, "Equipment Type Distribution", "Type", sum.EquipmentTypeDistribution, sum.TotalCount)
	distributionTable(pdf, "Status Distribution", "Status", sum.StatusDistribution, sum.TotalCount)

	pdf.AddPage()
	sectionTitle(pdf, fmt.Sprintf("Equipment Data (First %d Records)", maxPDFRecords))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(35, 7, "ID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Type", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, "Status", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 7, "Location", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, "Cost", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for i, r := range records {
		if i >= maxPDFRecords {
			break
		}
		pdf.CellFormat(35, 6, r.EquipmentID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, r.EquipmentType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, models.NormalizeStatus(r.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, r.Location, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("$%.0f", r.Cost), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
}

func statRow(pdf *gofpdf.Fpdf, label, value string, header bool) {
	if header {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(248, 249, 250)
	} else {
		pdf.SetFont("Arial", "", 10)
	}
	pdf.CellFormat(70, 8, label, "1", 0, "L", header, 0, "")
	pdf.CellFormat(55, 8, value, "1", 1, "L", header, 0, "")
}

func distributionTable(pdf *gofpdf.Fpdf, title, label string, dist map[string]int, total int) {
	if len(dist) == 0 {
		return
	}

	sectionTitle(pdf, title)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(227, 242, 253)
	pdf.CellFormat(70, 8, label, "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Count", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Percentage", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, name := range sortedByCount(dist) {
		count := dist[name]
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		pdf.CellFormat(70, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.1f%%", pct), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(8)
}

// sortedByCount orders distribution keys by descending count, then name,
// so report output is deterministic.
func sortedByCount(dist map[string]int) []string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if dist[keys[i]] != dist[keys[j]] {
			return dist[keys[i]] > dist[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
