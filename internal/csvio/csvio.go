// Package csvio parses uploaded CSV files into equipment records.
//
// The first row is the header and defines the column names; every following
// non-blank row becomes one record. Column names are normalized the same way
// the upstream API normalizes them (trimmed, lowercased, spaces to
// underscores). A structurally malformed file fails as a whole rather than
// dropping rows silently.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tphummel/insight_hub/internal/models"
)

// Numeric fixed columns; a non-empty cell in these must parse as a number.
var numericColumns = map[string]bool{
	"cost":              true,
	"efficiency_rating": true,
	"runtime_hours":     true,
}

// ParseError describes a file rejected by the CSV header contract.
type ParseError struct {
	Line int // 1-based line number when known, 0 otherwise
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv parse error on line %d: %s", e.Line, e.Msg)
	}
	return "csv parse error: " + e.Msg
}

// Parse reads a whole CSV document from r and returns one record per data
// row. Columns with no fixed field are carried as dynamic fields:
// numeric-looking values as numbers, everything else as strings. Any
// structural failure (missing header, wrong column count, unparseable
// numeric cell) returns a *ParseError and no records.
func Parse(r io.Reader) ([]models.EquipmentRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	rawHeader, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Msg: "file is empty, header row required"}
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}

	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = normalizeColumn(h)
	}

	records := make([]models.EquipmentRecord, 0, 64)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}

		var rec models.EquipmentRecord
		for i, cell := range row {
			col := header[i]
			if col == "" {
				continue
			}
			value, err := cellValue(col, cell)
			if err != nil {
				line, _ := cr.FieldPos(i)
				return nil, &ParseError{Line: line, Msg: err.Error()}
			}
			rec.Set(col, value)
		}
		if rec.ID == "" {
			rec.ID = rec.EquipmentID
		}
		records = append(records, rec)
	}
	return records, nil
}

// cellValue types a cell: fixed numeric columns must hold numbers, other
// columns get a number when the text looks like one and the raw string
// otherwise.
func cellValue(col, cell string) (any, error) {
	trimmed := strings.TrimSpace(cell)
	if numericColumns[col] {
		if trimmed == "" {
			return float64(0), nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %q is not a number", col, trimmed)
		}
		return f, nil
	}
	if trimmed != "" {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, nil
		}
	}
	return trimmed, nil
}

func normalizeColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

func wrapCSVError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Msg: perr.Err.Error()}
	}
	return &ParseError{Msg: err.Error()}
}
