// Package query implements the table view over a record collection:
// free-text filtering, stable single-field sorting, and fixed-size
// pagination. All operations are pure; the input slice is never mutated.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tphummel/insight_hub/internal/models"
)

// PageSize is the fixed number of records per table page.
const PageSize = 10

// Params selects one page of the table view.
type Params struct {
	Search    string
	SortField string
	Ascending bool
	Page      int
}

// Result is one page of the filtered and sorted collection, with the match
// count over all pages.
type Result struct {
	Records      []models.EquipmentRecord `json:"records"`
	TotalMatches int                      `json:"total_matches"`
	Page         int                      `json:"page"`
	TotalPages   int                      `json:"total_pages"`
	PageSize     int                      `json:"page_size"`
}

// Run filters, sorts, and paginates records according to p. Filtering and
// sorting are global over all matches; only the slicing into pages happens
// last. The page index is clamped to the valid range; an empty match set
// yields page 0 with no records.
func Run(records []models.EquipmentRecord, p Params) Result {
	matched := filter(records, p.Search)
	if p.SortField != "" {
		sortRecords(matched, p.SortField, p.Ascending)
	}

	total := len(matched)
	totalPages := (total + PageSize - 1) / PageSize

	page := p.Page
	if page < 0 {
		page = 0
	}
	if totalPages > 0 && page > totalPages-1 {
		page = totalPages - 1
	}
	if totalPages == 0 {
		page = 0
	}

	start := page * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Result{
		Records:      matched[start:end],
		TotalMatches: total,
		Page:         page,
		TotalPages:   totalPages,
		PageSize:     PageSize,
	}
}

// Toggle applies the sort-direction rule: selecting a new field sorts it
// ascending, re-selecting the current field flips the direction.
func Toggle(currentField string, currentAsc bool, selected string) (string, bool) {
	if selected == currentField {
		return currentField, !currentAsc
	}
	return selected, true
}

// HasField reports whether any record in the collection carries the named
// column. Fixed fields are always present; dynamic columns only when some
// record has them.
func HasField(records []models.EquipmentRecord, name string) bool {
	if len(records) == 0 {
		var zero models.EquipmentRecord
		_, ok := zero.Field(name)
		return ok
	}
	for _, r := range records {
		if _, ok := r.Field(name); ok {
			return true
		}
	}
	return false
}

// filter returns the records whose rendered field values contain the query
// as a case-insensitive substring. An empty query matches everything.
func filter(records []models.EquipmentRecord, search string) []models.EquipmentRecord {
	if search == "" {
		out := make([]models.EquipmentRecord, len(records))
		copy(out, records)
		return out
	}

	needle := strings.ToLower(search)
	out := make([]models.EquipmentRecord, 0, len(records))
	for _, r := range records {
		for _, v := range r.Fields() {
			if strings.Contains(strings.ToLower(render(v)), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// sortRecords stably sorts by one field: numerically when both values are
// numbers, otherwise by locale-aware comparison of their string forms.
// Records missing the field sort as empty strings.
func sortRecords(records []models.EquipmentRecord, field string, asc bool) {
	coll := collate.New(language.English)
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].Field(field)
		b, _ := records[j].Field(field)

		af, aNum := a.(float64)
		bf, bNum := b.(float64)
		var less bool
		if aNum && bNum {
			less = af < bf
		} else {
			less = coll.CompareString(render(a), render(b)) < 0
		}
		if asc {
			return less
		}
		if aNum && bNum {
			return bf < af
		}
		return coll.CompareString(render(b), render(a)) < 0
	})
}

// render is the display text of a field value, matching what the table
// shows: numbers without a trailing ".0", everything else as-is.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
