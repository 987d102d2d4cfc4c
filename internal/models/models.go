package models

import (
	"encoding/json"
	"fmt"
)

// Recognized equipment status values.
const (
	StatusOperational = "operational"
	StatusMaintenance = "maintenance"
	StatusFaulty      = "faulty"
	StatusRetired     = "retired"
)

// ValidStatuses is the set of allowed equipment status values.
var ValidStatuses = map[string]bool{
	StatusOperational: true,
	StatusMaintenance: true,
	StatusFaulty:      true,
	StatusRetired:     true,
}

// NormalizeStatus returns s when it is a recognized status and the
// retired-style default otherwise. Unknown statuses are displayed, never
// rejected.
func NormalizeStatus(s string) string {
	if ValidStatuses[s] {
		return s
	}
	return StatusRetired
}

// EquipmentRecord is one piece of equipment in an uploaded dataset.
//
// CSV columns with no fixed field land in Extra, keyed by column name, with
// string or float64 values. JSON encoding flattens Extra into the object so
// the wire shape matches a plain CSV row.
type EquipmentRecord struct {
	ID               string  `json:"id"`
	EquipmentID      string  `json:"equipment_id"`
	EquipmentType    string  `json:"equipment_type"`
	Manufacturer     string  `json:"manufacturer"`
	Model            string  `json:"model"`
	InstallationDate string  `json:"installation_date"`
	LastMaintenance  string  `json:"last_maintenance"`
	Status           string  `json:"status"`
	Location         string  `json:"location"`
	Cost             float64 `json:"cost"`
	EfficiencyRating float64 `json:"efficiency_rating"`
	RuntimeHours     float64 `json:"runtime_hours"`

	Extra map[string]any `json:"-"`
}

// Fields returns every field of the record keyed by column name, dynamic
// columns included. The map is freshly allocated on each call.
func (r EquipmentRecord) Fields() map[string]any {
	m := map[string]any{
		"id":                r.ID,
		"equipment_id":      r.EquipmentID,
		"equipment_type":    r.EquipmentType,
		"manufacturer":      r.Manufacturer,
		"model":             r.Model,
		"installation_date": r.InstallationDate,
		"last_maintenance":  r.LastMaintenance,
		"status":            r.Status,
		"location":          r.Location,
		"cost":              r.Cost,
		"efficiency_rating": r.EfficiencyRating,
		"runtime_hours":     r.RuntimeHours,
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return m
}

// Field returns the value of the named column and whether the record has it.
func (r EquipmentRecord) Field(name string) (any, bool) {
	v, ok := r.Fields()[name]
	return v, ok
}

// Set assigns a value to the named column: fixed fields by name, anything
// else into Extra. Values are coerced to the field's type, so CSV parsing
// and JSON decoding can assign without knowing the schema up front.
func (r *EquipmentRecord) Set(name string, value any) {
	if r.setFixed(name, value) {
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	switch value.(type) {
	case string, float64:
		r.Extra[name] = value
	default:
		r.Extra[name] = fmt.Sprint(value)
	}
}

func (r *EquipmentRecord) setFixed(name string, value any) bool {
	switch name {
	case "id":
		r.ID = asString(value)
	case "equipment_id":
		r.EquipmentID = asString(value)
	case "equipment_type":
		r.EquipmentType = asString(value)
	case "manufacturer":
		r.Manufacturer = asString(value)
	case "model":
		r.Model = asString(value)
	case "installation_date":
		r.InstallationDate = asString(value)
	case "last_maintenance":
		r.LastMaintenance = asString(value)
	case "status":
		r.Status = asString(value)
	case "location":
		r.Location = asString(value)
	case "cost":
		r.Cost = asFloat(value)
	case "efficiency_rating":
		r.EfficiencyRating = asFloat(value)
	case "runtime_hours":
		r.RuntimeHours = asFloat(value)
	default:
		return false
	}
	return true
}

// MarshalJSON flattens fixed fields and Extra into a single object.
func (r EquipmentRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// UnmarshalJSON routes unknown keys into Extra so API responses carrying
// dynamic columns round-trip losslessly.
func (r *EquipmentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = EquipmentRecord{}
	for k, v := range raw {
		r.Set(k, v)
	}
	return nil
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		return 0
	}
}

// Averages holds the per-field arithmetic means of a dataset.
type Averages struct {
	Cost             float64 `json:"cost"`
	EfficiencyRating float64 `json:"efficiency_rating"`
	RuntimeHours     float64 `json:"runtime_hours"`
}

// DataSummary is the aggregate view of a record collection. The sum of each
// distribution's values equals TotalCount.
type DataSummary struct {
	TotalCount                int            `json:"total_count"`
	Averages                  Averages       `json:"averages"`
	EquipmentTypeDistribution map[string]int `json:"equipment_type_distribution"`
	StatusDistribution        map[string]int `json:"status_distribution"`
	ManufacturerDistribution  map[string]int `json:"manufacturer_distribution"`
}

// UploadHistory is one entry in the session's upload history: a snapshot of
// a past upload with the summary computed at upload time.
type UploadHistory struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	UploadedAt  string      `json:"uploaded_at"`
	RecordCount int         `json:"record_count"`
	Summary     DataSummary `json:"summary"`
}
