package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// UnknownCategory is the primary category of an incident with no categorized evidence.
const UnknownCategory = "Unknown"

// categoryPriority ranks incident categories by severity, most severe first.
var categoryPriority = []string{
	"Explosion",
	"Fire",
	"Visible Smoke",
	"Air Defense Activation",
}

// IncidentRow is the typed form of one incident CSV row. All fields are
// trimmed; absent columns decode as "".
type IncidentRow struct {
	IncidentID        string
	Category          string
	MediaType         string
	Neighborhood      string
	City              string
	Province          string
	Coordinates       string
	Description       string
	OriginalCaption   string
	TranslatedCaption string
	SourceName        string
	DateOfPost        string
	TimeOfPost        string
	ApproxTime        string
	Casualties        string
	Link              string
}

// DecodeIncidentRow converts a header-keyed row into an IncidentRow.
func DecodeIncidentRow(r RawRow) IncidentRow {
	return IncidentRow{
		IncidentID:        r.Get(FieldIncidentID),
		Category:          r.Get(FieldCategory),
		MediaType:         r.Get(FieldMediaType),
		Neighborhood:      r.Get(FieldNeighborhood),
		City:              r.Get(FieldCity),
		Province:          r.Get(FieldProvince),
		Coordinates:       r.Get(FieldCoordinates),
		Description:       r.Get(FieldDescription),
		OriginalCaption:   r.Get(FieldOriginalCaption),
		TranslatedCaption: r.Get(FieldTranslatedCaption),
		SourceName:        r.Get(FieldSourceName),
		DateOfPost:        r.Get(FieldDateOfPost),
		TimeOfPost:        r.Get(FieldTimeOfPost),
		ApproxTime:        r.Get(FieldApproxTime),
		Casualties:        r.Get(FieldCasualties),
		Link:              r.Get(FieldLink),
	}
}

// EvidenceRecord is one sourced media item supporting an incident.
type EvidenceRecord struct {
	Category          string `json:"category,omitempty"`
	MediaType         string `json:"media_type,omitempty"`
	OriginalCaption   string `json:"original_caption,omitempty"`
	TranslatedCaption string `json:"translated_caption,omitempty"`
	SourceName        string `json:"source_name,omitempty"`
	DateOfPost        string `json:"date_of_post,omitempty"`
	TimeOfPost        string `json:"time_of_post,omitempty"`
	Link              string `json:"link,omitempty"`
}

// IncidentRecord aggregates every evidence row that shares an incident ID.
type IncidentRecord struct {
	ID           string  `json:"id"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	City         string  `json:"city,omitempty"`
	Province     string  `json:"province,omitempty"`
	Coordinates  string  `json:"coordinates"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Description  string  `json:"description,omitempty"`
	ApproxTime   string  `json:"approx_time,omitempty"`
	Casualties   string  `json:"casualties,omitempty"`

	Categories      []string         `json:"categories"`
	PrimaryCategory string           `json:"primary_category"`
	EarliestDate    string           `json:"earliest_date,omitempty"`
	EvidenceCount   int              `json:"evidence_count"`
	Evidence        []EvidenceRecord `json:"evidence"`
}

// FilterCategories exposes the incident's categories to the filter engine.
func (r IncidentRecord) FilterCategories() []string { return r.Categories }

// FilterStatus is empty: incidents carry no facility status.
func (r IncidentRecord) FilterStatus() string { return "" }

// ParseCoordinates parses "lat, lng". The text must split on commas into
// exactly two parts and both must be finite numbers.
func ParseCoordinates(s string) (lat, lng float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, okLat := parseFinite(parts[0])
	lng, okLng := parseFinite(parts[1])
	if !okLat || !okLng {
		return 0, 0, false
	}
	return lat, lng, true
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// GroupIncidents collapses evidence rows into one IncidentRecord per
// incident ID. Rows with an empty ID or unparseable coordinates are dropped.
// Location, description, time and casualty fields come from the first row
// seen for an ID. Records are returned in first-seen order.
func GroupIncidents(rows []RawRow) []IncidentRecord {
	var order []string
	groups := make(map[string]*IncidentRecord)

	for _, raw := range rows {
		row := DecodeIncidentRow(raw)
		if row.IncidentID == "" {
			continue
		}
		lat, lng, ok := ParseCoordinates(row.Coordinates)
		if !ok {
			continue
		}

		rec, seen := groups[row.IncidentID]
		if !seen {
			rec = &IncidentRecord{
				ID:           row.IncidentID,
				Neighborhood: row.Neighborhood,
				City:         row.City,
				Province:     row.Province,
				Coordinates:  row.Coordinates,
				Lat:          lat,
				Lng:          lng,
				Description:  row.Description,
				ApproxTime:   row.ApproxTime,
				Casualties:   row.Casualties,
			}
			groups[row.IncidentID] = rec
			order = append(order, row.IncidentID)
		}

		rec.Evidence = append(rec.Evidence, EvidenceRecord{
			Category:          row.Category,
			MediaType:         row.MediaType,
			OriginalCaption:   row.OriginalCaption,
			TranslatedCaption: row.TranslatedCaption,
			SourceName:        row.SourceName,
			DateOfPost:        row.DateOfPost,
			TimeOfPost:        row.TimeOfPost,
			Link:              row.Link,
		})
	}

	out := make([]IncidentRecord, 0, len(order))
	for _, id := range order {
		rec := groups[id]
		rec.Categories = uniqueCategories(rec.Evidence)
		rec.PrimaryCategory = primaryCategory(rec.Categories)
		rec.EarliestDate = earliestDate(rec.Evidence)
		rec.EvidenceCount = len(rec.Evidence)
		out = append(out, *rec)
	}
	return out
}

func uniqueCategories(evidence []EvidenceRecord) []string {
	cats := make([]string, 0, len(evidence))
	for _, e := range evidence {
		if e.Category != "" && !slices.Contains(cats, e.Category) {
			cats = append(cats, e.Category)
		}
	}
	return cats
}

func primaryCategory(cats []string) string {
	for _, p := range categoryPriority {
		if slices.Contains(cats, p) {
			return p
		}
	}
	if len(cats) > 0 {
		return cats[0]
	}
	return UnknownCategory
}

// earliestDate sorts as text; see the package doc on date formats.
func earliestDate(evidence []EvidenceRecord) string {
	var dates []string
	for _, e := range evidence {
		if e.DateOfPost != "" {
			dates = append(dates, e.DateOfPost)
		}
	}
	if len(dates) == 0 {
		return ""
	}
	slices.Sort(dates)
	return dates[0]
}
