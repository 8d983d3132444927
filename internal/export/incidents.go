package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
)

// IncidentsJSON encodes the grouped incidents as a JSON array.
func IncidentsJSON(incidents []domain.IncidentRecord) ([]byte, error) {
	if incidents == nil {
		incidents = []domain.IncidentRecord{}
	}
	data, err := json.MarshalIndent(incidents, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode incidents: %w", err)
	}
	return append(data, '\n'), nil
}

// schema.org types used by the structured-data artifact.
type (
	itemList struct {
		Context         string     `json:"@context"`
		Type            string     `json:"@type"`
		Name            string     `json:"name"`
		DateModified    string     `json:"dateModified,omitempty"`
		NumberOfItems   int        `json:"numberOfItems"`
		ItemListElement []listItem `json:"itemListElement"`
	}

	listItem struct {
		Type     string `json:"@type"`
		Position int    `json:"position"`
		Item     event  `json:"item"`
	}

	event struct {
		Type        string `json:"@type"`
		Identifier  string `json:"identifier"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		StartDate   string `json:"startDate,omitempty"`
		Location    place  `json:"location"`
		URL         string `json:"url,omitempty"`
	}

	place struct {
		Type string         `json:"@type"`
		Name string         `json:"name,omitempty"`
		Geo  geoCoordinates `json:"geo"`
	}

	geoCoordinates struct {
		Type      string  `json:"@type"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
)

// sheetDateLayout is the month/day/year form used in the Date of Post column.
const sheetDateLayout = "1/2/2006"

// StructuredData builds the schema.org ItemList of Events describing the
// incidents, for search engines.
func StructuredData(incidents []domain.IncidentRecord, modified time.Time) ([]byte, error) {
	list := itemList{
		Context:         "https://schema.org",
		Type:            "ItemList",
		Name:            "Reported strike incidents in Iran",
		NumberOfItems:   len(incidents),
		ItemListElement: make([]listItem, 0, len(incidents)),
	}
	if !modified.IsZero() {
		list.DateModified = modified.UTC().Format(time.RFC3339)
	}

	for i, inc := range incidents {
		list.ItemListElement = append(list.ItemListElement, listItem{
			Type:     "ListItem",
			Position: i + 1,
			Item:     incidentEvent(inc),
		})
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode structured data: %w", err)
	}
	return append(data, '\n'), nil
}

// LatestIncidentDate is the most recent parseable earliest-evidence date, or
// the zero time. It depends only on the data, so an unchanged sheet renders
// byte-identical structured data.
func LatestIncidentDate(incidents []domain.IncidentRecord) time.Time {
	var latest time.Time
	for _, inc := range incidents {
		if t, err := time.Parse(sheetDateLayout, inc.EarliestDate); err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}

func incidentEvent(inc domain.IncidentRecord) event {
	placeName := joinNonEmpty(", ", inc.Neighborhood, inc.City, inc.Province)

	name := inc.PrimaryCategory
	if placeName != "" {
		name += " in " + placeName
	}

	ev := event{
		Type:        "Event",
		Identifier:  inc.ID,
		Name:        name,
		Description: inc.Description,
		Location: place{
			Type: "Place",
			Name: placeName,
			Geo:  geoCoordinates{Type: "GeoCoordinates", Latitude: inc.Lat, Longitude: inc.Lng},
		},
	}
	if t, err := time.Parse(sheetDateLayout, inc.EarliestDate); err == nil {
		ev.StartDate = t.Format(time.DateOnly)
	}
	for _, e := range inc.Evidence {
		if e.Link != "" {
			ev.URL = e.Link
			break
		}
	}
	return ev
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
