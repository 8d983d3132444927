package domain

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// RawRow is one parsed CSV record keyed by normalized field name.
type RawRow map[string]string

// Get returns the trimmed value of a field, or "" when absent.
func (r RawRow) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// headerFields maps the incident sheet's column headers to field names.
var headerFields = map[string]string{
	"Incident ID":                         FieldIncidentID,
	"Category":                            FieldCategory,
	"Media Type":                          FieldMediaType,
	"Neighborhood/Site":                   FieldNeighborhood,
	"City":                                FieldCity,
	"Province":                            FieldProvince,
	"Coordinates":                         FieldCoordinates,
	"Description":                         FieldDescription,
	"Original Caption":                    FieldOriginalCaption,
	"Translated Caption":                  FieldTranslatedCaption,
	"Source Name":                         FieldSourceName,
	"Date of Post (ET)":                   FieldDateOfPost,
	"Time of Post (24HR, ET)":             FieldTimeOfPost,
	"Approx. Time of Incident (24HR, ET)": FieldApproxTime,
	"Fatality/Injury Counts":              FieldCasualties,
	"Link":                                FieldLink,
}

// Field names produced by NormalizeHeader for the incident dataset.
const (
	FieldIncidentID        = "IncidentID"
	FieldCategory          = "Category"
	FieldMediaType         = "MediaType"
	FieldNeighborhood      = "Neighborhood"
	FieldCity              = "City"
	FieldProvince          = "Province"
	FieldCoordinates       = "Coordinates"
	FieldDescription       = "Description"
	FieldOriginalCaption   = "OriginalCaption"
	FieldTranslatedCaption = "TranslatedCaption"
	FieldSourceName        = "SourceName"
	FieldDateOfPost        = "DateOfPost"
	FieldTimeOfPost        = "TimeOfPost"
	FieldApproxTime        = "ApproxTimeOfIncident"
	FieldCasualties        = "Casualties"
	FieldLink              = "Link"
)

// NormalizeHeader translates a column header to its field name. Headers not
// in the table are returned trimmed but otherwise unchanged.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	if f, ok := headerFields[h]; ok {
		return f
	}
	return h
}

// ParseCSV parses CSV text with a header row into rows keyed by normalized
// header. Short rows leave the missing fields empty; extra cells are ignored.
func ParseCSV(text string) []RawRow {
	records := ParseCSVRecords(text)
	if len(records) == 0 {
		return nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = NormalizeHeader(h)
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(RawRow, len(header))
		for i, field := range header {
			if i < len(rec) {
				row[field] = rec[i]
			} else {
				row[field] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseCSVRecords splits CSV text into records, header included. Quoted
// cells may contain commas. Blank lines and rows whose cells are all blank are
// skipped, and a record the reader cannot parse is dropped without failing
// the rest of the input.
func ParseCSVRecords(text string) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		if isBlankRecord(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
