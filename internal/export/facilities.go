package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
)

// legacyFills is the status-to-fill table the merged facility dataset is
// published with, keyed by the lowercased raw status. It disagrees with
// domain.ClassifyStatus on "Pink/Red with Purple Border", which it paints as
// destroyed.
var legacyFills = map[string]string{
	"destroyed":                   domain.ColorDestroyed,
	"likely destroyed":            domain.ColorLikelyDestroyed,
	"under construction":          domain.ColorConstruction,
	"operational":                 domain.ColorOperational,
	"unknown":                     domain.ColorUnknown,
	"unknown/non-operational":     domain.ColorUnknown,
	"non-operational":             domain.ColorUnknown,
	"pink/red with purple border": domain.ColorDestroyed,
}

// LegacyFill returns the fill color the merged dataset uses for a raw
// status. Statuses missing from the legacy table use the classifier color.
func LegacyFill(rawStatus string) string {
	if c, ok := legacyFills[strings.ToLower(strings.TrimSpace(rawStatus))]; ok {
		return c
	}
	return domain.ClassifyStatus(rawStatus).Color
}

// FillDisagreement is a facility whose legacy fill differs from the color of
// its classified status.
type FillDisagreement struct {
	ItemID          string
	RawStatus       string
	Status          domain.StatusKey
	LegacyColor     string
	ClassifiedColor string
}

// FillDisagreements lists facilities painted differently by the legacy fill
// table and the status classifier.
func FillDisagreements(facilities []domain.FacilityRecord) []FillDisagreement {
	var out []FillDisagreement
	for _, f := range facilities {
		meta := domain.ClassifyStatus(f.Status)
		legacy := LegacyFill(f.Status)
		if legacy != meta.Color {
			out = append(out, FillDisagreement{
				ItemID:          f.ItemID,
				RawStatus:       f.Status,
				Status:          meta.Key,
				LegacyColor:     legacy,
				ClassifiedColor: meta.Color,
			})
		}
	}
	return out
}

var mergedHeader = []string{
	"Item_Id", "Main-Category", "Sub-Category", "Sub_Item", "Locations", "Sub_Item_Status",
	"Status_Key", "Fill_Color", "Shape_Id", "Shape_Element", "Shape_Geometry", "Shape_Fill", "Join_Method",
}

// MergedFacilitiesCSV writes one row per facility joined with its flowchart
// shape. Facilities without a shape keep empty shape columns.
func MergedFacilitiesCSV(facilities []domain.FacilityRecord, join domain.JoinResult) ([]byte, error) {
	byFacility := make(map[domain.FacilityRecord]domain.ShapeMatch, len(join.Matches))
	for _, m := range join.Matches {
		byFacility[m.Facility] = m
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(mergedHeader); err != nil {
		return nil, fmt.Errorf("write merged header: %w", err)
	}

	for _, f := range facilities {
		row := []string{
			f.ItemID, f.MainCategory, f.SubCategory, f.SubItem, f.Locations, f.Status,
			string(domain.ClassifyStatus(f.Status).Key), LegacyFill(f.Status),
			"", "", "", "", "",
		}
		if m, ok := byFacility[f]; ok {
			row[8], row[9], row[10], row[11], row[12] = m.Shape.ID, m.Shape.Element, m.Shape.Geometry, m.Shape.Fill, m.Method
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write merged row %s: %w", f.ItemID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush merged csv: %w", err)
	}
	return buf.Bytes(), nil
}
