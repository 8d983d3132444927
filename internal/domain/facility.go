package domain

import (
	"sort"
	"strings"
)

// Facility dataset column positions.
const (
	colItemID       = 0
	colMainCategory = 1
	colSubCategory  = 2
	colSubItem      = 4
	colLocations    = 5
	colStatus       = 6
)

// UnnamedLocation labels a facility row with neither Locations nor Sub_Item.
const UnnamedLocation = "Unnamed Location"

// FacilityRecord is one row of the nuclear-facility dataset.
type FacilityRecord struct {
	ItemID       string `json:"item_id"`
	MainCategory string `json:"main_category"`
	SubCategory  string `json:"sub_category"`
	SubItem      string `json:"sub_item,omitempty"`
	Locations    string `json:"locations,omitempty"`
	Status       string `json:"status,omitempty"`
}

// ParseFacilities reads facility rows by column position. The first record
// is the header. Rows with neither an item ID nor a sub-category are dropped.
func ParseFacilities(records [][]string) []FacilityRecord {
	if len(records) < 2 {
		return nil
	}

	out := make([]FacilityRecord, 0, len(records)-1)
	for _, rec := range records[1:] {
		f := FacilityRecord{
			ItemID:       cell(rec, colItemID),
			MainCategory: cell(rec, colMainCategory),
			SubCategory:  cell(rec, colSubCategory),
			SubItem:      cell(rec, colSubItem),
			Locations:    cell(rec, colLocations),
			Status:       cell(rec, colStatus),
		}
		if f.ItemID == "" && f.SubCategory == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// SystemLocation is one facility inside a SystemGroup.
type SystemLocation struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Detail    string          `json:"detail,omitempty"`
	RawStatus string          `json:"raw_status,omitempty"`
	Status    StatusMeta      `json:"status"`
	Category  DisplayCategory `json:"category"`
}

// FilterCategories exposes the location's display bucket to the filter engine.
func (l SystemLocation) FilterCategories() []string { return []string{string(l.Category)} }

// FilterStatus exposes the location's normalized status to the filter engine.
func (l SystemLocation) FilterStatus() string { return string(l.Status.Key) }

// SystemGroup is the facilities sharing a main category and sub-category.
type SystemGroup struct {
	Name            string           `json:"name"`
	MainCategory    string           `json:"main_category"`
	SubCategory     string           `json:"sub_category"`
	DisplayCategory DisplayCategory  `json:"display_category"`
	Locations       []SystemLocation `json:"locations"`
}

// StatusCounts tallies the group's locations by status key.
func (g SystemGroup) StatusCounts() map[StatusKey]int {
	counts := make(map[StatusKey]int)
	for _, loc := range g.Locations {
		counts[loc.Status.Key]++
	}
	return counts
}

// BuildSystemGroups groups facilities by (main category, sub-category). Each
// facility becomes exactly one SystemLocation. Groups are sorted by name.
func BuildSystemGroups(facilities []FacilityRecord) []SystemGroup {
	type key struct{ main, sub string }

	var order []key
	groups := make(map[key]*SystemGroup)

	for _, f := range facilities {
		k := key{main: f.MainCategory, sub: f.SubCategory}
		g, ok := groups[k]
		if !ok {
			name := f.SubCategory
			if name == "" {
				name = f.MainCategory
			}
			g = &SystemGroup{
				Name:            name,
				MainCategory:    f.MainCategory,
				SubCategory:     f.SubCategory,
				DisplayCategory: AssignDisplayCategory(name),
			}
			groups[k] = g
			order = append(order, k)
		}
		g.Locations = append(g.Locations, newSystemLocation(f, g.DisplayCategory))
	}

	out := make([]SystemGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func newSystemLocation(f FacilityRecord, cat DisplayCategory) SystemLocation {
	name := f.Locations
	if name == "" {
		name = f.SubItem
	}
	if name == "" {
		name = UnnamedLocation
	}

	loc := SystemLocation{
		ItemID:    f.ItemID,
		Name:      name,
		RawStatus: f.Status,
		Status:    ClassifyStatus(f.Status),
		Category:  cat,
	}
	if f.SubItem != "" && f.SubItem != f.Locations {
		loc.Detail = f.SubItem
	}
	return loc
}

// FlattenLocations returns every location of every group, in group order.
func FlattenLocations(groups []SystemGroup) []SystemLocation {
	var out []SystemLocation
	for _, g := range groups {
		out = append(out, g.Locations...)
	}
	return out
}
