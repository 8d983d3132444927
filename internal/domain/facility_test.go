package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const facilityCSV = "Item_Id,Main-Category,Sub-Category,,Sub_Item,Locations,Sub_Item_Status\n" +
	"1.1,Enrichment,Centrifuge Enrichment Plants,,FEP,Natanz,Destroyed\n" +
	"1.2,Enrichment,Centrifuge Enrichment Plants,,PFEP,Natanz,Likely destroyed\n" +
	"1.3,Enrichment,Centrifuge Enrichment Plants,,Fordow,Fordow,Unknown/Non-operational\n" +
	"2.1,Conversion,Uranium Conversion Facility,,UCF,Isfahan,Destroyed\n" +
	"4.1,Reactors,Heavy Water Reactor,,IR-40,,Operational\n" +
	"4.2,Reactors,Heavy Water Production Plant,,,,Under construction\n" +
	",,,,,,\n" +
	",Misc,,,orphan,,\n"

func TestParseFacilities(t *testing.T) {
	got := ParseFacilities(ParseCSVRecords(facilityCSV))

	require.Len(t, got, 6, "blank rows and rows with neither id nor sub-category are dropped")
	assert.Equal(t, FacilityRecord{
		ItemID:       "1.1",
		MainCategory: "Enrichment",
		SubCategory:  "Centrifuge Enrichment Plants",
		SubItem:      "FEP",
		Locations:    "Natanz",
		Status:       "Destroyed",
	}, got[0])
}

func TestParseFacilities_ShortRows(t *testing.T) {
	got := ParseFacilities([][]string{
		{"Item_Id", "Main-Category", "Sub-Category"},
		{"9.9", "Misc", "Research"},
	})

	require.Len(t, got, 1)
	assert.Empty(t, got[0].Status)
	assert.Empty(t, got[0].Locations)
}

func TestParseFacilities_HeaderOnly(t *testing.T) {
	assert.Empty(t, ParseFacilities(nil))
	assert.Empty(t, ParseFacilities([][]string{{"Item_Id"}}))
}

func TestBuildSystemGroups(t *testing.T) {
	facilities := ParseFacilities(ParseCSVRecords(facilityCSV))

	groups := BuildSystemGroups(facilities)

	require.Len(t, groups, 4)
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{
		"Centrifuge Enrichment Plants",
		"Heavy Water Production Plant",
		"Heavy Water Reactor",
		"Uranium Conversion Facility",
	}, names)

	cep := groups[0]
	assert.Equal(t, CategoryCentrifuge, cep.DisplayCategory)
	require.Len(t, cep.Locations, 3)
	assert.Equal(t, StatusDestroyed, cep.Locations[0].Status.Key)
	assert.Equal(t, StatusLikelyDestroyed, cep.Locations[1].Status.Key)
	assert.Equal(t, StatusUnknown, cep.Locations[2].Status.Key)
	assert.Equal(t, "FEP", cep.Locations[0].Detail)
	assert.Empty(t, cep.Locations[2].Detail, "detail omitted when it equals the location")
	assert.Equal(t, CategoryCentrifuge, cep.Locations[0].Category)

	counts := cep.StatusCounts()
	assert.Equal(t, 1, counts[StatusDestroyed])
	assert.Equal(t, 1, counts[StatusLikelyDestroyed])
}

func TestBuildSystemGroups_LocationNameFallback(t *testing.T) {
	groups := BuildSystemGroups([]FacilityRecord{
		{ItemID: "a", MainCategory: "M", SubCategory: "S", Locations: "Site A", SubItem: "Unit 1"},
		{ItemID: "b", MainCategory: "M", SubCategory: "S", SubItem: "Unit 2"},
		{ItemID: "c", MainCategory: "M", SubCategory: "S"},
	})

	require.Len(t, groups, 1)
	locs := groups[0].Locations
	assert.Equal(t, "Site A", locs[0].Name)
	assert.Equal(t, "Unit 1", locs[0].Detail)
	assert.Equal(t, "Unit 2", locs[1].Name)
	assert.Equal(t, "Unit 2", locs[1].Detail, "detail is compared against Locations, not the resolved name")
	assert.Equal(t, UnnamedLocation, locs[2].Name)
}

func TestBuildSystemGroups_SameSubDifferentMain(t *testing.T) {
	groups := BuildSystemGroups([]FacilityRecord{
		{ItemID: "a", MainCategory: "One", SubCategory: "Labs"},
		{ItemID: "b", MainCategory: "Two", SubCategory: "Labs"},
		{ItemID: "c", MainCategory: "One", SubCategory: "Labs"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "One", groups[0].MainCategory, "ties keep first-seen order")
	assert.Len(t, groups[0].Locations, 2)
	assert.Len(t, groups[1].Locations, 1)
}

func TestBuildSystemGroups_CaseSensitiveOrder(t *testing.T) {
	groups := BuildSystemGroups([]FacilityRecord{
		{ItemID: "1", SubCategory: "alpha"},
		{ItemID: "2", SubCategory: "Beta"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "Beta", groups[0].Name)
	assert.Equal(t, "alpha", groups[1].Name)
}

func TestBuildSystemGroups_FlattenPreservesCount(t *testing.T) {
	facilities := ParseFacilities(ParseCSVRecords(facilityCSV))

	flat := FlattenLocations(BuildSystemGroups(facilities))

	assert.Len(t, flat, len(facilities))
	ids := make([]string, 0, len(flat))
	for _, l := range flat {
		ids = append(ids, l.ItemID)
	}
	want := make([]string, 0, len(facilities))
	for _, f := range facilities {
		want = append(want, f.ItemID)
	}
	assert.ElementsMatch(t, want, ids)
}

func TestAssignDisplayCategory(t *testing.T) {
	tests := []struct {
		in   string
		want DisplayCategory
	}{
		{in: "Centrifuge Enrichment Plants", want: CategoryCentrifuge},
		{in: "Centrifuge Manufacturing Workshops", want: CategoryCentrifuge},
		{in: "Uranium Mines", want: CategoryMining},
		{in: "Yellowcake Production", want: CategoryMining},
		{in: "Uranium Conversion Facility", want: CategoryFuel},
		{in: "Uranium Metal Plant", want: CategoryFuel},
		{in: "Fuel Plate Fabrication", want: CategoryFuel},
		{in: "Research Reactors", want: CategoryEnergy},
		{in: "Heavy Water Reactor", want: CategoryEnergy},
		{in: "Bushehr Power Plant", want: CategoryEnergy},
		{in: "Explosives Testing Sites", want: CategoryWeapons},
		{in: "Weapons Design Centers", want: CategoryWeapons},
		{in: "Heavy Water Production Plant", want: CategoryPlutonium},
		{in: "Plutonium Separation", want: CategoryPlutonium},
		{in: "Administrative Offices", want: CategoryOther},
		{in: "", want: CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignDisplayCategory(tt.in))
		})
	}
}

func TestDisplayCategories(t *testing.T) {
	cats := DisplayCategories()
	assert.Len(t, cats, 7)
	assert.Equal(t, CategoryOther, cats[len(cats)-1])
}
