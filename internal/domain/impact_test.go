package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGroups() []SystemGroup {
	return BuildSystemGroups([]FacilityRecord{
		{ItemID: "1", MainCategory: "Enrichment", SubCategory: "Centrifuge Plants", Locations: "Natanz", Status: "Destroyed"},
		{ItemID: "2", MainCategory: "Enrichment", SubCategory: "Centrifuge Plants", Locations: "Fordow", Status: "Likely destroyed"},
		{ItemID: "3", MainCategory: "Enrichment", SubCategory: "Centrifuge Workshops", Locations: "Tehran", Status: "Operational"},
		{ItemID: "4", MainCategory: "Conversion", SubCategory: "UCF", Locations: "Isfahan", Status: "Destroyed"},
	})
}

func TestBuildImpactSummaries_CountsMatchedLocations(t *testing.T) {
	cfgs := []ImpactConfig{
		{ID: "enrich", Title: "Enrichment", Keywords: []string{"centrifuge"}, Fallback: "n/a"},
	}

	got := BuildImpactSummaries(testGroups(), cfgs)

	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "enrich", s.ID)
	assert.Equal(t, []string{"Centrifuge Plants", "Centrifuge Workshops"}, s.MatchedSystems)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Destroyed)
	assert.Equal(t, 1, s.LikelyDestroyed)
	assert.Equal(t, 1, s.Operational)
	assert.False(t, s.InsufficientData)
	assert.Equal(t, "1 of 3 sites destroyed, 1 likely destroyed, 1 operational", s.Annotation)
}

func TestBuildImpactSummaries_MatchesMainCategoryCaseInsensitive(t *testing.T) {
	cfgs := []ImpactConfig{{ID: "conv", Keywords: []string{"CONVERSION"}}}

	got := BuildImpactSummaries(testGroups(), cfgs)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"UCF"}, got[0].MatchedSystems)
	assert.Equal(t, "1 of 1 site destroyed", got[0].Annotation)
}

func TestBuildImpactSummaries_FallbackWhenNothingMatches(t *testing.T) {
	cfgs := []ImpactConfig{
		{ID: "pu", Title: "Plutonium", Keywords: []string{"plutonium"}, Fallback: "Insufficient data."},
	}

	got := BuildImpactSummaries(testGroups(), cfgs)

	require.Len(t, got, 1)
	assert.True(t, got[0].InsufficientData)
	assert.Equal(t, "Insufficient data.", got[0].Annotation)
	assert.Zero(t, got[0].Total)
	assert.Empty(t, got[0].MatchedSystems)
}

func TestBuildImpactSummaries_OnePerConfigInOrder(t *testing.T) {
	got := BuildImpactSummaries(nil, DefaultImpactConfigs())

	cfgs := DefaultImpactConfigs()
	require.Len(t, got, len(cfgs))
	for i := range cfgs {
		assert.Equal(t, cfgs[i].ID, got[i].ID)
		assert.True(t, got[i].InsufficientData)
	}
}

func TestLoadImpactConfigs(t *testing.T) {
	yml := `
impacts:
  - id: a
    title: A
    keywords: [x, y]
    fallback: none
`
	cfgs, err := LoadImpactConfigs(strings.NewReader(yml))
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, []string{"x", "y"}, cfgs[0].Keywords)
	assert.Equal(t, "none", cfgs[0].Fallback)
}

func TestLoadImpactConfigs_Invalid(t *testing.T) {
	_, err := LoadImpactConfigs(strings.NewReader("impacts:\n  - title: no id\n    keywords: [a]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")

	_, err = LoadImpactConfigs(strings.NewReader("impacts:\n  - id: k\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keywords")

	_, err = LoadImpactConfigs(strings.NewReader("impacts: [unterminated"))
	require.Error(t, err)
}

func TestDefaultImpactConfigs(t *testing.T) {
	cfgs := DefaultImpactConfigs()
	require.NotEmpty(t, cfgs)
	ids := make([]string, 0, len(cfgs))
	for _, c := range cfgs {
		ids = append(ids, c.ID)
		assert.NotEmpty(t, c.Fallback, c.ID)
	}
	assert.Contains(t, ids, "uranium-metal")
}
