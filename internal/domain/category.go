package domain

// DisplayCategory is one of the human-facing buckets systems are grouped into.
type DisplayCategory string

const (
	CategoryCentrifuge DisplayCategory = "Centrifuge Infrastructure"
	CategoryMining     DisplayCategory = "Uranium Mining & Milling"
	CategoryFuel       DisplayCategory = "Uranium Fuel Production"
	CategoryEnergy     DisplayCategory = "Nuclear Energy Production"
	CategoryWeapons    DisplayCategory = "Weaponization"
	CategoryPlutonium  DisplayCategory = "Plutonium Pathway"
	CategoryOther      DisplayCategory = "Other"
)

type categoryDef struct {
	category DisplayCategory
	keywords *keywordSet
}

// categoryDefs is evaluated in order and the first hit wins. Energy comes
// before Plutonium Pathway so "heavy water reactor" lands in Energy.
var categoryDefs = []categoryDef{
	{CategoryCentrifuge, newKeywordSet([]string{"centrifuge", "enrichment", "cascade"})},
	{CategoryMining, newKeywordSet([]string{"mine", "mining", "mill", "yellowcake", "uranium ore"})},
	{CategoryFuel, newKeywordSet([]string{"conversion", "uf6", "uranium metal", "fuel", "pellet", "fabrication"})},
	{CategoryEnergy, newKeywordSet([]string{"reactor", "power plant", "energy"})},
	{CategoryWeapons, newKeywordSet([]string{"weapon", "explosive", "detonat", "neutron initiator", "warhead", "implosion"})},
	{CategoryPlutonium, newKeywordSet([]string{"heavy water", "plutonium", "reprocessing", "hot cell"})},
}

// DisplayCategories lists every bucket in evaluation order, Other last.
func DisplayCategories() []DisplayCategory {
	out := make([]DisplayCategory, 0, len(categoryDefs)+1)
	for _, d := range categoryDefs {
		out = append(out, d.category)
	}
	return append(out, CategoryOther)
}

// AssignDisplayCategory buckets a sub-category name by keyword.
func AssignDisplayCategory(subCategory string) DisplayCategory {
	for _, d := range categoryDefs {
		if d.keywords.matchAny(subCategory) {
			return d.category
		}
	}
	return CategoryOther
}
