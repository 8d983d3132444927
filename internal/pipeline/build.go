package pipeline

import (
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
)

// Snapshot is one consistent view of every dataset, built from a single
// refresh.
type Snapshot struct {
	Seq     uint64
	BuiltAt time.Time
	Origins map[string]source.Origin

	// IncidentsCSV is the incident sheet exactly as fetched.
	IncidentsCSV []byte
	Incidents    []domain.IncidentRecord

	Facilities []domain.FacilityRecord
	Systems    []domain.SystemGroup
	Locations  []domain.SystemLocation
	Impacts    []domain.ImpactSummary

	Shapes []domain.Shape
	Join   domain.JoinResult

	// Visuals and RelatedProducts are passed through with their original
	// headers.
	Visuals         []domain.RawRow
	RelatedProducts []domain.RawRow
}

// Inputs are the raw datasets and reference tables a Snapshot is built from.
type Inputs struct {
	Incidents       []byte
	Facilities      []byte
	Visuals         []byte
	RelatedProducts []byte
	Reference       Reference
}

// Stats counts rows read and dropped per dataset during a build.
type Stats struct {
	IncidentRows    int
	IncidentDropped int
	FacilityRows    int
	FacilityDropped int
	VisualRows      int
	RelatedRows     int
}

// Build runs the whole domain pipeline over in. It never fails: rows that
// cannot be used are dropped and counted in Stats.
func Build(in Inputs) (*Snapshot, Stats) {
	var st Stats

	rows := domain.ParseCSV(string(in.Incidents))
	incidents := domain.GroupIncidents(rows)
	st.IncidentRows = len(rows)
	kept := 0
	for _, inc := range incidents {
		kept += inc.EvidenceCount
	}
	st.IncidentDropped = len(rows) - kept

	records := domain.ParseCSVRecords(string(in.Facilities))
	facilities := domain.ParseFacilities(records)
	if len(records) > 0 {
		st.FacilityRows = len(records) - 1
	}
	st.FacilityDropped = st.FacilityRows - len(facilities)

	systems := domain.BuildSystemGroups(facilities)

	visuals := passThrough(in.Visuals)
	st.VisualRows = len(visuals)
	related := passThrough(in.RelatedProducts)
	st.RelatedRows = len(related)

	snap := &Snapshot{
		IncidentsCSV:    in.Incidents,
		Incidents:       incidents,
		Facilities:      facilities,
		Systems:         systems,
		Locations:       domain.FlattenLocations(systems),
		Impacts:         domain.BuildImpactSummaries(systems, in.Reference.Impacts),
		Shapes:          in.Reference.Shapes,
		Join:            domain.JoinShapes(facilities, in.Reference.Shapes, in.Reference.Overrides),
		Visuals:         visuals,
		RelatedProducts: related,
	}
	return snap, st
}

func passThrough(body []byte) []domain.RawRow {
	if len(body) == 0 {
		return nil
	}
	return domain.ParseCSV(string(body))
}
