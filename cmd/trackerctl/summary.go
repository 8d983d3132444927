package main

import (
	"io"
	"sort"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print dataset, impact, status and incident tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func renderSummary(w io.Writer, snap *pipeline.Snapshot) {
	renderDatasets(w, snap)
	renderImpacts(w, snap.Impacts)
	renderStatuses(w, snap.Locations)
	renderIncidentCategories(w, snap.Incidents)
}

func renderDatasets(w io.Writer, snap *pipeline.Snapshot) {
	t := newTable(w, "Datasets")
	t.AppendHeader(table.Row{"Dataset", "Origin", "Records"})
	t.AppendRow(table.Row{config.DatasetIncidents, snap.Origins[config.DatasetIncidents], len(snap.Incidents)})
	t.AppendRow(table.Row{config.DatasetFacilities, snap.Origins[config.DatasetFacilities], len(snap.Locations)})
	if origin, ok := snap.Origins[config.DatasetVisuals]; ok {
		t.AppendRow(table.Row{config.DatasetVisuals, origin, len(snap.Visuals)})
	}
	if origin, ok := snap.Origins[config.DatasetRelatedProducts]; ok {
		t.AppendRow(table.Row{config.DatasetRelatedProducts, origin, len(snap.RelatedProducts)})
	}
	t.AppendFooter(table.Row{"Built", snap.BuiltAt.Format("2006-01-02 15:04:05 MST"), ""})
	t.Render()
}

func renderImpacts(w io.Writer, impacts []domain.ImpactSummary) {
	t := newTable(w, "Program Impact")
	t.AppendHeader(table.Row{"Impact", "Total", "Destroyed", "Likely Destroyed", "Operational", "Note"})
	for _, s := range impacts {
		t.AppendRow(table.Row{s.Title, s.Total, s.Destroyed, s.LikelyDestroyed, s.Operational, s.Annotation})
	}
	t.Render()
}

func renderStatuses(w io.Writer, locations []domain.SystemLocation) {
	counts := make(map[domain.StatusKey]int)
	for _, loc := range locations {
		counts[loc.Status.Key]++
	}

	t := newTable(w, "Facility Status")
	t.AppendHeader(table.Row{"Status", "Color", "Facilities"})
	for _, k := range append(domain.FilterableStatuses(), domain.StatusOther) {
		m := domain.MetaFor(k)
		t.AppendRow(table.Row{m.Label, m.Color, counts[k]})
	}
	t.AppendFooter(table.Row{"Total", "", len(locations)})
	t.Render()
}

type categoryCount struct {
	name      string
	incidents int
	evidence  int
}

// incidentCategories tallies incidents by primary category, largest first.
func incidentCategories(incidents []domain.IncidentRecord) []categoryCount {
	idx := make(map[string]int)
	var out []categoryCount
	for _, inc := range incidents {
		name := inc.PrimaryCategory
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, categoryCount{name: name})
		}
		out[i].incidents++
		out[i].evidence += inc.EvidenceCount
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].incidents > out[j].incidents })
	return out
}

func renderIncidentCategories(w io.Writer, incidents []domain.IncidentRecord) {
	t := newTable(w, "Incidents by Primary Category")
	t.AppendHeader(table.Row{"Category", "Incidents", "Evidence"})
	evidence := 0
	for _, c := range incidentCategories(incidents) {
		t.AppendRow(table.Row{c.name, c.incidents, c.evidence})
		evidence += c.evidence
	}
	t.AppendFooter(table.Row{"Total", len(incidents), evidence})
	t.Render()
}
