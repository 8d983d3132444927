package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/export"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped string
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func (p *phase) result() string {
	switch {
	case p.skipped != "":
		return "SKIP (" + p.skipped + ")"
	case p.passed():
		return "PASS"
	default:
		return fmt.Sprintf("FAIL (%d)", len(p.errors))
	}
}

func newValidateCommand(a *app) *cobra.Command {
	var maxErrors int

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check dataset integrity, shape coverage and fill colors",
		Long: `Run the pipeline once and report rows that would be dropped, facility
statuses the classifier does not recognize, facilities with no flowchart
shape, facilities the legacy fill table paints differently from their
classified status, and impact rollups with no matching systems.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if !report(cmd.OutOrStdout(), validate(snap), maxErrors) {
				return errValidationFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxErrors, "max-errors", 20, "errors listed per failed phase (0 for all)")
	return cmd
}

func validate(snap *pipeline.Snapshot) []*phase {
	return []*phase{
		validateIncidentRows(snap.IncidentsCSV),
		validateFacilityStatuses(snap.Facilities),
		validateShapeJoin(snap),
		validateFillColors(snap.Facilities),
		validateImpacts(snap.Impacts),
	}
}

func validateIncidentRows(body []byte) *phase {
	p := &phase{name: "Incident rows usable"}
	for i, raw := range domain.ParseCSV(string(body)) {
		row := domain.DecodeIncidentRow(raw)
		if row.IncidentID == "" {
			p.errorf("row %d: missing incident ID", i+1)
			continue
		}
		if _, _, ok := domain.ParseCoordinates(row.Coordinates); !ok {
			p.errorf("row %d (incident %s): unusable coordinates %q", i+1, row.IncidentID, row.Coordinates)
		}
	}
	return p
}

func validateFacilityStatuses(facilities []domain.FacilityRecord) *phase {
	p := &phase{name: "Facility statuses recognized"}
	for _, f := range facilities {
		if m := domain.ClassifyStatus(f.Status); m.Key == domain.StatusOther {
			p.errorf("item %s: status %q is not a known status", f.ItemID, f.Status)
		}
	}
	return p
}

func validateShapeJoin(snap *pipeline.Snapshot) *phase {
	p := &phase{name: "Facilities placed on flowchart"}
	if len(snap.Shapes) == 0 {
		p.skipped = "no shapes loaded"
		return p
	}
	for _, u := range snap.Join.Unmatched {
		p.errorf("item %s (%s): %s", u.Facility.ItemID, u.Facility.SubCategory, u.Reason)
	}
	return p
}

func validateFillColors(facilities []domain.FacilityRecord) *phase {
	p := &phase{name: "Legacy fill matches status color"}
	for _, d := range export.FillDisagreements(facilities) {
		p.errorf("item %s: %q is %s in the merged dataset but %s (%s) when classified",
			d.ItemID, d.RawStatus, d.LegacyColor, d.ClassifiedColor, d.Status)
	}
	return p
}

func validateImpacts(impacts []domain.ImpactSummary) *phase {
	p := &phase{name: "Impact rollups have data"}
	for _, s := range impacts {
		if s.InsufficientData {
			p.errorf("impact %s: no matching systems", s.ID)
		}
	}
	return p
}

// report renders the phase table and the errors of failed phases. It
// returns true when no phase failed.
func report(w io.Writer, phases []*phase, maxErrors int) bool {
	t := newTable(w, "Dataset Validation")
	t.AppendHeader(table.Row{"Phase", "Result"})

	ok := true
	for _, p := range phases {
		t.AppendRow(table.Row{p.name, p.result()})
		if p.skipped == "" && !p.passed() {
			ok = false
		}
	}
	t.Render()

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if maxErrors > 0 && i == maxErrors {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if ok {
		fmt.Fprintln(w, "\nAll validations passed.")
	} else {
		fmt.Fprintln(w, "\nValidation FAILED.")
	}
	return ok
}
