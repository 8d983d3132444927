// Package export renders a snapshot into the static artifacts the site is
// built from.
package export

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
)

// Artifact file names.
const (
	FileIncidentsJSON    = "incidents-data.json"
	FileIncidentsCSV     = "incidents-data.csv"
	FileStructuredData   = "incidents-structured-data.json"
	FileMergedFacilities = "merged_nuclear_facilities_dataset.csv"
)

// Artifact is one rendered file.
type Artifact struct {
	Name string
	Body []byte
}

// Render produces every artifact for snap.
func Render(snap *pipeline.Snapshot) ([]Artifact, error) {
	incidents, err := IncidentsJSON(snap.Incidents)
	if err != nil {
		return nil, err
	}
	structured, err := StructuredData(snap.Incidents, LatestIncidentDate(snap.Incidents))
	if err != nil {
		return nil, err
	}
	merged, err := MergedFacilitiesCSV(snap.Facilities, snap.Join)
	if err != nil {
		return nil, err
	}

	return []Artifact{
		{Name: FileIncidentsJSON, Body: incidents},
		{Name: FileIncidentsCSV, Body: snap.IncidentsCSV},
		{Name: FileStructuredData, Body: structured},
		{Name: FileMergedFacilities, Body: merged},
	}, nil
}

// WriteAll renders snap into dir and returns the paths that changed.
// Unchanged files are left untouched.
func WriteAll(dir string, snap *pipeline.Snapshot) ([]string, error) {
	artifacts, err := Render(snap)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		err := source.NewFileSource(a.Name, path).Store(a.Body)
		switch {
		case err == nil:
			written = append(written, path)
		case errors.Is(err, source.ErrNotModified):
		default:
			return written, fmt.Errorf("write %s: %w", a.Name, err)
		}
	}
	return written, nil
}
