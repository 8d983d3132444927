package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/filter"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
)

// refreshTimeout leaves the handler time to answer before the server's
// write deadline.
const refreshTimeout = writeTimeout - 15*time.Second

type listResponse[T any] struct {
	Seq     uint64       `json:"seq"`
	BuiltAt time.Time    `json:"built_at"`
	Filters filter.State `json:"filters,omitempty"`
	Count   int          `json:"count"`
	Items   []T          `json:"items"`
}

func newList[T any](snap *pipeline.Snapshot, st filter.State, items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Seq: snap.Seq, BuiltAt: snap.BuiltAt, Filters: st, Count: len(items), Items: items}
}

type snapshotHandler func(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot)

// withSnapshot answers 503 until the first snapshot is committed.
func (s *Server) withSnapshot(h snapshotHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.snapshots.Current()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no dataset snapshot available yet")
			return
		}
		h(w, r, snap)
	}
}

// requestFilter resolves the filter for a request: repeated ?filter= values
// override the shared store, and ?strict=true selects strict matching.
func (s *Server) requestFilter(r *http.Request, base *filter.Engine) (*filter.Engine, filter.State) {
	q := r.URL.Query()

	st := s.filters.State()
	if tags, ok := q["filter"]; ok {
		st = filter.New(tags...)
	}

	e := base
	if strict, _ := strconv.ParseBool(q.Get("strict")); strict {
		cp := *base
		cp.Strict = true
		e = &cp
	}
	return e, st
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot) {
	e, st := s.requestFilter(r, s.incidents)
	writeJSON(w, http.StatusOK, newList(snap, st, filter.Apply(e, snap.Incidents, st)))
}

func (s *Server) handleFacilities(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot) {
	e, st := s.requestFilter(r, s.facilities)
	writeJSON(w, http.StatusOK, newList(snap, st, filter.Apply(e, snap.Locations, st)))
}

// handleSystems returns the system groups with their locations filtered.
// Groups left with no visible location are omitted unless the filter is "all".
func (s *Server) handleSystems(w http.ResponseWriter, r *http.Request, snap *pipeline.Snapshot) {
	e, st := s.requestFilter(r, s.facilities)

	groups := make([]domain.SystemGroup, 0, len(snap.Systems))
	for _, g := range snap.Systems {
		visible := filter.Apply(e, g.Locations, st)
		if len(visible) == 0 && !st.IsAll() {
			continue
		}
		g.Locations = visible
		groups = append(groups, g)
	}
	writeJSON(w, http.StatusOK, newList(snap, st, groups))
}

func (s *Server) handleImpacts(w http.ResponseWriter, _ *http.Request, snap *pipeline.Snapshot) {
	writeJSON(w, http.StatusOK, newList(snap, nil, snap.Impacts))
}

func (s *Server) handleJoin(w http.ResponseWriter, _ *http.Request, snap *pipeline.Snapshot) {
	writeJSON(w, http.StatusOK, map[string]any{
		"seq":       snap.Seq,
		"matches":   nonNil(snap.Join.Matches),
		"unmatched": nonNil(snap.Join.Unmatched),
	})
}

func (s *Server) handleVisuals(w http.ResponseWriter, _ *http.Request, snap *pipeline.Snapshot) {
	writeJSON(w, http.StatusOK, newList(snap, nil, snap.Visuals))
}

func (s *Server) handleRelatedProducts(w http.ResponseWriter, _ *http.Request, snap *pipeline.Snapshot) {
	writeJSON(w, http.StatusOK, newList(snap, nil, snap.RelatedProducts))
}

type filtersResponse struct {
	Active             filter.State        `json:"active"`
	FacilityCategories []string            `json:"facility_categories"`
	IncidentCategories []string            `json:"incident_categories"`
	Statuses           []domain.StatusMeta `json:"statuses"`
}

func (s *Server) filtersBody(st filter.State) filtersResponse {
	statuses := make([]domain.StatusMeta, 0, 5)
	for _, k := range domain.FilterableStatuses() {
		statuses = append(statuses, domain.MetaFor(k))
	}
	return filtersResponse{
		Active:             st,
		FacilityCategories: s.facilities.CategoryTags(),
		IncidentCategories: s.incidents.CategoryTags(),
		Statuses:           statuses,
	}
}

func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.filtersBody(s.filters.State()))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Tag == "" {
		writeError(w, http.StatusBadRequest, `body must be {"tag": "<filter tag>"}`)
		return
	}
	writeJSON(w, http.StatusOK, s.filtersBody(s.filters.Toggle(req.Tag)))
}

func (s *Server) handleClearFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.filtersBody(s.filters.Clear()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "refresh is not available")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	err := s.refresher.Refresh(ctx)
	switch {
	case err == nil:
		snap := s.snapshots.Current()
		writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "seq": snap.Seq})
	case errors.Is(err, pipeline.ErrStale):
		writeJSON(w, http.StatusConflict, map[string]string{"status": "superseded", "error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("on-demand refresh timed out", "timeout", refreshTimeout)
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, source.ErrNoSource):
		s.logger.Warn("on-demand refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("on-demand refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
