// Package filter decides which records a view shows for a set of active
// filter tags, and holds the tag set shared by every filter surface.
package filter

import (
	"slices"
	"strings"

	"github.com/couchcryptid/iran-tracker-data/internal/domain"
)

// All is the sentinel tag meaning "no constraint".
const All = "all"

// Facility category tags.
const (
	TagFuelProduction    = "fuel-production"
	TagFuelWeaponization = "fuel-weaponization"
	TagEnergy            = "energy"
)

// Incident category tags.
const (
	TagExplosion    = "explosion"
	TagFire         = "fire"
	TagVisibleSmoke = "visible-smoke"
	TagAirDefense   = "air-defense"
)

// State is an ordered set of active tags. It is never empty; the zero value
// is treated as {"all"}.
type State []string

// Default returns {"all"}.
func Default() State { return State{All} }

// Has reports whether tag is active.
func (s State) Has(tag string) bool { return slices.Contains(s, tag) }

// IsAll reports whether the state places no constraint.
func (s State) IsAll() bool { return len(s) == 0 || s.Has(All) }

// New builds a State from arbitrary tags: blanks and duplicates are dropped,
// "all" or an empty result collapses to {"all"}.
func New(tags ...string) State {
	out := make(State, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || out.Has(t) {
			continue
		}
		if t == All {
			return Default()
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return Default()
	}
	return out
}

// Toggle applies one tag selection. Selecting "all" clears every other tag.
// Selecting any other tag removes "all" and flips that tag's membership. A
// selection that leaves nothing active resets to {"all"}.
func Toggle(s State, tag string) State {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return New(s...)
	}
	if tag == All {
		return Default()
	}

	next := make(State, 0, len(s)+1)
	found := false
	for _, t := range s {
		switch t {
		case All:
			continue
		case tag:
			found = true
			continue
		}
		next = append(next, t)
	}
	if !found {
		next = append(next, tag)
	}
	if len(next) == 0 {
		return Default()
	}
	return next
}

// Record is anything a view can filter.
type Record interface {
	FilterCategories() []string
	FilterStatus() string
}

// Engine maps tags to matching rules. Tags it does not know are ignored.
type Engine struct {
	categories map[string]func(category string) bool
	statuses   map[string]bool

	// Strict makes an active set with no recognized tags show nothing
	// instead of everything. The stacked-card view uses it.
	Strict bool
}

// NewFacilityEngine returns the engine for facility locations: category tags
// match display buckets, status tags match normalized status keys.
func NewFacilityEngine() *Engine {
	buckets := map[string][]domain.DisplayCategory{
		TagFuelProduction:    {domain.CategoryCentrifuge, domain.CategoryMining, domain.CategoryFuel},
		TagFuelWeaponization: {domain.CategoryWeapons, domain.CategoryPlutonium},
		TagEnergy:            {domain.CategoryEnergy},
	}

	e := &Engine{
		categories: make(map[string]func(string) bool, len(buckets)),
		statuses:   make(map[string]bool),
	}
	for tag, cats := range buckets {
		e.categories[tag] = func(c string) bool {
			return slices.Contains(cats, domain.DisplayCategory(c))
		}
	}
	for _, k := range domain.FilterableStatuses() {
		e.statuses[string(k)] = true
	}
	return e
}

// NewIncidentEngine returns the engine for incidents: category tags match
// any of an incident's categories, case-insensitively. Incidents have no
// status tags.
func NewIncidentEngine() *Engine {
	names := map[string]string{
		TagExplosion:    "Explosion",
		TagFire:         "Fire",
		TagVisibleSmoke: "Visible Smoke",
		TagAirDefense:   "Air Defense Activation",
	}

	e := &Engine{
		categories: make(map[string]func(string) bool, len(names)),
		statuses:   map[string]bool{},
	}
	for tag, name := range names {
		e.categories[tag] = func(c string) bool { return strings.EqualFold(c, name) }
	}
	return e
}

// CategoryTags lists the engine's category tags, sorted.
func (e *Engine) CategoryTags() []string {
	tags := make([]string, 0, len(e.categories))
	for t := range e.categories {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// StatusTags lists the engine's status tags, sorted.
func (e *Engine) StatusTags() []string {
	tags := make([]string, 0, len(e.statuses))
	for t := range e.statuses {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// ShouldShow reports whether r is visible under s. With "all" active every
// record is shown. Otherwise the record must match at least one active
// category tag and at least one active status tag; a partition with no
// active tags does not constrain.
func (e *Engine) ShouldShow(r Record, s State) bool {
	if s.IsAll() {
		return true
	}

	var cats []func(string) bool
	var statuses []string
	for _, tag := range s {
		if m, ok := e.categories[tag]; ok {
			cats = append(cats, m)
		} else if e.statuses[tag] {
			statuses = append(statuses, tag)
		}
	}

	if e.Strict && len(cats) == 0 && len(statuses) == 0 {
		return false
	}

	return matchCategory(r.FilterCategories(), cats) && matchStatus(r.FilterStatus(), statuses)
}

func matchCategory(recordCats []string, active []func(string) bool) bool {
	if len(active) == 0 {
		return true
	}
	for _, m := range active {
		for _, c := range recordCats {
			if m(c) {
				return true
			}
		}
	}
	return false
}

func matchStatus(status string, active []string) bool {
	if len(active) == 0 {
		return true
	}
	return slices.Contains(active, status)
}

// Apply returns the records of rs visible under s, in order.
func Apply[T Record](e *Engine, rs []T, s State) []T {
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		if e.ShouldShow(r, s) {
			out = append(out, r)
		}
	}
	return out
}
