package domain

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/shape_overrides.yaml
var defaultOverridesYAML []byte

// Join methods recorded on a ShapeMatch.
const (
	JoinOverride  = "override"
	JoinHeuristic = "heuristic"
)

// minFuzzyLen is the shortest normalized key allowed to match by containment.
const minFuzzyLen = 4

// fillStyleRe pulls the fill color out of an inline style attribute.
var fillStyleRe = regexp.MustCompile(`(?:^|;)\s*fill\s*:\s*([^;]+)`)

// Shape is one identified element of the flowchart SVG.
type Shape struct {
	ID       string `json:"id"`
	Element  string `json:"element"`
	Geometry string `json:"geometry"`
	Fill     string `json:"fill,omitempty"`
}

// ShapeOverride pins a facility item to a shape ID.
type ShapeOverride struct {
	ItemID  string `yaml:"item_id" json:"item_id"`
	ShapeID string `yaml:"shape_id" json:"shape_id"`
}

// ShapeMatch is a facility joined to its shape.
type ShapeMatch struct {
	Facility FacilityRecord `json:"facility"`
	Shape    Shape          `json:"shape"`
	Method   string         `json:"method"`
}

// UnmatchedFacility is a facility the join could not place, with the reason.
type UnmatchedFacility struct {
	Facility FacilityRecord `json:"facility"`
	Reason   string         `json:"reason"`
}

// JoinResult holds both outcomes of JoinShapes.
type JoinResult struct {
	Matches   []ShapeMatch        `json:"matches"`
	Unmatched []UnmatchedFacility `json:"unmatched"`
}

// ParseShapes reads every id-bearing path, polygon, polyline, rect, circle
// and ellipse from an SVG document.
func ParseShapes(r io.Reader) ([]Shape, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var shapes []Shape
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := attrMap(se.Attr)
		id := attrs["id"]
		if id == "" {
			continue
		}
		geometry, ok := geometryOf(se.Name.Local, attrs)
		if !ok {
			continue
		}
		shapes = append(shapes, Shape{
			ID:       id,
			Element:  se.Name.Local,
			Geometry: geometry,
			Fill:     fillOf(attrs),
		})
	}
	return shapes, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = strings.TrimSpace(a.Value)
	}
	return m
}

func geometryOf(element string, a map[string]string) (string, bool) {
	switch element {
	case "path":
		return a["d"], a["d"] != ""
	case "polygon", "polyline":
		return a["points"], a["points"] != ""
	case "rect":
		return fmt.Sprintf("%s,%s,%s,%s", a["x"], a["y"], a["width"], a["height"]), true
	case "circle":
		return fmt.Sprintf("%s,%s,%s", a["cx"], a["cy"], a["r"]), true
	case "ellipse":
		return fmt.Sprintf("%s,%s,%s,%s", a["cx"], a["cy"], a["rx"], a["ry"]), true
	default:
		return "", false
	}
}

func fillOf(a map[string]string) string {
	if f := a["fill"]; f != "" {
		return f
	}
	if m := fillStyleRe.FindStringSubmatch(a["style"]); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

type overrideFile struct {
	Overrides []ShapeOverride `yaml:"overrides"`
}

// LoadShapeOverrides decodes the YAML override table.
func LoadShapeOverrides(r io.Reader) ([]ShapeOverride, error) {
	var f overrideFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode shape overrides: %w", err)
	}
	return f.Overrides, nil
}

// DefaultShapeOverrides returns the override table bundled with the binary.
func DefaultShapeOverrides() []ShapeOverride {
	o, err := LoadShapeOverrides(bytes.NewReader(defaultOverridesYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded shape overrides: %v", err))
	}
	return o
}

// JoinShapes attaches facilities to shapes. The override table is consulted
// first and is authoritative: an override naming a missing shape leaves the
// facility unmatched. Otherwise the item ID, sub-item and location text are
// tried in turn against normalized shape IDs, first by equality and then by
// containment. A candidate that hits more than one shape is ambiguous and is
// skipped rather than guessed.
func JoinShapes(facilities []FacilityRecord, shapes []Shape, overrides []ShapeOverride) JoinResult {
	byID := make(map[string]Shape, len(shapes))
	for _, s := range shapes {
		byID[s.ID] = s
	}
	pinned := make(map[string]string, len(overrides))
	for _, o := range overrides {
		pinned[o.ItemID] = o.ShapeID
	}

	res := JoinResult{Matches: []ShapeMatch{}, Unmatched: []UnmatchedFacility{}}
	for _, f := range facilities {
		if shapeID, ok := pinned[f.ItemID]; ok {
			if s, found := byID[shapeID]; found {
				res.Matches = append(res.Matches, ShapeMatch{Facility: f, Shape: s, Method: JoinOverride})
			} else {
				res.Unmatched = append(res.Unmatched, UnmatchedFacility{
					Facility: f,
					Reason:   fmt.Sprintf("override shape %q not found", shapeID),
				})
			}
			continue
		}

		if s, ok := heuristicShape(f, shapes); ok {
			res.Matches = append(res.Matches, ShapeMatch{Facility: f, Shape: s, Method: JoinHeuristic})
			continue
		}
		res.Unmatched = append(res.Unmatched, UnmatchedFacility{Facility: f, Reason: "no matching shape"})
	}
	return res
}

func heuristicShape(f FacilityRecord, shapes []Shape) (Shape, bool) {
	for _, candidate := range []string{f.ItemID, f.SubItem, f.Locations} {
		key := normalizeKey(candidate)
		if key == "" {
			continue
		}
		if s, ok := uniqueShape(shapes, func(id string) bool { return id == key }); ok {
			return s, true
		}
		if len(key) < minFuzzyLen {
			continue
		}
		if s, ok := uniqueShape(shapes, func(id string) bool {
			return len(id) >= minFuzzyLen && (strings.Contains(id, key) || strings.Contains(key, id))
		}); ok {
			return s, true
		}
	}
	return Shape{}, false
}

func uniqueShape(shapes []Shape, match func(normalizedID string) bool) (Shape, bool) {
	var hit Shape
	n := 0
	for _, s := range shapes {
		if match(normalizeKey(s.ID)) {
			hit = s
			n++
			if n > 1 {
				return Shape{}, false
			}
		}
	}
	return hit, n == 1
}

// normalizeKey lowercases and drops everything but letters and digits.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
