package domain

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/impacts.yaml
var defaultImpactsYAML []byte

// ImpactConfig defines one strategic capability as a keyword rollup of systems.
type ImpactConfig struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Fallback string   `yaml:"fallback" json:"fallback"`
}

// ImpactSummary is the computed rollup for one ImpactConfig.
type ImpactSummary struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	MatchedSystems   []string `json:"matched_systems"`
	Total            int      `json:"total"`
	Destroyed        int      `json:"destroyed"`
	LikelyDestroyed  int      `json:"likely_destroyed"`
	Operational      int      `json:"operational"`
	Annotation       string   `json:"annotation"`
	InsufficientData bool     `json:"insufficient_data"`
}

type impactFile struct {
	Impacts []ImpactConfig `yaml:"impacts"`
}

// LoadImpactConfigs decodes a YAML list of impact definitions.
func LoadImpactConfigs(r io.Reader) ([]ImpactConfig, error) {
	var f impactFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode impact configs: %w", err)
	}
	for i, c := range f.Impacts {
		if c.ID == "" {
			return nil, fmt.Errorf("impact config %d: id is required", i)
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("impact config %q: keywords are required", c.ID)
		}
	}
	return f.Impacts, nil
}

// DefaultImpactConfigs returns the curated impact definitions bundled with the binary.
func DefaultImpactConfigs() []ImpactConfig {
	cfgs, err := LoadImpactConfigs(bytes.NewReader(defaultImpactsYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded impact configs: %v", err))
	}
	return cfgs
}

// BuildImpactSummaries rolls systems up into one summary per config. A group
// matches when its name or main category contains any of the config's
// keywords. When no group matches, the summary carries the config's fallback
// text and InsufficientData is set.
func BuildImpactSummaries(groups []SystemGroup, configs []ImpactConfig) []ImpactSummary {
	out := make([]ImpactSummary, 0, len(configs))
	for _, cfg := range configs {
		kws := newKeywordSet(cfg.Keywords)

		s := ImpactSummary{ID: cfg.ID, Title: cfg.Title, MatchedSystems: []string{}}
		for _, g := range groups {
			if !kws.matchAny(g.Name, g.MainCategory) {
				continue
			}
			s.MatchedSystems = append(s.MatchedSystems, g.Name)
			for _, loc := range g.Locations {
				s.Total++
				switch loc.Status.Key {
				case StatusDestroyed:
					s.Destroyed++
				case StatusLikelyDestroyed:
					s.LikelyDestroyed++
				case StatusOperational:
					s.Operational++
				}
			}
		}

		if len(s.MatchedSystems) == 0 {
			s.Annotation = cfg.Fallback
			s.InsufficientData = true
		} else {
			s.Annotation = annotate(s)
		}
		out = append(out, s)
	}
	return out
}

// annotate renders counts as e.g. "2 of 5 sites destroyed, 1 likely destroyed, 1 operational".
func annotate(s ImpactSummary) string {
	noun := "sites"
	if s.Total == 1 {
		noun = "site"
	}
	parts := []string{fmt.Sprintf("%d of %d %s destroyed", s.Destroyed, s.Total, noun)}
	if s.LikelyDestroyed > 0 {
		parts = append(parts, fmt.Sprintf("%d likely destroyed", s.LikelyDestroyed))
	}
	if s.Operational > 0 {
		parts = append(parts, fmt.Sprintf("%d operational", s.Operational))
	}
	return strings.Join(parts, ", ")
}
