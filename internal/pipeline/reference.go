package pipeline

import (
	"fmt"
	"os"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/domain"
)

// Reference holds the tables that change rarely: flowchart shapes, the
// shape override list and the impact configs.
type Reference struct {
	Shapes    []domain.Shape
	Overrides []domain.ShapeOverride
	Impacts   []domain.ImpactConfig
}

// LoadReference reads the configured reference files. Unset files fall back
// to the embedded defaults; an unset shapes file means no shapes.
func LoadReference(cfg *config.Config) (Reference, error) {
	ref := Reference{
		Overrides: domain.DefaultShapeOverrides(),
		Impacts:   domain.DefaultImpactConfigs(),
	}

	if cfg.ShapesFile != "" {
		f, err := os.Open(cfg.ShapesFile)
		if err != nil {
			return Reference{}, fmt.Errorf("open shapes: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		if ref.Shapes, err = domain.ParseShapes(f); err != nil {
			return Reference{}, fmt.Errorf("parse shapes %s: %w", cfg.ShapesFile, err)
		}
	}

	if cfg.ShapeOverridesFile != "" {
		f, err := os.Open(cfg.ShapeOverridesFile)
		if err != nil {
			return Reference{}, fmt.Errorf("open shape overrides: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		if ref.Overrides, err = domain.LoadShapeOverrides(f); err != nil {
			return Reference{}, fmt.Errorf("parse shape overrides %s: %w", cfg.ShapeOverridesFile, err)
		}
	}

	if cfg.ImpactsFile != "" {
		f, err := os.Open(cfg.ImpactsFile)
		if err != nil {
			return Reference{}, fmt.Errorf("open impacts: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		if ref.Impacts, err = domain.LoadImpactConfigs(f); err != nil {
			return Reference{}, fmt.Errorf("parse impacts %s: %w", cfg.ImpactsFile, err)
		}
	}

	return ref, nil
}
