package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/source"
)

// SourcesFromConfig builds the fallback chain for every configured dataset.
func SourcesFromConfig(cfg *config.Config, logger *slog.Logger) Sources {
	load := func(d config.Dataset) Loader {
		return source.FromDataset(d, cfg.FetchTimeout, cfg.FetchCacheTTL, logger)
	}
	return Sources{
		Incidents:       load(cfg.Incidents),
		Facilities:      load(cfg.Facilities),
		Visuals:         load(cfg.Visuals),
		RelatedProducts: load(cfg.RelatedProducts),
	}
}

// WatchPaths lists the local dataset files worth watching. Files that back a
// remote URL are skipped because the refresher rewrites them itself.
func WatchPaths(cfg *config.Config) []string {
	var paths []string
	for _, d := range []config.Dataset{cfg.Incidents, cfg.Facilities, cfg.Visuals, cfg.RelatedProducts} {
		if !d.Remote() {
			paths = append(paths, d.File)
		}
	}
	return paths
}
