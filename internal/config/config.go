package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Dataset names used for snapshot files, metrics labels and log attributes.
const (
	DatasetIncidents       = "incidents"
	DatasetFacilities      = "facilities"
	DatasetVisuals         = "visuals"
	DatasetRelatedProducts = "related-products"
)

// Dataset locates one CSV source: an optional remote URL and a local file
// that serves as the fallback and last-known-good snapshot.
type Dataset struct {
	Name string
	URL  string
	File string
}

// Remote reports whether the dataset has a remote URL configured.
func (d Dataset) Remote() bool { return d.URL != "" }

// Config holds all service settings, populated from environment variables.
type Config struct {
	Incidents  Dataset
	Facilities Dataset

	// Optional pass-through datasets.
	Visuals         Dataset
	RelatedProducts Dataset

	ShapesFile         string
	ImpactsFile        string
	ShapeOverridesFile string

	SnapshotDir string
	OutputDir   string

	FetchTimeout    time.Duration
	FetchCacheTTL   time.Duration
	RefreshInterval time.Duration
	WatchLocal      bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Publishing is disabled when no brokers are configured.
	KafkaBrokers       []string
	KafkaIncidentTopic string
	KafkaImpactTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("FETCH_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}

	watchLocal, err := strconv.ParseBool(sharedcfg.EnvOrDefault("WATCH_LOCAL", "false"))
	if err != nil {
		return nil, errors.New("invalid WATCH_LOCAL")
	}

	snapshotDir := sharedcfg.EnvOrDefault("SNAPSHOT_DIR", "data")

	cfg := &Config{
		Incidents:       dataset(DatasetIncidents, "INCIDENTS", snapshotDir),
		Facilities:      dataset(DatasetFacilities, "FACILITIES", snapshotDir),
		Visuals:         dataset(DatasetVisuals, "VISUALS", snapshotDir),
		RelatedProducts: dataset(DatasetRelatedProducts, "RELATED_PRODUCTS", snapshotDir),

		ShapesFile:         os.Getenv("SHAPES_FILE"),
		ImpactsFile:        os.Getenv("IMPACTS_FILE"),
		ShapeOverridesFile: os.Getenv("SHAPE_OVERRIDES_FILE"),

		SnapshotDir: snapshotDir,
		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "public"),

		FetchTimeout:    fetchTimeout,
		FetchCacheTTL:   cacheTTL,
		RefreshInterval: refreshInterval,
		WatchLocal:      watchLocal,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaIncidentTopic: sharedcfg.EnvOrDefault("KAFKA_INCIDENT_TOPIC", "iran-incidents"),
		KafkaImpactTopic:   sharedcfg.EnvOrDefault("KAFKA_IMPACT_TOPIC", "iran-facility-impacts"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.Incidents.File == "" {
		return nil, errors.New("INCIDENTS_FILE must not be empty")
	}
	if cfg.Facilities.File == "" {
		return nil, errors.New("FACILITIES_FILE must not be empty")
	}
	if cfg.PublishEnabled() && (cfg.KafkaIncidentTopic == "" || cfg.KafkaImpactTopic == "") {
		return nil, errors.New("KAFKA_INCIDENT_TOPIC and KAFKA_IMPACT_TOPIC are required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether snapshots should be published to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// dataset reads <PREFIX>_URL and <PREFIX>_FILE. The file defaults to
// <snapshotDir>/<name>.csv.
func dataset(name, prefix, snapshotDir string) Dataset {
	return Dataset{
		Name: name,
		URL:  os.Getenv(prefix + "_URL"),
		File: sharedcfg.EnvOrDefault(prefix+"_FILE", filepath.Join(snapshotDir, name+".csv")),
	}
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
