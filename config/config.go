// Package config loads and validates the YAML configuration of the biomatchd
// server binary. Library consumers configure the engine through functional
// options instead.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Store backend names.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreDynamoDB = "dynamodb"
)

// Archive backend names.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveMinIO = "minio"
	ArchiveS3    = "s3"
)

// Extractor backend names.
const (
	ExtractorStatic = "static"
	ExtractorRemote = "remote"
)

// Config is the root of the biomatchd configuration file.
type Config struct {
	Server    Server              `yaml:"server"`
	Store     StoreConfig         `yaml:"store"`
	Journal   Journal             `yaml:"journal"`
	Archive   Archive             `yaml:"archive"`
	Extractor Extractor           `yaml:"extractor"`
	Limits    Limits              `yaml:"limits"`
	Types     map[string]TypeSpec `yaml:"types"`
}

// Server configures the HTTP listener.
type Server struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// APIKey protects all /api routes when non-empty. Health and metrics
	// stay open.
	APIKey string `yaml:"api_key"`
	// LogJSON switches the request log to JSON output.
	LogJSON bool `yaml:"log_json"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`

	// Badger options (backend: badger).
	Path string `yaml:"path"`

	// DynamoDB options (backend: dynamodb).
	Table  string `yaml:"table"`
	Region string `yaml:"region"`
}

// Journal configures the operation log for the memory backend.
type Journal struct {
	// Dir enables journaling when non-empty. Only meaningful with the
	// memory store backend; persistent backends recover from their own
	// storage.
	Dir string `yaml:"dir"`
	// SyncEach fsyncs the log after every append.
	SyncEach bool `yaml:"sync_each"`
}

// Archive configures raw-sample archiving.
type Archive struct {
	Backend string `yaml:"backend"`

	// Local options.
	Root string `yaml:"root"`

	// MinIO / S3 options.
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Extractor selects the embedding extractor.
type Extractor struct {
	Backend string `yaml:"backend"`

	// Remote options.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Limits bounds extraction resource usage.
type Limits struct {
	MaxConcurrentExtractions int64   `yaml:"max_concurrent_extractions"`
	ExtractionsPerSecond     float64 `yaml:"extractions_per_second"`
	ExtractionBurst          int     `yaml:"extraction_burst"`
}

// TypeSpec holds the per-type vector dimensionality and thresholds.
type TypeSpec struct {
	Dimensions     int     `yaml:"dimensions"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
	MatchThreshold float64 `yaml:"match_threshold"`
}

// Default returns the configuration used when no file is given: memory
// store, static extractor, no archive, no auth.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Backend: StoreMemory,
		},
		Archive: Archive{
			Backend: ArchiveNone,
		},
		Extractor: Extractor{
			Backend: ExtractorStatic,
		},
		Types: map[string]TypeSpec{
			"face": {Dimensions: 128, DedupThreshold: 0.9, MatchThreshold: 0.8},
			"palm": {Dimensions: 128, DedupThreshold: 0.9, MatchThreshold: 0.8},
		},
	}
}

// Load reads and validates a YAML configuration file. Fields absent from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path required for badger backend")
		}
	case StoreDynamoDB:
		if c.Store.Table == "" {
			return fmt.Errorf("config: store.table required for dynamodb backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.Root == "" {
			return fmt.Errorf("config: archive.root required for local backend")
		}
	case ArchiveMinIO:
		if c.Archive.Endpoint == "" || c.Archive.Bucket == "" {
			return fmt.Errorf("config: archive.endpoint and archive.bucket required for minio backend")
		}
	case ArchiveS3:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("config: archive.bucket required for s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown archive backend %q", c.Archive.Backend)
	}

	switch c.Extractor.Backend {
	case ExtractorStatic:
	case ExtractorRemote:
		if c.Extractor.URL == "" {
			return fmt.Errorf("config: extractor.url required for remote backend")
		}
	default:
		return fmt.Errorf("config: unknown extractor backend %q", c.Extractor.Backend)
	}

	for name, spec := range c.Types {
		if name != "face" && name != "palm" {
			return fmt.Errorf("config: unknown biometric type %q", name)
		}
		if spec.Dimensions <= 0 {
			return fmt.Errorf("config: types.%s.dimensions must be > 0", name)
		}
		if spec.DedupThreshold < 0 || spec.DedupThreshold > 1 ||
			spec.MatchThreshold < 0 || spec.MatchThreshold > 1 {
			return fmt.Errorf("config: types.%s thresholds must be within [0,1]", name)
		}
		if spec.DedupThreshold < spec.MatchThreshold {
			return fmt.Errorf("config: types.%s dedup_threshold %.4f must be >= match_threshold %.4f",
				name, spec.DedupThreshold, spec.MatchThreshold)
		}
	}

	return nil
}
