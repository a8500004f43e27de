package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "biomatchd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  addr: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, ExtractorStatic, cfg.Extractor.Backend)
	assert.Equal(t, 128, cfg.Types["face"].Dimensions)
	assert.Equal(t, 0.9, cfg.Types["face"].DedupThreshold)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  addr: ":8443"
  api_key: secret
store:
  backend: badger
  path: /var/lib/biomatch
journal:
  dir: /var/lib/biomatch/journal
  sync_each: true
archive:
  backend: minio
  endpoint: localhost:9000
  bucket: samples
  prefix: prod
extractor:
  backend: remote
  url: http://model-server:5000
limits:
  max_concurrent_extractions: 8
  extractions_per_second: 50
types:
  face:
    dimensions: 512
    dedup_threshold: 0.95
    match_threshold: 0.85
  palm:
    dimensions: 256
    dedup_threshold: 0.92
    match_threshold: 0.8
`))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, StoreBadger, cfg.Store.Backend)
	assert.True(t, cfg.Journal.SyncEach)
	assert.Equal(t, "samples", cfg.Archive.Bucket)
	assert.Equal(t, "http://model-server:5000", cfg.Extractor.URL)
	assert.Equal(t, int64(8), cfg.Limits.MaxConcurrentExtractions)
	assert.Equal(t, 512, cfg.Types["face"].Dimensions)
	assert.Equal(t, 0.8, cfg.Types["palm"].MatchThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "etcd" },
			wantErr: "unknown store backend",
		},
		{
			name:    "badger without path",
			mutate:  func(c *Config) { c.Store.Backend = StoreBadger },
			wantErr: "store.path required",
		},
		{
			name:    "dynamodb without table",
			mutate:  func(c *Config) { c.Store.Backend = StoreDynamoDB },
			wantErr: "store.table required",
		},
		{
			name:    "remote extractor without url",
			mutate:  func(c *Config) { c.Extractor.Backend = ExtractorRemote },
			wantErr: "extractor.url required",
		},
		{
			name:    "s3 archive without bucket",
			mutate:  func(c *Config) { c.Archive.Backend = ArchiveS3 },
			wantErr: "archive.bucket required",
		},
		{
			name: "dedup below match",
			mutate: func(c *Config) {
				c.Types["face"] = TypeSpec{Dimensions: 128, DedupThreshold: 0.7, MatchThreshold: 0.8}
			},
			wantErr: "dedup_threshold",
		},
		{
			name: "zero dimensions",
			mutate: func(c *Config) {
				c.Types["palm"] = TypeSpec{DedupThreshold: 0.9, MatchThreshold: 0.8}
			},
			wantErr: "dimensions",
		},
		{
			name: "unknown type",
			mutate: func(c *Config) {
				c.Types["iris"] = TypeSpec{Dimensions: 64, DedupThreshold: 0.9, MatchThreshold: 0.8}
			},
			wantErr: "unknown biometric type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, Default().Validate())
}
