package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
catalog:
  driver: http
  base_url: https://supplier.example.com/api
  requests_per_minute: 30
jobs:
  page_size: 40
database:
  driver: postgres
  host: db
  password: pw
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Catalog.Driver)
	assert.Equal(t, 30, cfg.Catalog.RequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 40, cfg.Jobs.PageSize)
	assert.Equal(t, 5, cfg.Jobs.MaxPagesPerUnit)
	assert.Equal(t, 2*time.Minute, cfg.Jobs.LockTTL)
	assert.Equal(t, 3.75, cfg.Pricing.ExchangeRate)
	assert.Equal(t, "host=db port=5432 user=dropcart password=pw dbname=dropcart sslmode=disable", cfg.Database.DSN())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  driver: http\n"), 0o644))

	t.Setenv("CATALOG_BASE_URL", "https://env.example.com")
	t.Setenv("CATALOG_API_KEY", "k")
	t.Setenv("JOBS_MAX_STEPS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Catalog.BaseURL)
	assert.Equal(t, "k", cfg.Catalog.APIKey)
	assert.Equal(t, 10, cfg.Jobs.MaxSteps)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Catalog: CatalogConfig{Driver: "file", ManifestPath: "./m"},
			Jobs:    JobsConfig{PageSize: 20, MaxPagesPerUnit: 1},
			Pricing: PricingConfig{ExchangeRate: 3.75},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"http without url", func(c *Config) { c.Catalog.Driver = "http" }, true},
		{"unknown driver", func(c *Config) { c.Catalog.Driver = "ftp" }, true},
		{"zero page size", func(c *Config) { c.Jobs.PageSize = 0 }, true},
		{"zero exchange rate", func(c *Config) { c.Pricing.ExchangeRate = 0 }, true},
		{"kafka without topic", func(c *Config) { c.Kafka = KafkaConfig{Enabled: true, Brokers: []string{"b:9092"}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	assert.Equal(t, "./data/x.db", (&DatabaseConfig{Driver: "sqlite", Path: "./data/x.db"}).DSN())
	assert.Equal(t, "postgres://u@h/db", (&DatabaseConfig{Driver: "postgres", URL: "postgres://u@h/db"}).DSN())
}
