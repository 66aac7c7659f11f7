package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2000, cfg.Data.FetchLimit)
	assert.Equal(t, "Webstore", cfg.Data.DefaultChannel)
	assert.Equal(t, int64(20), cfg.Inventory.LowStockThreshold)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LivenessThreshold)
	assert.Len(t, cfg.Generator.Catalog, 20)
}

func TestDefault_CatalogIsCopied(t *testing.T) {
	cfg := Default()
	cfg.Generator.Catalog[0] = "changed"
	assert.Equal(t, "Classic White T-Shirt", DefaultCatalog[0])
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: "9090"
generator:
  interval: 1s
  catalog: ["Hat", "Scarf"]
inventory:
  low_stock_threshold: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("SALES_SERVER_PORT", "7070")
	t.Setenv("SALES_DATA_FETCH_LIMIT", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env overrides yaml")
	assert.Equal(t, 500, cfg.Data.FetchLimit)
	assert.Equal(t, time.Second, cfg.Generator.Interval)
	assert.Equal(t, []string{"Hat", "Scarf"}, cfg.Generator.Catalog)
	assert.Equal(t, int64(50), cfg.Inventory.LowStockThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Generator.PausePoll)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "cassandra" }},
		{"bigquery without project", func(c *Config) { c.Store.Driver = DriverBigQuery }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"mongo without uri", func(c *Config) { c.Store.Driver = DriverMongo }},
		{"empty catalog", func(c *Config) { c.Generator.Catalog = nil }},
		{"duplicate catalog entry", func(c *Config) { c.Generator.Catalog = append(c.Generator.Catalog, c.Generator.Catalog[3]) }},
		{"inverted price range", func(c *Config) { c.Generator.MinPrice, c.Generator.MaxPrice = 100, 10 }},
		{"zero quantity", func(c *Config) { c.Generator.MinQuantity = 0 }},
		{"negative threshold", func(c *Config) { c.Inventory.LowStockThreshold = -1 }},
		{"zero interval", func(c *Config) { c.Generator.Interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_NamesDuplicateProduct(t *testing.T) {
	cfg := Default()
	cfg.Generator.Catalog = []string{"Hat", "Scarf", "Hat"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Hat" more than once`)
}
