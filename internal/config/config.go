package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. SALES_SERVER_PORT.
const EnvPrefix = "SALES"

// Store drivers understood by the infra factory.
const (
	DriverMemory   = "memory"
	DriverBigQuery = "bigquery"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is the complete, immutable runtime configuration. It is built once by
// Load and handed by value to every component constructor.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Data      DataConfig      `yaml:"data"`
	Generator GeneratorConfig `yaml:"generator"`
	Inventory InventoryConfig `yaml:"inventory"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Reports   ReportsConfig   `yaml:"reports"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	// RunGenerator starts the transaction generator inside the API process.
	RunGenerator bool `yaml:"run_generator" split_words:"true"`
}

// StoreConfig selects the table store backend and its connection settings.
type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

type BigQueryConfig struct {
	ProjectID string `yaml:"project_id" split_words:"true"`
	DatasetID string `yaml:"dataset_id" split_words:"true"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns" split_words:"true"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// DataConfig drives the data access layer.
type DataConfig struct {
	FetchLimit     int     `yaml:"fetch_limit" split_words:"true"`
	DefaultChannel string  `yaml:"default_channel" split_words:"true"`
	CostRatio      float64 `yaml:"cost_ratio" split_words:"true"`
}

type GeneratorConfig struct {
	Interval  time.Duration `yaml:"interval"`
	PausePoll time.Duration `yaml:"pause_poll" split_words:"true"`
	SeedCount int           `yaml:"seed_count" split_words:"true"`
	SeedStep  time.Duration `yaml:"seed_step" split_words:"true"`

	MinQuantity int     `yaml:"min_quantity" split_words:"true"`
	MaxQuantity int     `yaml:"max_quantity" split_words:"true"`
	MinPrice    float64 `yaml:"min_price" split_words:"true"`
	MaxPrice    float64 `yaml:"max_price" split_words:"true"`
	MinCostRate float64 `yaml:"min_cost_rate" split_words:"true"`
	MaxCostRate float64 `yaml:"max_cost_rate" split_words:"true"`

	Catalog  []string `yaml:"catalog"`
	Regions  []string `yaml:"regions"`
	Channels []string `yaml:"channels"`
}

type InventoryConfig struct {
	BaseStock         int64 `yaml:"base_stock" split_words:"true"`
	LowStockThreshold int64 `yaml:"low_stock_threshold" split_words:"true"`
}

type PipelineConfig struct {
	// LivenessThreshold is only consulted when no status flag was ever stored.
	LivenessThreshold time.Duration `yaml:"liveness_threshold" split_words:"true"`
}

type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ReportsConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultCatalog is the clothing catalog the demo ships with.
var DefaultCatalog = []string{
	"Classic White T-Shirt",
	"Slim Fit Denim Jeans",
	"Oversized Hoodie",
	"Running Sneakers",
	"Leather Biker Jacket",
	"Baseball Cap",
	"Cotton Crew Socks",
	"Cargo Shorts",
	"Summer Floral Dress",
	"Wool Knit Sweater",
	"Ankle Boots",
	"Silk Scarf",
	"Puffer Jacket",
	"Yoga Leggings",
	"Formal Blazer",
	"Chino Pants",
	"Maxi Skirt",
	"Aviator Sunglasses",
	"Leather Belt",
	"Beanie Hat",
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RunGenerator:    true,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			BigQuery: BigQueryConfig{
				DatasetID: "sales",
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
			Mongo: MongoConfig{
				Database: "sales",
			},
		},
		Data: DataConfig{
			FetchLimit:     2000,
			DefaultChannel: "Webstore",
			CostRatio:      0.7,
		},
		Generator: GeneratorConfig{
			Interval:    5 * time.Second,
			PausePoll:   2 * time.Second,
			SeedCount:   100,
			SeedStep:    time.Minute,
			MinQuantity: 1,
			MaxQuantity: 9,
			MinPrice:    10,
			MaxPrice:    500,
			MinCostRate: 0.5,
			MaxCostRate: 0.8,
			Catalog:     append([]string(nil), DefaultCatalog...),
			Regions:     []string{"North", "South", "East", "West", "Central"},
			Channels:    []string{"Webstore", "Shop A", "Shop B"},
		},
		Inventory: InventoryConfig{
			BaseStock:         200,
			LowStockThreshold: 20,
		},
		Pipeline: PipelineConfig{
			LivenessThreshold: 30 * time.Second,
		},
		Auth: AuthConfig{
			Username: "admin",
			Password: "admin123",
		},
		Reports: ReportsConfig{
			Prefix: "reports",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration: defaults, then the optional .env file, then
// the optional YAML file at path, then SALES_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: reading .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: parsing %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("Load: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the components cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverBigQuery:
		if c.Store.BigQuery.ProjectID == "" {
			errs = append(errs, errors.New("store.bigquery.project_id is required"))
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required"))
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	g := c.Generator
	if len(g.Catalog) == 0 {
		errs = append(errs, errors.New("generator.catalog must not be empty"))
	}
	seen := make(map[string]bool, len(g.Catalog))
	for _, name := range g.Catalog {
		if seen[name] {
			errs = append(errs, fmt.Errorf("generator.catalog lists %q more than once", name))
			continue
		}
		seen[name] = true
	}
	if len(g.Regions) == 0 {
		errs = append(errs, errors.New("generator.regions must not be empty"))
	}
	if len(g.Channels) == 0 {
		errs = append(errs, errors.New("generator.channels must not be empty"))
	}
	if g.MinQuantity < 1 || g.MaxQuantity < g.MinQuantity {
		errs = append(errs, fmt.Errorf("generator quantity range [%d, %d] is invalid", g.MinQuantity, g.MaxQuantity))
	}
	if g.MinPrice <= 0 || g.MaxPrice < g.MinPrice {
		errs = append(errs, fmt.Errorf("generator price range [%v, %v] is invalid", g.MinPrice, g.MaxPrice))
	}
	if g.MinCostRate <= 0 || g.MaxCostRate < g.MinCostRate {
		errs = append(errs, fmt.Errorf("generator cost rate range [%v, %v] is invalid", g.MinCostRate, g.MaxCostRate))
	}
	if g.Interval <= 0 || g.PausePoll <= 0 {
		errs = append(errs, errors.New("generator interval and pause_poll must be positive"))
	}

	if c.Data.FetchLimit < 0 {
		errs = append(errs, errors.New("data.fetch_limit must not be negative"))
	}
	if c.Data.CostRatio <= 0 {
		errs = append(errs, errors.New("data.cost_ratio must be positive"))
	}
	if c.Inventory.BaseStock < 0 {
		errs = append(errs, errors.New("inventory.base_stock must not be negative"))
	}
	if c.Inventory.LowStockThreshold < 0 {
		errs = append(errs, errors.New("inventory.low_stock_threshold must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("Validate: %w", errors.Join(errs...))
	}
	return nil
}
