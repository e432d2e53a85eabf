package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to train and serve the risk engine.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Data     DataConfig     `yaml:"data" toml:"data"`
	Features FeatureConfig  `yaml:"features" toml:"features"`
	Model    ModelConfig    `yaml:"model" toml:"model"`
	Scoring  ScoringConfig  `yaml:"scoring" toml:"scoring"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
}

// ServerConfig controls the optional gRPC listener.
type ServerConfig struct {
	Address         string        `yaml:"address" toml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress" toml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" toml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// Data source kinds.
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourceRegistry = "registry"
)

// DataConfig selects where the equipment master and failure log are read from.
type DataConfig struct {
	Source   string         `yaml:"source" toml:"source"`
	CSV      CSVConfig      `yaml:"csv" toml:"csv"`
	SQLite   SQLiteConfig   `yaml:"sqlite" toml:"sqlite"`
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
}

// CSVConfig points at the two exported tables.
type CSVConfig struct {
	EquipmentPath string `yaml:"equipmentPath" toml:"equipmentPath"`
	FailuresPath  string `yaml:"failuresPath" toml:"failuresPath"`
}

// SQLiteConfig configures the gorm-backed sqlite source.
type SQLiteConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

// RegistryConfig configures the fleet registry HTTP client.
type RegistryConfig struct {
	BaseURL       string        `yaml:"baseURL" toml:"baseURL"`
	EquipmentPath string        `yaml:"equipmentPath" toml:"equipmentPath"`
	FailuresPath  string        `yaml:"failuresPath" toml:"failuresPath"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	CacheTTL      time.Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// FeatureConfig holds the temporal feature constants.
type FeatureConfig struct {
	SentinelDays      int `yaml:"sentinelDays" toml:"sentinelDays"`
	RecentWindowDays  int `yaml:"recentWindowDays" toml:"recentWindowDays"`
	HorizonDays       int `yaml:"horizonDays" toml:"horizonDays"`
	MTBFMinIntervals  int `yaml:"mtbfMinIntervals" toml:"mtbfMinIntervals"`
	QuietIntervalDays int `yaml:"quietIntervalDays" toml:"quietIntervalDays"`

	// NegativeSampling selects how label-0 snapshots are drawn: "now" or "quiet".
	NegativeSampling string `yaml:"negativeSampling" toml:"negativeSampling"`
}

// ModelConfig controls training and the artifact location.
type ModelConfig struct {
	ArtifactPath  string       `yaml:"artifactPath" toml:"artifactPath"`
	Backend       string       `yaml:"backend" toml:"backend"`
	Seed          uint64       `yaml:"seed" toml:"seed"`
	TestFraction  float64      `yaml:"testFraction" toml:"testFraction"`
	MinROCAUC     float64      `yaml:"minROCAUC" toml:"minROCAUC"`
	WatchArtifact bool         `yaml:"watchArtifact" toml:"watchArtifact"`
	Boosting      BoostConfig  `yaml:"boosting" toml:"boosting"`
	Forest        ForestConfig `yaml:"forest" toml:"forest"`
}

// BoostConfig holds gradient-boosting hyperparameters.
type BoostConfig struct {
	Rounds       int     `yaml:"rounds" toml:"rounds"`
	MaxDepth     int     `yaml:"maxDepth" toml:"maxDepth"`
	LearningRate float64 `yaml:"learningRate" toml:"learningRate"`
	Lambda       float64 `yaml:"lambda" toml:"lambda"`
	MinChildHess float64 `yaml:"minChildWeight" toml:"minChildWeight"`
}

// ForestConfig holds random-forest hyperparameters.
type ForestConfig struct {
	Trees          int `yaml:"trees" toml:"trees"`
	MaxDepth       int `yaml:"maxDepth" toml:"maxDepth"`
	MinSamplesLeaf int `yaml:"minSamplesLeaf" toml:"minSamplesLeaf"`
}

// ScoringConfig controls fleet scoring behaviour.
type ScoringConfig struct {
	SkipFailedAssets bool `yaml:"skipFailedAssets" toml:"skipFailedAssets"`
}

// CacheConfig controls the cache provider used for registry responses and the training lease.
type CacheConfig struct {
	Backend      string        `yaml:"backend" toml:"backend"`
	Addr         string        `yaml:"addr" toml:"addr"`
	Username     string        `yaml:"username" toml:"username"`
	Password     string        `yaml:"password" toml:"password"`
	DB           int           `yaml:"db" toml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout" toml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries" toml:"maxRetries"`
	TLS          bool          `yaml:"tls" toml:"tls"`
	LeaseTTL     time.Duration `yaml:"leaseTTL" toml:"leaseTTL"`
}

// Load initialises Config from a YAML or TOML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_RISK_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Data: DataConfig{
			Source: SourceCSV,
			CSV: CSVConfig{
				EquipmentPath: "data/equipment.csv",
				FailuresPath:  "data/equipment_downtime.csv",
			},
			SQLite: SQLiteConfig{DSN: "data/supply_chain.db"},
			Registry: RegistryConfig{
				EquipmentPath: "/api/v1/equipment",
				FailuresPath:  "/api/v1/failures",
				Timeout:       5 * time.Second,
				CacheTTL:      time.Minute,
			},
		},
		Features: FeatureConfig{
			SentinelDays:      730,
			RecentWindowDays:  90,
			HorizonDays:       30,
			MTBFMinIntervals:  2,
			NegativeSampling:  "now",
			QuietIntervalDays: 90,
		},
		Model: ModelConfig{
			ArtifactPath: "models/failure_prediction_model.json",
			Backend:      "auto",
			Seed:         42,
			TestFraction: 0.2,
			Boosting: BoostConfig{
				Rounds:       100,
				MaxDepth:     5,
				LearningRate: 0.1,
				Lambda:       1,
				MinChildHess: 1,
			},
			Forest: ForestConfig{
				Trees:          100,
				MaxDepth:       10,
				MinSamplesLeaf: 1,
			},
		},
		Cache: CacheConfig{
			Backend:      "memory",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			LeaseTTL:     10 * time.Minute,
		},
	}
}

// Validate rejects settings that would make training or scoring meaningless.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceCSV, SourceSQLite, SourceRegistry:
	default:
		return fmt.Errorf("data.source %q must be one of csv, sqlite, registry", c.Data.Source)
	}
	if c.Data.Source == SourceRegistry && c.Data.Registry.BaseURL == "" {
		return errors.New("data.registry.baseURL is required for the registry source")
	}
	if c.Model.ArtifactPath == "" {
		return errors.New("model.artifactPath is required")
	}
	if c.Model.TestFraction <= 0 || c.Model.TestFraction >= 1 {
		return fmt.Errorf("model.testFraction %.3f must be in (0,1)", c.Model.TestFraction)
	}
	if c.Features.SentinelDays <= 0 || c.Features.RecentWindowDays <= 0 {
		return errors.New("features.sentinelDays and features.recentWindowDays must be positive")
	}
	if c.Features.HorizonDays <= 0 {
		return errors.New("features.horizonDays must be positive")
	}
	switch c.Features.NegativeSampling {
	case "", "now":
	case "quiet":
		if c.Features.QuietIntervalDays <= 0 {
			return errors.New("features.quietIntervalDays must be positive for quiet sampling")
		}
	default:
		return fmt.Errorf("features.negativeSampling %q must be one of now, quiet", c.Features.NegativeSampling)
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "valkey":
	default:
		return fmt.Errorf("cache.backend %q must be one of none, memory, valkey", c.Cache.Backend)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_RISK_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_RISK_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_RISK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_RISK_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_RISK_DATA_SOURCE"); v != "" {
		cfg.Data.Source = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_RISK_EQUIPMENT_CSV"); v != "" {
		cfg.Data.CSV.EquipmentPath = v
	}
	if v := os.Getenv("MIRADOR_RISK_FAILURES_CSV"); v != "" {
		cfg.Data.CSV.FailuresPath = v
	}
	// DATABASE_URL is honoured for parity with the dashboards that share the sqlite file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Data.SQLite.DSN = strings.TrimPrefix(v, "sqlite:///")
	}
	if v := os.Getenv("MIRADOR_RISK_SQLITE_DSN"); v != "" {
		cfg.Data.SQLite.DSN = v
	}
	if v := os.Getenv("MIRADOR_RISK_REGISTRY_URL"); v != "" {
		cfg.Data.Registry.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_RISK_NEGATIVE_SAMPLING"); v != "" {
		cfg.Features.NegativeSampling = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_RISK_ARTIFACT_PATH"); v != "" {
		cfg.Model.ArtifactPath = v
	}
	if v := os.Getenv("MIRADOR_RISK_MODEL_BACKEND"); v != "" {
		cfg.Model.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_RISK_MIN_ROC_AUC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.MinROCAUC = f
		}
	}
	if v := os.Getenv("MIRADOR_RISK_WATCH_ARTIFACT"); v != "" {
		cfg.Model.WatchArtifact = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_RISK_SKIP_FAILED_ASSETS"); v != "" {
		cfg.Scoring.SkipFailedAssets = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_TLS"); v != "" {
		cfg.Cache.TLS = parseBool(v)
	}
	if v := os.Getenv("MIRADOR_RISK_CACHE_LEASE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.LeaseTTL = d
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
