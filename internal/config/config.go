package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// CatalogConfig selects and configures the supplier catalog collaborator.
type CatalogConfig struct {
	// Driver is "http" for the supplier REST API or "file" for a JSONL manifest.
	Driver            string        `mapstructure:"driver"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Currency          string        `mapstructure:"currency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	ManifestPath      string        `mapstructure:"manifest_path"`
	DetailConcurrency int           `mapstructure:"detail_concurrency"`
}

// JobsConfig holds job engine defaults applied when a job does not set its own.
type JobsConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	MaxPagesPerUnit int           `mapstructure:"max_pages_per_unit"`
	MaxSteps        int           `mapstructure:"max_steps"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	ExportResults   bool          `mapstructure:"export_results"`
}

// PricingConfig overrides the pricing engine constants.
type PricingConfig struct {
	ExchangeRate      float64 `mapstructure:"exchange_rate"`
	DefaultShipping   float64 `mapstructure:"default_shipping"`
	ShippingBaseFee   float64 `mapstructure:"shipping_base_fee"`
	ShippingPerKg     float64 `mapstructure:"shipping_per_kg"`
	VolumetricDivisor float64 `mapstructure:"volumetric_divisor"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// StorageConfig holds S3-compatible object storage configuration.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	PublicURL string `mapstructure:"public_url"`

	// ForcePathStyle is needed by MinIO and most self-hosted S3 servers.
	ForcePathStyle bool `mapstructure:"force_path_style"`
}

// Load reads configuration from a YAML file, .env and the environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
//
// Returns:
//   - *Config: populated configuration.
//   - error: non-nil if the file exists but cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("catalog.api_key", "CATALOG_API_KEY")
	_ = v.BindEnv("catalog.base_url", "CATALOG_BASE_URL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.bucket", "S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/dropcart.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dropcart")
	v.SetDefault("database.dbname", "dropcart")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("catalog.driver", "file")
	v.SetDefault("catalog.currency", "USD")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.requests_per_minute", 60)
	v.SetDefault("catalog.burst", 5)
	v.SetDefault("catalog.manifest_path", "./data/catalog")
	v.SetDefault("catalog.detail_concurrency", 5)

	v.SetDefault("jobs.page_size", 20)
	v.SetDefault("jobs.max_pages_per_unit", 5)
	v.SetDefault("jobs.max_steps", 2000)
	v.SetDefault("jobs.lock_ttl", "2m")
	v.SetDefault("jobs.export_results", false)

	v.SetDefault("pricing.exchange_rate", 3.75)
	v.SetDefault("pricing.default_shipping", 5.0)
	v.SetDefault("pricing.shipping_base_fee", 2.5)
	v.SetDefault("pricing.shipping_per_kg", 6.0)
	v.SetDefault("pricing.volumetric_divisor", 5000.0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "catalog-job-events")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "dropcart-exports")
	v.SetDefault("storage.force_path_style", true)
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case "http":
		if c.Catalog.BaseURL == "" {
			return fmt.Errorf("catalog.base_url is required for the http catalog driver")
		}
	case "file":
		if c.Catalog.ManifestPath == "" {
			return fmt.Errorf("catalog.manifest_path is required for the file catalog driver")
		}
	default:
		return fmt.Errorf("unknown catalog driver %q", c.Catalog.Driver)
	}
	if c.Jobs.PageSize <= 0 || c.Jobs.MaxPagesPerUnit <= 0 {
		return fmt.Errorf("jobs.page_size and jobs.max_pages_per_unit must be positive")
	}
	if c.Pricing.ExchangeRate <= 0 {
		return fmt.Errorf("pricing.exchange_rate must be positive")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}
