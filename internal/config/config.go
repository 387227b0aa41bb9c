package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/ultrathink/discovery-web/pkg/config"
	"github.com/ultrathink/discovery-web/pkg/database"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
)

// Config holds all configuration for the discovery gateway.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	PubMed       PubMedConfig       `mapstructure:"pubmed"`
	ChEMBL       ChEMBLConfig       `mapstructure:"chembl"`
	SearchCache  SearchCacheConfig  `mapstructure:"search_cache"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Persist      PersistConfig      `mapstructure:"persist"`
	Database     database.Config    `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Events       EventsConfig       `mapstructure:"events"`
	Session      SessionConfig      `mapstructure:"session"`
	Docking      DockingConfig      `mapstructure:"docking"`
	Web          WebConfig          `mapstructure:"web"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// OrchestratorConfig points at the backend that runs discovery pipelines.
type OrchestratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PubMedConfig holds NCBI E-utilities settings.
type PubMedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	APIKey     string        `mapstructure:"api_key"`
	Tool       string        `mapstructure:"tool"`
	Email      string        `mapstructure:"email"`
	MaxResults int           `mapstructure:"max_results"`
	// AbstractTTL is how long a fetched abstract is reused.
	AbstractTTL time.Duration `mapstructure:"abstract_ttl"`
}

// ChEMBLConfig holds EBI ChEMBL REST settings.
type ChEMBLConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Limit               int           `mapstructure:"limit"`
	SimilarityThreshold int           `mapstructure:"similarity_threshold"`
}

// SearchCacheConfig sizes the per-panel in-process caches and the optional
// shared Redis level.
type SearchCacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
	// L2 enables the Redis level. It requires redis.address.
	L2        bool   `mapstructure:"l2"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisConfig is shared by the L2 cache and the redis persistence backend.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// PersistConfig selects the key-value backend for saved session blobs.
type PersistConfig struct {
	Type      string `mapstructure:"type"` // "memory", "redis" or "sql"
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig holds export archive configuration.
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "local" or "s3"
	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
}

// LocalConfig holds local filesystem storage configuration.
type LocalConfig struct {
	BasePath  string `mapstructure:"base_path"`
	URLPrefix string `mapstructure:"url_prefix"`
}

// S3Config holds S3/MinIO storage configuration.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicURL       string `mapstructure:"public_url"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

// EventsConfig selects the store-change event bus.
type EventsConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "redis"
	Buffer int    `mapstructure:"buffer"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
}

// DockingConfig holds the docking simulation settings.
type DockingConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// WebConfig holds the static front end location. Empty disables it.
type WebConfig struct {
	StaticDir string `mapstructure:"static_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE streams stay open
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("orchestrator.base_url", "http://localhost:7001")
	v.SetDefault("orchestrator.timeout", 120*time.Second)

	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.timeout", 15*time.Second)
	v.SetDefault("pubmed.tool", "discovery-web")
	v.SetDefault("pubmed.max_results", 10)
	v.SetDefault("pubmed.abstract_ttl", 24*time.Hour)

	v.SetDefault("chembl.base_url", "https://www.ebi.ac.uk/chembl/api/data")
	v.SetDefault("chembl.timeout", 15*time.Second)
	v.SetDefault("chembl.limit", 10)
	v.SetDefault("chembl.similarity_threshold", 70)

	v.SetDefault("search_cache.ttl", 5*time.Minute)
	v.SetDefault("search_cache.max_size", 50)
	v.SetDefault("search_cache.l2", false)
	v.SetDefault("search_cache.key_prefix", "discovery:search")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("persist.type", "memory")
	v.SetDefault("persist.key_prefix", "discovery:kv:")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "./data/discovery.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.base_path", "./data/exports")
	v.SetDefault("storage.local.url_prefix", "/files")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)

	v.SetDefault("events.driver", "memory")
	v.SetDefault("events.buffer", 64)

	v.SetDefault("session.cookie_name", "discovery_session")
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("docking.delay", 2*time.Second)

	v.SetDefault("web.static_dir", "")

	v.SetDefault("log.level", "info")

	// Bind environment variables
	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                  "PORT",
		"orchestrator.base_url":        "ORCHESTRATOR_URL",
		"pubmed.api_key":               "NCBI_API_KEY",
		"pubmed.email":                 "NCBI_EMAIL",
		"redis.address":                "REDIS_ADDRESS",
		"redis.password":               "REDIS_PASSWORD",
		"persist.type":                 "PERSIST_TYPE",
		"database.driver":              "DB_DRIVER",
		"database.host":                "DB_HOST",
		"database.port":                "DB_PORT",
		"database.user":                "DB_USER",
		"database.password":            "DB_PASSWORD",
		"database.db_name":             "DB_NAME",
		"storage.type":                 "STORAGE_TYPE",
		"storage.local.base_path":      "STORAGE_LOCAL_BASE_PATH",
		"storage.s3.endpoint":          "S3_ENDPOINT",
		"storage.s3.region":            "S3_REGION",
		"storage.s3.bucket":            "S3_BUCKET",
		"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
		"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
		"storage.s3.public_url":        "S3_PUBLIC_URL",
		"events.driver":                "EVENTS_DRIVER",
		"web.static_dir":               "WEB_STATIC_DIR",
		"log.level":                    "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the wiring in main cannot satisfy.
func (c *Config) Validate() error {
	switch c.Persist.Type {
	case "memory", "redis", "sql":
	default:
		return fmt.Errorf("unsupported persist type: %s", c.Persist.Type)
	}
	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for s3 storage")
	}
	if c.SearchCache.MaxSize < 0 {
		return fmt.Errorf("search_cache.max_size must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.SearchCache.L2 || c.Persist.Type == "redis" || c.Events.Driver == "redis"
}

// PubSub maps the events section onto the bus configuration.
func (c *Config) PubSub() pubsub.Config {
	cfg := pubsub.DefaultConfig()
	cfg.Driver = c.Events.Driver
	if c.Events.Buffer > 0 {
		cfg.Buffer = c.Events.Buffer
	}
	cfg.Redis.Address = c.Redis.Address
	cfg.Redis.Password = c.Redis.Password
	cfg.Redis.DB = c.Redis.DB
	if c.Redis.PoolSize > 0 {
		cfg.Redis.PoolSize = c.Redis.PoolSize
	}
	return cfg
}
