package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Embed     EmbedConfig     `yaml:"embed" mapstructure:"embed"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the Redis connection used for record leases.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ExtractConfig holds Anthropic extraction settings.
type ExtractConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the address geocoder.
type GeocodeConfig struct {
	GoogleKey string  `yaml:"google_key" mapstructure:"google_key"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// EmbedConfig configures the text embedding collaborator.
type EmbedConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// ResolveConfig holds identity-resolution weights and thresholds.
// The shipped defaults match the tuned production values; all of them
// are overridable per environment.
type ResolveConfig struct {
	NameWeight    float64 `yaml:"name_weight" mapstructure:"name_weight"`
	PhoneWeight   float64 `yaml:"phone_weight" mapstructure:"phone_weight"`
	WebsiteWeight float64 `yaml:"website_weight" mapstructure:"website_weight"`
	LicenseWeight float64 `yaml:"license_weight" mapstructure:"license_weight"`

	// ExactIDBonus is added once when phone, website, or license matched
	// exactly, to compensate for noisy scraped business names.
	ExactIDBonus float64 `yaml:"exact_id_bonus" mapstructure:"exact_id_bonus"`

	// LinkThreshold and above auto-links; InterveneThreshold up to
	// LinkThreshold pauses for human review; below auto-creates.
	LinkThreshold      float64 `yaml:"link_threshold" mapstructure:"link_threshold"`
	InterveneThreshold float64 `yaml:"intervene_threshold" mapstructure:"intervene_threshold"`

	// MaxCandidates caps how many scored candidates an intervention records.
	MaxCandidates int `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// IngestConfig configures the ingest worker pool.
type IngestConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`
	LockLease     time.Duration `yaml:"lock_lease" mapstructure:"lock_lease"`
	SweepMaxAge   time.Duration `yaml:"sweep_max_age" mapstructure:"sweep_max_age"`
}

// SearchConfig configures hybrid search scoring.
type SearchConfig struct {
	FullTextWeight float64 `yaml:"fulltext_weight" mapstructure:"fulltext_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	MinScore       float64 `yaml:"min_score" mapstructure:"min_score"`
	DefaultLimit   int     `yaml:"default_limit" mapstructure:"default_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIRECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("extract.model", "claude-haiku-4-5-20251001")
	v.SetDefault("extract.max_tokens", 8192)
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("geocode.rate_rps", 10)
	v.SetDefault("embed.base_url", "https://api.openai.com/v1")
	v.SetDefault("embed.model", "text-embedding-3-small")
	v.SetDefault("embed.dimensions", 1536)
	v.SetDefault("resolve.name_weight", 0.40)
	v.SetDefault("resolve.phone_weight", 0.30)
	v.SetDefault("resolve.website_weight", 0.20)
	v.SetDefault("resolve.license_weight", 0.10)
	v.SetDefault("resolve.exact_id_bonus", 15)
	v.SetDefault("resolve.link_threshold", 80)
	v.SetDefault("resolve.intervene_threshold", 65)
	v.SetDefault("resolve.max_candidates", 3)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.lock_lease", 5*time.Minute)
	v.SetDefault("ingest.sweep_max_age", 24*time.Hour)
	v.SetDefault("search.fulltext_weight", 0.3)
	v.SetDefault("search.semantic_weight", 0.7)
	v.SetDefault("search.min_score", 0.35)
	v.SetDefault("search.default_limit", 25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
