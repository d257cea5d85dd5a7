// Package config loads service configuration from defaults, an optional config file,
// a .env file and EHR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ehr-chatbot/internal/db"
	"ehr-chatbot/internal/logging"
	"ehr-chatbot/internal/services"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "EHR"

// Storage backends
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Embedding backends
const (
	EmbeddingPython = "python"
	EmbeddingOpenAI = "openai"
)

// Config is the full service configuration
type Config struct {
	Server     ServerOptions             `mapstructure:"server"`
	Logging    LoggingOptions            `mapstructure:"logging"`
	Auth       AuthOptions               `mapstructure:"auth"`
	Storage    StorageOptions            `mapstructure:"storage"`
	Redis      RedisOptions              `mapstructure:"redis"`
	Postgres   PostgresOptions           `mapstructure:"postgres"`
	Chroma     ChromaOptions             `mapstructure:"chroma"`
	Embedding  EmbeddingOptions          `mapstructure:"embedding"`
	LLM        LLMOptions                `mapstructure:"llm"`
	Classifier services.Thresholds       `mapstructure:"classifier"`
	Pipeline   PipelineOptions           `mapstructure:"pipeline"`
	Registry   RegistryOptions           `mapstructure:"registry"`
	Messages   services.MessageTemplates `mapstructure:"messages"`
}

// ServerOptions configures the HTTP listener
type ServerOptions struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"` // used for the swagger doc.json link
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingOptions configures zap
type LoggingOptions struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// AuthOptions configures owner resolution
type AuthOptions struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	AllowUserHeader bool   `mapstructure:"allow_user_header"`
}

// StorageOptions selects the session store
type StorageOptions struct {
	Backend    string        `mapstructure:"backend"`
	SessionTTL time.Duration `mapstructure:"session_ttl"` // redis only, zero keeps sessions forever
}

// RedisOptions configures the Redis session store
type RedisOptions struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// PostgresOptions configures the relational session store
type PostgresOptions struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// ChromaOptions configures the knowledge base
type ChromaOptions struct {
	URL        string        `mapstructure:"url"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Tenant     string        `mapstructure:"tenant"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// EmbeddingOptions configures query embeddings
type EmbeddingOptions struct {
	Backend   string        `mapstructure:"backend"`
	URL       string        `mapstructure:"url"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	BatchSize int           `mapstructure:"batch_size"`
}

// LLMOptions configures the generative backend
type LLMOptions struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
}

// PipelineOptions tunes the per-turn pipeline
type PipelineOptions struct {
	RetrievalTimeout time.Duration `mapstructure:"retrieval_timeout"`
	SearchLimit      int           `mapstructure:"search_limit"`
	HistoryTurns     int           `mapstructure:"history_turns"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxQueryLength   int           `mapstructure:"max_query_length"`
}

// RegistryOptions tunes the condition registry
type RegistryOptions struct {
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // zero disables background refresh
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"log-level": "logging.level",
	"storage":   "storage.backend",
}

// Load builds the configuration. configFile may be empty, in which case ./ehr-chatbot.yaml
// is read when present. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional and never overrides the real environment
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "EHR_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "EHR_LLM_BASE_URL", "OPENAI_API_BASE")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("ehr-chatbot")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ehr-chatbot")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Embedding.Backend = strings.ToLower(strings.TrimSpace(cfg.Embedding.Backend))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.development", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.allow_user_header", true)

	v.SetDefault("storage.backend", StorageRedis)
	v.SetDefault("storage.session_ttl", time.Duration(0))

	redisDefaults := db.DefaultRedisConfig()
	v.SetDefault("redis.host", redisDefaults.Host)
	v.SetDefault("redis.port", redisDefaults.Port)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", redisDefaults.DB)
	v.SetDefault("redis.pool_size", redisDefaults.PoolSize)

	pgDefaults := db.DefaultPostgresConfig()
	v.SetDefault("postgres.dsn", pgDefaults.DSN)
	v.SetDefault("postgres.max_open_conns", pgDefaults.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", pgDefaults.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime", pgDefaults.ConnMaxLifetime)
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("chroma.url", "")
	v.SetDefault("chroma.host", "localhost")
	v.SetDefault("chroma.port", 8000)
	v.SetDefault("chroma.tenant", "default_tenant")
	v.SetDefault("chroma.database", "default_database")
	v.SetDefault("chroma.collection", "medical_qa")
	v.SetDefault("chroma.timeout", 30*time.Second)

	v.SetDefault("embedding.backend", EmbeddingPython)
	v.SetDefault("embedding.url", "http://localhost:8001")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.timeout", 60*time.Second)
	v.SetDefault("embedding.retries", 3)
	v.SetDefault("embedding.batch_size", 32)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", services.DefaultLLMModel)
	v.SetDefault("llm.timeout", services.DefaultLLMTimeout)
	v.SetDefault("llm.language", services.DefaultLanguage)

	thresholds := services.DefaultThresholds()
	v.SetDefault("classifier.direct", thresholds.Direct)
	v.SetDefault("classifier.mismatch", thresholds.Mismatch)
	v.SetDefault("classifier.clarify", thresholds.Clarify)

	v.SetDefault("pipeline.retrieval_timeout", services.DefaultRetrievalTimeout)
	v.SetDefault("pipeline.search_limit", services.DefaultSearchLimit)
	v.SetDefault("pipeline.history_turns", services.DefaultHistoryTurns)
	v.SetDefault("pipeline.cache_ttl", services.DefaultMatchCacheTTL)
	v.SetDefault("pipeline.max_query_length", services.DefaultMaxQueryRunes)

	v.SetDefault("registry.ttl", services.DefaultRegistryTTL)
	v.SetDefault("registry.refresh_interval", time.Duration(0))

	messages := services.DefaultMessageTemplates()
	v.SetDefault("messages.apology", messages.Apology)
	v.SetDefault("messages.detected_label", messages.DetectedLabel)
	v.SetDefault("messages.follow_up_prefix", messages.FollowUpPrefix)
	v.SetDefault("messages.mismatch_prefix", messages.MismatchPrefix)
	v.SetDefault("messages.keyword_hint_label", messages.KeywordHintLabel)
}

// Validate reports every configuration problem at once
func (c *Config) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Auth.JWTSecret == "" && !c.Auth.AllowUserHeader {
		errs = append(errs, errors.New("auth: set auth.jwt_secret or enable auth.allow_user_header"))
	}

	switch c.Storage.Backend {
	case StorageRedis:
		if c.Redis.Host == "" || c.Redis.Port <= 0 {
			errs = append(errs, errors.New("redis.host and redis.port are required for the redis storage backend"))
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres storage backend"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be redis, postgres or memory, got %q", c.Storage.Backend))
	}
	if c.Storage.SessionTTL < 0 {
		errs = append(errs, errors.New("storage.session_ttl must not be negative"))
	}

	if strings.TrimSpace(c.Chroma.Collection) == "" {
		errs = append(errs, errors.New("chroma.collection must not be empty"))
	}

	switch c.Embedding.Backend {
	case EmbeddingPython:
		if strings.TrimSpace(c.Embedding.URL) == "" {
			errs = append(errs, errors.New("embedding.url is required for the python embedding backend"))
		}
	case EmbeddingOpenAI:
		if c.EmbeddingAPIKey() == "" {
			errs = append(errs, errors.New("embedding.api_key or llm.api_key is required for the openai embedding backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding.backend must be python or openai, got %q", c.Embedding.Backend))
	}

	errs = append(errs, c.Classifier.Validate()...)

	if c.Pipeline.RetrievalTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.retrieval_timeout must be positive"))
	}
	if c.Pipeline.SearchLimit <= 0 {
		errs = append(errs, errors.New("pipeline.search_limit must be positive"))
	}
	if c.Pipeline.HistoryTurns < 0 {
		errs = append(errs, errors.New("pipeline.history_turns must not be negative"))
	}
	if c.Pipeline.MaxQueryLength <= 0 {
		errs = append(errs, errors.New("pipeline.max_query_length must be positive"))
	}
	if c.Registry.TTL <= 0 {
		errs = append(errs, errors.New("registry.ttl must be positive"))
	}

	return errs
}

// EmbeddingAPIKey falls back to the LLM key so one OpenAI key serves both
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return c.LLM.APIKey
}

// LoggerOptions converts to logger options
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		Development: c.Logging.Development,
	}
}

// RedisConfig converts to the Redis client configuration
func (c *Config) RedisConfig() db.RedisConfig {
	config := db.DefaultRedisConfig()
	config.Host = c.Redis.Host
	config.Port = c.Redis.Port
	config.Password = c.Redis.Password
	config.DB = c.Redis.DB
	if c.Redis.PoolSize > 0 {
		config.PoolSize = c.Redis.PoolSize
	}
	return config
}

// PostgresConfig converts to the Postgres pool configuration
func (c *Config) PostgresConfig() db.PostgresConfig {
	config := db.DefaultPostgresConfig()
	config.DSN = c.Postgres.DSN
	if c.Postgres.MaxOpenConns > 0 {
		config.MaxOpenConns = c.Postgres.MaxOpenConns
	}
	if c.Postgres.MaxIdleConns > 0 {
		config.MaxIdleConns = c.Postgres.MaxIdleConns
	}
	if c.Postgres.ConnMaxLifetime > 0 {
		config.ConnMaxLifetime = c.Postgres.ConnMaxLifetime
	}
	return config
}

// ChromaConfig converts to the ChromaDB client configuration
func (c *Config) ChromaConfig() db.ChromaDBConfig {
	return db.ChromaDBConfig{
		URL:      c.Chroma.URL,
		Host:     c.Chroma.Host,
		Port:     c.Chroma.Port,
		Tenant:   c.Chroma.Tenant,
		Database: c.Chroma.Database,
		Timeout:  c.Chroma.Timeout,
	}
}
