package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for veridoc-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration for the aggregator result cache
	Redis RedisConfig `yaml:"redis"`

	// Semantic-analysis collaborator (OpenAI-compatible endpoint)
	SemanticAI SemanticAIConfig `yaml:"semantic_ai"`

	// Answer synthesizer (Anthropic)
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`

	// Conversation session settings
	Session SessionConfig `yaml:"session"`

	// Data aggregator settings
	Aggregator AggregatorConfig `yaml:"aggregator"`

	// Entity consolidation settings
	Consolidation ConsolidationConfig `yaml:"consolidation"`

	// ConstraintRulesPath points to the YAML file of constraint-answer rules.
	// Empty disables constraint answers.
	ConstraintRulesPath string `yaml:"constraint_rules_path" env:"CONSTRAINT_RULES_PATH" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"veridoc"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"veridoc_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds Redis configuration. An empty host disables the cache;
// the aggregator then queries sources directly on every call.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// SemanticAIConfig holds the OpenAI-compatible endpoint used for reference
// analysis, intent classification, entity extraction and entity comparison.
type SemanticAIConfig struct {
	BaseURL string `yaml:"base_url" env:"SEMANTIC_AI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"SEMANTIC_AI_MODEL" env-default:"gpt-4o-mini"`
	APIKey  string `yaml:"-" env:"SEMANTIC_AI_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds a single collaborator call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"SEMANTIC_AI_TIMEOUT_SECONDS" env-default:"30"`
	// MaxConcurrent bounds outstanding collaborator calls process-wide.
	MaxConcurrent int `yaml:"max_concurrent" env:"SEMANTIC_AI_MAX_CONCURRENT" env-default:"8"`
}

// SynthesizerConfig holds the Anthropic endpoint used to turn aggregated
// bundles into prose answers.
type SynthesizerConfig struct {
	Model     string `yaml:"model" env:"SYNTHESIZER_MODEL" env-default:"claude-sonnet-4-20250514"`
	APIKey    string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	MaxTokens int    `yaml:"max_tokens" env:"SYNTHESIZER_MAX_TOKENS" env-default:"1024"`
}

// IsAvailable returns true if the synthesizer is configured.
func (c *SynthesizerConfig) IsAvailable() bool {
	return c.APIKey != ""
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	// IdleTimeoutMinutes is how long a session may sit idle before the next
	// turn expires it and issues a fresh id.
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes" env:"SESSION_IDLE_TIMEOUT_MINUTES" env-default:"60"`
	// TranscriptWindow is how many trailing messages feed reference analysis.
	TranscriptWindow int `yaml:"transcript_window" env:"SESSION_TRANSCRIPT_WINDOW" env-default:"5"`
}

// IdleTimeout returns the idle timeout as a duration.
func (c *SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// AggregatorConfig holds data aggregator settings.
type AggregatorConfig struct {
	// SourceTimeoutSeconds bounds each concurrent source query.
	SourceTimeoutSeconds int `yaml:"source_timeout_seconds" env:"AGGREGATOR_SOURCE_TIMEOUT_SECONDS" env-default:"10"`
	// CacheTTLMinutes is how long cached source results stay valid.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"AGGREGATOR_CACHE_TTL_MINUTES" env-default:"30"`
	// MaxResultsPerSource caps the rows fetched from any one source.
	MaxResultsPerSource int `yaml:"max_results_per_source" env:"AGGREGATOR_MAX_RESULTS" env-default:"10"`
}

// SourceTimeout returns the per-source timeout as a duration.
func (c *AggregatorConfig) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache TTL as a duration.
func (c *AggregatorConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// ConsolidationConfig holds entity consolidation thresholds.
type ConsolidationConfig struct {
	// MinEntityConfidence drops extracted entities below this value (0-1 scale).
	MinEntityConfidence float64 `yaml:"min_entity_confidence" env:"CONSOLIDATION_MIN_ENTITY_CONFIDENCE" env-default:"0.7"`
	// ApplyThreshold gates text corrections and conflict resolutions (0-1 scale).
	ApplyThreshold float64 `yaml:"apply_threshold" env:"CONSOLIDATION_APPLY_THRESHOLD" env-default:"0.8"`
	// MaxPriorDocuments bounds how many same-organization documents feed comparison.
	MaxPriorDocuments int `yaml:"max_prior_documents" env:"CONSOLIDATION_MAX_PRIOR_DOCUMENTS" env-default:"5"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, SEMANTIC_AI_API_KEY, ANTHROPIC_API_KEY, REDIS_PASSWORD)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.IdleTimeoutMinutes <= 0 {
		return fmt.Errorf("session idle_timeout_minutes must be positive, got %d", c.Session.IdleTimeoutMinutes)
	}
	if c.Consolidation.ApplyThreshold < c.Consolidation.MinEntityConfidence {
		return fmt.Errorf("consolidation apply_threshold (%.2f) must not be below min_entity_confidence (%.2f)",
			c.Consolidation.ApplyThreshold, c.Consolidation.MinEntityConfidence)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsAvailable returns true if Redis is configured.
func (c *RedisConfig) IsAvailable() bool {
	return c.Host != ""
}
