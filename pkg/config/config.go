package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/crypto"
)

// DefaultConfigPath is read when Load is given no explicit path.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-discovery.
// Configuration can come from a YAML file or environment variables, and a
// .env file in the working directory is pre-loaded into the environment.
// Environment variables always override YAML values.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// CredentialsKey opens sealed ("enc:v1:") secrets such as
	// DATASOURCE_PASSWORD. Environment only.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`

	Logging    LoggingConfig    `yaml:"logging"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Inference  InferenceConfig  `yaml:"inference"`
	Rules      RulesConfig      `yaml:"rules"`
}

// LoggingConfig controls the zap logger built at startup.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatasourceConfig describes the catalog that scans read metadata from.
type DatasourceConfig struct {
	ID       string `yaml:"id" env:"DATASOURCE_ID" env-default:""`
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
	// SnapshotPath points at a YAML catalog for the "snapshot" type.
	SnapshotPath string `yaml:"snapshot_path" env:"DATASOURCE_SNAPSHOT_PATH" env-default:""`
	MaxConns     int32  `yaml:"max_conns" env:"DATASOURCE_MAX_CONNS" env-default:"10"`
}

// InferenceConfig carries the tunables of every signal, the fusion step and
// the classifier. Zero values are replaced by package defaults.
type InferenceConfig struct {
	NameSimilarityThreshold float64 `yaml:"name_similarity_threshold" env:"INFERENCE_NAME_SIMILARITY_THRESHOLD" env-default:"0.6"`
	TypeSimilarityThreshold float64 `yaml:"type_similarity_threshold" env:"INFERENCE_TYPE_SIMILARITY_THRESHOLD" env-default:"0.7"`
	SourceUniquenessMax     float64 `yaml:"source_uniqueness_max" env:"INFERENCE_SOURCE_UNIQUENESS_MAX" env-default:"0.9"`
	TargetUniquenessMin     float64 `yaml:"target_uniqueness_min" env:"INFERENCE_TARGET_UNIQUENESS_MIN" env-default:"0.95"`
	OverlapThreshold        float64 `yaml:"overlap_threshold" env:"INFERENCE_OVERLAP_THRESHOLD" env-default:"0.5"`
	CorroborationBonus      float64 `yaml:"corroboration_bonus" env:"INFERENCE_CORROBORATION_BONUS" env-default:"0.10"`
	MinConfidence           float64 `yaml:"min_confidence" env:"INFERENCE_MIN_CONFIDENCE" env-default:"0.7"`
	MaxSuggestions          int     `yaml:"max_suggestions" env:"INFERENCE_MAX_SUGGESTIONS" env-default:"20"`
	PIIThreshold            float64 `yaml:"pii_threshold" env:"INFERENCE_PII_THRESHOLD" env-default:"0.7"`

	Workers             int           `yaml:"workers" env:"INFERENCE_WORKERS" env-default:"8"`
	MetadataConcurrency int           `yaml:"metadata_concurrency" env:"INFERENCE_METADATA_CONCURRENCY" env-default:"4"`
	QueryTimeout        time.Duration `yaml:"query_timeout" env:"INFERENCE_QUERY_TIMEOUT" env-default:"30s"`
	SampleLimit         int           `yaml:"sample_limit" env:"INFERENCE_SAMPLE_LIMIT" env-default:"100"`
}

// RulesConfig locates the optional rule document and how long a compiled
// snapshot is served before it is refreshed.
type RulesConfig struct {
	Path string        `yaml:"path" env:"RULES_PATH" env-default:""`
	TTL  time.Duration `yaml:"ttl" env:"RULES_TTL" env-default:"5m"`
}

// Load reads configuration from path (or config.yaml when path is empty)
// with environment variable overrides. A missing default config file is not
// an error; the environment and defaults are used instead.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if explicit {
			return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Datasource.Type = strings.ToLower(strings.TrimSpace(cfg.Datasource.Type))
	cfg.Datasource.Host = ResolveHostForDocker(cfg.Datasource.Host)

	password, err := crypto.OpenValue(cfg.Datasource.Password, cfg.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("DATASOURCE_PASSWORD: %w", err)
	}
	cfg.Datasource.Password = password

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make every scan fail.
func (c *Config) Validate() error {
	inf := c.Inference
	for field, v := range map[string]float64{
		"inference.name_similarity_threshold": inf.NameSimilarityThreshold,
		"inference.type_similarity_threshold": inf.TypeSimilarityThreshold,
		"inference.source_uniqueness_max":     inf.SourceUniquenessMax,
		"inference.target_uniqueness_min":     inf.TargetUniquenessMin,
		"inference.overlap_threshold":         inf.OverlapThreshold,
		"inference.corroboration_bonus":       inf.CorroborationBonus,
		"inference.min_confidence":            inf.MinConfidence,
		"inference.pii_threshold":             inf.PIIThreshold,
	} {
		if v < 0 || v > 1 {
			return apperrors.NewValidationError(field, "must be within [0, 1], got %v", v)
		}
	}
	if inf.Workers < 0 {
		return apperrors.NewValidationError("inference.workers", "must not be negative")
	}
	if inf.MetadataConcurrency < 0 {
		return apperrors.NewValidationError("inference.metadata_concurrency", "must not be negative")
	}
	if inf.SampleLimit < 0 {
		return apperrors.NewValidationError("inference.sample_limit", "must not be negative")
	}
	if inf.QueryTimeout < 0 {
		return apperrors.NewValidationError("inference.query_timeout", "must not be negative")
	}
	if c.Datasource.Type == "snapshot" && c.Datasource.SnapshotPath == "" {
		return apperrors.NewValidationError("datasource.snapshot_path", "is required for snapshot datasources")
	}
	return nil
}

// ConnectionString returns a driver DSN for the configured datasource type.
// The snapshot type has no DSN.
func (c *DatasourceConfig) ConnectionString() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.portOr(5432), c.User, c.Password, c.Database, c.SSLMode,
		)
	case "mssql":
		return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			c.User, c.Password, c.Host, c.portOr(1433), c.Database)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.portOr(3306), c.Database)
	default:
		return ""
	}
}

func (c *DatasourceConfig) portOr(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}
