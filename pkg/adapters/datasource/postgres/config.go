package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	MaxConns int32
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromDatasourceConfig builds a Config from application configuration.
func FromDatasourceConfig(ds *config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:     ds.Host,
		Port:     ds.Port,
		User:     ds.User,
		Password: ds.Password,
		Database: ds.Database,
		SSLMode:  ds.SSLMode,
		MaxConns: ds.MaxConns,
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a connection cannot work without.
func (c *Config) Validate() error {
	if c.Host == "" {
		return apperrors.NewValidationError("datasource.host", "is required")
	}
	if c.User == "" {
		return apperrors.NewValidationError("datasource.user", "is required")
	}
	if c.Database == "" {
		return apperrors.NewValidationError("datasource.database", "is required")
	}
	return nil
}

// connectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing
// @, /, # or ? do not break URL parsing.
func (c *Config) connectionString() string {
	u := fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.QueryEscape(c.Database),
		url.QueryEscape(c.SSLMode),
	)
	if c.MaxConns > 0 {
		u += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	return u
}
