package mssql

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

// Config contains SQL Server-specific connection options. Only SQL
// authentication is supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromDatasourceConfig builds a Config from application configuration.
// ssl_mode "disable" turns encryption off; "require" encrypts without
// verifying the server certificate; anything else verifies it.
func FromDatasourceConfig(ds *config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:              ds.Host,
		Port:              ds.Port,
		Database:          ds.Database,
		Username:          ds.User,
		Password:          ds.Password,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort()
	}
	switch ds.SSLMode {
	case "disable":
		cfg.Encrypt = false
	case "require":
		cfg.TrustServerCertificate = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return apperrors.NewValidationError("datasource.host", "is required")
	}
	if c.Database == "" {
		return apperrors.NewValidationError("datasource.database", "is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return apperrors.NewValidationError("datasource.port", "invalid port: %d", c.Port)
	}
	if c.Username == "" {
		return apperrors.NewValidationError("datasource.user", "is required for SQL authentication")
	}
	return nil
}

// connectionString builds a sqlserver:// URL for SQL authentication.
func (c *Config) connectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)

	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}

	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", c.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		query.Encode(),
	)
}
