package mysql

import (
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "false", "true", "skip-verify", "preferred"
	Timeout  time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromDatasourceConfig builds a Config from application configuration.
// ssl_mode maps onto the driver's tls parameter.
func FromDatasourceConfig(ds *config.DatasourceConfig) (*Config, error) {
	cfg := &Config{
		Host:     ds.Host,
		Port:     ds.Port,
		User:     ds.User,
		Password: ds.Password,
		Database: ds.Database,
		TLS:      "preferred",
		Timeout:  30 * time.Second,
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort()
	}
	switch ds.SSLMode {
	case "disable":
		cfg.TLS = "false"
	case "require":
		cfg.TLS = "skip-verify"
	case "verify-ca", "verify-full":
		cfg.TLS = "true"
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

// driverConfig builds the DSN through the driver's own formatter so
// special characters in credentials are handled.
func (c *Config) driverConfig() *mysql.Config {
	dc := mysql.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = hostPort(c.Host, c.Port)
	dc.DBName = c.Database
	dc.TLSConfig = c.TLS
	dc.Timeout = c.Timeout
	dc.ParseTime = true
	return dc
}
