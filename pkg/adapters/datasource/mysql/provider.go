// Package mysql reads catalog metadata from MySQL and MariaDB through
// go-sql-driver/mysql. MySQL has no schema level below the database, so
// tables are reported as database.table.
package mysql

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-discovery/pkg/sql"
)

// Provider implements datasource.MetadataProvider for MySQL.
type Provider struct {
	datasource.SQLBase
	database string
}

// NewProvider opens and pings a connection pool.
func NewProvider(ctx context.Context, cfg *Config, logger *zap.Logger) (*Provider, error) {
	connector, err := mysql.NewConnector(cfg.driverConfig())
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %s", logging.SanitizeError(err))
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping failed: %s", logging.SanitizeError(err))
	}
	return NewProviderFromDB(db, cfg.Database, logger), nil
}

// NewProviderFromDB wraps an open handle. The provider closes it.
func NewProviderFromDB(db *sql.DB, database string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		SQLBase:  datasource.SQLBase{DB: db, Logger: logger.Named("mysql")},
		database: database,
	}
}

// ListTables returns the base tables of database with the storage engine's
// row estimate.
func (p *Provider) ListTables(ctx context.Context, database string) ([]datasource.TableRef, error) {
	db := cmp.Or(database, p.database)

	const query = `
		SELECT table_name, table_rows
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := p.DB.QueryContext(ctx, query, db)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []datasource.TableRef
	for rows.Next() {
		t := datasource.TableRef{Database: db}
		var rowCount sql.NullInt64
		if err := rows.Scan(&t.Name, &rowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if rowCount.Valid {
			n := rowCount.Int64
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// GetColumns returns columns in ordinal order. column_key marks primary
// keys; key_column_usage rows with a referenced table mark foreign keys.
func (p *Provider) GetColumns(ctx context.Context, table datasource.TableRef) ([]models.ColumnDescriptor, error) {
	db := p.databaseOf(table.Database, table.Schema)

	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_key = 'PRI' AS is_primary_key,
			EXISTS (
				SELECT 1 FROM information_schema.key_column_usage k
				WHERE k.table_schema = c.table_schema
				  AND k.table_name = c.table_name
				  AND k.column_name = c.column_name
				  AND k.referenced_table_name IS NOT NULL
			) AS is_foreign_key
		FROM information_schema.columns c
		WHERE c.table_schema = ?
		  AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := p.DB.QueryContext(ctx, query, db, table.Name)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var c models.ColumnDescriptor
		var isNullable string
		var isPrimary, isForeign bool
		if err := rows.Scan(&c.Name, &c.DeclaredType, &isNullable, &isPrimary, &isForeign); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = isNullable == "YES"
		c.IsPrimaryKey = isPrimary
		c.IsForeignKey = isForeign
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", db, table.Name, apperrors.ErrNotFound)
	}
	return columns, nil
}

// ExecuteScalarQuery runs a single-value query, switching database for the
// duration of the call when database differs from the connected one.
func (p *Provider) ExecuteScalarQuery(ctx context.Context, query, database string) (any, error) {
	var (
		v   any
		err error
	)
	if database == "" || strings.EqualFold(database, p.database) {
		v, err = p.QueryScalar(ctx, query)
	} else {
		if err := sqlutil.CheckIdentifier("database", database); err != nil {
			return nil, err
		}
		v, err = p.QueryScalarIn(ctx,
			"USE "+quoteName(database), "USE "+quoteName(p.database), query)
	}
	if err != nil {
		p.Logger.Debug("Scalar query failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	return v, nil
}

// GetSampleValues returns up to limit distinct non-null values. schema is
// the MySQL database and defaults to the connected one.
func (p *Provider) GetSampleValues(ctx context.Context, schema, table, column string, limit int) ([]string, error) {
	if err := sqlutil.CheckIdentifier("table", table); err != nil {
		return nil, err
	}
	if err := sqlutil.CheckIdentifier("column", column); err != nil {
		return nil, err
	}
	db := p.databaseOf("", schema)

	query := fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS CHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT ?",
		quoteName(column), buildFullyQualifiedName(db, table), quoteName(column))

	values, err := p.QueryStrings(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get sample values for %s.%s.%s: %w", db, table, column, err)
	}
	return values, nil
}

// QuoteIdentifier quotes with backticks.
func (p *Provider) QuoteIdentifier(name string) string {
	return quoteName(name)
}

func (p *Provider) databaseOf(database, schema string) string {
	return cmp.Or(database, schema, p.database)
}

var _ datasource.MetadataProvider = (*Provider)(nil)
