// Package mssql reads catalog metadata from SQL Server through go-mssqldb.
package mssql

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-discovery/pkg/sql"
)

const defaultSchema = "dbo"

// Provider implements datasource.MetadataProvider for SQL Server.
type Provider struct {
	datasource.SQLBase
	database string
}

// NewProvider opens and pings a connection pool.
func NewProvider(ctx context.Context, cfg *Config, logger *zap.Logger) (*Provider, error) {
	db, err := sql.Open("sqlserver", cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %s", logging.SanitizeError(err))
	}
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
		SQLBase:  datasource.SQLBase{DB: db, Logger: logger.Named("mssql")},
		database: database,
	}
}

// ListTables returns all user tables with their partition row counts.
// A database other than the connected one is read through three-part names.
func (p *Provider) ListTables(ctx context.Context, database string) ([]datasource.TableRef, error) {
	db, prefix, err := p.target(database)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SET NOCOUNT ON;
	SELECT
	    s.name AS table_schema,
	    t.name AS table_name,
	    SUM(p.rows) AS row_count
	FROM %[1]ssys.tables t
	INNER JOIN %[1]ssys.schemas s ON s.schema_id = t.schema_id
	INNER JOIN %[1]ssys.partitions p ON t.object_id = p.object_id
	WHERE p.index_id IN (0, 1)  -- heap or clustered index
	  AND t.is_ms_shipped = 0
	GROUP BY s.name, t.name
	ORDER BY table_schema, table_name
	`, prefix)

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []datasource.TableRef
	for rows.Next() {
		t := datasource.TableRef{Database: cmp.Or(db, p.database)}
		var rowCount sql.NullInt64
		if err := rows.Scan(&t.Schema, &t.Name, &rowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		if rowCount.Valid {
			n := rowCount.Int64
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

// GetColumns returns columns for a table with primary and foreign key flags.
func (p *Provider) GetColumns(ctx context.Context, table datasource.TableRef) ([]models.ColumnDescriptor, error) {
	db, prefix, err := p.target(table.Database)
	if err != nil {
		return nil, err
	}
	schema := table.Schema
	if schema == "" {
		schema = defaultSchema
	}

	query := fmt.Sprintf(`
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    CASE WHEN fk.parent_column_id IS NOT NULL THEN 1 ELSE 0 END AS is_foreign_key
	FROM %[1]ssys.columns c
	INNER JOIN %[1]ssys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM %[1]ssys.index_columns ic
	    INNER JOIN %[1]ssys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN (
	    SELECT DISTINCT parent_object_id, parent_column_id
	    FROM %[1]ssys.foreign_key_columns
	) fk ON c.object_id = fk.parent_object_id AND c.column_id = fk.parent_column_id
	WHERE c.object_id = OBJECT_ID(@objname)
	ORDER BY c.column_id
	`, prefix)

	objName := buildFullyQualifiedName(schema, table.Name)
	if db != "" {
		objName = quoteName(db) + "." + objName
	}

	rows, err := p.DB.QueryContext(ctx, query, sql.Named("objname", objName))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var col models.ColumnDescriptor
		var isNullable, isPrimary, isForeign int
		if err := rows.Scan(&col.Name, &col.DeclaredType, &isNullable, &isPrimary, &isForeign); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Nullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.IsForeignKey = isForeign == 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s: %w", objName, apperrors.ErrNotFound)
	}
	return columns, nil
}

// ExecuteScalarQuery runs a single-value query, switching database for the
// duration of the call when database differs from the connected one.
func (p *Provider) ExecuteScalarQuery(ctx context.Context, query, database string) (any, error) {
	db, _, err := p.target(database)
	if err != nil {
		return nil, err
	}

	var v any
	if db == "" {
		v, err = p.QueryScalar(ctx, query)
	} else {
		v, err = p.QueryScalarIn(ctx,
			"USE "+quoteName(db), "USE "+quoteName(p.database), query)
	}
	if err != nil {
		p.Logger.Debug("Scalar query failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	return v, nil
}

// GetSampleValues returns up to limit distinct non-null values of a column.
func (p *Provider) GetSampleValues(ctx context.Context, schema, table, column string, limit int) ([]string, error) {
	if err := sqlutil.CheckIdentifier("table", table); err != nil {
		return nil, err
	}
	if err := sqlutil.CheckIdentifier("column", column); err != nil {
		return nil, err
	}
	if schema == "" {
		schema = defaultSchema
	}

	query := fmt.Sprintf(`
	SET NOCOUNT ON;
	SELECT DISTINCT TOP (@limit) CAST(%s AS NVARCHAR(MAX)) AS val
	FROM %s WITH (NOLOCK)
	WHERE %s IS NOT NULL
	ORDER BY 1
	`,
		quoteName(column),
		buildFullyQualifiedName(schema, table),
		quoteName(column),
	)

	values, err := p.QueryStrings(ctx, query, sql.Named("limit", limit))
	if err != nil {
		return nil, fmt.Errorf("get sample values for %s.%s.%s: %w", schema, table, column, err)
	}
	return values, nil
}

// QuoteIdentifier quotes with square brackets.
func (p *Provider) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// target resolves database to "" for the connected database or returns the
// catalog prefix for another one.
func (p *Provider) target(database string) (db, prefix string, err error) {
	if database == "" || strings.EqualFold(database, p.database) {
		return "", "", nil
	}
	if err := sqlutil.CheckIdentifier("database", database); err != nil {
		return "", "", err
	}
	return database, catalogPrefix(database), nil
}

var _ datasource.MetadataProvider = (*Provider)(nil)
