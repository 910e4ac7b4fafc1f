// Package postgres reads catalog metadata from PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-discovery/pkg/sql"
)

const defaultSchema = "public"

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	return pgx.Identifier{schemaName}.Sanitize() + "." + quotedTable
}

// Provider implements datasource.MetadataProvider for PostgreSQL.
type Provider struct {
	pool     *pgxpool.Pool
	database string
	logger   *zap.Logger
}

// NewProvider opens a connection pool. If logger is nil, a no-op logger is used.
func NewProvider(ctx context.Context, cfg *Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connStr := cfg.connectionString()

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %s", logging.SanitizeError(err))
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
	}

	logger.Debug("Opened postgres pool",
		zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	return NewProviderFromPool(pool, cfg.Database, logger), nil
}

// NewProviderFromPool wraps an existing pool. The provider closes it.
func NewProviderFromPool(pool *pgxpool.Pool, database string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		pool:     pool,
		database: database,
		logger:   logger.Named("postgres"),
	}
}

// ListTables returns all base tables outside the system schemas. A
// PostgreSQL connection is bound to one database, so database must be empty
// or name the connected one.
func (p *Provider) ListTables(ctx context.Context, database string) ([]datasource.TableRef, error) {
	if err := p.checkDatabase(database); err != nil {
		return nil, err
	}

	// reltuples is -1 for tables that were never analyzed
	const query = `
		SELECT
			t.table_schema,
			t.table_name,
			CASE WHEN c.reltuples >= 0 THEN c.reltuples::bigint END AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY t.table_schema, t.table_name
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableRef
	for rows.Next() {
		t := datasource.TableRef{Database: p.database}
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// GetColumns returns columns for a table. Uses pg_index for primary key
// detection, which finds keys created as unique indexes (common with ORMs).
func (p *Provider) GetColumns(ctx context.Context, table datasource.TableRef) ([]models.ColumnDescriptor, error) {
	if err := p.checkDatabase(table.Database); err != nil {
		return nil, err
	}
	schema := table.Schema
	if schema == "" {
		schema = defaultSchema
	}

	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			COALESCE(fk.is_fk, false) AS is_foreign_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
			  AND array_length(ix.indkey, 1) = 1  -- single-column keys only
		) pk ON c.column_name = pk.column_name
		LEFT JOIN (
			SELECT DISTINCT kcu.column_name, true AS is_fk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON kcu.constraint_name = tc.constraint_name
			 AND kcu.table_schema = tc.table_schema
			 AND kcu.table_name = tc.table_name
			WHERE tc.constraint_type = 'FOREIGN KEY'
			  AND tc.table_schema = $1
			  AND tc.table_name = $2
		) fk ON c.column_name = fk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := p.pool.Query(ctx, query, schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnDescriptor
	for rows.Next() {
		var c models.ColumnDescriptor
		if err := rows.Scan(&c.Name, &c.DeclaredType, &c.Nullable, &c.IsPrimaryKey, &c.IsForeignKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", schema, table.Name, apperrors.ErrNotFound)
	}
	return columns, nil
}

// ExecuteScalarQuery runs a single-value query and returns the decoded value.
func (p *Provider) ExecuteScalarQuery(ctx context.Context, query, database string) (any, error) {
	if err := p.checkDatabase(database); err != nil {
		return nil, err
	}

	var v any
	if err := p.pool.QueryRow(ctx, query).Scan(&v); err != nil {
		p.logger.Debug("Scalar query failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("scalar query: %w", err)
	}
	return v, nil
}

// GetSampleValues returns up to limit distinct non-null values from a column.
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

	tableRef := qualifiedTableName(schema, table)
	quotedCol := pgx.Identifier{column}.Sanitize()

	query := fmt.Sprintf(`
		SELECT DISTINCT %s::text
		FROM %s
		WHERE %s IS NOT NULL
		ORDER BY 1
		LIMIT $1
	`, quotedCol, tableRef, quotedCol)

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get sample values for %s.%s.%s: %w", schema, table, column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var val string
		if err := rows.Scan(&val); err != nil {
			return nil, fmt.Errorf("scan sample value: %w", err)
		}
		values = append(values, val)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample values: %w", err)
	}
	return values, nil
}

// QuoteIdentifier quotes with double quotes, doubling embedded quotes.
func (p *Provider) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (p *Provider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Provider) checkDatabase(database string) error {
	if database == "" || strings.EqualFold(database, p.database) {
		return nil
	}
	return apperrors.NewValidationError("database",
		"postgres connection is bound to %q, cannot read %q", p.database, database)
}

var _ datasource.MetadataProvider = (*Provider)(nil)
