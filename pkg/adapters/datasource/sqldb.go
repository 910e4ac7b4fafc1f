package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SQLBase carries the database/sql plumbing shared by the SQL Server and
// MySQL providers. Embed it and supply the dialect-specific queries.
type SQLBase struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// Close closes the database connection.
func (b *SQLBase) Close() error {
	if b.DB != nil {
		b.Logger.Debug("Closing database connection")
		return b.DB.Close()
	}
	return nil
}

// QueryScalar runs a single-value query. A query returning no rows is an
// error; a NULL value is returned as nil.
func (b *SQLBase) QueryScalar(ctx context.Context, query string, args ...any) (any, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	var v any
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scalar query returned no rows")
		}
		return nil, fmt.Errorf("scalar query: %w", err)
	}
	return v, nil
}

// QueryScalarIn runs a single-value query on a dedicated connection after
// executing switchStmt (a USE statement), then runs restoreStmt before the
// connection goes back to the pool. A connection that cannot be restored is
// discarded instead.
func (b *SQLBase) QueryScalarIn(ctx context.Context, switchStmt, restoreStmt, query string) (any, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, switchStmt); err != nil {
		return nil, fmt.Errorf("switch database: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), restoreStmt); err != nil {
			b.Logger.Warn("Failed to restore database, discarding connection", zap.Error(err))
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	var v any
	if err := conn.QueryRowContext(ctx, query).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scalar query returned no rows")
		}
		return nil, fmt.Errorf("scalar query: %w", err)
	}
	return v, nil
}

// QueryStrings collects the first column of every row as text.
func (b *SQLBase) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return values, nil
}
