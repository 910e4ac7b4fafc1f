package mssql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
)

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProviderFromDB(db, "shop", zap.NewNop()), mock
}

func TestProvider_ListTables(t *testing.T) {
	tests := []struct {
		name       string
		database   string
		wantQuery  string
		wantDBName string
	}{
		{"connected database", "", `FROM sys\.tables`, "shop"},
		{"same database", "SHOP", `FROM sys\.tables`, "shop"},
		{"other database", "archive", `FROM \[archive\]\.sys\.tables`, "archive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mock := newMockProvider(t)
			mock.ExpectQuery(tt.wantQuery).WillReturnRows(
				sqlmock.NewRows([]string{"table_schema", "table_name", "row_count"}).
					AddRow("dbo", "customers", int64(50)).
					AddRow("sales", "orders", nil))

			tables, err := p.ListTables(context.Background(), tt.database)
			require.NoError(t, err)
			require.Len(t, tables, 2)

			assert.Equal(t, tt.wantDBName+".dbo.customers", tables[0].QualifiedName())
			require.NotNil(t, tables[0].RowCount)
			assert.Equal(t, int64(50), *tables[0].RowCount)
			assert.Nil(t, tables[1].RowCount)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProvider_GetColumns(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(`OBJECT_ID\(@objname\)`).WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "is_foreign_key"}).
			AddRow("id", "int", 0, 1, 0).
			AddRow("customer_id", "int", 1, 0, 1).
			AddRow("email", "nvarchar", 1, 0, 0))

	cols, err := p.GetColumns(context.Background(), datasource.TableRef{Name: "orders"})
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.True(t, cols[0].IsPrimaryKey)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].IsForeignKey)
	assert.True(t, cols[1].Nullable)
	assert.Equal(t, "nvarchar", cols[2].DeclaredType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_GetColumns_NotFound(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(`OBJECT_ID`).WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary_key", "is_foreign_key"}))

	_, err := p.GetColumns(context.Background(), datasource.TableRef{Schema: "dbo", Name: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvider_ExecuteScalarQuery(t *testing.T) {
	p, mock := newMockProvider(t)
	ref := datasource.TableRef{Schema: "dbo", Name: "orders"}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \[dbo\]\.\[orders\]`).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(200)))

	v, err := p.ExecuteScalarQuery(context.Background(), datasource.RowCountQuery(p, ref), "")
	require.NoError(t, err)
	n, err := datasource.ToInt64(v)
	require.NoError(t, err)
	assert.Equal(t, int64(200), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_ExecuteScalarQuery_OtherDatabase(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectExec(`USE \[archive\]`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(7)))
	mock.ExpectExec(`USE \[shop\]`).WillReturnResult(sqlmock.NewResult(0, 0))

	v, err := p.ExecuteScalarQuery(context.Background(), "SELECT COUNT(*) FROM [dbo].[t]", "archive")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_ExecuteScalarQuery_Error(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(assert.AnError)

	_, err := p.ExecuteScalarQuery(context.Background(), "SELECT COUNT(*) FROM [dbo].[t]", "")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestProvider_GetSampleValues(t *testing.T) {
	p, mock := newMockProvider(t)
	mock.ExpectQuery(`SELECT DISTINCT TOP \(@limit\) CAST\(\[email\] AS NVARCHAR\(MAX\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"val"}).
			AddRow("a@example.com").
			AddRow(nil).
			AddRow("b@example.com"))

	values, err := p.GetSampleValues(context.Background(), "", "customers", "email", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_GetSampleValues_RejectsBadIdentifiers(t *testing.T) {
	p, _ := newMockProvider(t)

	_, err := p.GetSampleValues(context.Background(), "dbo", "customers", "", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestQuoteIdentifier(t *testing.T) {
	p, _ := newMockProvider(t)
	assert.Equal(t, "[orders]", p.QuoteIdentifier("orders"))
	assert.Equal(t, "[we]]ird]", p.QuoteIdentifier("we]ird"))
}
