package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
	"github.com/ekaya-inc/ekaya-discovery/pkg/testhelpers"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := FromDatasourceConfig(&config.DatasourceConfig{
		Host:     testDB.Host,
		Port:     testDB.Port,
		User:     testhelpers.TestUser,
		Password: testhelpers.TestPassword,
		Database: testhelpers.TestDatabase,
		SSLMode:  "disable",
	})
	require.NoError(t, err)

	p, err := NewProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_ListTables(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	tables, err := p.ListTables(ctx, "")
	require.NoError(t, err)

	names := make([]string, 0, len(tables))
	for _, tbl := range tables {
		names = append(names, tbl.QualifiedName())
	}
	assert.Subset(t, names, []string{
		"discovery_test.public.audit_log",
		"discovery_test.public.customers",
		"discovery_test.public.orders",
	})

	_, err = p.ListTables(ctx, "other_db")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestProvider_GetColumns(t *testing.T) {
	p := newTestProvider(t)

	cols, err := p.GetColumns(context.Background(), datasource.TableRef{Schema: "public", Name: "orders"})
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.False(t, cols[0].Nullable)

	assert.Equal(t, "customer_id", cols[1].Name)
	assert.Equal(t, "integer", cols[1].DeclaredType)
	assert.True(t, cols[1].Nullable)
	assert.False(t, cols[1].IsForeignKey)

	_, err = p.GetColumns(context.Background(), datasource.TableRef{Name: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvider_ScalarQueries(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	ref := datasource.TableRef{Schema: "public", Name: "orders"}

	v, err := p.ExecuteScalarQuery(ctx, datasource.RowCountQuery(p, ref), "")
	require.NoError(t, err)
	n, err := datasource.ToInt64(v)
	require.NoError(t, err)
	assert.Equal(t, int64(200), n)

	v, err = p.ExecuteScalarQuery(ctx, datasource.DistinctCountQuery(p, ref, "customer_id"), "")
	require.NoError(t, err)
	n, err = datasource.ToInt64(v)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestProvider_GetSampleValues(t *testing.T) {
	p := newTestProvider(t)

	values, err := p.GetSampleValues(context.Background(), "public", "audit_log", "table_name", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, values)

	_, err = p.GetSampleValues(context.Background(), "public", "audit_log", "", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}
