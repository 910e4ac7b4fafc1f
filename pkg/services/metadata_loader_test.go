package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

func ordersProvider() *fakeProvider {
	return &fakeProvider{
		tables: []datasource.TableRef{
			{Database: "shop", Schema: "public", Name: "orders"},
			{Database: "shop", Schema: "public", Name: "customers", RowCount: i64(1000)},
		},
		columns: map[string][]models.ColumnDescriptor{
			"orders": {
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true},
				{Name: "customer_id", DeclaredType: "int", Nullable: true},
			},
			"customers": {
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true},
			},
		},
		scalars: map[string]any{
			`SELECT COUNT(*) FROM "public"."orders"`:                             int64(200),
			`SELECT COUNT(DISTINCT "id") FROM "public"."orders"`:                 int64(200),
			`SELECT COUNT(DISTINCT "customer_id") FROM "public"."orders"`:        int32(50),
			`SELECT COUNT(*) FROM "public"."orders" WHERE "customer_id" IS NULL`: "3",
			`SELECT COUNT(DISTINCT "id") FROM "public"."customers"`:              []byte("1000"),
		},
		samples: map[string][]string{
			"orders.customer_id": {"1", "2", "3"},
			"customers.id":       {"1", "2", "3", "4"},
		},
	}
}

func TestMetadataLoader_FillsMissingCounts(t *testing.T) {
	p := ordersProvider()
	loader := NewMetadataLoader(fastOptions(), zap.NewNop())

	res, err := loader.Load(context.Background(), p, ScopeFilters{}, false)
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, 2, res.TablesListed)
	assert.Zero(t, res.TablesSkipped)
	assert.Zero(t, res.FailedCalls)

	orders := res.Tables[0]
	assert.Equal(t, "shop.public.orders", orders.QualifiedName)
	require.NotNil(t, orders.RowCount)
	assert.Equal(t, int64(200), *orders.RowCount)

	id, _ := orders.Column("id")
	require.NotNil(t, id.DistinctCount)
	assert.Equal(t, int64(200), *id.DistinctCount)
	require.NotNil(t, id.NullCount)
	assert.Zero(t, *id.NullCount, "non-nullable columns need no null query")

	cust, _ := orders.Column("customer_id")
	assert.Equal(t, int64(50), *cust.DistinctCount)
	assert.Equal(t, int64(3), *cust.NullCount)
	assert.Nil(t, cust.SampleValues)

	customers := res.Tables[1]
	assert.Equal(t, int64(1000), *customers.RowCount)
	assert.Zero(t, p.ran(`SELECT COUNT(*) FROM "public"."customers"`), "catalog row count is reused")
	assert.Zero(t, p.sampleCalls)
}

func TestMetadataLoader_FailedScalarLeavesValueUnset(t *testing.T) {
	p := ordersProvider()
	q := `SELECT COUNT(DISTINCT "customer_id") FROM "public"."orders"`
	p.scalarErrs = map[string][]error{q: {errors.New("permission denied for table orders")}}

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, false)
	require.NoError(t, err)

	cust, _ := res.Tables[0].Column("customer_id")
	assert.Nil(t, cust.DistinctCount)
	assert.NotNil(t, cust.NullCount)
	assert.Equal(t, 1, res.FailedCalls)
	assert.Equal(t, 1, p.ran(q), "permanent errors are not retried")
}

func TestMetadataLoader_RetriesTransientFailures(t *testing.T) {
	p := ordersProvider()
	q := `SELECT COUNT(*) FROM "public"."orders"`
	p.scalarErrs = map[string][]error{q: {errors.New("connection reset by peer")}}

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, false)
	require.NoError(t, err)

	require.NotNil(t, res.Tables[0].RowCount)
	assert.Equal(t, int64(200), *res.Tables[0].RowCount)
	assert.Equal(t, 2, p.ran(q))
	assert.Zero(t, res.FailedCalls)
}

func TestMetadataLoader_ColumnFailureSkipsTable(t *testing.T) {
	p := ordersProvider()
	p.columnErrs = map[string]error{"orders": errors.New("relation does not exist")}

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, false)
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, "shop.public.customers", res.Tables[0].QualifiedName)
	assert.Equal(t, 1, res.TablesSkipped)
	assert.Equal(t, 1, res.FailedCalls)
}

func TestMetadataLoader_ListFailureIsReturned(t *testing.T) {
	p := &fakeProvider{listErr: errors.New("permission denied for schema public")}

	_, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list tables")
}

func TestMetadataLoader_Samples(t *testing.T) {
	p := ordersProvider()

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, true)
	require.NoError(t, err)

	cust, _ := res.Tables[0].Column("customer_id")
	assert.Equal(t, []string{"1", "2", "3"}, cust.SampleValues)
	id, _ := res.Tables[1].Column("id")
	assert.Equal(t, []string{"1", "2", "3", "4"}, id.SampleValues)
}

func TestMetadataLoader_SampleFailureIsTolerated(t *testing.T) {
	p := ordersProvider()
	p.sampleErr = errors.New("permission denied")

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, true)
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	for _, tbl := range res.Tables {
		for _, c := range tbl.Columns {
			assert.Empty(t, c.SampleValues)
		}
	}
	assert.Equal(t, 3, res.FailedCalls)
}

func TestMetadataLoader_SnapshotProvider(t *testing.T) {
	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), newShopProvider(t), ScopeFilters{}, true)
	require.NoError(t, err)

	names := make([]string, len(res.Tables))
	for i, tbl := range res.Tables {
		names[i] = tbl.QualifiedName
	}
	assert.Equal(t, []string{"shop.public.customers", "shop.public.orders", "shop.audit.audit_log"}, names)
	assert.Zero(t, res.FailedCalls, "unsupported queries are not failures")

	email, _ := res.Tables[0].Column("email")
	assert.Equal(t, int64(990), *email.DistinctCount)
	assert.Nil(t, email.NullCount)
	assert.Len(t, email.SampleValues, 4)

	total, _ := res.Tables[1].Column("total")
	assert.Nil(t, total.DistinctCount)
}

func TestMetadataLoader_ScopeFilters(t *testing.T) {
	tests := []struct {
		name  string
		scope ScopeFilters
		want  []string
	}{
		{"everything", ScopeFilters{}, []string{"shop.public.customers", "shop.public.orders", "shop.audit.audit_log"}},
		{"schema", ScopeFilters{Schemas: []string{"PUBLIC"}}, []string{"shop.public.customers", "shop.public.orders"}},
		{"table glob", ScopeFilters{Tables: []string{"ord*"}}, []string{"shop.public.orders"}},
		{"qualified glob", ScopeFilters{Tables: []string{"shop.audit.*"}}, []string{"shop.audit.audit_log"}},
		{"exclude", ScopeFilters{ExcludeTables: []string{"*_log"}}, []string{"shop.public.customers", "shop.public.orders"}},
		{"database", ScopeFilters{Database: "other"}, []string{}},
	}
	loader := NewMetadataLoader(fastOptions(), zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := loader.Load(context.Background(), newShopProvider(t), tt.scope, false)
			require.NoError(t, err)
			got := []string{}
			for _, tbl := range res.Tables {
				got = append(got, tbl.QualifiedName)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetadataLoader_RejectsBadPattern(t *testing.T) {
	_, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), newShopProvider(t),
		ScopeFilters{Tables: []string{"orders["}}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestMetadataLoader_DropsDuplicateTables(t *testing.T) {
	p := ordersProvider()
	p.tables = append(p.tables, datasource.TableRef{Database: "shop", Schema: "PUBLIC", Name: "Orders"})

	res, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(context.Background(), p, ScopeFilters{}, false)
	require.NoError(t, err)
	assert.Len(t, res.Tables, 2)
	assert.Equal(t, 2, res.TablesListed)
}

func TestMetadataLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := ordersProvider()
	_, err := NewMetadataLoader(fastOptions(), zap.NewNop()).Load(ctx, p, ScopeFilters{}, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.queries, "no queries are issued after cancellation")
}
