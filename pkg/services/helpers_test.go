package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/retry"
)

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

// fastOptions keeps retries in the millisecond range.
func fastOptions() MetadataLoaderOptions {
	return MetadataLoaderOptions{
		Concurrency:  2,
		QueryTimeout: time.Second,
		SampleLimit:  10,
		Retry: &retry.Config{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	}
}

// fakeProvider is an in-memory MetadataProvider with injectable failures.
type fakeProvider struct {
	mu sync.Mutex

	tables  []datasource.TableRef
	columns map[string][]models.ColumnDescriptor // by table name
	scalars map[string]any                       // by query text
	samples map[string][]string                  // by table.column

	listErr    error
	columnErrs map[string]error
	// scalarErrs fail a query the given number of times, then succeed.
	scalarErrs map[string][]error
	sampleErr  error

	queries     []string
	sampleCalls int
}

func (p *fakeProvider) ListTables(_ context.Context, database string) ([]datasource.TableRef, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []datasource.TableRef
	for _, t := range p.tables {
		if database == "" || t.Database == database {
			out = append(out, t)
		}
	}
	return out, nil
}

func (p *fakeProvider) GetColumns(_ context.Context, table datasource.TableRef) ([]models.ColumnDescriptor, error) {
	if err := p.columnErrs[table.Name]; err != nil {
		return nil, err
	}
	cols, ok := p.columns[table.Name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cols, nil
}

func (p *fakeProvider) ExecuteScalarQuery(_ context.Context, query, _ string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)

	if errs := p.scalarErrs[query]; len(errs) > 0 {
		p.scalarErrs[query] = errs[1:]
		return nil, errs[0]
	}
	v, ok := p.scalars[query]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return v, nil
}

func (p *fakeProvider) GetSampleValues(_ context.Context, _, table, column string, limit int) ([]string, error) {
	p.mu.Lock()
	p.sampleCalls++
	p.mu.Unlock()
	if p.sampleErr != nil {
		return nil, p.sampleErr
	}
	values := p.samples[table+"."+column]
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}

func (p *fakeProvider) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (p *fakeProvider) Close() error { return nil }

func (p *fakeProvider) ran(query string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queries {
		if q == query {
			n++
		}
	}
	return n
}

const shopSnapshot = `
database: shop
tables:
  - schema: public
    name: customers
    row_count: 1000
    columns:
      - {name: id, type: int, primary_key: true, distinct_count: 1000, null_count: 0}
      - name: email
        type: varchar(255)
        nullable: true
        distinct_count: 990
        samples: [a@example.com, b@example.com, c@example.com, d@example.com]
  - schema: public
    name: orders
    row_count: 5000
    columns:
      - {name: id, type: int, primary_key: true, distinct_count: 5000, null_count: 0}
      - {name: customer_id, type: int, nullable: true, distinct_count: 1000, null_count: 12}
      - {name: total, type: "numeric(10,2)"}
  - schema: audit
    name: audit_log
    row_count: 3
    columns:
      - {name: id, type: bigint, primary_key: true, distinct_count: 3}
      - name: table_name
        type: text
        distinct_count: 3
        samples: [users, orders, payments]
`

func newShopProvider(t *testing.T) *datasource.SnapshotProvider {
	t.Helper()
	snap, err := datasource.ParseSnapshot([]byte(strings.TrimSpace(shopSnapshot)))
	require.NoError(t, err)
	return datasource.NewSnapshotProvider(snap, nil)
}

// ordersAndCustomers is the canonical many-to-one pair.
func ordersAndCustomers() []models.TableDescriptor {
	return []models.TableDescriptor{
		{
			QualifiedName: "shop.public.orders",
			RowCount:      i64(5000),
			Columns: []models.ColumnDescriptor{
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true, DistinctCount: i64(5000)},
				{Name: "customer_id", DeclaredType: "int", Nullable: true, DistinctCount: i64(1000)},
				{Name: "created_at", DeclaredType: "timestamp", DistinctCount: i64(4800)},
			},
		},
		{
			QualifiedName: "shop.public.customers",
			RowCount:      i64(1000),
			Columns: []models.ColumnDescriptor{
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true, DistinctCount: i64(1000)},
				{Name: "email", DeclaredType: "varchar(255)", DistinctCount: i64(990)},
			},
		},
	}
}
