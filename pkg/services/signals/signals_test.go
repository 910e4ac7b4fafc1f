package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/similarity"
)

func i64(v int64) *int64 { return &v }

func ordersAndCustomers() []models.TableDescriptor {
	return []models.TableDescriptor{
		{
			QualifiedName: "shop.public.orders",
			RowCount:      i64(10000),
			Columns: []models.ColumnDescriptor{
				{Name: "id", DeclaredType: "integer", IsPrimaryKey: true, DistinctCount: i64(10000)},
				{Name: "customer_id", DeclaredType: "int", Nullable: true},
				{Name: "created_at", DeclaredType: "timestamp"},
			},
		},
		{
			QualifiedName: "shop.public.customers",
			RowCount:      i64(1000),
			Columns: []models.ColumnDescriptor{
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true, DistinctCount: i64(1000)},
				{Name: "email", DeclaredType: "varchar(255)"},
			},
		},
	}
}

func TestTypesCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"INT", "bigint", true},
		{"integer", "SMALLINT", true},
		{"int4", "int8", true},
		{"VARCHAR(255)", "text", true},
		{"nvarchar(max)", "char(10)", true},
		{"character varying(64)", "varchar", true},
		{"uuid", "uuid", true},
		{"numeric(10,2)", "numeric(12,4)", true},
		{"int", "varchar", false},
		{"uuid", "text", false},
		{"", "int", false},
		{"int[]", "integer", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypesCompatible(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestNamePatternGenerator_OrdersToCustomers(t *testing.T) {
	tables := ordersAndCustomers()
	g := NewNamePatternGenerator(DefaultOptions(), nil)

	got := g.Generate(&tables[0], tables)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "shop.public.orders", c.SourceTable)
	assert.Equal(t, "customer_id", c.SourceColumn)
	assert.Equal(t, "shop.public.customers", c.TargetTable)
	assert.Equal(t, "id", c.TargetColumn)
	assert.Equal(t, models.SignalName, c.SignalType)
	assert.Equal(t, models.JoinLeft, c.SuggestedJoin)
	assert.InDelta(t, 1.0, c.Similarity, 1e-9)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
}

func TestNamePatternGenerator_Variants(t *testing.T) {
	users := models.TableDescriptor{
		QualifiedName: "users",
		Columns:       []models.ColumnDescriptor{{Name: "user_id", DeclaredType: "int", IsPrimaryKey: true}},
	}

	tests := []struct {
		name       string
		column     string
		nullable   bool
		wantCount  int
		wantConf   float64
		wantJoin   models.JoinType
		wantTarget string
	}{
		{name: "fk prefix", column: "fk_user", wantCount: 1, wantConf: 0.95, wantJoin: models.JoinInner, wantTarget: "user_id"},
		{name: "fk prefix with id suffix", column: "fk_user_id", wantCount: 1, wantConf: 0.95, wantJoin: models.JoinInner, wantTarget: "user_id"},
		{name: "camel case", column: "userId", nullable: true, wantCount: 1, wantConf: 0.85, wantJoin: models.JoinLeft, wantTarget: "user_id"},
		{name: "key suffix", column: "user_key", wantCount: 1, wantConf: 0.8, wantJoin: models.JoinInner, wantTarget: "user_id"},
		{name: "trailing segment", column: "created_by_user_id", wantCount: 1, wantConf: 0.9 * 0.9, wantJoin: models.JoinInner, wantTarget: "user_id"},
		{name: "no pattern", column: "status", wantCount: 0},
		{name: "dissimilar base", column: "warehouse_id", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := models.TableDescriptor{
				QualifiedName: "posts",
				Columns:       []models.ColumnDescriptor{{Name: tt.column, DeclaredType: "int", Nullable: tt.nullable}},
			}
			tables := []models.TableDescriptor{src, users}
			got := NewNamePatternGenerator(DefaultOptions(), nil).Generate(&tables[0], tables)
			require.Len(t, got, tt.wantCount)
			if tt.wantCount == 0 {
				return
			}
			assert.InDelta(t, tt.wantConf, got[0].Confidence, 1e-9)
			assert.Equal(t, tt.wantJoin, got[0].SuggestedJoin)
			assert.Equal(t, tt.wantTarget, got[0].TargetColumn)
		})
	}
}

func TestTableNameSimilarity(t *testing.T) {
	// the raw comparison alone would give 1 - 1/9
	assert.InDelta(t, 1-1.0/9, similarity.String("customer", "customers"), 1e-9)
	assert.Equal(t, 1.0, tableNameSimilarity("customer", "customers"))
	assert.Equal(t, 1.0, tableNameSimilarity("person", "people"))
	assert.InDelta(t, 0.9, tableNameSimilarity("created_by_user", "users"), 1e-9)
	assert.Less(t, tableNameSimilarity("invoice", "customers"), 0.6)
}

func TestValueOverlapGenerator_PrimaryKeySources(t *testing.T) {
	tables := []models.TableDescriptor{
		{
			QualifiedName: "app.public.user_profiles",
			Columns: []models.ColumnDescriptor{
				{Name: "user_id", DeclaredType: "int", IsPrimaryKey: true, SampleValues: []string{"1", "2", "3"}},
			},
		},
		{
			QualifiedName: "app.public.users",
			Columns: []models.ColumnDescriptor{
				{Name: "id", DeclaredType: "int", IsPrimaryKey: true, SampleValues: []string{"1", "2", "3", "4"}},
			},
		},
	}

	assert.Empty(t, NewValueOverlapGenerator(DefaultOptions()).Generate(&tables[0], tables),
		"primary keys are not sources by default")

	opts := DefaultOptions()
	opts.SkipPrimaryKeySources = false
	got := NewValueOverlapGenerator(opts).Generate(&tables[0], tables)
	require.Len(t, got, 1)
	assert.Equal(t, "user_id", got[0].SourceColumn)
	assert.Equal(t, "id", got[0].TargetColumn)

	byName := NewNamePatternGenerator(DefaultOptions(), nil).Generate(&tables[0], tables)
	require.Len(t, byName, 1, "name patterns still consider primary-key sources")
	assert.Equal(t, "user_id", byName[0].SourceColumn)
}

func TestNamePatternGenerator_RequiresTargetPrimaryKey(t *testing.T) {
	tables := []models.TableDescriptor{
		{QualifiedName: "orders", Columns: []models.ColumnDescriptor{{Name: "customer_id", DeclaredType: "int"}}},
		{QualifiedName: "customers", Columns: []models.ColumnDescriptor{{Name: "id", DeclaredType: "int"}}},
	}
	got := NewNamePatternGenerator(DefaultOptions(), nil).Generate(&tables[0], tables)
	assert.Empty(t, got)
}

func TestTypeCompatibilityGenerator(t *testing.T) {
	tables := []models.TableDescriptor{
		{
			QualifiedName: "orders",
			Columns: []models.ColumnDescriptor{
				{Name: "order_id", DeclaredType: "int", IsPrimaryKey: true},
				{Name: "customer_id", DeclaredType: "int"},
				{Name: "customer_note", DeclaredType: "text"},
			},
		},
		{
			QualifiedName: "customers",
			Columns: []models.ColumnDescriptor{
				{Name: "customer_id", DeclaredType: "BIGINT", IsPrimaryKey: true},
			},
		},
	}

	got := NewTypeCompatibilityGenerator(DefaultOptions()).Generate(&tables[0], tables)
	require.Len(t, got, 1)
	assert.Equal(t, "customer_id", got[0].SourceColumn)
	assert.Equal(t, "customer_id", got[0].TargetColumn)
	assert.Equal(t, models.SignalTypeCompat, got[0].SignalType)
	assert.InDelta(t, 0.75, got[0].Confidence, 1e-9)
	assert.Equal(t, models.JoinInner, got[0].SuggestedJoin)
}

func TestCardinalityGenerator(t *testing.T) {
	tables := ordersAndCustomers()
	tables[0].Columns[1].DistinctCount = i64(800)

	got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "customer_id", c.SourceColumn)
	assert.Equal(t, "id", c.TargetColumn)
	assert.Equal(t, models.SignalCardinality, c.SignalType)
	// 0.6 + (1.0 - 0.08) * 0.3
	assert.InDelta(t, 0.876, c.Confidence, 1e-9)
}

func TestCardinalityGenerator_UndeclaredUniqueTarget(t *testing.T) {
	tables := []models.TableDescriptor{
		{
			QualifiedName: "ledger.public.events",
			RowCount:      i64(1000),
			Columns: []models.ColumnDescriptor{
				{Name: "acct", DeclaredType: "int", DistinctCount: i64(100)},
			},
		},
		{
			QualifiedName: "ledger.public.accounts",
			RowCount:      i64(100),
			Columns: []models.ColumnDescriptor{
				{Name: "acct_no", DeclaredType: "int", DistinctCount: i64(100)},
				{Name: "opened_at", DeclaredType: "timestamp", DistinctCount: i64(100)},
				{Name: "region", DeclaredType: "int", DistinctCount: i64(12)},
			},
		},
	}

	got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)

	require.Len(t, got, 1)
	assert.Equal(t, "acct", got[0].SourceColumn)
	assert.Equal(t, "ledger.public.accounts", got[0].TargetTable)
	assert.Equal(t, "acct_no", got[0].TargetColumn)
	// 0.6 + (1.0 - 0.1) * 0.3
	assert.InDelta(t, 0.87, got[0].Confidence, 1e-9)

	// same result once the key is declared
	tables[1].Columns[0].IsPrimaryKey = true
	declared := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
	assert.Equal(t, got, declared)
}

func TestCardinalityGenerator_Guards(t *testing.T) {
	t.Run("missing counts", func(t *testing.T) {
		tables := ordersAndCustomers()
		got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
		assert.Empty(t, got)
	})

	t.Run("source too unique", func(t *testing.T) {
		tables := ordersAndCustomers()
		tables[0].Columns[1].DistinctCount = i64(9500)
		got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
		assert.Empty(t, got)
	})

	t.Run("target not unique enough", func(t *testing.T) {
		tables := ordersAndCustomers()
		tables[0].Columns[1].DistinctCount = i64(100)
		tables[1].Columns[0].DistinctCount = i64(900)
		got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
		assert.Empty(t, got)
	})

	t.Run("more distinct source values than target keys", func(t *testing.T) {
		tables := ordersAndCustomers()
		tables[0].Columns[1].DistinctCount = i64(5000)
		got := NewCardinalityGenerator(DefaultOptions()).Generate(&tables[0], tables)
		assert.Empty(t, got)
	})
}

func TestValueOverlapGenerator(t *testing.T) {
	tables := []models.TableDescriptor{
		{
			QualifiedName: "payments",
			Columns: []models.ColumnDescriptor{
				{Name: "invoice", DeclaredType: "varchar(20)", SampleValues: []string{"A1", "A2", "A3", "Z9", "A1"}},
			},
		},
		{
			QualifiedName: "invoices",
			Columns: []models.ColumnDescriptor{
				{Name: "number", DeclaredType: "text", IsPrimaryKey: true, SampleValues: []string{"A1", "A2", "A3", "A4"}},
				{Name: "memo", DeclaredType: "text", SampleValues: []string{"A1", "A2", "A3"}},
			},
		},
	}

	got := NewValueOverlapGenerator(DefaultOptions()).Generate(&tables[0], tables)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "number", c.TargetColumn)
	assert.InDelta(t, 0.75, c.Similarity, 1e-9)
	assert.InDelta(t, 0.775, c.Confidence, 1e-9)
	assert.Equal(t, models.SignalValueOverlap, c.SignalType)
}

func TestValueOverlapGenerator_FullOverlap(t *testing.T) {
	tables := []models.TableDescriptor{
		{QualifiedName: "a", Columns: []models.ColumnDescriptor{{Name: "ref", DeclaredType: "int", SampleValues: []string{"1", "2"}}}},
		{QualifiedName: "b", Columns: []models.ColumnDescriptor{{Name: "id", DeclaredType: "int", IsPrimaryKey: true, SampleValues: []string{"1", "2", "3"}}}},
	}
	got := NewValueOverlapGenerator(DefaultOptions()).Generate(&tables[0], tables)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
}

func TestBuild(t *testing.T) {
	gens := Build(DefaultOptions(), nil, false)
	require.Len(t, gens, 3)
	assert.Equal(t, models.SignalName, gens[0].Signal())
	assert.Equal(t, models.SignalTypeCompat, gens[1].Signal())
	assert.Equal(t, models.SignalCardinality, gens[2].Signal())

	gens = Build(DefaultOptions(), nil, true)
	require.Len(t, gens, 4)
	assert.Equal(t, models.SignalValueOverlap, gens[3].Signal())
}

func TestGenerators_DoNotMutateInput(t *testing.T) {
	tables := ordersAndCustomers()
	tables[0].Columns[1].DistinctCount = i64(800)
	before := ordersAndCustomers()
	before[0].Columns[1].DistinctCount = i64(800)

	for _, g := range Build(DefaultOptions(), nil, true) {
		for i := range tables {
			g.Generate(&tables[i], tables)
		}
	}
	assert.Equal(t, before, tables)
}
