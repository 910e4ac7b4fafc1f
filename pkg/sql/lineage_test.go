package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

func parse(t *testing.T, d Dialect, text string) *models.ParsedLineage {
	t.Helper()
	parsed, err := NewParser(d).Parse(text)
	require.NoError(t, err)
	return parsed
}

func tableNames(tables []models.LineageTable) []string {
	names := make([]string, 0, len(tables))
	for _, tbl := range tables {
		names = append(names, tbl.QualifiedName())
	}
	return names
}

func TestParse_SelectWithJoin(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"SELECT a.id, SUM(a.amt) AS total FROM orders a JOIN customers c ON a.cust_id=c.id")

	assert.Equal(t, models.QuerySelect, parsed.QueryType)
	assert.Equal(t, []string{"orders", "customers"}, tableNames(parsed.SourceTables()))
	assert.Empty(t, parsed.TargetTables())

	require.Len(t, parsed.Joins, 1)
	assert.Equal(t, models.JoinInfo{Left: "orders", Right: "customers", Condition: "a.cust_id=c.id", Type: "INNER"}, parsed.Joins[0])

	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, "id", parsed.Columns[0].Name)
	assert.Equal(t, models.TransformDirect, parsed.Columns[0].TransformationType)
	assert.Equal(t, "total", parsed.Columns[1].Name)
	assert.Equal(t, "SUM(a.amt)", parsed.Columns[1].Expression)
	assert.Equal(t, models.TransformAggregated, parsed.Columns[1].TransformationType)
	assert.Equal(t, []string{"a.amt"}, parsed.Columns[1].References)

	// no target table, so no column lineage
	assert.Empty(t, parsed.ColumnLineage)
	assert.Equal(t, 0.95, parsed.Confidence)
}

func TestParse_InsertSelectWithColumnList(t *testing.T) {
	parsed := parse(t, DialectPostgres, `
		INSERT INTO analytics.daily_totals (order_day, total)
		SELECT CAST(o.created_at AS date), SUM(o.amount)
		FROM sales.orders o
		GROUP BY 1`)

	assert.Equal(t, models.QueryInsert, parsed.QueryType)
	require.Len(t, parsed.TargetTables(), 1)
	target := parsed.TargetTables()[0]
	assert.Equal(t, "analytics", target.Schema)
	assert.Equal(t, "daily_totals", target.Name)

	sources := parsed.SourceTables()
	require.Len(t, sources, 1)
	assert.Equal(t, "sales.orders", sources[0].QualifiedName())
	assert.Equal(t, "o", sources[0].Alias)

	assert.Equal(t, []models.ColumnLineage{
		{
			SourceTable: "sales.orders", SourceColumn: "created_at",
			TargetTable: "analytics.daily_totals", TargetColumn: "order_day",
			TransformationType: models.TransformCast, Confidence: 0.9,
		},
		{
			SourceTable: "sales.orders", SourceColumn: "amount",
			TargetTable: "analytics.daily_totals", TargetColumn: "total",
			TransformationType: models.TransformAggregated, Confidence: 0.85,
		},
	}, parsed.ColumnLineage)
	assert.Equal(t, 1.0, parsed.Confidence)
}

func TestParse_SelectStarProducesOneEdgePerSource(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"INSERT INTO archive.orders SELECT * FROM orders o JOIN customers c ON o.customer_id = c.id")

	require.Len(t, parsed.ColumnLineage, 2)
	for i, source := range []string{"orders", "customers"} {
		edge := parsed.ColumnLineage[i]
		assert.Equal(t, source, edge.SourceTable)
		assert.Equal(t, models.WildcardColumn, edge.SourceColumn)
		assert.Equal(t, "archive.orders", edge.TargetTable)
		assert.Equal(t, models.WildcardColumn, edge.TargetColumn)
		assert.Equal(t, 0.6, edge.Confidence)
	}
	assert.Equal(t, 0.95, parsed.Confidence)
}

func TestParse_UpdateSetList(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"UPDATE orders SET total = price * quantity, status = 'done' WHERE id = 1")

	assert.Equal(t, models.QueryUpdate, parsed.QueryType)
	assert.Equal(t, []string{"orders"}, tableNames(parsed.TargetTables()))

	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, models.TransformCalculated, parsed.Columns[0].TransformationType)
	assert.Equal(t, models.TransformConstant, parsed.Columns[1].TransformationType)

	require.Len(t, parsed.ColumnLineage, 2)
	assert.Equal(t, "price", parsed.ColumnLineage[0].SourceColumn)
	assert.Equal(t, "quantity", parsed.ColumnLineage[1].SourceColumn)
	for _, edge := range parsed.ColumnLineage {
		assert.Equal(t, "orders", edge.SourceTable)
		assert.Equal(t, "total", edge.TargetColumn)
		assert.Equal(t, 0.8, edge.Confidence)
	}
}

func TestParse_UpdateTargetWrittenAsAlias(t *testing.T) {
	parsed := parse(t, DialectMSSQL,
		"UPDATE o SET o.total = c.credit FROM orders o JOIN customers c ON o.customer_id = c.id")

	require.Len(t, parsed.TargetTables(), 1)
	assert.Equal(t, "orders", parsed.TargetTables()[0].Name)
	assert.Equal(t, []string{"orders", "customers"}, tableNames(parsed.SourceTables()))

	require.Len(t, parsed.ColumnLineage, 1)
	assert.Equal(t, models.ColumnLineage{
		SourceTable: "customers", SourceColumn: "credit",
		TargetTable: "orders", TargetColumn: "total",
		TransformationType: models.TransformDirect, Confidence: 0.95,
	}, parsed.ColumnLineage[0])

	require.Len(t, parsed.Joins, 1)
	assert.Equal(t, "orders", parsed.Joins[0].Left)
}

func TestParse_CommonTableExpressions(t *testing.T) {
	parsed := parse(t, DialectPostgres, `
		WITH recent AS (
			SELECT id, customer_id FROM orders WHERE created_at > now() - interval '7 days'
		)
		SELECT r.id, c.name
		FROM recent r
		JOIN customers c ON r.customer_id = c.id`)

	assert.Equal(t, models.QuerySelect, parsed.QueryType)
	// the CTE is not a physical table
	assert.Equal(t, []string{"orders", "customers"}, tableNames(parsed.SourceTables()))
	require.Len(t, parsed.Joins, 1)
	assert.Equal(t, "recent", parsed.Joins[0].Left)
	assert.Equal(t, "customers", parsed.Joins[0].Right)

	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, "id", parsed.Columns[0].Name)
	assert.Equal(t, "name", parsed.Columns[1].Name)

	// one join, one CTE
	assert.Equal(t, 0.9, parsed.Confidence)
}

func TestParse_SubqueriesLowerConfidence(t *testing.T) {
	parsed := parse(t, DialectGeneric, `
		SELECT id FROM orders
		WHERE customer_id IN (SELECT id FROM customers WHERE vip)
		  AND EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id)`)

	assert.Equal(t, []string{"orders", "customers", "payments"}, tableNames(parsed.SourceTables()))
	assert.Equal(t, 0.8, parsed.Confidence)
	require.Len(t, parsed.Columns, 1)
	assert.Equal(t, "id", parsed.Columns[0].Name)
}

func TestStatementConfidence(t *testing.T) {
	tests := []struct {
		joins, subqueries, ctes int
		want                    float64
	}{
		{0, 0, 0, 1.0},
		{1, 0, 0, 0.95},
		{2, 1, 1, 0.75},
		{6, 3, 2, 0.5},
		{20, 0, 0, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statementConfidence(tt.joins, tt.subqueries, tt.ctes))
	}
}

func TestParse_FromInsideFunctionsIsNotATable(t *testing.T) {
	parsed := parse(t, DialectPostgres,
		"SELECT EXTRACT(YEAR FROM o.created_at) AS yr, SUBSTRING(o.code FROM 2) FROM orders o")

	assert.Equal(t, []string{"orders"}, tableNames(parsed.SourceTables()))
	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, "yr", parsed.Columns[0].Name)
	assert.Equal(t, []string{"o.created_at"}, parsed.Columns[0].References)
	assert.Equal(t, models.TransformCalculated, parsed.Columns[0].TransformationType)
	assert.Equal(t, "substring", parsed.Columns[1].Name)
}

func TestParse_CreateViewWithConcatenation(t *testing.T) {
	parsed := parse(t, DialectPostgres, `
		CREATE OR REPLACE VIEW reporting.active_customers AS
		SELECT c.id, c.first_name || ' ' || c.last_name AS full_name
		FROM customers c
		WHERE c.active`)

	assert.Equal(t, models.QueryCreate, parsed.QueryType)
	assert.Equal(t, []string{"reporting.active_customers"}, tableNames(parsed.TargetTables()))

	require.Len(t, parsed.ColumnLineage, 3)
	assert.Equal(t, "id", parsed.ColumnLineage[0].TargetColumn)
	assert.Equal(t, models.TransformDirect, parsed.ColumnLineage[0].TransformationType)
	for _, edge := range parsed.ColumnLineage[1:] {
		assert.Equal(t, "full_name", edge.TargetColumn)
		assert.Equal(t, models.TransformConcatenated, edge.TransformationType)
		assert.Equal(t, 0.85, edge.Confidence)
	}
}

func TestParse_DeleteFrom(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"DELETE FROM orders WHERE customer_id IN (SELECT id FROM customers WHERE banned)")

	assert.Equal(t, models.QueryDelete, parsed.QueryType)
	assert.Equal(t, []string{"orders"}, tableNames(parsed.TargetTables()))
	assert.Equal(t, []string{"customers"}, tableNames(parsed.SourceTables()))
	assert.Empty(t, parsed.ColumnLineage)
	assert.Equal(t, 0.9, parsed.Confidence)
}

func TestParse_Merge(t *testing.T) {
	parsed := parse(t, DialectMSSQL, `
		MERGE INTO dim_customer AS t
		USING staging.customers AS s ON t.id = s.id
		WHEN MATCHED THEN UPDATE SET t.email = s.email
		WHEN NOT MATCHED THEN INSERT (id, email) VALUES (s.id, s.email);`)

	assert.Equal(t, models.QueryMerge, parsed.QueryType)
	assert.Equal(t, []string{"dim_customer"}, tableNames(parsed.TargetTables()))
	assert.Equal(t, []string{"staging.customers"}, tableNames(parsed.SourceTables()))

	require.Len(t, parsed.ColumnLineage, 2)
	assert.Equal(t, "email", parsed.ColumnLineage[0].TargetColumn)
	assert.Equal(t, "id", parsed.ColumnLineage[1].TargetColumn)
	for _, edge := range parsed.ColumnLineage {
		assert.Equal(t, "staging.customers", edge.SourceTable)
		assert.Equal(t, "dim_customer", edge.TargetTable)
		assert.Equal(t, 0.95, edge.Confidence)
	}
}

func TestParse_SelectInto(t *testing.T) {
	parsed := parse(t, DialectMSSQL, "SELECT id, name INTO #tmp_customers FROM customers")

	assert.Equal(t, []string{"#tmp_customers"}, tableNames(parsed.TargetTables()))
	assert.Equal(t, []string{"customers"}, tableNames(parsed.SourceTables()))
	require.Len(t, parsed.ColumnLineage, 2)
	assert.Equal(t, "name", parsed.ColumnLineage[1].TargetColumn)
}

func TestParse_IgnoresLiteralsAndComments(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"SELECT 'FROM fake_table' AS label, id FROM real_table -- JOIN ghost g ON 1=1")

	assert.Equal(t, []string{"real_table"}, tableNames(parsed.SourceTables()))
	assert.Empty(t, parsed.Joins)
	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, models.TransformConstant, parsed.Columns[0].TransformationType)
}

func TestParse_JoinTypes(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.a_id FULL JOIN c USING (id) CROSS JOIN d")

	require.Len(t, parsed.Joins, 3)
	assert.Equal(t, models.JoinInfo{Left: "a", Right: "b", Condition: "a.id = b.a_id", Type: "LEFT"}, parsed.Joins[0])
	assert.Equal(t, models.JoinInfo{Left: "b", Right: "c", Condition: "USING (id)", Type: "FULL"}, parsed.Joins[1])
	assert.Equal(t, models.JoinInfo{Left: "c", Right: "d", Condition: "", Type: "CROSS"}, parsed.Joins[2])
	assert.Equal(t, 0.85, parsed.Confidence)
}

func TestParse_UnqualifiedColumnWithSeveralSources(t *testing.T) {
	parsed := parse(t, DialectGeneric,
		"INSERT INTO t SELECT amount FROM a JOIN b ON a.id = b.id")

	require.Len(t, parsed.ColumnLineage, 1)
	edge := parsed.ColumnLineage[0]
	assert.Empty(t, edge.SourceTable)
	assert.Equal(t, "amount", edge.SourceColumn)
	assert.Equal(t, 0.76, edge.Confidence)
}

func TestParse_DialectQuoting(t *testing.T) {
	t.Run("mysql", func(t *testing.T) {
		parsed := parse(t, DialectMySQL,
			"SELECT `o`.`id`, \"literal FROM x\" AS note FROM `shop`.`orders` `o`")
		sources := parsed.SourceTables()
		require.Len(t, sources, 1)
		assert.Equal(t, "shop", sources[0].Schema)
		assert.Equal(t, "orders", sources[0].Name)
		assert.Equal(t, "o", sources[0].Alias)
		require.Len(t, parsed.Columns, 2)
		assert.Equal(t, "id", parsed.Columns[0].Name)
		assert.Equal(t, models.TransformConstant, parsed.Columns[1].TransformationType)
	})

	t.Run("postgres dollar quoting", func(t *testing.T) {
		parsed := parse(t, DialectPostgres, "SELECT $$FROM nowhere$$ AS txt, id FROM items")
		assert.Equal(t, []string{"items"}, tableNames(parsed.SourceTables()))
	})

	t.Run("mssql brackets", func(t *testing.T) {
		parsed := parse(t, DialectMSSQL, "SELECT [o].[Order ID] FROM [dbo].[Order Details] AS [o]")
		sources := parsed.SourceTables()
		require.Len(t, sources, 1)
		assert.Equal(t, "dbo", sources[0].Schema)
		assert.Equal(t, "Order Details", sources[0].Name)
		assert.Equal(t, "o", sources[0].Alias)
		assert.Equal(t, "Order ID", parsed.Columns[0].Name)
	})
}

func TestParse_UnknownStatement(t *testing.T) {
	parsed := parse(t, DialectGeneric, "DROP TABLE orders")
	assert.Equal(t, models.QueryUnknown, parsed.QueryType)
	assert.Empty(t, parsed.Tables)
	assert.Equal(t, 1.0, parsed.Confidence)
}

func TestParse_Errors(t *testing.T) {
	p := NewParser(DialectGeneric)

	_, err := p.Parse("   ")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = p.Parse("-- only a comment")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	_, err = p.Parse("SELECT 1; SELECT 2")
	assert.ErrorIs(t, err, ErrMultipleStatements)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedQuery))

	_, err = p.Parse("SELECT 1;")
	assert.NoError(t, err)
}

func TestParseScript(t *testing.T) {
	p := NewParser(DialectGeneric)

	merged, err := p.ParseScript(`
		INSERT INTO t SELECT s.x FROM s;
		INSERT INTO t SELECT UPPER(s.x) AS x FROM s;
		INSERT INTO u SELECT y FROM t;`)
	require.NoError(t, err)

	assert.Equal(t, models.QueryInsert, merged.QueryType)
	assert.Equal(t, []string{"t", "s", "u", "t"}, tableNames(merged.Tables))
	require.Len(t, merged.ColumnLineage, 2)
	assert.Equal(t, models.TransformDirect, merged.ColumnLineage[0].TransformationType)
	assert.Equal(t, 0.95, merged.ColumnLineage[0].Confidence)
	assert.Equal(t, "u", merged.ColumnLineage[1].TargetTable)

	mixed, err := p.ParseScript("SELECT a FROM b JOIN c ON b.id = c.id; DELETE FROM t")
	require.NoError(t, err)
	assert.Equal(t, models.QueryMultiple, mixed.QueryType)
	assert.Equal(t, 0.95, mixed.Confidence)
}

func TestParse_IsDeterministic(t *testing.T) {
	text := "INSERT INTO t (a, b) SELECT x.a, COUNT(*) FROM x JOIN y ON x.id = y.x_id GROUP BY x.a"
	first := parse(t, DialectGeneric, text)
	for range 5 {
		assert.Equal(t, first, parse(t, DialectGeneric, text))
	}
}
