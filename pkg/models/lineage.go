package models

// TableRole marks whether a table is read or written by a statement.
type TableRole string

const (
	RoleSource TableRole = "source"
	RoleTarget TableRole = "target"
)

// TransformationType classifies how a selected expression derives its value.
type TransformationType string

const (
	TransformDirect       TransformationType = "direct"
	TransformAggregated   TransformationType = "aggregated"
	TransformCast         TransformationType = "cast"
	TransformConcatenated TransformationType = "concatenated"
	TransformCalculated   TransformationType = "calculated"
	TransformDerived      TransformationType = "derived"
	TransformConstant     TransformationType = "constant"
)

// QueryType is the statement kind taken from the leading keyword.
type QueryType string

const (
	QuerySelect   QueryType = "SELECT"
	QueryInsert   QueryType = "INSERT"
	QueryUpdate   QueryType = "UPDATE"
	QueryCreate   QueryType = "CREATE"
	QueryDelete   QueryType = "DELETE"
	QueryMerge    QueryType = "MERGE"
	QueryUnknown  QueryType = "UNKNOWN"
	QueryMultiple QueryType = "MULTIPLE"
)

// WildcardColumn is the column name used for SELECT * lineage edges.
const WildcardColumn = "*"

// LineageTable is a table referenced by a statement.
type LineageTable struct {
	Database string    `json:"database,omitempty"`
	Schema   string    `json:"schema,omitempty"`
	Name     string    `json:"name"`
	Alias    string    `json:"alias,omitempty"`
	Role     TableRole `json:"role"`
}

// QualifiedName returns schema.name, or name when there is no schema.
func (t LineageTable) QualifiedName() string {
	return QualifyName(t.Database, t.Schema, t.Name)
}

// ColumnLineage is one source column feeding one target column.
type ColumnLineage struct {
	SourceTable        string             `json:"source_table"`
	SourceColumn       string             `json:"source_column"`
	TargetTable        string             `json:"target_table"`
	TargetColumn       string             `json:"target_column"`
	TransformationType TransformationType `json:"transformation_type"`
	Confidence         float64            `json:"confidence"`
}

// JoinInfo describes one JOIN clause.
type JoinInfo struct {
	Left      string `json:"left"`
	Right     string `json:"right"`
	Condition string `json:"condition"`
	Type      string `json:"type"`
}

// SelectedColumn is one output expression of a statement.
type SelectedColumn struct {
	Name               string             `json:"name"`
	Expression         string             `json:"expression"`
	TransformationType TransformationType `json:"transformation_type"`
	References         []string           `json:"references,omitempty"`
}

// ParsedLineage is the lineage extracted from one statement (or a merged
// script).
type ParsedLineage struct {
	QueryType     QueryType        `json:"query_type"`
	Tables        []LineageTable   `json:"tables"`
	ColumnLineage []ColumnLineage  `json:"column_lineage"`
	Joins         []JoinInfo       `json:"joins"`
	Columns       []SelectedColumn `json:"columns"`
	Confidence    float64          `json:"confidence"`
}

// SourceTables returns the tables with the source role.
func (p *ParsedLineage) SourceTables() []LineageTable {
	return p.tablesWithRole(RoleSource)
}

// TargetTables returns the tables with the target role.
func (p *ParsedLineage) TargetTables() []LineageTable {
	return p.tablesWithRole(RoleTarget)
}

func (p *ParsedLineage) tablesWithRole(role TableRole) []LineageTable {
	var out []LineageTable
	for _, t := range p.Tables {
		if t.Role == role {
			out = append(out, t)
		}
	}
	return out
}
