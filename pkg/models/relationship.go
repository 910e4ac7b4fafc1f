package models

// SignalType identifies the generator that produced a Candidate.
type SignalType string

const (
	SignalName         SignalType = "name"
	SignalTypeCompat   SignalType = "type"
	SignalCardinality  SignalType = "cardinality"
	SignalValueOverlap SignalType = "value_overlap"
)

// ValidSignalTypes contains all valid signal type values.
var ValidSignalTypes = []SignalType{
	SignalName,
	SignalTypeCompat,
	SignalCardinality,
	SignalValueOverlap,
}

// IsValidSignalType checks if the given signal type is valid.
func IsValidSignalType(s SignalType) bool {
	for _, v := range ValidSignalTypes {
		if v == s {
			return true
		}
	}
	return false
}

// JoinType is the join a relationship suggests.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinOuter JoinType = "outer"
)

// Candidate is one generator's relationship hypothesis. Never mutated after
// creation.
type Candidate struct {
	SourceTable   string     `json:"source_table"`
	SourceColumn  string     `json:"source_column"`
	TargetTable   string     `json:"target_table"`
	TargetColumn  string     `json:"target_column"`
	SignalType    SignalType `json:"signal_type"`
	Similarity    float64    `json:"similarity"`
	Confidence    float64    `json:"confidence"`
	Reason        string     `json:"reason"`
	SuggestedJoin JoinType   `json:"suggested_join"`
}

// FusedSuggestion is a ranked relationship between two tables. Evidence is
// never empty and every member shares SourceTable and TargetTable.
type FusedSuggestion struct {
	SourceTable   string      `json:"source_table"`
	SourceColumn  string      `json:"source_column"`
	TargetTable   string      `json:"target_table"`
	TargetColumn  string      `json:"target_column"`
	Confidence    float64     `json:"confidence"`
	SuggestedJoin JoinType    `json:"suggested_join"`
	Evidence      []Candidate `json:"evidence"`
	Reason        string      `json:"reason"`
}
