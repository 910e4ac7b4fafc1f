package models

// PII categories reported by the content classifier.
const (
	CategoryEmail       = "EMAIL"
	CategoryPhone       = "PHONE"
	CategorySSN         = "SSN"
	CategoryCreditCard  = "CREDIT_CARD"
	CategoryIPAddress   = "IP_ADDRESS"
	CategoryDateOfBirth = "DATE_OF_BIRTH"
	CategoryPersonName  = "PERSON_NAME"
	CategoryCredential  = "CREDENTIAL"
)

// ContentClassification is the PII verdict for one column in one scan.
// Confidence is on a 0-100 scale. A rescan produces a fresh value.
type ContentClassification struct {
	ColumnName       string   `json:"column_name"`
	IsSensitive      bool     `json:"is_sensitive"`
	Category         *string  `json:"category"`
	Confidence       float64  `json:"confidence"`
	SampleMatches    int      `json:"sample_matches"`
	TotalSamples     int      `json:"total_samples"`
	EvidencePatterns []string `json:"evidence_patterns"`
	Reason           string   `json:"reason"`
}

// CategoryName returns the category or "" when the column is not sensitive.
func (c *ContentClassification) CategoryName() string {
	if c.Category == nil {
		return ""
	}
	return *c.Category
}
