package pii

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
}

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultOptions(), fixedNow, zap.NewNop())
}

func TestBands_Confidence(t *testing.T) {
	email := BuiltinMatchers(fixedNow)[0].Bands

	assert.Equal(t, 85.0, email.Confidence(0.9))
	assert.Equal(t, 95.0, email.Confidence(1.0))
	assert.Equal(t, 77.5, email.Confidence(0.8))
	assert.Equal(t, 70.0, email.Confidence(0.7))
	assert.Equal(t, 65.0, email.Confidence(0.35))
	assert.Equal(t, 95.0, email.Confidence(1.5))

	assert.Equal(t, 99.0, DefaultBands.Confidence(1))
	assert.Equal(t, 90.0, DefaultBands.Confidence(0.9))
}

func TestClassify_MetadataIdentifiers(t *testing.T) {
	got := newTestClassifier().Classify(Input{
		Table:        "audit_log",
		ColumnName:   "table_name",
		SampleValues: []string{"users", "orders", "payments"},
	}, DefaultRules())

	assert.False(t, got.IsSensitive)
	assert.Nil(t, got.Category)
	assert.Equal(t, 85.0, got.Confidence)
	assert.Equal(t, 3, got.SampleMatches)
	assert.Equal(t, 3, got.TotalSamples)
	assert.Contains(t, got.Reason, "metadata keywords")
}

func TestClassify_MetadataKeywords(t *testing.T) {
	got := newTestClassifier().Classify(Input{
		Table:        "schema_changes",
		ColumnName:   "object_name",
		SampleValues: []string{"pg_class", "information_schema.tables", "Public.Users_Table"},
	}, DefaultRules())

	assert.False(t, got.IsSensitive)
	assert.Equal(t, 90.0, got.Confidence)
	assert.Equal(t, []string{"METADATA_KEYWORD"}, got.EvidencePatterns)
	assert.Contains(t, got.Reason, "3/3 samples contain metadata keywords")
}

func TestClassify_MetadataContextWithRealNames(t *testing.T) {
	// a *_name column in an audit table still gets content matching when
	// the values are not identifiers
	got := newTestClassifier().Classify(Input{
		Table:        "audit_log",
		ColumnName:   "actor_name",
		SampleValues: []string{"Alice Smith", "Bob Jones", "Carol White"},
	}, DefaultRules())

	assert.True(t, got.IsSensitive)
	assert.Equal(t, models.CategoryPersonName, got.CategoryName())
}

func TestClassify_Email(t *testing.T) {
	samples := []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com",
		"f@example.com", "g@example.com", "h@example.com", "i@example.com", "not provided",
	}
	got := newTestClassifier().Classify(Input{Table: "customers", ColumnName: "email_address", SampleValues: samples}, DefaultRules())

	assert.True(t, got.IsSensitive)
	assert.Equal(t, models.CategoryEmail, got.CategoryName())
	assert.Equal(t, 85.0, got.Confidence)
	assert.Equal(t, 9, got.SampleMatches)
	assert.Equal(t, 10, got.TotalSamples)
	assert.Contains(t, got.EvidencePatterns, "EMAIL (9/10)")
}

func TestClassify_BuiltinPatterns(t *testing.T) {
	tests := []struct {
		name         string
		column       string
		samples      []string
		wantCategory string
		wantConf     float64
	}{
		{
			name:         "ssn",
			column:       "tax_ref",
			samples:      []string{"123-45-6789", "234-56-7890", "345-67-8901"},
			wantCategory: models.CategorySSN,
			wantConf:     99,
		},
		{
			name:         "credit card beats phone",
			column:       "pan",
			samples:      []string{"4111 1111 1111 1111", "5500-0000-0000-0004", "340000000000009", "4012888888881881"},
			wantCategory: models.CategoryCreditCard,
			wantConf:     99,
		},
		{
			name:         "phone",
			column:       "contact",
			samples:      []string{"+1 (555) 123-4567", "555-987-6543", "+44 20 7946 0958"},
			wantCategory: models.CategoryPhone,
			wantConf:     95,
		},
		{
			name:         "ip addresses",
			column:       "client_addr",
			samples:      []string{"10.0.0.1", "192.168.1.20", "::1", "2001:db8::1"},
			wantCategory: models.CategoryIPAddress,
			wantConf:     98,
		},
		{
			name:         "date of birth",
			column:       "date_of_birth",
			samples:      []string{"1985-03-12", "1990-07-01", "1979-11-30"},
			wantCategory: models.CategoryDateOfBirth,
			wantConf:     90,
		},
		{
			name:         "person names",
			column:       "full_name",
			samples:      []string{"Alice Smith", "Bob Jones", "Carol O'Neil", "Dan Brown"},
			wantCategory: models.CategoryPersonName,
			wantConf:     90,
		},
		{
			name:         "single token names in a name column",
			column:       "first_name",
			samples:      []string{"Alice", "Bob", "Carol"},
			wantCategory: models.CategoryPersonName,
			wantConf:     90,
		},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(Input{Table: "people", ColumnName: tt.column, SampleValues: tt.samples}, DefaultRules())
			require.True(t, got.IsSensitive, got.Reason)
			assert.Equal(t, tt.wantCategory, got.CategoryName())
			assert.Equal(t, tt.wantConf, got.Confidence)
		})
	}
}

func TestClassify_NotSensitive(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		samples []string
	}{
		{name: "dates without birth hint", column: "created_on", samples: []string{"1985-03-12", "1990-07-01", "1979-11-30"}},
		{name: "lowercase names", column: "first_name", samples: []string{"alice", "bob", "carol"}},
		{name: "snake case values", column: "label", samples: []string{"order_items", "user_accounts", "line_totals"}},
		{name: "single capitalised words outside name columns", column: "city", samples: []string{"Paris", "Berlin", "Madrid"}},
		{name: "below threshold", column: "contact", samples: []string{"a@x.io", "b@x.io", "c@x.io", "none", "n/a"}},
		{name: "invalid luhn", column: "pan", samples: []string{"4111111111111112", "4111111111111113"}},
		{name: "invalid ssn areas", column: "ssn", samples: []string{"000-12-3456", "666-12-3456", "912-34-5678"}},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(Input{Table: "people", ColumnName: tt.column, SampleValues: tt.samples}, DefaultRules())
			assert.False(t, got.IsSensitive, got.Reason)
			assert.Equal(t, 80.0, got.Confidence)
			assert.Contains(t, got.Reason, "No sensitive pattern matched")
		})
	}
}

func TestClassify_IntegerColumns(t *testing.T) {
	tests := []struct {
		name         string
		column       string
		dataType     string
		samples      []string
		wantEvidence string
	}{
		{
			name:         "epoch seconds",
			column:       "created_epoch",
			dataType:     "bigint",
			samples:      []string{"1700000000", "1700003600", "1712345678", "1698765432"},
			wantEvidence: "UNIX_TIMESTAMP (4/4)",
		},
		{
			name:         "epoch milliseconds without a declared type",
			column:       "updated_at_ms",
			samples:      []string{"1700000000123", "1700003600456", "1712345678789"},
			wantEvidence: "UNIX_TIMESTAMP (3/3)",
		},
		{
			name:     "nine digit order numbers",
			column:   "order_number",
			dataType: "bigint",
			samples:  []string{"123456789", "234567890", "345678901", "456789012"},
		},
		{
			name:     "ten digit account numbers",
			column:   "account_no",
			dataType: "INT(11) UNSIGNED",
			samples:  []string{"5551234567", "5559876543", "4155550199"},
		},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(Input{Table: "orders", ColumnName: tt.column, DataType: tt.dataType, SampleValues: tt.samples}, DefaultRules())
			assert.False(t, got.IsSensitive, got.Reason)
			assert.Equal(t, 80.0, got.Confidence)
			if tt.wantEvidence != "" {
				assert.Contains(t, got.EvidencePatterns, tt.wantEvidence)
				assert.Contains(t, got.Reason, "unix timestamps")
			}
		})
	}
}

func TestClassify_FormattedValuesInTextColumns(t *testing.T) {
	c := newTestClassifier()

	got := c.Classify(Input{Table: "people", ColumnName: "ssn", DataType: "varchar(11)",
		SampleValues: []string{"123-45-6789", "234-56-7890", "345-67-8901"}}, DefaultRules())
	assert.True(t, got.IsSensitive)
	assert.Equal(t, models.CategorySSN, got.CategoryName())

	// numeric is not an integer type, so digit-only card numbers still match
	got = c.Classify(Input{Table: "payments", ColumnName: "ref", DataType: "numeric(19)",
		SampleValues: []string{"4111111111111111", "4012888888881881"}}, DefaultRules())
	assert.True(t, got.IsSensitive, got.Reason)
	assert.Equal(t, models.CategoryCreditCard, got.CategoryName())

	// epoch-shaped text is not routed as timestamps
	got = c.Classify(Input{Table: "people", ColumnName: "phone", DataType: "text",
		SampleValues: []string{"2125551234", "2125559876", "2125550000"}}, DefaultRules())
	assert.True(t, got.IsSensitive, got.Reason)
	assert.Equal(t, models.CategoryPhone, got.CategoryName())
}

func TestIsUnixTimestamp(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1700000000", true},
		{"1700000000123", true},
		{"1700000000123456", true},
		{"1700000000123456789", true},
		{"9999999999", false},
		{"123456789", false},
		{"17000000a0", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isUnixTimestamp(tt.value), tt.value)
	}
}

func TestIsIntegerType(t *testing.T) {
	for _, typ := range []string{"int", "BIGINT", "int(11) unsigned", "int identity", "int8", "bigserial"} {
		assert.True(t, isIntegerType(typ), typ)
	}
	for _, typ := range []string{"", "varchar(10)", "numeric(19)", "interval", "point"} {
		assert.False(t, isIntegerType(typ), typ)
	}
}

func TestClassify_MetadataDominatesPersonName(t *testing.T) {
	got := newTestClassifier().Classify(Input{
		Table:        "widgets",
		ColumnName:   "display_name",
		SampleValues: []string{"Users Table", "Orders Table", "Schema Version", "Alice Smith"},
	}, DefaultRules())

	assert.False(t, got.IsSensitive)
	assert.Contains(t, got.EvidencePatterns, "PERSON_NAME suppressed: metadata-style values")
}

func TestClassify_NoSamples(t *testing.T) {
	got := newTestClassifier().Classify(Input{Table: "t", ColumnName: "notes"}, DefaultRules())

	assert.False(t, got.IsSensitive)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Equal(t, "No sample values available", got.Reason)
}

func TestClassify_CredentialName(t *testing.T) {
	c := newTestClassifier()

	got := c.Classify(Input{Table: "integrations", ColumnName: "api_key", SampleValues: []string{"sk_live_1234567890abcdef"}}, DefaultRules())
	assert.True(t, got.IsSensitive)
	assert.Equal(t, models.CategoryCredential, got.CategoryName())
	assert.Equal(t, 75.0, got.Confidence)

	got = c.Classify(Input{Table: "users", ColumnName: "password_hash"}, DefaultRules())
	assert.True(t, got.IsSensitive)
	assert.Equal(t, models.CategoryCredential, got.CategoryName())

	// a content match wins over the name hint
	got = c.Classify(Input{Table: "users", ColumnName: "password_reset_email", SampleValues: []string{"a@b.co", "c@d.co"}}, DefaultRules())
	assert.Equal(t, models.CategoryEmail, got.CategoryName())

	got = c.Classify(Input{Table: "cards", ColumnName: "credit_limit", SampleValues: []string{"100", "250"}}, DefaultRules())
	assert.False(t, got.IsSensitive)
}

func TestClassify_CustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.Custom = []Matcher{
		NewRegexMatcher("employee_id", "EMPLOYEE_ID", regexp.MustCompile(`^EMP-\d{6}$`), Bands{}),
	}
	c := newTestClassifier()

	got := c.Classify(Input{Table: "staff", ColumnName: "badge", SampleValues: []string{"EMP-000001", "EMP-123456"}}, rules)
	assert.True(t, got.IsSensitive)
	assert.Equal(t, "EMPLOYEE_ID", got.CategoryName())
	assert.Equal(t, 99.0, got.Confidence)

	// builtin verdicts survive the custom iteration
	got = c.Classify(Input{Table: "staff", ColumnName: "mail", SampleValues: []string{"a@b.co", "c@d.co"}}, rules)
	assert.Equal(t, models.CategoryEmail, got.CategoryName())

	// the metadata override still stops classification
	rules.Custom = []Matcher{
		NewRegexMatcher("anything", "ANY", regexp.MustCompile(`.`), Bands{}),
	}
	got = c.Classify(Input{Table: "audit_log", ColumnName: "table_name", SampleValues: []string{"users", "orders"}}, rules)
	assert.False(t, got.IsSensitive)
}

func TestMetadataRules_IsMetadataContext(t *testing.T) {
	m := DefaultRules().Metadata
	assert.True(t, m.IsMetadataContext("anything", "schema_name"))
	assert.True(t, m.IsMetadataContext("anything", "change_type"))
	assert.True(t, m.IsMetadataContext("change_history", "owner_name"))
	assert.False(t, m.IsMetadataContext("customers", "owner_name"))
	assert.False(t, m.IsMetadataContext("audit_log", "email"))
}
