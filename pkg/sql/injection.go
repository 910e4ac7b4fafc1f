package sql

import (
	"strings"
	"unicode"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
)

// maxIdentifierLength covers PostgreSQL (63), SQL Server (128) and MySQL (64).
const maxIdentifierLength = 128

// InjectionCheckResult describes a value libinjection flagged.
type InjectionCheckResult struct {
	Field       string
	Value       string
	Fingerprint string
}

// CheckValueForInjection runs libinjection over a value that will end up in
// generated SQL. It returns nil when the value looks clean.
func CheckValueForInjection(field, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckIdentifier validates a schema, table or column name read from a
// catalog before a provider composes statistics SQL around it. Providers
// still quote every identifier; this rejects names no catalog should
// return.
func CheckIdentifier(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError(field, "identifier must not be empty")
	}
	if len(name) > maxIdentifierLength {
		return apperrors.NewValidationError(field, "identifier longer than %d bytes", maxIdentifierLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return apperrors.NewValidationError(field, "identifier contains control characters")
		}
	}
	if result := CheckValueForInjection(field, name); result != nil {
		return apperrors.NewValidationError(field, "identifier matches SQL injection pattern %q", result.Fingerprint)
	}
	return nil
}
