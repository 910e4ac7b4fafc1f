package pii

import (
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// Matcher tests sampled values for one kind of sensitive content.
type Matcher struct {
	Name     string
	Category string
	Bands    Bands
	// NameHint, when set, restricts the matcher to columns whose name matches.
	NameHint *regexp.Regexp
	// Formatted matchers only trust digits written with separators or a
	// leading +, so they never run on integer-typed columns.
	Formatted bool

	match func(value, column string) bool
}

// Matches reports whether a single sample value matches.
func (m Matcher) Matches(value, column string) bool {
	return m.match(value, column)
}

// NewRegexMatcher builds a matcher from a pattern, as used by custom rules.
func NewRegexMatcher(name, category string, re *regexp.Regexp, bands Bands) Matcher {
	if bands.IsZero() {
		bands = DefaultBands
	}
	return Matcher{
		Name:     name,
		Category: category,
		Bands:    bands,
		match:    func(v, _ string) bool { return re.MatchString(v) },
	}
}

var (
	emailPattern      = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)
	phonePattern      = regexp.MustCompile(`^\+?[0-9(][0-9\s().\-]{8,}[0-9]$`)
	ssnPattern        = regexp.MustCompile(`^(\d{3})[- ]?(\d{2})[- ]?(\d{4})$`)
	cardPattern       = regexp.MustCompile(`^[0-9][0-9 \-]{11,22}[0-9]$`)
	nameTokenPattern  = regexp.MustCompile(`^(?:[A-Z][a-z]*(?:['\-][A-Z]?[a-z]+)*|[A-Z]\.)$`)
	dobColumnPattern  = regexp.MustCompile(`(?i)(birth|dob|bday|born)`)
	nameColumnPattern = regexp.MustCompile(`(?i)(name|first|last|surname|given|forename)`)
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "02.01.2006", "20060102"}

// BuiltinMatchers returns the built-in content matchers. now anchors the
// date-of-birth age check.
func BuiltinMatchers(now func() time.Time) []Matcher {
	return []Matcher{
		{
			Name: "email", Category: models.CategoryEmail,
			Bands: Bands{High: Band{85, 95}, Mid: Band{70, 85}, Low: Band{60, 70}},
			match: func(v, _ string) bool { return emailPattern.MatchString(v) },
		},
		{
			Name: "phone", Category: models.CategoryPhone,
			Formatted: true,
			Bands: Bands{High: Band{85, 95}, Mid: Band{70, 85}, Low: Band{60, 70}},
			match: func(v, _ string) bool { return isPhone(v) },
		},
		{
			Name: "ssn", Category: models.CategorySSN,
			Formatted: true,
			Bands: Bands{High: Band{95, 99}, Mid: Band{80, 95}, Low: Band{65, 75}},
			match: func(v, _ string) bool { return isSSN(v) },
		},
		{
			Name: "credit_card", Category: models.CategoryCreditCard,
			Formatted: true,
			Bands: Bands{High: Band{95, 99}, Mid: Band{80, 95}, Low: Band{65, 75}},
			match: func(v, _ string) bool { return isCardNumber(v) },
		},
		{
			Name: "ip_address", Category: models.CategoryIPAddress,
			Bands: Bands{High: Band{90, 98}, Mid: Band{75, 90}, Low: Band{60, 75}},
			match: func(v, _ string) bool { return net.ParseIP(v) != nil },
		},
		{
			Name: "date_of_birth", Category: models.CategoryDateOfBirth,
			Bands:    Bands{High: Band{80, 90}, Mid: Band{70, 80}, Low: Band{60, 70}},
			NameHint: dobColumnPattern,
			match:    func(v, _ string) bool { return isPlausibleBirthDate(v, now()) },
		},
		{
			Name: "person_name", Category: models.CategoryPersonName,
			Bands: Bands{High: Band{80, 90}, Mid: Band{70, 80}, Low: Band{60, 70}},
			match: isPersonName,
		},
	}
}

func digitsOf(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPhone(v string) bool {
	if !phonePattern.MatchString(v) || net.ParseIP(v) != nil {
		return false
	}
	n := len(digitsOf(v))
	return n >= 10 && n <= 15
}

func isSSN(v string) bool {
	m := ssnPattern.FindStringSubmatch(v)
	if m == nil {
		return false
	}
	area, group, serial := m[1], m[2], m[3]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

func isCardNumber(v string) bool {
	if !cardPattern.MatchString(v) {
		return false
	}
	d := digitsOf(v)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	return luhnValid(d)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// isPlausibleBirthDate accepts date-only values giving an age of 1 to 120.
func isPlausibleBirthDate(v string, now time.Time) bool {
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		age := now.Year() - d.Year()
		if now.YearDay() < d.YearDay() {
			age--
		}
		return d.Before(now) && age >= 1 && age <= 120
	}
	return false
}

// isPersonName accepts 1-4 capitalised tokens. A single token only counts
// when the column name suggests a name. snake_case and lowercase values
// never match.
func isPersonName(v, column string) bool {
	tokens := strings.Fields(v)
	if len(tokens) == 0 || len(tokens) > 4 {
		return false
	}
	if len(tokens) == 1 && !nameColumnPattern.MatchString(column) {
		return false
	}
	for _, t := range tokens {
		if !nameTokenPattern.MatchString(t) {
			return false
		}
	}
	return true
}
