package rules

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/services/pii"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/signals"
)

// RuleSet is an immutable compiled snapshot. A scan reads one snapshot from
// start to finish.
type RuleSet struct {
	Version  string
	LoadedAt time.Time
	Naming   []signals.NamingRule
	PII      pii.Rules
	// Skipped lists rules dropped during compilation.
	Skipped []string
}

// Default returns the built-in rule set.
func Default() *RuleSet {
	return &RuleSet{
		Version: "builtin",
		Naming:  signals.DefaultNamingRules(),
		PII:     pii.DefaultRules(),
	}
}

// Compile turns a document into a snapshot. Malformed patterns and
// out-of-range confidences are skipped with a warning; the rest still apply.
func Compile(doc *RuleDocument, logger *zap.Logger) *RuleSet {
	rs := Default()
	if doc == nil {
		return rs
	}
	if doc.Version != "" {
		rs.Version = doc.Version
	}
	c := &compiler{logger: logger.Named("rules"), rs: rs}

	if len(doc.NamingRules) > 0 {
		var naming []signals.NamingRule
		for i, r := range doc.NamingRules {
			re, ok := c.compile("naming_rules", i, r.Pattern)
			if !ok {
				continue
			}
			if re.NumSubexp() < 1 {
				c.skip("naming_rules", i, r.Pattern, "pattern needs a capture group for the table name")
				continue
			}
			if r.Confidence <= 0 || r.Confidence > 1 {
				c.skip("naming_rules", i, r.Pattern, "confidence must be within (0,1]")
				continue
			}
			naming = append(naming, signals.NamingRule{Pattern: re, Confidence: r.Confidence})
		}
		if len(naming) > 0 {
			rs.Naming = naming
		}
	}

	for i, r := range doc.PIIRules {
		if r.Disabled {
			continue
		}
		if r.Name == "" || r.Category == "" {
			c.skip("pii_rules", i, r.Pattern, "name and category are required")
			continue
		}
		re, ok := c.compile("pii_rules", i, r.Pattern)
		if !ok {
			continue
		}
		rs.PII.Custom = append(rs.PII.Custom,
			pii.NewRegexMatcher(r.Name, strings.ToUpper(r.Category), re, r.Bands))
	}

	if ps := c.compileAll("metadata.column_patterns", doc.Metadata.ColumnPatterns); len(ps) > 0 {
		rs.PII.Metadata.ColumnPatterns = ps
	}
	if ps := c.compileAll("metadata.table_patterns", doc.Metadata.TablePatterns); len(ps) > 0 {
		rs.PII.Metadata.TablePatterns = ps
	}
	if len(doc.Metadata.Keywords) > 0 {
		keywords := make([]string, 0, len(doc.Metadata.Keywords))
		for _, k := range doc.Metadata.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		rs.PII.Metadata.Keywords = keywords
	}
	if ps := c.compileAll("credential_patterns", doc.CredentialPatterns); len(ps) > 0 {
		rs.PII.CredentialPatterns = ps
	}

	return rs
}

type compiler struct {
	logger *zap.Logger
	rs     *RuleSet
}

func (c *compiler) compile(section string, index int, pattern string) (*regexp.Regexp, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		c.skip(section, index, pattern, err.Error())
		return nil, false
	}
	return re, true
}

func (c *compiler) compileAll(section string, patterns []string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for i, p := range patterns {
		if re, ok := c.compile(section, i, p); ok {
			out = append(out, re)
		}
	}
	return out
}

func (c *compiler) skip(section string, index int, pattern, reason string) {
	c.logger.Warn("Skipping invalid rule",
		zap.String("section", section),
		zap.Int("index", index),
		zap.String("pattern", pattern),
		zap.String("reason", reason))
	c.rs.Skipped = append(c.rs.Skipped, section+": "+pattern)
}
