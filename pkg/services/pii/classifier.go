// Package pii classifies columns as holding personal data from their
// sampled content.
package pii

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
)

const (
	// DefaultThreshold is the match rate a pattern needs to qualify.
	DefaultThreshold            = 0.7
	DefaultMetadataKeywordRate  = 0.5
	DefaultIdentifierRate       = 0.7
	DefaultNameDominanceRate    = 0.5
	DefaultNoMatchConfidence    = 80
	DefaultCredentialConfidence = 75

	DefaultTimestampRate        = 0.8

	metadataKeywordConfidence    = 90
	metadataIdentifierConfidence = 85
)

// Evidence labels for metadata overrides.
const (
	evidenceMetadataKeyword = "METADATA_KEYWORD"
	evidenceBareIdentifier  = "BARE_IDENTIFIER"
	evidenceCredentialName  = "CREDENTIAL_NAME"
	evidenceUnixTimestamp   = "UNIX_TIMESTAMP"
)

var (
	bareIdentifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)+$`)
)

// Options tunes the classifier.
type Options struct {
	Threshold            float64
	MetadataKeywordRate  float64
	IdentifierRate       float64
	NameDominanceRate    float64
	NoMatchConfidence    float64
	CredentialConfidence float64
	// TimestampRate is the share of epoch-shaped samples that marks an
	// integer or untyped column as unix timestamps.
	TimestampRate float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:            DefaultThreshold,
		MetadataKeywordRate:  DefaultMetadataKeywordRate,
		IdentifierRate:       DefaultIdentifierRate,
		NameDominanceRate:    DefaultNameDominanceRate,
		NoMatchConfidence:    DefaultNoMatchConfidence,
		CredentialConfidence: DefaultCredentialConfidence,
		TimestampRate:        DefaultTimestampRate,
	}
}

// Input describes the column being classified.
type Input struct {
	Database     string
	Schema       string
	Table        string
	ColumnName   string
	DataType     string
	SampleValues []string
}

// Classifier is safe for concurrent use.
type Classifier struct {
	opts     Options
	builtins []Matcher
	logger   *zap.Logger
}

// NewClassifier creates a classifier. now may be nil (time.Now).
func NewClassifier(opts Options, now func() time.Time, logger *zap.Logger) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		opts:     opts,
		builtins: BuiltinMatchers(now),
		logger:   logger.Named("pii-classifier"),
	}
}

type matchResult struct {
	matcher    Matcher
	matches    int
	rate       float64
	confidence float64
}

// Classify runs the two-stage decision for one column: the metadata-context
// override, then the built-in matchers and the custom rules as separate
// iterations merged by column name. A credential-looking column name is the
// fallback when no content pattern qualifies.
func (c *Classifier) Classify(in Input, rules Rules) models.ContentClassification {
	samples := cleanSamples(in.SampleValues)

	if res, ok := c.metadataOverride(in, rules, samples); ok {
		return res
	}

	if len(samples) == 0 {
		if rules.IsCredentialName(in.ColumnName) {
			return c.credential(in.ColumnName, 0)
		}
		return models.ContentClassification{
			ColumnName:       in.ColumnName,
			EvidencePatterns: []string{},
			Reason:           "No sample values available",
		}
	}

	if res, ok := c.timestampColumn(in, samples); ok {
		return res
	}

	iterations := [][]models.ContentClassification{
		{c.runMatchers(in, rules, samples, c.builtins)},
	}
	if len(rules.Custom) > 0 {
		iterations = append(iterations, []models.ContentClassification{c.runMatchers(in, rules, samples, rules.Custom)})
	}
	result := fusion.MergeClassifications(iterations...)[0]
	result.ColumnName = in.ColumnName

	if !result.IsSensitive && rules.IsCredentialName(in.ColumnName) {
		return c.credential(in.ColumnName, len(samples))
	}

	if result.IsSensitive {
		c.logger.Debug("Sensitive column detected",
			zap.String("table", in.Table),
			zap.String("column", in.ColumnName),
			zap.String("category", result.CategoryName()),
			zap.Float64("confidence", result.Confidence),
			zap.Strings("samples", logging.RedactSamples(samples, 3)))
	}
	return result
}

// metadataOverride classifies a metadata column as not sensitive when its
// samples are dominated by metadata keywords or bare identifiers.
func (c *Classifier) metadataOverride(in Input, rules Rules, samples []string) (models.ContentClassification, bool) {
	if len(samples) == 0 || !rules.Metadata.IsMetadataContext(in.Table, in.ColumnName) {
		return models.ContentClassification{}, false
	}

	keywords, identifiers := 0, 0
	for _, s := range samples {
		if rules.Metadata.ContainsKeyword(s) {
			keywords++
		}
		if bareIdentifierPattern.MatchString(s) {
			identifiers++
		}
	}
	total := len(samples)

	if rate(keywords, total) >= c.opts.MetadataKeywordRate {
		return models.ContentClassification{
			ColumnName:       in.ColumnName,
			Confidence:       metadataKeywordConfidence,
			SampleMatches:    keywords,
			TotalSamples:     total,
			EvidencePatterns: []string{evidenceMetadataKeyword},
			Reason:           fmt.Sprintf("Metadata context: %d/%d samples contain metadata keywords", keywords, total),
		}, true
	}
	if rate(identifiers, total) >= c.opts.IdentifierRate {
		return models.ContentClassification{
			ColumnName:       in.ColumnName,
			Confidence:       metadataIdentifierConfidence,
			SampleMatches:    identifiers,
			TotalSamples:     total,
			EvidencePatterns: []string{evidenceBareIdentifier},
			Reason: fmt.Sprintf("Metadata context: %d/%d samples are bare identifiers (object names), %d/%d contain metadata keywords",
				identifiers, total, keywords, total),
		}, true
	}
	return models.ContentClassification{}, false
}

// timestampColumn recognises integer or untyped columns whose samples are
// epoch seconds, milliseconds, microseconds or nanoseconds. Such values
// look like phone or card numbers but are not personal data.
func (c *Classifier) timestampColumn(in Input, samples []string) (models.ContentClassification, bool) {
	if strings.TrimSpace(in.DataType) != "" && !isIntegerType(in.DataType) {
		return models.ContentClassification{}, false
	}
	n := 0
	for _, s := range samples {
		if isUnixTimestamp(s) {
			n++
		}
	}
	total := len(samples)
	if n == 0 || rate(n, total) < c.opts.TimestampRate {
		return models.ContentClassification{}, false
	}
	return models.ContentClassification{
		ColumnName:       in.ColumnName,
		Confidence:       c.opts.NoMatchConfidence,
		SampleMatches:    n,
		TotalSamples:     total,
		EvidencePatterns: []string{fmt.Sprintf("%s (%d/%d)", evidenceUnixTimestamp, n, total)},
		Reason:           fmt.Sprintf("%d/%d samples are unix timestamps", n, total),
	}, true
}

func (c *Classifier) runMatchers(in Input, rules Rules, samples []string, matchers []Matcher) models.ContentClassification {
	total := len(samples)
	var results []matchResult
	evidence := []string{}
	integerColumn := isIntegerType(in.DataType)

	for _, m := range matchers {
		if m.NameHint != nil && !m.NameHint.MatchString(in.ColumnName) {
			continue
		}
		if m.Formatted && integerColumn {
			continue
		}
		n := 0
		for _, s := range samples {
			if m.Matches(s, in.ColumnName) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		r := rate(n, total)
		evidence = append(evidence, fmt.Sprintf("%s (%d/%d)", m.Category, n, total))
		results = append(results, matchResult{matcher: m, matches: n, rate: r, confidence: m.Bands.Confidence(r)})
	}

	var best *matchResult
	for i := range results {
		r := &results[i]
		if r.rate < c.opts.Threshold {
			continue
		}
		if r.matcher.Category == models.CategoryPersonName && c.metadataDominates(rules, samples, r.rate) {
			evidence = append(evidence, "PERSON_NAME suppressed: metadata-style values")
			continue
		}
		if best == nil || r.confidence > best.confidence {
			best = r
		}
	}

	if best == nil {
		return models.ContentClassification{
			ColumnName:       in.ColumnName,
			Confidence:       c.opts.NoMatchConfidence,
			TotalSamples:     total,
			EvidencePatterns: evidence,
			Reason:           fmt.Sprintf("No sensitive pattern matched in %d samples", total),
		}
	}

	category := best.matcher.Category
	return models.ContentClassification{
		ColumnName:       in.ColumnName,
		IsSensitive:      true,
		Category:         &category,
		Confidence:       best.confidence,
		SampleMatches:    best.matches,
		TotalSamples:     total,
		EvidencePatterns: evidence,
		Reason:           fmt.Sprintf("%d/%d samples match the %s pattern", best.matches, total, best.matcher.Name),
	}
}

// metadataDominates reports whether identifier-style or keyword-bearing
// values outweigh an apparent person-name match.
func (c *Classifier) metadataDominates(rules Rules, samples []string, nameRate float64) bool {
	if nameRate <= c.opts.NameDominanceRate {
		return false
	}
	meta := 0
	for _, s := range samples {
		if snakeCasePattern.MatchString(s) || bareIdentifierPattern.MatchString(s) || rules.Metadata.ContainsKeyword(s) {
			meta++
		}
	}
	return rate(meta, len(samples)) > c.opts.NameDominanceRate
}

func (c *Classifier) credential(column string, total int) models.ContentClassification {
	category := models.CategoryCredential
	return models.ContentClassification{
		ColumnName:       column,
		IsSensitive:      true,
		Category:         &category,
		Confidence:       c.opts.CredentialConfidence,
		TotalSamples:     total,
		EvidencePatterns: []string{evidenceCredentialName},
		Reason:           fmt.Sprintf("Column name %q looks like a stored secret", column),
	}
}

func cleanSamples(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
