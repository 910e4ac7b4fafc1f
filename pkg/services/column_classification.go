package services

import (
	"cmp"
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/pii"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/rules"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/workpool"
)

// ClassifyContext describes one column to classify. When SampleValues is
// empty and DataSourceID names a configured datasource, samples are fetched
// from it.
type ClassifyContext struct {
	DataSourceID string   `json:"data_source_id,omitempty"`
	Database     string   `json:"database,omitempty"`
	Schema       string   `json:"schema,omitempty"`
	Table        string   `json:"table"`
	ColumnName   string   `json:"column_name"`
	DataType     string   `json:"data_type,omitempty"`
	SampleValues []string `json:"sample_values,omitempty"`
}

// ColumnClassificationService classifies columns as sensitive personal data.
type ColumnClassificationService interface {
	ClassifyColumn(ctx context.Context, cc ClassifyContext) (*models.ContentClassification, error)

	// ClassifyTable classifies every column of table, in column order.
	// dataSourceID may be empty; it is only used for columns without samples.
	ClassifyTable(ctx context.Context, dataSourceID string, table models.TableDescriptor) ([]models.ContentClassification, error)
}

type columnClassificationService struct {
	providers  ProviderSource
	rules      RuleSource
	classifier *pii.Classifier
	loaderOpts MetadataLoaderOptions
	pool       *workpool.Pool
	logger     *zap.Logger
}

// NewColumnClassificationService creates a ColumnClassificationService.
// providers may be nil, in which case only given samples are classified.
func NewColumnClassificationService(
	providers ProviderSource,
	ruleSource RuleSource,
	opts InferenceOptions,
	logger *zap.Logger,
) ColumnClassificationService {
	loaderOpts := opts.Metadata
	def := DefaultMetadataLoaderOptions()
	loaderOpts.QueryTimeout = cmp.Or(loaderOpts.QueryTimeout, def.QueryTimeout)
	loaderOpts.SampleLimit = cmp.Or(loaderOpts.SampleLimit, def.SampleLimit)
	if loaderOpts.Retry == nil {
		loaderOpts.Retry = def.Retry
	}

	return &columnClassificationService{
		providers:  providers,
		rules:      ruleSource,
		classifier: pii.NewClassifier(opts.PII, nil, logger),
		loaderOpts: loaderOpts,
		pool:       workpool.New(opts.Workers, logger),
		logger:     logger.Named("column-classification"),
	}
}

func (s *columnClassificationService) ClassifyColumn(ctx context.Context, cc ClassifyContext) (*models.ContentClassification, error) {
	if strings.TrimSpace(cc.ColumnName) == "" {
		return nil, apperrors.NewValidationError("column_name", "is required")
	}
	rs := currentRules(ctx, s.rules, s.logger)
	res := s.classify(ctx, cc, rs)
	return &res, nil
}

func (s *columnClassificationService) ClassifyTable(ctx context.Context, dataSourceID string, table models.TableDescriptor) ([]models.ContentClassification, error) {
	if strings.TrimSpace(table.QualifiedName) == "" {
		return nil, apperrors.NewValidationError("table", "qualified name is required")
	}
	database, schema, name := splitQualifiedName(table.QualifiedName)
	rs := currentRules(ctx, s.rules, s.logger)

	items := make([]workpool.Item[models.ContentClassification], len(table.Columns))
	for i, col := range table.Columns {
		cc := ClassifyContext{
			DataSourceID: dataSourceID,
			Database:     database,
			Schema:       schema,
			Table:        name,
			ColumnName:   col.Name,
			DataType:     col.DeclaredType,
			SampleValues: col.SampleValues,
		}
		items[i] = workpool.Item[models.ContentClassification]{
			ID: col.Name,
			Execute: func(ctx context.Context) (models.ContentClassification, error) {
				return s.classify(ctx, cc, rs), nil
			},
		}
	}

	results := workpool.Process(ctx, s.pool, items, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.ContentClassification, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("Column classification failed, skipped",
				zap.String("table", table.QualifiedName),
				zap.String("column", r.ID),
				zap.Error(r.Err))
			continue
		}
		out = append(out, r.Value)
	}

	sensitive := 0
	for _, c := range out {
		if c.IsSensitive {
			sensitive++
		}
	}
	s.logger.Info("Classified table",
		zap.String("table", table.QualifiedName),
		zap.Int("columns", len(out)),
		zap.Int("sensitive", sensitive),
		zap.String("rules_version", rs.Version))

	// Repeated column names collapse to their strongest verdict.
	return fusion.MergeClassifications(out), nil
}

func (s *columnClassificationService) classify(ctx context.Context, cc ClassifyContext, rs *rules.RuleSet) models.ContentClassification {
	samples := cc.SampleValues
	if len(samples) == 0 {
		samples = s.fetchSamples(ctx, cc)
	}

	res := s.classifier.Classify(pii.Input{
		Database:     cc.Database,
		Schema:       cc.Schema,
		Table:        cc.Table,
		ColumnName:   cc.ColumnName,
		DataType:     cc.DataType,
		SampleValues: samples,
	}, rs.PII)

	s.logger.Debug("Classified column",
		zap.String("table", models.QualifyName(cc.Database, cc.Schema, cc.Table)),
		zap.String("column", cc.ColumnName),
		zap.Bool("sensitive", res.IsSensitive),
		zap.String("category", res.CategoryName()),
		zap.Float64("confidence", res.Confidence),
		zap.Int("samples", res.TotalSamples))
	return res
}

// fetchSamples returns nil when no datasource is available or the fetch
// fails; the column is then classified from its name alone.
func (s *columnClassificationService) fetchSamples(ctx context.Context, cc ClassifyContext) []string {
	if s.providers == nil || cc.DataSourceID == "" || cc.Table == "" {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	provider, err := s.providers.Get(ctx, cc.DataSourceID)
	if err != nil {
		s.logger.Warn("Datasource unavailable for sampling",
			zap.String("datasource_id", cc.DataSourceID),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	schema := cmp.Or(cc.Schema, cc.Database)
	values, err := callWithRetry(ctx, s.loaderOpts, func(callCtx context.Context) ([]string, error) {
		return provider.GetSampleValues(callCtx, schema, cc.Table, cc.ColumnName, s.loaderOpts.SampleLimit)
	})
	if err != nil {
		s.logger.Warn("Sample fetch failed, classifying without samples",
			zap.String("table", models.QualifyName(cc.Database, cc.Schema, cc.Table)),
			zap.String("column", cc.ColumnName),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	return values
}

// splitQualifiedName splits database.schema.table; missing leading parts
// are empty. Two parts are read as schema.table.
func splitQualifiedName(qualified string) (database, schema, table string) {
	parts := strings.Split(qualified, ".")
	switch len(parts) {
	case 1:
		return "", "", parts[0]
	case 2:
		return "", parts[0], parts[1]
	default:
		n := len(parts)
		return strings.Join(parts[:n-2], "."), parts[n-2], parts[n-1]
	}
}
