package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/rules"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/signals"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/workpool"
)

// SuggestionRequest parameterizes one relationship scan.
type SuggestionRequest struct {
	DataSourceID string       `json:"data_source_id"`
	ScopeFilters ScopeFilters `json:"scope_filters"`
	// MinConfidence defaults to the configured minimum when nil.
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	// MaxSuggestions defaults to the configured cap when zero.
	MaxSuggestions        int  `json:"max_suggestions,omitempty"`
	IncludeSampleAnalysis bool `json:"include_sample_analysis"`
}

// SuggestionResult is the ranked output of one scan. Reason is set whenever
// Suggestions is empty, so callers can tell "nothing found" from a failure.
type SuggestionResult struct {
	ScanID              uuid.UUID                `json:"scan_id"`
	DataSourceID        string                   `json:"data_source_id,omitempty"`
	RulesVersion        string                   `json:"rules_version"`
	Suggestions         []models.FusedSuggestion `json:"suggestions"`
	TablesScanned       int                      `json:"tables_scanned"`
	CandidatesGenerated int                      `json:"candidates_generated"`
	FusedCount          int                      `json:"fused_count"`
	FailedUnits         int                      `json:"failed_units"`
	MetadataFailures    int                      `json:"metadata_failures"`
	MinConfidence       float64                  `json:"min_confidence"`
	MaxSuggestions      int                      `json:"max_suggestions"`
	Reason              string                   `json:"reason,omitempty"`
}

// RelationshipSuggestionService infers undeclared relationships between tables.
type RelationshipSuggestionService interface {
	// GenerateSuggestions loads the catalog of a datasource and scans it.
	// Invalid parameters are rejected before any work starts.
	GenerateSuggestions(ctx context.Context, req SuggestionRequest) (*SuggestionResult, error)

	// SuggestFromTables scans caller-provided descriptors. DataSourceID and
	// ScopeFilters of req are ignored.
	SuggestFromTables(ctx context.Context, tables []models.TableDescriptor, req SuggestionRequest) (*SuggestionResult, error)
}

type relationshipSuggestionService struct {
	providers ProviderSource
	loader    MetadataLoader
	rules     RuleSource
	opts      InferenceOptions
	pool      *workpool.Pool
	logger    *zap.Logger
}

// NewRelationshipSuggestionService creates a RelationshipSuggestionService.
// providers and loader may be nil when only SuggestFromTables is used.
func NewRelationshipSuggestionService(
	providers ProviderSource,
	loader MetadataLoader,
	ruleSource RuleSource,
	opts InferenceOptions,
	logger *zap.Logger,
) RelationshipSuggestionService {
	return &relationshipSuggestionService{
		providers: providers,
		loader:    loader,
		rules:     ruleSource,
		opts:      opts,
		pool:      workpool.New(opts.Workers, logger),
		logger:    logger.Named("relationship-suggestions"),
	}
}

func (s *relationshipSuggestionService) GenerateSuggestions(ctx context.Context, req SuggestionRequest) (*SuggestionResult, error) {
	minConf, maxN, err := s.limits(req)
	if err != nil {
		return nil, err
	}
	if err := req.ScopeFilters.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.DataSourceID) == "" {
		return nil, apperrors.NewValidationError("data_source_id", "is required")
	}
	if s.providers == nil || s.loader == nil {
		return nil, fmt.Errorf("%w: no datasources configured", apperrors.ErrNotFound)
	}

	provider, err := s.providers.Get(ctx, req.DataSourceID)
	if err != nil {
		return nil, fmt.Errorf("resolve datasource %q: %w", req.DataSourceID, err)
	}

	scanID := uuid.New()
	rs := currentRules(ctx, s.rules, s.logger)

	loaded, err := s.loader.Load(ctx, provider, req.ScopeFilters, req.IncludeSampleAnalysis)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, apperrors.ErrInvalidRequest) {
			return nil, err
		}
		s.logger.Warn("Metadata unavailable, returning empty scan",
			zap.String("scan_id", scanID.String()),
			zap.String("datasource_id", req.DataSourceID),
			zap.String("error", logging.SanitizeError(err)))
		return &SuggestionResult{
			ScanID:         scanID,
			DataSourceID:   req.DataSourceID,
			RulesVersion:   rs.Version,
			Suggestions:    []models.FusedSuggestion{},
			MinConfidence:  minConf,
			MaxSuggestions: maxN,
			Reason:         "metadata unavailable: " + logging.SanitizeError(err),
		}, nil
	}

	res, err := s.scan(ctx, scanID, loaded.Tables, rs, minConf, maxN, req.IncludeSampleAnalysis)
	if err != nil {
		return nil, err
	}
	res.DataSourceID = req.DataSourceID
	res.MetadataFailures = loaded.FailedCalls
	return res, nil
}

func (s *relationshipSuggestionService) SuggestFromTables(ctx context.Context, tables []models.TableDescriptor, req SuggestionRequest) (*SuggestionResult, error) {
	minConf, maxN, err := s.limits(req)
	if err != nil {
		return nil, err
	}
	if err := validateTables(tables); err != nil {
		return nil, err
	}
	rs := currentRules(ctx, s.rules, s.logger)
	return s.scan(ctx, uuid.New(), tables, rs, minConf, maxN, req.IncludeSampleAnalysis)
}

// limits resolves the threshold and cap of a request. Out-of-range values
// are rejected rather than clamped.
func (s *relationshipSuggestionService) limits(req SuggestionRequest) (float64, int, error) {
	minConf := s.opts.MinConfidence
	if req.MinConfidence != nil {
		v := *req.MinConfidence
		if math.IsNaN(v) || v < 0 || v > 1 {
			return 0, 0, apperrors.NewValidationError("min_confidence", "must be within [0, 1], got %v", v)
		}
		minConf = v
	}

	maxN := s.opts.MaxSuggestions
	if req.MaxSuggestions != 0 {
		if req.MaxSuggestions < 1 || req.MaxSuggestions > fusion.MaxSuggestionsCap {
			return 0, 0, apperrors.NewValidationError("max_suggestions",
				"must be within [1, %d], got %d", fusion.MaxSuggestionsCap, req.MaxSuggestions)
		}
		maxN = req.MaxSuggestions
	}
	if maxN <= 0 {
		maxN = fusion.DefaultMaxSuggestions
	}
	return minConf, maxN, nil
}

func validateTables(tables []models.TableDescriptor) error {
	seen := make(map[string]bool, len(tables))
	for i, t := range tables {
		if strings.TrimSpace(t.QualifiedName) == "" {
			return apperrors.NewValidationError("tables", "table %d has no qualified name", i)
		}
		if seen[t.QualifiedName] {
			return apperrors.NewValidationError("tables", "duplicate qualified name %q", t.QualifiedName)
		}
		seen[t.QualifiedName] = true
	}
	return nil
}

// scan fans one work item per (table, generator) out to the pool and fuses
// the results once every item has finished.
func (s *relationshipSuggestionService) scan(
	ctx context.Context,
	scanID uuid.UUID,
	tables []models.TableDescriptor,
	rs *rules.RuleSet,
	minConf float64,
	maxN int,
	includeSamples bool,
) (*SuggestionResult, error) {
	start := time.Now()
	res := &SuggestionResult{
		ScanID:         scanID,
		RulesVersion:   rs.Version,
		Suggestions:    []models.FusedSuggestion{},
		TablesScanned:  len(tables),
		MinConfidence:  minConf,
		MaxSuggestions: maxN,
	}

	switch len(tables) {
	case 0:
		res.Reason = "no tables in scope; nothing to relate"
		return res, nil
	case 1:
		res.Reason = fmt.Sprintf("only one table in scope (%s); nothing to relate", tables[0].QualifiedName)
		return res, nil
	}

	gens := signals.Build(s.opts.Signals, rs.Naming, includeSamples)
	items := make([]workpool.Item[[]models.Candidate], 0, len(tables)*len(gens))
	for i := range tables {
		source := &tables[i]
		for _, gen := range gens {
			items = append(items, workpool.Item[[]models.Candidate]{
				ID: source.QualifiedName + "/" + string(gen.Signal()),
				Execute: func(context.Context) ([]models.Candidate, error) {
					return gen.Generate(source, tables), nil
				},
			})
		}
	}

	results := workpool.Process(ctx, s.pool, items, nil)
	// Fusion bonuses depend on the full candidate set.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, r := range results {
		if r.Err != nil {
			res.FailedUnits++
			s.logger.Warn("Signal unit failed, skipped",
				zap.String("scan_id", scanID.String()),
				zap.String("unit", r.ID),
				zap.Error(r.Err))
			continue
		}
		candidates = append(candidates, r.Value...)
	}
	res.CandidatesGenerated = len(candidates)

	fused := fusion.Fuse(candidates, s.opts.Fusion)
	res.FusedCount = len(fused)
	res.Suggestions = fusion.Rank(fused, minConf, maxN)

	if len(res.Suggestions) == 0 {
		if len(fused) == 0 {
			res.Reason = fmt.Sprintf("no relationship signals found across %d tables", len(tables))
		} else {
			res.Reason = fmt.Sprintf("%d candidate relationships found, none reached the minimum confidence of %.2f",
				len(fused), minConf)
		}
	}

	s.logger.Info("Relationship scan complete",
		zap.String("scan_id", scanID.String()),
		zap.String("rules_version", rs.Version),
		zap.Int("tables", len(tables)),
		zap.Int("units", len(items)),
		zap.Int("failed_units", res.FailedUnits),
		zap.Int("candidates", res.CandidatesGenerated),
		zap.Int("fused", res.FusedCount),
		zap.Int("suggestions", len(res.Suggestions)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}
