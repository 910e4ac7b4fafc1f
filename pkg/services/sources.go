package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/rules"
)

// ProviderSource resolves a datasource ID to its provider.
// *datasource.Catalog implements it.
type ProviderSource interface {
	Get(ctx context.Context, id string) (datasource.MetadataProvider, error)
}

// RuleSource serves rule snapshots. *rules.Cache implements it.
type RuleSource interface {
	Get(ctx context.Context) (*rules.RuleSet, error)
}

var (
	_ ProviderSource = (*datasource.Catalog)(nil)
	_ RuleSource     = (*rules.Cache)(nil)
)

// currentRules reads the snapshot a scan runs on. A failing source falls
// back to the built-in rules.
func currentRules(ctx context.Context, src RuleSource, logger *zap.Logger) *rules.RuleSet {
	if src == nil {
		return rules.Default()
	}
	rs, err := src.Get(ctx)
	if err != nil {
		logger.Warn("Rule store unavailable, using built-in rules", zap.Error(err))
	}
	if rs == nil {
		rs = rules.Default()
	}
	return rs
}
