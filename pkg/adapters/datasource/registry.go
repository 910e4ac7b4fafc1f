package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

// ProviderInfo describes a registered provider type.
type ProviderInfo struct {
	Type        string `json:"type"`         // "postgres", "mssql", "mysql", "snapshot"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`
}

// Factory opens a provider from datasource configuration.
type Factory func(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (MetadataProvider, error)

// ProviderRegistration pairs provider info with its factory.
type ProviderRegistration struct {
	Info    ProviderInfo
	Factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderRegistration)
)

// Register is called by each provider's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg ProviderRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredProviders returns info for all registered providers, sorted by type.
func RegisteredProviders() []ProviderInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ProviderInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if a provider type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

// NewProvider opens a provider of the given type. Types that were not
// compiled in fail with apperrors.ErrUnsupportedDatasource.
func NewProvider(ctx context.Context, dsType string, cfg *config.DatasourceConfig, logger *zap.Logger) (MetadataProvider, error) {
	registryMu.RLock()
	reg, ok := registry[dsType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDatasource, dsType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Factory(ctx, cfg, logger)
}
