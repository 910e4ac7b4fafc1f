package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
)

// Catalog resolves datasource IDs to open providers. Providers are opened
// on first use and reused until Close.
type Catalog struct {
	mu        sync.Mutex
	configs   map[string]config.DatasourceConfig
	providers map[string]MetadataProvider
	logger    *zap.Logger
}

func NewCatalog(logger *zap.Logger) *Catalog {
	return &Catalog{
		configs:   make(map[string]config.DatasourceConfig),
		providers: make(map[string]MetadataProvider),
		logger:    logger.Named("datasource-catalog"),
	}
}

// Configure registers a datasource under cfg.ID, replacing any provider
// already opened for it.
func (c *Catalog) Configure(cfg config.DatasourceConfig) error {
	if cfg.ID == "" {
		return apperrors.NewValidationError("datasource.id", "is required")
	}
	if !IsRegistered(cfg.Type) {
		return fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDatasource, cfg.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.providers[cfg.ID]; ok {
		c.closeProvider(cfg.ID, old)
		delete(c.providers, cfg.ID)
	}
	c.configs[cfg.ID] = cfg
	return nil
}

// Add registers an already open provider under id.
func (c *Catalog) Add(id string, p MetadataProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.providers[id]; ok && old != p {
		c.closeProvider(id, old)
	}
	c.providers[id] = p
}

// Get returns the provider for id, opening it if needed. Unknown IDs fail
// with apperrors.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (MetadataProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.providers[id]; ok {
		return p, nil
	}
	cfg, ok := c.configs[id]
	if !ok {
		return nil, fmt.Errorf("datasource %q: %w", id, apperrors.ErrNotFound)
	}

	p, err := NewProvider(ctx, cfg.Type, &cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("open datasource %q: %w", id, err)
	}
	c.providers[id] = p
	c.logger.Info("Opened datasource",
		zap.String("datasource_id", id),
		zap.String("type", cfg.Type))
	return p, nil
}

// IDs returns the configured and added datasource IDs, sorted.
func (c *Catalog) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for id := range c.configs {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range c.providers {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close releases every open provider.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for id, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close datasource %q: %w", id, err))
		}
		delete(c.providers, id)
	}
	return errors.Join(errs...)
}

// closeProvider closes p and logs failures. Caller must hold c.mu.
func (c *Catalog) closeProvider(id string, p MetadataProvider) {
	if err := p.Close(); err != nil {
		c.logger.Warn("Failed to close datasource",
			zap.String("datasource_id", id),
			zap.Error(err))
	}
}
