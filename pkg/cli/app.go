package cli

import (
	"cmp"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/report"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/rules"
)

// SnapshotDatasourceID names a catalog loaded with --snapshot.
const SnapshotDatasourceID = "snapshot"

// App holds the wired services shared by all commands.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Catalog *datasource.Catalog
	Rules   *rules.Cache
	Options services.InferenceOptions
	Loader  services.MetadataLoader

	Suggestions    services.RelationshipSuggestionService
	Classification services.ColumnClassificationService
	Lineage        services.LineageService

	// DefaultDatasourceID is used when a command names no datasource.
	DefaultDatasourceID string
}

// NewApp wires services from cfg. A datasource is registered only when
// the configuration names a host or a snapshot, so lineage parsing works
// without any database.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	catalog := datasource.NewCatalog(logger)

	var defaultID string
	ds := cfg.Datasource
	if ds.SnapshotPath != "" || ds.Database != "" || ds.User != "" {
		ds.ID = cmp.Or(ds.ID, ds.Database, ds.Type)
		if err := catalog.Configure(ds); err != nil {
			return nil, fmt.Errorf("configure datasource %q: %w", ds.ID, err)
		}
		defaultID = ds.ID
		logger.Info("Datasource configured",
			zap.String("id", ds.ID),
			zap.String("type", ds.Type),
			zap.String("connection", logging.SanitizeConnectionString(ds.ConnectionString())))
	}

	var store rules.Store = rules.StaticStore{}
	if cfg.Rules.Path != "" {
		store = rules.FileStore{Path: cfg.Rules.Path}
	}
	ruleCache := rules.NewCache(store, cfg.Rules.TTL, logger)

	opts := services.OptionsFromConfig(cfg.Inference)
	loader := services.NewMetadataLoader(opts.Metadata, logger)

	return &App{
		Config:              cfg,
		Logger:              logger,
		Catalog:             catalog,
		Rules:               ruleCache,
		Options:             opts,
		Loader:              loader,
		Suggestions:         services.NewRelationshipSuggestionService(catalog, loader, ruleCache, opts, logger),
		Classification:      services.NewColumnClassificationService(catalog, ruleCache, opts, logger),
		Lineage:             services.NewLineageService(logger),
		DefaultDatasourceID: defaultID,
	}, nil
}

// UseSnapshot loads a YAML catalog and makes it the default datasource.
func (a *App) UseSnapshot(path string) error {
	p, err := datasource.LoadSnapshot(path, a.Logger)
	if err != nil {
		return err
	}
	a.Catalog.Add(SnapshotDatasourceID, p)
	a.DefaultDatasourceID = SnapshotDatasourceID
	return nil
}

// Datasource resolves id, falling back to the default datasource.
func (a *App) Datasource(id string) (string, error) {
	id = cmp.Or(id, a.DefaultDatasourceID)
	if id == "" {
		return "", fmt.Errorf("no datasource configured; set datasource.* in the config file or pass --snapshot")
	}
	return id, nil
}

// Close releases open datasource connections.
func (a *App) Close() {
	if err := a.Catalog.Close(); err != nil {
		a.Logger.Warn("Failed to close datasources", zap.String("error", logging.SanitizeError(err)))
	}
	_ = a.Logger.Sync()
}

type (
	appKey      struct{}
	rendererKey struct{}
)

func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

func appFrom(ctx context.Context) *App {
	app, _ := ctx.Value(appKey{}).(*App)
	return app
}

func withRenderer(ctx context.Context, r *report.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

func rendererFrom(ctx context.Context) *report.Renderer {
	r, _ := ctx.Value(rendererKey{}).(*report.Renderer)
	return r
}
