package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-discovery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	"github.com/ekaya-inc/ekaya-discovery/pkg/retry"
)

// ScopeFilters narrows a scan to part of a datasource. Empty fields match
// everything.
type ScopeFilters struct {
	Database string   `json:"database,omitempty"`
	Schemas  []string `json:"schemas,omitempty"`
	// Tables and ExcludeTables hold path.Match patterns, matched
	// case-insensitively against the table name and the qualified name.
	Tables        []string `json:"tables,omitempty"`
	ExcludeTables []string `json:"exclude_tables,omitempty"`
}

// Validate rejects malformed glob patterns.
func (f ScopeFilters) Validate() error {
	for field, patterns := range map[string][]string{
		"scope_filters.tables":         f.Tables,
		"scope_filters.exclude_tables": f.ExcludeTables,
	} {
		for _, p := range patterns {
			if _, err := path.Match(p, ""); err != nil {
				return apperrors.NewValidationError(field, "invalid pattern %q", p)
			}
		}
	}
	return nil
}

// Includes reports whether a listed table is in scope. MySQL has no schema
// level, so the database stands in for it.
func (f ScopeFilters) Includes(ref datasource.TableRef) bool {
	if len(f.Schemas) > 0 {
		schema := cmp.Or(ref.Schema, ref.Database)
		found := false
		for _, s := range f.Schemas {
			if strings.EqualFold(s, schema) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tables) > 0 && !matchesTable(f.Tables, ref) {
		return false
	}
	return !matchesTable(f.ExcludeTables, ref)
}

func matchesTable(patterns []string, ref datasource.TableRef) bool {
	name := strings.ToLower(ref.Name)
	qualified := strings.ToLower(ref.QualifiedName())
	for _, p := range patterns {
		p = strings.ToLower(p)
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, qualified); ok {
			return true
		}
	}
	return false
}

// MetadataLoaderOptions bounds the database round-trips of one load.
type MetadataLoaderOptions struct {
	// Concurrency is the number of tables loaded at once.
	Concurrency  int
	QueryTimeout time.Duration
	SampleLimit  int
	Retry        *retry.Config
}

// MetadataLoadResult is the snapshot a scan runs on.
type MetadataLoadResult struct {
	Tables        []models.TableDescriptor `json:"tables"`
	TablesListed  int                      `json:"tables_listed"`
	TablesSkipped int                      `json:"tables_skipped"`
	FailedCalls   int                      `json:"failed_calls"`
}

// MetadataLoader turns a provider's catalog into the TableDescriptors of a scan.
type MetadataLoader interface {
	// Load lists the tables in scope and fills their columns, counts and,
	// when includeSamples is set, sample values. A failed column fetch skips
	// the table and a failed count or sample fetch leaves the value unset;
	// neither is returned as an error. Listing failures and cancellation are.
	Load(ctx context.Context, provider datasource.MetadataProvider, scope ScopeFilters, includeSamples bool) (*MetadataLoadResult, error)
}

type metadataLoader struct {
	opts   MetadataLoaderOptions
	logger *zap.Logger
}

// NewMetadataLoader creates a MetadataLoader. Zero options use the defaults.
func NewMetadataLoader(opts MetadataLoaderOptions, logger *zap.Logger) MetadataLoader {
	def := DefaultMetadataLoaderOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = def.QueryTimeout
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = def.SampleLimit
	}
	if opts.Retry == nil {
		opts.Retry = def.Retry
	}
	return &metadataLoader{
		opts:   opts,
		logger: logger.Named("metadata-loader"),
	}
}

// loadState is shared by the table loads of one Load call.
type loadState struct {
	provider       datasource.MetadataProvider
	includeSamples bool
	failed         atomic.Int64
	// noScalar is set once the provider reports it cannot run queries.
	noScalar atomic.Bool
}

func (l *metadataLoader) Load(ctx context.Context, provider datasource.MetadataProvider, scope ScopeFilters, includeSamples bool) (*MetadataLoadResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	listed, err := l.fetchTables(ctx, provider, scope.Database)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	refs := l.inScope(listed, scope)

	st := &loadState{provider: provider, includeSamples: includeSamples}
	loaded := make([]*models.TableDescriptor, len(refs))

	// Table failures are logged, not returned, so one table never cancels the others.
	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			loaded[i] = l.loadTable(ctx, st, ref)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &MetadataLoadResult{
		Tables:       make([]models.TableDescriptor, 0, len(refs)),
		TablesListed: len(refs),
	}
	for _, t := range loaded {
		if t == nil {
			res.TablesSkipped++
			continue
		}
		res.Tables = append(res.Tables, *t)
	}
	res.FailedCalls = int(st.failed.Load())

	l.logger.Info("Loaded metadata",
		zap.Int("tables_listed", res.TablesListed),
		zap.Int("tables_loaded", len(res.Tables)),
		zap.Int("tables_skipped", res.TablesSkipped),
		zap.Int("failed_calls", res.FailedCalls),
		zap.Bool("include_samples", includeSamples))
	return res, nil
}

func (l *metadataLoader) fetchTables(ctx context.Context, provider datasource.MetadataProvider, database string) ([]datasource.TableRef, error) {
	return callWithRetry(ctx, l.opts, func(callCtx context.Context) ([]datasource.TableRef, error) {
		return provider.ListTables(callCtx, database)
	})
}

// inScope filters refs and drops repeated qualified names, keeping the first.
func (l *metadataLoader) inScope(refs []datasource.TableRef, scope ScopeFilters) []datasource.TableRef {
	seen := make(map[string]bool, len(refs))
	out := make([]datasource.TableRef, 0, len(refs))
	for _, ref := range refs {
		if !scope.Includes(ref) {
			continue
		}
		key := strings.ToLower(ref.QualifiedName())
		if seen[key] {
			l.logger.Warn("Duplicate table in catalog, keeping the first",
				zap.String("table", ref.QualifiedName()))
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

func (l *metadataLoader) loadTable(ctx context.Context, st *loadState, ref datasource.TableRef) *models.TableDescriptor {
	qualified := ref.QualifiedName()

	cols, err := callWithRetry(ctx, l.opts, func(callCtx context.Context) ([]models.ColumnDescriptor, error) {
		return st.provider.GetColumns(callCtx, ref)
	})
	if err != nil {
		st.failed.Add(1)
		l.logger.Warn("Failed to load columns, table skipped",
			zap.String("table", qualified),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	if len(cols) == 0 {
		l.logger.Debug("Table has no columns, skipped", zap.String("table", qualified))
		return nil
	}

	table := &models.TableDescriptor{
		QualifiedName: qualified,
		RowCount:      ref.RowCount,
		Columns:       append([]models.ColumnDescriptor(nil), cols...),
	}
	if table.RowCount == nil {
		table.RowCount = l.count(ctx, st, ref, datasource.RowCountQuery(st.provider, ref), "row_count", "")
	}
	empty := table.RowCount != nil && *table.RowCount == 0

	for i := range table.Columns {
		if ctx.Err() != nil {
			break
		}
		col := &table.Columns[i]
		if !empty && col.DistinctCount == nil {
			col.DistinctCount = l.count(ctx, st, ref, datasource.DistinctCountQuery(st.provider, ref, col.Name), "distinct_count", col.Name)
		}
		if col.NullCount == nil {
			if !col.Nullable {
				col.NullCount = new(int64)
			} else if !empty {
				col.NullCount = l.count(ctx, st, ref, datasource.NullCountQuery(st.provider, ref, col.Name), "null_count", col.Name)
			}
		}
		if st.includeSamples && !empty && len(col.SampleValues) == 0 {
			col.SampleValues = l.samples(ctx, st, ref, col.Name)
		}
	}
	return table
}

// count runs one scalar query and returns nil when it fails.
func (l *metadataLoader) count(ctx context.Context, st *loadState, ref datasource.TableRef, query, stat, column string) *int64 {
	if st.noScalar.Load() {
		return nil
	}
	v, err := callWithRetry(ctx, l.opts, func(callCtx context.Context) (any, error) {
		return st.provider.ExecuteScalarQuery(callCtx, query, ref.Database)
	})
	if err == nil {
		var n int64
		if n, err = datasource.ToInt64(v); err == nil {
			return &n
		}
	}

	if errors.Is(err, apperrors.ErrUnsupportedQuery) {
		if st.noScalar.CompareAndSwap(false, true) {
			l.logger.Debug("Datasource cannot execute queries, missing counts stay unset")
		}
		return nil
	}
	st.failed.Add(1)
	l.logger.Warn("Scalar query failed, value left unset",
		zap.String("table", ref.QualifiedName()),
		zap.String("column", column),
		zap.String("stat", stat),
		zap.String("query", logging.SanitizeQuery(query)),
		zap.String("error", logging.SanitizeError(err)))
	return nil
}

func (l *metadataLoader) samples(ctx context.Context, st *loadState, ref datasource.TableRef, column string) []string {
	schema := cmp.Or(ref.Schema, ref.Database)
	values, err := callWithRetry(ctx, l.opts, func(callCtx context.Context) ([]string, error) {
		return st.provider.GetSampleValues(callCtx, schema, ref.Name, column, l.opts.SampleLimit)
	})
	if err != nil {
		st.failed.Add(1)
		l.logger.Warn("Sample fetch failed, column has no samples",
			zap.String("table", ref.QualifiedName()),
			zap.String("column", column),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	l.logger.Debug("Fetched samples",
		zap.String("table", ref.QualifiedName()),
		zap.String("column", column),
		zap.Int("count", len(values)),
		zap.Strings("preview", logging.RedactSamples(values, 3)))
	return values
}

// callWithRetry retries transient failures of fn. Each attempt runs on a
// context detached from scan cancellation and bounded by the query timeout,
// so a call in flight is never killed by a cancelled scan. Cancellation
// still stops further attempts.
func callWithRetry[T any](ctx context.Context, opts MetadataLoaderOptions, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoIfRetryableWithResult(ctx, opts.Retry, func() (T, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.QueryTimeout)
		defer cancel()
		return fn(callCtx)
	})
}
