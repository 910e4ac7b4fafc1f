package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-discovery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
)

// SnapshotType is the provider type of offline YAML catalogs.
const SnapshotType = "snapshot"

func init() {
	Register(ProviderRegistration{
		Info: ProviderInfo{
			Type:        SnapshotType,
			DisplayName: "Catalog snapshot",
			Description: "Read tables, counts and samples from a YAML file",
		},
		Factory: func(ctx context.Context, cfg *config.DatasourceConfig, logger *zap.Logger) (MetadataProvider, error) {
			return LoadSnapshot(cfg.SnapshotPath, logger)
		},
	})
}

// Snapshot is an exported catalog: every table with its columns, counts
// and sample values.
type Snapshot struct {
	Database string          `yaml:"database"`
	Tables   []SnapshotTable `yaml:"tables"`
}

// SnapshotTable is one table of a Snapshot. Database defaults to the
// snapshot's database.
type SnapshotTable struct {
	Database string                    `yaml:"database,omitempty"`
	Schema   string                    `yaml:"schema,omitempty"`
	Name     string                    `yaml:"name"`
	RowCount *int64                    `yaml:"row_count,omitempty"`
	Columns  []models.ColumnDescriptor `yaml:"columns"`
}

// ParseSnapshot decodes a snapshot document. Unknown keys are rejected so
// typos do not silently drop metadata.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	seen := make(map[string]bool, len(snap.Tables))
	for i := range snap.Tables {
		t := &snap.Tables[i]
		if t.Name == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("tables[%d].name", i), "is required")
		}
		if t.Database == "" {
			t.Database = snap.Database
		}
		key := strings.ToLower(models.QualifyName(t.Database, t.Schema, t.Name))
		if seen[key] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("tables[%d].name", i), "duplicate table %q", key)
		}
		seen[key] = true
	}
	return &snap, nil
}

// SnapshotProvider serves metadata from a Snapshot. It never touches a
// database, so scalar queries are unsupported; snapshots carry their counts.
type SnapshotProvider struct {
	snap   *Snapshot
	logger *zap.Logger
}

// LoadSnapshot reads and parses a snapshot file.
func LoadSnapshot(path string, logger *zap.Logger) (*SnapshotProvider, error) {
	if path == "" {
		return nil, apperrors.NewValidationError("datasource.snapshot_path", "is required for snapshot datasources")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	snap, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return NewSnapshotProvider(snap, logger), nil
}

func NewSnapshotProvider(snap *Snapshot, logger *zap.Logger) *SnapshotProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotProvider{
		snap:   snap,
		logger: logger.Named("snapshot"),
	}
}

func (p *SnapshotProvider) ListTables(_ context.Context, database string) ([]TableRef, error) {
	var refs []TableRef
	for _, t := range p.snap.Tables {
		if database != "" && !strings.EqualFold(t.Database, database) {
			continue
		}
		refs = append(refs, TableRef{
			Database: t.Database,
			Schema:   t.Schema,
			Name:     t.Name,
			RowCount: t.RowCount,
		})
	}
	return refs, nil
}

// GetColumns returns the table's columns without sample values, which are
// only served through GetSampleValues.
func (p *SnapshotProvider) GetColumns(_ context.Context, table TableRef) ([]models.ColumnDescriptor, error) {
	t, err := p.find(table.Database, table.Schema, table.Name)
	if err != nil {
		return nil, err
	}
	cols := make([]models.ColumnDescriptor, len(t.Columns))
	for i, c := range t.Columns {
		c.SampleValues = nil
		cols[i] = c
	}
	return cols, nil
}

func (p *SnapshotProvider) ExecuteScalarQuery(_ context.Context, _, _ string) (any, error) {
	return nil, fmt.Errorf("%w: snapshot datasources cannot execute queries", apperrors.ErrUnsupportedQuery)
}

func (p *SnapshotProvider) GetSampleValues(_ context.Context, schema, table, column string, limit int) ([]string, error) {
	t, err := p.find("", schema, table)
	if errors.Is(err, apperrors.ErrNotFound) && schema != "" {
		// MySQL-style catalogs name the database where others name the schema.
		t, err = p.find(schema, "", table)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range t.Columns {
		if !strings.EqualFold(c.Name, column) {
			continue
		}
		samples := c.SampleValues
		if limit > 0 && len(samples) > limit {
			samples = samples[:limit]
		}
		return append([]string(nil), samples...), nil
	}
	return nil, fmt.Errorf("column %s.%s: %w", table, column, apperrors.ErrNotFound)
}

// QuoteIdentifier uses ANSI double quotes.
func (p *SnapshotProvider) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (p *SnapshotProvider) Close() error {
	return nil
}

// find matches a table case-insensitively. Empty database or schema match
// any value.
func (p *SnapshotProvider) find(database, schema, name string) (*SnapshotTable, error) {
	for i := range p.snap.Tables {
		t := &p.snap.Tables[i]
		if !strings.EqualFold(t.Name, name) {
			continue
		}
		if schema != "" && !strings.EqualFold(t.Schema, schema) {
			continue
		}
		if database != "" && !strings.EqualFold(t.Database, database) {
			continue
		}
		return t, nil
	}
	return nil, fmt.Errorf("table %s: %w", models.QualifyName(database, schema, name), apperrors.ErrNotFound)
}

var _ MetadataProvider = (*SnapshotProvider)(nil)
