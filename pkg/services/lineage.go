package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-discovery/pkg/logging"
	"github.com/ekaya-inc/ekaya-discovery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-discovery/pkg/sql"
)

// LineageService extracts table and column lineage from SQL text.
type LineageService interface {
	// ParseSQL parses exactly one statement.
	ParseSQL(text, dialect string) (*models.ParsedLineage, error)

	// ParseScript splits text at top-level semicolons and merges the
	// lineage of every statement.
	ParseScript(text, dialect string) (*models.ParsedLineage, error)
}

type lineageService struct {
	logger *zap.Logger
}

// NewLineageService creates a LineageService.
func NewLineageService(logger *zap.Logger) LineageService {
	return &lineageService{logger: logger.Named("sql-lineage")}
}

func (s *lineageService) ParseSQL(text, dialect string) (*models.ParsedLineage, error) {
	return s.parse(text, dialect, false)
}

func (s *lineageService) ParseScript(text, dialect string) (*models.ParsedLineage, error) {
	return s.parse(text, dialect, true)
}

func (s *lineageService) parse(text, dialect string, script bool) (*models.ParsedLineage, error) {
	d, err := sqlutil.ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	parser := sqlutil.NewParser(d)

	var lineage *models.ParsedLineage
	if script {
		lineage, err = parser.ParseScript(text)
	} else {
		lineage, err = parser.Parse(text)
	}
	if err != nil {
		s.logger.Debug("Failed to parse SQL",
			zap.String("dialect", string(d)),
			zap.String("sql", logging.SanitizeQuery(text)),
			zap.Error(err))
		return nil, fmt.Errorf("parse sql: %w", err)
	}

	s.logger.Debug("Parsed SQL lineage",
		zap.String("dialect", string(d)),
		zap.String("query_type", string(lineage.QueryType)),
		zap.Int("tables", len(lineage.Tables)),
		zap.Int("column_lineage", len(lineage.ColumnLineage)),
		zap.Float64("confidence", lineage.Confidence))
	return lineage, nil
}
