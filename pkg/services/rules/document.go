// Package rules loads the inference rule set (FK naming conventions, PII
// patterns, metadata hints) and serves immutable snapshots of it.
package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-discovery/pkg/services/pii"
)

// RuleDocument is the editable form of a rule set. Empty lists fall back to
// the built-in defaults; a non-empty list replaces them. Custom PII rules
// are always added to the built-in matchers.
type RuleDocument struct {
	Version            string        `yaml:"version"`
	NamingRules        []NamingRule  `yaml:"naming_rules"`
	PIIRules           []PIIRule     `yaml:"pii_rules"`
	Metadata           MetadataHints `yaml:"metadata"`
	CredentialPatterns []string      `yaml:"credential_patterns"`
}

// NamingRule is a foreign-key naming convention. The first capture group of
// Pattern must name the referenced table.
type NamingRule struct {
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
}

// PIIRule is a custom content pattern.
type PIIRule struct {
	Name     string    `yaml:"name"`
	Category string    `yaml:"category"`
	Pattern  string    `yaml:"pattern"`
	Bands    pii.Bands `yaml:"bands"`
	Disabled bool      `yaml:"disabled"`
}

// MetadataHints configure the metadata-context override.
type MetadataHints struct {
	ColumnPatterns []string `yaml:"column_patterns"`
	TablePatterns  []string `yaml:"table_patterns"`
	Keywords       []string `yaml:"keywords"`
}

// Store supplies rule documents.
type Store interface {
	Load(ctx context.Context) (*RuleDocument, error)
}

// FileStore reads a YAML rule document from disk on every Load.
type FileStore struct {
	Path string
}

func (s FileStore) Load(_ context.Context) (*RuleDocument, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseDocument(data)
}

// StaticStore always returns the same document. A nil Doc means defaults.
type StaticStore struct {
	Doc *RuleDocument
}

func (s StaticStore) Load(_ context.Context) (*RuleDocument, error) {
	if s.Doc == nil {
		return &RuleDocument{}, nil
	}
	return s.Doc, nil
}

// ParseDocument decodes a YAML rule document, rejecting unknown fields.
func ParseDocument(data []byte) (*RuleDocument, error) {
	doc := &RuleDocument{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		return nil, fmt.Errorf("parse rules document: %w", err)
	}
	return doc, nil
}
