package services

import (
	"time"

	"github.com/ekaya-inc/ekaya-discovery/pkg/config"
	"github.com/ekaya-inc/ekaya-discovery/pkg/retry"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/fusion"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/pii"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/signals"
	"github.com/ekaya-inc/ekaya-discovery/pkg/services/workpool"
)

// Defaults for the metadata round-trips of a scan.
const (
	DefaultMetadataConcurrency = 4
	DefaultQueryTimeout        = 30 * time.Second
	DefaultSampleLimit         = 100
)

// InferenceOptions bundles the tunables of every stage of a scan.
type InferenceOptions struct {
	Signals signals.Options
	Fusion  fusion.Options
	PII     pii.Options

	MinConfidence  float64
	MaxSuggestions int

	Workers  workpool.Config
	Metadata MetadataLoaderOptions
}

// DefaultInferenceOptions returns the package defaults of every stage.
func DefaultInferenceOptions() InferenceOptions {
	return InferenceOptions{
		Signals:        signals.DefaultOptions(),
		Fusion:         fusion.DefaultOptions(),
		PII:            pii.DefaultOptions(),
		MinConfidence:  fusion.DefaultMinConfidence,
		MaxSuggestions: fusion.DefaultMaxSuggestions,
		Workers:        workpool.DefaultConfig(),
		Metadata:       DefaultMetadataLoaderOptions(),
	}
}

// OptionsFromConfig overlays the non-zero values of cfg on the defaults.
func OptionsFromConfig(cfg config.InferenceConfig) InferenceOptions {
	opts := DefaultInferenceOptions()

	setFloat(&opts.Signals.NameSimilarityThreshold, cfg.NameSimilarityThreshold)
	setFloat(&opts.Signals.TypeSimilarityThreshold, cfg.TypeSimilarityThreshold)
	setFloat(&opts.Signals.SourceUniquenessMax, cfg.SourceUniquenessMax)
	setFloat(&opts.Signals.TargetUniquenessMin, cfg.TargetUniquenessMin)
	setFloat(&opts.Signals.OverlapThreshold, cfg.OverlapThreshold)
	setFloat(&opts.Fusion.CorroborationBonus, cfg.CorroborationBonus)
	setFloat(&opts.PII.Threshold, cfg.PIIThreshold)
	setFloat(&opts.MinConfidence, cfg.MinConfidence)

	if cfg.MaxSuggestions > 0 {
		opts.MaxSuggestions = min(cfg.MaxSuggestions, fusion.MaxSuggestionsCap)
	}
	if cfg.Workers > 0 {
		opts.Workers.MaxConcurrent = cfg.Workers
	}
	if cfg.MetadataConcurrency > 0 {
		opts.Metadata.Concurrency = cfg.MetadataConcurrency
	}
	if cfg.QueryTimeout > 0 {
		opts.Metadata.QueryTimeout = cfg.QueryTimeout
	}
	if cfg.SampleLimit > 0 {
		opts.Metadata.SampleLimit = cfg.SampleLimit
	}
	return opts
}

// DefaultMetadataLoaderOptions returns the loader defaults.
func DefaultMetadataLoaderOptions() MetadataLoaderOptions {
	return MetadataLoaderOptions{
		Concurrency:  DefaultMetadataConcurrency,
		QueryTimeout: DefaultQueryTimeout,
		SampleLimit:  DefaultSampleLimit,
		Retry:        retry.DefaultConfig(),
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
