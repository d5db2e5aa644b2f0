package app

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"integralq/internal/analysis"
	"integralq/internal/charts"
	"integralq/internal/cleaner"
	"integralq/internal/config"
	"integralq/internal/detector"
	"integralq/internal/infrastructure"
	"integralq/internal/merger"
	"integralq/internal/narrative"
	"integralq/internal/pipeline"
	"integralq/internal/services"
	"integralq/internal/sop"
	"integralq/internal/storage"
)

// LoadSOPs returns the SOP registry from cfg.Analysis.SOPFile, or the
// built-in registry when no file is configured.
func LoadSOPs(cfg *config.Config) (*sop.Registry, error) {
	if cfg.Analysis.SOPFile == "" {
		return sop.Default(), nil
	}
	reg, err := sop.Load(cfg.Analysis.SOPFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load SOP file: %w", err)
	}
	return reg, nil
}

// BuildNarrator creates the narrator for the configured LLM provider.
// Provider "none" yields a narrator that only uses template summaries.
func BuildNarrator(cfg *config.Config, logger *slog.Logger, sops *sop.Registry) (*narrative.Narrator, error) {
	gen, err := narrative.NewGenerator(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create narrative generator: %w", err)
	}
	return narrative.NewNarrator(logger, gen, cfg.LLM.Provider, sops,
		narrative.WithTimeout(cfg.LLM.Timeout),
		narrative.WithTemperature(cfg.LLM.Temperature),
	), nil
}

// PreferenceStore picks the chart preference backend: the database when
// one is open, memory otherwise, nil when learning is disabled.
func PreferenceStore(cfg *config.Config, db *gorm.DB) services.WeightedPreferenceStore {
	switch {
	case !cfg.Analysis.EnablePreferences:
		return nil
	case db != nil:
		return storage.NewPreferenceRepository(db)
	default:
		return charts.NewMemoryPreferenceStore()
	}
}

// BuildCleaner creates the cleaner with the configured inference settings.
func BuildCleaner(cfg *config.Config, logger *slog.Logger, sops *sop.Registry) *cleaner.Cleaner {
	return cleaner.New(logger, sops,
		cleaner.WithSampleSize(cfg.Analysis.InferenceSampleSize),
		cleaner.WithThreshold(cfg.Analysis.InferenceThreshold),
	)
}

// BuildPipeline assembles the pipeline stages from configuration. prefs and
// metrics may be nil.
func BuildPipeline(cfg *config.Config, logger *slog.Logger, sops *sop.Registry, narrator *narrative.Narrator, prefs charts.PreferenceStore, metrics *infrastructure.Metrics) *pipeline.Pipeline {
	return pipeline.New(logger, pipeline.Components{
		Cleaner:     BuildCleaner(cfg, logger, sops),
		Merger:      merger.New(logger),
		Detector:    detector.New(logger),
		Analyzer:    analysis.NewAnalyzer(logger),
		Forecaster:  analysis.NewForecastEngine(logger, cfg.Analysis.ForecastHorizon),
		Charts:      charts.NewFactory(logger, sops, charts.WithTopN(cfg.Analysis.BarTopN, cfg.Analysis.PieTopN)),
		Preferences: prefs,
		Narrator:    narrator,
		Metrics:     metrics,
	}, pipeline.WithPreviewRows(cfg.Analysis.PreviewRows))
}
