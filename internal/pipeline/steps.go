package pipeline

import (
	"context"
	"fmt"

	"integralq/internal/analysis"
	"integralq/internal/charts"
	"integralq/internal/cleaner"
	"integralq/internal/detector"
	apperrors "integralq/internal/errors"
	"integralq/internal/merger"
	"integralq/internal/narrative"
	"integralq/pkg/contracts/domain"
)

// Step IDs in execution order.
const (
	StepClean      = "clean"
	StepMerge      = "merge"
	StepDetect     = "detect"
	StepStatistics = "statistics"
	StepForecast   = "forecast"
	StepCharts     = "charts"
	StepRerank     = "rerank"
	StepNarrative  = "narrative"
)

type cleanStep struct {
	baseStep
	cleaner *cleaner.Cleaner
}

func (s *cleanStep) Execute(ctx context.Context, run *Run) error {
	files := run.Input.Files
	if len(files) == 0 {
		return apperrors.NewNoDataError("no files to analyse")
	}

	// Files are cleaned in input order so the first bad file is the one
	// reported.
	out := make([]*domain.CleanedDataset, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		ds, err := s.cleaner.Clean(ctx, f, cleaner.Options{DomainHint: run.Input.DomainHint})
		if err != nil {
			return err
		}
		out = append(out, ds)
	}
	run.Cleaned = out
	return nil
}

type mergeStep struct {
	baseStep
	merger *merger.Merger
}

func (s *mergeStep) Execute(_ context.Context, run *Run) error {
	res, err := s.merger.Merge(run.Cleaned)
	if err != nil {
		return err
	}
	run.Merge = res
	run.Dataset = res.Data
	return nil
}

type detectStep struct {
	baseStep
	detector *detector.Detector
}

func (s *detectStep) Execute(_ context.Context, run *Run) error {
	if hint := run.Input.DomainHint; hint != "" {
		run.Report.Domain = hint
		run.Report.DomainHinted = true
		run.Report.DomainConfidence = s.detector.Confidence(run.Dataset, hint)
		return nil
	}
	d := s.detector.Detect(run.Dataset)
	run.Report.Domain = d
	run.Report.DomainConfidence = s.detector.Confidence(run.Dataset, d)
	return nil
}

type statisticsStep struct {
	baseStep
	analyzer *analysis.Analyzer
}

func (s *statisticsStep) Execute(_ context.Context, run *Run) error {
	res := s.analyzer.Analyze(run.Dataset)
	run.Report.Statistics = &res
	return nil
}

type forecastStep struct {
	baseStep
	engine *analysis.ForecastEngine
}

func (s *forecastStep) Execute(_ context.Context, run *Run) error {
	res := s.engine.Forecast(run.Dataset)
	if res == nil {
		return skip("no dated numeric measure")
	}
	run.Report.Forecast = res
	return nil
}

type chartsStep struct {
	baseStep
	factory *charts.Factory
}

func (s *chartsStep) Execute(_ context.Context, run *Run) error {
	run.Report.Charts = s.factory.Generate(run.Dataset, run.Report.Domain)
	return nil
}

type rerankStep struct {
	baseStep
	store charts.PreferenceStore
}

func (s *rerankStep) Execute(ctx context.Context, run *Run) error {
	if s.store == nil {
		return skip("preference learning disabled")
	}
	preferred, err := s.store.PreferredCharts(ctx, run.Report.Domain)
	if err != nil {
		return fmt.Errorf("load chart preferences: %w", err)
	}
	if len(preferred) == 0 {
		return skip("no recorded preferences")
	}
	run.Report.Charts = charts.Rerank(run.Report.Charts, preferred)
	return nil
}

type narrativeStep struct {
	baseStep
	narrator *narrative.Narrator
}

func (s *narrativeStep) Execute(ctx context.Context, run *Run) error {
	var n domain.Narrative
	if s.narrator == nil {
		n = narrative.FallbackNarrative(run.Report)
	} else {
		n = s.narrator.Summarize(ctx, run.Report)
	}
	run.Report.Narrative = &n
	return nil
}
