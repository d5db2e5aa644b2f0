// Package pipeline runs the analysis steps in order: clean, merge, detect,
// statistics, forecast, charts, rerank and narrative. Clean and merge
// failures abort the run; later steps are recorded as failed and the report
// is still produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"integralq/internal/analysis"
	"integralq/internal/charts"
	"integralq/internal/cleaner"
	"integralq/internal/detector"
	"integralq/internal/infrastructure"
	"integralq/internal/merger"
	"integralq/internal/narrative"
	"integralq/pkg/contracts/domain"
)

// DefaultPreviewRows is how many rows the report embeds.
const DefaultPreviewRows = 20

// Components are the collaborators the steps call. Preferences, Narrator and
// Metrics may be nil.
type Components struct {
	Cleaner     *cleaner.Cleaner
	Merger      *merger.Merger
	Detector    *detector.Detector
	Analyzer    *analysis.Analyzer
	Forecaster  *analysis.ForecastEngine
	Charts      *charts.Factory
	Preferences charts.PreferenceStore
	Narrator    *narrative.Narrator
	Metrics     *infrastructure.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreviewRows sets the number of rows embedded in reports.
func WithPreviewRows(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.previewRows = n
		}
	}
}

// Pipeline executes the analysis steps sequentially.
type Pipeline struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *infrastructure.Metrics
	steps       []Step
	previewRows int
}

// New builds the standard step sequence. Nil core components are created
// with defaults.
func New(logger *slog.Logger, c Components, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Cleaner == nil {
		c.Cleaner = cleaner.New(logger, nil)
	}
	if c.Merger == nil {
		c.Merger = merger.New(logger)
	}
	if c.Detector == nil {
		c.Detector = detector.New(logger)
	}
	if c.Analyzer == nil {
		c.Analyzer = analysis.NewAnalyzer(logger)
	}
	if c.Forecaster == nil {
		c.Forecaster = analysis.NewForecastEngine(logger, 0)
	}
	if c.Charts == nil {
		c.Charts = charts.NewFactory(logger, nil)
	}

	p := &Pipeline{
		logger:      logger.With(slog.String("component", "pipeline")),
		tracer:      otel.Tracer(infrastructure.InstrumentationName),
		metrics:     c.Metrics,
		previewRows: DefaultPreviewRows,
		steps: []Step{
			&cleanStep{baseStep{StepClean, "Clean files", true}, c.Cleaner},
			&mergeStep{baseStep{StepMerge, "Merge datasets", true}, c.Merger},
			&detectStep{baseStep{StepDetect, "Detect domain", false}, c.Detector},
			&statisticsStep{baseStep{StepStatistics, "Compute statistics", false}, c.Analyzer},
			&forecastStep{baseStep{StepForecast, "Forecast trend", false}, c.Forecaster},
			&chartsStep{baseStep{StepCharts, "Generate charts", false}, c.Charts},
			&rerankStep{baseStep{StepRerank, "Apply chart preferences", false}, c.Preferences},
			&narrativeStep{baseStep{StepNarrative, "Write summary", false}, c.Narrator},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Steps returns the step sequence.
func (p *Pipeline) Steps() []Step { return p.steps }

// Run executes every step. The returned Run carries the report and the
// merged dataset even when a non-required step failed. reporter may be nil.
func (p *Pipeline) Run(ctx context.Context, in Input, reporter ProgressReporter) (*Run, error) {
	run := newRun(uuid.NewString(), in, p.steps)
	log := p.logger.With(slog.String("run_id", run.ID))

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.Int("run.files", len(in.Files)),
			attribute.String("run.domain_hint", string(in.DomainHint)),
		))
	defer span.End()

	report := func() {
		run.touch()
		if reporter != nil {
			reporter.ReportProgress(run.Snapshot())
		}
	}

	log.InfoContext(ctx, "pipeline started",
		slog.Int("files", len(in.Files)),
		slog.Int("step_count", len(p.steps)))

	var runErr error
	for i, step := range p.steps {
		state := run.Step(step.ID())
		if runErr != nil {
			state.Skip("previous required step failed")
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			state.Skip("cancelled")
			continue
		}

		state.Start()
		report()

		err := p.executeStep(ctx, run, step)
		var skipped *SkipError
		switch {
		case err == nil:
			state.Complete("")
			log.DebugContext(ctx, "step completed",
				slog.String("step", step.ID()),
				slog.Int("step_number", i+1),
				slog.Duration("duration", state.Duration()))
		case errors.As(err, &skipped):
			state.Skip(skipped.Reason)
			log.DebugContext(ctx, "step skipped",
				slog.String("step", step.ID()),
				slog.String("reason", skipped.Reason))
		default:
			state.Fail(err)
			if step.Required() {
				runErr = err
				log.ErrorContext(ctx, "required step failed",
					slog.String("step", step.ID()),
					slog.String("error", err.Error()))
			} else {
				log.WarnContext(ctx, "step failed, continuing",
					slog.String("step", step.ID()),
					slog.String("error", err.Error()))
			}
		}
		p.recordStep(ctx, step.ID(), state)
		report()
	}

	p.assemble(run)
	run.finish(runErr)
	report()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return run, runErr
	}
	span.SetAttributes(
		attribute.String("run.domain", string(run.Report.Domain)),
		attribute.Int("run.rows", run.Dataset.RowCount()),
		attribute.Int("run.charts", len(run.Report.Charts)))
	log.InfoContext(ctx, "pipeline completed",
		slog.String("domain", string(run.Report.Domain)),
		slog.Int("rows", run.Dataset.RowCount()),
		slog.Int("charts", len(run.Report.Charts)))
	return run, nil
}

// executeStep runs one step in its own span; a panic becomes the step error.
func (p *Pipeline) executeStep(ctx context.Context, run *Run, step Step) (err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithAttributes(attribute.String("step.id", step.ID())))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.ID(), r)
		}
		if err != nil {
			var skipped *SkipError
			if !errors.As(err, &skipped) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
	}()
	return step.Execute(ctx, run)
}

func (p *Pipeline) recordStep(ctx context.Context, id string, state *StepState) {
	if p.metrics == nil {
		return
	}
	p.metrics.StepDuration.Record(ctx, state.Duration().Seconds(),
		metric.WithAttributes(
			attribute.String("step", id),
			attribute.String("status", string(state.CurrentStatus())),
		))
}

// assemble fills the dataset summary, logs and timings on the report.
func (p *Pipeline) assemble(run *Run) {
	r := run.Report
	r.ID = run.ID
	if run.Merge != nil {
		r.MergeLog = run.Merge.MergeLog
	}
	if ds := run.Dataset; ds != nil {
		r.CleaningLog = ds.CleaningLog
		r.Dataset = Summarize(ds, p.previewRows)
	}
	if r.Domain == "" && run.Dataset != nil {
		r.Domain = domain.General
	}
	r.Steps = run.Timings()
}

// Summarize builds the report view of a dataset.
func Summarize(ds *domain.CleanedDataset, previewRows int) domain.DatasetSummary {
	n := previewRows
	if n > ds.RowCount() {
		n = ds.RowCount()
	}
	preview := make([]domain.Row, n)
	copy(preview, ds.Rows[:n])
	return domain.DatasetSummary{
		FileName:             ds.SourceMeta.OriginalFileName,
		Headers:              ds.Headers,
		ColumnClassification: ds.ColumnClassification,
		RowCount:             ds.RowCount(),
		ColumnCount:          ds.ColumnCount(),
		Preview:              preview,
		SourceMeta:           ds.SourceMeta,
	}
}
