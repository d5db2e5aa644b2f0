package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"integralq/internal/app"
	"integralq/internal/cleaner"
	"integralq/internal/exporter"
	"integralq/internal/pipeline"
	"integralq/internal/validation"
	"integralq/pkg/contracts/domain"
	"integralq/pkg/contracts/events"
)

type analyzeOptions struct {
	domain  string
	output  string
	export  string
	summary bool
	timeout time.Duration
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Run the full analysis pipeline over one or more files",
		Long: `Clean every file, merge them into one dataset, detect the business domain,
compute statistics and a forecast, and build chart specifications and a narrative.
The report is written as JSON to stdout or to --output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.domain, "domain", "auto", "domain hint: auto, Finance, HR, Biology, Education, Sales, Inventory, Retail, Tech or General")
	f.StringVarP(&opts.output, "output", "o", "-", "report destination, - for stdout")
	f.StringVar(&opts.export, "export", "", "also write the merged dataset to this .csv or .xlsx file")
	f.BoolVar(&opts.summary, "summary", false, "print the narrative summary instead of the JSON report")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "abort the analysis after this long")
	return cmd
}

func (c *cli) runAnalyze(cmd *cobra.Command, paths []string, opts *analyzeOptions) error {
	hint, err := domain.ParseDomain(opts.domain)
	if err != nil {
		return err
	}
	var exportFormat exporter.Format
	if opts.export != "" {
		if exportFormat, err = exporter.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.export), ".")); err != nil {
			return err
		}
	}

	validator := validation.NewFileValidator(c.logger, validation.Limits{
		MaxFiles: c.cfg.Analysis.MaxFiles,
		MaxBytes: c.cfg.Analysis.MaxUploadBytes,
	})
	files, err := readInputs(validator, paths)
	if err != nil {
		return err
	}

	sops, err := app.LoadSOPs(c.cfg)
	if err != nil {
		return err
	}
	narrator, err := app.BuildNarrator(c.cfg, c.logger, sops)
	if err != nil {
		return err
	}
	p := app.BuildPipeline(c.cfg, c.logger, sops, narrator, app.PreferenceStore(c.cfg, nil), nil)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	progress := pipeline.ProgressFunc(func(s events.AnalysisSnapshot) {
		c.logger.Debug("analysis progress",
			slog.String("run_id", s.RunID),
			slog.String("step", s.CurrentStep),
			slog.Int("progress", s.Progress))
	})
	run, err := p.Run(ctx, pipeline.Input{Files: files, DomainHint: hint}, progress)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if opts.export != "" {
		if err := exporter.New(c.logger).WriteFile(opts.export, run.Dataset, exportFormat); err != nil {
			return err
		}
	}

	return writeOutput(cmd.OutOrStdout(), opts.output, func(w io.Writer) error {
		if opts.summary {
			return writeSummary(w, run.Report)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Report)
	})
}

// readInputs validates and loads local files.
func readInputs(v *validation.FileValidator, paths []string) ([]cleaner.File, error) {
	uploads := make([]validation.Upload, 0, len(paths))
	files := make([]cleaner.File, 0, len(paths))
	for _, path := range paths {
		if err := v.ValidateFile(path); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		uploads = append(uploads, validation.Upload{Name: path, Size: int64(len(data))})
		files = append(files, cleaner.File{Name: filepath.Base(path), Data: data})
	}
	if err := v.ValidateUploads(uploads); err != nil {
		return nil, err
	}
	return files, nil
}

// writeOutput sends write's output to stdout for "-" and to a file otherwise.
func writeOutput(stdout io.Writer, dest string, write func(io.Writer) error) error {
	if dest == "" || dest == "-" {
		return write(stdout)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSummary(w io.Writer, report *domain.AnalysisReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s (confidence %.2f)\n", report.Domain, report.DomainConfidence)
	fmt.Fprintf(&b, "Rows: %d  Columns: %d\n", report.Dataset.RowCount, report.Dataset.ColumnCount)
	if n := report.Narrative; n != nil {
		fmt.Fprintf(&b, "\n%s\n%s\n", n.Title, n.BLUF)
		for _, bullet := range n.Bullets {
			fmt.Fprintf(&b, "  - %s\n", bullet)
		}
	}
	if len(report.Charts) > 0 {
		b.WriteString("\nCharts:\n")
		for _, chart := range report.Charts {
			fmt.Fprintf(&b, "  - [%s] %s\n", chart.Type, chart.Title)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
