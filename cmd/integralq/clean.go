package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"integralq/internal/app"
	"integralq/internal/cleaner"
	"integralq/internal/exporter"
	"integralq/internal/validation"
	"integralq/pkg/contracts/domain"
)

type cleanOptions struct {
	domain string
	format string
	outDir string
	output string
}

func newCleanCmd(c *cli) *cobra.Command {
	opts := &cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean FILE",
		Short: "Clean a single file and write the cleaned dataset",
		Long: `Parse one CSV, JSON or Excel file, standardise its headers, normalise its
values and write the cleaned dataset as CSV or XLSX. The cleaning log is
printed to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClean(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.domain, "domain", "auto", "domain whose cleaning rules apply")
	f.StringVar(&opts.format, "format", "csv", "output format: csv or xlsx")
	f.StringVar(&opts.outDir, "out-dir", ".", "directory for the cleaned file")
	f.StringVarP(&opts.output, "output", "o", "", "exact output path (overrides --out-dir)")
	return cmd
}

func (c *cli) runClean(cmd *cobra.Command, path string, opts *cleanOptions) error {
	hint, err := domain.ParseDomain(opts.domain)
	if err != nil {
		return err
	}
	format, err := exporter.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	validator := validation.NewFileValidator(c.logger, validation.Limits{
		MaxFiles: 1,
		MaxBytes: c.cfg.Analysis.MaxUploadBytes,
	})
	files, err := readInputs(validator, []string{path})
	if err != nil {
		return err
	}
	sops, err := app.LoadSOPs(c.cfg)
	if err != nil {
		return err
	}

	ds, err := app.BuildCleaner(c.cfg, c.logger, sops).Clean(cmd.Context(), files[0], cleaner.Options{DomainHint: hint})
	if err != nil {
		return err
	}

	dest := opts.output
	if dest == "" {
		if err := validator.ValidateOutputDirectory(opts.outDir); err != nil {
			return err
		}
		dest = filepath.Join(opts.outDir, exporter.FileName(ds, format))
	}
	if err := exporter.New(c.logger).WriteFile(dest, ds, format); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, line := range ds.CleaningLog {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "wrote %d rows x %d columns to %s\n", ds.RowCount(), ds.ColumnCount(), dest)
	return nil
}
