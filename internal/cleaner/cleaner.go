// Package cleaner turns an uploaded file into a CleanedDataset: it parses
// CSV, JSON and spreadsheets, repairs Excel serial dates, normalizes cell
// values, standardizes headers and classifies every column. Each
// transformation is recorded in the dataset's cleaning log.
package cleaner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"integralq/internal/dataset"
	"integralq/internal/sop"
	"integralq/pkg/contracts/domain"
)

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// Options tune a single Clean call.
type Options struct {
	// DomainHint selects the SOP bundle. Empty means General.
	DomainHint domain.Domain
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithSampleSize sets how many non-null values are sampled per column.
func WithSampleSize(n int) Option {
	return func(c *Cleaner) {
		if n > 0 {
			c.sampleSize = n
		}
	}
}

// WithThreshold sets the share of sampled values needed to classify a column.
func WithThreshold(t float64) Option {
	return func(c *Cleaner) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// Cleaner holds no per-call state and is safe for concurrent use.
type Cleaner struct {
	logger     *slog.Logger
	sops       *sop.Registry
	sampleSize int
	threshold  float64
}

// New creates a Cleaner. A nil registry uses the embedded SOP bundles.
func New(logger *slog.Logger, sops *sop.Registry, opts ...Option) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sops == nil {
		sops = sop.Default()
	}
	c := &Cleaner{
		logger:     logger.With(slog.String("component", "cleaner")),
		sops:       sops,
		sampleSize: DefaultSampleSize,
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// counts aggregates per-cell transformations for the log.
type counts struct {
	trimmed   int
	nulls     int
	negatives int
	currency  int
	percent   int
	thousands int
	serials   int
	serialIn  []string
}

// Clean parses and cleans file. The result depends only on the file bytes
// and the domain hint.
func (c *Cleaner) Clean(ctx context.Context, file File, opts Options) (*domain.CleanedDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := parse(file.Name, file.Data)
	if err != nil {
		c.logger.Debug("parse failed", slog.String("file", file.Name), slog.String("error", err.Error()))
		return nil, err
	}
	format, _ := DetectFormat(file.Name)

	hint := opts.DomainHint
	if hint == "" {
		hint = domain.General
	}
	bundle := c.sops.For(hint)

	var log []string
	logf := func(msg string, args ...any) {
		log = append(log, fmt.Sprintf(msg, args...))
	}

	logf("• Ingested file: %q", file.Name)
	logf("• Format detected: %s", strings.ToUpper(string(format)))
	if res.headerRow > 0 {
		logf("• Header row detected at row %d (skipped %d title rows)", res.headerRow+1, res.headerRow)
	}
	if len(res.dropped) > 0 {
		logf("[COLUMNS] Removed %d unnamed columns: [%s]", len(res.dropped), strings.Join(res.dropped, ", "))
	}
	if res.duplicates > 0 {
		logf("[COLUMNS] Renamed %d duplicate column names", res.duplicates)
	}
	logf("• Initial row count: %d", len(res.table.Rows))
	logf("[SOP] Applied %s domain protocols", bundle.Domain)

	table := res.table
	var n counts

	// Excel serial repair runs before normalization so serials are never
	// mistaken for plain measures.
	for _, h := range table.Headers {
		if !dataset.IsDateHeader(h) {
			continue
		}
		converted := 0
		for _, row := range table.Rows {
			if f, ok := row[h].Number(); ok && dataset.IsExcelSerial(f) {
				row[h] = domain.Str(dataset.ExcelSerialToISO(f))
				converted++
			}
		}
		if converted > 0 {
			n.serials += converted
			n.serialIn = append(n.serialIn, h)
		}
	}

	for _, row := range table.Rows {
		for _, h := range table.Headers {
			row[h] = normalize(row[h], &n)
		}
	}

	if n.serials > 0 {
		logf("[DATE] Converted %d Excel serial dates in [%s]", n.serials, strings.Join(n.serialIn, ", "))
	}
	if n.trimmed > 0 {
		logf("[TRIM] Trimmed whitespace in %d cells", n.trimmed)
	}
	if n.nulls > 0 {
		logf("[NULL] Standardized %d null markers", n.nulls)
	}
	if n.negatives > 0 {
		logf("[NEGATIVE] Converted %d parenthesized negatives", n.negatives)
	}
	if n.currency > 0 {
		logf("[CURRENCY] Converted %d currency strings to numeric", n.currency)
	}
	if n.percent > 0 {
		logf("[PERCENT] Converted %d percentages to decimals", n.percent)
	}
	if n.thousands > 0 {
		logf("[NUMERIC] Removed thousands separators from %d values", n.thousands)
	}

	rows := make([]domain.Row, 0, len(table.Rows))
	for _, row := range table.Rows {
		if !allNull(row, table.Headers) {
			rows = append(rows, row)
		}
	}
	if removed := len(table.Rows) - len(rows); removed > 0 {
		logf("[CLEAN] Removed %d invalid/empty rows", removed)
	}

	headers, mapping, renames := StandardizeHeaders(table.Headers)
	changed := 0
	for i, h := range table.Headers {
		if h != headers[i] {
			changed++
		}
	}
	if changed > 0 {
		logf("[HEADERS] Standardized %d column names", changed)
	}
	for _, r := range renames {
		logf("[HEADERS] Resolved duplicate name %s", r)
	}
	for i, row := range rows {
		out := make(domain.Row, len(headers))
		for orig, std := range mapping {
			out[std] = row[orig]
		}
		rows[i] = out
	}

	ds := &domain.CleanedDataset{
		Headers:              headers,
		Rows:                 rows,
		ColumnClassification: make(map[string]domain.ColumnType, len(headers)),
		SourceMeta: domain.SourceMeta{
			OriginalFileName: file.Name,
			SourceFiles:      []string{file.Name},
			MergeStrategy:    domain.StrategySingle,
		},
	}
	for _, h := range headers {
		ds.ColumnClassification[h] = InferColumnType(ds.Column(h), c.sampleSize, c.threshold)
	}

	if coerced := coerceNumeric(ds); coerced > 0 {
		logf("[COERCE] Set %d non-numeric values in numeric columns to null", coerced)
	}

	applied := 0
	if bundle.HasRule(sop.RuleConvertDates) {
		applied++
		if normalized := normalizeDates(ds); normalized > 0 {
			logf("[DATE] Normalized %d date values to YYYY-MM-DD", normalized)
		}
	}
	if bundle.HasRule(sop.RuleNormalizeNames) {
		applied++
		if fixed := normalizeNames(ds); fixed > 0 {
			logf("[NAMES] Title-cased %d name values", fixed)
		}
	}
	for _, r := range []string{sop.RuleRemoveCurrency, sop.RuleConvertPercentages} {
		if bundle.HasRule(r) {
			applied++
		}
	}
	if applied > 0 {
		logf("[RULES] Applied %d domain-specific cleaning rules", applied)
	}

	for _, t := range []struct {
		tag  string
		kind domain.ColumnType
	}{
		{"NUMERIC", domain.ColumnNumeric},
		{"CATEGORY", domain.ColumnCategorical},
		{"DATE", domain.ColumnDate},
	} {
		cols := ds.ColumnsOfType(t.kind)
		logf("[%s] Found %d columns: [%s]", t.tag, len(cols), strings.Join(cols, ", "))
	}
	logf("• Final dataset: %d rows x %d columns", ds.RowCount(), ds.ColumnCount())

	ds.CleaningLog = log
	c.logger.Debug("file cleaned",
		slog.String("file", file.Name),
		slog.Int("rows", ds.RowCount()),
		slog.Int("columns", ds.ColumnCount()))
	return ds, nil
}

func normalize(v domain.Value, n *counts) domain.Value {
	s, ok := v.Text()
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if trimmed != s {
		n.trimmed++
	}

	out, tr := NormalizeCell(trimmed)
	switch tr {
	case TransformNull:
		n.nulls++
	case TransformNegative:
		n.negatives++
	case TransformCurrency:
		n.currency++
	case TransformPercent:
		n.percent++
	case TransformThousands:
		n.thousands++
	case TransformNone:
		// padded booleans
		switch strings.ToLower(trimmed) {
		case "true":
			return domain.Bool(true)
		case "false":
			return domain.Bool(false)
		}
	}
	return out
}

func allNull(row domain.Row, headers []string) bool {
	for _, h := range headers {
		if !row[h].IsNull() {
			return false
		}
	}
	return true
}

func coerceNumeric(ds *domain.CleanedDataset) int {
	coerced := 0
	for _, h := range ds.ColumnsOfType(domain.ColumnNumeric) {
		for _, row := range ds.Rows {
			v := row[h]
			if v.IsNull() {
				continue
			}
			if _, ok := v.Number(); !ok {
				row[h] = domain.Null()
				coerced++
			}
		}
	}
	return coerced
}

func normalizeDates(ds *domain.CleanedDataset) int {
	normalized := 0
	for _, h := range ds.ColumnsOfType(domain.ColumnDate) {
		for _, row := range ds.Rows {
			s, ok := row[h].Text()
			if !ok {
				continue
			}
			t, ok := dataset.ParseDate(s)
			if !ok {
				continue
			}
			if iso := t.Format(dataset.ISODate); iso != s {
				row[h] = domain.Str(iso)
				normalized++
			}
		}
	}
	return normalized
}

func normalizeNames(ds *domain.CleanedDataset) int {
	titleCaser := cases.Title(language.Und)
	fixed := 0
	for _, h := range ds.ColumnsOfType(domain.ColumnCategorical) {
		if !isNameColumn(h) {
			continue
		}
		for _, row := range ds.Rows {
			s, ok := row[h].Text()
			if !ok {
				continue
			}
			if titled := titleCaser.String(s); titled != s {
				row[h] = domain.Str(titled)
				fixed++
			}
		}
	}
	return fixed
}

func isNameColumn(header string) bool {
	for _, tok := range strings.Split(header, "_") {
		if tok == "name" || tok == "fullname" || tok == "firstname" || tok == "lastname" {
			return true
		}
	}
	return false
}
