// Package merger combines several cleaned datasets into one. Files that
// share most of their columns are stacked; otherwise they are left-joined
// onto the largest file through a shared key column.
package merger

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

// DefaultStackThreshold is the header similarity above which files are stacked.
const DefaultStackThreshold = 0.70

var idPattern = regexp.MustCompile(`(_id|id|code|key|number|num|no)$`)

// commonKeys are tried, in order, when no shared header looks like an ID.
var commonKeys = []string{
	"customer_id", "employee_id", "department_id", "product_id", "order_id",
	"user_id", "account_id", "store_id", "sku", "email",
}

// Action is what happened to one secondary dataset.
type Action string

const (
	ActionStack  Action = "stack"
	ActionJoin   Action = "join"
	ActionOrphan Action = "orphan"
)

// Step records how one secondary dataset was merged.
type Step struct {
	File       string  `json:"file"`
	Action     Action  `json:"action"`
	Similarity float64 `json:"similarity"`
	JoinKey    string  `json:"join_key,omitempty"`
	MatchRate  float64 `json:"match_rate,omitempty"`
}

// Result is the merged dataset plus the decisions that produced it.
type Result struct {
	Data     *domain.CleanedDataset `json:"data"`
	Strategy domain.MergeStrategy   `json:"strategy"`
	MergeLog []string               `json:"merge_log"`
	Steps    []Step                 `json:"steps"`
}

// Merger is stateless apart from its settings.
type Merger struct {
	logger         *slog.Logger
	stackThreshold float64
}

// New creates a Merger using DefaultStackThreshold.
func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Merger{
		logger:         logger.With(slog.String("component", "merger")),
		stackThreshold: DefaultStackThreshold,
	}
}

// Merge combines datasets. Inputs are never modified.
func (m *Merger) Merge(datasets []*domain.CleanedDataset) (*Result, error) {
	if len(datasets) == 0 {
		return nil, apperrors.NewNoDataError("merge requires at least one dataset")
	}
	if len(datasets) == 1 {
		data := datasets[0].Clone()
		data.SourceMeta.MergeStrategy = domain.StrategySingle
		return &Result{Data: data, Strategy: domain.StrategySingle}, nil
	}

	ordered := append([]*domain.CleanedDataset(nil), datasets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RowCount() > ordered[j].RowCount()
	})

	main := ordered[0].Clone()
	res := &Result{}
	logf := func(msg string, args ...any) {
		res.MergeLog = append(res.MergeLog, fmt.Sprintf(msg, args...))
	}

	logf("[MERGE] Main table: %q (%d rows, %d columns)", fileName(main), main.RowCount(), main.ColumnCount())

	var (
		stacked, joined bool
		files           = []string{fileName(main)}
		lastKey         string
		lastRate        *float64
		cleaningLogs    = append([]string(nil), ordered[0].CleaningLog...)
	)

	for _, other := range ordered[1:] {
		name := fileName(other)
		cleaningLogs = append(cleaningLogs, other.CleaningLog...)
		sim := HeaderSimilarity(main.Headers, other.Headers)
		step := Step{File: name, Similarity: sim}

		if sim > m.stackThreshold {
			before := main.RowCount()
			stack(main, other)
			step.Action = ActionStack
			stacked = true
			files = append(files, name)
			logf("[MERGE] Stacked %q (similarity %.0f%%): %d + %d = %d rows",
				name, sim*100, before, other.RowCount(), main.RowCount())
			res.Steps = append(res.Steps, step)
			continue
		}

		mainKey, otherKey := FindJoinKey(main.Headers, other.Headers)
		if mainKey == "" {
			step.Action = ActionOrphan
			logf("[MERGE] Skipped %q: no shared key column (similarity %.0f%%)", name, sim*100)
			m.logger.Debug("orphan dataset", slog.String("file", name), slog.Float64("similarity", sim))
			res.Steps = append(res.Steps, step)
			continue
		}

		rate := join(main, other, mainKey, otherKey)
		step.Action = ActionJoin
		step.JoinKey = mainKey
		step.MatchRate = rate
		joined = true
		files = append(files, name)
		lastKey = mainKey
		r := rate
		lastRate = &r
		logf("[MERGE] Joined %q on %q: %.0f%% of rows matched", name, mainKey, rate*100)
		res.Steps = append(res.Steps, step)
	}

	switch {
	case stacked && joined:
		res.Strategy = domain.StrategyHybrid
	case stacked:
		res.Strategy = domain.StrategyStack
	case joined:
		res.Strategy = domain.StrategyJoin
	default:
		res.Strategy = domain.StrategySingle
	}
	logf("[MERGE] Strategy: %s, final dataset: %d rows x %d columns", res.Strategy, main.RowCount(), main.ColumnCount())

	main.SourceMeta.SourceFiles = files
	main.SourceMeta.MergeStrategy = res.Strategy
	main.SourceMeta.JoinKey = lastKey
	main.SourceMeta.MatchRate = lastRate
	main.CleaningLog = append(cleaningLogs, res.MergeLog...)
	res.Data = main

	m.logger.Debug("datasets merged",
		slog.Int("inputs", len(datasets)),
		slog.String("strategy", string(res.Strategy)),
		slog.Int("rows", main.RowCount()))
	return res, nil
}

// HeaderSimilarity is |a ∩ b| / max(|a|, |b|) over lowercased headers.
func HeaderSimilarity(a, b []string) float64 {
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	if denom == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, h := range a {
		set[strings.ToLower(h)] = true
	}
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, h := range b {
		l := strings.ToLower(h)
		if set[l] && !seen[l] {
			shared++
		}
		seen[l] = true
	}
	return float64(shared) / float64(denom)
}

// FindJoinKey picks the column used to join other onto main. It returns the
// header as spelled in each dataset, or empty strings when none is shared.
func FindJoinKey(main, other []string) (string, string) {
	lookup := make(map[string]string, len(other))
	for _, h := range other {
		lookup[strings.ToLower(h)] = h
	}

	for _, h := range main {
		l := strings.ToLower(h)
		if o, ok := lookup[l]; ok && idPattern.MatchString(l) {
			return h, o
		}
	}
	for _, key := range commonKeys {
		for _, h := range main {
			if strings.ToLower(h) == key {
				if o, ok := lookup[key]; ok {
					return h, o
				}
			}
		}
	}
	for _, h := range main {
		if o, ok := lookup[strings.ToLower(h)]; ok {
			return h, o
		}
	}
	return "", ""
}

// headerMapping maps other's headers onto main's spelling, appending new
// headers to main and returning their names.
func headerMapping(main, other *domain.CleanedDataset) map[string]string {
	existing := make(map[string]string, len(main.Headers))
	for _, h := range main.Headers {
		existing[strings.ToLower(h)] = h
	}
	mapping := make(map[string]string, len(other.Headers))
	for _, h := range other.Headers {
		l := strings.ToLower(h)
		if target, ok := existing[l]; ok {
			mapping[h] = target
			continue
		}
		main.Headers = append(main.Headers, h)
		existing[l] = h
		mapping[h] = h
		if _, ok := main.ColumnClassification[h]; !ok {
			main.ColumnClassification[h] = other.TypeOf(h)
		}
	}
	return mapping
}

func stack(main, other *domain.CleanedDataset) {
	mapping := headerMapping(main, other)
	for _, row := range other.Rows {
		out := make(domain.Row, len(main.Headers))
		for h, target := range mapping {
			out[target] = row[h]
		}
		main.Rows = append(main.Rows, out)
	}
	pad(main)
}

func join(main, other *domain.CleanedDataset, mainKey, otherKey string) float64 {
	index := make(map[string]domain.Row, len(other.Rows))
	for _, row := range other.Rows {
		k := keyOf(row[otherKey])
		if k == "" {
			continue
		}
		if _, dup := index[k]; !dup {
			index[k] = row
		}
	}

	mainHeaders := append([]string(nil), main.Headers...)
	mapping := headerMapping(main, other)

	matched := 0
	for i, row := range main.Rows {
		right, ok := index[keyOf(row[mainKey])]
		if !ok {
			continue
		}
		matched++
		out := make(domain.Row, len(main.Headers))
		for h, target := range mapping {
			out[target] = right[h]
		}
		for _, h := range mainHeaders {
			out[h] = row[h]
		}
		main.Rows[i] = out
	}
	pad(main)

	if main.RowCount() == 0 {
		return 0
	}
	return float64(matched) / float64(main.RowCount())
}

// pad fills every missing header with null.
func pad(ds *domain.CleanedDataset) {
	for _, row := range ds.Rows {
		for _, h := range ds.Headers {
			if _, ok := row[h]; !ok {
				row[h] = domain.Null()
			}
		}
	}
}

func keyOf(v domain.Value) string {
	if v.IsNull() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.String()))
}

func fileName(ds *domain.CleanedDataset) string {
	if ds.SourceMeta.OriginalFileName != "" {
		return ds.SourceMeta.OriginalFileName
	}
	return "dataset"
}
