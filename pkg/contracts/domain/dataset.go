package domain

import (
	"encoding/json"
	"strings"
)

// ColumnType is the semantic class assigned to every header.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnDate        ColumnType = "date"
)

// MergeStrategy records how a dataset was assembled from its sources.
type MergeStrategy string

const (
	StrategySingle MergeStrategy = "single"
	StrategyStack  MergeStrategy = "stack"
	StrategyJoin   MergeStrategy = "join"
	StrategyHybrid MergeStrategy = "hybrid"
)

// RawTable is direct parser output, before any normalization.
type RawTable struct {
	Headers []string
	Rows    []Row
}

// SourceMeta describes where a dataset came from.
type SourceMeta struct {
	OriginalFileName string        `json:"original_file_name"`
	SourceFiles      []string      `json:"source_files,omitempty"`
	MergeStrategy    MergeStrategy `json:"merge_strategy,omitempty"`
	JoinKey          string        `json:"join_key,omitempty"`
	MatchRate        *float64      `json:"match_rate,omitempty"`
}

// CleanedDataset is the canonical output of cleaning and merging. Row and
// column counts are derived from the slices and cannot drift.
type CleanedDataset struct {
	Headers              []string              `json:"headers"`
	Rows                 []Row                 `json:"rows"`
	ColumnClassification map[string]ColumnType `json:"column_classification"`
	CleaningLog          []string              `json:"cleaning_log"`
	SourceMeta           SourceMeta            `json:"source_meta"`
}

// RowCount returns len(Rows).
func (d *CleanedDataset) RowCount() int { return len(d.Rows) }

// ColumnCount returns len(Headers).
func (d *CleanedDataset) ColumnCount() int { return len(d.Headers) }

// TypeOf returns the classification of header, defaulting to categorical.
func (d *CleanedDataset) TypeOf(header string) ColumnType {
	if t, ok := d.ColumnClassification[header]; ok {
		return t
	}
	return ColumnCategorical
}

// ColumnsOfType lists headers of type t in header order.
func (d *CleanedDataset) ColumnsOfType(t ColumnType) []string {
	var out []string
	for _, h := range d.Headers {
		if d.TypeOf(h) == t {
			out = append(out, h)
		}
	}
	return out
}

// Column returns every row's value for header, nulls included.
func (d *CleanedDataset) Column(header string) []Value {
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[header]
	}
	return out
}

// HasHeader reports whether header exists, case-insensitively.
func (d *CleanedDataset) HasHeader(header string) bool {
	for _, h := range d.Headers {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

// Clone deep-copies the dataset so derivations never alias their inputs.
func (d *CleanedDataset) Clone() *CleanedDataset {
	out := &CleanedDataset{
		Headers:              append([]string(nil), d.Headers...),
		Rows:                 make([]Row, len(d.Rows)),
		ColumnClassification: make(map[string]ColumnType, len(d.ColumnClassification)),
		CleaningLog:          append([]string(nil), d.CleaningLog...),
		SourceMeta:           d.SourceMeta,
	}
	for i, r := range d.Rows {
		out.Rows[i] = r.Clone()
	}
	for k, v := range d.ColumnClassification {
		out.ColumnClassification[k] = v
	}
	out.SourceMeta.SourceFiles = append([]string(nil), d.SourceMeta.SourceFiles...)
	if d.SourceMeta.MatchRate != nil {
		rate := *d.SourceMeta.MatchRate
		out.SourceMeta.MatchRate = &rate
	}
	return out
}

// MarshalJSON adds the derived counts.
func (d *CleanedDataset) MarshalJSON() ([]byte, error) {
	type alias CleanedDataset
	return json.Marshal(struct {
		*alias
		RowCount    int `json:"row_count"`
		ColumnCount int `json:"column_count"`
	}{
		alias:       (*alias)(d),
		RowCount:    d.RowCount(),
		ColumnCount: d.ColumnCount(),
	})
}
