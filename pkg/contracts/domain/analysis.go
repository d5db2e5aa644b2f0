package domain

import "time"

// NumericSummary holds descriptive statistics for one numeric column.
type NumericSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// CorrelationPair is a Pearson coefficient between two columns.
type CorrelationPair struct {
	FeatureA    string  `json:"feature_a"`
	FeatureB    string  `json:"feature_b"`
	Correlation float64 `json:"correlation"`
	N           int     `json:"n"`
}

// Strength buckets |r|.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
	StrengthMinimal  Strength = "minimal"
)

// ModelResult is a single-feature regression insight.
type ModelResult struct {
	Feature     string   `json:"feature"`
	Target      string   `json:"target"`
	Correlation float64  `json:"correlation"`
	RSquared    float64  `json:"r_squared"`
	Strength    Strength `json:"strength"`
	Direction   string   `json:"direction"`
	Insight     string   `json:"insight"`
	Type        string   `json:"type"`
}

// StatisticalResults is the analyzer output.
type StatisticalResults struct {
	RowCount         int               `json:"row_count"`
	ColumnCount      int               `json:"column_count"`
	NumericSummaries []NumericSummary  `json:"numeric_summaries"`
	Correlations     []CorrelationPair `json:"correlations"`
	Models           []ModelResult     `json:"models"`
}

// Trend is the direction of a forecast.
type Trend string

const (
	TrendUpward   Trend = "Upward"
	TrendDownward Trend = "Downward"
	TrendStable   Trend = "Stable"
)

// ForecastPoint is one historical or projected observation.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ForecastResult is a linear trend projection of one metric.
type ForecastResult struct {
	Metric       string          `json:"metric"`
	DateColumn   string          `json:"date_column"`
	Method       string          `json:"method"`
	Trend        Trend           `json:"trend"`
	Slope        float64         `json:"slope"`
	Intercept    float64         `json:"intercept"`
	RSquared     float64         `json:"r_squared"`
	Horizon      int             `json:"horizon"`
	Historical   []ForecastPoint `json:"historical"`
	Forecast     []ForecastPoint `json:"forecast"`
	Insufficient bool            `json:"insufficient,omitempty"`
}

// NarrativeSource says whether a narrative came from a model or the template.
type NarrativeSource string

const (
	NarrativeAI       NarrativeSource = "ai"
	NarrativeFallback NarrativeSource = "fallback"
)

// Narrative is the executive summary attached to a report.
type Narrative struct {
	Title    string          `json:"title"`
	BLUF     string          `json:"bluf"`
	Bullets  []string        `json:"bullets"`
	Source   NarrativeSource `json:"source"`
	Provider string          `json:"provider,omitempty"`
}

// StepTiming records how long one pipeline step took.
type StepTiming struct {
	Step     string        `json:"step"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// DatasetSummary is the dataset view embedded in reports.
type DatasetSummary struct {
	FileName             string                `json:"file_name"`
	Headers              []string              `json:"headers"`
	ColumnClassification map[string]ColumnType `json:"column_classification"`
	RowCount             int                   `json:"row_count"`
	ColumnCount          int                   `json:"column_count"`
	Preview              []Row                 `json:"preview"`
	SourceMeta           SourceMeta            `json:"source_meta"`
}

// AnalysisReport is everything produced by one pipeline run.
type AnalysisReport struct {
	ID               string              `json:"id"`
	CreatedAt        time.Time           `json:"created_at"`
	Domain           Domain              `json:"domain"`
	DomainConfidence float64             `json:"domain_confidence"`
	DomainHinted     bool                `json:"domain_hinted"`
	Dataset          DatasetSummary      `json:"dataset"`
	CleaningLog      []string            `json:"cleaning_log"`
	MergeLog         []string            `json:"merge_log,omitempty"`
	Statistics       *StatisticalResults `json:"statistics,omitempty"`
	Forecast         *ForecastResult     `json:"forecast,omitempty"`
	Charts           []ChartSpec         `json:"charts"`
	Narrative        *Narrative          `json:"narrative,omitempty"`
	Steps            []StepTiming        `json:"steps"`
}
