// Package analysis computes descriptive statistics, correlation insights and
// a linear trend forecast for a cleaned dataset. Nothing here fails on thin
// data: results just get shorter.
package analysis

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"integralq/internal/dataset"
	"integralq/internal/stats"
	"integralq/pkg/contracts/domain"
)

// Result limits.
const (
	MaxCorrelations = 10
	MaxModels       = 5
)

// Analyzer produces StatisticalResults.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Analyzer{logger: logger.With(slog.String("component", "analyzer"))}
}

// Analyze summarizes every numeric column and ranks correlations between
// measure columns.
func (a *Analyzer) Analyze(ds *domain.CleanedDataset) domain.StatisticalResults {
	res := domain.StatisticalResults{
		NumericSummaries: []domain.NumericSummary{},
		Correlations:     []domain.CorrelationPair{},
		Models:           []domain.ModelResult{},
	}
	if ds == nil {
		return res
	}
	res.RowCount = ds.RowCount()
	res.ColumnCount = ds.ColumnCount()

	for _, h := range ds.ColumnsOfType(domain.ColumnNumeric) {
		s, ok := stats.Describe(dataset.NumericVector(ds, h))
		if !ok {
			continue
		}
		res.NumericSummaries = append(res.NumericSummaries, domain.NumericSummary{
			Column: h,
			Count:  s.Count,
			Sum:    stats.Round(s.Sum, 4),
			Mean:   stats.Round(s.Mean, 4),
			Std:    stats.Round(s.Std, 4),
			Min:    s.Min,
			Q1:     stats.Round(s.Q1, 4),
			Median: stats.Round(s.Median, 4),
			Q3:     stats.Round(s.Q3, 4),
			Max:    s.Max,
		})
	}

	res.Correlations = Correlations(ds)
	res.Models = Models(res.Correlations)

	a.logger.Debug("statistics computed",
		slog.Int("summaries", len(res.NumericSummaries)),
		slog.Int("correlations", len(res.Correlations)),
		slog.Int("models", len(res.Models)))
	return res
}

// CandidateColumns returns numeric columns worth correlating: identifiers
// and contact numbers are excluded.
func CandidateColumns(ds *domain.CleanedDataset) []string {
	var out []string
	for _, h := range ds.ColumnsOfType(domain.ColumnNumeric) {
		if dataset.IsIdentifierColumn(h) || dataset.IsContactColumn(h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Correlations returns the strongest pairwise Pearson coefficients by |r|.
// Pairs with fewer than three shared points are skipped.
func Correlations(ds *domain.CleanedDataset) []domain.CorrelationPair {
	cols := CandidateColumns(ds)
	vectors := make([][]float64, len(cols))
	for i, h := range cols {
		vectors[i] = dataset.NumericVector(ds, h)
	}

	pairs := []domain.CorrelationPair{}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r, n, ok := stats.Pearson(vectors[i], vectors[j])
			if !ok {
				continue
			}
			pairs = append(pairs, domain.CorrelationPair{
				FeatureA:    cols[i],
				FeatureB:    cols[j],
				Correlation: stats.Round(r, 3),
				N:           n,
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Correlation) > math.Abs(pairs[j].Correlation)
	})
	if len(pairs) > MaxCorrelations {
		pairs = pairs[:MaxCorrelations]
	}
	return pairs
}

// StrengthOf buckets |r|.
func StrengthOf(r float64) domain.Strength {
	switch abs := math.Abs(r); {
	case abs >= 0.8:
		return domain.StrengthStrong
	case abs >= 0.5:
		return domain.StrengthModerate
	case abs >= 0.3:
		return domain.StrengthWeak
	default:
		return domain.StrengthMinimal
	}
}

// Models turns the top correlation pairs into regression insights.
func Models(pairs []domain.CorrelationPair) []domain.ModelResult {
	models := []domain.ModelResult{}
	for _, p := range pairs {
		if len(models) == MaxModels {
			break
		}
		direction := "none"
		switch {
		case p.Correlation > 0:
			direction = "positive"
		case p.Correlation < 0:
			direction = "negative"
		}
		strength := StrengthOf(p.Correlation)
		r2 := stats.Round(p.Correlation*p.Correlation, 3)
		models = append(models, domain.ModelResult{
			Feature:     p.FeatureA,
			Target:      p.FeatureB,
			Correlation: p.Correlation,
			RSquared:    r2,
			Strength:    strength,
			Direction:   direction,
			Insight:     insight(p, strength, direction, r2),
			Type:        "correlation",
		})
	}
	return models
}

func insight(p domain.CorrelationPair, s domain.Strength, direction string, r2 float64) string {
	a, b := dataset.Humanize(p.FeatureA), dataset.Humanize(p.FeatureB)
	switch s {
	case domain.StrengthStrong:
		return fmt.Sprintf("Strong %s relationship between %s and %s (r=%.2f); %s explains %.0f%% of the variation in %s.",
			direction, a, b, p.Correlation, a, r2*100, b)
	case domain.StrengthModerate:
		return fmt.Sprintf("Moderate %s correlation between %s and %s (r=%.2f).", direction, a, b, p.Correlation)
	case domain.StrengthWeak:
		return fmt.Sprintf("Weak %s link between %s and %s (r=%.2f); other factors dominate.", direction, a, b, p.Correlation)
	default:
		return fmt.Sprintf("Minimal linear relationship between %s and %s (r=%.2f).", a, b, p.Correlation)
	}
}
