package analysis

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"integralq/internal/dataset"
	"integralq/internal/stats"
	"integralq/pkg/contracts/domain"
)

// Forecast defaults.
const (
	DefaultHorizon   = 6
	StableTolerance  = 0.01
	ForecastMethod   = "Linear Regression (OLS)"
	forecastDecimals = 2
)

// targetKeywords rank candidate metrics; earlier keywords win.
var targetKeywords = []string{
	"revenue", "sales", "amount", "total", "value", "income",
	"profit", "cost", "price", "quantity", "count",
}

// ForecastEngine projects one metric forward in monthly steps.
type ForecastEngine struct {
	logger  *slog.Logger
	horizon int
}

// NewForecastEngine creates an engine projecting horizon months ahead.
// A non-positive horizon uses DefaultHorizon.
func NewForecastEngine(logger *slog.Logger, horizon int) *ForecastEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &ForecastEngine{
		logger:  logger.With(slog.String("component", "forecast")),
		horizon: horizon,
	}
}

// Forecast fits value = slope*index + intercept over rows ordered by date.
// It returns nil when the dataset has no usable metric or date column, and
// an Insufficient result when fewer than three rows carry both.
func (e *ForecastEngine) Forecast(ds *domain.CleanedDataset) *domain.ForecastResult {
	if ds == nil || ds.RowCount() == 0 {
		return nil
	}
	target := SelectTarget(ds)
	if target == "" {
		return nil
	}
	dateCol := SelectDateColumn(ds, target)
	if dateCol == "" {
		return nil
	}

	type obs struct {
		at    time.Time
		value float64
	}
	var series []obs
	for _, row := range ds.Rows {
		v, ok := row[target].Number()
		if !ok {
			continue
		}
		at, ok := dateOf(row[dateCol])
		if !ok {
			continue
		}
		series = append(series, obs{at: at, value: v})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].at.Before(series[j].at) })

	res := &domain.ForecastResult{
		Metric:     target,
		DateColumn: dateCol,
		Method:     ForecastMethod,
		Trend:      domain.TrendStable,
		Horizon:    e.horizon,
		Historical: make([]domain.ForecastPoint, len(series)),
		Forecast:   []domain.ForecastPoint{},
	}
	x := make([]float64, len(series))
	y := make([]float64, len(series))
	for i, o := range series {
		x[i] = float64(i)
		y[i] = o.value
		res.Historical[i] = domain.ForecastPoint{Date: o.at.Format(dataset.ISODate), Value: o.value}
	}

	reg, err := stats.LinearRegression(x, y)
	if err != nil {
		res.Insufficient = true
		e.logger.Debug("forecast skipped", slog.String("metric", target), slog.Int("points", len(series)))
		return res
	}

	res.Slope = stats.Round(reg.Slope, 4)
	res.Intercept = stats.Round(reg.Intercept, 4)
	res.RSquared = stats.Round(reg.RSquared, 4)
	res.Trend = TrendOf(reg.Slope, stats.Mean(y))

	last := series[len(series)-1].at
	n := len(series)
	for i := 1; i <= e.horizon; i++ {
		v := math.Max(0, stats.Round(reg.Predict(float64(n-1+i)), forecastDecimals))
		res.Forecast = append(res.Forecast, domain.ForecastPoint{
			Date:  addMonths(last, i).Format(dataset.ISODate),
			Value: v,
		})
	}

	e.logger.Debug("forecast computed",
		slog.String("metric", target),
		slog.String("date_column", dateCol),
		slog.String("trend", string(res.Trend)))
	return res
}

// addMonths steps n calendar months from t, clamping the day to the last
// day of the target month so Jan 31 becomes Feb 28 or 29, not Mar 2.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// TrendOf classifies a slope: below 1% of |mean| is Stable.
func TrendOf(slope, mean float64) domain.Trend {
	if slope == 0 || math.Abs(slope) < StableTolerance*math.Abs(mean) {
		return domain.TrendStable
	}
	if slope > 0 {
		return domain.TrendUpward
	}
	return domain.TrendDownward
}

// SelectTarget picks the metric to forecast: the first measure column whose
// name contains the highest-ranked keyword, else the first measure column.
func SelectTarget(ds *domain.CleanedDataset) string {
	candidates := CandidateColumns(ds)
	for _, kw := range targetKeywords {
		for _, h := range candidates {
			if strings.Contains(strings.ToLower(h), kw) {
				return h
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// SelectDateColumn prefers date-named headers, then numeric columns made
// entirely of Excel serials, then columns whose values all look like dates.
func SelectDateColumn(ds *domain.CleanedDataset, exclude string) string {
	for _, h := range ds.Headers {
		if h != exclude && dataset.IsDateHeader(h) && parseableShare(ds, h) > 0 {
			return h
		}
	}
	for _, h := range ds.ColumnsOfType(domain.ColumnNumeric) {
		if h != exclude && allValues(ds, h, func(v domain.Value) bool {
			f, ok := v.Number()
			return ok && dataset.IsExcelSerial(f)
		}) {
			return h
		}
	}
	for _, h := range ds.Headers {
		if h != exclude && allValues(ds, h, func(v domain.Value) bool {
			s, ok := v.Text()
			return ok && dataset.LooksLikeDate(s)
		}) {
			return h
		}
	}
	return ""
}

func parseableShare(ds *domain.CleanedDataset, h string) float64 {
	if ds.RowCount() == 0 {
		return 0
	}
	ok := 0
	for _, row := range ds.Rows {
		if _, parsed := dateOf(row[h]); parsed {
			ok++
		}
	}
	return float64(ok) / float64(ds.RowCount())
}

// allValues reports whether every non-null value satisfies pred, with at
// least one non-null value present.
func allValues(ds *domain.CleanedDataset, h string, pred func(domain.Value) bool) bool {
	seen := false
	for _, row := range ds.Rows {
		v := row[h]
		if v.IsNull() {
			continue
		}
		if !pred(v) {
			return false
		}
		seen = true
	}
	return seen
}

func dateOf(v domain.Value) (time.Time, bool) {
	if f, ok := v.Number(); ok {
		if dataset.IsExcelSerial(f) {
			return dataset.ExcelSerialToTime(f), true
		}
		return time.Time{}, false
	}
	if s, ok := v.Text(); ok {
		return dataset.ParseDate(s)
	}
	return time.Time{}, false
}
