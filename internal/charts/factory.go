// Package charts builds renderer-agnostic chart specifications from a cleaned
// dataset. Every applicable chart rule fires independently; specs without
// renderable data are dropped and the rest are ordered by score.
package charts

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"integralq/internal/dataset"
	"integralq/internal/sop"
	"integralq/internal/stats"
	"integralq/pkg/contracts/domain"
)

// Render caps.
const (
	DefaultBarTopN   = 7
	DefaultPieTopN   = 5
	MaxSeriesPoints  = 100
	MaxScatterPoints = 200
	MaxBoxGroups     = 8
	MaxHeatmapCols   = 5
	MaxRadarMetrics  = 5
	MaxRadarSeries   = 5
	MaxWaterfallBars = 12

	minBoxplotRows = 10
	minMatrixRows  = 5
	maxGroupLevels = 50
)

var baseScores = map[domain.VisualizationType]float64{
	domain.ChartWaterfall: 85,
	domain.ChartBar:       80,
	domain.ChartLine:      75,
	domain.ChartBoxplot:   70,
	domain.ChartScatter:   65,
	domain.ChartPie:       60,
	domain.ChartHeatmap:   60,
	domain.ChartArea:      55,
	domain.ChartRadar:     50,
}

var financialHeader = regexp.MustCompile(`(?i)total|net|balance|revenue|profit|loss`)

// Option configures a Factory.
type Option func(*Factory)

// WithTopN overrides the bar and pie Top-N limits.
func WithTopN(bar, pie int) Option {
	return func(f *Factory) {
		if bar > 0 {
			f.barTopN = bar
		}
		if pie > 0 {
			f.pieTopN = pie
		}
	}
}

// Factory generates chart specs. It keeps no per-call state.
type Factory struct {
	logger  *slog.Logger
	sops    *sop.Registry
	barTopN int
	pieTopN int
}

// NewFactory creates a Factory. A nil registry uses the embedded SOP bundles.
func NewFactory(logger *slog.Logger, sops *sop.Registry, opts ...Option) *Factory {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sops == nil {
		sops = sop.Default()
	}
	f := &Factory{
		logger:  logger.With(slog.String("component", "charts")),
		sops:    sops,
		barTopN: DefaultBarTopN,
		pieTopN: DefaultPieTopN,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// columns is the column selection shared by every rule.
type columns struct {
	numeric     []string
	categorical []string
	dates       []string
	category    string
	metric      string
}

func selectColumns(ds *domain.CleanedDataset) columns {
	c := columns{
		numeric:     dataset.MeaningfulNumeric(ds),
		categorical: ds.ColumnsOfType(domain.ColumnCategorical),
		dates:       ds.ColumnsOfType(domain.ColumnDate),
	}
	if len(c.numeric) > 0 {
		c.metric = c.numeric[0]
	}
	c.category = groupingColumn(ds, c.categorical)
	return c
}

// groupingColumn prefers the first categorical column with a manageable
// number of levels, so names and free text are not used to group.
func groupingColumn(ds *domain.CleanedDataset, categorical []string) string {
	if len(categorical) == 0 {
		return ""
	}
	for _, h := range categorical {
		if dataset.IsIdentifierColumn(h) {
			continue
		}
		if n := dataset.DistinctCount(ds, h); n >= 2 && n <= maxGroupLevels {
			return h
		}
	}
	return categorical[0]
}

// Generate returns every applicable chart for ds, highest score first.
func (f *Factory) Generate(ds *domain.CleanedDataset, d domain.Domain) []domain.ChartSpec {
	if ds == nil || ds.RowCount() == 0 {
		return nil
	}
	cols := selectColumns(ds)
	bundle := f.sops.For(d)

	var candidates []domain.ChartSpec
	add := func(spec *domain.ChartSpec) {
		if spec == nil {
			return
		}
		if !hasValidData(*spec) {
			f.logger.Debug("chart dropped: no renderable data", slog.String("chart", spec.ID))
			return
		}
		spec.Score = score(spec.Type, bundle)
		spec.Confidence = spec.Score / 100
		candidates = append(candidates, *spec)
	}

	add(f.bar(ds, cols))
	add(f.pie(ds, cols))
	add(f.line(ds, cols, domain.ChartLine))
	add(f.line(ds, cols, domain.ChartArea))
	add(f.scatter(ds, cols))
	if d == domain.Finance {
		add(f.waterfall(ds, cols))
	}
	add(f.boxplot(ds, cols))
	add(f.heatmap(ds, cols))
	add(f.radar(ds, cols))

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	f.logger.Debug("charts generated", slog.Int("count", len(candidates)), slog.String("domain", string(d)))
	return candidates
}

func score(t domain.VisualizationType, bundle sop.Bundle) float64 {
	s := baseScores[t]
	if rank := bundle.PreferenceRank(t); rank >= 0 && rank < 3 {
		s += float64(15 - 5*rank)
	}
	return math.Min(s, 100)
}

func chartID(t domain.VisualizationType, parts ...string) string {
	id := string(t)
	for _, p := range parts {
		if p != "" {
			id += "-" + strings.ReplaceAll(strings.ToLower(p), " ", "_")
		}
	}
	return id
}

func groupsData(groups []Group) []map[string]any {
	data := make([]map[string]any, len(groups))
	for i, g := range groups {
		data[i] = map[string]any{"name": g.Name, "value": stats.Round(g.Value, 2)}
	}
	return data
}

func (f *Factory) bar(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if c.category == "" || c.metric == "" {
		return nil
	}
	groups := TopN(GroupSum(ds, c.category, c.metric), f.barTopN)
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartBar, c.metric, c.category),
		Type:        domain.ChartBar,
		Title:       fmt.Sprintf("%s by %s", dataset.Humanize(c.metric), dataset.Humanize(c.category)),
		Description: fmt.Sprintf("Total %s per %s, top %d shown", dataset.Humanize(c.metric), dataset.Humanize(c.category), f.barTopN),
		Data:        groupsData(groups),
		XKey:        "name",
		YKey:        "value",
		Reasoning:   "Categorical column with a numeric measure: compare totals across groups.",
	}
}

func (f *Factory) pie(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if c.category == "" || c.metric == "" {
		return nil
	}
	groups := TopN(positive(GroupSum(ds, c.category, c.metric)), f.pieTopN)
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartPie, c.metric, c.category),
		Type:        domain.ChartPie,
		Title:       fmt.Sprintf("%s share by %s", dataset.Humanize(c.metric), dataset.Humanize(c.category)),
		Description: fmt.Sprintf("Share of %s per %s", dataset.Humanize(c.metric), dataset.Humanize(c.category)),
		Data:        groupsData(groups),
		XKey:        "name",
		YKey:        "value",
		Reasoning:   "Part-to-whole view of the positive totals.",
	}
}

// line also builds the area chart, which shares its shaping.
func (f *Factory) line(ds *domain.CleanedDataset, c columns, t domain.VisualizationType) *domain.ChartSpec {
	if len(c.dates) == 0 && len(c.numeric) < 2 {
		return nil
	}

	var x, y string
	switch {
	case len(c.dates) > 0:
		x = c.dates[0]
	case len(c.categorical) > 0:
		x = c.categorical[0]
	default:
		x = c.numeric[0]
	}
	for _, h := range c.numeric {
		if h != x {
			y = h
			break
		}
	}
	if y == "" {
		return nil
	}

	type point struct {
		label string
		value float64
		sort  float64
	}
	var points []point
	for i, row := range ds.Rows {
		v, ok := row[y].Number()
		if !ok || row[x].IsNull() {
			continue
		}
		p := point{label: dataset.Label(row[x]), value: v, sort: float64(i)}
		if len(c.dates) > 0 {
			tm, ok := dataset.ParseDate(row[x].String())
			if !ok {
				continue
			}
			p.label = tm.Format(dataset.ISODate)
			p.sort = float64(tm.Unix())
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].sort < points[j].sort })
	if len(points) > MaxSeriesPoints {
		points = points[:MaxSeriesPoints]
	}

	data := make([]map[string]any, len(points))
	for i, p := range points {
		data[i] = map[string]any{x: p.label, y: p.value}
	}

	spec := &domain.ChartSpec{
		ID:        chartID(t, y, x),
		Type:      t,
		Title:     fmt.Sprintf("%s over %s", dataset.Humanize(y), dataset.Humanize(x)),
		Data:      data,
		XKey:      x,
		YKey:      y,
		Reasoning: "Ordered axis with a numeric measure: show how it moves.",
	}
	if t == domain.ChartArea {
		spec.Title = fmt.Sprintf("%s volume over %s", dataset.Humanize(y), dataset.Humanize(x))
		spec.Description = fmt.Sprintf("Cumulative area of %s", dataset.Humanize(y))
		spec.Reasoning = "Filled view of the same trend emphasising magnitude."
	} else {
		spec.Description = fmt.Sprintf("%s across %s", dataset.Humanize(y), dataset.Humanize(x))
	}
	return spec
}

func (f *Factory) scatter(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if len(c.numeric) < 2 {
		return nil
	}
	x, y := c.numeric[0], c.numeric[1]

	var data []map[string]any
	for _, row := range ds.Rows {
		xv, okX := row[x].Number()
		yv, okY := row[y].Number()
		if !okX || !okY {
			continue
		}
		data = append(data, map[string]any{x: xv, y: yv})
		if len(data) == MaxScatterPoints {
			break
		}
	}
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartScatter, x, y),
		Type:        domain.ChartScatter,
		Title:       fmt.Sprintf("%s vs %s", dataset.Humanize(y), dataset.Humanize(x)),
		Description: fmt.Sprintf("Each point is one row, up to %d rows", MaxScatterPoints),
		Data:        data,
		XKey:        x,
		YKey:        y,
		Reasoning:   "Two numeric measures: look for a relationship.",
	}
}

func (f *Factory) waterfall(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if c.category == "" || c.metric == "" {
		return nil
	}

	qualifies := false
	for _, h := range ds.Headers {
		if financialHeader.MatchString(h) {
			qualifies = true
			break
		}
	}
	if !qualifies {
		var pos, neg bool
		for _, v := range dataset.Finite(dataset.NumericVector(ds, c.metric)) {
			pos = pos || v > 0
			neg = neg || v < 0
		}
		qualifies = pos && neg
	}
	if !qualifies {
		return nil
	}

	groups := CollapseTail(GroupSum(ds, c.category, c.metric), MaxWaterfallBars)
	deltas := make([]float64, len(groups))
	for i, g := range groups {
		deltas[i] = g.Value
	}
	spans := stats.Waterfall(deltas)

	data := make([]map[string]any, len(groups))
	for i, g := range groups {
		data[i] = map[string]any{
			"name":  g.Name,
			"value": stats.Round(g.Value, 2),
			"start": stats.Round(spans[i].Start, 2),
			"end":   stats.Round(spans[i].End, 2),
		}
	}
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartWaterfall, c.metric, c.category),
		Type:        domain.ChartWaterfall,
		Title:       fmt.Sprintf("%s bridge by %s", dataset.Humanize(c.metric), dataset.Humanize(c.category)),
		Description: "Running total built from each group's contribution",
		Data:        data,
		XKey:        "name",
		YKey:        "value",
		SeriesKeys:  []string{"start", "end"},
		Reasoning:   "Financial measure with gains and losses: show how each group moves the total.",
	}
}

func (f *Factory) boxplot(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if c.category == "" || c.metric == "" || ds.RowCount() < minBoxplotRows {
		return nil
	}

	index := make(map[string]int)
	var names []string
	var values [][]float64
	for _, row := range ds.Rows {
		v, ok := row[c.metric].Number()
		if !ok {
			continue
		}
		name := dataset.Label(row[c.category])
		i, seen := index[name]
		if !seen {
			i = len(names)
			index[name] = i
			names = append(names, name)
			values = append(values, nil)
		}
		values[i] = append(values[i], v)
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return len(values[order[a]]) > len(values[order[b]]) })
	if len(order) > MaxBoxGroups {
		order = order[:MaxBoxGroups]
	}

	var data []map[string]any
	for _, i := range order {
		b, ok := stats.Quartiles(values[i])
		if !ok {
			continue
		}
		data = append(data, map[string]any{
			"name":          names[i],
			"min":           b.Min,
			"q1":            stats.Round(b.Q1, 2),
			"median":        stats.Round(b.Median, 2),
			"q3":            stats.Round(b.Q3, 2),
			"max":           b.Max,
			"lower_whisker": b.LowerWhisker,
			"upper_whisker": b.UpperWhisker,
			"outliers":      b.Outliers,
			"count":         b.Count,
		})
	}
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartBoxplot, c.metric, c.category),
		Type:        domain.ChartBoxplot,
		Title:       fmt.Sprintf("%s distribution by %s", dataset.Humanize(c.metric), dataset.Humanize(c.category)),
		Description: fmt.Sprintf("Quartiles and 1.5×IQR whiskers, up to %d groups", MaxBoxGroups),
		Data:        data,
		XKey:        "name",
		YKey:        "median",
		SeriesKeys:  []string{"min", "q1", "median", "q3", "max"},
		Reasoning:   "Enough rows per group to compare spread, not just totals.",
	}
}

func (f *Factory) heatmap(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if len(c.numeric) < 3 || ds.RowCount() < minMatrixRows {
		return nil
	}
	cols := c.numeric
	if len(cols) > MaxHeatmapCols {
		cols = cols[:MaxHeatmapCols]
	}
	vectors := make([][]float64, len(cols))
	for i, h := range cols {
		vectors[i] = dataset.NumericVector(ds, h)
	}
	matrix := stats.CorrelationMatrix(vectors)

	var data []map[string]any
	for i, a := range cols {
		for j, b := range cols {
			data = append(data, map[string]any{"x": a, "y": b, "value": stats.Round(matrix[i][j], 3)})
		}
	}
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartHeatmap, cols...),
		Type:        domain.ChartHeatmap,
		Title:       "Correlation matrix",
		Description: fmt.Sprintf("Pearson correlation between %d numeric columns", len(cols)),
		Data:        data,
		XKey:        "x",
		YKey:        "y",
		SeriesKeys:  []string{"value"},
		Reasoning:   "Three or more numeric measures: show which move together.",
	}
}

func (f *Factory) radar(ds *domain.CleanedDataset, c columns) *domain.ChartSpec {
	if len(c.numeric) < 3 || c.category == "" || ds.RowCount() < minMatrixRows {
		return nil
	}
	metrics := c.numeric
	if len(metrics) > MaxRadarMetrics {
		metrics = metrics[:MaxRadarMetrics]
	}

	counts := make(map[string]int)
	var series []string
	for _, row := range ds.Rows {
		name := dataset.Label(row[c.category])
		if counts[name] == 0 {
			series = append(series, name)
		}
		counts[name]++
	}
	sort.SliceStable(series, func(i, j int) bool { return counts[series[i]] > counts[series[j]] })
	if len(series) > MaxRadarSeries {
		series = series[:MaxRadarSeries]
	}
	keep := make(map[string]bool, len(series))
	for _, s := range series {
		keep[s] = true
	}

	type acc struct {
		sum float64
		n   int
	}
	cells := make(map[string]map[string]*acc, len(metrics))
	for _, m := range metrics {
		cells[m] = make(map[string]*acc, len(series))
		for _, s := range series {
			cells[m][s] = &acc{}
		}
	}
	for _, row := range ds.Rows {
		name := dataset.Label(row[c.category])
		if !keep[name] {
			continue
		}
		for _, m := range metrics {
			if v, ok := row[m].Number(); ok {
				cells[m][name].sum += v
				cells[m][name].n++
			}
		}
	}

	data := make([]map[string]any, 0, len(metrics))
	for _, m := range metrics {
		point := map[string]any{"metric": dataset.Humanize(m)}
		for _, s := range series {
			a := cells[m][s]
			if a.n > 0 {
				point[s] = stats.Round(a.sum/float64(a.n), 2)
			}
		}
		data = append(data, point)
	}
	return &domain.ChartSpec{
		ID:          chartID(domain.ChartRadar, c.category),
		Type:        domain.ChartRadar,
		Title:       fmt.Sprintf("%s profile", dataset.Humanize(c.category)),
		Description: fmt.Sprintf("Mean of up to %d metrics for the %d largest groups", MaxRadarMetrics, len(series)),
		Data:        data,
		XKey:        "metric",
		SeriesKeys:  series,
		Reasoning:   "Several measures per group: compare group profiles at a glance.",
	}
}
