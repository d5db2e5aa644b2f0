package narrative

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"integralq/internal/dataset"
	"integralq/internal/sop"
	"integralq/pkg/contracts/domain"
)

// Narrator defaults.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultTemperature = 0.3
	MaxBullets         = 3
	maxKeyColumns      = 8
	maxPromptModels    = 3
)

const summarySystemPrompt = "You are a senior data analyst writing for executives. " +
	"Be concrete, use the numbers you are given and never invent figures."

const chatSystemPrompt = "You are a data analyst assistant. Answer only from the dataset " +
	"summary provided. If the summary does not contain the answer, say so briefly."

// Option configures a Narrator.
type Option func(*Narrator)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(n *Narrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature sent to the model.
func WithTemperature(t float64) Option {
	return func(n *Narrator) { n.temperature = t }
}

// Narrator writes summaries and answers. A nil generator means templates only.
type Narrator struct {
	logger      *slog.Logger
	gen         Generator
	provider    string
	sops        *sop.Registry
	timeout     time.Duration
	temperature float64
}

// NewNarrator creates a Narrator. provider is recorded on every AI narrative.
func NewNarrator(logger *slog.Logger, gen Generator, provider string, sops *sop.Registry, opts ...Option) *Narrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sops == nil {
		sops = sop.Default()
	}
	n := &Narrator{
		logger:      logger.With(slog.String("component", "narrator")),
		gen:         gen,
		provider:    provider,
		sops:        sops,
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether a model is configured.
func (n *Narrator) Enabled() bool { return n.gen != nil }

// Summarize writes the executive summary for a report. It never fails: any
// model error or unusable output yields the template narrative.
func (n *Narrator) Summarize(ctx context.Context, report *domain.AnalysisReport) domain.Narrative {
	fallback := FallbackNarrative(report)
	if n.gen == nil || report == nil {
		return fallback
	}

	text, err := n.generate(ctx, Prompt{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   n.summaryPrompt(report),
		Temperature:  n.temperature,
	})
	if err != nil {
		n.logger.Warn("narrative generation failed, using template",
			slog.String("provider", n.provider),
			slog.String("error", err.Error()))
		return fallback
	}

	bluf, bullets := ParseSummary(text)
	if len(bullets) == 0 {
		n.logger.Warn("narrative response had no bullets, using template", slog.String("provider", n.provider))
		return fallback
	}
	if bluf == "" {
		bluf = fallback.BLUF
	}
	return domain.Narrative{
		Title:    fallback.Title,
		BLUF:     bluf,
		Bullets:  bullets,
		Source:   domain.NarrativeAI,
		Provider: n.provider,
	}
}

// ChatContext is what a chat answer may draw on.
type ChatContext struct {
	Report  *domain.AnalysisReport
	Dataset *domain.CleanedDataset
}

// Answer is a chat reply.
type Answer struct {
	Text     string                 `json:"answer"`
	Source   domain.NarrativeSource `json:"source"`
	Provider string                 `json:"provider,omitempty"`
}

// Answer responds to a question about an analysed dataset.
func (n *Narrator) Answer(ctx context.Context, cc ChatContext, question string) Answer {
	question = strings.TrimSpace(question)
	fallback := Answer{Text: FallbackAnswer(cc, question), Source: domain.NarrativeFallback}
	if n.gen == nil || question == "" {
		return fallback
	}

	text, err := n.generate(ctx, Prompt{
		SystemPrompt: chatSystemPrompt,
		UserPrompt:   chatPrompt(cc, question),
		Temperature:  n.temperature,
	})
	if err != nil {
		n.logger.Warn("chat generation failed, using template",
			slog.String("provider", n.provider),
			slog.String("error", err.Error()))
		return fallback
	}
	return Answer{Text: text, Source: domain.NarrativeAI, Provider: n.provider}
}

func (n *Narrator) generate(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	text, err := n.gen.Generate(ctx, p)
	n.logger.Debug("model call finished",
		slog.String("provider", n.provider),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (n *Narrator) summaryPrompt(r *domain.AnalysisReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", r.Domain)
	if focus := n.sops.For(r.Domain).NarrativeFocus; focus != "" {
		fmt.Fprintf(&b, "Focus on: %s\n", focus)
	}
	fmt.Fprintf(&b, "Files: %s\n", strings.Join(sourceFiles(r), ", "))
	fmt.Fprintf(&b, "Rows: %d\nColumns: %d\n", r.Dataset.RowCount, r.Dataset.ColumnCount)
	fmt.Fprintf(&b, "Key columns: %s\n", strings.Join(keyColumns(r.Dataset), ", "))

	if r.Statistics != nil {
		for _, s := range r.Statistics.NumericSummaries {
			fmt.Fprintf(&b, "- %s: mean %s, median %s, min %s, max %s\n",
				s.Column, num(s.Mean), num(s.Median), num(s.Min), num(s.Max))
		}
		for i, m := range r.Statistics.Models {
			if i == maxPromptModels {
				break
			}
			fmt.Fprintf(&b, "- Insight: %s\n", m.Insight)
		}
	}
	if f := r.Forecast; f != nil && !f.Insufficient && len(f.Forecast) > 0 {
		fmt.Fprintf(&b, "- Forecast: %s trend is %s, next period projected at %s\n",
			f.Metric, f.Trend, num(f.Forecast[0].Value))
	}

	b.WriteString("\nWrite one line starting with \"BLUF:\" giving the bottom line, ")
	fmt.Fprintf(&b, "then exactly %d short bullet points starting with \"- \".", MaxBullets)
	return b.String()
}

func chatPrompt(cc ChatContext, question string) string {
	var b strings.Builder
	if r := cc.Report; r != nil {
		fmt.Fprintf(&b, "Domain: %s\nRows: %d\n", r.Domain, r.Dataset.RowCount)
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(r.Dataset.Headers, ", "))
		if r.Statistics != nil {
			b.WriteString("Statistics:\n")
			for _, s := range r.Statistics.NumericSummaries {
				fmt.Fprintf(&b, "- %s: count %d, mean %s, std %s, min %s, max %s\n",
					s.Column, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Max))
			}
			for _, m := range r.Statistics.Models {
				fmt.Fprintf(&b, "- %s\n", m.Insight)
			}
		}
		if f := r.Forecast; f != nil && !f.Insufficient {
			fmt.Fprintf(&b, "Forecast: %s is %s (slope %s per period)\n", f.Metric, f.Trend, num(f.Slope))
		}
	}
	if ds := cc.Dataset; ds != nil {
		for _, h := range ds.ColumnsOfType(domain.ColumnCategorical) {
			if top, count, ok := mostCommon(ds, h); ok {
				fmt.Fprintf(&b, "- %s: %d distinct values, most common %q (%d rows)\n",
					h, dataset.DistinctCount(ds, h), top, count)
			}
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}

// ParseSummary extracts the BLUF line and up to MaxBullets bullets from
// model output. List markers and numbering are stripped.
func ParseSummary(text string) (bluf string, bullets []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := cutPrefixFold(strings.Trim(line, "*# "), "bluf:"); ok {
			bluf = strings.TrimSpace(strings.Trim(rest, "* "))
			continue
		}
		item := stripMarker(line)
		if item == "" {
			continue
		}
		if len(bullets) < MaxBullets {
			bullets = append(bullets, item)
		}
	}
	return bluf, bullets
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func stripMarker(line string) string {
	line = strings.TrimLeft(line, "-*•· \t")
	// "1." / "2)" numbering
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		line = line[i+1:]
	}
	return strings.TrimSpace(strings.Trim(line, "*"))
}

// FallbackNarrative builds the template summary from computed results.
func FallbackNarrative(r *domain.AnalysisReport) domain.Narrative {
	if r == nil {
		return domain.Narrative{
			Title:   "Executive Summary",
			BLUF:    "No data was analysed.",
			Bullets: []string{},
			Source:  domain.NarrativeFallback,
		}
	}
	d := r.Domain
	if d == "" {
		d = domain.General
	}
	n := domain.Narrative{
		Title: fmt.Sprintf("%s Executive Summary", d),
		BLUF: fmt.Sprintf("%s contains %d rows across %d columns of %s data.",
			strings.Join(sourceFiles(r), " + "), r.Dataset.RowCount, r.Dataset.ColumnCount, d),
		Source: domain.NarrativeFallback,
	}

	if r.Statistics != nil && len(r.Statistics.NumericSummaries) > 0 {
		s := headlineSummary(r.Statistics.NumericSummaries)
		n.Bullets = append(n.Bullets, fmt.Sprintf("Average %s is %s (range %s to %s across %d values).",
			dataset.Humanize(s.Column), num(s.Mean), num(s.Min), num(s.Max), s.Count))
	} else {
		n.Bullets = append(n.Bullets, "No numeric measures were found to summarize.")
	}

	if r.Statistics != nil && len(r.Statistics.Models) > 0 {
		n.Bullets = append(n.Bullets, r.Statistics.Models[0].Insight)
	} else {
		n.Bullets = append(n.Bullets, "No meaningful relationships between numeric columns were found.")
	}

	switch f := r.Forecast; {
	case f == nil:
		n.Bullets = append(n.Bullets, "No dated measure was available for a trend forecast.")
	case f.Insufficient || len(f.Forecast) == 0:
		n.Bullets = append(n.Bullets, fmt.Sprintf("Too few dated records to forecast %s.", dataset.Humanize(f.Metric)))
	default:
		n.Bullets = append(n.Bullets, fmt.Sprintf("%s trend is %s; next period projected at %s.",
			dataset.Humanize(f.Metric), strings.ToLower(string(f.Trend)), num(f.Forecast[0].Value)))
	}
	return n
}

// headlineSummary prefers a measure over identifiers and contact columns.
func headlineSummary(sums []domain.NumericSummary) domain.NumericSummary {
	for _, s := range sums {
		if !dataset.IsIdentifierColumn(s.Column) && !dataset.IsContactColumn(s.Column) {
			return s
		}
	}
	return sums[0]
}

// FallbackAnswer answers from computed results without a model. Columns
// named in the question are described; otherwise a dataset overview is given.
func FallbackAnswer(cc ChatContext, question string) string {
	ds := cc.Dataset
	if ds == nil || ds.RowCount() == 0 {
		return "There is no data in this session to answer from."
	}
	q := strings.ToLower(question)

	var parts []string
	for _, h := range ds.Headers {
		if !mentions(q, h) {
			continue
		}
		parts = append(parts, describeColumn(cc, h))
	}

	if f := forecastOf(cc); f != nil && containsAny(q, "trend", "forecast", "predict", "future", "next") {
		if f.Insufficient || len(f.Forecast) == 0 {
			parts = append(parts, fmt.Sprintf("There are too few dated records to forecast %s.", dataset.Humanize(f.Metric)))
		} else {
			last := f.Forecast[len(f.Forecast)-1]
			parts = append(parts, fmt.Sprintf("%s is trending %s; the projection reaches %s by %s.",
				dataset.Humanize(f.Metric), strings.ToLower(string(f.Trend)), num(last.Value), last.Date))
		}
	}
	if containsAny(q, "how many rows", "how many records", "row count", "size") {
		parts = append(parts, fmt.Sprintf("The dataset has %d rows and %d columns.", ds.RowCount(), ds.ColumnCount()))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("The dataset has %d rows and %d columns: %s. Ask about a specific column for details.",
			ds.RowCount(), ds.ColumnCount(), strings.Join(ds.Headers, ", "))
	}
	return strings.Join(parts, " ")
}

func describeColumn(cc ChatContext, h string) string {
	ds := cc.Dataset
	name := dataset.Humanize(h)
	switch ds.TypeOf(h) {
	case domain.ColumnNumeric:
		if s, ok := summaryOf(cc, h); ok {
			return fmt.Sprintf("%s averages %s (median %s, min %s, max %s, %d values).",
				name, num(s.Mean), num(s.Median), num(s.Min), num(s.Max), s.Count)
		}
		return fmt.Sprintf("%s has no numeric values.", name)
	case domain.ColumnDate:
		return fmt.Sprintf("%s is a date column with %d distinct dates.", name, dataset.DistinctCount(ds, h))
	default:
		top, count, ok := mostCommon(ds, h)
		if !ok {
			return fmt.Sprintf("%s has no values.", name)
		}
		return fmt.Sprintf("%s has %d distinct values; the most common is %q (%d rows).",
			name, dataset.DistinctCount(ds, h), top, count)
	}
}

func summaryOf(cc ChatContext, h string) (domain.NumericSummary, bool) {
	if cc.Report == nil || cc.Report.Statistics == nil {
		return domain.NumericSummary{}, false
	}
	for _, s := range cc.Report.Statistics.NumericSummaries {
		if s.Column == h {
			return s, true
		}
	}
	return domain.NumericSummary{}, false
}

func forecastOf(cc ChatContext) *domain.ForecastResult {
	if cc.Report == nil {
		return nil
	}
	return cc.Report.Forecast
}

// mostCommon returns the most frequent label; ties go to the label seen first.
func mostCommon(ds *domain.CleanedDataset, h string) (string, int, bool) {
	counts := map[string]int{}
	var order []string
	for _, row := range ds.Rows {
		v := row[h]
		if v.IsNull() {
			continue
		}
		l := dataset.Label(v)
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}
	if len(order) == 0 {
		return "", 0, false
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return order[0], counts[order[0]], true
}

func mentions(q, header string) bool {
	h := strings.ToLower(header)
	return strings.Contains(q, h) || strings.Contains(q, strings.ReplaceAll(h, "_", " "))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func sourceFiles(r *domain.AnalysisReport) []string {
	if files := r.Dataset.SourceMeta.SourceFiles; len(files) > 0 {
		return files
	}
	if r.Dataset.FileName != "" {
		return []string{r.Dataset.FileName}
	}
	return []string{"The dataset"}
}

func keyColumns(ds domain.DatasetSummary) []string {
	if len(ds.Headers) <= maxKeyColumns {
		return ds.Headers
	}
	return ds.Headers[:maxKeyColumns]
}

// num formats a figure compactly: integers without decimals, others to 2dp.
func num(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
