// Package stats contains the numeric routines shared by the chart factory and
// the analyzers: quantiles, descriptive statistics, Pearson correlation,
// running sums and ordinary least squares.
package stats

import (
	"math"
	"sort"

	apperrors "integralq/internal/errors"
)

// MinPoints is the smallest sample accepted by correlation and regression.
const MinPoints = 3

// Quantile returns the q-th quantile of an ascending slice using position
// (n-1)*q with linear interpolation between neighbours.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := float64(n-1) * q
	base := int(math.Floor(pos))
	if base < 0 {
		return sorted[0]
	}
	if base+1 >= n {
		return sorted[n-1]
	}
	frac := pos - float64(base)
	return sorted[base] + frac*(sorted[base+1]-sorted[base])
}

// BoxStats is a five-number summary with Tukey whiskers.
type BoxStats struct {
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	IQR          float64   `json:"iqr"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers,omitempty"`
	Count        int       `json:"count"`
}

// Quartiles computes BoxStats over values (any order). Whiskers reach the most
// extreme observation inside Q1-1.5*IQR and Q3+1.5*IQR, so they never extend
// past the data.
func Quartiles(values []float64) (BoxStats, bool) {
	sorted := sortedFinite(values)
	if len(sorted) == 0 {
		return BoxStats{}, false
	}

	b := BoxStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.5),
		Q3:     Quantile(sorted, 0.75),
		Count:  len(sorted),
	}
	b.IQR = b.Q3 - b.Q1
	lowFence := b.Q1 - 1.5*b.IQR
	highFence := b.Q3 + 1.5*b.IQR

	b.LowerWhisker = b.Max
	b.UpperWhisker = b.Min
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		if v < b.LowerWhisker {
			b.LowerWhisker = v
		}
		if v > b.UpperWhisker {
			b.UpperWhisker = v
		}
	}
	return b, true
}

// Summary is a set of descriptive statistics.
type Summary struct {
	Count  int
	Sum    float64
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Describe summarizes the finite values in values. Std is the sample standard
// deviation and is 0 for fewer than two values.
func Describe(values []float64) (Summary, bool) {
	sorted := sortedFinite(values)
	n := len(sorted)
	if n == 0 {
		return Summary{}, false
	}

	s := Summary{Count: n, Min: sorted[0], Max: sorted[n-1]}
	for _, v := range sorted {
		s.Sum += v
	}
	s.Mean = s.Sum / float64(n)
	if n > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - s.Mean
			ss += d * d
		}
		s.Std = math.Sqrt(ss / float64(n-1))
	}
	s.Q1 = Quantile(sorted, 0.25)
	s.Median = Quantile(sorted, 0.5)
	s.Q3 = Quantile(sorted, 0.75)
	return s, true
}

// Mean returns the arithmetic mean of finite values, or NaN when there are none.
func Mean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if isFinite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Pearson computes the correlation of x and y over positions where both are
// finite. ok is false when fewer than MinPoints pairs remain. Zero variance
// in either vector yields 0.
func Pearson(x, y []float64) (r float64, n int, ok bool) {
	xs, ys := pairs(x, y)
	n = len(xs)
	if n < MinPoints {
		return 0, n, false
	}

	mx, my := Mean(xs), Mean(ys)
	var num, dx2, dy2 float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}

	den := math.Sqrt(dx2 * dy2)
	if den == 0 {
		return 0, n, true
	}
	r = num / den
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, n, true
}

// CorrelationMatrix returns the pairwise Pearson matrix. The diagonal is 1 and
// pairs with too few points are 0.
func CorrelationMatrix(columns [][]float64) [][]float64 {
	k := len(columns)
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
		m[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r, _, _ := Pearson(columns[i], columns[j])
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m
}

// Cumulative returns the running sum of values.
func Cumulative(values []float64) []float64 {
	out := make([]float64, len(values))
	var acc float64
	for i, v := range values {
		acc += v
		out[i] = acc
	}
	return out
}

// Span is one floating bar of a waterfall.
type Span struct {
	Start float64
	End   float64
}

// Waterfall converts deltas into start/end pairs of a running total.
func Waterfall(deltas []float64) []Span {
	ends := Cumulative(deltas)
	out := make([]Span, len(deltas))
	var start float64
	for i, end := range ends {
		out[i] = Span{Start: start, End: end}
		start = end
	}
	return out
}

// Regression is a fitted line y = Slope*x + Intercept.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// Predict evaluates the line at x.
func (r Regression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearRegression fits y on x by ordinary least squares over finite pairs.
// A constant x yields a flat line through the mean of y.
func LinearRegression(x, y []float64) (Regression, error) {
	xs, ys := pairs(x, y)
	n := len(xs)
	if n < MinPoints {
		return Regression{N: n}, apperrors.NewInsufficientDataError(n, MinPoints)
	}

	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}

	reg := Regression{N: n, Intercept: my}
	if sxx == 0 {
		return reg, nil
	}
	reg.Slope = sxy / sxx
	reg.Intercept = my - reg.Slope*mx
	if syy > 0 {
		reg.RSquared = (sxy * sxy) / (sxx * syy)
	}
	return reg, nil
}

// Round rounds to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func pairs(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return xs, ys
}

func sortedFinite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
