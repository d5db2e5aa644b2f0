package charts

import (
	"math"
	"sort"

	"integralq/internal/dataset"
	"integralq/pkg/contracts/domain"
)

// OthersLabel names the bucket that collects the tail of a grouped series.
const OthersLabel = "Others"

// Group is one category and its aggregated value.
type Group struct {
	Name  string
	Value float64
	Count int
}

// GroupSum sums value by category in first-seen order. Rows with a
// non-numeric value are skipped; null categories become "Unknown".
func GroupSum(ds *domain.CleanedDataset, category, value string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, row := range ds.Rows {
		v, ok := row[value].Number()
		if !ok {
			continue
		}
		name := dataset.Label(row[category])
		i, seen := index[name]
		if !seen {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Value += v
		groups[i].Count++
	}
	return groups
}

// TopN sorts groups by value descending and keeps the first n. The rest
// collapse into a single Others bucket, added only when its sum is positive.
// Series of at most n+1 entries are returned sorted but otherwise intact.
func TopN(groups []Group, n int) []Group {
	sorted := append([]Group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })
	if n <= 0 || len(sorted) <= n+1 {
		return sorted
	}

	out := append([]Group(nil), sorted[:n]...)
	var rest float64
	var count int
	for _, g := range sorted[n:] {
		rest += g.Value
		count += g.Count
	}
	if rest > 0 {
		out = append(out, Group{Name: OthersLabel, Value: rest, Count: count})
	}
	return out
}

// CollapseTail keeps groups in their original order, at most n entries.
// Beyond that the first n-1 are kept and the rest are summed into Others,
// whatever its sign, so a running total over the result still ends at the
// grand total.
func CollapseTail(groups []Group, n int) []Group {
	if n <= 1 || len(groups) <= n {
		return groups
	}
	out := append([]Group(nil), groups[:n-1]...)
	others := Group{Name: OthersLabel}
	for _, g := range groups[n-1:] {
		others.Value += g.Value
		others.Count += g.Count
	}
	return append(out, others)
}

func positive(groups []Group) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.Value > 0 {
			out = append(out, g)
		}
	}
	return out
}

// hasValidData reports whether spec carries at least one finite number.
func hasValidData(spec domain.ChartSpec) bool {
	for _, point := range spec.Data {
		for _, v := range point {
			if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return true
			}
		}
	}
	return false
}
