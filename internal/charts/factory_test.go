package charts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integralq/pkg/contracts/domain"
)

func staffDataset(n int) *domain.CleanedDataset {
	depts := []string{"Engineering", "Marketing", "Operations", "Support"}
	ds := &domain.CleanedDataset{
		Headers: []string{"employee_id", "department", "hire_date", "salary", "bonus", "rating"},
		ColumnClassification: map[string]domain.ColumnType{
			"employee_id": domain.ColumnNumeric,
			"department":  domain.ColumnCategorical,
			"hire_date":   domain.ColumnDate,
			"salary":      domain.ColumnNumeric,
			"bonus":       domain.ColumnNumeric,
			"rating":      domain.ColumnNumeric,
		},
	}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, domain.Row{
			"employee_id": domain.Num(float64(1000 + i)),
			"department":  domain.Str(depts[i%len(depts)]),
			"hire_date":   domain.Str(fmt.Sprintf("2020-%02d-01", i%12+1)),
			"salary":      domain.Num(float64(40000 + 1000*i)),
			"bonus":       domain.Num(float64(100 * (i % 5))),
			"rating":      domain.Num(float64(i%5 + 1)),
		})
	}
	return ds
}

func byType(specs []domain.ChartSpec) map[domain.VisualizationType]domain.ChartSpec {
	out := make(map[domain.VisualizationType]domain.ChartSpec, len(specs))
	for _, s := range specs {
		out[s.Type] = s
	}
	return out
}

func TestGenerateFiresApplicableRules(t *testing.T) {
	specs := NewFactory(nil, nil).Generate(staffDataset(20), domain.HR)
	got := byType(specs)

	for _, want := range []domain.VisualizationType{
		domain.ChartBar, domain.ChartPie, domain.ChartLine, domain.ChartArea, domain.ChartScatter,
		domain.ChartBoxplot, domain.ChartHeatmap, domain.ChartRadar,
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, domain.ChartWaterfall, "waterfall is finance only")

	bar := got[domain.ChartBar]
	assert.Equal(t, "Salary by Department", bar.Title)
	assert.Len(t, bar.Data, 4)
	assert.Equal(t, "bar-salary-department", bar.ID)

	scatter := got[domain.ChartScatter]
	assert.Equal(t, "salary", scatter.XKey, "identifier columns are not measures")
	assert.Equal(t, "bonus", scatter.YKey)

	for i := 1; i < len(specs); i++ {
		assert.GreaterOrEqual(t, specs[i-1].Score, specs[i].Score)
	}
	for _, s := range specs {
		assert.InDelta(t, s.Score/100, s.Confidence, 1e-9)
		assert.NotEmpty(t, s.Data)
		assert.NotEmpty(t, s.Reasoning)
	}
}

func TestGenerateAppliesSOPBoost(t *testing.T) {
	specs := NewFactory(nil, nil).Generate(staffDataset(20), domain.HR)
	got := byType(specs)

	// hr prefers boxplot, bar, pie
	assert.Equal(t, 85.0, got[domain.ChartBoxplot].Score)
	assert.Equal(t, 90.0, got[domain.ChartBar].Score)
	assert.Equal(t, 65.0, got[domain.ChartPie].Score)
	assert.Equal(t, domain.ChartBar, specs[0].Type)
}

func TestGenerateIsDeterministic(t *testing.T) {
	f := NewFactory(nil, nil)
	assert.Equal(t, f.Generate(staffDataset(30), domain.General), f.Generate(staffDataset(30), domain.General))
}

func TestGenerateRowGates(t *testing.T) {
	got := byType(NewFactory(nil, nil).Generate(staffDataset(4), domain.General))

	assert.Contains(t, got, domain.ChartBar)
	assert.NotContains(t, got, domain.ChartBoxplot, "boxplot needs 10 rows")
	assert.NotContains(t, got, domain.ChartHeatmap, "heatmap needs 5 rows")
	assert.NotContains(t, got, domain.ChartRadar, "radar needs 5 rows")
}

func TestGenerateWithoutNumericColumns(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"city", "country"},
		ColumnClassification: map[string]domain.ColumnType{
			"city": domain.ColumnCategorical, "country": domain.ColumnCategorical,
		},
	}
	for i := 0; i < 12; i++ {
		ds.Rows = append(ds.Rows, domain.Row{"city": domain.Str(fmt.Sprintf("c%d", i)), "country": domain.Str("x")})
	}

	got := byType(NewFactory(nil, nil).Generate(ds, domain.General))
	assert.NotContains(t, got, domain.ChartBar)
	assert.NotContains(t, got, domain.ChartPie)
	assert.NotContains(t, got, domain.ChartScatter)
	assert.Empty(t, got)
}

func TestGenerateEmptyDataset(t *testing.T) {
	assert.Empty(t, NewFactory(nil, nil).Generate(&domain.CleanedDataset{}, domain.General))
	assert.Empty(t, NewFactory(nil, nil).Generate(nil, domain.General))
}

func TestGenerateFallsBackToIdentifierColumns(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"store_id", "region"},
		ColumnClassification: map[string]domain.ColumnType{
			"store_id": domain.ColumnNumeric, "region": domain.ColumnCategorical,
		},
		Rows: []domain.Row{
			{"store_id": domain.Num(1), "region": domain.Str("north")},
			{"store_id": domain.Num(2), "region": domain.Str("south")},
		},
	}
	got := byType(NewFactory(nil, nil).Generate(ds, domain.General))
	assert.Contains(t, got, domain.ChartBar)
}

func TestWaterfall(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"item", "amount"},
		ColumnClassification: map[string]domain.ColumnType{
			"item": domain.ColumnCategorical, "amount": domain.ColumnNumeric,
		},
		Rows: []domain.Row{
			{"item": domain.Str("Sales"), "amount": domain.Num(100)},
			{"item": domain.Str("Costs"), "amount": domain.Num(-40)},
			{"item": domain.Str("Tax"), "amount": domain.Num(-10)},
		},
	}

	got := byType(NewFactory(nil, nil).Generate(ds, domain.Finance))
	require.Contains(t, got, domain.ChartWaterfall)
	wf := got[domain.ChartWaterfall]
	require.Len(t, wf.Data, 3)
	assert.Equal(t, 100.0, wf.Data[0]["end"])
	assert.Equal(t, 100.0, wf.Data[1]["start"])
	assert.Equal(t, 60.0, wf.Data[1]["end"])
	assert.Equal(t, 50.0, wf.Data[2]["end"])
	assert.Equal(t, 100.0, wf.Score, "finance prefers waterfall")

	assert.NotContains(t, byType(NewFactory(nil, nil).Generate(ds, domain.Sales)), domain.ChartWaterfall)

	positiveOnly := ds.Clone()
	positiveOnly.Rows[1]["amount"] = domain.Num(40)
	positiveOnly.Rows[2]["amount"] = domain.Num(10)
	assert.NotContains(t, byType(NewFactory(nil, nil).Generate(positiveOnly, domain.Finance)), domain.ChartWaterfall)
}

func TestWaterfallCollapsesTailIntoOthers(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"account", "net_amount"},
		ColumnClassification: map[string]domain.ColumnType{
			"account": domain.ColumnCategorical, "net_amount": domain.ColumnNumeric,
		},
	}
	var total float64
	for i := 0; i < 20; i++ {
		v := float64(10 * (i + 1))
		if i%3 == 0 {
			v = -v
		}
		total += v
		ds.Rows = append(ds.Rows, domain.Row{
			"account":    domain.Str(fmt.Sprintf("acct-%02d", i)),
			"net_amount": domain.Num(v),
		})
	}

	wf, ok := byType(NewFactory(nil, nil).Generate(ds, domain.Finance))[domain.ChartWaterfall]
	require.True(t, ok)
	require.Len(t, wf.Data, MaxWaterfallBars)
	assert.Equal(t, "acct-00", wf.Data[0]["name"], "groups keep first-seen order")
	last := wf.Data[len(wf.Data)-1]
	assert.Equal(t, OthersLabel, last["name"])
	assert.InDelta(t, total, last["end"], 1e-9, "running total ends at the grand total")
}

func TestCollapseTail(t *testing.T) {
	groups := []Group{{Name: "a", Value: 5, Count: 1}, {Name: "b", Value: -2, Count: 1}, {Name: "c", Value: -4, Count: 2}}
	assert.Equal(t, groups, CollapseTail(groups, 3))
	assert.Equal(t, []Group{{Name: "a", Value: 5, Count: 1}, {Name: OthersLabel, Value: -6, Count: 3}}, CollapseTail(groups, 2))
}

func TestPieExcludesNonPositive(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"segment", "profit_margin"},
		ColumnClassification: map[string]domain.ColumnType{
			"segment": domain.ColumnCategorical, "profit_margin": domain.ColumnNumeric,
		},
		Rows: []domain.Row{
			{"segment": domain.Str("a"), "profit_margin": domain.Num(5)},
			{"segment": domain.Str("b"), "profit_margin": domain.Num(-3)},
			{"segment": domain.Str("c"), "profit_margin": domain.Num(0)},
		},
	}
	pie := byType(NewFactory(nil, nil).Generate(ds, domain.General))[domain.ChartPie]
	require.Len(t, pie.Data, 1)
	assert.Equal(t, "a", pie.Data[0]["name"])
}

func TestBoxplotCapsGroups(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"team", "score"},
		ColumnClassification: map[string]domain.ColumnType{
			"team": domain.ColumnCategorical, "score": domain.ColumnNumeric,
		},
	}
	for i := 0; i < 40; i++ {
		ds.Rows = append(ds.Rows, domain.Row{
			"team":  domain.Str(fmt.Sprintf("t%d", i%10)),
			"score": domain.Num(float64(i)),
		})
	}
	box := byType(NewFactory(nil, nil).Generate(ds, domain.General))[domain.ChartBoxplot]
	assert.Len(t, box.Data, MaxBoxGroups)
}

func TestLineSortsByDateAndCaps(t *testing.T) {
	ds := &domain.CleanedDataset{
		Headers: []string{"day", "visits"},
		ColumnClassification: map[string]domain.ColumnType{
			"day": domain.ColumnDate, "visits": domain.ColumnNumeric,
		},
	}
	for i := 150; i > 0; i-- {
		ds.Rows = append(ds.Rows, domain.Row{
			"day":    domain.Str(fmt.Sprintf("2024-01-01T00:%02d:%02d", i/60, i%60)),
			"visits": domain.Num(float64(i)),
		})
	}
	line := byType(NewFactory(nil, nil).Generate(ds, domain.General))[domain.ChartLine]
	require.Len(t, line.Data, MaxSeriesPoints)
	assert.Equal(t, 1.0, line.Data[0]["visits"])
	assert.Equal(t, "day", line.XKey)
}

func TestHeatmapMatrix(t *testing.T) {
	specs := NewFactory(nil, nil).Generate(staffDataset(10), domain.General)
	hm := byType(specs)[domain.ChartHeatmap]

	require.Len(t, hm.Data, 9)
	assert.Equal(t, 1.0, hm.Data[0]["value"])
	assert.Equal(t, "salary", hm.Data[0]["x"])
}
