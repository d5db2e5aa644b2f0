package merger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

func makeDataset(name string, headers []string, n int, fill func(i int) domain.Row) *domain.CleanedDataset {
	ds := &domain.CleanedDataset{
		Headers:              headers,
		ColumnClassification: map[string]domain.ColumnType{},
		CleaningLog:          []string{fmt.Sprintf("• Ingested file: %q", name)},
		SourceMeta:           domain.SourceMeta{OriginalFileName: name, SourceFiles: []string{name}},
	}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, fill(i))
	}
	return ds
}

func salesRows(offset int) func(int) domain.Row {
	return func(i int) domain.Row {
		return domain.Row{
			"region":  domain.Str("north"),
			"product": domain.Str(fmt.Sprintf("p%d", i+offset)),
			"revenue": domain.Num(float64(i)),
		}
	}
}

func TestMergeNoData(t *testing.T) {
	_, err := New(nil).Merge(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestMergeSingle(t *testing.T) {
	ds := makeDataset("a.csv", []string{"region", "product", "revenue"}, 3, salesRows(0))
	res, err := New(nil).Merge([]*domain.CleanedDataset{ds})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategySingle, res.Strategy)
	assert.Equal(t, 3, res.Data.RowCount())
	assert.Equal(t, ds.Headers, res.Data.Headers)
}

func TestMergeStack(t *testing.T) {
	a := makeDataset("a.csv", []string{"region", "product", "revenue"}, 50, salesRows(0))
	b := makeDataset("b.csv", []string{"region", "product", "revenue"}, 100, salesRows(50))
	b.ColumnClassification["revenue"] = domain.ColumnNumeric

	res, err := New(nil).Merge([]*domain.CleanedDataset{a, b})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyStack, res.Strategy)
	assert.Equal(t, 150, res.Data.RowCount())
	assert.Equal(t, []string{"b.csv", "a.csv"}, res.Data.SourceMeta.SourceFiles, "largest file leads")
	assert.Equal(t, domain.ColumnNumeric, res.Data.TypeOf("revenue"))
	require.Len(t, res.Steps, 1)
	assert.Equal(t, ActionStack, res.Steps[0].Action)

	assert.Len(t, a.Rows, 50, "inputs are not mutated")
	assert.Len(t, b.Rows, 100)
}

func TestMergeStackPadsMissingColumns(t *testing.T) {
	headersA := []string{"a", "b", "c", "d"}
	headersB := []string{"a", "b", "c", "d", "e"}
	a := makeDataset("a.csv", headersA, 2, func(i int) domain.Row {
		return domain.Row{"a": domain.Num(1), "b": domain.Num(2), "c": domain.Num(3), "d": domain.Num(4)}
	})
	b := makeDataset("b.csv", headersB, 1, func(i int) domain.Row {
		return domain.Row{"a": domain.Num(1), "b": domain.Num(2), "c": domain.Num(3), "d": domain.Num(4), "e": domain.Num(5)}
	})

	res, err := New(nil).Merge([]*domain.CleanedDataset{a, b})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyStack, res.Strategy)
	assert.Equal(t, headersB, res.Data.Headers)
	for _, row := range res.Data.Rows {
		assert.Len(t, row, 5)
	}
	assert.True(t, res.Data.Rows[0]["e"].IsNull(), "the larger file's rows come first")
	assert.Equal(t, domain.Num(5), res.Data.Rows[2]["e"])
}

func TestHeaderSimilarity(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, HeaderSimilarity([]string{"a", "b", "c"}, []string{"a", "b", "d"}), 1e-9)
	assert.InDelta(t, 1.0, HeaderSimilarity([]string{"A", "b"}, []string{"a", "B"}), 1e-9)
	assert.Equal(t, 0.0, HeaderSimilarity(nil, nil))
}

func TestMergeJoin(t *testing.T) {
	employees := makeDataset("employees.csv", []string{"employee_id", "name", "dept"}, 4, func(i int) domain.Row {
		return domain.Row{
			"employee_id": domain.Str(fmt.Sprintf("E%d", i)),
			"name":        domain.Str(fmt.Sprintf("person %d", i)),
			"dept":        domain.Str("support"),
		}
	})
	salaries := makeDataset("salaries.csv", []string{"employee_id", "salary", "dept"}, 3, func(i int) domain.Row {
		return domain.Row{
			"employee_id": domain.Str(fmt.Sprintf(" e%d ", i)),
			"salary":      domain.Num(float64(1000 * (i + 1))),
			"dept":        domain.Str("overwritten?"),
		}
	})
	salaries.Rows = append(salaries.Rows, domain.Row{
		"employee_id": domain.Str("E0"), "salary": domain.Num(99), "dept": domain.Str("dup"),
	})
	salaries.ColumnClassification["salary"] = domain.ColumnNumeric

	res, err := New(nil).Merge([]*domain.CleanedDataset{employees, salaries})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyJoin, res.Strategy)
	assert.Equal(t, 4, res.Data.RowCount(), "left join keeps the main row count")
	assert.Equal(t, []string{"employee_id", "name", "dept", "salary"}, res.Data.Headers)

	assert.Equal(t, domain.Num(1000), res.Data.Rows[0]["salary"], "first duplicate key wins")
	assert.Equal(t, domain.Str("support"), res.Data.Rows[0]["dept"], "main values win")
	assert.True(t, res.Data.Rows[3]["salary"].IsNull())
	assert.Equal(t, domain.ColumnNumeric, res.Data.TypeOf("salary"))

	require.Len(t, res.Steps, 1)
	assert.Equal(t, "employee_id", res.Steps[0].JoinKey)
	assert.InDelta(t, 0.75, res.Steps[0].MatchRate, 1e-9)
	require.NotNil(t, res.Data.SourceMeta.MatchRate)
	assert.InDelta(t, 0.75, *res.Data.SourceMeta.MatchRate, 1e-9)

	assert.Equal(t, []string{"employee_id", "name", "dept"}, employees.Headers, "inputs are not mutated")
	for i, row := range employees.Rows {
		assert.Len(t, row, 3, "employee row %d", i)
		_, gained := row["salary"]
		assert.False(t, gained, "employee row %d", i)
	}
	assert.Equal(t, domain.Str("overwritten?"), salaries.Rows[0]["dept"])
	assert.Len(t, salaries.Rows[0], 3)
}

func TestMergeOrphanAndHybrid(t *testing.T) {
	main := makeDataset("main.csv", []string{"region", "product", "revenue"}, 10, salesRows(0))
	more := makeDataset("more.csv", []string{"region", "product", "revenue"}, 5, salesRows(10))
	prices := makeDataset("prices.csv", []string{"product", "price", "currency", "vendor"}, 3, func(i int) domain.Row {
		return domain.Row{
			"product":  domain.Str(fmt.Sprintf("p%d", i)),
			"price":    domain.Num(float64(i)),
			"currency": domain.Str("usd"),
			"vendor":   domain.Str("acme"),
		}
	})
	weather := makeDataset("weather.csv", []string{"city", "temp"}, 2, func(i int) domain.Row {
		return domain.Row{"city": domain.Str("x"), "temp": domain.Num(20)}
	})

	res, err := New(nil).Merge([]*domain.CleanedDataset{weather, prices, more, main})
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyHybrid, res.Strategy)
	assert.Equal(t, 15, res.Data.RowCount())
	assert.Equal(t, []string{"main.csv", "more.csv", "prices.csv"}, res.Data.SourceMeta.SourceFiles)
	assert.Equal(t, "product", res.Data.SourceMeta.JoinKey)

	actions := map[string]Action{}
	for _, s := range res.Steps {
		actions[s.File] = s.Action
	}
	assert.Equal(t, map[string]Action{"more.csv": ActionStack, "prices.csv": ActionJoin, "weather.csv": ActionOrphan}, actions)
	assert.Contains(t, res.MergeLog, `[MERGE] Skipped "weather.csv": no shared key column (similarity 0%)`)
	assert.Contains(t, res.Data.CleaningLog, `• Ingested file: "weather.csv"`)
}

func TestMergeAllOrphansStaysSingle(t *testing.T) {
	a := makeDataset("a.csv", []string{"x", "y"}, 3, func(int) domain.Row { return domain.Row{"x": domain.Num(1), "y": domain.Num(2)} })
	b := makeDataset("b.csv", []string{"p", "q"}, 1, func(int) domain.Row { return domain.Row{"p": domain.Num(1), "q": domain.Num(2)} })

	res, err := New(nil).Merge([]*domain.CleanedDataset{a, b})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategySingle, res.Strategy)
	assert.Equal(t, 3, res.Data.RowCount())
}

func TestFindJoinKey(t *testing.T) {
	tests := []struct {
		name      string
		main      []string
		other     []string
		wantMain  string
		wantOther string
	}{
		{"id-like preferred", []string{"name", "Order_No", "region"}, []string{"region", "order_no"}, "Order_No", "order_no"},
		{"common key list", []string{"email", "name"}, []string{"email", "name"}, "email", "email"},
		{"any shared header", []string{"city", "temp"}, []string{"temp", "humidity"}, "temp", "temp"},
		{"nothing shared", []string{"a"}, []string{"b"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, o := FindJoinKey(tt.main, tt.other)
			assert.Equal(t, tt.wantMain, m)
			assert.Equal(t, tt.wantOther, o)
		})
	}
}
