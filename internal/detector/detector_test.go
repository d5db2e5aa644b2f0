package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integralq/pkg/contracts/domain"
)

func dataset(headers []string, rows ...domain.Row) *domain.CleanedDataset {
	return &domain.CleanedDataset{Headers: headers, Rows: rows}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		ds   *domain.CleanedDataset
		want domain.Domain
	}{
		{
			name: "hr headers",
			ds: dataset([]string{"department", "hire_date", "salary"},
				domain.Row{"department": domain.Str("Engineering"), "hire_date": domain.Str("2021-01-04"), "salary": domain.Num(1)},
				domain.Row{"department": domain.Str("Marketing"), "hire_date": domain.Str("2020-06-01"), "salary": domain.Num(2)},
			),
			want: domain.HR,
		},
		{
			name: "finance headers",
			ds:   dataset([]string{"revenue", "expense", "net_profit", "month"}),
			want: domain.Finance,
		},
		{
			name: "values count too",
			ds: dataset([]string{"label", "n"},
				domain.Row{"label": domain.Str("Protein A"), "n": domain.Num(1)},
				domain.Row{"label": domain.Str("Protein B"), "n": domain.Num(2)},
				domain.Row{"label": domain.Str("Gene C"), "n": domain.Num(3)},
			),
			want: domain.Biology,
		},
		{
			name: "below minimum score",
			ds:   dataset([]string{"revenue", "x", "y"}),
			want: domain.General,
		},
		{
			name: "empty",
			ds:   dataset(nil),
			want: domain.General,
		},
	}

	d := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.ds))
		})
	}
}

func TestDetectTieKeepsFirstCandidate(t *testing.T) {
	// 3 finance hits (revenue, cost, tax) and 3 hr hits (salary, staff, tenure).
	ds := dataset([]string{"revenue", "cost", "tax", "salary", "staff", "tenure"})
	assert.Equal(t, domain.Finance, New(nil).Detect(ds))
}

func TestScoresAndConfidence(t *testing.T) {
	ds := dataset([]string{"revenue", "cost", "tax", "salary"})
	d := New(nil)

	scores := d.Scores(ds)
	require.Len(t, scores, len(domain.Candidates()))
	assert.Equal(t, Score{Domain: domain.Finance, Score: 3}, scores[0])
	assert.Equal(t, Score{Domain: domain.HR, Score: 1}, scores[1])

	assert.InDelta(t, 75.0, d.Confidence(ds, domain.Finance), 1e-9)
	assert.InDelta(t, 0.0, d.Confidence(dataset([]string{"x"}), domain.Finance), 1e-9)
}

func TestCorpusSamplesAtMostFiftyStrings(t *testing.T) {
	var rows []domain.Row
	for i := 0; i < 60; i++ {
		v := "plain"
		if i >= 50 {
			v = "protein gene cell"
		}
		rows = append(rows, domain.Row{"label": domain.Str(v)})
	}
	assert.Equal(t, domain.General, New(nil).Detect(dataset([]string{"label"}, rows...)))
}
