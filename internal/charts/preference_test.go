package charts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integralq/pkg/contracts/domain"
)

func TestMemoryPreferenceStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStore()

	prefs, err := s.PreferredCharts(ctx, domain.Sales)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	require.NoError(t, s.RecordInteraction(ctx, domain.Sales, domain.ChartPie, []domain.VisualizationType{domain.ChartBar}))
	require.NoError(t, s.RecordInteraction(ctx, domain.Sales, domain.ChartPie, nil))
	require.NoError(t, s.RecordInteraction(ctx, domain.Sales, domain.ChartLine, nil))

	prefs, err = s.PreferredCharts(ctx, domain.Sales)
	require.NoError(t, err)
	assert.Equal(t, []domain.VisualizationType{domain.ChartPie, domain.ChartLine}, prefs)

	other, err := s.PreferredCharts(ctx, domain.HR)
	require.NoError(t, err)
	assert.Empty(t, other, "domains are independent")
}

func TestMemoryPreferenceStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPreferenceStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RecordInteraction(ctx, domain.Tech, domain.ChartScatter, nil)
			_, _ = s.PreferredCharts(ctx, domain.Tech)
		}()
	}
	wg.Wait()

	prefs, err := s.PreferredCharts(ctx, domain.Tech)
	require.NoError(t, err)
	assert.Equal(t, []domain.VisualizationType{domain.ChartScatter}, prefs)
}

func TestRankWeightsTies(t *testing.T) {
	got := RankWeights(map[domain.VisualizationType]float64{
		domain.ChartRadar: 1, domain.ChartBar: 1, domain.ChartPie: 2, domain.ChartLine: -1,
	})
	assert.Equal(t, []domain.VisualizationType{domain.ChartPie, domain.ChartBar, domain.ChartRadar}, got)
}

func TestRerank(t *testing.T) {
	specs := []domain.ChartSpec{
		{ID: "bar", Type: domain.ChartBar, Score: 80, Confidence: 0.8},
		{ID: "line", Type: domain.ChartLine, Score: 75, Confidence: 0.75},
		{ID: "radar", Type: domain.ChartRadar, Score: 50, Confidence: 0.5},
	}

	out := Rerank(specs, []domain.VisualizationType{domain.ChartLine})
	require.Len(t, out, 3)
	assert.Equal(t, "line", out[0].ID)
	assert.Equal(t, 85.0, out[0].Score)
	assert.InDelta(t, 0.85, out[0].Confidence, 1e-9)
	assert.Equal(t, 75.0, specs[1].Score, "input untouched")

	assert.Equal(t, specs, Rerank(specs, nil))
}
