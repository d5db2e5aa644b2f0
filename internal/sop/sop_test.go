package sop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integralq/pkg/contracts/domain"
)

func TestDefaultCoversEveryDomain(t *testing.T) {
	r := Default()
	for _, d := range append(domain.Candidates(), domain.General) {
		b := r.For(d)
		assert.Equal(t, d, b.Domain)
		assert.NotEmpty(t, b.Rules, d)
		assert.NotEmpty(t, b.PreferredCharts, d)
	}
}

func TestBundleRules(t *testing.T) {
	r := Default()

	hr := r.For(domain.HR)
	assert.True(t, hr.HasRule(RuleNormalizeNames))
	assert.False(t, hr.HasRule(RuleRemoveCurrency))

	finance := r.For(domain.Finance)
	assert.Equal(t, 0, finance.PreferenceRank(domain.ChartWaterfall))
	assert.Equal(t, -1, finance.PreferenceRank(domain.ChartRadar))
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domains:
  hr:
    rules: [trim_whitespace]
    preferred_charts: [radar]
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)

	hr := r.For(domain.HR)
	assert.Equal(t, []string{RuleTrimWhitespace}, hr.Rules)
	assert.Equal(t, []domain.VisualizationType{domain.ChartRadar}, hr.PreferredCharts)
	assert.True(t, r.For(domain.Finance).HasRule(RuleRemoveCurrency), "other domains keep embedded bundles")
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := Parse([]byte("domains:\n  astrology:\n    rules: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("domains:\n  hr:\n    preferred_charts: [donut]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("domains:\n  hr:\n    colour: blue\n"))
	assert.Error(t, err, "strict decoding rejects unknown keys")
}

func TestForFallsBackToGeneral(t *testing.T) {
	r, err := Parse([]byte("domains:\n  general:\n    rules: [handle_nulls]\n"))
	require.NoError(t, err)

	b := r.For(domain.Tech)
	assert.Equal(t, domain.General, b.Domain)
	assert.Equal(t, []string{RuleHandleNulls}, b.Rules)

	empty := (&Registry{}).For(domain.Tech)
	assert.Equal(t, domain.General, empty.Domain)
}
