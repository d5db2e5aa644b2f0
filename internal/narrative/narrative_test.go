package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integralq/internal/config"
	"integralq/pkg/contracts/domain"
)

func sampleReport() *domain.AnalysisReport {
	return &domain.AnalysisReport{
		Domain: domain.HR,
		Dataset: domain.DatasetSummary{
			FileName:    "staff.csv",
			Headers:     []string{"employee_id", "department", "salary", "hire_date"},
			RowCount:    12,
			ColumnCount: 4,
		},
		Statistics: &domain.StatisticalResults{
			NumericSummaries: []domain.NumericSummary{
				{Column: "employee_id", Count: 12, Mean: 6.5, Min: 1, Max: 12},
				{Column: "salary", Count: 12, Mean: 61250.5, Median: 60000, Min: 42000, Max: 90000},
			},
			Models: []domain.ModelResult{},
		},
	}
}

func sampleDataset() *domain.CleanedDataset {
	ds := &domain.CleanedDataset{
		Headers: []string{"department", "salary"},
		ColumnClassification: map[string]domain.ColumnType{
			"department": domain.ColumnCategorical,
			"salary":     domain.ColumnNumeric,
		},
	}
	for i, dept := range []string{"Engineering", "Support", "Engineering"} {
		ds.Rows = append(ds.Rows, domain.Row{
			"department": domain.Str(dept),
			"salary":     domain.Num(float64(50000 + i*1000)),
		})
	}
	return ds
}

type stubGenerator struct {
	text  string
	err   error
	calls int
	last  Prompt
}

func (s *stubGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	s.calls++
	s.last = p
	return s.text, s.err
}

func TestSummarizeUsesModelOutput(t *testing.T) {
	gen := &stubGenerator{text: "**BLUF:** Payroll is concentrated in Engineering.\n" +
		"1. Salaries range from 42k to 90k.\n" +
		"- Engineering holds half of the headcount.\n" +
		"* Hiring slowed in the last quarter.\n" +
		"- An extra bullet that is dropped."}
	n := NewNarrator(nil, gen, "ollama", nil)

	got := n.Summarize(context.Background(), sampleReport())

	assert.Equal(t, domain.NarrativeAI, got.Source)
	assert.Equal(t, "ollama", got.Provider)
	assert.Equal(t, "Payroll is concentrated in Engineering.", got.BLUF)
	assert.Equal(t, []string{
		"Salaries range from 42k to 90k.",
		"Engineering holds half of the headcount.",
		"Hiring slowed in the last quarter.",
	}, got.Bullets)
	assert.Equal(t, "HR Executive Summary", got.Title)

	assert.Contains(t, gen.last.UserPrompt, "Domain: HR")
	assert.Contains(t, gen.last.UserPrompt, "Rows: 12")
	assert.Contains(t, gen.last.UserPrompt, "compensation", "domain focus is included")
	assert.Equal(t, DefaultTemperature, gen.last.Temperature)
}

func TestSummarizeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{"no model configured", nil},
		{"model error", &stubGenerator{err: errors.New("boom")}},
		{"blank output", &stubGenerator{text: "   \n"}},
		{"bluf only", &stubGenerator{text: "BLUF: nothing else"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewNarrator(nil, tt.gen, "ollama", nil).Summarize(context.Background(), sampleReport())
			assert.Equal(t, domain.NarrativeFallback, got.Source)
			assert.Empty(t, got.Provider)
			assert.Len(t, got.Bullets, MaxBullets)
		})
	}
}

func TestFallbackNarrative(t *testing.T) {
	r := sampleReport()
	r.Forecast = &domain.ForecastResult{
		Metric: "salary", Trend: domain.TrendUpward,
		Forecast: []domain.ForecastPoint{{Date: "2024-05-01", Value: 64000}},
	}

	got := FallbackNarrative(r)
	assert.Equal(t, "staff.csv contains 12 rows across 4 columns of HR data.", got.BLUF)
	require.Len(t, got.Bullets, 3)
	assert.Equal(t, "Average Salary is 61250.50 (range 42000 to 90000 across 12 values).", got.Bullets[0],
		"identifier columns are skipped for the headline figure")
	assert.Equal(t, "No meaningful relationships between numeric columns were found.", got.Bullets[1])
	assert.Equal(t, "Salary trend is upward; next period projected at 64000.", got.Bullets[2])

	empty := FallbackNarrative(nil)
	assert.Equal(t, domain.NarrativeFallback, empty.Source)
	assert.NotNil(t, empty.Bullets)
}

func TestSummarizeRespectsTimeout(t *testing.T) {
	slow := generatorFunc(func(ctx context.Context, p Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	n := NewNarrator(nil, slow, "ollama", nil, WithTimeout(20*time.Millisecond))

	start := time.Now()
	got := n.Summarize(context.Background(), sampleReport())
	assert.Equal(t, domain.NarrativeFallback, got.Source)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type generatorFunc func(ctx context.Context, p Prompt) (string, error)

func (f generatorFunc) Generate(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

func TestParseSummary(t *testing.T) {
	bluf, bullets := ParseSummary("Summary\nbluf: Costs fell.\n\n• first\n2) second\n")
	assert.Equal(t, "Costs fell.", bluf)
	assert.Equal(t, []string{"Summary", "first", "second"}, bullets)
}

func TestAnswer(t *testing.T) {
	cc := ChatContext{Report: sampleReport(), Dataset: sampleDataset()}

	t.Run("model answer", func(t *testing.T) {
		gen := &stubGenerator{text: "Engineering is the largest department."}
		got := NewNarrator(nil, gen, "openai", nil).Answer(context.Background(), cc, "Which department is largest?")
		assert.Equal(t, domain.NarrativeAI, got.Source)
		assert.Equal(t, "Engineering is the largest department.", got.Text)
		assert.Contains(t, gen.last.UserPrompt, "Question: Which department is largest?")
		assert.Contains(t, gen.last.UserPrompt, `most common "Engineering" (2 rows)`)
	})

	t.Run("fallback names the column", func(t *testing.T) {
		got := NewNarrator(nil, nil, "", nil).Answer(context.Background(), cc, "What about salary?")
		assert.Equal(t, domain.NarrativeFallback, got.Source)
		assert.Contains(t, got.Text, "Salary averages 61250.50")
	})

	t.Run("fallback categorical", func(t *testing.T) {
		got := FallbackAnswer(cc, "tell me about department")
		assert.Equal(t, `Department has 2 distinct values; the most common is "Engineering" (2 rows).`, got)
	})

	t.Run("fallback overview", func(t *testing.T) {
		got := FallbackAnswer(cc, "anything interesting?")
		assert.Contains(t, got, "3 rows and 2 columns")
	})

	t.Run("empty question skips model", func(t *testing.T) {
		gen := &stubGenerator{text: "unused"}
		got := NewNarrator(nil, gen, "ollama", nil).Answer(context.Background(), cc, "  ")
		assert.Equal(t, domain.NarrativeFallback, got.Source)
		assert.Zero(t, gen.calls)
	})
}

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, 0.3, req.Options["temperature"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "  hello  "},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "", time.Second, 0)
	got, err := c.Generate(context.Background(), Prompt{SystemPrompt: "sys", UserPrompt: "hi", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "secret", "gpt-test", time.Second, 0)
	got, err := c.Generate(context.Background(), Prompt{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"loading model"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": "ready"}})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m", time.Second, 1)
	c.transport.baseDelay = time.Millisecond
	got, err := c.Generate(context.Background(), Prompt{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrors(t *testing.T) {
	t.Run("bad request is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient(srv.URL, "k", "", time.Second, 3)
		_, err := c.Generate(context.Background(), Prompt{UserPrompt: "hi"})
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
		assert.Equal(t, "model not found", pe.Message)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("unreachable host", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewOllamaClient(url, "m", time.Second, 0)
		_, err := c.Generate(context.Background(), Prompt{UserPrompt: "hi"})
		var ue *UnreachableError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, url, ue.Host)
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		_, err := NewOpenAIClient(srv.URL, "k", "", time.Second, 0).Generate(context.Background(), Prompt{UserPrompt: "hi"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(config.LLMConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = NewGenerator(config.LLMConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, gen)

	_, err = NewGenerator(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err, "openai needs a key")

	_, err = NewGenerator(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
