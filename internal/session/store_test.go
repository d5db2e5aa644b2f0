package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "integralq/internal/errors"
	"integralq/pkg/contracts/domain"
)

func rows(n int) *domain.CleanedDataset {
	ds := &domain.CleanedDataset{Headers: []string{"n"}}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, domain.Row{"n": domain.Num(float64(i))})
	}
	return ds
}

func TestPutGet(t *testing.T) {
	s := NewStore(time.Minute)
	report := &domain.AnalysisReport{}
	sess := s.Put(rows(3), report)

	assert.Len(t, sess.ID, 36)
	assert.Equal(t, sess.ID, report.ID)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPutKeepsRunID(t *testing.T) {
	s := NewStore(time.Minute)
	sess := s.Put(rows(1), &domain.AnalysisReport{ID: "run-42"})
	assert.Equal(t, "run-42", sess.ID)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }

	sess := s.Put(rows(1), nil)
	now = now.Add(59 * time.Second)
	_, err := s.Get(sess.ID)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestPutEvictsExpired(t *testing.T) {
	now := time.Now()
	s := NewStore(time.Second)
	s.now = func() time.Time { return now }

	s.Put(rows(1), nil)
	s.Put(rows(1), nil)
	now = now.Add(2 * time.Second)
	s.Put(rows(1), nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.sessions, 1)
}

func TestPage(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Put(rows(250), nil).ID

	tests := []struct {
		page, limit        int
		wantPage, wantLim  int
		wantLen, wantPages int
		first              float64
	}{
		{1, 100, 1, 100, 100, 3, 0},
		{3, 100, 3, 100, 50, 3, 200},
		{4, 100, 4, 100, 0, 3, -1},
		{0, 0, 1, DefaultPageLimit, 100, 3, 0},
		{2, 5000, 2, MaxPageLimit, 0, 1, -1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d,limit=%d", tt.page, tt.limit), func(t *testing.T) {
			p, err := s.Page(id, tt.page, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLim, p.Limit)
			assert.Equal(t, 250, p.TotalRows)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			require.Len(t, p.Data, tt.wantLen)
			assert.NotNil(t, p.Data)
			if tt.first >= 0 {
				v, _ := p.Data[0]["n"].Number()
				assert.Equal(t, tt.first, v)
			}
		})
	}

	_, err := s.Page("missing", 1, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
