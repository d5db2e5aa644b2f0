package charts

import (
	"context"
	"math"
	"sort"
	"sync"

	"integralq/pkg/contracts/domain"
)

// Interaction weights.
const (
	SelectedWeight = 1.0
	RejectedWeight = -0.5
)

// PreferenceStore learns which chart types users pick per domain.
type PreferenceStore interface {
	RecordInteraction(ctx context.Context, d domain.Domain, selected domain.VisualizationType, rejected []domain.VisualizationType) error
	PreferredCharts(ctx context.Context, d domain.Domain) ([]domain.VisualizationType, error)
}

// MemoryPreferenceStore keeps weights in process memory.
type MemoryPreferenceStore struct {
	mu      sync.RWMutex
	weights map[domain.Domain]map[domain.VisualizationType]float64
}

// NewMemoryPreferenceStore creates an empty store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{weights: make(map[domain.Domain]map[domain.VisualizationType]float64)}
}

// RecordInteraction credits the selected type and debits the rejected ones.
func (s *MemoryPreferenceStore) RecordInteraction(_ context.Context, d domain.Domain, selected domain.VisualizationType, rejected []domain.VisualizationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.weights[d]
	if !ok {
		w = make(map[domain.VisualizationType]float64)
		s.weights[d] = w
	}
	if selected != "" {
		w[selected] += SelectedWeight
	}
	for _, r := range rejected {
		if r != selected {
			w[r] += RejectedWeight
		}
	}
	return nil
}

// PreferredCharts returns types with a positive weight, heaviest first.
func (s *MemoryPreferenceStore) PreferredCharts(_ context.Context, d domain.Domain) ([]domain.VisualizationType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RankWeights(s.weights[d]), nil
}

// Weights returns a copy of the weights recorded for a domain.
func (s *MemoryPreferenceStore) Weights(_ context.Context, d domain.Domain) (map[domain.VisualizationType]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.VisualizationType]float64, len(s.weights[d]))
	for t, w := range s.weights[d] {
		out[t] = w
	}
	return out, nil
}

// RankWeights orders chart types with positive weight by weight descending,
// breaking ties by the canonical chart order.
func RankWeights(weights map[domain.VisualizationType]float64) []domain.VisualizationType {
	var out []domain.VisualizationType
	for _, t := range domain.AllVisualizationTypes() {
		if weights[t] > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return weights[out[i]] > weights[out[j]] })
	return out
}

// Rerank boosts specs whose type appears in preferred, the first preference
// most, and re-sorts by score. The input slice is not modified.
func Rerank(specs []domain.ChartSpec, preferred []domain.VisualizationType) []domain.ChartSpec {
	out := append([]domain.ChartSpec(nil), specs...)
	if len(preferred) == 0 {
		return out
	}
	bonus := make(map[domain.VisualizationType]float64, len(preferred))
	for i, t := range preferred {
		if _, dup := bonus[t]; !dup {
			bonus[t] = math.Max(10-2*float64(i), 2)
		}
	}
	for i := range out {
		if b, ok := bonus[out[i].Type]; ok {
			out[i].Score = math.Min(out[i].Score+b, 100)
			out[i].Confidence = out[i].Score / 100
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
