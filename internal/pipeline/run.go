package pipeline

import (
	"sync"
	"time"

	"integralq/internal/cleaner"
	"integralq/internal/merger"
	"integralq/pkg/contracts/domain"
	"integralq/pkg/contracts/events"
)

// RunStatus is the overall state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Input is what a run analyses.
type Input struct {
	Files      []cleaner.File
	DomainHint domain.Domain
}

// Run is the shared state steps read from and write to.
type Run struct {
	ID    string
	Input Input

	Cleaned []*domain.CleanedDataset
	Merge   *merger.Result
	Dataset *domain.CleanedDataset
	Report  *domain.AnalysisReport

	mu        sync.RWMutex
	status    RunStatus
	startedAt time.Time
	updatedAt time.Time
	steps     []*StepState
	err       error
}

func newRun(id string, in Input, steps []Step) *Run {
	now := time.Now()
	r := &Run{
		ID:        id,
		Input:     in,
		Report:    &domain.AnalysisReport{CreatedAt: now.UTC(), Charts: []domain.ChartSpec{}},
		status:    RunStatusRunning,
		startedAt: now,
		updatedAt: now,
	}
	for _, s := range steps {
		r.steps = append(r.steps, NewStepState(s.ID(), s.Name()))
	}
	return r
}

// Step returns the state of step id, or nil.
func (r *Run) Step(id string) *StepState {
	for _, s := range r.steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Status returns the overall status.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Run) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatedAt = time.Now()
	r.err = err
	if err != nil {
		r.status = RunStatusFailed
		return
	}
	r.status = RunStatusCompleted
}

func (r *Run) touch() {
	r.mu.Lock()
	r.updatedAt = time.Now()
	r.mu.Unlock()
}

// Timings returns per-step durations in execution order.
func (r *Run) Timings() []domain.StepTiming {
	out := make([]domain.StepTiming, 0, len(r.steps))
	for _, s := range r.steps {
		snap := s.Snapshot()
		t := domain.StepTiming{Step: s.ID, Status: snap.Status, Duration: s.Duration()}
		if snap.Status == string(StepStatusFailed) {
			t.Error = snap.Message
		}
		out = append(out, t)
	}
	return out
}

// Snapshot describes the run for progress listeners.
func (r *Run) Snapshot() events.AnalysisSnapshot {
	snap := events.AnalysisSnapshot{RunID: r.ID, Steps: make([]events.StepSnapshot, 0, len(r.steps))}
	done := 0
	for _, s := range r.steps {
		st := s.Snapshot()
		snap.Steps = append(snap.Steps, st)
		switch StepStatus(st.Status) {
		case StepStatusActive:
			snap.CurrentStep = st.ID
		case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
			done++
		}
	}
	if len(r.steps) > 0 {
		snap.Progress = done * 100 / len(r.steps)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap.Status = string(r.status)
	snap.StartedAt = r.startedAt
	snap.UpdatedAt = r.updatedAt
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	return snap
}

// ProgressReporter receives a snapshot after every step transition.
type ProgressReporter interface {
	ReportProgress(snapshot events.AnalysisSnapshot)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(events.AnalysisSnapshot)

// ReportProgress calls f.
func (f ProgressFunc) ReportProgress(s events.AnalysisSnapshot) { f(s) }
