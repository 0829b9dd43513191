package pipeline

import (
	"maps"
	"sync"
	"time"

	"matchset/pkg/contracts/domain"
)

// RunStatus represents the overall status of a pipeline run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState is the complete state of one pipeline run. Steps hand artifacts
// to each other through the typed slots below rather than a loose key-value
// bag, so a step reading an artifact no step produced fails to compile.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps map[string]*StepState

	gameLogs   map[string][]domain.GameRecord
	derived    map[string][]domain.DerivedRecord
	matchups   []domain.MatchupRow
	outputPath string
}

// RunTotals aggregates the row counts a run produced
type RunTotals struct {
	Entities    int
	DerivedRows int
	MatchupRows int
}

// NewRunState creates a new run state
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState),
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusFailed
	s.Error = err
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = RunStatusCancelled
}

// Duration returns the duration of the run
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// SetStep registers the runtime state of a step
func (s *RunState) SetStep(id string, state *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[id] = state
}

// Step returns the runtime state of a specific step
func (s *RunState) Step(id string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[id]
}

// Steps returns a snapshot of all step states keyed by step id
func (s *RunState) Steps() map[string]*StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.steps)
}

// SetGameLogs stores the loaded entity game logs
func (s *RunState) SetGameLogs(logs map[string][]domain.GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameLogs = logs
}

// GameLogs returns the loaded entity game logs
func (s *RunState) GameLogs() map[string][]domain.GameRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameLogs
}

// SetDerived stores the per-entity derived summary tables
func (s *RunState) SetDerived(derived map[string][]domain.DerivedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived = derived
}

// Derived returns the per-entity derived summary tables
func (s *RunState) Derived() map[string][]domain.DerivedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.derived
}

// SetMatchups stores the merged matchup table
func (s *RunState) SetMatchups(rows []domain.MatchupRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchups = rows
}

// Matchups returns the merged matchup table
func (s *RunState) Matchups() []domain.MatchupRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchups
}

// SetOutputPath records where the training table was written
func (s *RunState) SetOutputPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputPath = path
}

// OutputPath returns where the training table was written
func (s *RunState) OutputPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputPath
}

// Totals returns the row counts the run has produced so far
func (s *RunState) Totals() RunTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := RunTotals{
		Entities:    len(s.gameLogs),
		MatchupRows: len(s.matchups),
	}
	for _, table := range s.derived {
		totals.DerivedRows += len(table)
	}
	return totals
}
