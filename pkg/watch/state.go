package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateFileName is the warm-up history file written next to the bulk cache
const StateFileName = "hashtag_warmup_state.json"

// RunState describes the most recent warm-up run
type RunState struct {
	LastRunTime    time.Time `json:"last_run_time"`
	LastRunSuccess bool      `json:"last_run_success"`
	Refreshed      bool      `json:"refreshed"` // False when the cache was already fresh
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the warm-up scheduler
type WatchState struct {
	LastRun   RunState  `json:"last_run"`
	Runs      int64     `json:"runs"`
	Refreshes int64     `json:"refreshes"`
	Failures  int64     `json:"failures"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateManager handles persisting and loading warm-up state.
// An empty path keeps the state in memory only.
type StateManager struct {
	statePath string
	state     WatchState
	mu        sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(statePath string) *StateManager {
	return &StateManager{statePath: statePath}
}

// Load loads the state from disk
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statePath == "" {
		return nil
	}
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No state file yet, start fresh
			m.state = WatchState{}
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &m.state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	return nil
}

// Save saves the state to disk
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()
	if m.statePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Record stores the outcome of one warm-up run
func (m *StateManager) Record(refreshed bool, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := RunState{
		LastRunTime:    time.Now(),
		LastRunSuccess: runErr == nil,
		Refreshed:      refreshed,
	}
	m.state.Runs++
	if refreshed {
		m.state.Refreshes++
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
		m.state.Failures++
	}
	m.state.LastRun = run
}

// Snapshot returns a copy of the current state
func (m *StateManager) Snapshot() WatchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// HasRun reports whether any warm-up has been recorded
func (m *StateManager) HasRun() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Runs > 0
}
