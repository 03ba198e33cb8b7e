// Package session holds the application's analysis state between runs.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/seanblong/orgsearch/internal/corpus"
)

type State string

const (
	Empty   State = "empty"
	Indexed State = "indexed"
)

var (
	ErrNotIndexed    = errors.New("no analysis has completed yet")
	ErrRunInProgress = errors.New("an analysis run is already in progress")
)

// Session owns the current index. A failed run never touches it.
type Session struct {
	mu      sync.RWMutex
	index   *corpus.Index
	running bool
}

func New() *Session { return &Session{} }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return Empty
	}
	return Indexed
}

// Transition installs idx as the current index, discarding any prior one.
func (s *Session) Transition(idx *corpus.Index) {
	if idx == nil {
		return
	}
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

func (s *Session) Current() (*corpus.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, ErrNotIndexed
	}
	return s.index, nil
}

// TryBeginRun claims the single analysis slot.
func (s *Session) TryBeginRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	s.running = true
	return nil
}

func (s *Session) EndRun() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Status is a point-in-time view of the session.
type Status struct {
	State     State     `json:"state"`
	Running   bool      `json:"running"`
	RunID     string    `json:"run_id,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitzero"`
	Documents int       `json:"documents"`
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{State: Empty, Running: s.running}
	if s.index != nil {
		st.State = Indexed
		st.RunID = s.index.RunID()
		st.BuiltAt = s.index.BuiltAt()
		st.Documents = s.index.Len()
	}
	return st
}
