package jobs

import (
	"sync"
	"time"
)

// Status of a tracked job.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// State is the externally visible snapshot of a job.
type State struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Status     Status     `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Tracker keeps the latest state of recent jobs, evicting the oldest past capacity.
// A nil Tracker ignores every call.
type Tracker struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	states   map[string]*State
	now      func() time.Time
}

// NewTracker returns a tracker holding at most capacity jobs.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Tracker{capacity: capacity, states: make(map[string]*State), now: time.Now}
}

// Get returns a copy of the job state.
func (t *Tracker) Get(id string) (State, bool) {
	if t == nil {
		return State{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[id]
	if !ok {
		return State{}, false
	}
	return *s, true
}

func (t *Tracker) queued(job Job) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.states[job.ID]; !exists {
		t.order = append(t.order, job.ID)
	}
	t.states[job.ID] = &State{ID: job.ID, Type: job.Type, Status: StatusQueued, EnqueuedAt: job.Enqueued}
	for len(t.order) > t.capacity {
		delete(t.states, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *Tracker) running(job Job) {
	t.update(job.ID, func(s *State) {
		s.Status = StatusRunning
		s.Attempts = job.Attempt + 1
	})
}

func (t *Tracker) finished(job Job, err error) {
	t.update(job.ID, func(s *State) {
		now := t.now().UTC()
		s.FinishedAt = &now
		if err != nil {
			s.Status = StatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = StatusSucceeded
		s.Error = ""
	})
}

func (t *Tracker) update(id string, fn func(*State)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[id]; ok {
		fn(s)
	}
}
