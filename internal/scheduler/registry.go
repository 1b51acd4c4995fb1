package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// Window is an availability interval owned by a teacher.
type Window struct {
	ID        string
	TeacherID string
	Interval
}

// CheckWindow validates candidate against the teacher's other windows.
// A window with the same ID as candidate is treated as the record being edited and skipped.
func CheckWindow(existing []Window, candidate Window) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	for _, w := range existing {
		if w.TeacherID != candidate.TeacherID {
			continue
		}
		if candidate.ID != "" && w.ID == candidate.ID {
			continue
		}
		if w.Overlaps(candidate.Interval) {
			return fmt.Errorf("%w: %s collides with %s", ErrOverlap, candidate.Interval, w.Interval)
		}
	}
	return nil
}

// Registry keeps availability windows grouped by teacher.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	windows map[string][]Window
}

// NewRegistry loads windows without re-validating them; stored data is trusted.
func NewRegistry(windows ...Window) *Registry {
	r := &Registry{windows: make(map[string][]Window)}
	for _, w := range windows {
		r.windows[w.TeacherID] = append(r.windows[w.TeacherID], w)
	}
	for teacherID := range r.windows {
		sortWindows(r.windows[teacherID])
	}
	return r
}

// Add registers a window, failing with ErrInvalidInterval or ErrOverlap.
func (r *Registry) Add(w Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := CheckWindow(r.windows[w.TeacherID], w); err != nil {
		return err
	}
	r.windows[w.TeacherID] = append(r.windows[w.TeacherID], w)
	sortWindows(r.windows[w.TeacherID])
	return nil
}

// Update replaces the window with the same ID, validated against the others.
// It fails with ErrUnknownWindow when no such window is held.
func (r *Registry) Update(w Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.windows[w.TeacherID]
	idx := -1
	for i := range list {
		if list[i].ID == w.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s for teacher %s", ErrUnknownWindow, w.ID, w.TeacherID)
	}
	if err := CheckWindow(list, w); err != nil {
		return err
	}
	list[idx] = w
	sortWindows(list)
	return nil
}

// Remove drops the window with the given ID and reports whether it existed.
func (r *Registry) Remove(teacherID, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.windows[teacherID]
	for i := range list {
		if list[i].ID == id {
			r.windows[teacherID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// IsAvailable is true iff one window of the teacher fully contains iv.
func (r *Registry) IsAvailable(teacherID string, iv Interval) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.windows[teacherID] {
		if w.Contains(iv) {
			return true
		}
	}
	return false
}

// Windows returns a copy of the teacher's windows ordered by day and start time.
func (r *Registry) Windows(teacherID string) []Window {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Window, len(r.windows[teacherID]))
	copy(out, r.windows[teacherID])
	return out
}

func sortWindows(list []Window) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Interval.Less(list[j].Interval)
	})
}
