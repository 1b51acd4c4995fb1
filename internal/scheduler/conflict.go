package scheduler

import "strings"

// Conflict dimensions.
const (
	DimensionStudent = "STUDENT"
	DimensionTeacher = "TEACHER"
	DimensionRoom    = "ROOM"
)

// Booking is the scheduling view of a timetable entry.
type Booking struct {
	EntryID   string
	SubjectID string
	StudentID string
	TeacherID string
	Room      string
	Interval
}

// Conflict names the dimension on which a candidate collides with an existing booking.
type Conflict struct {
	Dimension string
	With      Booking
}

// HasConflict scans existing linearly and reports whether candidate double-books
// its student or its teacher. Bookings sharing the candidate's EntryID are ignored.
func HasConflict(candidate Booking, existing []Booking) bool {
	for _, b := range existing {
		if collides(candidate, b) != "" {
			return true
		}
	}
	return false
}

// FindConflicts returns every collision of candidate against existing.
// Room collisions are reported only when checkRooms is set.
func FindConflicts(candidate Booking, existing []Booking, checkRooms bool) []Conflict {
	var out []Conflict
	for _, b := range existing {
		if candidate.EntryID != "" && b.EntryID == candidate.EntryID {
			continue
		}
		if !b.Overlaps(candidate.Interval) {
			continue
		}
		if b.StudentID == candidate.StudentID {
			out = append(out, Conflict{Dimension: DimensionStudent, With: b})
		}
		if b.TeacherID == candidate.TeacherID {
			out = append(out, Conflict{Dimension: DimensionTeacher, With: b})
		}
		if checkRooms && sameRoom(b.Room, candidate.Room) {
			out = append(out, Conflict{Dimension: DimensionRoom, With: b})
		}
	}
	return out
}

func collides(candidate, b Booking) string {
	if candidate.EntryID != "" && b.EntryID == candidate.EntryID {
		return ""
	}
	if !b.Overlaps(candidate.Interval) {
		return ""
	}
	switch {
	case b.StudentID == candidate.StudentID:
		return DimensionStudent
	case b.TeacherID == candidate.TeacherID:
		return DimensionTeacher
	}
	return ""
}

func sameRoom(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

type ledgerKey struct {
	dimension string
	id        string
	day       int
}

// Ledger indexes bookings by (student|teacher|room, day) so a candidate only
// scans the bookings that can possibly collide with it.
type Ledger struct {
	checkRooms bool
	index      map[ledgerKey][]Booking
}

// NewLedger builds a ledger seeded with existing bookings.
func NewLedger(checkRooms bool, existing ...Booking) *Ledger {
	l := &Ledger{checkRooms: checkRooms, index: make(map[ledgerKey][]Booking)}
	for _, b := range existing {
		l.Add(b)
	}
	return l
}

// Add records an accepted booking.
func (l *Ledger) Add(b Booking) {
	l.index[ledgerKey{DimensionStudent, b.StudentID, b.DayOfWeek}] = append(l.index[ledgerKey{DimensionStudent, b.StudentID, b.DayOfWeek}], b)
	l.index[ledgerKey{DimensionTeacher, b.TeacherID, b.DayOfWeek}] = append(l.index[ledgerKey{DimensionTeacher, b.TeacherID, b.DayOfWeek}], b)
	if room := normalizeRoom(b.Room); room != "" {
		l.index[ledgerKey{DimensionRoom, room, b.DayOfWeek}] = append(l.index[ledgerKey{DimensionRoom, room, b.DayOfWeek}], b)
	}
}

// Conflicts returns collisions of candidate with the recorded bookings.
func (l *Ledger) Conflicts(candidate Booking) []Conflict {
	var out []Conflict
	out = l.scan(out, DimensionStudent, candidate.StudentID, candidate)
	out = l.scan(out, DimensionTeacher, candidate.TeacherID, candidate)
	if l.checkRooms {
		if room := normalizeRoom(candidate.Room); room != "" {
			out = l.scan(out, DimensionRoom, room, candidate)
		}
	}
	return out
}

// HasConflict reports whether candidate collides with any recorded booking.
func (l *Ledger) HasConflict(candidate Booking) bool {
	return len(l.Conflicts(candidate)) > 0
}

// RoomFree reports whether no recorded booking holds room during iv.
func (l *Ledger) RoomFree(room string, iv Interval) bool {
	for _, b := range l.index[ledgerKey{DimensionRoom, normalizeRoom(room), iv.DayOfWeek}] {
		if b.Overlaps(iv) {
			return false
		}
	}
	return true
}

func (l *Ledger) scan(out []Conflict, dimension, id string, candidate Booking) []Conflict {
	if id == "" {
		return out
	}
	for _, b := range l.index[ledgerKey{dimension, id, candidate.DayOfWeek}] {
		if candidate.EntryID != "" && b.EntryID == candidate.EntryID {
			continue
		}
		if b.Overlaps(candidate.Interval) {
			out = append(out, Conflict{Dimension: dimension, With: b})
		}
	}
	return out
}

func normalizeRoom(room string) string {
	return strings.ToUpper(strings.TrimSpace(room))
}
