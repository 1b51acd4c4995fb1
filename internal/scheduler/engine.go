package scheduler

import (
	"fmt"
	"hash/fnv"
)

// SubjectDemand is one subject to place, bound to its single teacher.
type SubjectDemand struct {
	SubjectID string
	TeacherID string
}

// Input is everything one assignment run needs. Subjects are placed in the given order.
type Input struct {
	StudentID    string
	Subjects     []SubjectDemand
	Availability *Registry
	// Existing holds bookings the run must respect (other students sharing a teacher).
	Existing []Booking
}

// Result reports the accepted placements and the subjects left unscheduled.
type Result struct {
	Placements  []Booking
	Unscheduled []SubjectDemand
	Scheduled   int
	Requested   int
}

// EngineConfig tunes the assignment run.
type EngineConfig struct {
	Catalog Catalog
	// Rooms, when set, are tried in order for every accepted slot.
	Rooms []string
	// CheckRooms rejects slots whose room is already booked in an overlapping interval.
	CheckRooms bool
}

// Engine places subjects into the catalog greedily, first fit, without backtracking.
type Engine struct {
	catalog    Catalog
	slots      []Interval
	rooms      []string
	checkRooms bool
}

// NewEngine builds an engine; a zero catalog falls back to DefaultCatalog.
func NewEngine(cfg EngineConfig) *Engine {
	catalog := cfg.Catalog
	if len(catalog.Days) == 0 || len(catalog.Times) == 0 {
		catalog = DefaultCatalog()
	}
	return &Engine{
		catalog:    catalog,
		slots:      catalog.Slots(),
		rooms:      append([]string(nil), cfg.Rooms...),
		checkRooms: cfg.CheckRooms,
	}
}

// Catalog exposes the slot grid the engine walks.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Assign runs one placement pass. It never mutates in and never fails: a subject
// without a feasible slot is returned in Result.Unscheduled.
func (e *Engine) Assign(in Input) Result {
	ledger := NewLedger(e.checkRooms, in.Existing...)
	registry := in.Availability
	if registry == nil {
		registry = NewRegistry()
	}

	result := Result{Requested: len(in.Subjects)}
	for _, subject := range in.Subjects {
		booking, ok := e.place(ledger, registry, in.StudentID, subject)
		if !ok {
			result.Unscheduled = append(result.Unscheduled, subject)
			continue
		}
		ledger.Add(booking)
		result.Placements = append(result.Placements, booking)
	}
	result.Scheduled = len(result.Placements)
	return result
}

func (e *Engine) place(ledger *Ledger, registry *Registry, studentID string, subject SubjectDemand) (Booking, bool) {
	for _, slot := range e.slots {
		if !registry.IsAvailable(subject.TeacherID, slot) {
			continue
		}
		candidate := Booking{
			SubjectID: subject.SubjectID,
			StudentID: studentID,
			TeacherID: subject.TeacherID,
			Interval:  slot,
		}
		if ledger.HasConflict(candidate) {
			continue
		}
		room, ok := e.pickRoom(ledger, candidate)
		if !ok {
			continue
		}
		candidate.Room = room
		return candidate, true
	}
	return Booking{}, false
}

func (e *Engine) pickRoom(ledger *Ledger, b Booking) (string, bool) {
	if len(e.rooms) == 0 {
		return PlaceholderRoom(b.StudentID, b.SubjectID, b.Interval), true
	}
	for _, room := range e.rooms {
		if !e.checkRooms || ledger.RoomFree(room, b.Interval) {
			return room, true
		}
	}
	return "", false
}

// PlaceholderRoom derives a stable room label in A101..A999 so that
// regenerating the same timetable yields the same rooms.
func PlaceholderRoom(studentID, subjectID string, iv Interval) string {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s|%s|%d|%d", studentID, subjectID, iv.DayOfWeek, iv.Start)
	return fmt.Sprintf("A%d", 101+h.Sum32()%899)
}
