package models

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// TimetableEntry places one subject for one student with one teacher in one interval.
type TimetableEntry struct {
	ID        string `db:"id" json:"id"`
	SubjectID string `db:"subject_id" json:"subjectId"`
	TeacherID string `db:"teacher_id" json:"teacherId"`
	StudentID string `db:"student_id" json:"studentId"`
	scheduler.Interval
	Room      *string   `db:"room" json:"room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Booking converts the entry into its scheduling form.
func (e TimetableEntry) Booking() scheduler.Booking {
	b := scheduler.Booking{
		EntryID:   e.ID,
		SubjectID: e.SubjectID,
		StudentID: e.StudentID,
		TeacherID: e.TeacherID,
		Interval:  e.Interval,
	}
	if e.Room != nil {
		b.Room = *e.Room
	}
	return b
}

// EntryFromBooking builds an unsaved entry from an engine placement.
func EntryFromBooking(b scheduler.Booking) TimetableEntry {
	entry := TimetableEntry{
		ID:        b.EntryID,
		SubjectID: b.SubjectID,
		TeacherID: b.TeacherID,
		StudentID: b.StudentID,
		Interval:  b.Interval,
	}
	if b.Room != "" {
		room := b.Room
		entry.Room = &room
	}
	return entry
}

// Bookings converts a slice of entries.
func Bookings(entries []TimetableEntry) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Booking())
	}
	return out
}

// TimetableEntryDetail adds display names for listings and exports.
type TimetableEntryDetail struct {
	TimetableEntry
	SubjectName string `db:"subject_name" json:"subjectName"`
	SubjectCode string `db:"subject_code" json:"subjectCode"`
	TeacherName string `db:"teacher_name" json:"teacherName"`
	StudentName string `db:"student_name" json:"studentName"`
}

// TimetableFilter is the typed optional filter set; present fields are ANDed.
type TimetableFilter struct {
	TeacherID  string
	TeacherIDs []string
	StudentID  string
	SubjectID  string
	DayOfWeek  *int
	Page       int
	PageSize   int
}

// UnscheduledSubject is a subject the generator could not place.
type UnscheduledSubject struct {
	SubjectID string `json:"subjectId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	TeacherID string `json:"teacherId"`
}

// GenerationResult summarises one generation run for a student.
type GenerationResult struct {
	StudentID      string               `json:"studentId"`
	CreatedEntries []TimetableEntry     `json:"createdEntries"`
	ScheduledCount int                  `json:"scheduledCount"`
	RequestedCount int                  `json:"requestedCount"`
	Unscheduled    []UnscheduledSubject `json:"unscheduled"`
}
