package models

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// Availability is a window during which a teacher may be booked.
type Availability struct {
	ID        string `db:"id" json:"id"`
	TeacherID string `db:"teacher_id" json:"teacherId"`
	scheduler.Interval
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Window converts the record into its scheduling form.
func (a Availability) Window() scheduler.Window {
	return scheduler.Window{ID: a.ID, TeacherID: a.TeacherID, Interval: a.Interval}
}

// AvailabilityFilter narrows availability listings; nil or empty fields are ignored.
type AvailabilityFilter struct {
	TeacherID  string
	TeacherIDs []string
	DayOfWeek  *int
}

// Windows converts a slice of availability records.
func Windows(items []Availability) []scheduler.Window {
	out := make([]scheduler.Window, 0, len(items))
	for _, a := range items {
		out = append(out, a.Window())
	}
	return out
}
