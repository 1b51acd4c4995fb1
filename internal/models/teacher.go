package models

import "time"

// Teacher represents an instructor who owns subjects and availability windows.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search     string
	Department string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// TeacherDependents counts the records that block deleting a teacher.
type TeacherDependents struct {
	Subjects         int `db:"subjects" json:"subjects"`
	TimetableEntries int `db:"timetable_entries" json:"timetableEntries"`
}

// Any reports whether at least one dependent exists.
func (d TeacherDependents) Any() bool {
	return d.Subjects > 0 || d.TimetableEntries > 0
}
