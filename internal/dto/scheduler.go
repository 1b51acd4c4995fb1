package dto

import "github.com/noah-isme/sma-timetable-api/internal/scheduler"

// IntervalFields is the wire form of a day plus a time range. Times accept an
// integer hour or an "HH:MM" string.
type IntervalFields struct {
	DayOfWeek int              `json:"dayOfWeek"`
	StartTime *scheduler.Clock `json:"startTime" validate:"required"`
	EndTime   *scheduler.Clock `json:"endTime" validate:"required"`
}

// Interval converts the fields; missing times must be caught by validation first.
func (f IntervalFields) Interval() scheduler.Interval {
	var start, end scheduler.Clock
	if f.StartTime != nil {
		start = *f.StartTime
	}
	if f.EndTime != nil {
		end = *f.EndTime
	}
	return scheduler.NewInterval(f.DayOfWeek, start, end)
}

// CreateAvailabilityRequest registers a window for a teacher.
type CreateAvailabilityRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	IntervalFields
}

// UpdateAvailabilityRequest moves an existing window; the owning teacher is fixed.
type UpdateAvailabilityRequest struct {
	IntervalFields
}

// TimetableEntryRequest creates or replaces a manual timetable entry.
// TeacherID may be omitted and is then taken from the subject.
type TimetableEntryRequest struct {
	SubjectID string  `json:"subjectId" validate:"required"`
	TeacherID string  `json:"teacherId"`
	StudentID string  `json:"studentId" validate:"required"`
	Room      *string `json:"room" validate:"omitempty,max=50"`
	IntervalFields
}

// GenerateTimetableRequest asks for a full regeneration of one student's timetable.
type GenerateTimetableRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// BulkGenerateRequest queues regeneration for many students; empty means every student.
type BulkGenerateRequest struct {
	StudentIDs []string `json:"studentIds" validate:"omitempty,max=1000,dive,required"`
}

// GenerationJob links a queued job to its student.
type GenerationJob struct {
	StudentID string `json:"studentId"`
	JobID     string `json:"jobId"`
}

// BulkGenerateResponse lists the jobs accepted by the queue.
type BulkGenerateResponse struct {
	Jobs []GenerationJob `json:"jobs"`
}
