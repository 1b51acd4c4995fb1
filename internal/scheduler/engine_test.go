package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler/fixtures"
)

func window(id, teacher string, day, start, end int) scheduler.Window {
	return scheduler.Window{ID: id, TeacherID: teacher, Interval: scheduler.NewInterval(day, scheduler.Hours(start), scheduler.Hours(end))}
}

func TestAssignFirstFitWithinAvailability(t *testing.T) {
	engine := scheduler.NewEngine(scheduler.EngineConfig{})
	result := engine.Assign(scheduler.Input{
		StudentID: "X",
		Subjects: []scheduler.SubjectDemand{
			{SubjectID: "S1", TeacherID: "T"},
			{SubjectID: "S2", TeacherID: "T"},
		},
		Availability: scheduler.NewRegistry(window("w1", "T", 1, 9, 12)),
	})

	require.Len(t, result.Placements, 2)
	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 2, result.Requested)
	assert.Empty(t, result.Unscheduled)

	assert.Equal(t, "S1", result.Placements[0].SubjectID)
	assert.Equal(t, scheduler.NewInterval(1, scheduler.Hours(9), scheduler.Hours(10)), result.Placements[0].Interval)
	assert.Equal(t, "S2", result.Placements[1].SubjectID)
	assert.Equal(t, scheduler.NewInterval(1, scheduler.Hours(10), scheduler.Hours(11)), result.Placements[1].Interval)
	for _, p := range result.Placements {
		assert.Equal(t, "X", p.StudentID)
		assert.Equal(t, "T", p.TeacherID)
		assert.Regexp(t, `^A\d{3}$`, p.Room)
	}
}

func TestAssignPartialWhenSlotsRunOut(t *testing.T) {
	engine := scheduler.NewEngine(scheduler.EngineConfig{})
	result := engine.Assign(scheduler.Input{
		StudentID: "X",
		Subjects: []scheduler.SubjectDemand{
			{SubjectID: "S1", TeacherID: "T"},
			{SubjectID: "S2", TeacherID: "T"},
			{SubjectID: "S3", TeacherID: "T"},
		},
		Availability: scheduler.NewRegistry(window("w1", "T", 2, 9, 11)),
	})

	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 3, result.Requested)
	require.Len(t, result.Unscheduled, 1)
	assert.Equal(t, "S3", result.Unscheduled[0].SubjectID)
}

func TestAssignRespectsOtherStudentsBookings(t *testing.T) {
	engine := scheduler.NewEngine(scheduler.EngineConfig{})
	existing := []scheduler.Booking{{
		EntryID:   "e1",
		SubjectID: "S9",
		StudentID: "Y",
		TeacherID: "T",
		Interval:  scheduler.NewInterval(1, scheduler.Hours(9), scheduler.Hours(10)),
	}}
	result := engine.Assign(scheduler.Input{
		StudentID:    "X",
		Subjects:     []scheduler.SubjectDemand{{SubjectID: "S1", TeacherID: "T"}},
		Availability: scheduler.NewRegistry(window("w1", "T", 1, 9, 12)),
		Existing:     existing,
	})

	require.Len(t, result.Placements, 1)
	assert.Equal(t, scheduler.Hours(10), result.Placements[0].Start)
}

func TestAssignWithoutAvailabilityLeavesEverythingUnscheduled(t *testing.T) {
	engine := scheduler.NewEngine(scheduler.EngineConfig{})
	result := engine.Assign(scheduler.Input{
		StudentID: "X",
		Subjects:  []scheduler.SubjectDemand{{SubjectID: "S1", TeacherID: "T"}},
	})
	assert.Zero(t, result.Scheduled)
	assert.Len(t, result.Unscheduled, 1)
}

func TestAssignUsesConfiguredRooms(t *testing.T) {
	engine := scheduler.NewEngine(scheduler.EngineConfig{Rooms: []string{"LAB-1", "LAB-2"}, CheckRooms: true})
	existing := []scheduler.Booking{{
		EntryID:   "e1",
		StudentID: "Y",
		TeacherID: "T2",
		Room:      "lab-1",
		Interval:  scheduler.NewInterval(1, scheduler.Hours(9), scheduler.Hours(10)),
	}}
	result := engine.Assign(scheduler.Input{
		StudentID:    "X",
		Subjects:     []scheduler.SubjectDemand{{SubjectID: "S1", TeacherID: "T"}},
		Availability: scheduler.NewRegistry(window("w1", "T", 1, 9, 10)),
		Existing:     existing,
	})
	require.Len(t, result.Placements, 1)
	assert.Equal(t, "LAB-2", result.Placements[0].Room)
}

func TestAssignIsDeterministic(t *testing.T) {
	ds := fixtures.New(42).Dataset(fixtures.Options{Teachers: 6, Students: 2, SubjectsPerTeacher: 2})
	engine := scheduler.NewEngine(scheduler.EngineConfig{})
	in := scheduler.Input{
		StudentID:    ds.Students[0].ID,
		Subjects:     ds.Demands(),
		Availability: scheduler.NewRegistry(ds.Windows()...),
	}

	first := engine.Assign(in)
	second := engine.Assign(in)
	assert.Equal(t, first, second)
}

func TestAssignNeverDoubleBooks(t *testing.T) {
	for _, seed := range []int64{1, 7, 99, 2024} {
		ds := fixtures.New(seed).Dataset(fixtures.Options{Teachers: 8, Students: 6, SubjectsPerTeacher: 2})
		registry := scheduler.NewRegistry(ds.Windows()...)
		engine := scheduler.NewEngine(scheduler.EngineConfig{})

		var booked []scheduler.Booking
		for _, student := range ds.Students {
			result := engine.Assign(scheduler.Input{
				StudentID:    student.ID,
				Subjects:     ds.Demands(),
				Availability: registry,
				Existing:     booked,
			})
			assert.Equal(t, result.Requested, result.Scheduled+len(result.Unscheduled))
			for _, p := range result.Placements {
				assert.True(t, registry.IsAvailable(p.TeacherID, p.Interval), "seed %d: %s outside availability", seed, p.Interval)
			}
			booked = append(booked, result.Placements...)
		}

		for i := range booked {
			for j := i + 1; j < len(booked); j++ {
				a, b := booked[i], booked[j]
				if !a.Overlaps(b.Interval) {
					continue
				}
				assert.NotEqual(t, a.StudentID, b.StudentID, "seed %d: student double booked", seed)
				assert.NotEqual(t, a.TeacherID, b.TeacherID, "seed %d: teacher double booked", seed)
			}
		}
	}
}

func TestPlaceholderRoomIsStable(t *testing.T) {
	iv := scheduler.NewInterval(3, scheduler.Hours(14), scheduler.Hours(15))
	room := scheduler.PlaceholderRoom("X", "S1", iv)
	assert.Equal(t, room, scheduler.PlaceholderRoom("X", "S1", iv))
	assert.Regexp(t, `^A\d{3}$`, room)
}
