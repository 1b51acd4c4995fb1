// Package fixtures produces deterministic demo data for tests and local seeding.
// The same seed always yields the same dataset.
package fixtures

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

var firstNames = []string{
	"John", "Sarah", "Michael", "Emily", "David", "Jennifer", "James", "Lisa",
	"Robert", "Michelle", "William", "Amanda", "Richard", "Jessica", "Joseph",
	"Melissa", "Thomas", "Rebecca", "Daniel", "Laura",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Miller", "Davis", "Garcia",
	"Rodriguez", "Wilson", "Martinez", "Anderson", "Taylor", "Thomas", "Moore",
}

var subjectNames = []string{
	"Mathematics", "English", "Physics", "Chemistry", "Biology", "History",
	"Geography", "Computer Science", "Economics", "Business Studies",
	"Accounting", "Art", "Music", "Physical Education", "Psychology",
	"Sociology", "Statistics", "Literature", "Astronomy", "Robotics",
}

// Teacher is a generated teacher with its weekday availability.
type Teacher struct {
	ID           string
	Name         string
	Email        string
	Department   string
	Availability []scheduler.Interval
}

// Subject is a generated subject owned by one teacher.
type Subject struct {
	ID          string
	Name        string
	Code        string
	Description string
	TeacherID   string
}

// Student is a generated learner.
type Student struct {
	ID    string
	Name  string
	Email string
	Grade int
}

// Dataset bundles a generated school.
type Dataset struct {
	Teachers []Teacher
	Subjects []Subject
	Students []Student
}

// Options sizes a dataset.
type Options struct {
	Teachers           int
	Students           int
	SubjectsPerTeacher int
}

// Generator draws fixtures from a private, seeded source.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator for the given seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Dataset builds teachers, their subjects and availability, and students.
func (g *Generator) Dataset(opts Options) Dataset {
	if opts.Teachers <= 0 {
		opts.Teachers = 5
	}
	if opts.Students <= 0 {
		opts.Students = 3
	}
	if opts.SubjectsPerTeacher <= 0 {
		opts.SubjectsPerTeacher = 1
	}

	var ds Dataset
	subjectSeq := 0
	for i := 1; i <= opts.Teachers; i++ {
		teacher := g.Teacher(i)
		ds.Teachers = append(ds.Teachers, teacher)
		for j := 0; j < opts.SubjectsPerTeacher; j++ {
			subjectSeq++
			name := subjectNames[(subjectSeq-1)%len(subjectNames)]
			ds.Subjects = append(ds.Subjects, Subject{
				ID:          fmt.Sprintf("S%03d", subjectSeq),
				Name:        name,
				Code:        fmt.Sprintf("%s-%03d", strings.ToUpper(name[:3]), subjectSeq),
				Description: fmt.Sprintf("%s taught by %s", name, teacher.Name),
				TeacherID:   teacher.ID,
			})
		}
	}
	for i := 1; i <= opts.Students; i++ {
		ds.Students = append(ds.Students, g.Student(i))
	}
	return ds
}

// Teacher generates the n-th teacher. Each weekday gets one window starting
// between 09:00 and 12:00 and ending between 13:00 and 16:00.
func (g *Generator) Teacher(n int) Teacher {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	t := Teacher{
		ID:         fmt.Sprintf("T%03d", n),
		Name:       first + " " + last,
		Email:      fmt.Sprintf("%s.%s.%d@school.test", strings.ToLower(first), strings.ToLower(last), n),
		Department: subjectNames[g.rng.Intn(len(subjectNames))],
	}
	for day := 1; day <= 5; day++ {
		start := 9 + g.rng.Intn(4)
		end := 13 + g.rng.Intn(4)
		t.Availability = append(t.Availability, scheduler.NewInterval(day, scheduler.Hours(start), scheduler.Hours(end)))
	}
	return t
}

// Student generates the n-th student in grades 9-12.
func (g *Generator) Student(n int) Student {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	return Student{
		ID:    fmt.Sprintf("ST%03d", n),
		Name:  first + " " + last,
		Email: fmt.Sprintf("%s.%s.st%d@school.test", strings.ToLower(first), strings.ToLower(last), n),
		Grade: 9 + g.rng.Intn(4),
	}
}

// Windows flattens teacher availability into registry windows.
func (d Dataset) Windows() []scheduler.Window {
	var out []scheduler.Window
	for _, t := range d.Teachers {
		for i, iv := range t.Availability {
			out = append(out, scheduler.Window{ID: fmt.Sprintf("%s-W%d", t.ID, i+1), TeacherID: t.ID, Interval: iv})
		}
	}
	return out
}

// Demands lists the subjects in generation order.
func (d Dataset) Demands() []scheduler.SubjectDemand {
	out := make([]scheduler.SubjectDemand, 0, len(d.Subjects))
	for _, s := range d.Subjects {
		out = append(out, scheduler.SubjectDemand{SubjectID: s.ID, TeacherID: s.TeacherID})
	}
	return out
}
