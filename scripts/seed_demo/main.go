package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler/fixtures"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type created struct {
	ID string `json:"id"`
}

type summary struct {
	Teachers     int
	Availability int
	Subjects     int
	Students     int
	Jobs         int
}

type seeder struct {
	client *http.Client
	base   string
}

func main() {
	var (
		base     string
		seed     int64
		teachers int
		students int
		perT     int
		generate bool
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.Int64Var(&seed, "seed", 42, "Fixture seed")
	flag.IntVar(&teachers, "teachers", 8, "Number of teachers")
	flag.IntVar(&students, "students", 20, "Number of students")
	flag.IntVar(&perT, "subjects-per-teacher", 1, "Subjects owned by each teacher")
	flag.BoolVar(&generate, "generate", true, "Queue timetable generation for every seeded student")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	ds := fixtures.New(seed).Dataset(fixtures.Options{Teachers: teachers, Students: students, SubjectsPerTeacher: perT})
	s := &seeder{client: &http.Client{Timeout: timeout}, base: strings.TrimRight(base, "/")}

	sum, err := s.run(ds, generate)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	fmt.Printf("Seeded %d teachers, %d availability windows, %d subjects, %d students; queued %d generation jobs\n",
		sum.Teachers, sum.Availability, sum.Subjects, sum.Students, sum.Jobs)
}

func (s *seeder) run(ds fixtures.Dataset, generate bool) (summary, error) {
	var sum summary
	teacherIDs := make(map[string]string, len(ds.Teachers))

	for _, t := range ds.Teachers {
		var out created
		if err := s.post("/teachers", map[string]interface{}{
			"name": t.Name, "email": t.Email, "department": t.Department,
		}, &out); err != nil {
			return sum, fmt.Errorf("teacher %s: %w", t.ID, err)
		}
		teacherIDs[t.ID] = out.ID
		sum.Teachers++

		for _, iv := range t.Availability {
			if err := s.post("/availability", map[string]interface{}{
				"teacherId": out.ID,
				"dayOfWeek": iv.DayOfWeek,
				"startTime": iv.Start.String(),
				"endTime":   iv.End.String(),
			}, nil); err != nil {
				return sum, fmt.Errorf("availability of %s: %w", t.ID, err)
			}
			sum.Availability++
		}
	}

	for _, subject := range ds.Subjects {
		if err := s.post("/subjects", map[string]interface{}{
			"name":        subject.Name,
			"code":        subject.Code,
			"description": subject.Description,
			"teacherId":   teacherIDs[subject.TeacherID],
		}, nil); err != nil {
			return sum, fmt.Errorf("subject %s: %w", subject.Code, err)
		}
		sum.Subjects++
	}

	studentIDs := make([]string, 0, len(ds.Students))
	for _, st := range ds.Students {
		var out created
		if err := s.post("/students", map[string]interface{}{
			"name": st.Name, "email": st.Email, "grade": st.Grade,
		}, &out); err != nil {
			return sum, fmt.Errorf("student %s: %w", st.ID, err)
		}
		studentIDs = append(studentIDs, out.ID)
		sum.Students++
	}

	if generate && len(studentIDs) > 0 {
		var out struct {
			Jobs []struct {
				JobID string `json:"jobId"`
			} `json:"jobs"`
		}
		if err := s.post("/timetable/generate/bulk", map[string]interface{}{"studentIds": studentIDs}, &out); err != nil {
			return sum, fmt.Errorf("queue generation: %w", err)
		}
		sum.Jobs = len(out.Jobs)
	}
	return sum, nil
}

func (s *seeder) post(path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if env.Error != nil {
			return fmt.Errorf("%s %s: %s", path, env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(env.Data, dest)
}
