package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a day-independent slot, expanded across the working days.
type TimeRange struct {
	Start Clock
	End   Clock
}

// On pins the range to a weekday.
func (t TimeRange) On(day int) Interval {
	return Interval{DayOfWeek: day, Start: t.Start, End: t.End}
}

// Catalog is the grid of candidate slots: days × time ranges.
type Catalog struct {
	Days  []int
	Times []TimeRange
}

// DefaultDays is the working week used unless configured otherwise.
var DefaultDays = []int{1, 2, 3, 4, 5}

// DefaultTimes mirrors the hourly periods with a lunch gap between 12:00 and 14:00.
var DefaultTimes = []TimeRange{
	{Start: Hours(9), End: Hours(10)},
	{Start: Hours(10), End: Hours(11)},
	{Start: Hours(11), End: Hours(12)},
	{Start: Hours(14), End: Hours(15)},
	{Start: Hours(15), End: Hours(16)},
	{Start: Hours(16), End: Hours(17)},
}

// DefaultCatalog returns Monday-Friday with DefaultTimes.
func DefaultCatalog() Catalog {
	return Catalog{Days: append([]int(nil), DefaultDays...), Times: append([]TimeRange(nil), DefaultTimes...)}
}

// NewCatalog normalises days (deduplicated, ascending) and times (ascending start).
func NewCatalog(days []int, times []TimeRange) (Catalog, error) {
	seen := make(map[int]bool, len(days))
	normDays := make([]int, 0, len(days))
	for _, d := range days {
		if d < 1 || d > 7 {
			return Catalog{}, fmt.Errorf("%w: day %d must be between 1 and 7", ErrInvalidInterval, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		normDays = append(normDays, d)
	}
	sort.Ints(normDays)

	normTimes := make([]TimeRange, len(times))
	copy(normTimes, times)
	for _, t := range normTimes {
		if err := t.On(1).Validate(); err != nil {
			return Catalog{}, err
		}
	}
	sort.SliceStable(normTimes, func(i, j int) bool {
		if normTimes[i].Start == normTimes[j].Start {
			return normTimes[i].End < normTimes[j].End
		}
		return normTimes[i].Start < normTimes[j].Start
	})
	if len(normDays) == 0 || len(normTimes) == 0 {
		return Catalog{}, fmt.Errorf("%w: catalog needs at least one day and one slot", ErrInvalidInterval)
	}
	return Catalog{Days: normDays, Times: normTimes}, nil
}

// Slots enumerates candidate intervals in canonical order: day ascending, then start ascending.
func (c Catalog) Slots() []Interval {
	out := make([]Interval, 0, len(c.Days)*len(c.Times))
	for _, day := range c.Days {
		for _, t := range c.Times {
			out = append(out, t.On(day))
		}
	}
	return out
}

// ParseDays reads a list such as "1,2,3,4,5".
func ParseDays(raw []string) ([]int, error) {
	days := make([]int, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		d, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day %q", ErrInvalidInterval, item)
		}
		days = append(days, d)
	}
	return days, nil
}

// ParseTimeRange reads "HH:MM-HH:MM" (hour-only bounds are accepted too).
func ParseTimeRange(raw string) (TimeRange, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return TimeRange{}, fmt.Errorf("%w: slot %q must look like 09:00-10:00", ErrInvalidInterval, raw)
	}
	start, err := ParseClock(startRaw)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := ParseClock(endRaw)
	if err != nil {
		return TimeRange{}, err
	}
	tr := TimeRange{Start: start, End: end}
	if err := tr.On(1).Validate(); err != nil {
		return TimeRange{}, err
	}
	return tr, nil
}

// ParseTimeRanges reads a list of "HH:MM-HH:MM" items.
func ParseTimeRanges(raw []string) ([]TimeRange, error) {
	out := make([]TimeRange, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item) == "" {
			continue
		}
		tr, err := ParseTimeRange(item)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// BuildTimes cuts [dayStart, dayEnd) into periods, skipping any period that
// overlaps one of the breaks.
func BuildTimes(dayStart, dayEnd Clock, period time.Duration, breaks ...TimeRange) []TimeRange {
	step := Clock(period / time.Minute)
	if step <= 0 {
		return nil
	}
	var out []TimeRange
	for start := dayStart; start+step <= dayEnd; start += step {
		candidate := TimeRange{Start: start, End: start + step}
		blocked := false
		for _, b := range breaks {
			if candidate.On(1).Overlaps(b.On(1)) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, candidate)
		}
	}
	return out
}

// ParsePeriodGrid builds the daily slots from a school day such as
// "07:00-15:00" cut into fixed periods, leaving out the listed breaks.
func ParsePeriodGrid(day string, period time.Duration, breaks []string) ([]TimeRange, error) {
	bounds, err := ParseTimeRanges([]string{day})
	if err != nil {
		return nil, err
	}
	if len(bounds) != 1 {
		return nil, fmt.Errorf("%w: school day %q", ErrInvalidInterval, day)
	}
	pauses, err := ParseTimeRanges(breaks)
	if err != nil {
		return nil, err
	}
	times := BuildTimes(bounds[0].Start, bounds[0].End, period, pauses...)
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: period %s leaves no slot in %s", ErrInvalidInterval, period, day)
	}
	return times, nil
}
