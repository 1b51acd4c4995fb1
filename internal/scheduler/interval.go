package scheduler

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds a Clock value; 24:00 is accepted as an end of day marker.
const MinutesPerDay = 24 * 60

var (
	// ErrInvalidInterval is returned for malformed days or time ranges.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrOverlap is returned when an availability window collides with a sibling window.
	ErrOverlap = errors.New("interval overlaps an existing window")
	// ErrUnknownWindow is returned when updating a window the registry does not hold.
	ErrUnknownWindow = errors.New("window not registered")
)

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// NewClock builds a Clock from hour and minute parts.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// Hours builds a Clock on the hour.
func Hours(hour int) Clock {
	return NewClock(hour, 0)
}

// ParseClock accepts "H", "HH", "H:MM" and "HH:MM".
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty time", ErrInvalidInterval)
	}
	hourPart, minutePart, hasMinutes := strings.Cut(raw, ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidInterval, raw)
	}
	minute := 0
	if hasMinutes {
		if len(minutePart) != 2 {
			return 0, fmt.Errorf("%w: bad minutes in %q", ErrInvalidInterval, raw)
		}
		minute, err = strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 {
			return 0, fmt.Errorf("%w: bad minutes in %q", ErrInvalidInterval, raw)
		}
	}
	c := NewClock(hour, minute)
	if hour < 0 || !c.Valid() {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidInterval, raw)
	}
	return c, nil
}

// Valid reports whether the clock lies within a single day.
func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// Hour returns the hour part.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute part.
func (c Clock) Minute() int { return int(c) % 60 }

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalJSON always emits the HH:MM form.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts an integer hour (9) or an "HH:MM" string.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var hour json.Number
	if err := json.Unmarshal(data, &hour); err == nil {
		h, convErr := hour.Int64()
		if convErr != nil {
			return fmt.Errorf("%w: hour must be an integer", ErrInvalidInterval)
		}
		parsed := Hours(int(h))
		if h < 0 || !parsed.Valid() {
			return fmt.Errorf("%w: hour %d out of range", ErrInvalidInterval, h)
		}
		*c = parsed
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: time must be an hour or HH:MM", ErrInvalidInterval)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan implements sql.Scanner for minute columns.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*c = Clock(v)
	case int32:
		*c = Clock(v)
	case int:
		*c = Clock(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return fmt.Errorf("scan clock: %w", err)
		}
		*c = Clock(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("scan clock: %w", err)
		}
		*c = Clock(n)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("scan clock: unsupported type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (c Clock) Value() (driver.Value, error) {
	return int64(c), nil
}

// Interval is a half-open time range on one day of the week (Monday=1 ... Sunday=7).
type Interval struct {
	DayOfWeek int   `db:"day_of_week" json:"dayOfWeek"`
	Start     Clock `db:"start_minute" json:"startTime"`
	End       Clock `db:"end_minute" json:"endTime"`
}

// NewInterval is a shorthand used heavily by callers working in whole hours.
func NewInterval(day int, start, end Clock) Interval {
	return Interval{DayOfWeek: day, Start: start, End: end}
}

// Validate fails with ErrInvalidInterval for bad days, out of range clocks or start >= end.
func (i Interval) Validate() error {
	if i.DayOfWeek < 1 || i.DayOfWeek > 7 {
		return fmt.Errorf("%w: day of week %d must be between 1 and 7", ErrInvalidInterval, i.DayOfWeek)
	}
	if !i.Start.Valid() || !i.End.Valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidInterval)
	}
	if i.Start >= i.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInterval, i.Start, i.End)
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func IsValid(i Interval) bool {
	return i.Validate() == nil
}

// Overlaps reports whether both intervals share an instant on the same day.
// Touching ranges (10:00-11:00 and 11:00-12:00) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.DayOfWeek == o.DayOfWeek && i.Start < o.End && i.End > o.Start
}

// Contains reports whether o lies entirely within i on the same day.
func (i Interval) Contains(o Interval) bool {
	return i.DayOfWeek == o.DayOfWeek && i.Start <= o.Start && i.End >= o.End
}

// Overlaps is the free-function form of Interval.Overlaps.
func Overlaps(a, b Interval) bool { return a.Overlaps(b) }

// Contains is the free-function form of Interval.Contains.
func Contains(a, b Interval) bool { return a.Contains(b) }

// Less orders intervals by day then start then end.
func (i Interval) Less(o Interval) bool {
	if i.DayOfWeek != o.DayOfWeek {
		return i.DayOfWeek < o.DayOfWeek
	}
	if i.Start != o.Start {
		return i.Start < o.Start
	}
	return i.End < o.End
}

func (i Interval) String() string {
	return fmt.Sprintf("%s %s-%s", DayName(i.DayOfWeek), i.Start, i.End)
}

var dayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the English weekday for 1..7.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return strconv.Itoa(day)
	}
	return dayNames[day]
}
