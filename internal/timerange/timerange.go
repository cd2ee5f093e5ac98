// Package timerange builds the Chile-local date ranges and shift rules the reports query with
package timerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	// DateLayout is the date format accepted from operators
	DateLayout = "2006-01-02"

	offsetLayout   = "2006-01-02 15:04:05.000000 -07:00"
	naiveISOLayout = "2006-01-02T15:04:05"
	naiveLayout    = "2006-01-02 15:04:05"

	// ShiftA runs from 08:00 to 20:00 local time, ShiftB covers the night
	ShiftA = "A"
	ShiftB = "B"

	shiftAID = 22
	shiftBID = 23

	shiftStartHour = 8
	shiftEndHour   = 20
)

var (
	// ErrInvalidTime is returned for malformed dates or HH:MM values
	ErrInvalidTime = errors.New("invalid date or time")
	// ErrInvalidRange is returned when the end of a range precedes its start
	ErrInvalidRange = errors.New("range end is before range start")
)

// Location is the mine's time zone. DST is applied automatically.
var Location = mustLoad("America/Santiago")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("timerange: load %s: %v", name, err))
	}
	return loc
}

// Range is a closed interval of local time
type Range struct {
	Start time.Time
	End   time.Time
}

// Parse builds a Range from operator input: dates as YYYY-MM-DD and
// times as HH:MM, both interpreted in the mine's time zone.
func Parse(startDate, startHHMM, endDate, endHHMM string) (Range, error) {
	start, err := At(startDate, startHHMM)
	if err != nil {
		return Range{}, err
	}
	end, err := At(endDate, endHHMM)
	if err != nil {
		return Range{}, err
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, Naive(start), Naive(end))
	}
	return Range{Start: start, End: end}, nil
}

// At combines a YYYY-MM-DD date and an HH:MM time in the mine's time zone
func At(date, hhmm string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTime, date)
	}
	h, m, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, Location), nil
}

// ParseHHMM splits "HH:MM" into hour and minute
func ParseHHMM(hhmm string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidTime, hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidTime, hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidTime, hhmm)
	}
	return h, m, nil
}

// Day returns the range covering the local calendar day of t, 00:00 to 23:59
func Day(t time.Time) Range {
	t = t.In(Location)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, Location)
	return Range{Start: start, End: end}
}

// Today is Day(time.Now())
func Today() Range {
	return Day(time.Now())
}

// Offset formats t as a SQL Server datetimeoffset literal, e.g. 2025-02-26 13:45:00.000000 -03:00
func Offset(t time.Time) string {
	return t.In(Location).Format(offsetLayout)
}

// Wall reinterprets the wall clock of t in the mine's time zone. SQL Server
// datetime columns carry no offset and arrive from the driver as UTC.
func Wall(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), Location)
}

// NaiveISO formats t without offset, e.g. 2025-02-26T13:45:00
func NaiveISO(t time.Time) string {
	return t.In(Location).Format(naiveISOLayout)
}

// Naive formats t without offset, e.g. 2025-02-26 13:45:00
func Naive(t time.Time) string {
	return t.In(Location).Format(naiveLayout)
}

// Shift returns the shift name in effect at t
func Shift(t time.Time) string {
	h := t.In(Location).Hour()
	if h >= shiftStartHour && h < shiftEndHour {
		return ShiftA
	}
	return ShiftB
}

// ShiftID maps a shift name to its Shift table id
func ShiftID(shift string) int {
	if shift == ShiftA {
		return shiftAID
	}
	return shiftBID
}

// OperatingDay returns the calendar date a Cartir belongs to at t. Before
// 08:00 the night shift still reports against the previous day.
func OperatingDay(t time.Time) time.Time {
	t = t.In(Location)
	if t.Hour() < shiftStartHour {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
