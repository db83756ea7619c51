package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Half identifies which half of a calendar month a reporting period covers.
type Half int

const (
	FirstHalf  Half = 1 // day 1 through 15
	SecondHalf Half = 2 // day 16 through the last day of the month
)

// lastFirstHalfDay is the last day of the month that still belongs to the first half.
const lastFirstHalfDay = 15

var ErrInvalidPeriod = errors.New("invalid period")

// Period is a half-month reporting window. It is never persisted; it is
// always recomputed from a record timestamp.
type Period struct {
	Year  int
	Month time.Month
	Half  Half
}

// Bounds are the inclusive start and end instants of a period, at
// millisecond resolution.
type Bounds struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the bounds. t is compared at
// millisecond resolution, the resolution timestamps are recorded with.
func (b Bounds) Contains(t time.Time) bool {
	t = t.Truncate(time.Millisecond)
	return !t.Before(b.Start) && !t.After(b.End)
}

// Label renders the period the way reviewers see it, e.g. "March 2024 (1st - 15th)".
func (p Period) Label() string {
	half := "1st - 15th"
	if p.Half == SecondHalf {
		half = "16th - end"
	}
	return fmt.Sprintf("%s %d (%s)", p.Month, p.Year, half)
}

// String returns the period key.
func (p Period) String() string {
	return p.Key()
}

// Key returns a compact, sortable identifier such as "2024-03-H1".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d-H%d", p.Year, int(p.Month), int(p.Half))
}

// Validate checks the period fields are in range.
func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Half != FirstHalf && p.Half != SecondHalf {
		return fmt.Errorf("%w: half %d", ErrInvalidPeriod, p.Half)
	}
	return nil
}

// Compare orders periods chronologically: -1 if p is earlier than o, 0 if equal, +1 if later.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year != o.Year:
		return cmpInt(p.Year, o.Year)
	case p.Month != o.Month:
		return cmpInt(int(p.Month), int(o.Month))
	default:
		return cmpInt(int(p.Half), int(o.Half))
	}
}

// Next returns the period immediately after p.
func (p Period) Next() Period {
	if p.Half == FirstHalf {
		return Period{Year: p.Year, Month: p.Month, Half: SecondHalf}
	}
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January, Half: FirstHalf}
	}
	return Period{Year: p.Year, Month: p.Month + 1, Half: FirstHalf}
}

// ParsePeriodKey parses the output of Period.Key.
func ParsePeriodKey(s string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "H") {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, parts[1])
	}
	half, err := strconv.Atoi(strings.TrimPrefix(parts[2], "H"))
	if err != nil {
		return Period{}, fmt.Errorf("%w: half %q", ErrInvalidPeriod, parts[2])
	}
	p := Period{Year: year, Month: time.Month(month), Half: Half(half)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Calendar maps instants to reporting periods in a fixed timezone, the
// timezone of the capturing device.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// PeriodOf returns the period containing t. Day 15 belongs to the first
// half and day 16 to the second.
func (c Calendar) PeriodOf(t time.Time) Period {
	year, month, day := t.In(c.Location()).Date()
	if day <= lastFirstHalfDay {
		return Period{Year: year, Month: month, Half: FirstHalf}
	}
	return Period{Year: year, Month: month, Half: SecondHalf}
}

// BoundsOf returns the inclusive bounds of p. The end of the second half is
// the last calendar day of the month at 23:59:59.999.
func (c Calendar) BoundsOf(p Period) Bounds {
	loc := c.Location()
	if p.Half == FirstHalf {
		return Bounds{
			Start: time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc),
			End:   endOfDay(p.Year, p.Month, lastFirstHalfDay, loc),
		}
	}
	return Bounds{
		Start: time.Date(p.Year, p.Month, lastFirstHalfDay+1, 0, 0, 0, 0, loc),
		End:   endOfDay(p.Year, p.Month, lastDayOfMonth(p.Year, p.Month, loc), loc),
	}
}

// lastDayOfMonth uses the day-0-of-next-month rule, so leap Februaries come out right.
func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func endOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), loc)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
