package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of calendar dates used as availability keys.
const DateLayout = "2006-01-02"

// TimeRange is a wall-clock window within one day, expressed as "HH:MM".
type TimeRange struct {
	Start string `json:"start" yaml:"start" validate:"required"`
	End   string `json:"end" yaml:"end" validate:"required"`
}

// Minutes returns the window as minutes from midnight.
func (r TimeRange) Minutes() (start, end int, err error) {
	if start, err = parseClock(r.Start); err != nil {
		return 0, 0, err
	}
	if end, err = parseClock(r.End); err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("%w: %s-%s ends before it starts", ErrInvalidBusinessHours, r.Start, r.End)
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidBusinessHours, s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidBusinessHours, s)
	}
	return h*60 + m, nil
}

// BusinessHours maps a lower-case weekday name ("monday") to its open windows.
type BusinessHours map[string][]TimeRange

// For returns the windows open on the given weekday.
func (b BusinessHours) For(day time.Weekday) []TimeRange {
	return b[strings.ToLower(day.String())]
}

// Organization is a tenant. Availability is computed in its timezone.
type Organization struct {
	ID            string        `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Timezone      string        `json:"timezone" db:"timezone"`
	BusinessHours BusinessHours `json:"businessHours" db:"-"`
	ClosedDates   []string      `json:"closedDates,omitempty" db:"-"`
}

// Location resolves the organisation timezone. An empty timezone means UTC.
func (o Organization) Location() (*time.Location, error) {
	if o.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, o.Timezone)
	}
	return loc, nil
}

// IsClosed reports whether the organisation is closed on the given date key.
func (o Organization) IsClosed(date string) bool {
	for _, d := range o.ClosedDates {
		if d == date {
			return true
		}
	}
	return false
}
