package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DisplayDateLayout     = "02.01.2006"
	DisplayDateTimeLayout = "02.01.2006 15:04:05"
	ISODateLayout         = "2006-01-02"
)

// DateOf drops the time of day. Calendar dates are kept as UTC midnight so
// they compare and hash consistently regardless of the source location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts the German display format and ISO dates.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{DisplayDateLayout, ISODateLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, Errorf(KindConfiguration, "invalid date %q, expected dd.mm.yyyy or yyyy-mm-dd", value)
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	rng := DateRange{Start: DateOf(start), End: DateOf(end)}
	if err := rng.Validate(); err != nil {
		return DateRange{}, err
	}
	return rng, nil
}

// MonthRange covers the first through the last day of the given month.
func MonthRange(year int, month time.Month) (DateRange, error) {
	if month < time.January || month > time.December {
		return DateRange{}, Errorf(KindConfiguration, "invalid month %d", month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateRange{Start: first, End: last}, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return Errorf(KindConfiguration, "start and end date are required")
	}
	if DateOf(r.Start).After(DateOf(r.End)) {
		return Errorf(KindConfiguration, "start date %s must not be after end date %s",
			r.Start.Format(DisplayDateLayout), r.End.Format(DisplayDateLayout))
	}
	return nil
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s - %s", r.Start.Format(DisplayDateLayout), r.End.Format(DisplayDateLayout))
}
