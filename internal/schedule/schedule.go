package schedule

import (
	"time"

	"github.com/insightloop/reportd/internal/pkg/apperr"
)

// Type enumerates the supported schedule shapes
type Type string

const (
	TypeOnce    Type = "once"
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
)

// ParseType parses a schedule type token
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeOnce, TypeDaily, TypeWeekly, TypeMonthly:
		return Type(s), nil
	default:
		return "", apperr.Validationf("unknown schedule type %q", s)
	}
}

// Recurring reports whether the type ever fires automatically
func (t Type) Recurring() bool {
	return t == TypeDaily || t == TypeWeekly || t == TypeMonthly
}

// Spec is the type-dependent schedule configuration. Fields are pointers so a
// stored config can distinguish "absent" from zero values; which fields are
// required depends on the schedule type.
type Spec struct {
	Hour       *int    `json:"hour,omitempty"`
	Minute     *int    `json:"minute,omitempty"`
	DayOfWeek  *string `json:"day_of_week,omitempty"`
	DayOfMonth *int    `json:"day_of_month,omitempty"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Validate checks that spec supplies every field the schedule type requires.
// The minute is the one field that may legitimately be omitted; it defaults
// to 0 at resolution time.
func Validate(t Type, spec *Spec) error {
	if t == TypeOnce {
		return nil
	}
	if spec == nil {
		return apperr.Validationf("schedule type %q requires a schedule config", t)
	}
	if spec.Hour == nil {
		return apperr.Validationf("schedule type %q requires an hour", t)
	}
	if *spec.Hour < 0 || *spec.Hour > 23 {
		return apperr.Validationf("hour must be between 0 and 23, got %d", *spec.Hour)
	}
	if spec.Minute != nil && (*spec.Minute < 0 || *spec.Minute > 59) {
		return apperr.Validationf("minute must be between 0 and 59, got %d", *spec.Minute)
	}
	switch t {
	case TypeWeekly:
		if spec.DayOfWeek == nil {
			return apperr.Validationf("weekly schedule requires a day_of_week")
		}
		if _, ok := weekdays[*spec.DayOfWeek]; !ok {
			return apperr.Validationf("unknown day_of_week %q", *spec.DayOfWeek)
		}
	case TypeMonthly:
		if spec.DayOfMonth == nil {
			return apperr.Validationf("monthly schedule requires a day_of_month")
		}
		if *spec.DayOfMonth < 1 || *spec.DayOfMonth > 31 {
			return apperr.Validationf("day_of_month must be between 1 and 31, got %d", *spec.DayOfMonth)
		}
	}
	return nil
}

// Resolved is a fully-populated schedule configuration ready for evaluation.
type Resolved struct {
	Hour    int
	Minute  int
	Weekday time.Weekday
	Day     int
}

// Resolve fills in documented defaults for absent fields. New writes are
// validated strictly; this degradation exists only so configs stored before a
// field was required still evaluate (hour=9, minute=0, Monday, day 1).
func Resolve(spec *Spec) Resolved {
	r := Resolved{Hour: 9, Minute: 0, Weekday: time.Monday, Day: 1}
	if spec == nil {
		return r
	}
	if spec.Hour != nil {
		r.Hour = *spec.Hour
	}
	if spec.Minute != nil {
		r.Minute = *spec.Minute
	}
	if spec.DayOfWeek != nil {
		if wd, ok := weekdays[*spec.DayOfWeek]; ok {
			r.Weekday = wd
		}
	}
	if spec.DayOfMonth != nil {
		r.Day = *spec.DayOfMonth
	}
	return r
}

// Next computes the first due instant strictly after the reference instant.
// It is pure: the same inputs always yield the same result. The second return
// is false when the schedule never fires again ("once" schedules).
func Next(t Type, r Resolved, after time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	ref := after.In(loc)

	switch t {
	case TypeDaily:
		candidate := time.Date(ref.Year(), ref.Month(), ref.Day(), r.Hour, r.Minute, 0, 0, loc)
		if !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, true

	case TypeWeekly:
		candidate := time.Date(ref.Year(), ref.Month(), ref.Day(), r.Hour, r.Minute, 0, 0, loc)
		offset := (int(r.Weekday) - int(candidate.Weekday()) + 7) % 7
		candidate = candidate.AddDate(0, 0, offset)
		if !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate, true

	case TypeMonthly:
		year, month := ref.Year(), ref.Month()
		candidate := monthlyOccurrence(year, month, r, loc)
		if !candidate.After(after) {
			year, month = nextMonth(year, month)
			candidate = monthlyOccurrence(year, month, r, loc)
		}
		return candidate, true

	default:
		// "once" schedules only ever run manually and never re-fire.
		return time.Time{}, false
	}
}

// monthlyOccurrence places the configured day within a month, clamping a day
// past the month's end to the month's last day.
func monthlyOccurrence(year int, month time.Month, r Resolved, loc *time.Location) time.Time {
	day := r.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, r.Hour, r.Minute, 0, 0, loc)
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
