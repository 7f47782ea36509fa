package schedule

import (
	"testing"
	"time"

	"github.com/insightloop/reportd/internal/pkg/apperr"
)

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func TestParseType(t *testing.T) {
	for _, token := range []string{"once", "daily", "weekly", "monthly"} {
		if _, err := ParseType(token); err != nil {
			t.Fatalf("ParseType(%q): %v", token, err)
		}
	}
	if _, err := ParseType("hourly"); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestValidateRequiresFieldsPerType(t *testing.T) {
	if err := Validate(TypeOnce, nil); err != nil {
		t.Fatalf("once with no config: %v", err)
	}
	if err := Validate(TypeDaily, nil); err == nil {
		t.Fatalf("daily with no config should fail")
	}
	if err := Validate(TypeDaily, &Spec{}); err == nil {
		t.Fatalf("daily without hour should fail")
	}
	// minute is the one optional field
	if err := Validate(TypeDaily, &Spec{Hour: intPtr(9)}); err != nil {
		t.Fatalf("daily without minute: %v", err)
	}
	if err := Validate(TypeWeekly, &Spec{Hour: intPtr(9)}); err == nil {
		t.Fatalf("weekly without day_of_week should fail")
	}
	if err := Validate(TypeWeekly, &Spec{Hour: intPtr(9), DayOfWeek: strPtr("noday")}); err == nil {
		t.Fatalf("weekly with bad day_of_week should fail")
	}
	if err := Validate(TypeMonthly, &Spec{Hour: intPtr(9)}); err == nil {
		t.Fatalf("monthly without day_of_month should fail")
	}
	if err := Validate(TypeMonthly, &Spec{Hour: intPtr(9), DayOfMonth: intPtr(32)}); err == nil {
		t.Fatalf("monthly with day 32 should fail")
	}

	err := Validate(TypeDaily, &Spec{Hour: intPtr(24)})
	if err == nil {
		t.Fatalf("hour 24 should fail")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation kind, got %v", apperr.KindOf(err))
	}
}

func TestResolveDefaults(t *testing.T) {
	r := Resolve(nil)
	if r.Hour != 9 || r.Minute != 0 || r.Weekday != time.Monday || r.Day != 1 {
		t.Fatalf("unexpected legacy defaults: %+v", r)
	}

	r = Resolve(&Spec{Hour: intPtr(14), DayOfWeek: strPtr("fri"), DayOfMonth: intPtr(15)})
	if r.Hour != 14 || r.Minute != 0 || r.Weekday != time.Friday || r.Day != 15 {
		t.Fatalf("unexpected resolved config: %+v", r)
	}
}

func TestNextOnceNeverFires(t *testing.T) {
	if _, ok := Next(TypeOnce, Resolve(nil), time.Now(), time.UTC); ok {
		t.Fatalf("once schedule must never fire automatically")
	}
}

func TestNextDaily(t *testing.T) {
	r := Resolved{Hour: 9, Minute: 30}

	// before today's slot: fires today
	after := time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)
	next, ok := Next(TypeDaily, r, after, time.UTC)
	if !ok || !next.Equal(time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("got %v", next)
	}

	// after today's slot: fires tomorrow
	after = time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC)
	next, _ = Next(TypeDaily, r, after, time.UTC)
	if !next.Equal(time.Date(2024, time.March, 11, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("got %v", next)
	}
}

func TestNextWeeklyFollowingMonday(t *testing.T) {
	// 2024-01-01 is a Monday; a run at Monday 09:00 is followed by the next
	// Monday 09:00
	r := Resolved{Hour: 9, Minute: 0, Weekday: time.Monday}
	lastRun := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

	next, ok := Next(TypeWeekly, r, lastRun, time.UTC)
	if !ok {
		t.Fatalf("weekly schedule must fire")
	}
	want := time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextWeeklyCrossesWeekBoundary(t *testing.T) {
	// Wednesday reference, Monday target
	r := Resolved{Hour: 9, Minute: 0, Weekday: time.Monday}
	after := time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC)

	next, _ := Next(TypeWeekly, r, after, time.UTC)
	want := time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextMonthlyClampsToLastDay(t *testing.T) {
	r := Resolved{Hour: 9, Minute: 0, Day: 31}

	// February has no day 31: fires on its last day
	after := time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)
	next, _ := Next(TypeMonthly, r, after, time.UTC)
	want := time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}

	// already past January's slot: advances into February with a re-clamp
	after = time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	next, _ = Next(TypeMonthly, r, after, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextIsDeterministicAndMonotonic(t *testing.T) {
	r := Resolved{Hour: 9, Minute: 0, Weekday: time.Monday}
	after := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	first, _ := Next(TypeWeekly, r, after, time.UTC)
	second, _ := Next(TypeWeekly, r, after, time.UTC)
	if !first.Equal(second) {
		t.Fatalf("same inputs gave %v and %v", first, second)
	}

	prev, _ := Next(TypeWeekly, r, after, time.UTC)
	for i := 0; i < 100; i++ {
		after = after.Add(7 * time.Hour)
		next, _ := Next(TypeWeekly, r, after, time.UTC)
		if next.Before(prev) {
			t.Fatalf("next-due went backwards: %v then %v", prev, next)
		}
		prev = next
	}
}

func TestNextUsesReferenceTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	r := Resolved{Hour: 9, Minute: 0}
	after := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) // 07:00 in New York

	next, _ := Next(TypeDaily, r, after, loc)
	want := time.Date(2024, time.March, 10, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}
