package wizard

import (
	"testing"
	"time"
)

func TestNextWorkdaysSkipsWeekends(t *testing.T) {
	// Friday.
	from := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	days := NextWorkdays(from, 6)
	if len(days) != 6 {
		t.Fatalf("got %d days, want 6", len(days))
	}
	want := []string{"10.03.2025", "11.03.2025", "12.03.2025", "13.03.2025", "14.03.2025", "17.03.2025"}
	for i, day := range days {
		if got := day.Format(dueDateLayout); got != want[i] {
			t.Fatalf("day %d = %s, want %s", i, got, want[i])
		}
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("day %d falls on %s", i, wd)
		}
	}
}

func TestTimeSlots(t *testing.T) {
	slots := TimeSlots()
	if len(slots) != 9 {
		t.Fatalf("got %d slots, want 9", len(slots))
	}
	if slots[0] != "10:00" || slots[len(slots)-1] != "18:00" {
		t.Fatalf("slot range = %s..%s, want 10:00..18:00", slots[0], slots[len(slots)-1])
	}
}
