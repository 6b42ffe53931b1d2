package wizard

import "time"

const (
	dueDateLayout    = "02.01.2006"
	dueDisplayLayout = "02.01"
	firstSlotHour    = 10
	lastSlotHour     = 18
)

// NextWorkdays returns the next count business days after from, skipping
// Saturdays and Sundays.
func NextWorkdays(from time.Time, count int) []time.Time {
	out := make([]time.Time, 0, count)
	day := from
	for len(out) < count {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, day)
	}
	return out
}

// TimeSlots returns the selectable hourly due-time slots (10:00 through
// 18:00).
func TimeSlots() []string {
	out := make([]string, 0, lastSlotHour-firstSlotHour+1)
	for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
		out = append(out, time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04"))
	}
	return out
}
