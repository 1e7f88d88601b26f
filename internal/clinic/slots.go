package clinic

import "time"

// Working window for every doctor-day.
const (
	workdayStartHour = 9
	workdayEndHour   = 17
)

// SlotTimes enumerates candidate slot start times for a day, stepping
// from 09:00 through 17:00 inclusive in increments of the service
// duration. The sequence is deterministic: the same day and duration
// always produce the same candidates.
func SlotTimes(day time.Time, duration time.Duration) []time.Time {
	if duration <= 0 {
		return nil
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), workdayStartHour, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), workdayEndHour, 0, 0, 0, day.Location())

	var out []time.Time
	for t := start; !t.After(end); t = t.Add(duration) {
		out = append(out, t)
	}
	return out
}

// dayBounds returns the [midnight, next midnight) range containing day.
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
