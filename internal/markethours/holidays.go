package markethours

import "time"

// SSE/SZSE weekday closures for 2026, per the exchanges' annual notice.
// Weekends are closed anyway and are not listed.
var holidays2026 = []struct {
	month time.Month
	day   int
}{
	{time.January, 1}, // New Year
	{time.January, 2},
	{time.February, 16}, // Spring Festival
	{time.February, 17},
	{time.February, 18},
	{time.February, 19},
	{time.February, 20},
	{time.February, 23},
	{time.April, 6}, // Qingming
	{time.May, 1},   // Labour Day
	{time.May, 4},
	{time.May, 5},
	{time.June, 19},      // Dragon Boat
	{time.September, 25}, // Mid-Autumn
	{time.October, 1},    // National Day
	{time.October, 2},
	{time.October, 5},
	{time.October, 6},
	{time.October, 7},
}

var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(holidays2026))
	for _, h := range holidays2026 {
		holidaySet[dateKey(2026, h.month, h.day)] = true
	}
}

// IsHoliday returns true if the date (in CST) is an exchange holiday.
func IsHoliday(t time.Time) bool {
	cst := t.In(CST)
	return holidaySet[dateKey(cst.Year(), cst.Month(), cst.Day())]
}

// AddHoliday marks an extra closure date, e.g. from configuration.
func AddHoliday(year int, month time.Month, day int) {
	holidaySet[dateKey(year, month, day)] = true
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, CST).Format("2006-01-02")
}
