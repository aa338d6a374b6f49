package archiver

import "time"

// hourKeyLayout renders an hour bucket as the provider's YYYYMMDDHH key.
const hourKeyLayout = "2006010215"

// PastHours returns the keys of the n hour buckets ending at now's
// hour in loc, oldest first. The daily run passes n=24 to cover the
// previous day of exports.
func PastHours(now time.Time, n int, loc *time.Location) []string {
	local := now.In(loc)
	current := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)

	hours := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		hours = append(hours, current.Add(-time.Duration(i)*time.Hour).Format(hourKeyLayout))
	}
	return hours
}

// NextRun returns the next wall-clock instant after now at which the
// daily archival run should fire: the given local hour in loc, today
// if still ahead, otherwise tomorrow.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
