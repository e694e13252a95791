package quota

import "time"

// DayLayout is the calendar-day key format used for quota rows.
const DayLayout = "2006-01-02"

// DailyQuota is one user's send counter for one quota day. A missing row
// means nothing was sent that day.
type DailyQuota struct {
	UserID    string `json:"userId" db:"user_id"`
	Day       string `json:"day" db:"quota_day"`
	SentCount int    `json:"sentCount" db:"sent_count"`
}

// DayFor returns the quota day containing t in the reference location loc.
// Two instants on the same reference-timezone calendar day always share a
// key regardless of the caller's local zone.
func DayFor(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// Remaining is limit-sent clamped at zero.
func Remaining(limit, sent int) int {
	if r := limit - sent; r > 0 {
		return r
	}
	return 0
}
