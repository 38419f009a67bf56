package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"study-sms-server/internal/models"
)

// ParseClock parses an "HH:MM" time-of-day into minutes since midnight
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour*60 + minute, nil
}

// EligibleAt reports whether a participant should receive a message at the
// given UTC instant. It is a pure predicate: it fails closed (false, no
// error) on inactive participants, incomplete schedules, or malformed fields.
//
// The participant's local time-of-day is now plus their timezone offset.
// A window whose start is after its end crosses midnight, e.g. 22:00-02:00.
func EligibleAt(p *models.Participant, nowUTC time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	if !p.HasSchedule() {
		return false
	}

	nowUTC = nowUTC.UTC()

	startDate, err := time.Parse("2006-01-02", *p.StartDate)
	if err != nil {
		return false
	}

	// Suppress until the start date has been reached on the UTC calendar
	today := nowUTC.Format("2006-01-02")
	if startDate.Format("2006-01-02") > today {
		return false
	}

	windowStart, err := ParseClock(*p.SMSWindowStart)
	if err != nil {
		return false
	}
	windowEnd, err := ParseClock(*p.SMSWindowEnd)
	if err != nil {
		return false
	}

	local := nowUTC.Add(time.Duration(p.TimezoneOffset) * time.Minute)
	localMinute := local.Hour()*60 + local.Minute()

	if windowStart > windowEnd {
		// Window wraps around midnight, e.g. 23:00 to 01:00
		return localMinute >= windowStart || localMinute <= windowEnd
	}

	// Normal window, e.g. 09:00 to 17:00, inclusive at both ends
	return localMinute >= windowStart && localMinute <= windowEnd
}
