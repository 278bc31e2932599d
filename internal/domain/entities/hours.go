package entities

import (
	"fmt"
	"time"
)

// DefaultTimezone applies to listings stored without a timezone
const DefaultTimezone = "America/New_York"

// HoursPeriod is one opening interval. Day is 0 for Sunday. A Close earlier
// than Open runs past midnight into the next day.
type HoursPeriod struct {
	Day   int    `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// HoursWindow names a part of the day a listing can be filtered on
type HoursWindow string

const (
	HoursOpenNow   HoursWindow = "openNow"
	HoursMorning   HoursWindow = "morning"
	HoursAfternoon HoursWindow = "afternoon"
	HoursEvening   HoursWindow = "evening"
	HoursLateNight HoursWindow = "lateNight"
)

// HoursWindows lists the accepted window names
var HoursWindows = []HoursWindow{HoursOpenNow, HoursMorning, HoursAfternoon, HoursEvening, HoursLateNight}

// Bounds returns the local clock range [start, end) of a window as "HH:MM".
// openNow has no fixed bounds.
func (w HoursWindow) Bounds() (start, end string, ok bool) {
	switch w {
	case HoursMorning:
		return "06:00", "12:00", true
	case HoursAfternoon:
		return "12:00", "17:00", true
	case HoursEvening:
		return "17:00", "21:00", true
	case HoursLateNight:
		return "21:00", "24:00", true
	}
	return "", "", false
}

// LoadLocation resolves a listing timezone, falling back to DefaultTimezone
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// Matches reports whether the listing is open inside the window on the local day of at
func (w HoursWindow) Matches(periods []HoursPeriod, timezone string, at time.Time) bool {
	local := at.In(LoadLocation(timezone))
	now := local.Hour()*60 + local.Minute()
	today := int(local.Weekday())
	yesterday := (today + 6) % 7

	if w == HoursOpenNow {
		for _, p := range periods {
			open, close, err := p.minutes()
			if err != nil {
				continue
			}
			switch {
			case open < close:
				if p.Day == today && now >= open && now < close {
					return true
				}
			case close < open:
				if (p.Day == today && now >= open) || (p.Day == yesterday && now < close) {
					return true
				}
			}
		}
		return false
	}

	startStr, endStr, ok := w.Bounds()
	if !ok {
		return false
	}
	start, _ := parseClock(startStr)
	end, _ := parseClock(endStr)
	for _, p := range periods {
		open, close, err := p.minutes()
		if err != nil || open == close {
			continue
		}
		overnight := close < open
		if p.Day == today && open < end && (overnight || close > start) {
			return true
		}
		if p.Day == yesterday && overnight && close > start {
			return true
		}
	}
	return false
}

func (p HoursPeriod) minutes() (open, close int, err error) {
	if open, err = parseClock(p.Open); err != nil {
		return 0, 0, err
	}
	if close, err = parseClock(p.Close); err != nil {
		return 0, 0, err
	}
	return open, close, nil
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}
