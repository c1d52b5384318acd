package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	relativeDatePattern = regexp.MustCompile(
		`(?i)(\d+)\s*(second|minute|min|hour|hr|day|week|month|year)s?\s*ago`)

	monthNames = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

	// "23rd Nov 2025", "1 January", "11 Feb, 2026"
	dayMonthPattern = regexp.MustCompile(
		`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `\b\.?\s*,?\s*(\d{4})?`)

	// Indian Standard Time suffix, as printed by Indian news sites
	istSuffixPattern = regexp.MustCompile(`\bIST\s*$`)

	// "Feb 12, 2026", "November 3rd"
	monthDayPattern = regexp.MustCompile(
		`(?i)\b` + monthNames + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b\s*,?\s*(\d{4})?`)
)

// indiaZone is IST. dateparse does not know the abbreviation and would
// otherwise read the wall clock as UTC.
var indiaZone = time.FixedZone("IST", 5*60*60+30*60)

var relativeUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"min":    time.Minute,
	"hour":   time.Hour,
	"hr":     time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDate interprets the date strings found on news sites. It returns nil
// for anything it cannot understand.
func ParseDate(s string) *time.Time {
	return ParseDateAt(s, time.Now())
}

// ParseDateAt is ParseDate with an explicit reference time for relative
// expressions and year-less dates.
func ParseDateAt(s string, now time.Time) *time.Time {
	s = NormalizeSpace(s)
	if s == "" {
		return nil
	}

	// Calendar dates in any common layout
	if t, ok := parseCalendar(s); ok && t.Year() > 2000 {
		return &t
	}

	// "2 hours ago"
	if m := relativeDatePattern.FindStringSubmatch(s); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err == nil {
			t := now.Add(-time.Duration(amount) * relativeUnits[strings.ToLower(m[2])])
			return &t
		}
	}

	// "23rd Nov 2025"
	if m := dayMonthPattern.FindStringSubmatch(s); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3], now); ok {
			return &t
		}
	}

	// "Feb 12, 2026"
	if m := monthDayPattern.FindStringSubmatch(s); m != nil {
		if t, ok := buildDate(m[2], m[1], m[3], now); ok {
			return &t
		}
	}

	return nil
}

// parseCalendar runs dateparse, which panics on a few malformed inputs.
func parseCalendar(s string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	if istSuffixPattern.MatchString(s) {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), parsed.Nanosecond(), indiaZone)
	}
	return parsed, true
}

// buildDate assembles a date from matched parts, defaulting to the current
// year.
func buildDate(dayStr, monthStr, yearStr string, now time.Time) (time.Time, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	month, ok := monthsByPrefix[strings.ToLower(monthStr)[:3]]
	if !ok {
		return time.Time{}, false
	}

	year := now.Year()
	if yearStr != "" {
		if year, err = strconv.Atoi(yearStr); err != nil {
			return time.Time{}, false
		}
	}

	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
}
