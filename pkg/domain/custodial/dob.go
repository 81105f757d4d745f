package custodial

import (
	"regexp"
	"strconv"
	"time"
)

type DOB struct {
	Day   int
	Month int
	Year  int
}

var dobPattern = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{4})\s*$`)

// ParseDOB parses a MM/DD/YYYY date of birth. It returns nil for anything it
// cannot accept; callers omit the field rather than fail.
func ParseDOB(raw string, now time.Time) *DOB {
	m := dobPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return nil
	}
	if day < 1 || day > 31 {
		return nil
	}
	if year < 1900 || year > now.Year() {
		return nil
	}
	return &DOB{Day: day, Month: month, Year: year}
}
