// Package dateparser parses the download timestamps written into metadata sidecars.
package dateparser

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateParseErrorType represents the type of date parsing error.
type DateParseErrorType string

const (
	InvalidFormat DateParseErrorType = "INVALID_FORMAT"
	InvalidDate   DateParseErrorType = "INVALID_DATE"
)

// DateParseError represents an error that occurred during date parsing.
type DateParseError struct {
	Type   DateParseErrorType
	Input  string
	Reason string
}

func (e *DateParseError) Error() string {
	switch e.Type {
	case InvalidFormat:
		return fmt.Sprintf("invalid download time %q: expected YYYY/MM/DD hh:mm:ss", e.Input)
	case InvalidDate:
		return fmt.Sprintf("invalid download time %q: %s", e.Input, e.Reason)
	default:
		return fmt.Sprintf("download time parse error: %s", e.Reason)
	}
}

// Layout is the time.Format layout equivalent of the download time format.
const Layout = "2006/01/02 15:04:05"

// MinTime is returned by ParseOrMin for unparsable input. It is the zero
// time.Time, which sorts before every instant ParseDownloadTime can produce.
var MinTime = time.Time{}

// downloadTimePattern matches YYYY/MM/DD hh:mm:ss strictly.
var downloadTimePattern = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2}) (\d{2}):(\d{2}):(\d{2})$`)

// ParseDownloadTime parses a timestamp in YYYY/MM/DD hh:mm:ss form.
// The result is expressed in UTC; the sidecar carries no zone, so only the
// relative order of parsed values is meaningful.
func ParseDownloadTime(text string) (time.Time, error) {
	m := downloadTimePattern.FindStringSubmatch(text)
	if m == nil {
		return MinTime, &DateParseError{Type: InvalidFormat, Input: text}
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])

	if year < 1 {
		return MinTime, &DateParseError{Type: InvalidDate, Input: text, Reason: "year 0000 is out of range"}
	}
	if month < 1 || month > 12 {
		return MinTime, &DateParseError{
			Type:   InvalidDate,
			Input:  text,
			Reason: fmt.Sprintf("month %02d is out of range (01-12)", month),
		}
	}
	maxDay := daysInMonth(year, month)
	if day < 1 || day > maxDay {
		return MinTime, &DateParseError{
			Type:   InvalidDate,
			Input:  text,
			Reason: fmt.Sprintf("day %02d is out of range for month %02d (01-%02d)", day, month, maxDay),
		}
	}
	if hour > 23 || minute > 59 || second > 59 {
		return MinTime, &DateParseError{
			Type:   InvalidDate,
			Input:  text,
			Reason: fmt.Sprintf("time %02d:%02d:%02d is out of range", hour, minute, second),
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// ParseOrMin parses text with ParseDownloadTime and returns MinTime on failure,
// so malformed timestamps order as the oldest.
func ParseOrMin(text string) time.Time {
	t, err := ParseDownloadTime(text)
	if err != nil {
		return MinTime
	}
	return t
}

// daysInMonth returns the number of days in the given month for the given year.
func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

// isLeapYear returns true if the given year is a leap year.
func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || (year%400 == 0)
}
