// Package normalize cleans and converts raw KvK values such as registry numbers,
// registry dates and GPS coordinates.
package normalize

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// KvKNummerLength is the number of digits in a KvK number
	KvKNummerLength = 8

	// VestigingsnummerLength is the number of digits in a vestigingsnummer
	VestigingsnummerLength = 12
)

var (
	// ErrEmptyInput is returned when an identifier is empty
	ErrEmptyInput = errors.New("input must be a non-empty string")

	// ErrNoDigits is returned when an identifier contains no digits at all
	ErrNoDigits = errors.New("no digits found in input")
)

// CleanAndPad strips every non-digit from s and left-pads the result with zeros to fill digits.
// Inputs with more digits than fill are returned unpadded.
func CleanAndPad(s string, fill int) (string, error) {
	if s == "" {
		return "", ErrEmptyInput
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrNoDigits
	}

	if len(digits) >= fill {
		return digits, nil
	}
	return strings.Repeat("0", fill-len(digits)) + digits, nil
}

// KvKNummer normalizes s into an 8 digit KvK number.
func KvKNummer(s string) (string, error) {
	return CleanAndPad(s, KvKNummerLength)
}

// Vestigingsnummer normalizes s into a 12 digit vestigingsnummer.
func Vestigingsnummer(s string) (string, error) {
	return CleanAndPad(s, VestigingsnummerLength)
}

// isAbsent reports whether a raw registry value means "no value".
func isAbsent(s string) bool {
	return s == "" || s == "None" || s == "00000000"
}

// ParseDate parses a registry date in DD-MM-YYYY or YYYYMMDD form.
// A zero month or day in the YYYYMMDD form defaults to 1. Absent, malformed
// and impossible dates yield nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return nil
	}

	if len(s) == 10 && s[2] == '-' && s[5] == '-' {
		day, dErr := strconv.Atoi(s[0:2])
		month, mErr := strconv.Atoi(s[3:5])
		year, yErr := strconv.Atoi(s[6:10])
		if dErr != nil || mErr != nil || yErr != nil {
			return nil
		}
		return date(year, month, day)
	}

	year, month, day, ok := splitCompact(s)
	if !ok {
		return nil
	}
	return date(year, defaultOne(month), defaultOne(day))
}

// FormatDate converts a YYYYMMDD registry date into DD-MM-YYYY, defaulting a zero
// month or day to 01. Absent values yield nil; anything else that cannot be
// converted is returned unchanged.
func FormatDate(s string) *string {
	if isAbsent(s) {
		return nil
	}

	year, month, day, ok := splitCompact(s)
	if !ok {
		return &s
	}
	d := date(year, defaultOne(month), defaultOne(day))
	if d == nil {
		return &s
	}

	formatted := d.Format("02-01-2006")
	return &formatted
}

// TruncateFloat renders f with at most decimals digits after a decimal comma,
// truncating rather than rounding. Nil and zero render as an empty string.
func TruncateFloat(f *float64, decimals int) string {
	if f == nil || *f == 0 {
		return ""
	}

	factor := math.Pow10(decimals)
	truncated := math.Trunc(*f*factor) / factor
	return strings.Replace(strconv.FormatFloat(truncated, 'f', -1, 64), ".", ",", 1)
}

func splitCompact(s string) (year, month, day int, ok bool) {
	if len(s) != 8 {
		return 0, 0, 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, 0, 0, false
		}
	}
	year, _ = strconv.Atoi(s[0:4])
	month, _ = strconv.Atoi(s[4:6])
	day, _ = strconv.Atoi(s[6:8])
	return year, month, day, true
}

func defaultOne(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

// date builds a calendar date, rejecting values time.Date would normalize.
func date(year, month, day int) *time.Time {
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}
