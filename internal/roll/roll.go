package roll

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned when an identifier does not match YY-[E]PROGRAM-NN.
var ErrInvalidFormat = errors.New("invalid roll number format, expected YY-PROGRAM-NN")

// pattern matches roll numbers like 25-SWT-01 or 24-ECSE-02. The optional
// leading E on the program marks the Evening shift.
var pattern = regexp.MustCompile(`^(\d{2})-(E?)([A-Z]{2,4})-(\d+)$`)

// Number is a parsed roll number.
type Number struct {
	Raw           string
	AdmissionYear int
	Program       string
	Sequence      int
	Evening       bool
}

// Shift returns the shift name encoded in the roll number.
func (n Number) Shift() string {
	if n.Evening {
		return "Evening"
	}
	return "Morning"
}

// Normalize trims whitespace and upper-cases an identifier before matching.
func Normalize(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

// Parse validates and decomposes a roll number. The input is normalized first,
// so "  25-swt-01 " parses the same as "25-SWT-01".
func Parse(identifier string) (Number, error) {
	raw := Normalize(identifier)
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return Number{}, ErrInvalidFormat
	}
	year, _ := strconv.Atoi(m[1])
	seq, _ := strconv.Atoi(m[4])
	return Number{
		Raw:           raw,
		AdmissionYear: 2000 + year,
		Program:       m[3],
		Sequence:      seq,
		Evening:       m[2] == "E",
	}, nil
}

// Valid reports whether the identifier is a well-formed roll number.
func Valid(identifier string) bool {
	_, err := Parse(identifier)
	return err == nil
}

// YearOfStudy computes the student's current year (1-4) from the admission
// year. The academic year rolls over in September.
func (n Number) YearOfStudy(now time.Time) int {
	academic := now.Year()
	if now.Month() < time.September {
		academic--
	}
	year := academic - n.AdmissionYear + 1
	if year < 1 {
		return 1
	}
	if year > 4 {
		return 4
	}
	return year
}
