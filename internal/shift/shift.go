package shift

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shift identifies the Morning or Evening cohort.
type Shift string

const (
	Morning Shift = "Morning"
	Evening Shift = "Evening"
)

// Parse maps free-form input to a Shift.
func Parse(s string) (Shift, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning":
		return Morning, nil
	case "evening":
		return Evening, nil
	}
	return "", fmt.Errorf("invalid shift %q", s)
}

// TimeOfDay is minutes since midnight. Window boundaries are compared on this
// type so wall-clock dates never leak into the policy decision.
type TimeOfDay int

// ParseClock accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustClock is ParseClock for compile-time constants; panics on bad input.
func MustClock(s string) TimeOfDay {
	t, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Clock extracts the time-of-day from an instant.
func Clock(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Windows holds one shift's timing boundaries.
type Windows struct {
	CheckinStart   TimeOfDay
	CheckinEnd     TimeOfDay
	CheckoutStart  TimeOfDay
	CheckoutEnd    TimeOfDay
	ClassEnd       TimeOfDay
	AutoAbsentHour int
}

// Config is the process-wide timing configuration, loaded once per request or
// scheduler tick and immutable afterwards.
type Config struct {
	Morning                Windows
	Evening                Windows
	MinimumDurationMinutes int
	ScanDebounce           time.Duration
	DuplicateSuppression   time.Duration
}

// Defaults mirrors the institute's standard timetable.
func Defaults() Config {
	return Config{
		Morning: Windows{
			CheckinStart:   MustClock("09:00"),
			CheckinEnd:     MustClock("11:00"),
			CheckoutStart:  MustClock("12:00"),
			CheckoutEnd:    MustClock("13:40"),
			ClassEnd:       MustClock("13:40"),
			AutoAbsentHour: 11,
		},
		Evening: Windows{
			CheckinStart:   MustClock("15:00"),
			CheckinEnd:     MustClock("18:00"),
			CheckoutStart:  MustClock("15:00"),
			CheckoutEnd:    MustClock("18:00"),
			ClassEnd:       MustClock("18:00"),
			AutoAbsentHour: 17,
		},
		MinimumDurationMinutes: 120,
		ScanDebounce:           800 * time.Millisecond,
		DuplicateSuppression:   3 * time.Second,
	}
}

// ForShift selects the windows for a shift.
func (c Config) ForShift(s Shift) Windows {
	if s == Evening {
		return c.Evening
	}
	return c.Morning
}

// Phase is the window a given instant falls into for a shift.
type Phase int

const (
	Outside Phase = iota
	CheckInWindow
	CheckOutWindow
)

func (p Phase) String() string {
	switch p {
	case CheckInWindow:
		return "check-in"
	case CheckOutWindow:
		return "check-out"
	}
	return "outside"
}

// RecordState is the caller's view of today's attendance record, used only to
// break ties when the check-in and check-out windows overlap.
type RecordState int

const (
	NoRecord RecordState = iota
	OpenRecord
	ClosedRecord
)

// ResolvePhase maps an instant onto the shift's windows. When the windows
// overlap the open-record state decides: a student with an open check-in
// resolves to the check-out window, everyone else to check-in.
func ResolvePhase(w Windows, now time.Time, state RecordState) Phase {
	tod := Clock(now)
	in := tod >= w.CheckinStart && tod <= w.CheckinEnd
	out := tod >= w.CheckoutStart && tod <= w.CheckoutEnd

	switch {
	case in && out:
		if state == OpenRecord {
			return CheckOutWindow
		}
		return CheckInWindow
	case in:
		return CheckInWindow
	case out:
		return CheckOutWindow
	}
	return Outside
}
