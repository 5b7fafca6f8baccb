package attendance

import (
	"time"

	"campusattend/internal/shift"
)

// Action is the write the state machine asks the store to perform.
type Action int

const (
	ActionNone Action = iota
	ActionCheckIn
	ActionCheckOut
)

// Reject classifies scan attempts that produce no write. All of these are
// surfaced to the caller with the current record attached; none are errors.
type Reject string

const (
	RejectNone             Reject = ""
	RejectOutOfWindow      Reject = "out_of_window"
	RejectAlreadyCheckedIn Reject = "already_checked_in"
	RejectAlreadyComplete  Reject = "already_complete"
)

// Decision is the outcome of running one accepted scan through the
// transition table.
type Decision struct {
	Action          Action
	Status          Status
	DurationMinutes int
	Reject          Reject
}

// Decide applies the transition table for a scan event. rec is today's record
// or nil, phase the resolved window, minDuration the Present threshold in
// minutes. Decide is pure; the caller commits the resulting action under the
// per-(student, day) lock.
func Decide(rec *Record, phase shift.Phase, now time.Time, minDuration int) Decision {
	switch {
	case rec == nil:
		if phase == shift.CheckInWindow {
			return Decision{Action: ActionCheckIn, Status: StatusCheckedIn}
		}
		return Decision{Reject: RejectOutOfWindow}

	case rec.Open():
		switch phase {
		case shift.CheckOutWindow:
			dur := durationMinutes(*rec.CheckInTime, now)
			status := StatusCheckedOut
			if dur >= minDuration {
				status = StatusPresent
			}
			return Decision{Action: ActionCheckOut, Status: status, DurationMinutes: dur}
		case shift.CheckInWindow:
			return Decision{Reject: RejectAlreadyCheckedIn}
		}
		return Decision{Reject: RejectOutOfWindow}
	}

	// CheckedOut, Present and Absent never regress via scans.
	return Decision{Reject: RejectAlreadyComplete}
}

// durationMinutes is floor-truncated, matching how sessions are reported.
func durationMinutes(in, out time.Time) int {
	d := out.Sub(in)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
