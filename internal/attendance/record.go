package attendance

import (
	"errors"
	"fmt"
	"time"

	"campusattend/internal/shift"
)

// Status is the closed set of attendance states. The store only ever sees
// these values; free-form strings are rejected at the boundary.
type Status string

const (
	StatusCheckedIn  Status = "CheckedIn"
	StatusCheckedOut Status = "CheckedOut"
	StatusPresent    Status = "Present"
	StatusAbsent     Status = "Absent"
)

// ParseStatus validates an externally supplied status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCheckedIn, StatusCheckedOut, StatusPresent, StatusAbsent:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Terminal reports whether scan-derived transitions out of this status exist.
func (s Status) Terminal() bool {
	return s == StatusCheckedOut || s == StatusPresent || s == StatusAbsent
}

// Sentinel errors shared by the repository and services.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists for student and date")
	ErrConflict  = errors.New("concurrent modification of attendance record")
)

// Student is the read-only view of the student directory consumed here.
type Student struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Program  string      `json:"program"`
	Shift    shift.Shift `json:"shift"`
	Section  string      `json:"section,omitempty"`
	PhotoURL string      `json:"photo_url,omitempty"`
	Active   bool        `json:"-"`
}

// Record is one student's attendance for one calendar day. At most one record
// exists per (student_id, day); the unique index backs that invariant.
type Record struct {
	ID              int64       `json:"id"`
	StudentID       string      `json:"student_id"`
	StudentName     string      `json:"student_name"`
	Program         string      `json:"program"`
	Shift           shift.Shift `json:"shift"`
	Day             time.Time   `json:"date"`
	CheckInTime     *time.Time  `json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time  `json:"check_out_time,omitempty"`
	Status          Status      `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	DurationMinutes *int        `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Open reports whether the record has a check-in awaiting its terminal state.
func (r *Record) Open() bool {
	return r != nil && r.Status == StatusCheckedIn
}

// State maps the record onto the resolver's view for window tie-breaking.
func (r *Record) State() shift.RecordState {
	switch {
	case r == nil:
		return shift.NoRecord
	case r.Open():
		return shift.OpenRecord
	}
	return shift.ClosedRecord
}

// Day truncates an instant to its calendar date in the instant's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
