package attendance

import (
	"testing"
	"time"

	"campusattend/internal/shift"
)

func openRecord(in time.Time) *Record {
	return &Record{Status: StatusCheckedIn, CheckInTime: &in}
}

func TestDecideNoRecord(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

	d := Decide(nil, shift.CheckInWindow, now, 120)
	if d.Action != ActionCheckIn || d.Status != StatusCheckedIn {
		t.Errorf("in window: got %+v, want check-in", d)
	}

	d = Decide(nil, shift.CheckOutWindow, now, 120)
	if d.Action != ActionNone || d.Reject != RejectOutOfWindow {
		t.Errorf("checkout window without record: got %+v, want out_of_window", d)
	}

	d = Decide(nil, shift.Outside, now, 120)
	if d.Reject != RejectOutOfWindow {
		t.Errorf("outside: got %+v, want out_of_window", d)
	}
}

func TestDecideOpenRecord(t *testing.T) {
	in := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		phase        shift.Phase
		now          time.Time
		wantAction   Action
		wantStatus   Status
		wantDuration int
		wantReject   Reject
	}{
		{
			name:       "second scan in checkin window",
			phase:      shift.CheckInWindow,
			now:        in.Add(10 * time.Minute),
			wantReject: RejectAlreadyCheckedIn,
		},
		{
			name:       "scan in the gap",
			phase:      shift.Outside,
			now:        in.Add(2 * time.Hour),
			wantReject: RejectOutOfWindow,
		},
		{
			name:         "checkout at exactly the minimum",
			phase:        shift.CheckOutWindow,
			now:          in.Add(120 * time.Minute),
			wantAction:   ActionCheckOut,
			wantStatus:   StatusPresent,
			wantDuration: 120,
		},
		{
			name:         "checkout below the minimum",
			phase:        shift.CheckOutWindow,
			now:          in.Add(119*time.Minute + 59*time.Second),
			wantAction:   ActionCheckOut,
			wantStatus:   StatusCheckedOut,
			wantDuration: 119,
		},
		{
			name:         "seconds are floor-truncated",
			phase:        shift.CheckOutWindow,
			now:          in.Add(121*time.Minute + 45*time.Second),
			wantAction:   ActionCheckOut,
			wantStatus:   StatusPresent,
			wantDuration: 121,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(openRecord(in), tt.phase, tt.now, 120)
			if d.Action != tt.wantAction {
				t.Errorf("action = %v, want %v", d.Action, tt.wantAction)
			}
			if d.Reject != tt.wantReject {
				t.Errorf("reject = %q, want %q", d.Reject, tt.wantReject)
			}
			if tt.wantAction == ActionCheckOut {
				if d.Status != tt.wantStatus {
					t.Errorf("status = %v, want %v", d.Status, tt.wantStatus)
				}
				if d.DurationMinutes != tt.wantDuration {
					t.Errorf("duration = %d, want %d", d.DurationMinutes, tt.wantDuration)
				}
			}
		})
	}
}

func TestDecideTerminalStatuses(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 30, 0, 0, time.UTC)
	for _, status := range []Status{StatusCheckedOut, StatusPresent, StatusAbsent} {
		rec := &Record{Status: status}
		for _, phase := range []shift.Phase{shift.CheckInWindow, shift.CheckOutWindow, shift.Outside} {
			d := Decide(rec, phase, now, 120)
			if d.Action != ActionNone || d.Reject != RejectAlreadyComplete {
				t.Errorf("%s in %v: got %+v, want already_complete", status, phase, d)
			}
		}
	}
}

func TestDecideClockSkew(t *testing.T) {
	// Checkout before checkin can only come from a corrected clock; the
	// duration clamps to zero instead of going negative.
	in := time.Date(2026, time.March, 2, 12, 30, 0, 0, time.UTC)
	d := Decide(openRecord(in), shift.CheckOutWindow, in.Add(-5*time.Minute), 120)
	if d.Action != ActionCheckOut || d.DurationMinutes != 0 || d.Status != StatusCheckedOut {
		t.Errorf("got %+v, want zero-duration checkout", d)
	}
}

func TestStatusHelpers(t *testing.T) {
	if _, err := ParseStatus("Present"); err != nil {
		t.Errorf("ParseStatus(Present): %v", err)
	}
	if _, err := ParseStatus("present"); err == nil {
		t.Error("ParseStatus is case-sensitive, lowercase should fail")
	}
	if StatusCheckedIn.Terminal() {
		t.Error("CheckedIn must not be terminal")
	}
	for _, s := range []Status{StatusCheckedOut, StatusPresent, StatusAbsent} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestRecordState(t *testing.T) {
	var rec *Record
	if rec.State() != shift.NoRecord {
		t.Error("nil record should map to NoRecord")
	}
	in := time.Now()
	if openRecord(in).State() != shift.OpenRecord {
		t.Error("CheckedIn record should map to OpenRecord")
	}
	if (&Record{Status: StatusPresent}).State() != shift.ClosedRecord {
		t.Error("Present record should map to ClosedRecord")
	}
}
