package shift

import (
	"testing"
	"time"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, time.March, 2, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 9 * 60},
		{in: "13:40", want: 13*60 + 40},
		{in: "13:40:59", want: 13*60 + 40},
		{in: "00:00", want: 0},
		{in: "23:59", want: 23*60 + 59},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "0900", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestResolvePhaseMorning(t *testing.T) {
	w := Defaults().Morning
	tests := []struct {
		name  string
		now   time.Time
		state RecordState
		want  Phase
	}{
		{"before checkin", at("08:59"), NoRecord, Outside},
		{"checkin opens", at("09:00"), NoRecord, CheckInWindow},
		{"mid checkin", at("10:30"), NoRecord, CheckInWindow},
		{"checkin closes inclusive", at("11:00"), NoRecord, CheckInWindow},
		{"gap between windows", at("11:30"), OpenRecord, Outside},
		{"checkout opens", at("12:00"), OpenRecord, CheckOutWindow},
		{"checkout closes inclusive", at("13:40"), OpenRecord, CheckOutWindow},
		{"after checkout", at("13:41"), OpenRecord, Outside},
	}
	for _, tt := range tests {
		if got := ResolvePhase(w, tt.now, tt.state); got != tt.want {
			t.Errorf("%s: ResolvePhase = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// The evening windows fully overlap, so the record state decides.
func TestResolvePhaseOverlap(t *testing.T) {
	w := Defaults().Evening
	tests := []struct {
		name  string
		now   time.Time
		state RecordState
		want  Phase
	}{
		{"no record resolves to checkin", at("16:00"), NoRecord, CheckInWindow},
		{"open record resolves to checkout", at("16:00"), OpenRecord, CheckOutWindow},
		{"closed record resolves to checkin", at("16:00"), ClosedRecord, CheckInWindow},
		{"outside both", at("19:00"), OpenRecord, Outside},
	}
	for _, tt := range tests {
		if got := ResolvePhase(w, tt.now, tt.state); got != tt.want {
			t.Errorf("%s: ResolvePhase = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApplySettings(t *testing.T) {
	cfg := Defaults()
	applySettings(&cfg, map[string]string{
		"morning_checkin_start":    "08:30",
		"morning_checkin_end":      "bogus",
		"auto_absent_morning_hour": "12",
		"minimum_duration_minutes": "90",
		"scan_debounce_ms":         "500",
	})

	if cfg.Morning.CheckinStart != MustClock("08:30") {
		t.Errorf("CheckinStart = %v, want 08:30", cfg.Morning.CheckinStart)
	}
	// Malformed values keep the default.
	if cfg.Morning.CheckinEnd != MustClock("11:00") {
		t.Errorf("CheckinEnd = %v, want default 11:00", cfg.Morning.CheckinEnd)
	}
	if cfg.Morning.AutoAbsentHour != 12 {
		t.Errorf("AutoAbsentHour = %d, want 12", cfg.Morning.AutoAbsentHour)
	}
	if cfg.MinimumDurationMinutes != 90 {
		t.Errorf("MinimumDurationMinutes = %d, want 90", cfg.MinimumDurationMinutes)
	}
	if cfg.ScanDebounce != 500*time.Millisecond {
		t.Errorf("ScanDebounce = %v, want 500ms", cfg.ScanDebounce)
	}
	// Untouched keys keep defaults.
	if cfg.DuplicateSuppression != 3*time.Second {
		t.Errorf("DuplicateSuppression = %v, want 3s", cfg.DuplicateSuppression)
	}
}

func TestForShift(t *testing.T) {
	cfg := Defaults()
	if got := cfg.ForShift(Evening); got != cfg.Evening {
		t.Error("ForShift(Evening) did not return evening windows")
	}
	if got := cfg.ForShift(Morning); got != cfg.Morning {
		t.Error("ForShift(Morning) did not return morning windows")
	}
}
