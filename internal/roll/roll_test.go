package roll

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Number
		wantErr bool
	}{
		{in: "25-SWT-01", want: Number{Raw: "25-SWT-01", AdmissionYear: 2025, Program: "SWT", Sequence: 1}},
		{in: "24-ECSE-02", want: Number{Raw: "24-ECSE-02", AdmissionYear: 2024, Program: "CSE", Sequence: 2, Evening: true}},
		{in: "  25-swt-01 ", want: Number{Raw: "25-SWT-01", AdmissionYear: 2025, Program: "SWT", Sequence: 1}},
		{in: "23-AI-117", want: Number{Raw: "23-AI-117", AdmissionYear: 2023, Program: "AI", Sequence: 117}},
		{in: "25-SWT", wantErr: true},
		{in: "SWT-01", wantErr: true},
		{in: "2025-SWT-01", wantErr: true},
		{in: "25-S-01", wantErr: true},
		{in: "25-SWTXY-01", wantErr: true},
		{in: "25-SWT-", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalidFormat", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestShift(t *testing.T) {
	if s := mustParse(t, "25-SWT-01").Shift(); s != "Morning" {
		t.Errorf("Shift() = %q, want Morning", s)
	}
	if s := mustParse(t, "25-ESWT-01").Shift(); s != "Evening" {
		t.Errorf("Shift() = %q, want Evening", s)
	}
}

func TestValid(t *testing.T) {
	if !Valid("25-SWT-01") {
		t.Error("expected 25-SWT-01 to be valid")
	}
	if Valid("garbage") {
		t.Error("expected garbage to be invalid")
	}
}

func TestYearOfStudy(t *testing.T) {
	n := mustParse(t, "24-SWT-01")
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), 2},
		{time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC), 4},
		{time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		if got := n.YearOfStudy(tt.now); got != tt.want {
			t.Errorf("YearOfStudy(%s) = %d, want %d", tt.now.Format("2006-01"), got, tt.want)
		}
	}
}

func mustParse(t *testing.T, s string) Number {
	t.Helper()
	n, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return n
}
