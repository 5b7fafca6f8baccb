// Package export renders attendance records as downloadable CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"campusattend/internal/attendance"
)

var header = []string{
	"Student ID", "Name", "Program", "Shift", "Date",
	"Check In", "Check Out", "Duration (min)", "Status", "Notes",
}

func row(r attendance.Record) []string {
	return []string{
		r.StudentID,
		r.StudentName,
		r.Program,
		string(r.Shift),
		r.Day.Format("2006-01-02"),
		clock(r.CheckInTime),
		clock(r.CheckOutTime),
		minutes(r.DurationMinutes),
		string(r.Status),
		r.Notes,
	}
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}

func minutes(m *int) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%d", *m)
}

// CSV writes the records as comma-separated values.
func CSV(w io.Writer, records []attendance.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes the records as a single-sheet spreadsheet.
func XLSX(w io.Writer, records []attendance.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		vals := row(r)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
