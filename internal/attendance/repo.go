package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusattend/internal/shift"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `
	id, student_id, student_name, program, shift, day,
	check_in_time, check_out_time, status, notes, duration_minutes,
	created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var sh, st string
	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.StudentName, &rec.Program, &sh, &rec.Day,
		&rec.CheckInTime, &rec.CheckOutTime, &st, &rec.Notes, &rec.DurationMinutes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Shift = shift.Shift(sh)
	rec.Status = Status(st)
	return rec, nil
}

// GetStudent resolves a roll number against the student directory. Returns
// nil when no such student exists.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, name, program, shift, COALESCE(section, ''), COALESCE(photo_url, ''), active
		FROM students WHERE student_id = $1
	`, studentID)
	var s Student
	var sh string
	if err := row.Scan(&s.ID, &s.Name, &s.Program, &sh, &s.Section, &s.PhotoURL, &s.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Shift = shift.Shift(sh)
	return &s, nil
}

// SetStudentPhoto stores the uploaded photo URL on the student row.
func (r *Repository) SetStudentPhoto(ctx context.Context, studentID, url string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET photo_url = $2, updated_at = NOW() WHERE student_id = $1
	`, studentID, url)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TodayRecord returns the student's record for the given day, or nil.
func (r *Repository) TodayRecord(ctx context.Context, studentID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE student_id = $1 AND day = $2
	`, studentID, Day(day))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertCheckedIn creates the day's record with an open check-in. The unique
// index on (student_id, day) turns a lost create race into ErrDuplicate
// instead of a second row.
func (r *Repository) InsertCheckedIn(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (student_id, student_name, program, shift, day, check_in_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, day) DO NOTHING
		RETURNING `+recordColumns,
		rec.StudentID, rec.StudentName, rec.Program, string(rec.Shift),
		Day(rec.Day), rec.CheckInTime, string(StatusCheckedIn), rec.Notes,
	)
	inserted, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrDuplicate
		}
		return Record{}, err
	}
	return inserted, nil
}

// Checkout closes an open record. The row is locked for the duration of the
// transaction so a concurrent sweep or second scan observes the final state,
// never a half-written one.
func (r *Repository) Checkout(ctx context.Context, studentID string, day, out time.Time, status Status, durationMinutes int, notes string) (Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE student_id = $1 AND day = $2
		FOR UPDATE
	`, studentID, Day(day))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if rec.Status != StatusCheckedIn {
		return rec, ErrConflict
	}

	row = tx.QueryRowContext(ctx, `
		UPDATE attendance
		SET check_out_time = $2, status = $3, duration_minutes = $4,
		    notes = CASE WHEN $5 = '' THEN notes ELSE $5 END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns,
		rec.ID, out, string(status), durationMinutes, notes,
	)
	updated, err := scanRecord(row)
	if err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return updated, nil
}

// InsertAbsent writes an Absent record only if nothing exists for the
// (student, day) at commit time. Reports whether a row was written, which
// keeps repeated sweeps idempotent.
func (r *Repository) InsertAbsent(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, student_name, program, shift, day, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, day) DO NOTHING
	`, rec.StudentID, rec.StudentName, rec.Program, string(rec.Shift),
		Day(rec.Day), string(StatusAbsent), rec.Notes)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordByID fetches a single record.
func (r *Repository) RecordByID(ctx context.Context, id int64) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// SetStatus applies an administrator override to one record, bypassing window
// and duration rules. Returns ErrNotFound for unknown ids.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status, notes string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = $2, notes = CASE WHEN $3 = '' THEN notes ELSE $3 END, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), notes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentToday returns today's newest records, used as the scan-board fallback
// when the Redis feed is cold.
func (r *Repository) RecentToday(ctx context.Context, day time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance
		WHERE day = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, Day(day), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DayStats summarises scan activity for one day.
type DayStats struct {
	TotalScans   int        `json:"total_scans_today"`
	LastScanTime *time.Time `json:"last_scan_time,omitempty"`
}

// StatsToday counts today's records and finds the latest activity.
func (r *Repository) StatsToday(ctx context.Context, day time.Time) (DayStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(updated_at) FROM attendance WHERE day = $1
	`, Day(day))
	var stats DayStats
	if err := row.Scan(&stats.TotalScans, &stats.LastScanTime); err != nil {
		return DayStats{}, err
	}
	return stats, nil
}

// StudentsWithoutRecord lists active students of a shift lacking any record
// for the day; the absence sweep iterates this set.
func (r *Repository) StudentsWithoutRecord(ctx context.Context, sh shift.Shift, day time.Time) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.name, s.program, s.shift
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.student_id AND a.day = $1
		WHERE s.shift = $2 AND s.active AND a.id IS NULL
		ORDER BY s.student_id
	`, Day(day), string(sh))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var s Student
		var shf string
		if err := rows.Scan(&s.ID, &s.Name, &s.Program, &shf); err != nil {
			return nil, err
		}
		s.Shift = shift.Shift(shf)
		s.Active = true
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListFilter narrows List queries; zero values mean "no filter".
type ListFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	StudentID string
	Statuses  []Status
	Program   string
	Shift     shift.Shift
	Search    string
	Page      int
	PerPage   int
}

func (f ListFilter) where() (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(cond string, vals ...any) {
		ph := make([]any, len(vals))
		for i, v := range vals {
			args = append(args, v)
			ph[i] = len(args)
		}
		clauses = append(clauses, fmt.Sprintf(cond, ph...))
	}
	if f.DateFrom != nil {
		add("day >= $%d", Day(*f.DateFrom))
	}
	if f.DateTo != nil {
		add("day <= $%d", Day(*f.DateTo))
	}
	if f.StudentID != "" {
		add("student_id = $%d", f.StudentID)
	}
	if f.Program != "" {
		add("program = $%d", f.Program)
	}
	if f.Shift != "" {
		add("shift = $%d", string(f.Shift))
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		add("(student_id ILIKE $%d OR student_name ILIKE $%d)", like, like)
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			args = append(args, string(s))
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "status IN ("+strings.Join(ph, ",")+")")
	}
	return strings.Join(clauses, " AND "), args
}

// List returns filtered records, newest first, plus the total for pagination.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Record, int, error) {
	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(
		`SELECT `+recordColumns+` FROM attendance WHERE `+where+`
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}
