// Package gateway is the entry point for scan events: it normalizes input,
// applies the debounce and duplicate-suppression filters, resolves the shift
// window, runs the state machine and commits exactly one write per accepted
// scan.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/dedup"
	"campusattend/internal/feed"
	"campusattend/internal/metrics"
	"campusattend/internal/roll"
	"campusattend/internal/shift"
)

// Store is the slice of the record store the gateway needs.
type Store interface {
	GetStudent(ctx context.Context, studentID string) (*attendance.Student, error)
	TodayRecord(ctx context.Context, studentID string, day time.Time) (*attendance.Record, error)
	InsertCheckedIn(ctx context.Context, rec attendance.Record) (attendance.Record, error)
	Checkout(ctx context.Context, studentID string, day, out time.Time, status attendance.Status, durationMinutes int, notes string) (attendance.Record, error)
	RecentToday(ctx context.Context, day time.Time, limit int) ([]attendance.Record, error)
	StatsToday(ctx context.Context, day time.Time) (attendance.DayStats, error)
}

// ConfigSource provides the timing configuration, reloaded per request.
type ConfigSource interface {
	Load(ctx context.Context) (shift.Config, error)
}

// Source distinguishes scanner hardware from manual entry.
type Source string

const (
	SourceScanner Source = "scanner"
	SourceManual  Source = "manual"
)

// Code classifies a scan outcome. Soft outcomes (debounced, suppressed) and
// rejections carry the current record so the UI can explain the state.
type Code string

const (
	CodeCheckedIn        Code = "checked_in"
	CodeCheckedOut       Code = "checked_out"
	CodePresent          Code = "present"
	CodeDebounced        Code = "debounced"
	CodeSuppressed       Code = "suppressed"
	CodeOutOfWindow      Code = "out_of_window"
	CodeAlreadyCheckedIn Code = "already_checked_in"
	CodeAlreadyComplete  Code = "already_complete"
)

// Result is the gateway's answer to one scan.
type Result struct {
	Accepted        bool                `json:"success"`
	Code            Code                `json:"status"`
	Student         *attendance.Student `json:"student,omitempty"`
	Record          *attendance.Record  `json:"record,omitempty"`
	DurationMinutes *int                `json:"duration,omitempty"`
	Message         string              `json:"message"`
}

// Hard failures. Everything else a scan can produce is a Result code.
var (
	ErrStudentNotFound = errors.New("student not found or inactive")
	ErrPersistence     = errors.New("record store unavailable")
)

// Gateway wires the filters, resolver and state machine over the store.
type Gateway struct {
	store        Store
	settings     ConfigSource
	debounce     *dedup.Cache
	suppress     *dedup.Cache
	board        feed.Feed
	storeTimeout time.Duration
	now          func() time.Time
}

// Option tweaks gateway construction.
type Option func(*Gateway)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithStoreTimeout bounds individual store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.storeTimeout = d }
}

// New creates a gateway. maxStudents caps the dedup maps.
func New(store Store, settings ConfigSource, board feed.Feed, maxStudents int, opts ...Option) *Gateway {
	g := &Gateway{
		store:        store,
		settings:     settings,
		debounce:     dedup.New(maxStudents),
		suppress:     dedup.New(maxStudents),
		board:        board,
		storeTimeout: 5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	metrics.RegisterDedupGauge("suppress", func() float64 { return float64(g.suppress.Len()) })
	return g
}

// SubmitScan turns one scan or manual entry into a determinate attendance
// outcome. Exactly one record write happens per accepted call; rejections
// write nothing.
func (g *Gateway) SubmitScan(ctx context.Context, identifier string, source Source, notes string) (Result, error) {
	num, err := roll.Parse(identifier)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("validation_error").Inc()
		return Result{}, err
	}

	cfg, err := g.settings.Load(ctx)
	if err != nil {
		// Settings fall back to defaults; only log the load failure.
		log.Printf("gateway: settings load failed, using defaults: %v", err)
	}

	student, err := g.getStudent(ctx, num.Raw)
	if err != nil {
		return Result{}, err
	}

	now := g.now()

	// Raw-input throttle first: a double-triggered scanner read never reaches
	// the semantic window.
	if !g.debounce.Check(num.Raw, now, cfg.ScanDebounce) {
		metrics.ScansTotal.WithLabelValues(string(CodeDebounced)).Inc()
		return g.preview(ctx, student, now, CodeDebounced, "Already recorded"), nil
	}
	if !g.suppress.Check(num.Raw, now, cfg.DuplicateSuppression) {
		metrics.ScansTotal.WithLabelValues(string(CodeSuppressed)).Inc()
		return g.preview(ctx, student, now, CodeSuppressed, "Already recorded"), nil
	}

	res, err := g.decideAndCommit(ctx, student, cfg, now, notes)
	if err != nil {
		// The scan did not commit; release its suppression stamp so an
		// operator retry is not rejected as a duplicate.
		g.suppress.Forget(num.Raw)
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}
	metrics.ScansTotal.WithLabelValues(string(res.Code)).Inc()

	if res.Accepted && g.board != nil {
		entry := feed.Entry{
			StudentName: student.Name,
			StudentID:   student.ID,
			Status:      string(res.Record.Status),
			Time:        now,
		}
		if err := g.board.Publish(ctx, entry); err != nil {
			log.Printf("gateway: feed publish failed: %v", err)
		}
	}
	return res, nil
}

// decideAndCommit runs resolver + state machine and commits the decision.
// A lost per-key race is retried once before surfacing ErrConflict.
func (g *Gateway) decideAndCommit(ctx context.Context, student *attendance.Student, cfg shift.Config, now time.Time, notes string) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := g.todayRecord(ctx, student.ID, now)
		if err != nil {
			return Result{}, err
		}

		windows := cfg.ForShift(student.Shift)
		phase := shift.ResolvePhase(windows, now, rec.State())
		d := attendance.Decide(rec, phase, now, cfg.MinimumDurationMinutes)

		switch d.Action {
		case attendance.ActionCheckIn:
			in := now
			created, err := g.insertCheckedIn(ctx, attendance.Record{
				StudentID:   student.ID,
				StudentName: student.Name,
				Program:     student.Program,
				Shift:       student.Shift,
				Day:         now,
				CheckInTime: &in,
				Notes:       notes,
			})
			if errors.Is(err, attendance.ErrDuplicate) {
				lastErr = attendance.ErrConflict
				continue
			}
			if err != nil {
				return Result{}, err
			}
			return Result{
				Accepted: true,
				Code:     CodeCheckedIn,
				Student:  student,
				Record:   &created,
				Message:  "Check-in successful",
			}, nil

		case attendance.ActionCheckOut:
			updated, err := g.checkout(ctx, student.ID, now, d.Status, d.DurationMinutes, notes)
			if errors.Is(err, attendance.ErrConflict) || errors.Is(err, attendance.ErrNotFound) {
				lastErr = attendance.ErrConflict
				continue
			}
			if err != nil {
				return Result{}, err
			}
			code := CodeCheckedOut
			msg := fmt.Sprintf("Checked out after %d minutes (below the %d minute minimum)", d.DurationMinutes, cfg.MinimumDurationMinutes)
			if d.Status == attendance.StatusPresent {
				code = CodePresent
				msg = "Check-out successful, marked Present"
			}
			dur := d.DurationMinutes
			return Result{
				Accepted:        true,
				Code:            code,
				Student:         student,
				Record:          &updated,
				DurationMinutes: &dur,
				Message:         msg,
			}, nil
		}

		return g.reject(student, rec, windows, d), nil
	}
	return Result{}, lastErr
}

func (g *Gateway) reject(student *attendance.Student, rec *attendance.Record, w shift.Windows, d attendance.Decision) Result {
	res := Result{Student: student, Record: rec}
	switch d.Reject {
	case attendance.RejectAlreadyCheckedIn:
		res.Code = CodeAlreadyCheckedIn
		res.Message = "Already checked in today"
	case attendance.RejectAlreadyComplete:
		res.Code = CodeAlreadyComplete
		res.Message = "Attendance already recorded for today"
	default:
		res.Code = CodeOutOfWindow
		res.Message = fmt.Sprintf("Outside scan windows (check-in %s-%s, check-out %s-%s)",
			w.CheckinStart, w.CheckinEnd, w.CheckoutStart, w.CheckoutEnd)
	}
	return res
}

// preview builds the soft "already recorded" response with the last known
// record state attached.
func (g *Gateway) preview(ctx context.Context, student *attendance.Student, now time.Time, code Code, msg string) Result {
	rec, err := g.todayRecord(ctx, student.ID, now)
	if err != nil {
		log.Printf("gateway: preview read failed for %s: %v", student.ID, err)
	}
	return Result{Code: code, Student: student, Record: rec, Message: msg}
}

// StudentPreview returns the directory entry plus today's record, for the
// scan UI side panel.
func (g *Gateway) StudentPreview(ctx context.Context, identifier string) (*attendance.Student, *attendance.Record, error) {
	num, err := roll.Parse(identifier)
	if err != nil {
		return nil, nil, err
	}
	student, err := g.getStudent(ctx, num.Raw)
	if err != nil {
		return nil, nil, err
	}
	rec, err := g.todayRecord(ctx, student.ID, g.now())
	if err != nil {
		return nil, nil, err
	}
	return student, rec, nil
}

// RecentScans serves the scan board from the feed, falling back to the store
// when the feed is empty (fresh process, cold Redis).
func (g *Gateway) RecentScans(ctx context.Context, n int) ([]feed.Entry, error) {
	if g.board != nil {
		entries, err := g.board.Recent(ctx, n)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			log.Printf("gateway: feed read failed: %v", err)
		}
	}
	records, err := g.store.RecentToday(ctx, g.now(), n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	entries := make([]feed.Entry, 0, len(records))
	for _, rec := range records {
		t := rec.UpdatedAt
		if rec.CheckOutTime != nil {
			t = *rec.CheckOutTime
		} else if rec.CheckInTime != nil {
			t = *rec.CheckInTime
		}
		entries = append(entries, feed.Entry{
			StudentName: rec.StudentName,
			StudentID:   rec.StudentID,
			Status:      string(rec.Status),
			Time:        t,
		})
	}
	return entries, nil
}

// ScanStats reports today's scan totals.
func (g *Gateway) ScanStats(ctx context.Context) (attendance.DayStats, error) {
	stats, err := g.store.StatsToday(ctx, g.now())
	if err != nil {
		return attendance.DayStats{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return stats, nil
}

// Store calls below share one contract: bounded timeout, one retry with a
// short backoff, and ErrPersistence once both attempts fail. A cancelled
// caller context aborts without retrying.

func (g *Gateway) getStudent(ctx context.Context, id string) (*attendance.Student, error) {
	var student *attendance.Student
	err := g.withRetry(ctx, func(ctx context.Context) error {
		var err error
		student, err = g.store.GetStudent(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if student == nil || !student.Active {
		return nil, ErrStudentNotFound
	}
	return student, nil
}

func (g *Gateway) todayRecord(ctx context.Context, id string, day time.Time) (*attendance.Record, error) {
	var rec *attendance.Record
	err := g.withRetry(ctx, func(ctx context.Context) error {
		var err error
		rec, err = g.store.TodayRecord(ctx, id, day)
		return err
	})
	return rec, err
}

func (g *Gateway) insertCheckedIn(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	var created attendance.Record
	err := g.withRetry(ctx, func(ctx context.Context) error {
		var err error
		created, err = g.store.InsertCheckedIn(ctx, rec)
		return err
	})
	return created, err
}

func (g *Gateway) checkout(ctx context.Context, id string, now time.Time, status attendance.Status, dur int, notes string) (attendance.Record, error) {
	var updated attendance.Record
	err := g.withRetry(ctx, func(ctx context.Context) error {
		var err error
		updated, err = g.store.Checkout(ctx, id, now, now, status, dur, notes)
		return err
	})
	return updated, err
}

func (g *Gateway) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		// Domain outcomes pass through; only infrastructure errors retry.
		if errors.Is(err, attendance.ErrDuplicate) || errors.Is(err, attendance.ErrConflict) || errors.Is(err, attendance.ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}
