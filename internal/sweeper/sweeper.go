// Package sweeper marks students absent once their shift's check-in cutoff
// has passed. It is a privileged path: it talks to the record store directly
// and never goes through the gateway's debounce filters.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/feed"
	"campusattend/internal/metrics"
	"campusattend/internal/shift"
)

// Store is the slice of the record store the sweep needs.
type Store interface {
	StudentsWithoutRecord(ctx context.Context, sh shift.Shift, day time.Time) ([]attendance.Student, error)
	InsertAbsent(ctx context.Context, rec attendance.Record) (bool, error)
}

// ConfigSource provides timing configuration, reloaded each run.
type ConfigSource interface {
	Load(ctx context.Context) (shift.Config, error)
}

// ShiftResult reports one shift's share of a sweep.
type ShiftResult struct {
	Shift   shift.Shift `json:"shift"`
	Skipped bool        `json:"skipped"`
	Marked  int         `json:"marked_count"`
	Errors  []string    `json:"errors,omitempty"`
	Message string      `json:"message"`
}

// Result is the outcome of one full sweep.
type Result struct {
	TotalMarked int           `json:"total_marked"`
	Shifts      []ShiftResult `json:"results"`
}

// Sweeper runs the absence sweep.
type Sweeper struct {
	store    Store
	settings ConfigSource
	board    feed.Feed
	audit    attendance.Auditor
	now      func() time.Time
}

// New creates a sweeper. board and audit may be nil.
func New(store Store, settings ConfigSource, board feed.Feed, audit attendance.Auditor) *Sweeper {
	return &Sweeper{
		store:    store,
		settings: settings,
		board:    board,
		audit:    audit,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps both shifts. With force unset, a shift is skipped until the
// current hour reaches its auto-absent cutoff; force ignores the gate (the
// end-of-day cleanup button). Running twice never produces duplicate rows:
// the store only writes Absent when no record exists at commit time.
func (s *Sweeper) Run(ctx context.Context, force bool, actor string) (Result, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		log.Printf("sweeper: settings load failed, using defaults: %v", err)
	}

	now := s.now()
	var res Result
	for _, sh := range []shift.Shift{shift.Morning, shift.Evening} {
		sr := s.sweepShift(ctx, sh, cfg.ForShift(sh), now, force)
		res.TotalMarked += sr.Marked
		res.Shifts = append(res.Shifts, sr)
		log.Printf("sweeper: %s: %s", sh, sr.Message)
	}

	if s.audit != nil {
		action := "auto_mark_absent"
		if force {
			action = "mark_absent_students"
		}
		s.audit.Record(ctx, actor, action, fmt.Sprintf("marked %d student(s) absent", res.TotalMarked))
	}
	return res, nil
}

func (s *Sweeper) sweepShift(ctx context.Context, sh shift.Shift, w shift.Windows, now time.Time, force bool) ShiftResult {
	sr := ShiftResult{Shift: sh}
	if !force && now.Hour() < w.AutoAbsentHour {
		sr.Skipped = true
		sr.Message = fmt.Sprintf("check-in window still open (cutoff hour %d)", w.AutoAbsentHour)
		return sr
	}

	students, err := s.store.StudentsWithoutRecord(ctx, sh, now)
	if err != nil {
		sr.Errors = append(sr.Errors, err.Error())
		sr.Message = "failed to list unrecorded students"
		metrics.SweepErrorsTotal.Inc()
		return sr
	}

	note := fmt.Sprintf("Auto-marked absent after %s check-in window closed", sh)
	for _, student := range students {
		// Each student is decided independently; one failure never aborts
		// the remainder of the sweep.
		marked, err := s.store.InsertAbsent(ctx, attendance.Record{
			StudentID:   student.ID,
			StudentName: student.Name,
			Program:     student.Program,
			Shift:       sh,
			Day:         now,
			Notes:       note,
		})
		if err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("%s: %v", student.ID, err))
			metrics.SweepErrorsTotal.Inc()
			continue
		}
		if !marked {
			// A scan won the race between listing and commit; their record
			// stands and the student is not absent.
			continue
		}
		sr.Marked++
		metrics.AbsentMarkedTotal.WithLabelValues(string(sh)).Inc()
		if s.board != nil {
			entry := feed.Entry{
				StudentName: student.Name,
				StudentID:   student.ID,
				Status:      string(attendance.StatusAbsent),
				Time:        now,
			}
			if err := s.board.Publish(ctx, entry); err != nil {
				log.Printf("sweeper: feed publish failed: %v", err)
			}
		}
	}
	sr.Message = fmt.Sprintf("marked %d %s student(s) absent", sr.Marked, sh)
	return sr
}

// Loop runs the auto sweep on a fixed interval until the context is
// cancelled. Used by the scheduler daemon.
func (s *Sweeper) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("sweeper: running every %s", interval)
	for {
		select {
		case <-ticker.C:
			if _, err := s.Run(ctx, false, "scheduler"); err != nil {
				log.Printf("sweeper: run failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
