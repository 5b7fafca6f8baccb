package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/attendance"
	"campusattend/internal/feed"
	"campusattend/internal/shift"
)

type fakeStore struct {
	unrecorded map[shift.Shift][]attendance.Student
	existing   map[string]bool
	failFor    map[string]error
	inserted   []attendance.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		unrecorded: map[shift.Shift][]attendance.Student{},
		existing:   map[string]bool{},
		failFor:    map[string]error{},
	}
}

func (f *fakeStore) StudentsWithoutRecord(_ context.Context, sh shift.Shift, _ time.Time) ([]attendance.Student, error) {
	return f.unrecorded[sh], nil
}

func (f *fakeStore) InsertAbsent(_ context.Context, rec attendance.Record) (bool, error) {
	if err := f.failFor[rec.StudentID]; err != nil {
		return false, err
	}
	if f.existing[rec.StudentID] {
		return false, nil
	}
	f.existing[rec.StudentID] = true
	f.inserted = append(f.inserted, rec)
	return true, nil
}

type fixedSettings struct{ cfg shift.Config }

func (s fixedSettings) Load(context.Context) (shift.Config, error) { return s.cfg, nil }

type recordedAudit struct {
	actions []string
	details []string
}

func (a *recordedAudit) Record(_ context.Context, _, action, detail string) {
	a.actions = append(a.actions, action)
	a.details = append(a.details, detail)
}

func student(id string, sh shift.Shift) attendance.Student {
	return attendance.Student{ID: id, Name: "Student " + id, Program: "SWT", Shift: sh, Active: true}
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.March, 2, hour, 15, 0, 0, time.UTC)
	}
}

func newTestSweeper(store *fakeStore, hour int) (*Sweeper, *feed.InMemory, *recordedAudit) {
	board := feed.NewInMemory(20)
	audit := &recordedAudit{}
	sw := New(store, fixedSettings{shift.Defaults()}, board, audit).WithClock(at(hour))
	return sw, board, audit
}

func TestRunSkipsBeforeCutoff(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{student("25-SWT-01", shift.Morning)}
	sw, _, _ := newTestSweeper(store, 10)

	res, err := sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalMarked)
	require.Len(t, res.Shifts, 2)
	assert.True(t, res.Shifts[0].Skipped)
	assert.True(t, res.Shifts[1].Skipped)
	assert.Empty(t, store.inserted)
}

func TestRunMarksAfterCutoff(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{
		student("25-SWT-01", shift.Morning),
		student("25-SWT-02", shift.Morning),
	}
	store.unrecorded[shift.Evening] = []attendance.Student{student("25-ESWT-01", shift.Evening)}
	sw, board, audit := newTestSweeper(store, 11)

	res, err := sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	// 11:15 passes the morning cutoff (11) but not the evening one (17).
	assert.Equal(t, 2, res.TotalMarked)
	assert.False(t, res.Shifts[0].Skipped)
	assert.True(t, res.Shifts[1].Skipped)

	require.Len(t, store.inserted, 2)
	assert.Equal(t, shift.Morning, store.inserted[0].Shift)
	assert.Contains(t, store.inserted[0].Notes, "Morning check-in window closed")

	entries, _ := board.Recent(context.Background(), 20)
	assert.Len(t, entries, 2)
	assert.Equal(t, string(attendance.StatusAbsent), entries[0].Status)

	require.Len(t, audit.actions, 1)
	assert.Equal(t, "auto_mark_absent", audit.actions[0])
	assert.Contains(t, audit.details[0], "2")
}

func TestRunForceIgnoresCutoff(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{student("25-SWT-01", shift.Morning)}
	store.unrecorded[shift.Evening] = []attendance.Student{student("25-ESWT-01", shift.Evening)}
	sw, _, audit := newTestSweeper(store, 9)

	res, err := sw.Run(context.Background(), true, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalMarked)
	require.Len(t, audit.actions, 1)
	assert.Equal(t, "mark_absent_students", audit.actions[0])
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{student("25-SWT-01", shift.Morning)}
	sw, _, _ := newTestSweeper(store, 11)

	res, err := sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalMarked)

	// Second pass: the listing may lag, but the conditional insert refuses
	// the duplicate and the run reports nothing new.
	res, err = sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalMarked)
	assert.Len(t, store.inserted, 1)
}

func TestRunScanWinsRace(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{student("25-SWT-01", shift.Morning)}
	// A scan committed between the listing and the insert.
	store.existing["25-SWT-01"] = true
	sw, board, _ := newTestSweeper(store, 11)

	res, err := sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalMarked)
	entries, _ := board.Recent(context.Background(), 20)
	assert.Empty(t, entries)
}

func TestRunIsolatesPerStudentFailures(t *testing.T) {
	store := newFakeStore()
	store.unrecorded[shift.Morning] = []attendance.Student{
		student("25-SWT-01", shift.Morning),
		student("25-SWT-02", shift.Morning),
		student("25-SWT-03", shift.Morning),
	}
	store.failFor["25-SWT-02"] = errors.New("deadlock detected")
	sw, _, _ := newTestSweeper(store, 11)

	res, err := sw.Run(context.Background(), false, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalMarked)
	require.Len(t, res.Shifts[0].Errors, 1)
	assert.Contains(t, res.Shifts[0].Errors[0], "25-SWT-02")
}
