package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printd/printd/job"
	"github.com/printd/printd/printer"
)

type fakeLauncher struct {
	started []int
	stopped []int
	failNext bool
}

func (f *fakeLauncher) Start(r *job.Record, p *printer.Printer, plan Plan) error {
	if f.failNext {
		f.failNext = false
		return assertErr
	}
	f.started = append(f.started, r.ID)
	return nil
}

func (f *fakeLauncher) Stop(r *job.Record, force bool) {
	f.stopped = append(f.stopped, r.ID)
}

var assertErr = errString("launch failed")

type errString string

func (e errString) Error() string { return string(e) }

func newTestDispatcher(t *testing.T) (*Dispatcher, *job.Store, *printer.MemRegistry, *fakeLauncher) {
	t.Helper()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1", State: printer.EState.Idle()})
	store := job.NewStore(t.TempDir(), false, reg)
	launcher := &fakeLauncher{}
	d := &Dispatcher{
		Store:    store,
		Registry: reg,
		Filters:  IdentityFilterGraph{},
		Launcher: launcher,
		FilterLimit: 0,
	}
	store.OnStop = d.StopJob
	return d, store, reg, launcher
}

func TestCheckJobsStartsEligiblePendingJob(t *testing.T) {
	d, store, _, launcher := newTestDispatcher(t)
	r := store.Add(0, "laser1")
	r.NumFiles = 1

	d.CheckJobs(time.Now())

	assert.Contains(t, launcher.started, r.ID)
	assert.Equal(t, job.EState.Processing(), r.State)
}

func TestCheckJobsSkipsJobsForBusyPrinter(t *testing.T) {
	d, store, reg, launcher := newTestDispatcher(t)
	reg.SetState("laser1", printer.EState.Processing())
	r := store.Add(0, "laser1")
	r.NumFiles = 1

	d.CheckJobs(time.Now())

	assert.NotContains(t, launcher.started, r.ID)
	assert.Equal(t, job.EState.Pending(), r.State)
}

func TestCheckJobsCancelsJobWithVanishedDestination(t *testing.T) {
	d, store, _, _ := newTestDispatcher(t)
	r := store.Add(0, "ghost")
	r.NumFiles = 1

	d.CheckJobs(time.Now())

	assert.Nil(t, store.Find(r.ID))
}

func TestCheckJobsReleasesExpiredHold(t *testing.T) {
	d, store, _, launcher := newTestDispatcher(t)
	r := store.AddHeld(0, "laser1", time.Now().Add(-time.Minute))
	r.NumFiles = 1

	d.CheckJobs(time.Now())

	assert.Contains(t, launcher.started, r.ID)
}

func TestCheckJobsLeavesFutureHoldAlone(t *testing.T) {
	d, store, _, launcher := newTestDispatcher(t)
	r := store.AddHeld(0, "laser1", time.Now().Add(time.Hour))
	r.NumFiles = 1

	d.CheckJobs(time.Now())

	assert.NotContains(t, launcher.started, r.ID)
	assert.Equal(t, job.EState.Held(), r.State)
}

func TestStopJobClearsBackPointersAndDecrementsCost(t *testing.T) {
	d, store, reg, launcher := newTestDispatcher(t)
	r := store.Add(0, "laser1")
	r.NumFiles = 1
	d.CheckJobs(time.Now())
	require.Equal(t, job.EState.Processing(), r.State)
	r.Cost = 4
	d.FilterLevel = 10

	d.StopJob(r, false)

	assert.Equal(t, 6, d.FilterLevel)
	assert.Equal(t, job.EState.Stopped(), r.State)
	assert.Empty(t, r.AssignedPrinter)
	assert.Contains(t, launcher.stopped, r.ID)
	p, _ := reg.Lookup("laser1")
	assert.Equal(t, 0, p.CurrentJobID)
	assert.Equal(t, printer.EState.Idle(), p.State)
}

func TestHoldJobStopsProcessingJobFirst(t *testing.T) {
	d, store, _, launcher := newTestDispatcher(t)
	r := store.Add(0, "laser1")
	r.NumFiles = 1
	d.CheckJobs(time.Now())
	require.Equal(t, job.EState.Processing(), r.State)

	require.NoError(t, d.HoldJob(r.ID))

	assert.Equal(t, job.EState.Held(), r.State)
	assert.Contains(t, launcher.stopped, r.ID)
}

func TestSetHoldStopsProcessingJobAndResolvesKeyword(t *testing.T) {
	d, store, _, launcher := newTestDispatcher(t)
	r := store.Add(0, "laser1")
	r.NumFiles = 1
	d.CheckJobs(time.Now())
	require.Equal(t, job.EState.Processing(), r.State)

	require.NoError(t, d.SetHold(r.ID, "23:59"))

	assert.Equal(t, job.EState.Held(), r.State)
	assert.False(t, r.HoldUntil.IsZero(), "a clock-time value resolves to a concrete future instant")
	assert.Contains(t, launcher.stopped, r.ID)
}

func TestSetHoldUnrecognizedValueHoldsIndefinitely(t *testing.T) {
	d, store, _, _ := newTestDispatcher(t)
	r := store.Add(0, "laser1")

	require.NoError(t, d.SetHold(r.ID, "garbage"))

	assert.Equal(t, job.EState.Held(), r.State)
	assert.True(t, r.HoldUntil.IsZero(), "hold-parse-failure resolves to indefinite hold per spec.md §7")
}

func TestReleaseJobRejectsNonHeldJob(t *testing.T) {
	d, store, _, _ := newTestDispatcher(t)
	r := store.Add(0, "laser1")

	err := d.ReleaseJob(r.ID)
	assert.ErrorIs(t, err, job.ErrBadState)
}

func TestRestartJobRequiresStoppedWithoutPreserveFiles(t *testing.T) {
	d, store, reg, _ := newTestDispatcher(t)
	r := store.Add(0, "laser1")

	err := d.RestartJob(r.ID)
	assert.ErrorIs(t, err, job.ErrBadState)

	// Keep the printer busy so RestartJob's re-dispatch leaves the job
	// pending instead of starting (or, with no files, cancelling) it.
	reg.SetState("laser1", printer.EState.Processing())
	d.PreserveFiles = true
	require.NoError(t, d.RestartJob(r.ID))
	assert.Equal(t, job.EState.Pending(), r.State)
}
