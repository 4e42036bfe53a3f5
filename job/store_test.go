package job

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printd/printd/attr"
	"github.com/printd/printd/printer"
)

func newTestStore(t *testing.T, keepHistory bool) *Store {
	t.Helper()
	dir := t.TempDir()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1"})
	return NewStore(dir, keepHistory, reg)
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t, false)
	a := s.Add(0, "laser1")
	b := s.Add(0, "laser1")
	assert.Equal(t, a.ID+1, b.ID)
	assert.Equal(t, EState.Pending(), a.State)
}

func TestJobsOrderedByPriorityThenID(t *testing.T) {
	s := newTestStore(t, false)
	low := s.Add(0, "laser1")
	high := s.Add(10, "laser1")
	mid := s.Add(5, "laser1")

	order := s.Jobs()
	require.Len(t, order, 3)
	assert.Equal(t, high.ID, order[0].ID)
	assert.Equal(t, mid.ID, order[1].ID)
	assert.Equal(t, low.ID, order[2].ID)
}

func TestChangePriorityRelinks(t *testing.T) {
	s := newTestStore(t, false)
	a := s.Add(5, "laser1")
	b := s.Add(3, "laser1")

	require.NoError(t, s.ChangePriority(b.ID, 9))

	order := s.Jobs()
	assert.Equal(t, b.ID, order[0].ID, "raising b's priority above a must move it to the front")
	assert.Equal(t, a.ID, order[1].ID)
}

func TestMoveJobRejectsProcessing(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")
	r.State = EState.Processing()

	err := s.MoveJob(r.ID, "laser2")
	assert.ErrorIs(t, err, ErrBadState)
}

func TestMoveJobRewritesDestination(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")
	require.NoError(t, s.MoveJob(r.ID, "laser2"))
	assert.Equal(t, "laser2", r.Dest)
}

func TestCountForPrinterAndUser(t *testing.T) {
	s := newTestStore(t, false)
	a := s.Add(0, "laser1")
	a.UsernameAttr = &attr.Attribute{Values: []attr.Value{attr.TextValue("alice")}}
	b := s.Add(0, "laser1")
	b.UsernameAttr = &attr.Attribute{Values: []attr.Value{attr.TextValue("bob")}}
	c := s.Add(0, "laser2")
	c.State = EState.Cancelled()

	assert.Equal(t, 2, s.CountForPrinter("laser1"))
	assert.Equal(t, 0, s.CountForPrinter("laser2"), "terminal jobs don't count")
	assert.Equal(t, 1, s.CountForUser("alice"))
}

func TestCancelPurgesWithoutHistory(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")
	r.NumFiles = 1
	require.NoError(t, os.WriteFile(s.DataFilePath(r.ID, 1), []byte("data"), 0600))

	require.NoError(t, s.Cancel(r.ID, false))

	assert.Nil(t, s.Find(r.ID))
	_, err := os.Stat(s.DataFilePath(r.ID, 1))
	assert.True(t, os.IsNotExist(err), "data file must be removed when history isn't kept")
}

func TestCancelStopsProcessingJob(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")
	r.State = EState.Processing()

	var stopped *Record
	s.OnStop = func(rec *Record, force bool) {
		stopped = rec
		assert.False(t, force)
	}

	require.NoError(t, s.Cancel(r.ID, true))
	assert.Same(t, r, stopped)
}

func TestFinishRetainsHistoryWhenRequested(t *testing.T) {
	s := newTestStore(t, true)
	r := s.Add(0, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), "job-state", attr.IntValue(int32(EState.Pending())))
	require.NoError(t, err)

	require.NoError(t, s.Finish(r.ID, EState.Completed(), false))

	got := s.Find(r.ID)
	require.NotNil(t, got, "history kept: job stays in store as a terminal record")
	assert.Equal(t, EState.Completed(), got.State)

	_, statErr := os.Stat(s.controlFilePath(r.ID))
	assert.NoError(t, statErr, "control file persisted when history is retained")
}

func TestFinishPurgesRemoteRegardlessOfHistory(t *testing.T) {
	s := newTestStore(t, true)
	r := s.Add(0, "remote1")
	r.DestKind = r.DestKind.With(DestRemote)

	require.NoError(t, s.Finish(r.ID, EState.Completed(), false))
	assert.Nil(t, s.Find(r.ID), "remote jobs never retain history")
}

func TestCleanEvictsOldestTerminalJobOverCap(t *testing.T) {
	s := newTestStore(t, true)
	a := s.Add(0, "laser1")
	a.State = EState.Completed()
	b := s.Add(0, "laser1")
	b.State = EState.Completed()
	s.Add(0, "laser1") // pending, never eligible

	s.Clean(2)

	assert.Nil(t, s.Find(a.ID), "oldest terminal job evicted first")
	assert.NotNil(t, s.Find(b.ID))
}

func TestPersistAndLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1"})
	s := NewStore(dir, true, reg)

	r := s.Add(7, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Pending())))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/laser1"))
	require.NoError(t, err)
	require.NoError(t, s.Persist(r))

	reloaded := NewStore(dir, true, reg)
	require.NoError(t, reloaded.LoadAll())

	got := reloaded.Find(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, "laser1", got.Dest)
	assert.Equal(t, EState.Pending(), got.State)
}

func TestLoadAllRevertsMidProcessingJobToPending(t *testing.T) {
	dir := t.TempDir()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1"})
	s := NewStore(dir, true, reg)

	r := s.Add(0, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Processing())))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/laser1"))
	require.NoError(t, err)
	require.NoError(t, s.Persist(r))

	reloaded := NewStore(dir, true, reg)
	require.NoError(t, reloaded.LoadAll())
	got := reloaded.Find(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, EState.Pending(), got.State)
}

func TestLoadAllDropsTerminalJobWithUnresolvedDestinationAndNoHistory(t *testing.T) {
	dir := t.TempDir()
	reg := printer.NewMemRegistry() // "ghost" never registered
	s := NewStore(dir, false, reg)

	r := s.Add(0, "ghost")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Completed())))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/ghost"))
	require.NoError(t, err)
	require.NoError(t, s.Persist(r))

	reloaded := NewStore(dir, false, reg)
	require.NoError(t, reloaded.LoadAll())
	assert.Nil(t, reloaded.Find(r.ID), "terminal job with no resolvable destination and no retained history is dropped")

	_, statErr := os.Stat(reloaded.controlFilePath(r.ID))
	assert.True(t, os.IsNotExist(statErr), "its control file is removed by the failed-load cleanup")
}

func TestLoadAllResolvesPersistedHoldUntilKeyword(t *testing.T) {
	dir := t.TempDir()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1"})
	s := NewStore(dir, true, reg)

	r := s.Add(0, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Held())))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/laser1"))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Keyword(), attrJobHoldUntil, attr.TextValue("23:59"))
	require.NoError(t, err)
	require.NoError(t, s.Persist(r))

	reloaded := NewStore(dir, true, reg)
	require.NoError(t, reloaded.LoadAll())

	got := reloaded.Find(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, EState.Held(), got.State)
	assert.False(t, got.HoldUntil.IsZero(), "a well-formed job-hold-until must resolve to a concrete instant, not be left at zero")
}

func TestLoadAllTreatsMalformedHoldUntilAsIndefinite(t *testing.T) {
	dir := t.TempDir()
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1"})
	s := NewStore(dir, true, reg)

	r := s.Add(0, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Held())))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/laser1"))
	require.NoError(t, err)
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Keyword(), attrJobHoldUntil, attr.TextValue("not-a-keyword"))
	require.NoError(t, err)
	require.NoError(t, s.Persist(r))

	reloaded := NewStore(dir, true, reg)
	require.NoError(t, reloaded.LoadAll())

	got := reloaded.Find(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, EState.Held(), got.State)
	assert.True(t, got.HoldUntil.IsZero(), "hold-parse-failure resolves to indefinite hold, not pending")
}

func TestSetHoldUntilResolvesKeywordAndPersists(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")
	r.Catalog = attr.NewCatalog(0x0002, 1)
	_, err := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), attrJobState, attr.IntValue(int32(EState.Pending())))
	require.NoError(t, err)
	r.StateAttr = r.Catalog.Find(attrJobState, attr.EValueTag.Integer())
	_, err = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.URI(), attrJobPrinterURI, attr.TextValue("ipp://localhost/printers/laser1"))
	require.NoError(t, err)

	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetHoldUntil(r.ID, "day-time", now))

	assert.Equal(t, EState.Held(), r.State)
	assert.Equal(t, int32(EState.Held()), r.StateAttr.Values[0].Integer)
	assert.False(t, r.HoldUntil.IsZero())

	hu := r.Catalog.Find(attrJobHoldUntil, 0)
	require.NotNil(t, hu, "job-hold-until attribute must be written so a later reload can re-resolve it")
	assert.Equal(t, "day-time", hu.Values[0].Text)
}

func TestSetHoldUntilTreatsUnrecognizedValueAsIndefinite(t *testing.T) {
	s := newTestStore(t, false)
	r := s.Add(0, "laser1")

	require.NoError(t, s.SetHoldUntil(r.ID, "whenever", time.Now()))
	assert.Equal(t, EState.Held(), r.State)
	assert.True(t, r.HoldUntil.IsZero())
}

func TestAllocIDWrapsAndSkipsOccupied(t *testing.T) {
	s := newTestStore(t, false)
	s.nextID = maxID
	a := s.Add(0, "laser1")
	assert.Equal(t, maxID, a.ID)
	b := s.Add(0, "laser1")
	assert.Equal(t, minID, b.ID, "allocation wraps from 99999 back to 1")
	s.nextID = maxID
	c := s.Add(0, "laser1")
	assert.Equal(t, minID+1, c.ID, "occupied ids 99999 and 1 are skipped")
}
