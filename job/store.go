// Package job implements the job record (C3) and job store (C4) from
// spec.md §4.2: an ordered collection of job records, persisted to and
// reloaded from a spool directory via the attr codec.
package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/printd/printd/attr"
	"github.com/printd/printd/hold"
	"github.com/printd/printd/printer"
)

const (
	minID = 1
	maxID = 99999
)

// Well-known job-scope attribute names the store reads and maintains.
const (
	attrJobState       = "job-state"
	attrJobPriority     = "job-priority"
	attrJobPrinterURI   = "job-printer-uri"
	attrJobHoldUntil    = "job-hold-until"
	attrJobOriginUser   = "job-originating-user-name"
	attrJobName         = "job-name"
	attrJobSheets       = "job-sheets"
	attrJobSheetsDone   = "job-media-sheets-completed"
	attrDocumentFormat  = "document-format"
)

var (
	// ErrNotFound is returned by operations addressed to a job id the
	// store doesn't hold.
	ErrNotFound = errors.New("job: not found")
	// ErrBadState is returned when an operation's state precondition
	// fails (e.g. MoveJob on a processing job).
	ErrBadState = errors.New("job: invalid state for operation")
)

// Stopper is the callback the store uses to halt a processing job's
// child processes before cancelling it (spec.md §4.2 "cancel": "if
// state is processing, invoke stop-job(force=false)"). It is supplied
// by whoever owns the filter-pipeline executor (package pipeline),
// keeping job free of any exec/signal dependency.
type Stopper func(r *Record, force bool)

// Store is the ordered collection of job records (spec.md §4.2). It is
// not safe for concurrent use: the scheduler is single-threaded
// cooperative (spec.md §5), so no internal locking is needed.
type Store struct {
	jobs       []*Record // kept sorted by (-priority, id) at all times
	nextID     int
	SpoolDir   string
	KeepHistory bool
	Registry   printer.Registry
	OnStop     Stopper
}

// NewStore returns an empty store rooted at spoolDir.
func NewStore(spoolDir string, keepHistory bool, registry printer.Registry) *Store {
	return &Store{SpoolDir: spoolDir, KeepHistory: keepHistory, Registry: registry, nextID: minID}
}

// Jobs returns the store's jobs in priority order. The slice is owned
// by the store; callers must treat it as read-only (spec.md §9 on
// restartable iteration: callers that mutate the store mid-iteration,
// e.g. CancelAll, must snapshot ids first, which the store does
// internally).
func (s *Store) Jobs() []*Record { return s.jobs }

func less(a, b *Record) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ID < b.ID
}

func (s *Store) insertSorted(r *Record) {
	i := sort.Search(len(s.jobs), func(i int) bool { return less(r, s.jobs[i]) || (!less(s.jobs[i], r) && s.jobs[i].ID >= r.ID) })
	s.jobs = append(s.jobs, nil)
	copy(s.jobs[i+1:], s.jobs[i:])
	s.jobs[i] = r
}

func (s *Store) removeAt(i int) {
	s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
}

func (s *Store) indexOf(id int) int {
	for i, r := range s.jobs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the job with the given id, or nil.
func (s *Store) Find(id int) *Record {
	if i := s.indexOf(id); i >= 0 {
		return s.jobs[i]
	}
	return nil
}

// allocID returns the next job id, wrapping from 99999 back to 1 and
// skipping any id still occupied (spec.md §3: "monotonically assigned
// 5-digit integer, 1..99999, wraps by policy").
func (s *Store) allocID() int {
	for i := 0; i < maxID; i++ {
		id := s.nextID
		s.nextID++
		if s.nextID > maxID {
			s.nextID = minID
		}
		if s.Find(id) == nil {
			return id
		}
	}
	panic("job: spool exhausted all 99999 ids")
}

// Add creates a new job record and priority-inserts it into the store
// (spec.md §4.2 "AddJob"/§8 scenario 1). The caller is responsible for
// populating the catalog and calling Persist.
func (s *Store) Add(priority int, dest string) *Record {
	r := &Record{
		ID:             s.allocID(),
		Priority:       priority,
		Dest:           dest,
		State:          EState.Pending(),
		TimeAtCreation: time.Now(),
	}
	s.insertSorted(r)
	return r
}

// AddHeld is Add for a job accepted already-held (spec.md §3
// "Lifecycle": "initial state = pending or held").
func (s *Store) AddHeld(priority int, dest string, until time.Time) *Record {
	r := s.Add(priority, dest)
	r.State = EState.Held()
	r.HoldUntil = until
	return r
}

// SetHoldUntil implements the hold scheduler's only write path into a
// job record (spec.md §4.3, §8 scenario 2 "set_hold"): resolve keyword
// to a wall-clock instant via package hold, move the job to held, and
// persist the raw keyword as job-hold-until. The resolved instant is
// kept only in memory (HoldUntil); a later reload re-resolves the
// keyword rather than restoring the instant.
func (s *Store) SetHoldUntil(id int, keyword string, now time.Time) error {
	r := s.Find(id)
	if r == nil {
		return ErrNotFound
	}
	until, err := hold.Resolve(keyword, now)
	if err != nil {
		// hold-parse-failure: treat as indefinite, not an error
		// returned to the caller (spec.md §7).
		until = time.Time{}
	}
	r.HoldUntil = until
	r.State = EState.Held()
	if r.StateAttr != nil {
		r.StateAttr.Values[0].Integer = int32(r.State)
	}
	if r.Catalog != nil {
		if r.HoldUntilAttr != nil {
			r.HoldUntilAttr.Values[0].Text = keyword
		} else if a, addErr := r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Keyword(), attrJobHoldUntil, attr.TextValue(keyword)); addErr == nil {
			r.HoldUntilAttr = a
		}
	}
	return s.Persist(r)
}

// ChangePriority reassigns a job's priority and relinks it if ordering
// broke (spec.md §4.2 "change_priority").
func (s *Store) ChangePriority(id, priority int) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r := s.jobs[i]
	r.Priority = priority
	if r.PriorityAttr != nil {
		r.PriorityAttr.Values[0].Integer = int32(priority)
	}
	brokenWithPred := i > 0 && less(r, s.jobs[i-1])
	brokenWithSucc := i < len(s.jobs)-1 && less(s.jobs[i+1], r)
	if brokenWithPred || brokenWithSucc {
		s.removeAt(i)
		s.insertSorted(r)
	}
	return nil
}

// MoveJob reassigns a queued job's destination without cancel/resubmit
// (original_source scheduler/job.c "MoveJob"; supplemented feature,
// SPEC_FULL.md). Only pending or held jobs may move.
func (s *Store) MoveJob(id int, newDest string) error {
	r := s.Find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.State != EState.Pending() && r.State != EState.Held() {
		return ErrBadState
	}
	r.Dest = newDest
	if r.Catalog != nil {
		if a := r.Catalog.Find(attrJobPrinterURI, attr.EValueTag.URI()); a != nil {
			a.Values[0].Text = "ipp://localhost/printers/" + newDest
		}
	}
	return nil
}

// CountForPrinter returns the number of non-terminal (pending, held,
// processing or stopped) jobs addressed to dest (original_source "GetPrinterJobCount").
func (s *Store) CountForPrinter(dest string) int {
	n := 0
	for _, r := range s.jobs {
		if r.Dest == dest && !r.State.IsTerminal() {
			n++
		}
	}
	return n
}

// CountForUser returns the number of non-terminal (pending, held,
// processing or stopped) jobs owned by user (original_source "GetUserJobCount").
func (s *Store) CountForUser(user string) int {
	n := 0
	for _, r := range s.jobs {
		if r.State.IsTerminal() {
			continue
		}
		if r.UsernameAttr != nil && len(r.UsernameAttr.Values) > 0 && r.UsernameAttr.Values[0].Text == user {
			n++
		}
	}
	return n
}

// Cancel runs the cancel sub-protocol (spec.md §4.2 "cancel").
func (s *Store) Cancel(id int, purge bool) error {
	return s.finish(id, EState.Cancelled(), purge)
}

// Finish runs the same terminal-disposition sub-protocol as Cancel but
// stamps final instead of Cancelled. The status reader's EOF handling
// (spec.md §4.5: "cancel(purge=false), and if history is retained
// stamp state as aborted/completed") needs a terminal job-state other
// than cancelled while reusing cancel's file/control-record handling,
// so that handling is factored out here rather than duplicated.
func (s *Store) Finish(id int, final State, purge bool) error {
	return s.finish(id, final, purge)
}

func (s *Store) finish(id int, final State, purge bool) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r := s.jobs[i]

	if r.State == EState.Processing() && s.OnStop != nil {
		s.OnStop(r, false)
	}

	r.State = final
	r.StampTime("time-at-completed", time.Now())
	r.CurrentFile = 0

	remote := r.DestKind.Has(DestRemote)
	if !s.KeepHistory || purge || remote {
		for i := 1; i <= r.NumFiles; i++ {
			_ = os.Remove(s.dataFilePath(r.ID, i))
		}
	}

	if s.KeepHistory && !purge && !remote {
		return s.Persist(r)
	}

	_ = os.Remove(s.controlFilePath(r.ID))
	s.removeAt(s.indexOf(id))
	return nil
}

// CancelAll cancels every job addressed to dest, purging unconditionally
// (spec.md §4.2 "cancel_all"). It snapshots matching ids first so the
// iteration survives Cancel's mutation of the underlying slice
// (spec.md §9: "Iteration with mid-iteration removal ... must be
// restartable").
func (s *Store) CancelAll(dest string) {
	var ids []int
	for _, r := range s.jobs {
		if r.Dest == dest {
			ids = append(ids, r.ID)
		}
	}
	for _, id := range ids {
		_ = s.Cancel(id, true)
	}
}

// Clean evicts the oldest terminal job while the store holds more than
// maxHistory jobs (spec.md §4.2 "clean").
func (s *Store) Clean(maxHistory int) {
	for len(s.jobs) > maxHistory {
		oldest := -1
		for i, r := range s.jobs {
			if !r.State.IsTerminal() {
				continue
			}
			if oldest < 0 || r.ID < s.jobs[oldest].ID {
				oldest = i
			}
		}
		if oldest < 0 {
			return
		}
		id := s.jobs[oldest].ID
		_ = os.Remove(s.controlFilePath(id))
		s.removeAt(oldest)
	}
}

func (s *Store) controlFilePath(id int) string {
	return filepath.Join(s.SpoolDir, fmt.Sprintf("c%05d", id))
}

func (s *Store) dataFilePath(id, fileno int) string {
	return filepath.Join(s.SpoolDir, fmt.Sprintf("d%05d-%03d", id, fileno))
}

// DataFilePath exposes the data-file naming rule to the dispatcher and
// pipeline executor, which need it to build filter argv (spec.md §4.4).
func (s *Store) DataFilePath(id, fileno int) string { return s.dataFilePath(id, fileno) }

// Persist rewrites a job's control file via the attr codec (spec.md
// §4.1, §4.2). On encode/write failure the partial file is unlinked per
// spec.md §7 ("write sink error ... leaving any partially written file
// for the caller to unlink").
func (s *Store) Persist(r *Record) error {
	if r.Catalog == nil {
		return nil
	}
	if r.StateAttr != nil && len(r.StateAttr.Values) > 0 {
		r.StateAttr.Values[0].Integer = int32(r.State)
	}
	path := s.controlFilePath(r.ID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "job: open control file for %d", r.ID)
	}
	err = r.Catalog.WriteStream(f)
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(path)
		return errors.Wrapf(err, "job: persist %d", r.ID)
	}
	return errors.Wrapf(closeErr, "job: close control file for %d", r.ID)
}

// LoadAll scans the spool directory in two passes (spec.md §4.2
// "load_all").
func (s *Store) LoadAll() error {
	entries, err := os.ReadDir(s.SpoolDir)
	if err != nil {
		return errors.Wrap(err, "job: read spool dir")
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "c") || len(name) != 6 {
			continue
		}
		id, err := parseID(name[1:])
		if err != nil {
			continue
		}
		if err := s.loadControlFile(id); err != nil {
			_ = os.Remove(filepath.Join(s.SpoolDir, name))
		}
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "d") || len(name) != 10 || name[6] != '-' {
			continue
		}
		id, err1 := parseID(name[1:6])
		fileno, err2 := parseID(name[7:10])
		if err1 != nil || err2 != nil {
			continue
		}
		r := s.Find(id)
		if r == nil {
			_ = os.Remove(filepath.Join(s.SpoolDir, name))
			continue
		}
		contentType := detectContentType(filepath.Join(s.SpoolDir, name))
		for len(r.FileTypes) < fileno {
			r.FileTypes = append(r.FileTypes, "")
		}
		r.FileTypes[fileno-1] = contentType
		if fileno > r.NumFiles {
			r.NumFiles = fileno
		}
	}

	return nil
}

func parseID(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}

// detectContentType is the out-of-scope MIME sniffer's fallback path
// (spec.md §1 "MIME type detection ... interfaces only"; spec.md §4.2:
// "Missing content-type falls back to application/vnd.cups-raw").
var detectContentType = func(path string) string {
	return "application/vnd.cups-raw"
}

func (s *Store) loadControlFile(id int) error {
	f, err := os.Open(s.controlFilePath(id))
	if err != nil {
		return err
	}
	defer f.Close()

	cat, err := attr.ReadStream(f)
	if err != nil {
		return err
	}

	stateAttr := cat.Find(attrJobState, attr.EValueTag.Integer())
	if stateAttr == nil || len(stateAttr.Values) == 0 {
		return errors.New("job: missing job-state")
	}
	uriAttr := cat.Find(attrJobPrinterURI, attr.EValueTag.URI())
	if uriAttr == nil || len(uriAttr.Values) == 0 {
		return errors.New("job: missing job-printer-uri")
	}

	dest := destNameFromURI(uriAttr.Values[0].Text)
	state := State(stateAttr.Values[0].Integer)

	r := &Record{ID: id, Dest: dest, State: state, Catalog: cat, TimeAtCreation: time.Now()}
	r.StateAttr = stateAttr
	if p := cat.Find(attrJobPriority, attr.EValueTag.Integer()); p != nil {
		r.PriorityAttr = p
		r.Priority = int(p.Values[0].Integer)
	}
	if u := cat.Find(attrJobOriginUser, 0); u != nil {
		r.UsernameAttr = u
	}
	if t := cat.Find(attrJobName, 0); t != nil {
		r.TitleAttr = t
	}
	if js := cat.Find(attrJobSheets, attr.EValueTag.Keyword()); js != nil {
		r.JobSheetsAttr = js
	}
	if sh := cat.Find(attrJobSheetsDone, attr.EValueTag.Integer()); sh != nil {
		r.SheetsAttr = sh
	}

	if s.Registry != nil {
		if _, ok := s.Registry.Lookup(dest); !ok {
			switch {
			case !state.IsTerminal():
				if registerer, ok := s.Registry.(interface{ RegisterUnknownRemote(string) }); ok {
					registerer.RegisterUnknownRemote(dest)
				}
				r.DestKind = r.DestKind.With(DestRemote)
			case !s.KeepHistory:
				// Terminal job, destination gone, no history retained:
				// drop it (spec.md §9 open question, resolved: "keep
				// iff history is retained").
				return errors.New("job: terminal job's destination no longer exists, history not retained")
			}
		}
	}

	switch {
	case state == EState.Held():
		if hu := cat.Find(attrJobHoldUntil, 0); hu != nil && len(hu.Values) > 0 {
			r.HoldUntilAttr = hu
			until, err := hold.Resolve(hu.Values[0].Text, time.Now())
			if err != nil {
				// hold-parse-failure: malformed job-hold-until is
				// treated as indefinite, not pending (spec.md §7).
				until = time.Time{}
			}
			r.HoldUntil = until
		} else {
			r.State = EState.Pending()
		}
	case state == EState.Processing():
		// "Jobs caught mid-processing revert to pending" (spec.md §4.2).
		r.State = EState.Pending()
	}

	if s.nextID <= id {
		s.nextID = id + 1
		if s.nextID > maxID {
			s.nextID = minID
		}
	}
	s.insertSorted(r)
	return nil
}

// destNameFromURI recovers a destination name from a job-printer-uri
// value of the form scheme://host/printers/name or
// scheme://host/classes/name.
func destNameFromURI(uri string) string {
	i := strings.LastIndex(uri, "/")
	if i < 0 {
		return uri
	}
	return uri[i+1:]
}
