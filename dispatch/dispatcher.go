// Package dispatch implements the scheduler's dispatch loop (spec.md
// §4.4, component C6): scanning the job store, resolving destinations,
// admitting jobs under the filter-cost budget, and driving start/stop/
// hold/release/restart transitions.
package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/printd/printd/internal/dlog"
	"github.com/printd/printd/job"
	"github.com/printd/printd/printer"
)

var (
	// ErrNoDestination is returned when neither a printer nor a class
	// exists for a job's destination name.
	ErrNoDestination = errors.New("dispatch: destination does not exist")
	// ErrAdmissionDeferred marks a start_job call that left the job
	// pending because the filter-cost budget was exhausted.
	ErrAdmissionDeferred = errors.New("dispatch: admission deferred, filter budget exhausted")
)

// Work is one unit of deferred dispatcher mutation, posted by a
// background goroutine (the pipeline executor's per-job status-pipe
// reader) and run on the single cooperative scheduler goroutine
// (spec.md §5, §9: "SIGCHLD should only set a flag ... the event loop
// drains ... between readiness rounds"). Nothing outside that one
// goroutine may call into Dispatcher, job.Store, or job.Record
// directly; everything else hands over a Work closure instead.
type Work func()

// Launcher is the contract the filter-pipeline executor (package
// pipeline, C7) gives the dispatcher: turn a Plan into live child
// processes, or tear one down. Keeping this as an interface lets
// dispatch stay free of any unix-syscall dependency (spec.md §4.4
// describes the sequence; §4.4/§5 place the actual fork/exec/pipe
// mechanics in the executor).
type Launcher interface {
	Start(r *job.Record, p *printer.Printer, plan Plan) error
	Stop(r *job.Record, force bool)
}

// FilterChainEntry is one converter step the MIME filter-graph
// collaborator returns (spec.md §1: out of scope, "interfaces only";
// §4.4: "ask the MIME filter-graph collaborator for a converter chain").
type FilterChainEntry struct {
	Program string
	Cost    int
}

// FilterGraph is the external collaborator contract for MIME filter
// chain resolution (spec.md §4.4).
type FilterGraph interface {
	Resolve(fromType, toType string) ([]FilterChainEntry, bool)
}

// Dispatcher is the scheduler aggregate spec.md §9 calls for: the
// process-wide globals (Jobs, FilterLevel) of the original, wrapped in
// one value owned by the event loop and passed by reference to every
// operation (spec.md §9 "Global mutable state").
type Dispatcher struct {
	Store       *job.Store
	Registry    printer.Registry
	Filters     FilterGraph
	Launcher    Launcher
	Log         dlog.Logger
	FilterLimit int
	FilterLevel int

	// PreserveFiles mirrors the "preserve files" site policy spec.md
	// §4.4 names for restart_job: when set, restart_job accepts any
	// source state, not just stopped.
	PreserveFiles bool
}

// CheckJobs is the dispatcher tick (spec.md §4.4 "check_jobs"). It
// scans the store in order and admits eligible jobs. traceID threads
// through the tick's log lines so they can be correlated even though
// Dispatcher itself has no request context.
func (d *Dispatcher) CheckJobs(now time.Time) {
	traceID := uuid.New()
	// Iterate over a snapshot: Cancel (directly or via startJob) removes
	// records from the store's slice mid-scan.
	for _, r := range append([]*job.Record(nil), d.Store.Jobs()...) {
		if r.State == job.EState.Held() && !r.HoldUntil.IsZero() && r.HoldUntil.Before(now) {
			r.State = job.EState.Pending()
			if r.Catalog != nil {
				d.Store.Persist(r)
			}
		}
		if r.State != job.EState.Pending() {
			continue
		}

		dest, kind, err := d.resolveDestination(r.Dest)
		if err != nil {
			d.logf(traceID, r.ID, "destination %q vanished, cancelling", r.Dest)
			_ = d.Store.Cancel(r.ID, true)
			continue
		}
		r.DestKind = kind

		if dest.Class && !dest.Remote && dest.State == printer.EState.Stopped() {
			continue
		}

		eligible := dest.State == printer.EState.Idle() || (dest.Remote && dest.CurrentJobID == 0)
		if !eligible {
			continue
		}

		if err := d.startJob(r, dest); err != nil && errors.Cause(err) != ErrAdmissionDeferred {
			d.logf(traceID, r.ID, "start_job failed: %v", err)
		}
	}
}

// resolveDestination implements spec.md §4.4 step 3 with one
// Registry.Lookup, which returns whichever printer or class has that
// name; no class-before-printer precedence is applied. For an implicit
// class it substitutes one member.
func (d *Dispatcher) resolveDestination(name string) (*printer.Printer, job.DestinationKind, error) {
	p, ok := d.Registry.Lookup(name)
	if !ok {
		return nil, 0, ErrNoDestination
	}
	var kind job.DestinationKind
	if p.Remote {
		kind = kind.With(job.DestRemote)
	}
	if p.Class {
		kind = kind.With(job.DestClass)
		if p.Implicit {
			kind = kind.With(job.DestImplicit)
			member, ok := d.Registry.ResolveImplicitMember(name)
			if !ok {
				return p, kind, nil // class itself still resolves; caller's stopped/idle checks apply to it
			}
			return member, kind, nil
		}
	}
	return p, kind, nil
}

func (d *Dispatcher) logf(traceID uuid.UUID, jobID int, format string, args ...interface{}) {
	if d.Log == nil || !d.Log.ShouldLog(dlog.ELevel.Info()) {
		return
	}
	d.Log.Logf(dlog.ELevel.Info(), jobID, "[%s] "+format, append([]interface{}{traceID.String()[:8]}, args...)...)
}

// HoldJob implements spec.md §4.4 "hold_job": stop if processing, set
// held, persist, re-dispatch.
func (d *Dispatcher) HoldJob(id int) error {
	r := d.Store.Find(id)
	if r == nil {
		return job.ErrNotFound
	}
	if r.State == job.EState.Processing() {
		d.StopJob(r, false)
	}
	r.State = job.EState.Held()
	if err := d.Store.Persist(r); err != nil {
		return err
	}
	d.CheckJobs(time.Now())
	return nil
}

// SetHold implements spec.md §4.3/§8 scenario 2 "set_hold": stop if
// processing, resolve keyword to a wall-clock instant via the hold
// scheduler (package hold), persist, re-dispatch. Unlike HoldJob this
// takes the raw job-hold-until value a client supplied and resolves it
// through Store.SetHoldUntil.
func (d *Dispatcher) SetHold(id int, keyword string) error {
	r := d.Store.Find(id)
	if r == nil {
		return job.ErrNotFound
	}
	if r.State == job.EState.Processing() {
		d.StopJob(r, false)
	}
	if err := d.Store.SetHoldUntil(id, keyword, time.Now()); err != nil {
		return err
	}
	d.CheckJobs(time.Now())
	return nil
}

// ReleaseJob implements spec.md §4.4 "release_job": held -> pending,
// persist, re-dispatch.
func (d *Dispatcher) ReleaseJob(id int) error {
	r := d.Store.Find(id)
	if r == nil {
		return job.ErrNotFound
	}
	if r.State != job.EState.Held() {
		return job.ErrBadState
	}
	r.State = job.EState.Pending()
	if err := d.Store.Persist(r); err != nil {
		return err
	}
	d.CheckJobs(time.Now())
	return nil
}

// RestartJob implements spec.md §4.4 "restart_job": stopped (or any
// state under the preserve-files policy) -> pending, persist,
// re-dispatch.
func (d *Dispatcher) RestartJob(id int) error {
	r := d.Store.Find(id)
	if r == nil {
		return job.ErrNotFound
	}
	if r.State != job.EState.Stopped() && !d.PreserveFiles {
		return job.ErrBadState
	}
	r.State = job.EState.Pending()
	if err := d.Store.Persist(r); err != nil {
		return err
	}
	d.CheckJobs(time.Now())
	return nil
}

// StopAll forces every processing job back to stopped (original_source
// scheduler/job.c "StopAllJobs"; SPEC_FULL.md supplemented feature,
// used during graceful shutdown).
func (d *Dispatcher) StopAll(force bool) {
	for _, r := range d.Store.Jobs() {
		if r.State == job.EState.Processing() {
			d.StopJob(r, force)
		}
	}
}
