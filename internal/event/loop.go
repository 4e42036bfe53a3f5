// Package event is the single cooperative scheduler goroutine spec.md
// §5 and §9 describe: a select loop that reacts to a hold-timer tick, a
// SIGCHLD notification, and completed-job Work posted by the pipeline
// executor's background watchers, one event at a time. It stands in
// for the out-of-scope HTTP/IPP front end's event loop integration
// point (spec.md §1), the place a real server would also plug in
// readiness events for client connections.
package event

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printd/printd/dispatch"
)

// Loop drives the dispatcher. Everything it calls into — Dispatcher,
// job.Store, job.Record — is only ever touched from inside Run's select
// loop, so none of that state needs a mutex (spec.md §9 "Global mutable
// state"). SIGCHLD itself carries no payload; the work it signals
// arrives separately on Work once a watching goroutine has reaped the
// child and computed its outcome.
type Loop struct {
	Dispatcher *dispatch.Dispatcher
	// Tick is how often check_jobs runs even absent any signal, the
	// mechanism hold-until expiry (spec.md §4.3 "on dispatcher tick")
	// relies on.
	Tick time.Duration
	// Work is where background goroutines (the pipeline executor's
	// per-job status-pipe watchers) hand back a completed job's
	// disposition for this loop to apply (spec.md §9 "Signal handlers":
	// "SIGCHLD should only set a flag ... the event loop drains ...
	// between readiness rounds"). Wired to the executor's WorkCh by the
	// caller assembling the daemon.
	Work <-chan dispatch.Work
}

// Run blocks until ctx is cancelled, running on a single goroutine for
// as long as the daemon lives. Every case body below is the only code
// in the process allowed to mutate dispatcher/store/job state.
func (l *Loop) Run(ctx context.Context) error {
	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	ticker := time.NewTicker(l.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigchld:
			l.Dispatcher.CheckJobs(time.Now())
		case <-ticker.C:
			l.Dispatcher.CheckJobs(time.Now())
		case w := <-l.Work:
			w()
		}
	}
}
