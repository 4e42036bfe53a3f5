package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/printd/printd/dispatch"
	"github.com/printd/printd/job"
	"github.com/printd/printd/printer"
)

func TestRunDrainsPostedWork(t *testing.T) {
	reg := printer.NewMemRegistry()
	store := job.NewStore(t.TempDir(), false, reg)
	d := &dispatch.Dispatcher{Store: store, Registry: reg, Filters: dispatch.IdentityFilterGraph{}}

	work := make(chan dispatch.Work, 1)
	loop := &Loop{Dispatcher: d, Tick: time.Hour, Work: work}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	applied := make(chan struct{})
	work <- func() { close(applied) }

	select {
	case <-applied:
	case <-time.After(time.Second):
		t.Fatal("Run did not drain a posted Work closure")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

type fakeLauncher struct{}

func (fakeLauncher) Start(r *job.Record, p *printer.Printer, plan dispatch.Plan) error { return nil }
func (fakeLauncher) Stop(r *job.Record, force bool)                                    {}

func TestRunTicksCheckJobs(t *testing.T) {
	reg := printer.NewMemRegistry()
	reg.Add(&printer.Printer{Name: "laser1", State: printer.EState.Idle()})
	store := job.NewStore(t.TempDir(), false, reg)
	d := &dispatch.Dispatcher{Store: store, Registry: reg, Filters: dispatch.IdentityFilterGraph{}, Launcher: fakeLauncher{}}
	r := store.AddHeld(0, "laser1", time.Now().Add(-time.Minute))
	r.NumFiles = 1

	loop := &Loop{Dispatcher: d, Tick: 10 * time.Millisecond, Work: make(chan dispatch.Work)}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)

	assert.NotEqual(t, job.EState.Held(), r.State, "an expired hold must be released by a tick-driven CheckJobs call")
}
