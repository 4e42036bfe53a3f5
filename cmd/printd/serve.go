package printd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/printd/printd/dispatch"
	"github.com/printd/printd/internal/dlog"
	"github.com/printd/printd/internal/event"
	"github.com/printd/printd/internal/rlimit"
	"github.com/printd/printd/job"
	"github.com/printd/printd/pipeline"
	"github.com/printd/printd/printer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the print scheduling daemon core",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if err := rlimit.Raise(opts.MaxOpenFiles); err != nil {
		log.Logf(dlog.ELevel.Error(), 0, "rlimit: %v", err)
	}

	if err := os.MkdirAll(opts.SpoolDir, 0700); err != nil {
		return err
	}

	registry := printer.NewMemRegistry()
	store := job.NewStore(opts.SpoolDir, opts.KeepHistory, registry)

	executor := pipeline.NewExecutor(pipeline.Credentials{UID: opts.FilterUID, GID: opts.FilterGID}, log)

	d := &dispatch.Dispatcher{
		Store:         store,
		Registry:      registry,
		Filters:       dispatch.IdentityFilterGraph{},
		Launcher:      executor,
		Log:           log,
		FilterLimit:   opts.FilterLimit,
		PreserveFiles: opts.PreserveFiles,
	}
	executor.Dispatcher = d
	store.OnStop = d.StopJob

	if err := store.LoadAll(); err != nil {
		return err
	}
	store.Clean(opts.MaxJobHistory)
	d.CheckJobs(time.Now())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := &event.Loop{Dispatcher: d, Tick: time.Second, Work: executor.WorkCh}
	err := loop.Run(ctx)

	d.StopAll(false)
	return err
}
