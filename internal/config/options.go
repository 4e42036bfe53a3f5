// Package config holds the daemon's run-time tunables. Configuration-
// file parsing is out of scope (spec.md §1); Options is populated
// directly from CLI flags in cmd/printd.
package config

import "github.com/printd/printd/internal/dlog"

// Options are the knobs the core event loop and its collaborators need
// at startup. There is no file format: every field is set by a flag.
type Options struct {
	// SpoolDir is the directory scanned by job.Store.LoadAll and
	// written to by job.Store.Persist (control files c##### and data
	// files d#####-###).
	SpoolDir string

	// FilterLimit is the global filter-cost admission budget; 0 means
	// unlimited (spec.md §3, §4.4).
	FilterLimit int

	// KeepHistory controls whether terminal jobs retain their control
	// file and attribute record instead of being purged (spec.md §3
	// "Lifecycle", §4.2 cancel sub-protocol).
	KeepHistory bool

	// PreserveFiles, when set, allows RestartJob to move a job back to
	// pending from any state, not only stopped (spec.md §4.4).
	PreserveFiles bool

	// MaxJobHistory bounds Store.Clean's retained terminal job count.
	MaxJobHistory int

	// MaxOpenFiles is the soft RLIMIT_NOFILE raised via internal/rlimit
	// at startup.
	MaxOpenFiles uint64

	LogLevel dlog.Level

	// FilterUID and FilterGID are the unprivileged credentials filter
	// children run as (spec.md §4.4); the backend always runs as root.
	FilterUID uint32
	FilterGID uint32
}

// Default holds the flag defaults cmd/printd binds its flags to.
func Default() Options {
	return Options{
		SpoolDir:      "/var/spool/printd",
		FilterLimit:   0,
		KeepHistory:   false,
		PreserveFiles: false,
		MaxJobHistory: 500,
		MaxOpenFiles:  4096,
		LogLevel:      dlog.ELevel.Info(),
		FilterUID:     1,
		FilterGID:     1,
	}
}
