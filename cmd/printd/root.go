// Package printd is the daemon's cobra command surface: persistent
// flags bound to package-level vars, a PersistentPreRunE that wires up
// logging before the subcommand body runs.
package printd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/printd/printd/internal/config"
	"github.com/printd/printd/internal/dlog"
)

var (
	flagSpoolDir      string
	flagFilterLimit   int
	flagKeepHistory   bool
	flagPreserveFiles bool
	flagMaxJobHistory int
	flagMaxOpenFiles  uint64
	flagLogLevel      string

	opts Options
	log  dlog.Logger
)

// Options is the resolved configuration handed to the serve command
// once flags are parsed; it is config.Options itself. The logger the
// PersistentPreRunE constructs is held separately in log.
type Options = config.Options

// RootCmd is the base command. printd serve is the only subcommand.
var RootCmd = &cobra.Command{
	Use:   "printd",
	Short: "printd is a print scheduling daemon core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		d := config.Default()
		opts = d
		opts.SpoolDir = flagSpoolDir
		opts.FilterLimit = flagFilterLimit
		opts.KeepHistory = flagKeepHistory
		opts.PreserveFiles = flagPreserveFiles
		opts.MaxJobHistory = flagMaxJobHistory
		opts.MaxOpenFiles = flagMaxOpenFiles

		var lvl dlog.Level
		if err := lvl.Parse(flagLogLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		opts.LogLevel = lvl
		log = dlog.New(os.Stderr, opts.LogLevel)
		return nil
	},
}

func init() {
	d := config.Default()
	RootCmd.PersistentFlags().StringVar(&flagSpoolDir, "spool-dir", d.SpoolDir, "spool directory holding control and data files")
	RootCmd.PersistentFlags().IntVar(&flagFilterLimit, "filter-limit", d.FilterLimit, "global filter-cost admission budget (0 = unlimited)")
	RootCmd.PersistentFlags().BoolVar(&flagKeepHistory, "history", d.KeepHistory, "retain terminal jobs' attribute records instead of purging them")
	RootCmd.PersistentFlags().BoolVar(&flagPreserveFiles, "preserve-files", d.PreserveFiles, "allow restart from any state, not only stopped")
	RootCmd.PersistentFlags().IntVar(&flagMaxJobHistory, "max-job-history", d.MaxJobHistory, "maximum number of terminal jobs retained")
	RootCmd.PersistentFlags().Uint64Var(&flagMaxOpenFiles, "max-open-files", d.MaxOpenFiles, "soft RLIMIT_NOFILE to request at startup")
	RootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", d.LogLevel.String(), "log level: NONE, ERROR, WARNING, INFO, DEBUG")

	RootCmd.AddCommand(serveCmd)
}
