// Package rlimit raises the process's open-file limit at startup for
// its worst-case concurrent handle count (spec.md §5 "MaxFDs"
// process-wide resource).
package rlimit

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Raise sets RLIMIT_NOFILE's soft limit to at least want, capped at the
// hard limit. It returns an error instead of panicking — a daemon
// shouldn't die because its caller already tightened the limit below
// what ulimit -H allows.
func Raise(want uint64) error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return errors.Wrap(err, "rlimit: getrlimit")
	}
	if rlim.Max == 0 {
		return errors.New("rlimit: hard limit for RLIMIT_NOFILE is 0")
	}
	target := want
	if target > rlim.Max {
		target = rlim.Max
	}
	if rlim.Cur >= target {
		return nil
	}
	rlim.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return errors.Wrap(err, "rlimit: setrlimit")
	}
	return nil
}
