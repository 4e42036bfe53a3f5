// Package pipeline implements the filter-chain executor and status
// reader (spec.md §4.4/§4.5, components C7/C8): forking filter and
// backend children, wiring their pipes, and parsing the shared status
// pipe's severity-prefixed lines.
package pipeline

import (
	"strings"

	"github.com/printd/printd/job"
)

// Severity is an alias for job.Severity: the status-pipe line severity
// lives on job.Record (WorstSeverity) so it must be the same type job
// already exports; pipeline only adds the wire-format parsing, keeping
// the type itself in job avoids job importing pipeline back.
type Severity = job.Severity

var ESeverity = job.ESeverity

// parseStatusLine splits a status-pipe line of the form "LEVEL:
// message" into its severity and trimmed message (spec.md §4.5).
// Unrecognized prefixes default to DEBUG, matching "Unrecognized
// prefixes default to DEBUG".
func parseStatusLine(line string) (Severity, string) {
	line = strings.TrimRight(line, "\r\n")
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ESeverity.Debug(), strings.TrimLeft(line, " \t")
	}
	sev, ok := severityFromPrefix(line[:idx])
	msg := strings.TrimLeft(line[idx+1:], " \t")
	if !ok {
		return ESeverity.Debug(), msg
	}
	return sev, msg
}

func severityFromPrefix(p string) (Severity, bool) {
	switch p {
	case "EMERG":
		return ESeverity.Emerg(), true
	case "ALERT":
		return ESeverity.Alert(), true
	case "CRIT":
		return ESeverity.Crit(), true
	case "ERROR":
		return ESeverity.Error(), true
	case "WARNING":
		return ESeverity.Warning(), true
	case "NOTICE":
		return ESeverity.Notice(), true
	case "INFO":
		return ESeverity.Info(), true
	case "DEBUG":
		return ESeverity.Debug(), true
	case "DEBUG2":
		return ESeverity.Debug2(), true
	case "PAGE":
		return ESeverity.Page(), true
	default:
		return ESeverity.Debug(), false
	}
}
