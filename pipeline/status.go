package pipeline

import (
	"strconv"
	"strings"

	"github.com/printd/printd/internal/dlog"
	"github.com/printd/printd/job"
)

// StatusReader implements spec.md §4.5 (C8): classify each status-pipe
// line, fold PAGE accounting into job-media-sheets-completed, and
// record the first non-PAGE line of severity INFO or more severe in the
// job's LineBuffer; later lines do not replace it, even more severe ones.
//
// Quota crediting for PAGE lines (spec.md §4.5: "credit the quota
// collaborator") is not implemented: quota accounting is an explicit
// Non-goal (spec.md §1).
type StatusReader struct {
	Log dlog.Logger
}

// ConsumeLine processes one complete status-pipe line for r (spec.md
// §4.5 "On readiness": "for every \n-terminated line").
func (sr *StatusReader) ConsumeLine(r *job.Record, line string) {
	sev, msg := parseStatusLine(line)
	if sev == ESeverity.Page() {
		recordPage(r, msg)
		return
	}
	if sev <= ESeverity.Info() && !r.HasWorstLine {
		r.LineBuffer = append(r.LineBuffer[:0], msg...)
		r.WorstSeverity = sev
		r.HasWorstLine = true
	}
	if sr.Log != nil && sr.Log.ShouldLog(dlog.ELevel.Debug()) {
		sr.Log.Logf(dlog.ELevel.Debug(), r.ID, "%s: %s", sev, msg)
	}
}

// recordPage implements spec.md §4.5's PAGE accounting: "parse either
// 'page-number copies' (update job-media-sheets-completed by copies) or
// just 'page-number' (increment by 1)".
func recordPage(r *job.Record, msg string) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return
	}
	copies := 1
	if len(fields) >= 2 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
			copies = n
		}
	}
	if r.SheetsAttr != nil && len(r.SheetsAttr.Values) > 0 {
		r.SheetsAttr.Values[0].Integer += int32(copies)
	}
}
