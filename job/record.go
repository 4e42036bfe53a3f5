package job

import (
	"reflect"
	"time"

	"github.com/JeffreyRichter/enum/enum"
	"github.com/printd/printd/attr"
)

// Severity is the worst status line severity accumulated for a job's
// current file (spec.md §4.5 "Status reader"). It shares the ordering
// used by the wire prefixes: lower numbers are more severe, matching
// the EMERG..DEBUG2 convention the status-pipe protocol borrows from
// syslog.
type Severity int8

const (
	sevUnset   Severity = 0
	sevEmerg   Severity = 1
	sevAlert   Severity = 2
	sevCrit    Severity = 3
	sevError   Severity = 4
	sevWarning Severity = 5
	sevNotice  Severity = 6
	sevInfo    Severity = 7
	sevDebug   Severity = 8
	sevDebug2  Severity = 9
	sevPage    Severity = 10
)

var ESeverity = Severity(sevUnset)

func (Severity) Unset() Severity   { return sevUnset }
func (Severity) Emerg() Severity   { return sevEmerg }
func (Severity) Alert() Severity   { return sevAlert }
func (Severity) Crit() Severity    { return sevCrit }
func (Severity) Error() Severity   { return sevError }
func (Severity) Warning() Severity { return sevWarning }
func (Severity) Notice() Severity  { return sevNotice }
func (Severity) Info() Severity    { return sevInfo }
func (Severity) Debug() Severity   { return sevDebug }
func (Severity) Debug2() Severity  { return sevDebug2 }
func (Severity) Page() Severity    { return sevPage }

func (s Severity) String() string {
	switch s {
	case ESeverity.Unset():
		return "UNSET"
	case ESeverity.Emerg():
		return "EMERG"
	case ESeverity.Alert():
		return "ALERT"
	case ESeverity.Crit():
		return "CRIT"
	case ESeverity.Error():
		return "ERROR"
	case ESeverity.Warning():
		return "WARNING"
	case ESeverity.Notice():
		return "NOTICE"
	case ESeverity.Info():
		return "INFO"
	case ESeverity.Debug():
		return "DEBUG"
	case ESeverity.Debug2():
		return "DEBUG2"
	case ESeverity.Page():
		return "PAGE"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// Outcome classifies how a job's current file ended, the way spec.md
// §4.5 "On EOF" does: negative (backend fault), zero (success), or
// positive (filter fault). It is not derived from status-line
// severities: the pipeline executor sets it from the children's exit
// statuses, a non-zero backend exit giving OutcomeBackendFault and any
// other non-zero exit OutcomeFilterFault.
type Outcome int8

const (
	OutcomeSuccess Outcome = 0
	OutcomeFilterFault Outcome = 1
	OutcomeBackendFault Outcome = -1
)

// ChildProc is one entry in a job's bounded child process table
// (spec.md §3 "Job": "child process table (bounded)"). Pid is the
// process id recorded when the child started; the table is not updated
// when a child exits, and exit statuses are collected by the pipeline
// executor from its exec.Cmd values instead.
type ChildProc struct {
	Pid       int
	IsBackend bool
}

// MaxChildren bounds the filter chain length (converters + one
// backend); spec.md doesn't name an exact figure, this follows the
// original implementation's fixed-size table.
const MaxChildren = 32

// Record is one job's full in-memory state (spec.md §3 "Job"). The
// Store exclusively owns Records; Records own their Catalog, which
// owns its Attributes (spec.md §3 "Ownership").
type Record struct {
	ID       int
	Priority int
	Dest     string
	DestKind DestinationKind
	State    State
	HoldUntil time.Time // zero value means "not held" / "never expires" depending on context; see IsHeldIndefinitely

	NumFiles    int
	FileTypes   []string // per-file MIME content type, index 0 == file 1
	CurrentFile int      // 0-based index into FileTypes of the file being processed

	Catalog *attr.Catalog

	// Live references into Catalog, resolved once at load/creation
	// time so hot paths don't re-scan the attribute list (spec.md §3:
	// "live references to specific attributes").
	StateAttr    *attr.Attribute
	PriorityAttr *attr.Attribute
	SheetsAttr   *attr.Attribute // job-media-sheets-completed
	JobSheetsAttr *attr.Attribute // banner policy, two values: start, end
	UsernameAttr *attr.Attribute
	TitleAttr    *attr.Attribute
	HoldUntilAttr *attr.Attribute // job-hold-until keyword/clock-time text

	// AssignedPrinter is non-empty only while State == Processing
	// (spec.md §3 "Ownership": "State exclusivity" invariant, §8).
	AssignedPrinter string

	Procs []ChildProc
	Cost  int // filter cost, sums into dispatch's FilterLevel while processing

	// Status-pipe bookkeeping (spec.md §3: "status pipe descriptor,
	// status line buffer, accumulated worst-severity status"). The
	// concrete pipe fd type lives in the pipeline package; Record only
	// holds the line-accumulation state pipeline.StatusReader mutates
	// directly, plus a generic interface for the OS resource so job
	// stays free of unix-specific imports.
	StatusPipe   StatusPipeCloser
	LineBuffer   []byte
	WorstSeverity Severity
	WorstOutcome  Outcome
	HasWorstLine  bool

	TimeAtCreation   time.Time
	TimeAtProcessing time.Time
	TimeAtCompleted  time.Time
}

// StatusPipeCloser is the minimal surface Record needs from whatever
// concrete pipe the pipeline package hands it; kept as an interface so
// job has no unix-syscall dependency of its own.
type StatusPipeCloser interface {
	Close() error
}

// IsHeldIndefinitely reports whether the job's hold-until keyword was
// "indefinite" (spec.md §4.3: "hold_until = 0 (never auto-release)").
func (r *Record) IsHeldIndefinitely() bool {
	return r.State == EState.Held() && r.HoldUntil.IsZero()
}

// StampTime sets one of the three well-known time-at-* job attributes,
// creating it if absent (original_source scheduler/job.c "set_time").
func (r *Record) StampTime(name string, when time.Time) {
	switch name {
	case "time-at-creation":
		r.TimeAtCreation = when
	case "time-at-processing":
		r.TimeAtProcessing = when
	case "time-at-completed":
		r.TimeAtCompleted = when
	}
	if r.Catalog == nil {
		return
	}
	if a := r.Catalog.Find(name, attr.EValueTag.Integer()); a != nil {
		a.Values[0].Integer = int32(when.Unix())
		return
	}
	_, _ = r.Catalog.Add(attr.EGroupTag.Job(), attr.EValueTag.Integer(), name, attr.IntValue(int32(when.Unix())))
}

// ResetStatus clears the per-file status accumulation, called by
// StartJob before a fresh filter chain begins (spec.md §4.4
// "start_job": "clear any previous worst-status").
func (r *Record) ResetStatus() {
	r.LineBuffer = r.LineBuffer[:0]
	r.WorstSeverity = ESeverity.Unset()
	r.WorstOutcome = OutcomeSuccess
	r.HasWorstLine = false
}
