package job

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// State is the job lifecycle enum (spec.md §3 "Job", §3 "Lifecycle").
// The numeric values match the wire encoding a real IPP job-state
// attribute would carry (pending=3 .. completed=9); preserving them
// keeps State round-trippable through attr.Value.Integer without a
// translation table.
type State int32

const (
	statePending    State = 3
	stateHeld       State = 4
	stateProcessing State = 5
	stateStopped    State = 6
	stateCancelled  State = 7
	stateAborted    State = 8
	stateCompleted  State = 9
)

// EState is the enum namespace (EState.Pending(), EState.Processing(), ...).
var EState = State(statePending)

func (State) Pending() State    { return statePending }
func (State) Held() State       { return stateHeld }
func (State) Processing() State { return stateProcessing }
func (State) Stopped() State    { return stateStopped }
func (State) Cancelled() State  { return stateCancelled }
func (State) Aborted() State    { return stateAborted }
func (State) Completed() State  { return stateCompleted }

func (s *State) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(State)
	}
	return err
}

func (s State) String() string {
	switch s {
	case EState.Pending():
		return "pending"
	case EState.Held():
		return "held"
	case EState.Processing():
		return "processing"
	case EState.Stopped():
		return "stopped"
	case EState.Cancelled():
		return "cancelled"
	case EState.Aborted():
		return "aborted"
	case EState.Completed():
		return "completed"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// IsTerminal reports whether s is one of the states job.Store.Clean
// considers eligible for eviction (spec.md §4.2 "Clean": "state ≥
// cancelled").
func (s State) IsTerminal() bool { return s >= EState.Cancelled() }

// DestinationKind is a bit flag set describing the resolved
// destination's shape (spec.md §3 "Job": "destination kind flags
// {remote, class, implicit}"). Unlike State it is a mask, not a closed
// single-valued enum, so it is modeled as plain bitwise constants
// rather than the JeffreyRichter/enum idiom used above.
type DestinationKind uint8

const (
	DestRemote   DestinationKind = 1 << iota
	DestClass
	DestImplicit
)

func (k DestinationKind) Has(flag DestinationKind) bool { return k&flag == flag }
func (k DestinationKind) With(flag DestinationKind) DestinationKind { return k | flag }
func (k DestinationKind) Without(flag DestinationKind) DestinationKind { return k &^ flag }
