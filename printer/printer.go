// Package printer defines the narrow contract the core needs from the
// printer/class directory, which spec.md §1 places out of scope as an
// external collaborator ("Where the core calls into these, only the
// required contract is specified"). It is intentionally thin: no
// discovery, no state broadcast, no PPD handling.
package printer

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// State is the printer/class's own availability, independent of
// whatever job it may be running.
type State uint8

const (
	stateIdle State = iota
	stateProcessing
	stateStopped
)

var EState = State(stateIdle)

func (State) Idle() State       { return stateIdle }
func (State) Processing() State { return stateProcessing }
func (State) Stopped() State    { return stateStopped }

func (s State) String() string {
	switch s {
	case EState.Idle():
		return "idle"
	case EState.Processing():
		return "processing"
	case EState.Stopped():
		return "stopped"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// Printer is the shape of one destination as the dispatcher needs to
// see it. Registry owns Printer values; the dispatcher only ever reads
// or flips State/CurrentJobID through the methods below, never holds a
// long-lived pointer across a dispatch tick.
type Printer struct {
	Name       string
	State      State
	Remote     bool
	Class      bool
	Implicit   bool
	Members    []string // class membership, by printer name; nil for a plain printer
	DeviceURI  string
	NativeType string // MIME type the backend/device accepts natively
	Message    string // last status line surfaced to clients

	// CurrentJobID is the non-owning back-pointer to the job being
	// processed, cleared in lock-step with the job's own printer
	// back-pointer (spec.md §3 "Ownership": "the symmetry must be
	// enforced — on state exit, both back-pointers clear atomically
	// with respect to the dispatcher").
	CurrentJobID int
}

// Registry is the external printer/class directory contract
// (spec.md §4.4 "Dispatcher": "Resolve destination: first as a class,
// then as a printer"). A production build wires this to the real
// directory service; tests and the in-process daemon here use
// MemRegistry.
type Registry interface {
	// Lookup returns the named printer or class, or ok=false if no
	// destination by that name exists.
	Lookup(name string) (p *Printer, ok bool)

	// ResolveImplicitMember substitutes one available underlying
	// printer for an implicit class (spec.md §4.4: "Implicit classes
	// are printers with the implicit flag; on match, substitute one
	// underlying available printer").
	ResolveImplicitMember(implicitClassName string) (p *Printer, ok bool)

	// SetState flips a printer's availability; the dispatcher calls
	// this instead of mutating Printer directly so a real directory
	// can fan the change out to its own broadcast mechanism.
	SetState(name string, s State)

	// SetCurrentJob installs or clears the non-owning job back-pointer.
	SetCurrentJob(name string, jobID int)
}
