package machine

import (
	"errors"
	"fmt"
	"time"
)

// StateID is a generated enum of states.
type StateID interface {
	comparable
	fmt.Stringer
}

// StateData is the local data of a single state, tagged with its ID. A
// machine's current state is always read from its data, so the tag and the
// data can't diverge.
type StateData[S StateID] interface {
	StateID() S
}

// Event is a generated event with its params.
type Event[S StateID] interface {
	// Transition is a pure function of the event's ID.
	Transition() Transition[S]
	String() string
}

// Kind is a kind of transition.
type Kind int

const (
	// KindInternal keeps the current state and its data.
	KindInternal Kind = iota + 1
	// KindExternal moves from a specific source to a target.
	KindExternal
	// KindUniversal moves from any state to a target.
	KindUniversal
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	case KindUniversal:
		return "universal"
	}
	return "invalid"
}

// Transition describes where an event is valid and where it leads.
type Transition[S StateID] struct {
	Kind   Kind
	Source S
	Target S
}

// Internal returns a self-loop transition for state.
func Internal[S StateID](state S) Transition[S] {
	return Transition[S]{Kind: KindInternal, Source: state, Target: state}
}

// External returns a transition from source to target.
func External[S StateID](source, target S) Transition[S] {
	return Transition[S]{Kind: KindExternal, Source: source, Target: target}
}

// Universal returns a transition from any state to target.
func Universal[S StateID](target S) Transition[S] {
	return Transition[S]{Kind: KindUniversal, Target: target}
}

func (t Transition[S]) String() string {
	switch t.Kind {
	case KindInternal:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Source)
	case KindExternal:
		return fmt.Sprintf("%s(%s => %s)", t.Kind, t.Source, t.Target)
	case KindUniversal:
		return fmt.Sprintf("%s(* => %s)", t.Kind, t.Target)
	}
	return t.Kind.String()
}

// Schema is a set of generated hooks describing a single machine.
type Schema[S StateID, X any, E Event[S]] struct {
	Name    string
	Initial S
	// Terminal is valid only when HasTerminal.
	Terminal    S
	HasTerminal bool

	// NewData returns fresh, defaulted data of a state. Defaults can read the
	// extended state.
	NewData func(id S, ext *X) StateData[S]
	// Action runs the event's action. data is the current state's data for
	// internal transitions and nil otherwise.
	Action func(ext *X, data StateData[S], e E)
	// Entry runs after entering a state.
	Entry func(ext *X, data StateData[S])
	// Exit runs before leaving a state.
	Exit func(ext *X, data StateData[S])

	InitialAction    func(mach *Machine[S, X, E])
	TerminateSuccess func(mach *Machine[S, X, E])
	TerminateFailure func(mach *Machine[S, X, E])
}

// Api is a non-generic view of a machine, used by tracers.
type Api interface {
	Id() string
	Name() string
	StateName() string
	IsClosed() bool
}

// Opts struct is used to configure a new Machine.
type Opts struct {
	// Unique ID of this machine. Default: random ID.
	ID string
	// Log level of the machine. Default: LogNothing.
	LogLevel LogLevel
	// Logger for the machine. Default: fmt.Printf.
	Logger Logger
	// Tracers for the machine. Default: nil.
	Tracers []Tracer
	// Prefix log msgs with the machine's ID.
	LogID bool
}

// TransitionInfo describes a single HandleEvent call.
type TransitionInfo struct {
	Machine Api
	Event   string
	Kind    Kind
	Source  string
	// Target equals Source for internal transitions.
	Target string
	// Err is ErrWrongState or nil. Set before TransitionEnd.
	Err   error
	Start time.Time
	End   time.Time
}

// Accepted returns true if the transition happened.
func (t *TransitionInfo) Accepted() bool {
	return t.Err == nil
}

// Tracer observes the lifecycle of a machine.
type Tracer interface {
	// MachineInit is called after construction, before the initial action.
	MachineInit(mach Api)
	TransitionStart(tx *TransitionInfo)
	TransitionEnd(tx *TransitionInfo)
	// MachineClose is called at the end of Close, with its result.
	MachineClose(mach Api, err error)
}

// NoOpTracer is a no-op implementation of Tracer, used for embedding.
type NoOpTracer struct{}

func (t *NoOpTracer) MachineInit(mach Api)               {}
func (t *NoOpTracer) TransitionStart(tx *TransitionInfo) {}
func (t *NoOpTracer) TransitionEnd(tx *TransitionInfo)   {}
func (t *NoOpTracer) MachineClose(mach Api, err error)   {}

var _ Tracer = &NoOpTracer{}

// WrongStateError is returned by HandleEvent when the event isn't valid from
// the current state. The machine stays untouched.
type WrongStateError struct {
	Event   string
	Current string
	// Expected is the transition's source state.
	Expected string
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("%s: event %s requires %s, current %s",
		ErrWrongState, e.Event, e.Expected, e.Current)
}

func (e *WrongStateError) Unwrap() error {
	return ErrWrongState
}

// MissingFieldError is returned when a required extended field hasn't been
// supplied during construction.
type MissingFieldError struct {
	Machine string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s.%s", ErrMissingField, e.Machine, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

var (
	// ErrWrongState indicates an event not valid from the current state.
	ErrWrongState = errors.New("wrong state")
	// ErrMissingField indicates a required extended field without a value.
	ErrMissingField = errors.New("missing required field")
	// ErrNotTerminal indicates a machine closed outside of its terminal state.
	ErrNotTerminal = errors.New("closed in a non-terminal state")
	// ErrClosed indicates that the machine has been closed.
	ErrClosed = errors.New("machine closed")
	// ErrInvalidTransition indicates a generated transition of unknown kind.
	// These should be reported as bugs.
	ErrInvalidTransition = errors.New("invalid transition")
)
