// Package machine is the runtime of generated state machines. A generated
// package provides a Schema of hooks (state data constructors, actions, entry
// and exit), and Machine dispatches events according to their transitions.
//
// Dispatch is synchronous and a single Machine must not be used from
// multiple goroutines at the same time.
package machine

import (
	"fmt"

	"github.com/pancsta/machinegen/internal/utils"
)

// Machine is a running instance of a generated state machine. S is the
// generated state enum, X the extended state and E the generated event type.
type Machine[S StateID, X any, E Event[S]] struct {
	// Unique ID of this machine. Default: random ID.
	ID string
	// If true, the machine will prefix its logs with the machine ID (5 chars).
	LogID bool

	schema   *Schema[S, X, E]
	state    StateData[S]
	ext      X
	closed   bool
	logLevel LogLevel
	logger   Logger
	tracers  []Tracer
}

// New creates a new Machine from a generated schema and an extended state,
// and runs the initial action and the initial state's entry action.
func New[S StateID, X any, E Event[S]](
	schema *Schema[S, X, E], ext X, opts *Opts,
) *Machine[S, X, E] {
	if schema == nil || schema.NewData == nil {
		panic("machine: nil schema")
	}

	m := &Machine[S, X, E]{
		ID:     utils.RandId(0),
		schema: schema,
		ext:    ext,
	}
	if opts != nil {
		if opts.ID != "" {
			m.ID = opts.ID
		}
		if opts.LogLevel != LogNothing {
			m.SetLogLevel(opts.LogLevel)
		}
		if opts.Logger != nil {
			m.SetLogger(opts.Logger)
		}
		m.LogID = opts.LogID
		m.tracers = append(m.tracers, opts.Tracers...)
	}

	m.state = schema.NewData(schema.Initial, &m.ext)
	for _, t := range m.tracers {
		t.MachineInit(m)
	}
	m.log(LogChanges, "[init] %s", m.state.StateID())

	if schema.InitialAction != nil {
		m.log(LogOps, "[action:init] %s", schema.Name)
		schema.InitialAction(m)
	}
	m.entry()

	return m
}

// Id returns the machine's ID.
func (m *Machine[S, X, E]) Id() string {
	return m.ID
}

// Name returns the name of the machine's definition.
func (m *Machine[S, X, E]) Name() string {
	return m.schema.Name
}

// State returns the current state's data. Its StateID is the current state.
func (m *Machine[S, X, E]) State() StateData[S] {
	return m.state
}

// StateID returns the current state.
func (m *Machine[S, X, E]) StateID() S {
	return m.state.StateID()
}

// StateName returns the name of the current state.
func (m *Machine[S, X, E]) StateName() string {
	return m.state.StateID().String()
}

// Is returns true if the current state is the passed one.
func (m *Machine[S, X, E]) Is(state S) bool {
	return m.state.StateID() == state
}

// Extended returns a pointer to the extended state. Mutating it outside of
// actions is allowed.
func (m *Machine[S, X, E]) Extended() *X {
	return &m.ext
}

// IsClosed returns true after Close.
func (m *Machine[S, X, E]) IsClosed() bool {
	return m.closed
}

// IsTerminal returns true if the machine has a terminal state and is in it.
func (m *Machine[S, X, E]) IsTerminal() bool {
	return m.schema.HasTerminal && m.state.StateID() == m.schema.Terminal
}

// Schema returns the machine's schema.
func (m *Machine[S, X, E]) Schema() *Schema[S, X, E] {
	return m.schema
}

// HandleEvent dispatches e. Events not valid from the current state return a
// *WrongStateError (ErrWrongState) and leave the machine unchanged.
//
// State-changing transitions run: exit action, event action, swap to the
// target's fresh data, entry action. Internal transitions run only the event
// action, with the current state's data.
func (m *Machine[S, X, E]) HandleEvent(e E) error {
	if m.closed {
		return fmt.Errorf("%w: %s", ErrClosed, e)
	}

	t := e.Transition()
	current := m.state.StateID()
	tx := &TransitionInfo{
		Machine: m,
		Event:   e.String(),
		Kind:    t.Kind,
		Source:  current.String(),
		Target:  t.Target.String(),
	}
	if t.Kind == KindInternal {
		tx.Target = tx.Source
	}
	m.traceStart(tx)

	switch t.Kind {

	case KindUniversal:
		m.log(LogChanges, "[%s] %s => %s", e, current, t.Target)
		m.swap(e, t.Target)

	case KindExternal:
		if current != t.Source {
			tx.Err = m.wrongState(e, t)
			break
		}
		m.log(LogChanges, "[%s] %s => %s", e, current, t.Target)
		m.swap(e, t.Target)

	case KindInternal:
		if current != t.Source {
			tx.Err = m.wrongState(e, t)
			break
		}
		m.log(LogOps, "[%s] %s", e, current)
		if m.schema.Action != nil {
			m.schema.Action(&m.ext, m.state, e)
		}

	default:
		tx.Err = fmt.Errorf("%w: %s %s", ErrInvalidTransition, e, t.Kind)
	}

	m.traceEnd(tx)

	return tx.Err
}

// swap leaves the current state and enters target, with the event's action
// in between.
func (m *Machine[S, X, E]) swap(e E, target S) {
	m.exit()
	if m.schema.Action != nil {
		m.log(LogOps, "[action] %s", e)
		m.schema.Action(&m.ext, nil, e)
	}
	m.state = m.schema.NewData(target, &m.ext)
	m.entry()
}

func (m *Machine[S, X, E]) entry() {
	if m.schema.Entry == nil {
		return
	}
	m.log(LogDecisions, "[entry] %s", m.state.StateID())
	m.schema.Entry(&m.ext, m.state)
}

func (m *Machine[S, X, E]) exit() {
	if m.schema.Exit == nil {
		return
	}
	m.log(LogDecisions, "[exit] %s", m.state.StateID())
	m.schema.Exit(&m.ext, m.state)
}

func (m *Machine[S, X, E]) wrongState(e E, t Transition[S]) error {
	err := &WrongStateError{
		Event:    e.String(),
		Current:  m.state.StateID().String(),
		Expected: t.Source.String(),
	}
	m.log(LogOps, "[reject] %s", err)

	return err
}

// Close finishes the machine: runs the current state's exit action, then
// the success action if the machine is in its terminal state, or the failure
// action otherwise. Closing outside of the terminal state returns
// ErrNotTerminal. Machines without a terminal state always close cleanly.
// Closed machines reject all events.
func (m *Machine[S, X, E]) Close() error {
	if m.closed {
		return ErrClosed
	}

	m.exit()
	m.closed = true

	var err error
	switch {
	case !m.schema.HasTerminal:
		m.log(LogChanges, "[close] %s", m.state.StateID())

	case m.state.StateID() == m.schema.Terminal:
		m.log(LogChanges, "[close:success] %s", m.state.StateID())
		if m.schema.TerminateSuccess != nil {
			m.schema.TerminateSuccess(m)
		}

	default:
		err = fmt.Errorf("%w: %s is not %s", ErrNotTerminal,
			m.state.StateID(), m.schema.Terminal)
		m.log(LogChanges, "[close:failure] %s", err)
		if m.schema.TerminateFailure != nil {
			m.schema.TerminateFailure(m)
		}
	}

	for _, t := range m.tracers {
		t.MachineClose(m, err)
	}

	return err
}

// String returns a one-line representation of the machine.
func (m *Machine[S, X, E]) String() string {
	return fmt.Sprintf("%s(%s)", m.schema.Name, m.state.StateID())
}

// Inspect returns a multi-line representation of the current state, its data
// and the extended state.
func (m *Machine[S, X, E]) Inspect() string {
	return fmt.Sprintf("%s\n  state: %+v\n  extended: %+v",
		m.String(), m.state, m.ext)
}

// ///// ///// /////

// ///// TRACING

// ///// ///// /////

// AddTracer adds a tracer to an existing machine.
func (m *Machine[S, X, E]) AddTracer(t Tracer) {
	m.tracers = append(m.tracers, t)
}

// Tracers returns all the tracers of the machine.
func (m *Machine[S, X, E]) Tracers() []Tracer {
	return m.tracers
}

func (m *Machine[S, X, E]) traceStart(tx *TransitionInfo) {
	if len(m.tracers) == 0 {
		return
	}
	tx.Start = now()
	for _, t := range m.tracers {
		t.TransitionStart(tx)
	}
}

func (m *Machine[S, X, E]) traceEnd(tx *TransitionInfo) {
	if len(m.tracers) == 0 {
		return
	}
	tx.End = now()
	for _, t := range m.tracers {
		t.TransitionEnd(tx)
	}
}

// ///// ///// /////

// ///// LOGGING

// ///// ///// /////

// Log logs an [external] message with the LogChanges level (highest one).
// Optionally redirects to a custom logger from SetLogger.
func (m *Machine[S, X, E]) Log(msg string, args ...any) {
	m.log(LogChanges, "[external] "+msg, args...)
}

// log logs a message if the log level is high enough.
// Optionally redirects to a custom logger from SetLogger.
func (m *Machine[S, X, E]) log(level LogLevel, msg string, args ...any) {
	if level > m.logLevel {
		return
	}
	if m.LogID {
		id := m.ID
		if len(id) > 5 {
			id = id[:5]
		}
		msg = "[" + id + "] " + msg
	}
	if m.logger != nil {
		m.logger(level, msg, args...)
		return
	}
	fmt.Printf(msg+"\n", args...)
}

// SetLogger sets a custom logger function.
func (m *Machine[S, X, E]) SetLogger(fn Logger) {
	m.logger = fn
}

// SetLoggerSimple takes log.Printf and sets the log level in one call.
// Useful for testing. Requires LogChanges log level to produce any output.
func (m *Machine[S, X, E]) SetLoggerSimple(
	logf func(format string, args ...any), level LogLevel,
) {
	if logf == nil {
		panic("logf cannot be nil")
	}

	m.logger = func(_ LogLevel, msg string, args ...any) {
		logf(msg, args...)
	}
	m.logLevel = level
}

// SetLogLevel sets the log level of the machine.
func (m *Machine[S, X, E]) SetLogLevel(level LogLevel) {
	m.logLevel = level
}

// GetLogLevel returns the log level of the machine.
func (m *Machine[S, X, E]) GetLogLevel() LogLevel {
	return m.logLevel
}
