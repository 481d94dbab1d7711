// Package spec is the declarative model of a finite-state machine: states
// with typed local data, events with derived transitions, machine-wide
// extended state and initial / terminal behavior. A *Machine is pure data,
// consumed by the generator and the visualizer after Validate.
package spec

// import "github.com/pancsta/machinegen/pkg/spec"

import (
	"slices"

	"github.com/samber/lo"
	"github.com/stoewer/go-strcase"
)

// Any is the wildcard event source, valid from every state.
const Any = "*"

// Kind is a structural kind of a transition, derived from an event's source
// and target.
type Kind int

const (
	// KindInvalid is a wildcard source without a target.
	KindInvalid Kind = iota
	// KindInternal is a self-loop: specific source, no target.
	KindInternal
	// KindExternal has a specific source and a target.
	KindExternal
	// KindUniversal has a wildcard source and a target.
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

// Field is a typed, named value with an optional default expression. Used for
// local state data, extended state and event params.
type Field struct {
	// Name is the identifier bound in action bodies, as written.
	Name string `yaml:"name" json:"name"`
	// Type is a Go type expression.
	Type string `yaml:"type" json:"type"`
	// Default is a Go expression, empty for none.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// HasDefault returns true if the field declares a default expression.
func (f Field) HasDefault() bool {
	return f.Default != ""
}

// GoName returns the exported struct field name.
func (f Field) GoName() string {
	return strcase.UpperCamelCase(f.Name)
}

// State is a declared state with its local data.
type State struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
	// Entry runs after every transition into this state, with the state's
	// fields and extended fields in scope.
	Entry string `yaml:"entry,omitempty" json:"entry,omitempty"`
	// Exit runs before every transition out of this state.
	Exit     string `yaml:"exit,omitempty" json:"exit,omitempty"`
	Initial  bool   `yaml:"initial,omitempty" json:"initial,omitempty"`
	Terminal bool   `yaml:"terminal,omitempty" json:"terminal,omitempty"`
}

// Field returns a local field by name.
func (s *State) Field(name string) (Field, bool) {
	return lo.Find(s.Fields, func(f Field) bool {
		return f.Name == name
	})
}

// FieldNames returns the names of all local fields, in order.
func (s *State) FieldNames() []string {
	return lo.Map(s.Fields, func(f Field, _ int) string {
		return f.Name
	})
}

// Event is a declared event.
type Event struct {
	Name string `yaml:"name" json:"name"`
	// Source is a state name or Any.
	Source string `yaml:"source" json:"source"`
	// Target is empty for internal transitions.
	Target string  `yaml:"target,omitempty" json:"target,omitempty"`
	Params []Field `yaml:"params,omitempty" json:"params,omitempty"`
	// Scope lists the source state's local fields bound in Action. Only
	// internal transitions bind them.
	Scope  []string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Action string   `yaml:"action,omitempty" json:"action,omitempty"`
}

// Transition is a derived, structural view of an event.
type Transition struct {
	Kind   Kind
	Source string
	Target string
}

// Transition computes the event's transition from its source and target.
func (e *Event) Transition() Transition {
	t := Transition{Source: e.Source, Target: e.Target}
	switch {
	case e.Source == Any && e.Target == "":
		t.Kind = KindInvalid
	case e.Source == Any:
		t.Kind = KindUniversal
	case e.Target == "":
		t.Kind = KindInternal
	default:
		t.Kind = KindExternal
	}

	return t
}

// Kind is a shorthand for Transition().Kind.
func (e *Event) Kind() Kind {
	return e.Transition().Kind
}

// Param returns a param by name.
func (e *Event) Param(name string) (Field, bool) {
	return lo.Find(e.Params, func(f Field) bool {
		return f.Name == name
	})
}

// HasDefaultParams returns true when the event can be constructed from its
// ID alone.
func (e *Event) HasDefaultParams() bool {
	return lo.EveryBy(e.Params, Field.HasDefault)
}

// TypeParam is a generic type parameter of the machine.
type TypeParam struct {
	Name string `yaml:"name" json:"name"`
	// Constraint defaults to "any".
	Constraint string `yaml:"constraint,omitempty" json:"constraint,omitempty"`
}

// Bound returns the constraint, "any" when empty.
func (p TypeParam) Bound() string {
	if p.Constraint == "" {
		return "any"
	}
	return p.Constraint
}

// Machine is a complete machine definition.
type Machine struct {
	Name       string      `yaml:"name" json:"name"`
	TypeParams []TypeParam `yaml:"typeParams,omitempty" json:"typeParams,omitempty"`
	// NoDefault makes extended fields without a default required during
	// construction.
	NoDefault bool `yaml:"noDefault,omitempty" json:"noDefault,omitempty"`
	// Self is the name bound to the machine instance in InitialAction,
	// TerminateSuccess and TerminateFailure. Defaults to the lowerCamelCase
	// machine name.
	Self string `yaml:"self,omitempty" json:"self,omitempty"`
	// Imports are Go import paths used by types and actions, optionally
	// prefixed with an alias.
	Imports  []string `yaml:"imports,omitempty" json:"imports,omitempty"`
	States   []State  `yaml:"states" json:"states"`
	Events   []Event  `yaml:"events,omitempty" json:"events,omitempty"`
	Extended []Field  `yaml:"extended,omitempty" json:"extended,omitempty"`

	InitialAction    string `yaml:"initialAction,omitempty" json:"initialAction,omitempty"`
	TerminateSuccess string `yaml:"terminateSuccess,omitempty" json:"terminateSuccess,omitempty"`
	TerminateFailure string `yaml:"terminateFailure,omitempty" json:"terminateFailure,omitempty"`
}

// SelfName returns the name bound to the instance in lifecycle actions.
func (m *Machine) SelfName() string {
	if m.Self != "" {
		return m.Self
	}
	return strcase.LowerCamelCase(m.Name)
}

// State returns a state by name, or nil.
func (m *Machine) State(name string) *State {
	for i := range m.States {
		if m.States[i].Name == name {
			return &m.States[i]
		}
	}
	return nil
}

// Event returns an event by name, or nil.
func (m *Machine) Event(name string) *Event {
	for i := range m.Events {
		if m.Events[i].Name == name {
			return &m.Events[i]
		}
	}
	return nil
}

// StateNames returns all state names, in order.
func (m *Machine) StateNames() []string {
	return lo.Map(m.States, func(s State, _ int) string {
		return s.Name
	})
}

// EventNames returns all event names, in order.
func (m *Machine) EventNames() []string {
	return lo.Map(m.Events, func(e Event, _ int) string {
		return e.Name
	})
}

// ExtendedField returns an extended field by name.
func (m *Machine) ExtendedField(name string) (Field, bool) {
	return lo.Find(m.Extended, func(f Field) bool {
		return f.Name == name
	})
}

// ExtendedNames returns the names of all extended fields.
func (m *Machine) ExtendedNames() []string {
	return lo.Map(m.Extended, func(f Field, _ int) string {
		return f.Name
	})
}

// InitialState returns the first state marked as initial, or nil.
func (m *Machine) InitialState() *State {
	i := slices.IndexFunc(m.States, func(s State) bool {
		return s.Initial
	})
	if i == -1 {
		return nil
	}
	return &m.States[i]
}

// TerminalState returns the first state marked as terminal, or nil.
func (m *Machine) TerminalState() *State {
	i := slices.IndexFunc(m.States, func(s State) bool {
		return s.Terminal
	})
	if i == -1 {
		return nil
	}
	return &m.States[i]
}

// EventsFrom returns events valid from the passed state, wildcard ones
// included.
func (m *Machine) EventsFrom(state string) []*Event {
	var ret []*Event
	for i := range m.Events {
		e := &m.Events[i]
		if e.Source == state || e.Source == Any {
			ret = append(ret, e)
		}
	}
	return ret
}

// IsGeneric returns true for machines with type params.
func (m *Machine) IsGeneric() bool {
	return len(m.TypeParams) > 0
}

// RequiredFields returns extended fields which have to be supplied during
// construction. Always empty unless NoDefault.
func (m *Machine) RequiredFields() []Field {
	if !m.NoDefault {
		return nil
	}
	return lo.Reject(m.Extended, func(f Field, _ int) bool {
		return f.HasDefault()
	})
}
