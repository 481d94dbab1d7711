package graph

import (
	"fmt"
	"slices"

	"github.com/pancsta/machinegen/pkg/spec"
)

// Warning is a non-fatal issue of a valid definition.
type Warning struct {
	Path string
	Msg  string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Msg
}

// Lint reports suspicious but valid constructs: unreachable states, a
// terminal state which can't be reached, states which can't reach the
// terminal state, and scope declared on external events (ignored).
func (g *Graph) Lint() ([]Warning, error) {
	m := g.Machine
	var ret []Warning

	reach, err := g.Reachable(m.InitialState().Name)
	if err != nil {
		return nil, err
	}
	terminal := m.TerminalState()

	for i, s := range m.States {
		path := fmt.Sprintf("states[%d]", i)
		if !slices.Contains(reach, s.Name) {
			if s.Terminal {
				ret = append(ret, Warning{path,
					"terminal state " + s.Name + " is unreachable"})
			} else {
				ret = append(ret, Warning{path,
					"state " + s.Name + " is unreachable"})
			}
			continue
		}

		if terminal == nil || s.Terminal {
			continue
		}
		ok, err := g.CanReach(s.Name, terminal.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			ret = append(ret, Warning{path,
				"state " + s.Name + " can't reach terminal state " + terminal.Name})
		}
	}

	for i, e := range m.Events {
		if e.Kind() == spec.KindExternal && len(e.Scope) > 0 {
			ret = append(ret, Warning{fmt.Sprintf("events[%d].scope", i),
				"scope of external event " + e.Name + " is not bound"})
		}
	}

	return ret, nil
}

// Lint is a shorthand for New and Graph.Lint.
func Lint(m *spec.Machine) ([]Warning, error) {
	g, err := New(m)
	if err != nil {
		return nil, err
	}

	return g.Lint()
}
