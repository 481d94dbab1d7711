// Package graph provides a structural graph of a machine definition: states,
// markers and transitions between them, plus reachability checks on top.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/samber/lo"

	"github.com/pancsta/machinegen/pkg/spec"
)

const (
	// MarkerInitial points to the initial state.
	MarkerInitial = "@initial"
	// MarkerTerminal is pointed to by the terminal state.
	MarkerTerminal = "@terminal"
	// MarkerAny is the source of universal transitions.
	MarkerAny = "@any"
)

type Vertex struct {
	// StateName is empty for markers.
	StateName string
	Marker    string
}

func (v *Vertex) IsMarker() bool {
	return v.Marker != ""
}

type Edge = graph.Edge[*Vertex]

type EdgeData struct {
	// names of events producing this edge, in declaration order
	Events []string
	// edge between a state and MarkerAny
	Wildcard bool
	// edge from or to a marker, without events
	Marker bool
}

type Connection struct {
	Edge   *EdgeData
	Source *Vertex
	Target *Vertex
}

func hash(v *Vertex) string {
	if v.Marker != "" {
		return v.Marker
	}
	return v.StateName
}

// ///// ///// /////

// ///// GRAPH

// ///// ///// /////

type Graph struct {
	Machine *spec.Machine

	// g is a directed graph of states and markers with metadata.
	g graph.Graph[string, *Vertex]
	// gMap is a state-only mirror of g, with universal transitions expanded
	// into edges from every state.
	gMap graph.Graph[string, *Vertex]
}

// New builds a graph of a validated machine definition.
func New(m *spec.Machine) (*Graph, error) {
	g := &Graph{
		Machine: m,
		g:       graph.New(hash, graph.Directed()),
		gMap:    graph.New(hash, graph.Directed()),
	}

	for _, s := range m.States {
		v := &Vertex{StateName: s.Name}
		if err := g.g.AddVertex(v); err != nil {
			return nil, fmt.Errorf("state %s: %w", s.Name, err)
		}
		if err := g.gMap.AddVertex(v); err != nil {
			return nil, fmt.Errorf("state %s: %w", s.Name, err)
		}
	}

	// markers
	initial := m.InitialState()
	if initial == nil {
		return nil, fmt.Errorf("%w", spec.ErrNoInitial)
	}
	if err := g.addMarker(MarkerInitial, initial.Name, true); err != nil {
		return nil, err
	}
	if terminal := m.TerminalState(); terminal != nil {
		if err := g.addMarker(MarkerTerminal, terminal.Name, false); err != nil {
			return nil, err
		}
	}

	// events
	for _, e := range m.Events {
		t := e.Transition()
		var err error
		switch t.Kind {
		case spec.KindInternal:
			err = g.addEvent(g.g, t.Source, t.Source, e.Name)
			if err == nil {
				err = g.addEvent(g.gMap, t.Source, t.Source, e.Name)
			}
		case spec.KindExternal:
			err = g.addEvent(g.g, t.Source, t.Target, e.Name)
			if err == nil {
				err = g.addEvent(g.gMap, t.Source, t.Target, e.Name)
			}
		case spec.KindUniversal:
			err = g.addUniversal(t.Target, e.Name)
		default:
			err = fmt.Errorf("%w: %s", spec.ErrUniversalNoTarget, e.Name)
		}
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (g *Graph) addMarker(marker, state string, from bool) error {
	if err := g.g.AddVertex(&Vertex{Marker: marker}); err != nil {
		return fmt.Errorf("marker %s: %w", marker, err)
	}
	src, dst := state, marker
	if from {
		src, dst = marker, state
	}
	data := graph.EdgeData(&EdgeData{Marker: true})

	return g.g.AddEdge(src, dst, data)
}

// addEvent adds an event to an edge, creating the edge when needed.
func (g *Graph) addEvent(
	gr graph.Graph[string, *Vertex], src, dst, event string,
) error {
	err := gr.AddEdge(src, dst, graph.EdgeData(&EdgeData{
		Events: []string{event},
	}))
	if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return err
	}

	edge, err := gr.Edge(src, dst)
	if err != nil {
		return err
	}
	data := edge.Properties.Data.(*EdgeData)
	data.Events = append(data.Events, event)

	return nil
}

func (g *Graph) addUniversal(target, event string) error {
	// wildcard edges from all the states, once
	_, err := g.g.Vertex(MarkerAny)
	if errors.Is(err, graph.ErrVertexNotFound) {
		if err := g.g.AddVertex(&Vertex{Marker: MarkerAny}); err != nil {
			return err
		}
		for _, name := range g.Machine.StateNames() {
			err := g.g.AddEdge(name, MarkerAny,
				graph.EdgeData(&EdgeData{Wildcard: true}))
			if err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	if err := g.addEvent(g.g, MarkerAny, target, event); err != nil {
		return err
	}
	for _, name := range g.Machine.StateNames() {
		if err := g.addEvent(g.gMap, name, target, event); err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) G() graph.Graph[string, *Vertex] {
	return g.g
}

func (g *Graph) Map() graph.Graph[string, *Vertex] {
	return g.gMap
}

// Connection returns a Connection for the given source-target.
func (g *Graph) Connection(source, target string) (*Connection, error) {
	edge, err := g.g.Edge(source, target)
	if err != nil {
		return nil, err
	}
	data := edge.Properties.Data.(*EdgeData)
	targetVert, err := g.g.Vertex(target)
	if err != nil {
		return nil, err
	}
	sourceVert, err := g.g.Vertex(source)
	if err != nil {
		return nil, err
	}

	return &Connection{
		Edge:   data,
		Source: sourceVert,
		Target: targetVert,
	}, nil
}

// Connections returns all the connections of g, sorted by source and target
// hashes.
func (g *Graph) Connections() ([]*Connection, error) {
	edges, err := g.g.Edges()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(edges, func(a, b graph.Edge[string]) int {
		if a.Source != b.Source {
			return cmpStr(a.Source, b.Source)
		}
		return cmpStr(a.Target, b.Target)
	})

	ret := make([]*Connection, 0, len(edges))
	for _, e := range edges {
		c, err := g.Connection(e.Source, e.Target)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}

	return ret, nil
}

// StateNames returns the names of state vertices, sorted.
func (g *Graph) StateNames() ([]string, error) {
	adj, err := g.gMap.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	ret := lo.Keys(adj)
	slices.Sort(ret)

	return ret, nil
}

// EventNames returns the names of all events carried by edges, sorted.
func (g *Graph) EventNames() ([]string, error) {
	conns, err := g.Connections()
	if err != nil {
		return nil, err
	}
	var ret []string
	for _, c := range conns {
		ret = append(ret, c.Edge.Events...)
	}
	ret = lo.Uniq(ret)
	slices.Sort(ret)

	return ret, nil
}

// Reachable returns states reachable from the passed one (inclusive), in BFS
// order.
func (g *Graph) Reachable(from string) ([]string, error) {
	var ret []string
	err := graph.BFS(g.gMap, from, func(name string) bool {
		ret = append(ret, name)
		return false
	})
	if err != nil {
		return nil, err
	}

	return ret, nil
}

// CanReach returns true if target is reachable from source.
func (g *Graph) CanReach(source, target string) (bool, error) {
	reach, err := g.Reachable(source)
	if err != nil {
		return false, err
	}

	return slices.Contains(reach, target), nil
}

func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
