package visualizer

import (
	"strings"

	"github.com/samber/lo"

	"github.com/pancsta/machinegen/pkg/spec"
)

// mermaidEsc replaces characters structural in Mermaid text with entity
// codes. Notes are single-line.
var mermaidEsc = strings.NewReplacer(
	"#", "#35;",
	";", "#59;",
	`"`, "#quot;",
	"<", "#lt;",
	">", "#gt;",
	"\n", " ",
)

// mermaidAnyID returns the id of the wildcard node, one which no state uses.
func mermaidAnyID(m *spec.Machine) string {
	id := "__any"
	for m.State(id) != nil {
		id += "_"
	}

	return id
}

// Mermaid renders the machine as a stateDiagram-v2. Only names are rendered:
// states with their fields as notes, and events as edge labels. Universal
// events start at the wildcard node, which every state points to.
func (v *Visualizer) Mermaid() string {
	m := v.Machine
	v.buf.Reset()

	v.buf.WriteString("---\ntitle: " + m.Name + "\n---\n")
	v.buf.WriteString("stateDiagram-v2\n")

	// states
	for _, s := range m.States {
		v.buf.WriteString("\tstate " + s.Name + "\n")
		if len(s.Fields) == 0 {
			continue
		}
		lines := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			lines[i] = mermaidEsc.Replace(
				v.fieldText(StateKey(s.Name, f.Name), f, false))
		}
		v.buf.WriteString("\tnote right of " + s.Name + "\n\t\t" +
			strings.Join(lines, "\n\t\t") + "\n\tend note\n")
	}
	hasUniversal := lo.ContainsBy(m.Events, func(e spec.Event) bool {
		return e.Kind() == spec.KindUniversal
	})
	anyID := mermaidAnyID(m)
	if hasUniversal {
		v.buf.WriteString("\tstate \"" + spec.Any + "\" as " + anyID + "\n")
		v.buf.WriteString("\tclassDef wildcard stroke-dasharray: 4 4\n")
		v.buf.WriteString("\tclass " + anyID + " wildcard\n")
	}

	// markers
	v.buf.WriteString("\t[*] --> " + m.InitialState().Name + "\n")
	if t := m.TerminalState(); t != nil {
		v.buf.WriteString("\t" + t.Name + " --> [*]\n")
	}
	if hasUniversal {
		for _, name := range m.StateNames() {
			v.buf.WriteString("\t" + name + " --> " + anyID + "\n")
		}
	}

	// events
	for _, e := range m.Events {
		t := e.Transition()
		src, dst := t.Source, t.Target
		switch t.Kind {
		case spec.KindInternal:
			dst = src
		case spec.KindUniversal:
			src = anyID
		}
		v.buf.WriteString("\t" + src + " --> " + dst + " : " + e.Name + "\n")
	}

	return v.buf.String()
}
