package visualizer

import (
	"html"
	"strings"

	"github.com/pancsta/machinegen/pkg/graph"
	"github.com/pancsta/machinegen/pkg/spec"
)

const br = `<BR ALIGN="LEFT"/>`

// esc escapes user text for HTML labels, keeping line breaks.
func esc(txt string) string {
	txt = html.EscapeString(strings.TrimRight(txt, "\n"))
	return strings.ReplaceAll(txt, "\n", br)
}

func q(id string) string {
	return `"` + id + `"`
}

// Dot renders the machine as a Graphviz digraph. States are HTML table nodes,
// each event is a single labeled edge, and universal events start at the
// "@any" marker, which every state points to with a dashed edge.
func (v *Visualizer) Dot() string {
	m := v.Machine
	v.buf.Reset()

	v.buf.WriteString("digraph " + q(m.Name) + " {\n" +
		"\tgraph [fontname=\"Monospace\", fontsize=10, labelloc=t, " +
		"labeljust=l];\n" +
		"\tnode [fontname=\"Monospace\", fontsize=10, shape=none, margin=0];\n" +
		"\tedge [fontname=\"Monospace\", fontsize=10];\n")
	v.buf.WriteString("\tlabel=<" + v.dotMachineLabel() + ">;\n\n")

	// markers
	v.buf.WriteString("\t" + q(graph.MarkerInitial) +
		" [shape=point, width=0.2, label=\"\"];\n")
	if m.TerminalState() != nil {
		v.buf.WriteString("\t" + q(graph.MarkerTerminal) +
			" [shape=doublecircle, style=filled, fillcolor=black, width=0.1, " +
			"label=\"\"];\n")
	}
	hasUniversal := false
	for _, e := range m.Events {
		if e.Kind() == spec.KindUniversal {
			hasUniversal = true
			break
		}
	}
	if hasUniversal {
		v.buf.WriteString("\t" + q(graph.MarkerAny) +
			" [shape=circle, width=0.3, label=\"*\"];\n")
	}
	v.buf.WriteString("\n")

	// states
	for i := range m.States {
		s := &m.States[i]
		v.buf.WriteString("\t" + q(s.Name) + " [label=<" + v.dotStateLabel(s) +
			">];\n")
	}
	v.buf.WriteString("\n")

	// marker edges
	v.buf.WriteString("\t" + q(graph.MarkerInitial) + " -> " +
		q(m.InitialState().Name) + ";\n")
	if t := m.TerminalState(); t != nil {
		v.buf.WriteString("\t" + q(t.Name) + " -> " + q(graph.MarkerTerminal) +
			";\n")
	}
	if hasUniversal {
		for _, name := range m.StateNames() {
			v.buf.WriteString("\t" + q(name) + " -> " + q(graph.MarkerAny) +
				" [style=dashed, arrowhead=none];\n")
		}
	}
	v.buf.WriteString("\n")

	// events
	for i := range m.Events {
		e := &m.Events[i]
		t := e.Transition()
		src, dst := t.Source, t.Target
		switch t.Kind {
		case spec.KindInternal:
			dst = src
		case spec.KindUniversal:
			src = graph.MarkerAny
		}
		v.buf.WriteString("\t" + q(src) + " -> " + q(dst) + " [label=<" +
			v.dotEventLabel(e) + ">];\n")
	}

	v.buf.WriteString("}\n")

	return v.buf.String()
}

func (v *Visualizer) dotMachineLabel() string {
	m := v.Machine
	var rows []string

	title := "<B>" + esc(m.Name) + "</B>"
	if m.IsGeneric() {
		params := make([]string, len(m.TypeParams))
		for i, p := range m.TypeParams {
			params[i] = esc(p.Name + " " + p.Bound())
		}
		title += esc("[") + strings.Join(params, ", ") + esc("]")
	}
	rows = append(rows, title)

	for i, arg := range v.typeArgs {
		if i >= len(m.TypeParams) {
			break
		}
		rows = append(rows, esc(m.TypeParams[i].Name+" = "+arg))
	}
	for _, f := range m.Extended {
		rows = append(rows, esc(v.fieldText(ExtendedKey(f.Name), f,
			m.NoDefault && !f.HasDefault())))
	}

	return dotTable(rows)
}

func (v *Visualizer) dotStateLabel(s *spec.State) string {
	rows := []string{"<B>" + esc(s.Name) + "</B>"}
	var fields []string
	for _, f := range s.Fields {
		fields = append(fields, esc(v.fieldText(StateKey(s.Name, f.Name), f,
			false)))
	}
	var actions []string
	if s.Entry != "" {
		actions = append(actions, "<I>entry</I>"+br+esc(s.Entry))
	}
	if s.Exit != "" {
		actions = append(actions, "<I>exit</I>"+br+esc(s.Exit))
	}

	ret := `<TABLE BORDER="1" CELLBORDER="0" CELLSPACING="0" ` +
		`CELLPADDING="4" STYLE="ROUNDED">` + dotRows(rows)
	if len(fields) > 0 {
		ret += "<HR/>" + dotRows(fields)
	}
	if len(actions) > 0 {
		ret += "<HR/>" + dotRows(actions)
	}

	return ret + "</TABLE>"
}

func (v *Visualizer) dotEventLabel(e *spec.Event) string {
	label := "<I>" + esc(e.Name) + "</I>"
	if len(e.Params) > 0 {
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = esc(v.fieldText(EventKey(e.Name, p.Name), p,
				!p.HasDefault()))
		}
		label += esc("(") + strings.Join(params, ", ") + esc(")")
	}

	// scope is only bound for internal transitions
	if e.Kind() == spec.KindInternal && len(e.Scope) > 0 {
		label += br + esc("{ "+strings.Join(e.Scope, ", ")+" } =>")
	}
	if e.Action != "" {
		label += br + esc(e.Action)
	}
	if label != "<I>"+esc(e.Name)+"</I>" {
		label += br
	}

	return label
}

func dotTable(rows []string) string {
	return `<TABLE BORDER="0" CELLBORDER="0" CELLSPACING="0">` +
		dotRows(rows) + "</TABLE>"
}

func dotRows(rows []string) string {
	var ret string
	for _, r := range rows {
		ret += `<TR><TD ALIGN="LEFT">` + r + "</TD></TR>"
	}
	return ret
}
