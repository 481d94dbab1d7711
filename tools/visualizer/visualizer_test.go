package visualizer

import (
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pancsta/machinegen/pkg/graph"
	"github.com/pancsta/machinegen/pkg/spec"
)

func doorSpec() *spec.Machine {
	return &spec.Machine{
		Name: "Door",
		States: []spec.State{
			{
				Name:    "Closed",
				Initial: true,
				Fields: []spec.Field{
					{Name: "knockCount", Type: "uint64", Default: "0"},
				},
			},
			{Name: "Opened"},
		},
		Extended: []spec.Field{
			{Name: "openCount", Type: "uint64", Default: "0"},
		},
		Events: []spec.Event{
			{
				Name: "Knock", Source: "Closed", Scope: []string{"knockCount"},
				Action: "*knockCount++",
			},
			{
				Name: "Open", Source: "Closed", Target: "Opened",
				Action: "*openCount++",
			},
			{Name: "Close", Source: "Opened", Target: "Closed"},
		},
	}
}

func universalSpec() *spec.Machine {
	return &spec.Machine{
		Name: "Universal",
		States: []spec.State{
			{Name: "R"},
			{Name: "S", Initial: true},
			{Name: "T", Terminal: true},
		},
		Events: []spec.Event{
			{Name: "ToR", Source: spec.Any, Target: "R"},
			{Name: "ToT", Source: spec.Any, Target: "T"},
			{Name: "ToS", Source: "T", Target: "S"},
		},
	}
}

func sp(txt string) string {
	return dedent.Dedent(strings.TrimLeft(txt, "\n"))
}

func TestDotfileShowDefaults(t *testing.T) {
	m := doorSpec()
	require.NoError(t, spec.Validate(m))

	expected := sp(`
		digraph "Door" {
			graph [fontname="Monospace", fontsize=10, labelloc=t, labeljust=l];
			node [fontname="Monospace", fontsize=10, shape=none, margin=0];
			edge [fontname="Monospace", fontsize=10];
			label=<<TABLE BORDER="0" CELLBORDER="0" CELLSPACING="0"><TR><TD ALIGN="LEFT"><B>Door</B></TD></TR><TR><TD ALIGN="LEFT">openCount : uint64 = 0</TD></TR></TABLE>>;

			"@initial" [shape=point, width=0.2, label=""];

			"Closed" [label=<<TABLE BORDER="1" CELLBORDER="0" CELLSPACING="0" CELLPADDING="4" STYLE="ROUNDED"><TR><TD ALIGN="LEFT"><B>Closed</B></TD></TR><HR/><TR><TD ALIGN="LEFT">knockCount : uint64 = 0</TD></TR></TABLE>>];
			"Opened" [label=<<TABLE BORDER="1" CELLBORDER="0" CELLSPACING="0" CELLPADDING="4" STYLE="ROUNDED"><TR><TD ALIGN="LEFT"><B>Opened</B></TD></TR></TABLE>>];

			"@initial" -> "Closed";

			"Closed" -> "Closed" [label=<<I>Knock</I><BR ALIGN="LEFT"/>{ knockCount } =&gt;<BR ALIGN="LEFT"/>*knockCount++<BR ALIGN="LEFT"/>>];
			"Closed" -> "Opened" [label=<<I>Open</I><BR ALIGN="LEFT"/>*openCount++<BR ALIGN="LEFT"/>>];
			"Opened" -> "Closed" [label=<<I>Close</I>>];
		}
	`)

	assert.Equal(t, expected, Dotfile(m, ShowDefaults))
}

func TestDotfileHideDefaults(t *testing.T) {
	out := Dotfile(doorSpec(), HideDefaults)

	assert.Contains(t, out, "knockCount : uint64</TD>")
	assert.Contains(t, out, "openCount : uint64</TD>")
	assert.NotContains(t, out, " = 0")
}

func TestDotfilePrettyDefaults(t *testing.T) {
	defaults := Defaults{}
	defaults.Set(StateKey("Closed", "knockCount"), uint64(0))
	defaults.Set(ExtendedKey("openCount"), uint64(0))

	out := Dotfile(doorSpec(), PrettyDefaults, WithPrettyDefaults(defaults))
	assert.Contains(t, out, "knockCount : uint64 = (uint64) 0")
	assert.Contains(t, out, "openCount : uint64 = (uint64) 0")

	// no provider falls back to expressions
	out = Dotfile(doorSpec(), PrettyDefaults)
	assert.Contains(t, out, "knockCount : uint64 = 0")
}

func TestDotfileMultilinePretty(t *testing.T) {
	m := doorSpec()
	m.Extended = append(m.Extended, spec.Field{
		Name: "tags", Type: "map[string]int", Default: `map[string]int{"a": 1}`,
	})
	defaults := Defaults{}
	defaults.Set(ExtendedKey("tags"), map[string]int{"a": 1, "b": 2})

	out := Dotfile(m, PrettyDefaults, WithPrettyDefaults(defaults))
	assert.Contains(t, out, `tags : map[string]int = (map[string]int) (len=2) {`+
		br+`  (string) (len=1) &#34;a&#34;: (int) 1,`+br)
}

func TestDotfileEscaping(t *testing.T) {
	m := doorSpec()
	m.States[1].Fields = []spec.Field{
		{Name: "ch", Type: "<-chan int"},
		{Name: "name", Type: "string", Default: `"a&b"`},
	}
	m.Events[2].Action = "if 1 < 2 {\n\tprintln(\"x\")\n}"

	out := Dotfile(m, ShowDefaults)
	assert.Contains(t, out, "ch : &lt;-chan int = *new(&lt;-chan int)")
	assert.Contains(t, out, "name : string = &#34;a&amp;b&#34;")
	assert.Contains(t, out, "if 1 &lt; 2 {"+br+"\tprintln(&#34;x&#34;)"+br+"}"+br)
}

func TestDotfileUniversal(t *testing.T) {
	m := universalSpec()
	require.NoError(t, spec.Validate(m))
	out := Dotfile(m, ShowDefaults)

	assert.Contains(t, out, `"@any" [shape=circle, width=0.3, label="*"];`)
	for _, s := range []string{"R", "S", "T"} {
		assert.Contains(t, out,
			`"`+s+`" -> "@any" [style=dashed, arrowhead=none];`)
	}
	assert.Contains(t, out, `"@any" -> "R" [label=<<I>ToR</I>>];`)
	assert.Contains(t, out, `"@any" -> "T" [label=<<I>ToT</I>>];`)
	assert.Contains(t, out, `"T" -> "S" [label=<<I>ToS</I>>];`)
	assert.Contains(t, out, `"@initial" -> "S";`)
	assert.Contains(t, out, `"T" -> "@terminal";`)
	// a single wildcard node
	assert.Equal(t, 1, strings.Count(out, "\t\"@any\" [shape="))
}

func TestDotfileNoUniversal(t *testing.T) {
	out := Dotfile(doorSpec(), ShowDefaults)

	assert.NotContains(t, out, graph.MarkerAny)
	assert.NotContains(t, out, graph.MarkerTerminal)
}

func TestDotfileParams(t *testing.T) {
	m := &spec.Machine{
		Name:   "Params",
		States: []spec.State{{Name: "T", Initial: true, Fields: []spec.Field{{Name: "sum", Type: "uint64", Default: "0"}}}},
		Events: []spec.Event{{
			Name: "Foo", Source: "T", Scope: []string{"sum"},
			Params: []spec.Field{
				{Name: "add", Type: "uint64"},
				{Name: "mul", Type: "uint64", Default: "1"},
			},
			Action: "*sum += add * mul",
		}},
	}
	require.NoError(t, spec.Validate(m))

	out := Dotfile(m, ShowDefaults)
	assert.Contains(t, out, "<I>Foo</I>(add : uint64, mul : uint64 = 1)"+br+
		"{ sum } =&gt;"+br+"*sum += add * mul"+br)

	out = Dotfile(m, HideDefaults)
	assert.Contains(t, out, "<I>Foo</I>(add : uint64, mul : uint64)")
}

func TestDotfileGeneric(t *testing.T) {
	m := doorSpec()
	m.TypeParams = []spec.TypeParam{{Name: "X", Constraint: "constraints.Float"}}
	m.Extended = []spec.Field{{Name: "x", Type: "X"}}
	m.NoDefault = true
	m.Events[1].Action = ""

	out := Dotfile(m, ShowDefaults, WithTypeArgs("float64"))
	assert.Contains(t, out, "<B>Door</B>[X constraints.Float]")
	assert.Contains(t, out, "X = float64")
	// required fields have no default
	assert.Contains(t, out, "x : X</TD>")
}

func TestDotfileEntryExit(t *testing.T) {
	m := doorSpec()
	m.States[1].Entry = "*openCount += 10"
	m.States[1].Exit = "println(*openCount)"

	out := Dotfile(m, HideDefaults)
	assert.Contains(t, out, "<HR/><TR><TD ALIGN=\"LEFT\"><I>entry</I>"+br+
		"*openCount += 10</TD></TR><TR><TD ALIGN=\"LEFT\"><I>exit</I>"+br+
		"println(*openCount)</TD></TR>")
}

var (
	reNode  = regexp.MustCompile(`(?m)^\t"([^"@][^"]*)" \[label=`)
	reEvent = regexp.MustCompile(`\[label=<<I>([^<]+)</I>`)
)

// TestDotfileAgreement checks that nodes match states and edge labels match
// events, for every example definition.
func TestDotfileAgreement(t *testing.T) {
	for _, m := range []*spec.Machine{doorSpec(), universalSpec()} {
		for _, mode := range []Mode{ShowDefaults, HideDefaults, PrettyDefaults} {
			out := Dotfile(m, mode)

			var nodes, events []string
			for _, match := range reNode.FindAllStringSubmatch(out, -1) {
				nodes = append(nodes, match[1])
			}
			for _, match := range reEvent.FindAllStringSubmatch(out, -1) {
				events = append(events, match[1])
			}
			slices.Sort(nodes)
			slices.Sort(events)

			states := m.StateNames()
			slices.Sort(states)
			eventNames := m.EventNames()
			slices.Sort(eventNames)

			assert.Equal(t, states, nodes, "%s %s", m.Name, mode)
			assert.Equal(t, eventNames, events, "%s %s", m.Name, mode)
		}
	}
}

func TestMermaid(t *testing.T) {
	out := Mermaid(doorSpec())

	assert.True(t, strings.HasPrefix(out, "---\ntitle: Door\n---\nstateDiagram-v2\n"))
	assert.Contains(t, out, "\t[*] --> Closed\n")
	assert.Contains(t, out, "\tnote right of Closed\n\t\tknockCount : uint64\n"+
		"\tend note\n")
	assert.Contains(t, out, "\tClosed --> Closed : Knock\n")
	assert.Contains(t, out, "\tClosed --> Opened : Open\n")
	assert.Contains(t, out, "\tOpened --> Closed : Close\n")
	assert.NotContains(t, out, "--> [*]")
}

func TestMermaidUniversal(t *testing.T) {
	out := Mermaid(universalSpec())

	assert.Equal(t, 1, strings.Count(out, "state \"*\" as __any\n"))
	assert.Contains(t, out, "\tclass __any wildcard\n")
	for _, s := range []string{"R", "S", "T"} {
		assert.Contains(t, out, "\t"+s+" --> __any\n")
	}
	assert.Contains(t, out, "\t__any --> R : ToR\n")
	assert.Contains(t, out, "\t__any --> T : ToT\n")
	assert.Contains(t, out, "\tT --> S : ToS\n")
	assert.Contains(t, out, "\tT --> [*]\n")
}

func TestMermaidAnyID(t *testing.T) {
	m := universalSpec()
	m.States = append(m.States, spec.State{Name: "__any"})
	require.NoError(t, spec.Validate(m))
	out := Mermaid(m)

	assert.Contains(t, out, "state \"*\" as __any_\n")
	assert.Contains(t, out, "\t__any --> __any_\n")
	assert.Contains(t, out, "\t__any_ --> T : ToT\n")
}

func TestMermaidEscaping(t *testing.T) {
	m := doorSpec()
	m.States[1].Fields = []spec.Field{{Name: "out", Type: "chan<- int"}}
	require.NoError(t, spec.Validate(m))

	assert.Contains(t, Mermaid(m), "\t\tout : chan#lt;- int\n")
	assert.Equal(t, "a #35;#59; #quot;b#quot; #lt;c#gt; d",
		mermaidEsc.Replace("a #; \"b\" <c>\nd"))
}

func TestParseMode(t *testing.T) {
	for _, mode := range []Mode{ShowDefaults, HideDefaults, PrettyDefaults} {
		parsed, err := ParseMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseMode("loud")
	assert.Error(t, err)
	assert.Equal(t, ShowDefaults, DefaultMode)
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "(uint64) 5", Pretty(uint64(5)))
	assert.Equal(t, `(string) (len=2) "ab"`, Pretty("ab"))
}
