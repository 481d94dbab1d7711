package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/pancsta/machinegen/internal/utils"
	"github.com/pancsta/machinegen/pkg/spec"
)

// model is the template data of a single machine.
type model struct {
	Package string
	// Name is the Go name of the machine type.
	Name string
	// Machine is the name as defined.
	Machine string
	Self    string
	// TParams is the type param list of declarations, eg "[X cmp.Ordered]".
	TParams string
	// TArgs is the type arg list of instantiations, eg "[X]".
	TArgs      string
	TypeParams []spec.TypeParam
	Imports    []string
	Definition string
	NoDefault  bool

	States   []stateModel
	Events   []eventModel
	Extended []fieldModel

	Initial  string
	Terminal string
	// ExtBindings binds every extended field as a pointer, for hooks.
	ExtBindings string
	ExtDefaults bool
	// PrettyExt is true when PrettyDefaults needs the extended state.
	PrettyExt bool

	Action bool
	Entry  bool
	Exit   bool

	InitialAction    string
	TerminateSuccess string
	TerminateFailure string
}

type fieldModel struct {
	Name       string
	GoName     string
	Type       string
	Default    string
	HasDefault bool
	// Required fields have to be passed to NewExtendedState.
	Required bool
}

type stateModel struct {
	Name  string
	Const string
	Data  string
	// Bindings binds every local field as a pointer into data.
	Bindings string
	Fields   []fieldModel
	// Defaults is true when any of the fields has a default.
	Defaults bool
	Entry    string
	Exit     string
}

type eventModel struct {
	Name       string
	Const      string
	Type       string
	Transition string
	Params     []fieldModel
	// Bindings binds params by value and, for internal events, the scope as
	// pointers into data.
	Bindings string
	Action   string
	// Defaults is true when all the params have defaults.
	Defaults bool
}

func newModel(m *spec.Machine, pkg string) (*model, error) {
	def, err := spec.Marshal(m)
	if err != nil {
		return nil, err
	}

	data := &model{
		Package:    pkg,
		Name:       spec.GoName(m.Name),
		Machine:    m.Name,
		Self:       m.SelfName(),
		TypeParams: m.TypeParams,
		Imports:    imports(m.Imports, m.IsGeneric()),
		Definition: goString(string(def)),
		NoDefault:  m.NoDefault,
		Initial:    stateConst(m.InitialState().Name),

		InitialAction:    body(m.InitialAction),
		TerminateSuccess: body(m.TerminateSuccess),
		TerminateFailure: body(m.TerminateFailure),
	}
	if t := m.TerminalState(); t != nil {
		data.Terminal = stateConst(t.Name)
	}
	if m.IsGeneric() {
		data.TParams = "[" + strings.Join(lo.Map(m.TypeParams,
			func(p spec.TypeParam, _ int) string {
				return p.Name + " " + p.Bound()
			}), ", ") + "]"
		data.TArgs = "[" + strings.Join(lo.Map(m.TypeParams,
			func(p spec.TypeParam, _ int) string {
				return p.Name
			}), ", ") + "]"
	}

	// extended
	data.Extended = fields(m.Extended)
	for i, f := range data.Extended {
		data.Extended[i].Required = m.NoDefault && !f.HasDefault
	}
	data.ExtDefaults = lo.SomeBy(data.Extended, func(f fieldModel) bool {
		return f.HasDefault
	})
	data.ExtBindings = bindPointers("ext", data.Extended)
	data.PrettyExt = data.ExtDefaults

	// states
	for _, s := range m.States {
		st := stateModel{
			Name:   s.Name,
			Const:  stateConst(s.Name),
			Data:   dataType(s.Name),
			Fields: fields(s.Fields),
			Entry:  body(s.Entry),
			Exit:   body(s.Exit),
		}
		st.Bindings = bindPointers("data.(*"+st.Data+data.TArgs+")", st.Fields)
		data.Entry = data.Entry || s.Entry != ""
		data.Exit = data.Exit || s.Exit != ""
		st.Defaults = lo.SomeBy(st.Fields, func(f fieldModel) bool {
			return f.HasDefault
		})
		data.PrettyExt = data.PrettyExt || st.Defaults
		data.States = append(data.States, st)
	}

	// events
	for i := range m.Events {
		e := &m.Events[i]
		ev := eventModel{
			Name:       e.Name,
			Const:      eventConst(e.Name),
			Type:       eventType(e.Name),
			Transition: transition(e),
			Params:     fields(e.Params),
			Action:     body(e.Action),
			Defaults:   e.HasDefaultParams(),
		}
		ev.Bindings = bindValues("ev", ev.Params)
		if e.Kind() == spec.KindInternal && len(e.Scope) > 0 {
			src := m.State(e.Source)
			scope := lo.Filter(fields(src.Fields), func(f fieldModel, _ int) bool {
				return lo.Contains(e.Scope, f.Name)
			})
			ev.Bindings += bindPointers("data.(*"+dataType(src.Name)+data.TArgs+
				")", scope)
		}
		data.Action = data.Action || e.Action != ""
		data.Events = append(data.Events, ev)
	}

	return data, nil
}

func stateConst(name string) string {
	return "State" + spec.GoName(name)
}

func dataType(name string) string {
	return spec.GoName(name) + "Data"
}

func eventConst(name string) string {
	return "Event" + spec.GoName(name)
}

func eventType(name string) string {
	return spec.GoName(name) + "Event"
}

func transition(e *spec.Event) string {
	t := e.Transition()
	switch t.Kind {
	case spec.KindInternal:
		return fmt.Sprintf("am.Internal(%s)", stateConst(t.Source))
	case spec.KindExternal:
		return fmt.Sprintf("am.External(%s, %s)", stateConst(t.Source),
			stateConst(t.Target))
	case spec.KindUniversal:
		return fmt.Sprintf("am.Universal(%s)", stateConst(t.Target))
	}

	return "am.Transition[StateID]{}"
}

func fields(fs []spec.Field) []fieldModel {
	return lo.Map(fs, func(f spec.Field, _ int) fieldModel {
		return fieldModel{
			Name:       f.Name,
			GoName:     f.GoName(),
			Type:       f.Type,
			Default:    f.Default,
			HasDefault: f.HasDefault(),
		}
	})
}

// bindPointers returns statements binding each field of owner as a pointer.
func bindPointers(owner string, fs []fieldModel) string {
	var b strings.Builder
	for _, f := range fs {
		fmt.Fprintf(&b, "\t%s := &%s.%s\n\t_ = %s\n", f.Name, owner, f.GoName,
			f.Name)
	}

	return b.String()
}

// bindValues returns statements binding each field of owner by value.
func bindValues(owner string, fs []fieldModel) string {
	var b strings.Builder
	for _, f := range fs {
		fmt.Fprintf(&b, "\t%s := %s.%s\n\t_ = %s\n", f.Name, owner, f.GoName,
			f.Name)
	}

	return b.String()
}

// body indents an action body.
func body(code string) string {
	code = strings.Trim(code, "\n")
	if code == "" {
		return ""
	}

	return utils.Indent(code, "\t")
}

// goString returns a Go literal of txt, raw when possible.
func goString(txt string) string {
	if strings.Contains(txt, "`") || strings.Contains(txt, "\r") {
		return strconv.Quote(txt)
	}

	return "`" + txt + "`"
}

// imports renders import specs, skipping ones always imported.
func imports(paths []string, generic bool) []string {
	var ret []string
	for _, p := range paths {
		alias, path, ok := strings.Cut(strings.TrimSpace(p), " ")
		if !ok {
			alias, path = "", alias
		}
		path = strings.Trim(strings.TrimSpace(path), `"`)
		if alias == "" && (path == "fmt" || path == "reflect" && generic) {
			continue
		}

		imp := strconv.Quote(path)
		if alias != "" {
			imp = alias + " " + imp
		}
		ret = lo.Uniq(append(ret, imp))
	}

	return ret
}
