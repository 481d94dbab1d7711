package spec

import (
	"errors"
	"fmt"
	"go/token"
	"slices"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrUnknownSource indicates an event source naming no state.
	ErrUnknownSource = errors.New("unknown source state")
	// ErrUnknownTarget indicates an event target naming no state.
	ErrUnknownTarget = errors.New("unknown target state")
	// ErrNoInitial indicates a machine without an initial state.
	ErrNoInitial = errors.New("no initial state")
	// ErrMultipleInitial indicates more than one initial state.
	ErrMultipleInitial = errors.New("multiple initial states")
	// ErrMultipleTerminal indicates more than one terminal state.
	ErrMultipleTerminal = errors.New("multiple terminal states")
	// ErrUniversalNoTarget indicates a wildcard source without a target.
	ErrUniversalNoTarget = errors.New("universal transition without target")
	// ErrFieldOutOfScope indicates a reference to a local field which isn't
	// bound for the given action.
	ErrFieldOutOfScope = errors.New("field out of scope")

	// ErrNoStates indicates an empty machine.
	ErrNoStates = errors.New("no states")
	// ErrDuplicateState indicates a repeated state name.
	ErrDuplicateState = errors.New("duplicate state")
	// ErrDuplicateEvent indicates a repeated event name.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrDuplicateField indicates a name bound twice in the same scope.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrInvalidName indicates a name which can't be used as a Go
	// identifier.
	ErrInvalidName = errors.New("invalid name")
	// ErrMissingType indicates a field without a type.
	ErrMissingType = errors.New("missing type")
	// ErrActionSyntax indicates an action body or default expression which
	// doesn't parse.
	ErrActionSyntax = errors.New("action syntax error")
	// ErrTerminalAction indicates terminate actions without a terminal state.
	ErrTerminalAction = errors.New("terminate action without terminal state")
	// ErrSelfReference indicates a self name clashing with another name.
	ErrSelfReference = errors.New("invalid self reference")
)

// SpecError is a single definition issue. Err is one of the sentinel errors
// of this package.
type SpecError struct {
	Err  error
	Path string
	Msg  string
}

func (e *SpecError) Error() string {
	if e.Msg == "" {
		return e.Path + ": " + e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error() + ": " + e.Msg
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// Errors unpacks all SpecErrors from an error returned by Validate, also
// when wrapped.
func Errors(err error) []*SpecError {
	switch e := err.(type) {

	case nil:
		return nil

	case *SpecError:
		return []*SpecError{e}

	case interface{ Unwrap() []error }:
		var ret []*SpecError
		for _, inner := range e.Unwrap() {
			ret = append(ret, Errors(inner)...)
		}
		return ret

	case interface{ Unwrap() error }:
		return Errors(e.Unwrap())
	}

	return nil
}

type validator struct {
	m    *Machine
	errs []error
	// state name -> local field names
	locals map[string][]string
	// all local field names, for out-of-scope detection
	allLocals []string
}

func (v *validator) add(err error, path, msg string, args ...any) {
	v.errs = append(v.errs, &SpecError{
		Err:  err,
		Path: path,
		Msg:  fmt.Sprintf(msg, args...),
	})
}

// Validate checks the definition for consistency. It returns nil, or all the
// issues joined with errors.Join, each one a *SpecError. Validate doesn't
// modify the definition.
func Validate(m *Machine) error {
	v := &validator{
		m:      m,
		locals: map[string][]string{},
	}
	v.machine()
	v.states()
	v.extended()
	v.events()
	v.scopes()

	return errors.Join(v.errs...)
}

func (v *validator) name(path, name string) bool {
	switch {
	case name == "":
		v.add(ErrInvalidName, path, "empty")
	case name == Any:
		v.add(ErrInvalidName, path, "%q is reserved for wildcards", Any)
	case !isIdent(name) || token.IsKeyword(name):
		v.add(ErrInvalidName, path, "%q is not a Go identifier", name)
	default:
		return true
	}

	return false
}

func (v *validator) fields(path string, fields []Field) {
	var seen []string
	for i, f := range fields {
		fPath := fmt.Sprintf("%s[%d]", path, i)
		if v.name(fPath+".name", f.Name) {
			switch {
			case slices.Contains(reserved, f.Name):
				v.add(ErrInvalidName, fPath+".name", "%q is reserved", f.Name)
			case slices.ContainsFunc(v.m.Imports, func(imp string) bool {
				return importName(imp) == f.Name
			}):
				v.add(ErrInvalidName, fPath+".name", "%q is an imported package",
					f.Name)
			case slices.Contains(seen, f.GoName()):
				v.add(ErrDuplicateField, fPath+".name", "%s", f.Name)
			case slices.ContainsFunc(v.m.TypeParams, func(p TypeParam) bool {
				return p.Name == f.Name
			}):
				v.add(ErrDuplicateField, fPath+".name", "%q is a type param",
					f.Name)
			}
			seen = append(seen, f.GoName())
		}
		if strings.TrimSpace(f.Type) == "" {
			v.add(ErrMissingType, fPath+".type", "%s", f.Name)
		}
	}
}

func (v *validator) machine() {
	m := v.m
	v.name("name", m.Name)
	if !v.name("self", m.SelfName()) {
		return
	}
	switch {
	case slices.Contains(m.ExtendedNames(), m.SelfName()):
		v.add(ErrSelfReference, "self", "%q is also an extended field",
			m.SelfName())
	case slices.Contains(reserved, m.SelfName()):
		v.add(ErrSelfReference, "self", "%q is reserved", m.SelfName())
	}
	for i, p := range m.TypeParams {
		v.name(fmt.Sprintf("typeParams[%d].name", i), p.Name)
	}
}

func (v *validator) states() {
	m := v.m
	if len(m.States) == 0 {
		v.add(ErrNoStates, "states", "")
		return
	}

	var seen, initial, terminal []string
	for i, s := range m.States {
		path := fmt.Sprintf("states[%d]", i)
		if v.name(path+".name", s.Name) {
			goName := GoName(s.Name)
			if slices.Contains(seen, goName) {
				v.add(ErrDuplicateState, path+".name", "%s", s.Name)
			}
			seen = append(seen, goName)
		}
		v.fields(path+".fields", s.Fields)
		v.locals[s.Name] = s.FieldNames()
		v.allLocals = append(v.allLocals, s.FieldNames()...)

		for _, name := range s.FieldNames() {
			if slices.Contains(m.ExtendedNames(), name) {
				v.add(ErrDuplicateField, path+".fields",
					"%q is also an extended field", name)
			}
		}
		if s.Initial {
			initial = append(initial, s.Name)
		}
		if s.Terminal {
			terminal = append(terminal, s.Name)
		}
	}
	v.allLocals = lo.Uniq(v.allLocals)

	switch {
	case len(initial) == 0:
		v.add(ErrNoInitial, "states", "")
	case len(initial) > 1:
		v.add(ErrMultipleInitial, "states", "%s",
			strings.Join(initial, ", "))
	}
	if len(terminal) > 1 {
		v.add(ErrMultipleTerminal, "states", "%s",
			strings.Join(terminal, ", "))
	}
	if len(terminal) == 0 &&
		(m.TerminateSuccess != "" || m.TerminateFailure != "") {
		v.add(ErrTerminalAction, "terminateSuccess", "")
	}
}

func (v *validator) extended() {
	v.fields("extended", v.m.Extended)
}

func (v *validator) events() {
	m := v.m
	var seen []string
	for i := range m.Events {
		e := &m.Events[i]
		path := fmt.Sprintf("events[%d]", i)
		if v.name(path+".name", e.Name) {
			goName := GoName(e.Name)
			if slices.Contains(seen, goName) {
				v.add(ErrDuplicateEvent, path+".name", "%s", e.Name)
			}
			seen = append(seen, goName)
		}
		v.fields(path+".params", e.Params)

		// source
		src := m.State(e.Source)
		if e.Source != Any && src == nil {
			v.add(ErrUnknownSource, path+".source", "%q", e.Source)
		}

		// target
		if e.Target != "" && m.State(e.Target) == nil {
			v.add(ErrUnknownTarget, path+".target", "%q", e.Target)
		}

		switch e.Kind() {
		case KindInvalid:
			v.add(ErrUniversalNoTarget, path+".target", "%s", e.Name)

		case KindUniversal:
			if len(e.Scope) > 0 {
				v.add(ErrFieldOutOfScope, path+".scope",
					"universal transitions have no local fields in scope")
			}

		default:
			if src == nil {
				break
			}
			for j, name := range e.Scope {
				if !slices.Contains(v.locals[src.Name], name) {
					v.add(ErrFieldOutOfScope, fmt.Sprintf("%s.scope[%d]", path, j),
						"%q is not a field of %s", name, src.Name)
				}
			}
		}

		// params shadowing other bound names
		for _, p := range e.Params {
			if slices.Contains(e.Scope, p.Name) ||
				slices.Contains(m.ExtendedNames(), p.Name) {
				v.add(ErrDuplicateField, path+".params",
					"%q is already bound", p.Name)
			}
		}
	}
}

// scopes checks every action body and default expression for syntax and
// references to unbound local fields.
func (v *validator) scopes() {
	m := v.m
	ext := m.ExtendedNames()
	var scopes []actionScope

	for i, f := range m.Extended {
		if f.HasDefault() {
			scopes = append(scopes, actionScope{
				path: fmt.Sprintf("extended[%d].default", i),
				what: "default", code: f.Default, expr: true,
			})
		}
	}
	for i, s := range m.States {
		path := fmt.Sprintf("states[%d]", i)
		for j, f := range s.Fields {
			if f.HasDefault() {
				scopes = append(scopes, actionScope{
					path: fmt.Sprintf("%s.fields[%d].default", path, j),
					what: "default", code: f.Default, expr: true, bound: ext,
				})
			}
		}
		bound := slices.Concat(s.FieldNames(), ext)
		if s.Entry != "" {
			scopes = append(scopes, actionScope{
				path: path + ".entry", what: "entry", code: s.Entry,
				bound: bound,
			})
		}
		if s.Exit != "" {
			scopes = append(scopes, actionScope{
				path: path + ".exit", what: "exit", code: s.Exit, bound: bound,
			})
		}
	}
	for i, e := range m.Events {
		path := fmt.Sprintf("events[%d]", i)
		params := lo.Map(e.Params, func(f Field, _ int) string {
			return f.Name
		})
		for j, p := range e.Params {
			if p.HasDefault() {
				scopes = append(scopes, actionScope{
					path: fmt.Sprintf("%s.params[%d].default", path, j),
					what: "default", code: p.Default, expr: true,
				})
			}
		}
		if e.Action == "" {
			continue
		}
		bound := slices.Concat(ext, params)
		if e.Kind() == KindInternal {
			bound = append(bound, e.Scope...)
		}
		scopes = append(scopes, actionScope{
			path: path + ".action", what: "action", code: e.Action, bound: bound,
		})
	}
	self := []string{m.SelfName()}
	for path, code := range map[string]string{
		"initialAction":    m.InitialAction,
		"terminateSuccess": m.TerminateSuccess,
		"terminateFailure": m.TerminateFailure,
	} {
		if code != "" {
			scopes = append(scopes, actionScope{
				path: path, what: "action", code: code, bound: self,
			})
		}
	}

	// sort for stable output, map iteration above
	slices.SortStableFunc(scopes, func(a, b actionScope) int {
		return strings.Compare(a.path, b.path)
	})

	candidates := slices.Concat(v.allLocals, ext)
	for _, s := range scopes {
		v.scope(s, candidates)
	}
}

func (v *validator) scope(s actionScope, candidates []string) {
	parse := parseAction
	if s.expr {
		parse = parseExpr
	}
	node, err := parse(s.code)
	if err != nil {
		v.add(ErrActionSyntax, s.path, "%s", err)
		return
	}
	for _, name := range freeIdents(node) {
		if slices.Contains(candidates, name) && !slices.Contains(s.bound, name) {
			v.add(ErrFieldOutOfScope, s.path, "%s references %q", s.what, name)
		}
	}
}

// GoName returns the exported Go form of a state or event name.
func GoName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
