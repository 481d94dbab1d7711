// Package visualizer renders machine definitions as diagrams: Graphviz DOT
// (HTML labels) and Mermaid state diagrams. Rendering is a pure function of a
// validated *spec.Machine.
package visualizer

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/pancsta/machinegen/pkg/spec"
)

// Mode controls how field defaults are rendered.
type Mode int

const (
	// ShowDefaults renders default expressions as written.
	ShowDefaults Mode = iota
	// HideDefaults renders field names and types only.
	HideDefaults
	// PrettyDefaults renders evaluated and pretty-printed defaults, supplied
	// via WithPrettyDefaults. Falls back to ShowDefaults for missing values.
	PrettyDefaults
)

// DefaultMode is the mode of generated Dotfile() funcs without args.
const DefaultMode = ShowDefaults

func (m Mode) String() string {
	switch m {
	case HideDefaults:
		return "hide"
	case PrettyDefaults:
		return "pretty"
	}
	return "show"
}

// ParseMode parses a Mode from its String form.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "show", "":
		return ShowDefaults, nil
	case "hide":
		return HideDefaults, nil
	case "pretty":
		return PrettyDefaults, nil
	}
	return ShowDefaults, fmt.Errorf("unknown mode %q", s)
}

// DefaultKey addresses a single field with a default.
type DefaultKey struct {
	// Owner is "extended", "state:Name" or "event:Name".
	Owner string
	Field string
}

// ExtendedKey returns the key of an extended field.
func ExtendedKey(field string) DefaultKey {
	return DefaultKey{"extended", field}
}

// StateKey returns the key of a state's local field.
func StateKey(state, field string) DefaultKey {
	return DefaultKey{"state:" + state, field}
}

// EventKey returns the key of an event param.
func EventKey(event, param string) DefaultKey {
	return DefaultKey{"event:" + event, param}
}

// Defaults are pretty-printed default values.
type Defaults map[DefaultKey]string

// Set pretty-prints v as the default of key.
func (d Defaults) Set(key DefaultKey, v any) {
	d[key] = Pretty(v)
}

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Pretty returns a multi-line, typed representation of v.
func Pretty(v any) string {
	return strings.TrimRight(spewConfig.Sdump(v), "\n")
}

// Opt is a rendering option.
type Opt func(v *Visualizer)

// WithPrettyDefaults provides values for PrettyDefaults.
func WithPrettyDefaults(defaults Defaults) Opt {
	return func(v *Visualizer) {
		v.defaults = defaults
	}
}

// WithTypeArgs provides type arguments of a generic machine, in the order of
// its type params.
func WithTypeArgs(args ...string) Opt {
	return func(v *Visualizer) {
		v.typeArgs = args
	}
}

// Visualizer renders a single machine definition.
type Visualizer struct {
	Machine *spec.Machine
	Mode    Mode

	defaults Defaults
	typeArgs []string
	buf      strings.Builder
}

// New creates a visualizer for a validated definition.
func New(m *spec.Machine, mode Mode, opts ...Opt) *Visualizer {
	v := &Visualizer{
		Machine: m,
		Mode:    mode,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Dotfile renders m as Graphviz DOT.
func Dotfile(m *spec.Machine, mode Mode, opts ...Opt) string {
	return New(m, mode, opts...).Dot()
}

// Mermaid renders m as a Mermaid state diagram.
func Mermaid(m *spec.Machine, opts ...Opt) string {
	return New(m, HideDefaults, opts...).Mermaid()
}

// fieldText returns a single field line according to the mode. Required
// fields have no value to show.
func (v *Visualizer) fieldText(
	key DefaultKey, f spec.Field, required bool,
) string {
	line := f.Name + " : " + f.Type
	if v.Mode == HideDefaults {
		return line
	}

	if v.Mode == PrettyDefaults {
		if pretty, ok := v.defaults[key]; ok {
			return line + " = " + pretty
		}
	}
	switch {
	case f.HasDefault():
		return line + " = " + f.Default
	case required:
		return line
	}

	return line + " = *new(" + f.Type + ")"
}
