// Package generator turns validated machine definitions into Go packages
// driven by pkg/machine.
package generator

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/stoewer/go-strcase"

	"github.com/pancsta/machinegen/pkg/spec"
)

//go:embed templates/machine.go.tmpl
var machineTmpl string

var tmpl = template.Must(template.New("machine").Parse(machineTmpl))

// FileSuffix is the suffix of generated files.
const FileSuffix = "_mg.go"

// ErrNameClash indicates a machine name which clashes with a generated
// identifier.
var ErrNameClash = errors.New("name clashes with a generated identifier")

// generated are package-level identifiers of generated files.
var generated = []string{
	"StateID", "StateIDs", "InitialState", "TerminalState", "ExtendedState",
	"NewExtendedState", "InitialExtendedState", "EventID", "EventIDs", "Event",
	"NewEvent", "New", "Initial", "Definition", "Dotfile", "Mermaid",
	"PrettyDefaults",
}

// Methods of generated state data and event structs, which fields can't use.
var (
	dataMethods  = []string{"StateID"}
	eventMethods = []string{"ID", "Transition", "String"}
)

// clashes checks all the package-level identifiers of the generated file for
// duplicates. Fields can't use struct method names, and they can't shadow
// package-level identifiers, as they're bound as locals in hooks.
func clashes(m *spec.Machine) error {
	seen := slices.Clone(generated)
	add := func(what, name, ident string) error {
		if slices.Contains(seen, ident) {
			return fmt.Errorf("%w: %s %s (%s)", ErrNameClash, what, name, ident)
		}
		seen = append(seen, ident)
		return nil
	}

	if err := add("machine", m.Name, spec.GoName(m.Name)); err != nil {
		return err
	}
	for _, s := range m.States {
		if err := add("state", s.Name, stateConst(s.Name)); err != nil {
			return err
		}
		if err := add("state", s.Name, dataType(s.Name)); err != nil {
			return err
		}
	}
	for _, e := range m.Events {
		if err := add("event", e.Name, eventConst(e.Name)); err != nil {
			return err
		}
		if err := add("event", e.Name, eventType(e.Name)); err != nil {
			return err
		}
		if err := add("event", e.Name, "New"+eventType(e.Name)); err != nil {
			return err
		}
	}

	field := func(owner string, f spec.Field, methods []string) error {
		if slices.Contains(methods, f.GoName()) {
			return fmt.Errorf("%w: field %s of %s (method %s)", ErrNameClash,
				f.Name, owner, f.GoName())
		}
		if slices.Contains(seen, f.Name) {
			return fmt.Errorf("%w: field %s of %s shadows %s", ErrNameClash,
				f.Name, owner, f.Name)
		}
		return nil
	}
	for _, f := range m.Extended {
		if err := field("ExtendedState", f, nil); err != nil {
			return err
		}
	}
	for _, s := range m.States {
		for _, f := range s.Fields {
			if err := field(s.Name, f, dataMethods); err != nil {
				return err
			}
		}
	}
	for _, e := range m.Events {
		for _, f := range e.Params {
			if err := field(e.Name, f, eventMethods); err != nil {
				return err
			}
		}
	}

	return nil
}

// Opts configures a Generator.
type Opts struct {
	// Package name of the generated file. Default: lowercase machine name.
	Package string
}

// Generator renders a single machine definition as Go code.
type Generator struct {
	Machine *spec.Machine
	Package string
}

// New creates a generator for m. Invalid definitions are rejected with the
// errors of spec.Validate.
func New(m *spec.Machine, opts *Opts) (*Generator, error) {
	if err := spec.Validate(m); err != nil {
		return nil, err
	}
	if err := clashes(m); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Opts{}
	}

	g := &Generator{
		Machine: m,
		Package: opts.Package,
	}
	if g.Package == "" {
		g.Package = PackageName(m.Name)
	}

	return g, nil
}

// PackageName returns the default package name for a machine.
func PackageName(name string) string {
	return strings.ReplaceAll(strcase.SnakeCase(name), "_", "")
}

// Filename returns the default file name for a machine.
func Filename(name string) string {
	return strcase.SnakeCase(name) + FileSuffix
}

// Output renders the gofmt-ed Go source.
func (g *Generator) Output() ([]byte, error) {
	data, err := newModel(g.Machine, g.Package)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", g.Machine.Name, err)
	}

	return out, nil
}

// Generate loads a definition file and writes its Go code next to it, or to
// out when not empty. Existing files are overwritten only with force.
// Returns the path of the written file.
func Generate(path, out string, opts *Opts, force bool) (string, error) {
	m, err := spec.Load(path)
	if err != nil {
		return "", err
	}
	g, err := New(m, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	code, err := g.Output()
	if err != nil {
		return "", err
	}

	if out == "" {
		out = filepath.Join(filepath.Dir(path), Filename(m.Name))
	}
	if _, err := os.Stat(out); err == nil && !force {
		return "", fmt.Errorf("file %s already exists, delete it or use --force",
			out)
	}

	return out, os.WriteFile(out, code, 0o666)
}
