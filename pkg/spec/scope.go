package spec

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"slices"
	"strings"
)

// reserved are identifiers used by generated code around action bodies:
// imports of generated files, hook locals and predeclared names called next
// to field bindings.
var reserved = []string{
	"am", "fmt", "reflect", "spec", "visualizer",
	"ext", "data", "ev", "id", "mach", "ok", "defaults",
	"nil", "panic",
}

var reMajorVersion = regexp.MustCompile(`^v[0-9]+$`)

// importName returns the name an import is usually referenced by: the alias,
// or the last path element without a major version.
func importName(imp string) string {
	imp = strings.TrimSpace(imp)
	if alias, _, ok := strings.Cut(imp, " "); ok {
		return alias
	}
	p := strings.Trim(imp, `"`)
	name := path.Base(p)
	if reMajorVersion.MatchString(name) && path.Dir(p) != "." {
		name = path.Base(path.Dir(p))
	}
	name, _, _ = strings.Cut(name, ".")

	return name
}

func isIdent(name string) bool {
	return token.IsIdentifier(name) && name != "_"
}

// parseAction parses an action body as statements.
func parseAction(body string) (ast.Node, error) {
	return parser.ParseExpr("func() {\n" + body + "\n}")
}

// parseExpr parses a default value expression.
func parseExpr(expr string) (ast.Node, error) {
	return parser.ParseExpr(expr)
}

// freeIdents returns identifiers referenced by the node which aren't declared
// inside of it. Selector names and composite literal keys are skipped.
// Shadowing order is ignored, so a name declared anywhere in the node is
// treated as local.
func freeIdents(node ast.Node) []string {
	declared := map[string]struct{}{}
	var used []string

	declare := func(exprs ...ast.Expr) {
		for _, e := range exprs {
			if id, ok := e.(*ast.Ident); ok {
				declared[id.Name] = struct{}{}
			}
		}
	}
	declareFields := func(list *ast.FieldList) {
		if list == nil {
			return
		}
		for _, f := range list.List {
			for _, n := range f.Names {
				declared[n.Name] = struct{}{}
			}
		}
	}

	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch n := n.(type) {

		case *ast.SelectorExpr:
			ast.Inspect(n.X, visit)
			return false

		case *ast.KeyValueExpr:
			if _, ok := n.Key.(*ast.Ident); !ok {
				ast.Inspect(n.Key, visit)
			}
			ast.Inspect(n.Value, visit)
			return false

		case *ast.AssignStmt:
			if n.Tok == token.DEFINE {
				declare(n.Lhs...)
			}

		case *ast.RangeStmt:
			if n.Tok == token.DEFINE {
				declare(n.Key, n.Value)
			}

		case *ast.ValueSpec:
			for _, name := range n.Names {
				declared[name.Name] = struct{}{}
			}

		case *ast.FuncType:
			declareFields(n.Params)
			declareFields(n.Results)

		case *ast.LabeledStmt:
			ast.Inspect(n.Stmt, visit)
			return false

		case *ast.BranchStmt:
			return false

		case *ast.Field:
			// struct and func fields, types only
			if n.Type != nil {
				ast.Inspect(n.Type, visit)
			}
			return false

		case *ast.Ident:
			used = append(used, n.Name)
		}

		return true
	}
	ast.Inspect(node, visit)

	var ret []string
	for _, name := range used {
		if _, ok := declared[name]; ok {
			continue
		}
		if !slices.Contains(ret, name) {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)

	return ret
}

// actionScope describes names available to a single action body.
type actionScope struct {
	path string
	// what the code is: "action", "entry", "default", ...
	what  string
	code  string
	expr  bool
	bound []string
}
