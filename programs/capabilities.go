package programs

import (
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type Capabilities struct {
	HasSetup bool `json:"has_setup"`
	HasLoop  bool `json:"has_loop"`
	HasMain  bool `json:"has_main"`
}

func (c Capabilities) String() string {
	var names []string
	if c.HasSetup {
		names = append(names, "setup")
	}
	if c.HasMain {
		names = append(names, "main")
	}
	if c.HasLoop {
		names = append(names, "loop")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// discover finds entry points without executing anything. It sees top-level defs, defs nested in
// top-level if/for/while blocks, and top-level assignments like `loop = make_loop()`.
// Init settles the answer against the globals the program actually defined.
func discover(f *syntax.File) (caps Capabilities, defs []string) {
	var walk func(stmts []syntax.Stmt)
	walk = func(stmts []syntax.Stmt) {
		for _, stmt := range stmts {
			switch stmt := stmt.(type) {
			case *syntax.DefStmt:
				defs = append(defs, stmt.Name.Name)
				caps.mark(stmt.Name.Name)
			case *syntax.AssignStmt:
				if ident, ok := stmt.LHS.(*syntax.Ident); ok && stmt.Op == syntax.EQ {
					caps.mark(ident.Name)
				}
			case *syntax.IfStmt:
				walk(stmt.True)
				walk(stmt.False)
			case *syntax.ForStmt:
				walk(stmt.Body)
			case *syntax.WhileStmt:
				walk(stmt.Body)
			}
		}
	}
	walk(f.Stmts)
	return
}

func (c *Capabilities) mark(name string) {
	switch name {
	case "setup":
		c.HasSetup = true
	case "loop":
		c.HasLoop = true
	case "main":
		c.HasMain = true
	}
}

// resolve reports the entry points that are callable in globals.
func resolve(globals starlark.StringDict) (caps Capabilities) {
	for _, name := range []string{"setup", "loop", "main"} {
		if _, ok := globals[name].(starlark.Callable); ok {
			caps.mark(name)
		}
	}
	return
}
