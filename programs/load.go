package programs

import (
	"fmt"
	"os"
	"slices"

	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/syncs"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type Source struct {
	Name    string
	Content []byte
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

func LoadFile(path string) (*Program, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.New(faults.LoadError, wrap(err))
	}
	return Load(Source{
		Name:    path,
		Content: content,
	})
}

// Load parses and compiles a control program and discovers its entry points without running any of it.
func Load(src Source) (*Program, error) {
	f, err := fileOptions.Parse(src.Name, src.Content, 0)
	if err != nil {
		return nil, faults.New(faults.LoadError, err)
	}

	for _, stmt := range f.Stmts {
		if load, ok := stmt.(*syntax.LoadStmt); ok {
			return nil, faults.New(faults.LoadError, fmt.Errorf(
				"%s: load(%s) is not available to control programs",
				load.Load.String(), load.Module.Value,
			))
		}
	}

	caps, defs := discover(f)

	prog, err := starlark.FileProgram(f, isPredeclared)
	if err != nil {
		return nil, faults.New(faults.LoadError, err)
	}

	return &Program{
		name:  src.Name,
		prog:  prog,
		caps:  caps,
		defs:  defs,
		calls: syncs.NewSemaphore(1),
	}, nil
}

func isPredeclared(name string) bool {
	return slices.Contains(predeclaredNames, name)
}
