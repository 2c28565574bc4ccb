package cmds

import (
	"bytes"
	"strings"
	"testing"
)

func TestUsage(t *testing.T) {
	executor := NewExecutor()
	executor.Define("foo", Sub(map[string]*Command{
		"bar": Func(func() {
		}).Desc("BAR"),
		"baz": Sub(map[string]*Command{
			"qux": Func(func(string) {}).Desc("QUX").Args("name"),
		}).Desc("BAZ"),
	}).Desc("FOO").Alias("f"))

	buf := new(bytes.Buffer)
	executor.PrintUsage(buf)
	out := buf.String()
	for _, want := range []string{
		"foo (f)\tFOO",
		"  bar\tBAR",
		"    qux <name>\tQUX",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Count(out, "FOO") != 1 {
		t.Fatalf("got %q", out)
	}
}
