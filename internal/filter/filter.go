// Package filter selects catalog blocks with an expr-lang expression.
package filter

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"blockscan.ai/internal/catalogs"
)

// Env is the expression environment for one block.
type Env struct {
	ID         string
	LegacyID   int
	Properties []string
	States     int
}

func EnvFor(d catalogs.BlockDef) Env {
	props := make([]string, 0, len(d.Properties))
	for _, p := range d.Properties {
		props = append(props, p.Name)
	}
	return Env{ID: d.ID, LegacyID: d.LegacyID, Properties: props, States: len(d.States)}
}

type Filter struct {
	expression string
	program    *exprvm.Program
}

// Compile builds a filter. An empty expression matches every block.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	f := &Filter{expression: expression}
	if expression == "" {
		return f, nil
	}
	program, err := exprlang.Compile(expression, exprlang.Env(Env{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", expression, err)
	}
	f.program = program
	return f, nil
}

func (f *Filter) String() string { return f.expression }

func (f *Filter) Match(d catalogs.BlockDef) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := exprlang.Run(f.program, EnvFor(d))
	if err != nil {
		return false, fmt.Errorf("filter %q on %s: %w", f.expression, d.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
