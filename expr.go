package xlbind

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ruleEnv is the environment a column rule sees.
type ruleEnv struct {
	Value  any    `expr:"value"` // coerced field value, nil when empty
	Text   string `expr:"text"`  // trimmed display text
	Row    int    `expr:"row"`   // 1-based spreadsheet row number
	Header string `expr:"header"`
}

// ruleEvaluator compiles and runs column rules backed by expr-lang/expr.
type ruleEvaluator struct {
	cache sync.Map // expression string → compiled *vm.Program
}

func newRuleEvaluator() *ruleEvaluator {
	return &ruleEvaluator{}
}

func (e *ruleEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.Env(ruleEnv{}), expr.AsBool())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

func (e *ruleEvaluator) run(program *vm.Program, env ruleEnv) (bool, error) {
	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule evaluated to %T, expected bool", result)
	}
	return b, nil
}

// ruleValidator is a CellValidator running one compiled rule.
type ruleValidator struct {
	eval    *ruleEvaluator
	program *vm.Program
	source  string
	message string
}

func (r *ruleValidator) Validate(ctx *CellContext) string {
	if ctx.Value == "" {
		return ""
	}
	ok, err := r.eval.run(r.program, ruleEnv{
		Value:  ctx.Coerced(),
		Text:   ctx.Value,
		Row:    sheetRowNumber(ctx.Row),
		Header: ctx.Column.HeaderTitle,
	})
	if err == nil && ok {
		return ""
	}
	if r.message != "" {
		return ctx.Messages.Get(r.message, ctx.Value)
	}
	return ctx.Messages.Get("rule.validation.error", r.source)
}
