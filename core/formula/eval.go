package formula

import (
	"math"
)

// env is the per-call evaluation state
type env struct {
	ctx    Context
	tables *Tables
}

// Eval evaluates the program against ctx with the given builtin tables (nil
// means empty tables). Names outside the context set or builtin table are
// rejected before evaluation, even in branches that would not be taken.
// The result is always a finite number or an error.
func (p *Program) Eval(ctx Context, tables *Tables) (float64, error) {
	if err := p.Check(); err != nil {
		return 0, err
	}
	if tables == nil {
		tables = &Tables{}
	}
	e := &env{ctx: ctx, tables: tables}
	v, err := e.eval(p.root)
	if err != nil {
		return 0, err
	}
	if v.kind != KindNumber {
		return 0, evalErrorf(p.root.offset(), "formula must produce a number, got %s", v.kind)
	}
	if _, err := finite(v.num, p.root.offset()); err != nil {
		return 0, err
	}
	return v.num, nil
}

func (e *env) eval(n node) (Value, error) {
	switch n := n.(type) {
	case *numberLit:
		return Number(n.value), nil
	case *stringLit:
		return String(n.value), nil
	case *boolLit:
		return Bool(n.value), nil
	case *identRef:
		v, ok := e.ctx.lookup(n.name)
		if !ok {
			return Value{}, evalErrorf(n.pos, "unknown identifier %q", n.name)
		}
		return v, nil
	case *unaryExpr:
		return e.evalUnary(n)
	case *binaryExpr:
		return e.evalBinary(n)
	case *condExpr:
		cond, err := e.eval(n.cond)
		if err != nil {
			return Value{}, err
		}
		ok, err := truthy(cond, n.cond.offset())
		if err != nil {
			return Value{}, err
		}
		if ok {
			return e.eval(n.then)
		}
		return e.eval(n.orElse)
	case *callExpr:
		return e.evalCall(n)
	case *listLit:
		items := make([]Value, len(n.elems))
		for i, el := range n.elems {
			v, err := e.eval(el)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case *objectLit:
		obj := make(map[string]Value, len(n.keys))
		for i, k := range n.keys {
			v, err := e.eval(n.values[i])
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	}
	return Value{}, evalErrorf(n.offset(), "unsupported expression")
}

func (e *env) evalUnary(n *unaryExpr) (Value, error) {
	v, err := e.eval(n.operand)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case "-":
		if v.kind != KindNumber {
			return Value{}, evalErrorf(n.pos, "cannot negate %s", v.kind)
		}
		return Number(-v.num), nil
	case "!":
		if v.kind != KindBool {
			return Value{}, evalErrorf(n.pos, "cannot apply ! to %s", v.kind)
		}
		return Bool(!v.b), nil
	}
	return Value{}, evalErrorf(n.pos, "unknown operator %q", n.op)
}

func (e *env) evalBinary(n *binaryExpr) (Value, error) {
	left, err := e.eval(n.left)
	if err != nil {
		return Value{}, err
	}

	// logical operators short-circuit
	if n.op == "&&" || n.op == "||" {
		if left.kind != KindBool {
			return Value{}, evalErrorf(n.pos, "%s needs bool operands, got %s", n.op, left.kind)
		}
		if (n.op == "&&" && !left.b) || (n.op == "||" && left.b) {
			return left, nil
		}
		right, err := e.eval(n.right)
		if err != nil {
			return Value{}, err
		}
		if right.kind != KindBool {
			return Value{}, evalErrorf(n.pos, "%s needs bool operands, got %s", n.op, right.kind)
		}
		return right, nil
	}

	right, err := e.eval(n.right)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "==", "!=":
		if left.kind != right.kind || left.kind == KindList || left.kind == KindObject {
			return Value{}, evalErrorf(n.pos, "cannot compare %s with %s", left.kind, right.kind)
		}
		eq := left.equal(right)
		if n.op == "!=" {
			eq = !eq
		}
		return Bool(eq), nil
	}

	if left.kind != KindNumber || right.kind != KindNumber {
		return Value{}, evalErrorf(n.pos, "operator %s needs numbers, got %s and %s", n.op, left.kind, right.kind)
	}
	a, b := left.num, right.num

	var result float64
	switch n.op {
	case "<":
		return Bool(a < b), nil
	case "<=":
		return Bool(a <= b), nil
	case ">":
		return Bool(a > b), nil
	case ">=":
		return Bool(a >= b), nil
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return Value{}, evalErrorf(n.pos, "division by zero")
		}
		result = a / b
	default:
		return Value{}, evalErrorf(n.pos, "unknown operator %q", n.op)
	}
	return finite(result, n.pos)
}

func (e *env) evalCall(n *callExpr) (Value, error) {
	fn, ok := builtins[n.name]
	if !ok {
		return Value{}, evalErrorf(n.pos, "unknown function %q", n.name)
	}
	if len(n.args) < fn.minArgs || (fn.maxArgs >= 0 && len(n.args) > fn.maxArgs) {
		return Value{}, evalErrorf(n.pos, "%s expects %s, got %d", n.name, fn.arity(), len(n.args))
	}
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := e.eval(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	v, err := fn.call(&call{name: n.name, pos: n.pos, args: args, tables: e.tables})
	if err != nil {
		return Value{}, err
	}
	if v.kind == KindNumber {
		return finite(v.num, n.pos)
	}
	return v, nil
}

func truthy(v Value, pos int) (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindNumber:
		return v.num != 0, nil
	}
	return false, evalErrorf(pos, "condition must be bool or number, got %s", v.kind)
}

func finite(f float64, pos int) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, evalErrorf(pos, "non-finite result")
	}
	return Number(f), nil
}
