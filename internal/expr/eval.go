package expr

import (
	"fmt"

	"github.com/roach88/csc/internal/ir"
)

// Eval evaluates the program against snap. The result must be a boolean;
// any other outcome is an *EvalError.
func (p *Program) Eval(snap ir.Snapshot) (bool, error) {
	v, err := eval(p.Root, snap)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, &EvalError{Message: fmt.Sprintf("expression yields %s, not bool", ir.TypeName(v))}
	}
	return bool(b), nil
}

func eval(n Node, snap ir.Snapshot) (ir.IRValue, error) {
	switch node := n.(type) {
	case *Literal:
		return node.Value, nil

	case *VarRef:
		v, ok := snap.Lookup(node.Name)
		if !ok {
			return nil, &EvalError{Var: node.Name, Message: fmt.Sprintf("variable %q is not in the snapshot", node.Name)}
		}
		return v, nil

	case *Not:
		b, err := evalBool(node.Operand, snap, "not")
		if err != nil {
			return nil, err
		}
		return ir.IRBool(!b), nil

	case *And:
		for _, term := range node.Terms {
			b, err := evalBool(term, snap, "and")
			if err != nil {
				return nil, err
			}
			if !b {
				return ir.IRBool(false), nil
			}
		}
		return ir.IRBool(true), nil

	case *Or:
		for _, term := range node.Terms {
			b, err := evalBool(term, snap, "or")
			if err != nil {
				return nil, err
			}
			if b {
				return ir.IRBool(true), nil
			}
		}
		return ir.IRBool(false), nil

	case *Compare:
		left, err := eval(node.Operands[0], snap)
		if err != nil {
			return nil, err
		}
		for i, op := range node.Ops {
			right, err := eval(node.Operands[i+1], snap)
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return ir.IRBool(false), nil
			}
			left = right
		}
		return ir.IRBool(true), nil

	default:
		return nil, &EvalError{Message: fmt.Sprintf("unsupported node %T", n)}
	}
}

func evalBool(n Node, snap ir.Snapshot, op string) (bool, error) {
	v, err := eval(n, snap)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, &EvalError{Message: fmt.Sprintf("%s operand %s is %s, not bool", op, n, ir.TypeName(v))}
	}
	return bool(b), nil
}

// compare applies op to a and b. Numbers compare with numbers, widening to
// float when mixed. Booleans and strings only support equality.
func compare(op CmpOp, a, b ir.IRValue) (bool, error) {
	if ai, ok := a.(ir.IRInt); ok {
		if bi, ok := b.(ir.IRInt); ok {
			return orderedCompare(op, ai, bi), nil
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return orderedCompare(op, af, bf), nil
		}
		return false, mismatch(op, a, b)
	}

	switch av := a.(type) {
	case ir.IRBool:
		bv, ok := b.(ir.IRBool)
		if !ok {
			return false, mismatch(op, a, b)
		}
		return equality(op, av == bv, a)
	case ir.IRString:
		bv, ok := b.(ir.IRString)
		if !ok {
			return false, mismatch(op, a, b)
		}
		return equality(op, av == bv, a)
	default:
		return false, mismatch(op, a, b)
	}
}

func equality(op CmpOp, equal bool, operand ir.IRValue) (bool, error) {
	switch op {
	case OpEQ:
		return equal, nil
	case OpNE:
		return !equal, nil
	default:
		return false, &EvalError{Message: fmt.Sprintf("operator %s is not defined for %s", op, ir.TypeName(operand))}
	}
}

func mismatch(op CmpOp, a, b ir.IRValue) error {
	return &EvalError{Message: fmt.Sprintf("cannot compare %s %s %s", ir.TypeName(a), op, ir.TypeName(b))}
}

func toFloat(v ir.IRValue) (float64, bool) {
	switch n := v.(type) {
	case ir.IRInt:
		return float64(n), true
	case ir.IRFloat:
		return float64(n), true
	default:
		return 0, false
	}
}

func orderedCompare[T ir.IRInt | float64](op CmpOp, a, b T) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}
