package expr

import (
	"strconv"
	"strings"

	"github.com/roach88/csc/internal/ir"
)

// Node is a sealed expression tree node.
type Node interface {
	node()
	// Col is the 1-based source column where the node starts.
	Col() int
	// String renders the node in normalized word form.
	String() string
}

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpGT CmpOp = ">"
	OpLT CmpOp = "<"
	OpGE CmpOp = ">="
	OpLE CmpOp = "<="
	OpEQ CmpOp = "=="
	OpNE CmpOp = "!="
)

// Literal is a numeric or boolean constant.
type Literal struct {
	Value ir.IRValue
	At    int
}

// VarRef reads one snapshot variable.
type VarRef struct {
	Name string
	At   int
}

// Compare is a comparison chain: Operands[i] Ops[i] Operands[i+1] for every i.
// len(Operands) == len(Ops)+1 and len(Ops) >= 1.
type Compare struct {
	Operands []Node
	Ops      []CmpOp
	At       int
}

// And holds when every term holds.
type And struct {
	Terms []Node
	At    int
}

// Or holds when any term holds.
type Or struct {
	Terms []Node
	At    int
}

// Not negates its operand.
type Not struct {
	Operand Node
	At      int
}

func (*Literal) node() {}
func (*VarRef) node()  {}
func (*Compare) node() {}
func (*And) node()     {}
func (*Or) node()      {}
func (*Not) node()     {}

func (n *Literal) Col() int { return n.At }
func (n *VarRef) Col() int  { return n.At }
func (n *Compare) Col() int { return n.At }
func (n *And) Col() int     { return n.At }
func (n *Or) Col() int      { return n.At }
func (n *Not) Col() int     { return n.At }

func (n *Literal) String() string {
	switch v := n.Value.(type) {
	case ir.IRBool:
		if v {
			return "true"
		}
		return "false"
	case ir.IRFloat:
		s, err := ir.FormatFloat(float64(v))
		if err != nil {
			return "nan"
		}
		return s
	case ir.IRInt:
		return strconv.FormatInt(int64(v), 10)
	default:
		return "?"
	}
}

func (n *VarRef) String() string { return n.Name }

func (n *Compare) String() string {
	var sb strings.Builder
	for i, operand := range n.Operands {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(string(n.Ops[i-1]))
			sb.WriteString(" ")
		}
		sb.WriteString(wrap(operand))
	}
	return sb.String()
}

func (n *And) String() string { return join(n.Terms, " and ") }
func (n *Or) String() string  { return join(n.Terms, " or ") }
func (n *Not) String() string { return "not " + wrap(n.Operand) }

func join(terms []Node, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = wrap(t)
	}
	return strings.Join(parts, sep)
}

// wrap parenthesizes compound children so String output re-parses to the
// same tree.
func wrap(n Node) string {
	switch n.(type) {
	case *Literal, *VarRef, *Not:
		return n.String()
	default:
		return "(" + n.String() + ")"
	}
}

// Walk calls fn for n and every descendant in source order.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch v := n.(type) {
	case *Compare:
		for _, o := range v.Operands {
			Walk(o, fn)
		}
	case *And:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case *Or:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case *Not:
		Walk(v.Operand, fn)
	}
}
