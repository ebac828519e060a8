package expr

import (
	"fmt"
	"strconv"

	"github.com/roach88/csc/internal/ir"
)

// Program is a parsed expression ready for evaluation.
type Program struct {
	Source string
	Root   Node
	vars   []string
}

// Vars returns the distinct variable names referenced, in first-use order.
func (p *Program) Vars() []string {
	return append([]string(nil), p.vars...)
}

// String returns the normalized word form of the expression.
func (p *Program) String() string {
	return p.Root.String()
}

// Parse lexes and parses src.
func Parse(src string) (*Program, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return nil, &SyntaxError{Kind: ErrSyntax, Col: 1, Message: "empty expression"}
	}

	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokEOF {
		return nil, p.unexpected(tok)
	}

	prog := &Program{Source: src, Root: root}
	seen := make(map[string]bool)
	Walk(root, func(n Node) {
		if v, ok := n.(*VarRef); ok && !seen[v.Name] {
			seen[v.Name] = true
			prog.vars = append(prog.vars, v.Name)
		}
	})
	return prog, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(src string) *Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) unexpected(tok Token) error {
	if tok.Kind == TokEOF {
		return &SyntaxError{Kind: ErrSyntax, Col: tok.Col, Message: "unexpected end of expression"}
	}
	return &SyntaxError{Kind: ErrSyntax, Col: tok.Col, Token: tok.Text, Message: fmt.Sprintf("unexpected %s %q", tok.Kind, tok.Text)}
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.peek().Kind == TokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, rhs)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Or{Terms: terms, At: first.Col()}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.peek().Kind == TokAnd {
		p.next()
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, rhs)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &And{Terms: terms, At: first.Col()}, nil
}

func (p *parser) parseNot() (Node, error) {
	if tok := p.peek(); tok.Kind == TokNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand, At: tok.Col}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokCmp {
		return first, nil
	}

	cmp := &Compare{Operands: []Node{first}, At: first.Col()}
	for p.peek().Kind == TokCmp {
		op := p.next()
		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, CmpOp(op.Text))
		cmp.Operands = append(cmp.Operands, rhs)
	}
	return cmp, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokInt:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Kind: ErrSyntax, Col: tok.Col, Token: tok.Text, Message: fmt.Sprintf("integer %s out of range", tok.Text)}
		}
		return &Literal{Value: ir.IRInt(n), At: tok.Col}, nil

	case TokFloat:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, &SyntaxError{Kind: ErrSyntax, Col: tok.Col, Token: tok.Text, Message: fmt.Sprintf("invalid number %s", tok.Text)}
		}
		return &Literal{Value: ir.IRFloat(f), At: tok.Col}, nil

	case TokTrue, TokFalse, TokIdent:
		if p.peek().Kind == TokLParen {
			return nil, &SyntaxError{Kind: ErrFunctionCall, Col: tok.Col, Token: tok.Text, Message: fmt.Sprintf("function call %s(...) is not allowed", tok.Text)}
		}
		switch tok.Kind {
		case TokTrue:
			return &Literal{Value: ir.IRBool(true), At: tok.Col}, nil
		case TokFalse:
			return &Literal{Value: ir.IRBool(false), At: tok.Col}, nil
		}
		return &VarRef{Name: tok.Text, At: tok.Col}, nil

	case TokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Kind != TokRParen {
			if closing.Kind == TokEOF {
				return nil, &SyntaxError{Kind: ErrSyntax, Col: tok.Col, Token: "(", Message: "unclosed '('"}
			}
			return nil, p.unexpected(closing)
		}
		return inner, nil

	default:
		return nil, p.unexpected(tok)
	}
}
