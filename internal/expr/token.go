package expr

import (
	"fmt"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokInt
	TokFloat
	TokTrue
	TokFalse
	TokAnd
	TokOr
	TokNot
	TokCmp
	TokLParen
	TokRParen
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "end of expression"
	case TokIdent:
		return "identifier"
	case TokInt, TokFloat:
		return "number"
	case TokTrue, TokFalse:
		return "boolean"
	case TokAnd:
		return "and"
	case TokOr:
		return "or"
	case TokNot:
		return "not"
	case TokCmp:
		return "comparison"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

// Token is one lexeme with its 1-based column in the source.
type Token struct {
	Kind TokenKind
	Text string
	Col  int
}

var keywords = map[string]TokenKind{
	"and":   TokAnd,
	"or":    TokOr,
	"not":   TokNot,
	"true":  TokTrue,
	"false": TokFalse,
}

// IsKeyword reports whether word is reserved by the expression language.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}

// Lex splits src into tokens. The final token is always TokEOF.
func Lex(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		col := i + 1

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			kind := TokIdent
			if kw, ok := keywords[word]; ok {
				kind = kw
			}
			toks = append(toks, Token{Kind: kind, Text: word, Col: col})
			i = j

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1]) && expectsOperand(toks)):
			j := i + 1
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			kind := TokInt
			if j+1 < len(src) && src[j] == '.' && isDigit(src[j+1]) {
				kind = TokFloat
				j += 2
				for j < len(src) && isDigit(src[j]) {
					j++
				}
			}
			if j < len(src) && (isIdentStart(src[j]) || src[j] == '.') {
				return nil, &SyntaxError{Kind: ErrSyntax, Col: j + 1, Token: string(src[j]), Message: fmt.Sprintf("malformed number %q", src[i:j+1])}
			}
			toks = append(toks, Token{Kind: kind, Text: src[i:j], Col: col})
			i = j

		case c == '(':
			toks = append(toks, Token{Kind: TokLParen, Text: "(", Col: col})
			i++

		case c == ')':
			toks = append(toks, Token{Kind: TokRParen, Text: ")", Col: col})
			i++

		case c == '>' || c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokCmp, Text: src[i : i+2], Col: col})
				i += 2
			} else {
				toks = append(toks, Token{Kind: TokCmp, Text: src[i : i+1], Col: col})
				i++
			}

		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokCmp, Text: "==", Col: col})
				i += 2
				continue
			}
			return nil, &SyntaxError{Kind: ErrSyntax, Col: col, Token: "=", Message: "assignment is not allowed; use '==' to compare"}

		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokCmp, Text: "!=", Col: col})
				i += 2
				continue
			}
			toks = append(toks, Token{Kind: TokNot, Text: "!", Col: col})
			i++

		case c == '&' || c == '|':
			if i+1 < len(src) && src[i+1] == c {
				kind := TokAnd
				if c == '|' {
					kind = TokOr
				}
				toks = append(toks, Token{Kind: kind, Text: src[i : i+2], Col: col})
				i += 2
				continue
			}
			return nil, &SyntaxError{Kind: ErrSyntax, Col: col, Token: string(c), Message: fmt.Sprintf("unexpected %q; use %q", string(c), strings.Repeat(string(c), 2))}

		case c == '"' || c == '\'':
			return nil, &SyntaxError{Kind: ErrStringLiteral, Col: col, Token: string(c), Message: "string literals are not allowed"}

		default:
			return nil, &SyntaxError{Kind: ErrSyntax, Col: col, Token: string(c), Message: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	toks = append(toks, Token{Kind: TokEOF, Col: len(src) + 1})
	return toks, nil
}

// expectsOperand reports whether a '-' at this point can only start a
// negative number literal.
func expectsOperand(toks []Token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].Kind {
	case TokCmp, TokAnd, TokOr, TokNot, TokLParen:
		return true
	default:
		return false
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
