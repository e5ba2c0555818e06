package formula

import (
	"fmt"
	"strconv"
)

// Eval tokenizes, parses and evaluates expr in one pass. Identifiers resolve
// against vars; an identifier missing from vars, a malformed expression, or
// a division by zero all return an error carrying the offending position.
func Eval(expr string, vars map[string]float64) (float64, error) {
	tokens, err := NewLexer(expr).Tokenize()
	if err != nil {
		return 0, err
	}

	p := &parser{tokens: tokens, vars: vars}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return 0, fmt.Errorf("formula: unexpected %q at position %d", tok.Value, tok.Pos)
	}
	return v, nil
}

// Identifiers syntax-checks expr and returns the distinct identifiers it
// references, in first-seen order. No arithmetic is performed, so a formula
// whose denominator happens to be zero for some inputs still validates.
func Identifiers(expr string) ([]string, error) {
	tokens, err := NewLexer(expr).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, check: true}
	if _, err := p.expr(); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, fmt.Errorf("formula: unexpected %q at position %d", tok.Value, tok.Pos)
	}
	return p.idents, nil
}

// parser is a recursive-descent evaluator over the token stream. In check
// mode it only validates the grammar and records identifiers.
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := NUMBER | IDENT | '(' expr ')' | '-' factor
type parser struct {
	tokens   []Token
	position int
	vars     map[string]float64
	check    bool
	idents   []string
}

func (p *parser) peek() Token { return p.tokens[p.position] }

func (p *parser) recordIdent(name string) {
	for _, seen := range p.idents {
		if seen == name {
			return
		}
	}
	p.idents = append(p.idents, name)
}

func (p *parser) next() Token {
	tok := p.tokens[p.position]
	if tok.Kind != TokenEOF {
		p.position++
	}
	return tok
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().Kind {
		case TokenPlus:
			p.next()
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v += rhs
		case TokenMinus:
			p.next()
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	v, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().Kind {
		case TokenStar:
			p.next()
			rhs, err := p.factor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case TokenSlash:
			tok := p.next()
			rhs, err := p.factor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				if p.check {
					v = 0
					continue
				}
				return 0, fmt.Errorf("formula: division by zero at position %d", tok.Pos)
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) factor() (float64, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return 0, fmt.Errorf("formula: bad number %q at position %d", tok.Value, tok.Pos)
		}
		return v, nil

	case TokenIdent:
		if p.check {
			p.recordIdent(tok.Value)
			return 0, nil
		}
		v, ok := p.vars[tok.Value]
		if !ok {
			return 0, fmt.Errorf("formula: unknown identifier %q at position %d", tok.Value, tok.Pos)
		}
		return v, nil

	case TokenMinus:
		v, err := p.factor()
		if err != nil {
			return 0, err
		}
		return -v, nil

	case TokenLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.Kind != TokenRParen {
			return 0, fmt.Errorf("formula: missing ')' at position %d", closing.Pos)
		}
		return v, nil

	case TokenEOF:
		return 0, fmt.Errorf("formula: unexpected end of expression at position %d", tok.Pos)

	default:
		return 0, fmt.Errorf("formula: unexpected %q at position %d", tok.Value, tok.Pos)
	}
}
