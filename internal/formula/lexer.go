// Package formula evaluates arithmetic expressions over named numeric
// counters. The grammar is closed: numbers, identifiers, + - * /, unary
// minus, and parentheses. Identifiers resolve against a caller-supplied map;
// nothing is ever executed.
package formula

import "fmt"

// TokenKind classifies a scanned token.
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenIdent
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenLParen
	TokenRParen
	TokenEOF
)

// Token is one scanned unit with its starting position in the input.
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

// Lexer scans a formula string into tokens.
type Lexer struct {
	input    string
	position int
	tokens   []Token
}

// NewLexer returns a Lexer over the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, tokens: make([]Token, 0)}
}

// Tokenize scans the whole input. It fails on the first character that does
// not belong to the grammar.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.position < len(l.input) {
		start := l.position
		switch c := l.input[l.position]; {
		case c == ' ' || c == '\t':
			l.position++

		case c == '+':
			l.addToken(TokenPlus, "+", start)
			l.position++

		case c == '-':
			l.addToken(TokenMinus, "-", start)
			l.position++

		case c == '*':
			l.addToken(TokenStar, "*", start)
			l.position++

		case c == '/':
			l.addToken(TokenSlash, "/", start)
			l.position++

		case c == '(':
			l.addToken(TokenLParen, "(", start)
			l.position++

		case c == ')':
			l.addToken(TokenRParen, ")", start)
			l.position++

		case isDigit(c):
			l.lexNumber(start)

		case isIdentStart(c):
			l.lexIdent(start)

		default:
			return nil, fmt.Errorf("formula: unexpected character %q at position %d", c, start)
		}
	}

	l.addToken(TokenEOF, "", l.position)
	return l.tokens, nil
}

func (l *Lexer) lexNumber(start int) {
	seenDot := false
	for l.position < len(l.input) {
		c := l.input[l.position]
		if c == '.' && !seenDot {
			seenDot = true
			l.position++
			continue
		}
		if !isDigit(c) {
			break
		}
		l.position++
	}
	l.addToken(TokenNumber, l.input[start:l.position], start)
}

func (l *Lexer) lexIdent(start int) {
	for l.position < len(l.input) && isIdentPart(l.input[l.position]) {
		l.position++
	}
	l.addToken(TokenIdent, l.input[start:l.position], start)
}

func (l *Lexer) addToken(kind TokenKind, value string, pos int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: value, Pos: pos})
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
