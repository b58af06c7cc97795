// Package lexer turns Kooix source bytes into a token stream, using a
// hand-written byte-cursor scanner with a single lookahead instead of a
// generated grammar.
package lexer

import (
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/position"
	"github.com/telagod/kooixc/pkg/token"
)

type lexer struct {
	src []byte
	pos int
}

// Lex scans src into a token stream terminated by an EOF token. It returns
// the first lexical error encountered, if any; lexing is fatal-on-first.
func Lex(src string) ([]token.Token, *diagnostic.Diagnostic) {
	l := &lexer{src: []byte(src)}
	var tokens []token.Token

	for !l.atEOF() {
		l.skipWhitespaceAndComments()
		if l.atEOF() {
			break
		}

		start := l.pos
		c := l.peek()

		var tok token.Token
		var err *diagnostic.Diagnostic

		switch {
		case isIdentStart(c):
			tok = l.lexIdentOrKeyword(start)
		case c >= '0' && c <= '9':
			tok = l.lexNumber(start)
		default:
			tok, err = l.lexPunctOrString(start, c)
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	tokens = append(tokens, token.Token{Kind: token.EOF, Span: position.NewSpan(l.pos, l.pos)})
	return tokens, nil
}

func (l *lexer) lexPunctOrString(start int, c byte) (token.Token, *diagnostic.Diagnostic) {
	switch c {
	case '(':
		return l.single(token.LParen, start), nil
	case ')':
		return l.single(token.RParen, start), nil
	case '{':
		return l.single(token.LBrace, start), nil
	case '}':
		return l.single(token.RBrace, start), nil
	case '[':
		return l.single(token.LBracket, start), nil
	case ']':
		return l.single(token.RBracket, start), nil
	case '<':
		if l.peekN(1) == '=' {
			return l.two(token.Lte, start), nil
		}
		return l.single(token.LAngle, start), nil
	case '>':
		if l.peekN(1) == '=' {
			return l.two(token.Gte, start), nil
		}
		return l.single(token.RAngle, start), nil
	case ',':
		return l.single(token.Comma, start), nil
	case '.':
		return l.single(token.Dot, start), nil
	case ':':
		if l.peekN(1) == ':' {
			return l.two(token.ColonColon, start), nil
		}
		return l.single(token.Colon, start), nil
	case ';':
		return l.single(token.Semicolon, start), nil
	case '!':
		if l.peekN(1) == '=' {
			return l.two(token.NotEq, start), nil
		}
		return l.single(token.Bang, start), nil
	case '=':
		if l.peekN(1) == '=' {
			return l.two(token.EqEq, start), nil
		}
		if l.peekN(1) == '>' {
			return l.two(token.FatArrow, start), nil
		}
		return l.single(token.Eq, start), nil
	case '-':
		if l.peekN(1) == '>' {
			return l.two(token.Arrow, start), nil
		}
		d := diagnostic.NewError(position.NewSpan(start, start+1), "unexpected '-', expected '->'")
		return token.Token{}, &d
	case '+':
		return l.single(token.Plus, start), nil
	case '"':
		return l.lexString(start)
	default:
		d := diagnostic.NewError(position.NewSpan(start, start+1), "unexpected character '%c'", c)
		return token.Token{}, &d
	}
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		for !l.atEOF() && isASCIISpace(l.peek()) {
			l.pos++
		}
		if !l.atEOF() && l.peek() == '/' && l.peekN(1) == '/' {
			for !l.atEOF() {
				c := l.peek()
				l.pos++
				if c == '\n' {
					break
				}
			}
			continue
		}
		break
	}
}

func (l *lexer) lexIdentOrKeyword(start int) token.Token {
	for !l.atEOF() && isIdentContinue(l.peek()) {
		l.pos++
	}
	text := string(l.src[start:l.pos])
	kind, ok := token.Keywords[text]
	if !ok {
		kind = token.Ident
	}
	tok := token.Token{Kind: kind, Span: position.NewSpan(start, l.pos)}
	if kind == token.Ident {
		tok.Text = text
	}
	return tok
}

func (l *lexer) lexNumber(start int) token.Token {
	for !l.atEOF() && l.peek() >= '0' && l.peek() <= '9' {
		l.pos++
	}
	return token.Token{Kind: token.Number, Text: string(l.src[start:l.pos]), Span: position.NewSpan(start, l.pos)}
}

func (l *lexer) lexString(start int) (token.Token, *diagnostic.Diagnostic) {
	l.pos++ // opening quote
	contentStart := l.pos
	escaped := false

	for !l.atEOF() {
		c := l.peek()
		l.pos++
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			raw := string(l.src[contentStart : l.pos-1])
			value := unescape(raw)
			return token.Token{Kind: token.String, Text: value, Span: position.NewSpan(start, l.pos)}, nil
		}
	}

	d := diagnostic.NewError(position.NewSpan(start, l.pos), "unterminated string literal")
	return token.Token{}, &d
}

func unescape(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			switch raw[i+1] {
			case '"':
				out = append(out, '"')
				i++
				continue
			case 'n':
				out = append(out, '\n')
				i++
				continue
			case 't':
				out = append(out, '\t')
				i++
				continue
			}
		}
		out = append(out, raw[i])
	}
	return string(out)
}

func (l *lexer) single(k token.Kind, start int) token.Token {
	l.pos++
	return token.Token{Kind: k, Span: position.NewSpan(start, l.pos)}
}

func (l *lexer) two(k token.Kind, start int) token.Token {
	l.pos += 2
	return token.Token{Kind: k, Span: position.NewSpan(start, l.pos)}
}

func (l *lexer) atEOF() bool { return l.pos >= len(l.src) }

func (l *lexer) peek() byte {
	if l.atEOF() {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekN(n int) byte {
	idx := l.pos + n
	if idx >= len(l.src) {
		return 0
	}
	return l.src[idx]
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
