package syntax

import (
	"strings"
	"unicode"

	"github.com/weftql/weft/nav"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenSymbol
	tokenReference
)

type token struct {
	kind tokenKind
	text string
	mark nav.Mark
}

// symbols that may span two or three characters; longest match wins.
var compoundSymbols = []string{"!==", "==", "!=", "<=", ">=", "!~", "->"}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) mark(start int) nav.Mark {
	return nav.NewMark(l.input, start, l.pos)
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// next scans one token. Returns *nav.Error on malformed input.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, mark: l.mark(start)}, nil
	}
	c := l.peek()
	switch {
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.input[start:l.pos], mark: l.mark(start)}, nil

	case c >= '0' && c <= '9':
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
		if l.pos < len(l.input) && l.input[l.pos] == '.' &&
			l.pos+1 < len(l.input) && l.input[l.pos+1] >= '0' && l.input[l.pos+1] <= '9' {
			l.pos++
			for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
				l.pos++
			}
		}
		if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
			save := l.pos
			l.pos++
			if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
				l.pos++
			}
			if l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
				for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
					l.pos++
				}
			} else {
				l.pos = save
			}
		}
		return token{kind: tokenNumber, text: l.input[start:l.pos], mark: l.mark(start)}, nil

	case c == '\'':
		l.pos++
		var sb strings.Builder
		for {
			if l.pos >= len(l.input) {
				return token{}, nav.NewError(
					nav.ErrSyntax.New("unterminated string literal"), l.mark(start))
			}
			if l.input[l.pos] == '\'' {
				if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
					sb.WriteByte('\'')
					l.pos += 2
					continue
				}
				l.pos++
				break
			}
			sb.WriteByte(l.input[l.pos])
			l.pos++
		}
		return token{kind: tokenString, text: sb.String(), mark: l.mark(start)}, nil

	case c == '$':
		l.pos++
		if l.pos >= len(l.input) || !isIdentStart(l.input[l.pos]) {
			return token{}, nav.NewError(
				nav.ErrSyntax.New("expected a name after $"), l.mark(start))
		}
		nameStart := l.pos
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenReference, text: l.input[nameStart:l.pos], mark: l.mark(start)}, nil

	default:
		for _, sym := range compoundSymbols {
			if strings.HasPrefix(l.input[l.pos:], sym) {
				l.pos += len(sym)
				return token{kind: tokenSymbol, text: sym, mark: l.mark(start)}, nil
			}
		}
		l.pos++
		return token{kind: tokenSymbol, text: string(c), mark: l.mark(start)}, nil
	}
}

// tokenize scans the whole input, appending a trailing EOF token.
func tokenize(input string) ([]token, error) {
	l := newLexer(input)
	var tokens []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
		if t.kind == tokenEOF {
			return tokens, nil
		}
	}
}
