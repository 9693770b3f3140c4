package sparql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokInteger
	tokDecimal
	tokDouble
	tokWord
	tokLangTag
	tokPunct
)

type token struct {
	kind tokenKind
	text string // IRI body, pname, var name, unescaped string, word, punct
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokIRI:
		return "<" + t.text + ">"
	case tokVar:
		return "?" + t.text
	case tokString:
		return fmt.Sprintf("%q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// isWord reports whether the token is the given keyword, case-insensitively
func (t token) isWord(w string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, w)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// SyntaxError reports a malformed query or update
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

type lexer struct {
	src string
	pos int
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]

	switch {
	case c == '<':
		if iri, ok := l.scanIRI(); ok {
			return token{kind: tokIRI, text: iri, pos: start}, nil
		}
		if l.peekByte(1) == '=' {
			l.pos += 2
			return token{kind: tokPunct, text: "<=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokPunct, text: "<", pos: start}, nil

	case c == '?' || c == '$':
		l.pos++
		name := l.scanNameChars(false)
		if name == "" {
			return token{}, l.errorf(start, "empty variable name")
		}
		return token{kind: tokVar, text: name, pos: start}, nil

	case c == '"' || c == '\'':
		s, err := l.scanString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, pos: start}, nil

	case c == '@':
		l.pos++
		tag := l.scanWhile(func(r rune) bool {
			return r == '-' || r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r))
		})
		if tag == "" {
			return token{}, l.errorf(start, "empty language tag")
		}
		return token{kind: tokLangTag, text: tag, pos: start}, nil

	case c == '_' && l.peekByte(1) == ':':
		l.pos += 2
		label := l.scanLocalName()
		if label == "" {
			return token{}, l.errorf(start, "empty blank node label")
		}
		return token{kind: tokBlank, text: label, pos: start}, nil

	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.scanNumber(), nil

	case c == ':' || isNameStart(l.src[l.pos:]):
		return l.scanWordOrPName()
	}

	for _, p := range []string{"^^", "&&", "||", "!=", ">=", "<="} {
		if strings.HasPrefix(l.src[l.pos:], p) {
			l.pos += len(p)
			return token{kind: tokPunct, text: p, pos: start}, nil
		}
	}
	if strings.ContainsRune("{}()[].,;*=<>!+-/", rune(c)) {
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf(start, "unexpected character %q", r)
}

// scanIRI consumes an IRIREF if one starts at the current position
func (l *lexer) scanIRI() (string, bool) {
	i := l.pos + 1
	for i < len(l.src) {
		c := l.src[i]
		if c == '>' {
			iri := l.src[l.pos+1 : i]
			l.pos = i + 1
			return iri, true
		}
		if c <= ' ' || strings.ContainsRune("<\"{}|^`\\", rune(c)) {
			return "", false
		}
		i++
	}
	return "", false
}

func (l *lexer) scanString() (string, error) {
	start := l.pos
	q := l.src[l.pos]
	long := strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3))
	if long {
		l.pos += 3
	} else {
		l.pos++
	}
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if long && strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(q), 3)) {
			l.pos += 3
			return sb.String(), nil
		}
		if !long && c == q {
			l.pos++
			return sb.String(), nil
		}
		if !long && (c == '\n' || c == '\r') {
			return "", l.errorf(start, "unterminated string")
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch e := l.src[l.pos]; e {
			case 't':
				sb.WriteByte('\t')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '"', '\'', '\\':
				sb.WriteByte(e)
			default:
				return "", l.errorf(l.pos, "invalid escape \\%c", e)
			}
			l.pos++
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
	return "", l.errorf(start, "unterminated string")
}

func (l *lexer) scanNumber() token {
	start := l.pos
	kind := tokInteger
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && isDigit(l.peekByte(1)) {
		kind = tokDecimal
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		save := l.pos
		l.pos++
		if c := l.peekByte(0); c == '+' || c == '-' {
			l.pos++
		}
		if isDigit(l.peekByte(0)) {
			kind = tokDouble
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	return token{kind: kind, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) scanWordOrPName() (token, error) {
	start := l.pos
	prefix := ""
	if l.src[l.pos] != ':' {
		prefix = l.scanNameChars(true)
	}
	if l.pos < len(l.src) && l.src[l.pos] == ':' {
		l.pos++
		local := l.scanLocalName()
		return token{kind: tokPName, text: prefix + ":" + local, pos: start}, nil
	}
	return token{kind: tokWord, text: prefix, pos: start}, nil
}

// scanLocalName reads a prefixed-name local part; it may contain dots but
// never ends with one
func (l *lexer) scanLocalName() string {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == '.' || r == '-' || r == '_' || r == '%' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			l.pos += size
			continue
		}
		break
	}
	for l.pos > start && l.src[l.pos-1] == '.' {
		l.pos--
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanNameChars(allowDash bool) string {
	return l.scanWhile(func(r rune) bool {
		return r == '_' || (allowDash && r == '-') || unicode.IsLetter(r) || unicode.IsDigit(r)
	})
}

func (l *lexer) scanWhile(ok func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !ok(r) {
			break
		}
		l.pos += size
	}
	return l.src[start:l.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}
