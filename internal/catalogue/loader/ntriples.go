package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
)

// parseLine parses one N-Triples line. ok is false for blank and comment
// lines.
func parseLine(line string) (stmt catalogue.Statement, ok bool, err error) {
	p := &lineParser{s: strings.TrimRight(line, "\r")}
	p.skipSpace()
	if p.eof() || p.peek() == '#' {
		return catalogue.Statement{}, false, nil
	}

	subj, err := p.node("subject")
	if err != nil {
		return catalogue.Statement{}, false, err
	}
	if err := p.requireSpace("subject"); err != nil {
		return catalogue.Statement{}, false, err
	}
	if p.eof() || p.peek() != '<' {
		return catalogue.Statement{}, false, errors.New("predicate must be an IRI")
	}
	pred, err := p.iri()
	if err != nil {
		return catalogue.Statement{}, false, err
	}
	if err := p.requireSpace("predicate"); err != nil {
		return catalogue.Statement{}, false, err
	}
	obj, err := p.object()
	if err != nil {
		return catalogue.Statement{}, false, err
	}
	p.skipSpace()
	if p.eof() || p.peek() != '.' {
		return catalogue.Statement{}, false, errors.New("missing terminating '.'")
	}
	p.pos++
	p.skipSpace()
	if !p.eof() && p.peek() != '#' {
		return catalogue.Statement{}, false, fmt.Errorf("unexpected content after '.' at column %d", p.pos+1)
	}
	return catalogue.Statement{Subject: subj, Predicate: pred, Object: obj}, true, nil
}

type lineParser struct {
	s   string
	pos int
}

func (p *lineParser) eof() bool  { return p.pos >= len(p.s) }
func (p *lineParser) peek() byte { return p.s[p.pos] }

func (p *lineParser) skipSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *lineParser) requireSpace(after string) error {
	start := p.pos
	p.skipSpace()
	if p.pos == start {
		return fmt.Errorf("expected whitespace after %s", after)
	}
	return nil
}

// node parses an IRI or blank node.
func (p *lineParser) node(role string) (catalogue.Term, error) {
	if p.eof() {
		return catalogue.Term{}, fmt.Errorf("missing %s", role)
	}
	switch {
	case p.peek() == '<':
		v, err := p.iri()
		if err != nil {
			return catalogue.Term{}, err
		}
		return catalogue.IRI(v), nil
	case strings.HasPrefix(p.s[p.pos:], "_:"):
		v, err := p.blank()
		if err != nil {
			return catalogue.Term{}, err
		}
		return catalogue.Blank(v), nil
	default:
		return catalogue.Term{}, fmt.Errorf("%s must be an IRI or blank node", role)
	}
}

func (p *lineParser) object() (catalogue.Term, error) {
	if !p.eof() && p.peek() == '"' {
		return p.literal()
	}
	return p.node("object")
}

func (p *lineParser) iri() (string, error) {
	p.pos++ // '<'
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '>':
			p.pos++
			if b.Len() == 0 {
				return "", errors.New("empty IRI")
			}
			return b.String(), nil
		case c == '\\':
			r, err := p.uchar()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		case c <= ' ' || strings.IndexByte(`<"{}|^`+"`", c) >= 0:
			return "", fmt.Errorf("invalid character %q in IRI", c)
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", errors.New("unterminated IRI")
}

func (p *lineParser) blank() (string, error) {
	p.pos += 2 // "_:"
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '<' || c == '"' {
			break
		}
		p.pos++
	}
	// a label may not end with '.', which then belongs to the terminator
	for p.pos > start && p.s[p.pos-1] == '.' {
		p.pos--
	}
	if p.pos == start {
		return "", errors.New("empty blank node label")
	}
	return p.s[start:p.pos], nil
}

func (p *lineParser) literal() (catalogue.Term, error) {
	p.pos++ // opening quote
	var b strings.Builder
	closed := false
	for !p.eof() {
		c := p.peek()
		if c == '"' {
			p.pos++
			closed = true
			break
		}
		if c == '\\' {
			r, err := p.escape()
			if err != nil {
				return catalogue.Term{}, err
			}
			b.WriteRune(r)
			continue
		}
		r, size := utf8.DecodeRuneInString(p.s[p.pos:])
		if r == utf8.RuneError && size <= 1 {
			return catalogue.Term{}, errors.New("invalid UTF-8 in literal")
		}
		b.WriteString(p.s[p.pos : p.pos+size])
		p.pos += size
	}
	if !closed {
		return catalogue.Term{}, errors.New("unterminated literal")
	}

	value := b.String()
	if p.eof() {
		return catalogue.Literal(value, "", ""), nil
	}
	switch {
	case p.peek() == '@':
		p.pos++
		lang, err := p.langTag()
		if err != nil {
			return catalogue.Term{}, err
		}
		return catalogue.Literal(value, "", lang), nil
	case strings.HasPrefix(p.s[p.pos:], "^^"):
		p.pos += 2
		if p.eof() || p.peek() != '<' {
			return catalogue.Term{}, errors.New("datatype must be an IRI")
		}
		dt, err := p.iri()
		if err != nil {
			return catalogue.Term{}, err
		}
		return catalogue.Literal(value, dt, ""), nil
	}
	return catalogue.Literal(value, "", ""), nil
}

func (p *lineParser) langTag() (string, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if isAlpha(c) || c == '-' || (p.pos > start && isDigit(c)) {
			p.pos++
			continue
		}
		break
	}
	tag := p.s[start:p.pos]
	if tag == "" || !isAlpha(tag[0]) || strings.HasSuffix(tag, "-") || strings.Contains(tag, "--") {
		return "", fmt.Errorf("invalid language tag %q", tag)
	}
	return tag, nil
}

// escape decodes a string escape inside a literal.
func (p *lineParser) escape() (rune, error) {
	if p.pos+1 >= len(p.s) {
		return 0, errors.New("dangling escape")
	}
	switch p.s[p.pos+1] {
	case 't':
		p.pos += 2
		return '\t', nil
	case 'b':
		p.pos += 2
		return '\b', nil
	case 'n':
		p.pos += 2
		return '\n', nil
	case 'r':
		p.pos += 2
		return '\r', nil
	case 'f':
		p.pos += 2
		return '\f', nil
	case '"':
		p.pos += 2
		return '"', nil
	case '\'':
		p.pos += 2
		return '\'', nil
	case '\\':
		p.pos += 2
		return '\\', nil
	case 'u', 'U':
		return p.uchar()
	default:
		return 0, fmt.Errorf("invalid escape \\%c", p.s[p.pos+1])
	}
}

// uchar decodes \uXXXX or \UXXXXXXXX at the current position.
func (p *lineParser) uchar() (rune, error) {
	if p.pos+1 >= len(p.s) {
		return 0, errors.New("dangling escape")
	}
	n := 0
	switch p.s[p.pos+1] {
	case 'u':
		n = 4
	case 'U':
		n = 8
	default:
		return 0, fmt.Errorf("invalid escape \\%c", p.s[p.pos+1])
	}
	start := p.pos + 2
	if start+n > len(p.s) {
		return 0, errors.New("truncated unicode escape")
	}
	v, err := strconv.ParseUint(p.s[start:start+n], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid unicode escape %q", p.s[p.pos:start+n])
	}
	r := rune(v)
	if !utf8.ValidRune(r) {
		return 0, fmt.Errorf("unicode escape out of range %q", p.s[p.pos:start+n])
	}
	p.pos = start + n
	return r, nil
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
