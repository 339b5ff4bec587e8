package dsl

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/aretw0/verbgate/pkg/domain"
)

// ErrSyntax is wrapped by every error returned from Parse.
var ErrSyntax = errors.New("dsl syntax error")

// SyntaxError locates a parse failure.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parse parses a DSL block into a Program.
func Parse(src string) (*Program, error) {
	p := &parser{src: []rune(src), line: 1, col: 1}
	prog := &Program{}
	for {
		p.skipSpace(prog)
		if p.eof() {
			return prog, nil
		}
		if p.peek() != '(' {
			return nil, p.errorf("expected '(' but found %q", p.peek())
		}
		call, err := p.call(prog)
		if err != nil {
			return nil, err
		}
		prog.Calls = append(prog.Calls, call)
	}
}

type parser struct {
	src  []rune
	pos  int
	line int
	col  int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() rune {
	r := p.src[p.pos]
	p.pos++
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func (p *parser) here() Pos { return Pos{Line: p.line, Col: p.col} }

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.here(), Msg: fmt.Sprintf(format, args...)}
}

// skipSpace consumes whitespace and ';' comments. Comment text is recorded when prog is non-nil.
func (p *parser) skipSpace(prog *Program) {
	for !p.eof() {
		r := p.peek()
		switch {
		case unicode.IsSpace(r) || r == ',':
			p.next()
		case r == ';':
			var sb strings.Builder
			for !p.eof() && p.peek() != '\n' {
				sb.WriteRune(p.next())
			}
			if prog != nil {
				prog.Comments = append(prog.Comments, strings.TrimSpace(strings.TrimLeft(sb.String(), ";")))
			}
		default:
			return
		}
	}
}

func (p *parser) call(prog *Program) (*Call, error) {
	start := p.here()
	p.next() // '('
	p.skipSpace(prog)
	if p.eof() {
		return nil, p.errorf("unterminated call")
	}
	if !isIdentStart(p.peek()) {
		return nil, p.errorf("expected verb name but found %q", p.peek())
	}
	c := &Call{Verb: domain.FQN(p.ident()), Pos: start}
	for {
		p.skipSpace(prog)
		if p.eof() {
			return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unterminated call to %s", c.Verb)}
		}
		if p.peek() == ')' {
			p.next()
			return c, nil
		}
		pair, err := p.pair(prog)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, pair)
	}
}

func (p *parser) pair(prog *Program) (Pair, error) {
	if p.peek() != ':' {
		return Pair{}, p.errorf("expected keyword argument but found %q", p.peek())
	}
	p.next()
	if p.eof() || !isIdentStart(p.peek()) {
		return Pair{}, p.errorf("empty keyword")
	}
	key := p.ident()
	p.skipSpace(prog)
	if p.eof() {
		return Pair{}, p.errorf("missing value for :%s", key)
	}
	v, err := p.value(prog)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Key: key, Value: v}, nil
}

func (p *parser) value(prog *Program) (Value, error) {
	pos := p.here()
	r := p.peek()
	switch {
	case r == '"':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Text: s, Pos: pos}, nil
	case r == '@':
		p.next()
		if p.eof() || !isIdentStart(p.peek()) {
			return Value{}, p.errorf("empty reference")
		}
		return Value{Kind: KindRef, Text: p.ident(), Pos: pos}, nil
	case r == '(':
		c, err := p.call(prog)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindCall, Call: c, Pos: pos}, nil
	case r == '[':
		return p.list(prog)
	case r == '{':
		return p.mapping(prog)
	case r == '-' || r == '+' || unicode.IsDigit(r):
		return p.number()
	case isIdentStart(r):
		id := p.ident()
		if id == "true" || id == "false" {
			return Value{Kind: KindBool, Text: id, Pos: pos}, nil
		}
		return Value{Kind: KindIdent, Text: id, Pos: pos}, nil
	}
	return Value{}, p.errorf("unexpected %q", r)
}

func (p *parser) list(prog *Program) (Value, error) {
	v := Value{Kind: KindList, Pos: p.here()}
	p.next() // '['
	for {
		p.skipSpace(prog)
		if p.eof() {
			return Value{}, &SyntaxError{Pos: v.Pos, Msg: "unterminated list"}
		}
		if p.peek() == ']' {
			p.next()
			return v, nil
		}
		item, err := p.value(prog)
		if err != nil {
			return Value{}, err
		}
		v.Items = append(v.Items, item)
	}
}

func (p *parser) mapping(prog *Program) (Value, error) {
	v := Value{Kind: KindMap, Pos: p.here()}
	p.next() // '{'
	for {
		p.skipSpace(prog)
		if p.eof() {
			return Value{}, &SyntaxError{Pos: v.Pos, Msg: "unterminated map"}
		}
		if p.peek() == '}' {
			p.next()
			return v, nil
		}
		pair, err := p.pair(prog)
		if err != nil {
			return Value{}, err
		}
		v.Pairs = append(v.Pairs, pair)
	}
}

func (p *parser) str() (string, error) {
	start := p.here()
	p.next() // opening quote
	var sb strings.Builder
	for !p.eof() {
		r := p.next()
		switch r {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", &SyntaxError{Pos: start, Msg: "unterminated string"}
			}
			switch esc := p.next(); esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				return "", p.errorf("unknown escape \\%c", esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return "", &SyntaxError{Pos: start, Msg: "unterminated string"}
}

func (p *parser) number() (Value, error) {
	pos := p.here()
	var sb strings.Builder
	if r := p.peek(); r == '-' || r == '+' {
		sb.WriteRune(p.next())
	}
	digits, dot := 0, false
	for !p.eof() {
		r := p.peek()
		if unicode.IsDigit(r) {
			digits++
		} else if r == '.' && !dot {
			dot = true
		} else {
			break
		}
		sb.WriteRune(p.next())
	}
	if digits == 0 || strings.HasSuffix(sb.String(), ".") {
		return Value{}, &SyntaxError{Pos: pos, Msg: fmt.Sprintf("malformed number %q", sb.String())}
	}
	if !p.eof() && !isDelimiter(p.peek()) {
		return Value{}, p.errorf("unexpected %q after number", p.peek())
	}
	return Value{Kind: KindNumber, Text: sb.String(), Pos: pos}, nil
}

func (p *parser) ident() string {
	var sb strings.Builder
	for !p.eof() && isIdentPart(p.peek()) {
		sb.WriteRune(p.next())
	}
	return sb.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("()[]{},;", r)
}
