package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// ErrSyntax is returned for lines that are not a single method call.
var ErrSyntax = errors.New("syntax error")

// Env supplies the values of identifiers used as arguments, such as the
// pressed state of a key event.
type Env map[string]Value

// Arg is a call argument: a literal, or an identifier resolved at run time.
type Arg struct {
	Literal Value
	Ident   string
}

// Call is a parsed "object.method(args)" expression.
type Call struct {
	Object string
	Method string
	Args   []Arg
}

// Run resolves the arguments against env and calls the method.
func (c Call) Run(r *Registry, env Env) (Value, error) {
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		if a.Ident == "" {
			args[i] = a.Literal
			continue
		}
		v, ok := env[a.Ident]
		if !ok {
			return Nil, fmt.Errorf("%w: %s.%s: %s is not defined here", ErrBadArguments, c.Object, c.Method, a.Ident)
		}
		args[i] = v
	}
	return r.Call(c.Object, c.Method, args...)
}

func (c Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		if a.Ident != "" {
			parts[i] = a.Ident
		} else {
			parts[i] = a.Literal.String()
		}
	}
	return fmt.Sprintf("%s.%s(%s)", c.Object, c.Method, strings.Join(parts, ", "))
}

// Parse reads one call expression. Arguments may be integers, floats,
// double-quoted strings, true, false, nil or identifiers.
func Parse(line string) (Call, error) {
	p := &parser{line: line}
	p.s.Init(strings.NewReader(line))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.s.Error = func(_ *scanner.Scanner, msg string) { p.fail(msg) }
	p.next()

	var c Call
	c.Object = p.ident()
	p.expect('.')
	c.Method = p.ident()
	p.expect('(')
	if p.tok != ')' {
		for {
			c.Args = append(c.Args, p.arg())
			if p.tok != ',' {
				break
			}
			p.next()
		}
	}
	p.expect(')')
	if p.tok != scanner.EOF {
		p.fail(fmt.Sprintf("unexpected %q after call", p.s.TokenText()))
	}
	if p.err != nil {
		return Call{}, p.err
	}
	return c, nil
}

type parser struct {
	line string
	s    scanner.Scanner
	tok  rune
	err  error
}

func (p *parser) fail(msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s in %q", ErrSyntax, msg, p.line)
	}
}

func (p *parser) next() {
	if p.err != nil {
		p.tok = scanner.EOF
		return
	}
	p.tok = p.s.Scan()
}

func (p *parser) expect(tok rune) {
	if p.tok != tok {
		p.fail(fmt.Sprintf("expected %q, found %q", string(tok), p.s.TokenText()))
		return
	}
	p.next()
}

func (p *parser) ident() string {
	if p.tok != scanner.Ident {
		p.fail(fmt.Sprintf("expected a name, found %q", p.s.TokenText()))
		return ""
	}
	name := p.s.TokenText()
	p.next()
	return name
}

func (p *parser) arg() Arg {
	neg := false
	if p.tok == '-' || p.tok == '+' {
		neg = p.tok == '-'
		p.next()
		if p.tok != scanner.Int && p.tok != scanner.Float {
			p.fail("sign without a number")
			return Arg{}
		}
	}
	text := p.s.TokenText()
	var a Arg
	switch p.tok {
	case scanner.Int:
		i, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			p.fail(err.Error())
		}
		if neg {
			i = -i
		}
		a.Literal = Int(i)
	case scanner.Float:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.fail(err.Error())
		}
		if neg {
			f = -f
		}
		a.Literal = Float(f)
	case scanner.String:
		s, err := strconv.Unquote(text)
		if err != nil {
			p.fail(err.Error())
		}
		a.Literal = String(s)
	case scanner.Ident:
		switch text {
		case "true":
			a.Literal = Bool(true)
		case "false":
			a.Literal = Bool(false)
		case "nil":
			a.Literal = Nil
		default:
			a.Ident = text
		}
	default:
		p.fail(fmt.Sprintf("unexpected %q in arguments", text))
		return Arg{}
	}
	p.next()
	return a
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
