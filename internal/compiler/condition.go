package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// macro is a preprocessor definition. Function-like macros only matter to
// `defined` checks, so their parameters and bodies are not kept.
type macro struct {
	value    string
	function bool
}

// operators is ordered so that longer spellings match first
var operators = []string{
	"&&", "||", "==", "!=", "<=", ">=", "<<", ">>",
	"(", ")", "!", "~", "*", "/", "%", "+", "-", "<", ">", "&", "^", "|", "?", ":", ",",
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// tokenizeExpr splits an #if expression into identifiers, numbers and
// operators
func tokenizeExpr(s string) ([]string, error) {
	var toks []string

	for i := 0; i < len(s); {
		c := s[i]

		switch {
		case c == ' ' || c == '\t':
			i++

		case isIdentChar(c):
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}

			toks = append(toks, s[i:j])
			i = j

		default:
			op := ""
			for _, o := range operators {
				if strings.HasPrefix(s[i:], o) {
					op = o
					break
				}
			}

			if op == "" {
				return nil, fmt.Errorf("unexpected %q in #if expression", c)
			}

			toks = append(toks, op)
			i += len(op)
		}
	}

	return toks, nil
}

// expandExpr replaces `defined` checks and macro names with numbers.
// Identifiers that name no object-like macro evaluate to 0.
func expandExpr(toks []string, macros map[string]macro, expanding map[string]bool) ([]string, error) {
	var out []string

	for i := 0; i < len(toks); i++ {
		tok := toks[i]

		switch {
		case tok == "defined":
			name := ""
			switch {
			case i+1 < len(toks) && isIdentStart(toks[i+1][0]):
				name = toks[i+1]
				i++
			case i+3 < len(toks) && toks[i+1] == "(" && isIdentStart(toks[i+2][0]) && toks[i+3] == ")":
				name = toks[i+2]
				i += 3
			default:
				return nil, fmt.Errorf("`defined` needs a macro name")
			}

			if _, ok := macros[name]; ok {
				out = append(out, "1")
			} else {
				out = append(out, "0")
			}

		case isIdentStart(tok[0]):
			m, ok := macros[tok]
			switch {
			case ok && m.function:
				if i+1 < len(toks) && toks[i+1] == "(" {
					i = skipArgs(toks, i+1)
				}

				out = append(out, "0")

			case ok && !expanding[tok]:
				sub, err := tokenizeExpr(m.value)
				if err != nil {
					return nil, err
				}

				expanding[tok] = true
				sub, err = expandExpr(sub, macros, expanding)
				delete(expanding, tok)

				if err != nil {
					return nil, err
				}

				out = append(out, sub...)

			default:
				out = append(out, "0")
			}

		default:
			out = append(out, tok)
		}
	}

	return out, nil
}

// skipArgs returns the index of the parenthesis closing the one at open
func skipArgs(toks []string, open int) int {
	depth := 0

	for i := open; i < len(toks); i++ {
		switch toks[i] {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return len(toks) - 1
}

// evalCondition evaluates the expression of an #if or #elif
func evalCondition(expr string, macros map[string]macro) (bool, error) {
	toks, err := tokenizeExpr(expr)
	if err != nil {
		return false, err
	}

	toks, err = expandExpr(toks, macros, map[string]bool{})
	if err != nil {
		return false, err
	}

	if len(toks) == 0 {
		return false, fmt.Errorf("empty #if expression")
	}

	p := &exprParser{toks: toks}

	v, err := p.ternary()
	if err != nil {
		return false, err
	}

	if p.pos < len(p.toks) {
		return false, fmt.Errorf("unexpected %q in #if expression", p.toks[p.pos])
	}

	return v != 0, nil
}

// binaryPrecedence orders binary operators from loosest to tightest
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

type exprParser struct {
	toks []string
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}

	return ""
}

func (p *exprParser) expect(tok string) error {
	if p.peek() != tok {
		return fmt.Errorf("expected %q in #if expression", tok)
	}

	p.pos++

	return nil
}

func (p *exprParser) ternary() (int64, error) {
	cond, err := p.binary(1)
	if err != nil {
		return 0, err
	}

	if p.peek() != "?" {
		return cond, nil
	}

	p.pos++

	a, err := p.ternary()
	if err != nil {
		return 0, err
	}

	if err := p.expect(":"); err != nil {
		return 0, err
	}

	b, err := p.ternary()
	if err != nil {
		return 0, err
	}

	if cond != 0 {
		return a, nil
	}

	return b, nil
}

func (p *exprParser) binary(minPrec int) (int64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}

	for {
		op := p.peek()

		prec, ok := binaryPrecedence[op]
		if !ok || prec < minPrec {
			return lhs, nil
		}

		p.pos++

		rhs, err := p.binary(prec + 1)
		if err != nil {
			return 0, err
		}

		lhs, err = apply(op, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func (p *exprParser) unary() (int64, error) {
	tok := p.peek()
	if tok == "" {
		return 0, fmt.Errorf("unexpected end of #if expression")
	}

	p.pos++

	switch tok {
	case "!", "-", "+", "~":
		v, err := p.unary()
		if err != nil {
			return 0, err
		}

		switch tok {
		case "!":
			return boolInt(v == 0), nil
		case "-":
			return -v, nil
		case "~":
			return ^v, nil
		}

		return v, nil

	case "(":
		v, err := p.ternary()
		if err != nil {
			return 0, err
		}

		return v, p.expect(")")
	}

	v, err := strconv.ParseInt(strings.TrimRight(tok, "uU"), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected %q in #if expression", tok)
	}

	return v, nil
}

func apply(op string, a, b int64) (int64, error) {
	switch op {
	case "||":
		return boolInt(a != 0 || b != 0), nil
	case "&&":
		return boolInt(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return boolInt(a == b), nil
	case "!=":
		return boolInt(a != b), nil
	case "<":
		return boolInt(a < b), nil
	case ">":
		return boolInt(a > b), nil
	case "<=":
		return boolInt(a <= b), nil
	case ">=":
		return boolInt(a >= b), nil
	case "<<":
		return a << uint64(b&63), nil
	case ">>":
		return a >> uint64(b&63), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, fmt.Errorf("division by zero in #if expression")
		}

		if op == "/" {
			return a / b, nil
		}

		return a % b, nil
	}

	return 0, fmt.Errorf("unknown operator %q", op)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
