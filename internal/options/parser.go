package options

import (
	"strconv"

	"github.com/Norgate-AV/spvgen/internal/codes"
)

// Parse reads `key[: value]` entries separated by commas from s. Parsing stops
// at the first token that is not an identifier, leaving it unconsumed, so
// callers can continue with whatever follows the options. terminated reports
// whether the last option was followed by a comma (true when no option was
// read at all).
func Parse(s *Stream, d Defaults) (opts *CompileOptions, terminated bool, err error) {
	opts = NewCompileOptions(d)
	terminated = true

	for s.Peek().Kind == Ident {
		key := s.Next()

		switch key.Text {
		case "kind":
			value, err := expectValue(s, key, Ident)
			if err != nil {
				return nil, false, err
			}

			stage, ok := StageFromExtension(value.Text)
			if !ok {
				return nil, false, codes.New(codes.ConfigError, value.Pos, "unknown shader kind `%s` for option `kind`", value.Text)
			}

			opts.Stage = stage

		case "version":
			value, err := expectValue(s, key, Int)
			if err != nil {
				return nil, false, err
			}

			v, perr := strconv.ParseUint(value.Text, 10, 32)
			if perr != nil {
				return nil, false, codes.Wrap(codes.ConfigError, value.Pos, perr, "invalid integer `%s` for option `version`", value.Text)
			}

			version := uint32(v)
			opts.ForcedVersion = &version

		case "strip":
			opts.GenerateDebugInfo = false

		case "debug":
			opts.GenerateDebugInfo = true

		case "define":
			name, err := expectValue(s, key, Ident)
			if err != nil {
				return nil, false, err
			}

			macro := Macro{Name: name.Text}
			if next := s.Peek(); !next.is(",") && next.Kind != EOF {
				lit := s.Next()
				if lit.Kind != String {
					return nil, false, codes.New(codes.ConfigError, lit.Pos, "expected string literal value for `define: %s`, found %s", name.Text, lit.describe())
				}

				value, err := Unquote(lit)
				if err != nil {
					return nil, false, err
				}

				macro.Value = &value
			}

			opts.Macros = append(opts.Macros, macro)

		case "optimize":
			value, err := expectValue(s, key, Ident)
			if err != nil {
				return nil, false, err
			}

			level, ok := ParseOptimization(value.Text)
			if !ok {
				return nil, false, codes.New(codes.ConfigError, value.Pos, "unknown optimization level `%s` for option `optimize`", value.Text)
			}

			opts.Optimization = level

		case "target":
			value, err := expectValue(s, key, Ident)
			if err != nil {
				return nil, false, err
			}

			version, ok := ParseTarget(value.Text)
			if !ok {
				return nil, false, codes.New(codes.ConfigError, value.Pos, "unknown target `%s` for option `target`", value.Text)
			}

			opts.TargetVersion = version

		default:
			return nil, false, codes.New(codes.ConfigError, key.Pos, "unknown shader compile option `%s`", key.Text)
		}

		if !s.Peek().is(",") {
			terminated = false
			break
		}

		s.Next()
	}

	return opts, terminated, nil
}

// expectValue consumes the `:` after key and a value token of the given kind
func expectValue(s *Stream, key Token, kind TokenKind) (Token, error) {
	if colon := s.Next(); !colon.is(":") {
		return Token{}, codes.New(codes.ConfigError, colon.Pos, "expected `:` after option `%s`, found %s", key.Text, colon.describe())
	}

	value := s.Next()
	if value.Kind != kind {
		return Token{}, codes.New(codes.ConfigError, value.Pos, "expected %s for option `%s`, found %s", kindName(kind), key.Text, value.describe())
	}

	return value, nil
}

func kindName(k TokenKind) string {
	switch k {
	case Ident:
		return "identifier"
	case Int:
		return "integer literal"
	case String:
		return "string literal"
	default:
		return "token"
	}
}

// Unquote returns the value of a string literal token
func Unquote(tok Token) (string, error) {
	v, err := strconv.Unquote(tok.Text)
	if err != nil {
		return "", codes.Wrap(codes.ConfigError, tok.Pos, err, "malformed string literal")
	}

	return v, nil
}

// ParseList parses text that consists of an option list only, as given after
// a source path. A trailing comma is allowed.
func ParseList(name, text string, d Defaults) (*CompileOptions, error) {
	toks, err := Tokenize(name, text)
	if err != nil {
		return nil, err
	}

	s := NewStream(toks)
	opts, terminated, err := Parse(s, d)
	if err != nil {
		return nil, err
	}

	if tok := s.Peek(); tok.Kind != EOF {
		if !terminated {
			return nil, codes.New(codes.ConfigError, tok.Pos, "expected `,` after option, found %s", tok.describe())
		}

		return nil, codes.New(codes.ConfigError, tok.Pos, "expected option name, found %s", tok.describe())
	}

	return opts, nil
}

// ParseInline parses an option list followed by the shader source as a string
// literal and an optional trailing comma. A non-empty option list must end
// with a comma before the source literal.
func ParseInline(name, text string, d Defaults) (*CompileOptions, string, error) {
	toks, err := Tokenize(name, text)
	if err != nil {
		return nil, "", err
	}

	s := NewStream(toks)
	opts, terminated, err := Parse(s, d)
	if err != nil {
		return nil, "", err
	}

	if !terminated {
		tok := s.Peek()
		return nil, "", codes.New(codes.ConfigError, tok.Pos, "expected `,` between options and shader source, found %s", tok.describe())
	}

	lit := s.Next()
	if lit.Kind != String {
		return nil, "", codes.New(codes.ConfigError, lit.Pos, "expected shader source string literal, found %s", lit.describe())
	}

	src, err := Unquote(lit)
	if err != nil {
		return nil, "", err
	}

	if s.Peek().is(",") {
		s.Next()
	}

	if tok := s.Peek(); tok.Kind != EOF {
		return nil, "", codes.New(codes.ConfigError, tok.Pos, "unexpected %s after shader source", tok.describe())
	}

	return opts, src, nil
}
