package options

import (
	"strings"
	"text/scanner"

	"github.com/Norgate-AV/spvgen/internal/codes"
)

// TokenKind classifies an option-list token
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	Int
	String
	Punct
)

// Token is one element of an option-list token stream. String tokens keep
// their quotes; use Unquote to get the value.
type Token struct {
	Kind TokenKind
	Text string
	Pos  codes.Location
}

func (t Token) describe() string {
	if t.Kind == EOF {
		return "end of input"
	}

	return "`" + t.Text + "`"
}

func (t Token) is(punct string) bool {
	return t.Kind == Punct && t.Text == punct
}

// Tokenize scans option text into a token stream terminated by an EOF token.
// Identifiers, integer literals, Go-style string literals (quoted or raw) and
// single punctuation characters are recognized; comments are skipped.
func Tokenize(name, text string) ([]Token, error) {
	var (
		s       scanner.Scanner
		scanErr error
	)

	s.Init(strings.NewReader(text))
	s.Filename = name
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings |
		scanner.ScanRawStrings | scanner.ScanComments | scanner.SkipComments
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr != nil {
			return
		}

		pos := s.Position
		if !pos.IsValid() {
			pos = s.Pos()
		}

		scanErr = codes.New(codes.ConfigError, toLocation(pos), "%s", msg)
	}

	var toks []Token
	for {
		r := s.Scan()
		if scanErr != nil {
			return nil, scanErr
		}

		tok := Token{Text: s.TokenText(), Pos: toLocation(s.Position)}
		switch r {
		case scanner.EOF:
			tok.Kind = EOF
			tok.Text = ""
			tok.Pos = toLocation(s.Pos())
			return append(toks, tok), nil
		case scanner.Ident:
			tok.Kind = Ident
		case scanner.Int:
			tok.Kind = Int
		case scanner.String, scanner.RawString:
			tok.Kind = String
		default:
			tok.Kind = Punct
		}

		toks = append(toks, tok)
	}
}

func toLocation(p scanner.Position) codes.Location {
	return codes.Location{File: p.Filename, Line: p.Line, Column: p.Column}
}

// Stream is a cursor over a token slice. Reading past the end keeps
// returning the final EOF token.
type Stream struct {
	toks []Token
	pos  int
}

// NewStream creates a stream over toks, appending an EOF token if missing
func NewStream(toks []Token) *Stream {
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		toks = append(toks, Token{Kind: EOF})
	}

	return &Stream{toks: toks}
}

// Peek returns the next token without consuming it
func (s *Stream) Peek() Token {
	return s.toks[s.pos]
}

// Next consumes and returns the next token
func (s *Stream) Next() Token {
	tok := s.toks[s.pos]
	if s.pos < len(s.toks)-1 {
		s.pos++
	}

	return tok
}
