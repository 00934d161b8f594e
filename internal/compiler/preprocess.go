package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Norgate-AV/spvgen/internal/codes"
	"github.com/Norgate-AV/spvgen/internal/include"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// MaxIncludeDepth bounds #include nesting so that include cycles fail
const MaxIncludeDepth = 32

const lineDirectiveExtension = "#extension GL_GOOGLE_cpp_style_line_directive : enable"

var (
	includeTarget    = regexp.MustCompile(`^(?:"([^"]*)"|<([^>]*)>)$`)
	versionDirective = regexp.MustCompile(`^\s*#\s*version\b`)
)

// Preprocess expands the #include directives of source depth-first, calling
// resolve synchronously for each one in the order it is reached. Includes in
// comments or in inactive conditional groups are left alone; conditions see
// macros plus whatever the sources #define on the way. `#line` directives
// keep diagnostics pointing at the file and line the code came from.
func Preprocess(source, name string, macros []options.Macro, resolve IncludeFunc) (string, error) {
	p := &preprocessor{
		resolve: resolve,
		macros:  map[string]macro{"VULKAN": {value: "100"}},
	}

	for _, m := range macros {
		def := macro{value: "1"}
		if m.Value != nil {
			def.value = *m.Value
		}

		p.macros[m.Name] = def
	}

	var b strings.Builder

	n, err := p.expand(&b, source, name, 0)
	if err != nil {
		return "", err
	}

	if n == 0 {
		return source, nil
	}

	return enableLineDirectives(b.String()), nil
}

type preprocessor struct {
	resolve IncludeFunc
	macros  map[string]macro
}

// group is one #if ... #endif nesting level
type group struct {
	// live is set while lines of the current branch are compiled
	live bool

	// taken is set once any branch of the group has been live
	taken bool

	// outer is whether the enclosing region is live
	outer bool

	sawElse bool
}

func (p *preprocessor) expand(b *strings.Builder, source, name string, depth int) (int, error) {
	expanded := 0
	lines := strings.Split(source, "\n")

	var groups []group
	inComment := false

	live := func() bool {
		return len(groups) == 0 || groups[len(groups)-1].live
	}

	fail := func(kind codes.Kind, line int, format string, args ...any) error {
		return codes.New(kind, codes.Location{}, "%s:%d: %s", name, line, fmt.Sprintf(format, args...))
	}

	for i, line := range lines {
		var code string
		code, inComment = stripComments(strings.TrimSuffix(line, "\r"), inComment)
		directive, rest := splitDirective(code)

		switch directive {
		case "ifdef", "ifndef":
			_, defined := p.macros[firstIdent(rest)]
			cond := defined == (directive == "ifdef")
			groups = append(groups, group{live: live() && cond, taken: cond, outer: live()})

		case "if":
			cond := false
			if live() {
				v, err := evalCondition(rest, p.macros)
				if err != nil {
					return 0, fail(codes.BackendError, i+1, "%v", err)
				}

				cond = v
			}

			groups = append(groups, group{live: live() && cond, taken: cond, outer: live()})

		case "elif", "else":
			if len(groups) == 0 {
				return 0, fail(codes.BackendError, i+1, "#%s without #if", directive)
			}

			g := &groups[len(groups)-1]
			if g.sawElse {
				return 0, fail(codes.BackendError, i+1, "#%s after #else", directive)
			}

			cond := true
			if directive == "else" {
				g.sawElse = true
			} else if g.outer && !g.taken {
				v, err := evalCondition(rest, p.macros)
				if err != nil {
					return 0, fail(codes.BackendError, i+1, "%v", err)
				}

				cond = v
			}

			g.live = g.outer && !g.taken && cond
			g.taken = g.taken || g.live

		case "endif":
			if len(groups) == 0 {
				return 0, fail(codes.BackendError, i+1, "#endif without #if")
			}

			groups = groups[:len(groups)-1]

		case "define":
			if live() {
				p.define(rest)
			}

		case "undef":
			if live() {
				delete(p.macros, firstIdent(rest))
			}

		case "version":
			if live() {
				p.macros["__VERSION__"] = macro{value: firstWord(rest)}
			}

		case "include":
			if !live() {
				break
			}

			m := includeTarget.FindStringSubmatch(rest)
			if m == nil {
				return 0, fail(codes.BackendError, i+1, "malformed #include")
			}

			typ, target := include.Relative, m[1]
			if m[1] == "" && m[2] != "" {
				typ, target = include.Standard, m[2]
			}

			if target == "" {
				return 0, fail(codes.BackendError, i+1, "empty #include target")
			}

			if depth >= MaxIncludeDepth {
				return 0, fail(codes.ResolutionError, i+1, "#include nested deeper than %d levels", MaxIncludeDepth)
			}

			res, err := p.resolve(target, typ, name, depth+1)
			if err != nil {
				return 0, atLine(err, name, i+1)
			}

			fmt.Fprintf(b, "#line 1 \"%s\"\n", filepath.ToSlash(res.Name))

			n, err := p.expand(b, res.Content, res.Name, depth+1)
			if err != nil {
				return 0, err
			}

			expanded += n + 1

			if !strings.HasSuffix(res.Content, "\n") {
				b.WriteByte('\n')
			}

			fmt.Fprintf(b, "#line %d \"%s\"", i+2, filepath.ToSlash(name))
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}

			continue
		}

		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}

	if len(groups) > 0 {
		return 0, fail(codes.BackendError, len(lines), "unterminated #if")
	}

	return expanded, nil
}

// define records a #define body: `NAME value` or `NAME(params) body`
func (p *preprocessor) define(rest string) {
	name := firstIdent(rest)
	if name == "" {
		return
	}

	body := rest[len(name):]
	if strings.HasPrefix(body, "(") {
		p.macros[name] = macro{function: true}
		return
	}

	p.macros[name] = macro{value: strings.TrimSpace(body)}
}

// stripComments blanks out the comments of a line. inComment reports whether
// the line starts inside a block comment; the result reports whether it ends
// inside one.
func stripComments(line string, inComment bool) (string, bool) {
	var b strings.Builder
	inString := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case inComment:
			if strings.HasPrefix(line[i:], "*/") {
				inComment = false
				i++
				b.WriteByte(' ')
			}

		case inString:
			b.WriteByte(c)
			if c == '"' {
				inString = false
			}

		case c == '"':
			inString = true
			b.WriteByte(c)

		case strings.HasPrefix(line[i:], "//"):
			return b.String(), false

		case strings.HasPrefix(line[i:], "/*"):
			inComment = true
			i++

		default:
			b.WriteByte(c)
		}
	}

	return b.String(), inComment
}

// splitDirective returns the name and the trimmed remainder of a
// preprocessor directive line, or "" when code is not a directive
func splitDirective(code string) (string, string) {
	code = strings.TrimLeft(code, " \t")
	if !strings.HasPrefix(code, "#") {
		return "", ""
	}

	code = strings.TrimLeft(code[1:], " \t")

	name := firstIdent(code)

	return name, strings.TrimSpace(code[len(name):])
}

// firstIdent returns the identifier s starts with
func firstIdent(s string) string {
	if s == "" || !isIdentStart(s[0]) {
		return ""
	}

	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}

	return s[:i]
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}

	return ""
}

// atLine prefixes a diagnostic message with the directive's position
func atLine(err error, name string, line int) error {
	var e *codes.Error
	if errors.As(err, &e) {
		e.Msg = fmt.Sprintf("%s:%d: %s", name, line, e.Msg)
		return err
	}

	return codes.Wrap(codes.ResolutionError, codes.Location{}, err, "%s:%d", name, line)
}

// enableLineDirectives turns on file names in #line directives right after
// the #version line, or at the top when the version is forced externally
func enableLineDirectives(src string) string {
	lines := strings.Split(src, "\n")

	for i, line := range lines {
		if versionDirective.MatchString(line) {
			ext := fmt.Sprintf("%s\n#line %d", lineDirectiveExtension, i+2)
			return strings.Join(append(lines[:i+1], append([]string{ext}, lines[i+1:]...)...), "\n")
		}
	}

	return lineDirectiveExtension + "\n#line 1\n" + src
}
