// Package codes defines the error taxonomy shared by every stage of shader
// generation, and how each kind of failure is reported to the caller.
package codes

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies a generation failure. Every failure is terminal for the
// compile call that produced it.
type Kind int

const (
	// ConfigError is an unknown option key, a malformed option value or a
	// malformed integer literal.
	ConfigError Kind = iota + 1

	// ResolutionError is an #include target that cannot be located or read,
	// or whose path is not representable as text.
	ResolutionError

	// SourceReadError is a top-level source file that cannot be read.
	SourceReadError

	// BackendError is a compiler rejection, or any warning reported by it.
	BackendError
)

// Descriptions maps error kinds to their descriptions
var Descriptions = map[Kind]string{
	ConfigError:     "config error",
	ResolutionError: "include error",
	SourceReadError: "source read error",
	BackendError:    "compile error",
}

// ExitCodes maps error kinds to the process exit code used by the CLI
var ExitCodes = map[Kind]int{
	ConfigError:     2,
	ResolutionError: 3,
	SourceReadError: 4,
	BackendError:    5,
}

func (k Kind) String() string {
	if d, ok := Descriptions[k]; ok {
		return d
	}

	return "unknown error"
}

// GetExitCode returns the exit code for err, or 1 if err carries no kind
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	if kind, ok := KindOf(err); ok {
		if code, ok := ExitCodes[kind]; ok {
			return code
		}
	}

	return 1
}

// Location identifies the call site a diagnostic is attached to. The zero
// value means "unknown".
type Location struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the location names a file
func (l Location) IsValid() bool {
	return l.File != ""
}

func (l Location) String() string {
	if !l.IsValid() {
		return ""
	}

	s := l.File
	if l.Line > 0 {
		s += ":" + strconv.Itoa(l.Line)
		if l.Column > 0 {
			s += ":" + strconv.Itoa(l.Column)
		}
	}

	return s
}

// Error is a single diagnostic: a kind, a message and the location it is
// reported at.
type Error struct {
	Kind     Kind
	Location Location
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	if e.Location.IsValid() {
		return e.Location.String() + ": " + msg
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a diagnostic of the given kind
func New(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Location: loc, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a diagnostic of the given kind around a cause
func Wrap(kind Kind, loc Location, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Location: loc, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return 0, false
}

// At re-anchors err at loc when it is a diagnostic without a location
func At(err error, loc Location) error {
	var e *Error
	if errors.As(err, &e) && !e.Location.IsValid() {
		e.Location = loc
	}

	return err
}
