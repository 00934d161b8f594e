// Package compiler is the GLSL to SPIR-V compiler backend. The backend is
// treated as an opaque service: it receives source text plus options, calls
// back into an include resolver while preprocessing, and returns SPIR-V words
// together with any warnings it produced.
package compiler

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Norgate-AV/spvgen/internal/include"
	"github.com/Norgate-AV/spvgen/internal/options"
)

// DefaultEntryPoint is the only entry point ever requested
const DefaultEntryPoint = "main"

// MagicNumber is the first word of every SPIR-V module
const MagicNumber uint32 = 0x07230203

// IncludeFunc resolves an #include target. depth is 1 for includes found in
// the top-level source and grows by one per nesting level.
type IncludeFunc func(name string, typ include.Type, includer string, depth int) (*include.Resolved, error)

// Request is a single compile call
type Request struct {
	Source     string
	Stage      options.Stage
	Name       string
	EntryPoint string
	Options    *options.CompileOptions
	Include    IncludeFunc
}

// Macros returns the macros the request defines, if any
func (r *Request) Macros() []options.Macro {
	if r.Options == nil {
		return nil
	}

	return r.Options.Macros
}

// Output is what a backend produced for a request
type Output struct {
	Words       []uint32
	Warnings    int
	WarningText string
}

// Backend compiles shader source into SPIR-V
type Backend interface {
	Compile(ctx context.Context, req *Request) (*Output, error)
}

// DecodeWords converts a SPIR-V binary into words, honoring the byte order
// announced by the magic number
func DecodeWords(bin []byte) ([]uint32, error) {
	if len(bin) == 0 || len(bin)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V binary length %d is not a positive multiple of 4", len(bin))
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch MagicNumber {
	case binary.LittleEndian.Uint32(bin):
	case binary.BigEndian.Uint32(bin):
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("missing SPIR-V magic number, found %#08x", binary.LittleEndian.Uint32(bin))
	}

	words := make([]uint32, len(bin)/4)
	for i := range words {
		words[i] = order.Uint32(bin[i*4:])
	}

	return words, nil
}
