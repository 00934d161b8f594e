package compiler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWords(t *testing.T) {
	le := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	be := []byte{0x07, 0x23, 0x02, 0x03, 0x00, 0x01, 0x00, 0x00}

	words, err := DecodeWords(le)
	require.NoError(t, err)
	assert.Equal(t, []uint32{MagicNumber, 0x00010000}, words)

	words, err = DecodeWords(be)
	require.NoError(t, err)
	assert.Equal(t, []uint32{MagicNumber, 0x00010000}, words)
}

func TestDecodeWords_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		bin         []byte
		errContains string
	}{
		{name: "empty", bin: nil, errContains: "not a positive multiple of 4"},
		{name: "truncated", bin: []byte{0x03, 0x02, 0x23}, errContains: "not a positive multiple of 4"},
		{name: "no magic", bin: binary.LittleEndian.AppendUint32(nil, 0xdeadbeef), errContains: "missing SPIR-V magic number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWords(tt.bin)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
