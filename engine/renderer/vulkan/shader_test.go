package vulkan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func spirvHeader() []byte {
	// Magic, version, generator, bound, schema.
	words := []uint32{spirvMagic, 0x00010000, 0, 1, 0}
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func TestValidateSpirvAccepts(t *testing.T) {
	assert.NoError(t, ValidateSpirv(spirvHeader()))
}

func TestValidateSpirvRejectsBadMagic(t *testing.T) {
	data := spirvHeader()
	data[0] = 0xFF
	assert.ErrorIs(t, ValidateSpirv(data), ErrInvalidSpirv)
}

func TestValidateSpirvRejectsTruncated(t *testing.T) {
	data := spirvHeader()
	assert.ErrorIs(t, ValidateSpirv(data[:7]), ErrInvalidSpirv)
	assert.ErrorIs(t, ValidateSpirv(nil), ErrInvalidSpirv)
	assert.ErrorIs(t, ValidateSpirv(data[:2]), ErrInvalidSpirv)
}

func TestValidateSpirvRejectsGlslSource(t *testing.T) {
	// Text the right length is still not a binary.
	assert.ErrorIs(t, ValidateSpirv([]byte("#version 450\n    ")[:16]), ErrInvalidSpirv)
}

func TestBytesToWords(t *testing.T) {
	data := spirvHeader()
	words := bytesToWords(data)
	assert.Equal(t, spirvMagic, words[0])
	assert.Len(t, words, 5)
}
