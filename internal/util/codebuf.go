package util

import "encoding/binary"

// CodeBuffer is an append-only little-endian byte buffer. The emitter uses
// one CodeBuffer for the code section; its final contents are handed to
// the ELF writer unchanged. No data-section buffer is built.
//
// This replaces the teacher's channel-buffered strings.Builder Writer
// (src/util/io.go): the core emits raw 32-bit instruction words instead of
// assembly text, and runs single-threaded (spec.md §5), so there is no
// worker-thread fan-in to arbitrate.
type CodeBuffer struct {
	buf []byte
}

// NewCodeBuffer returns an empty CodeBuffer with room for n preallocated
// bytes.
func NewCodeBuffer(n int) *CodeBuffer {
	return &CodeBuffer{buf: make([]byte, 0, n)}
}

// WriteWord appends a 32-bit little-endian word.
func (c *CodeBuffer) WriteWord(w uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	c.buf = append(c.buf, b[:]...)
}

// WriteByte appends a single byte.
func (c *CodeBuffer) WriteByte(b byte) {
	c.buf = append(c.buf, b)
}

// WriteBytes appends a raw byte slice (used for string/data constants).
func (c *CodeBuffer) WriteBytes(b []byte) {
	c.buf = append(c.buf, b...)
}

// Len returns the current number of bytes written.
func (c *CodeBuffer) Len() int {
	return len(c.buf)
}

// Bytes returns the accumulated buffer. The caller must not mutate it.
func (c *CodeBuffer) Bytes() []byte {
	return c.buf
}

// Reset empties the buffer so it can be reused across a Pass A / Pass B
// pair, or across repeated runs of the pipeline (idempotence, spec.md §8).
func (c *CodeBuffer) Reset() {
	c.buf = c.buf[:0]
}
