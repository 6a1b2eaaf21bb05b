package binary

import (
	"bytes"
	"encoding/binary"
)

// Writer provides buffered writing utilities for binary encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

// Align pads with zeros up to the next multiple of alignment.
func (w *Writer) Align(alignment int) {
	if alignment <= 1 {
		return
	}
	w.WriteZeros((alignment - w.buf.Len()%alignment) % alignment)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// WriteName writes a length-prefixed name (LEB128 length).
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteAny writes a fixed-size value or struct with the given byte order.
func (w *Writer) WriteAny(order binary.ByteOrder, v any) {
	// bytes.Buffer writes never fail; a non fixed-size v is a caller bug.
	if err := binary.Write(w.buf, order, v); err != nil {
		panic(err)
	}
}
