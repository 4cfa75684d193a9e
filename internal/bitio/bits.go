// Package bitio reads and writes fixed-width unsigned fields MSB-first over
// byte buffers. It is the substrate for the SEI metadata codecs.
package bitio

import (
	"errors"
	"fmt"
)

// ErrOutOfData is returned when a read needs more bits than remain.
var ErrOutOfData = errors.New("bitio: out of data")

// ErrWidth is returned for a field width outside 1..64.
var ErrWidth = errors.New("bitio: invalid field width")

// Reader reads bits MSB-first from an immutable byte slice.
type Reader struct {
	data   []byte
	bitPos int
}

// NewReader returns a Reader positioned at the first bit of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// BitsLeft returns the number of unread bits.
func (r *Reader) BitsLeft() int {
	total := len(r.data) * 8
	if r.bitPos > total {
		return 0
	}
	return total - r.bitPos
}

// Position returns the cursor in bits from the start of the buffer.
func (r *Reader) Position() int {
	return r.bitPos
}

// Read consumes exactly width bits and returns them as an unsigned value.
// The cursor does not move when the read fails.
func (r *Reader) Read(width int) (uint64, error) {
	if width < 1 || width > 64 {
		return 0, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	if r.BitsLeft() < width {
		return 0, fmt.Errorf("%w: need %d bits, have %d", ErrOutOfData, width, r.BitsLeft())
	}

	var val uint64
	for i := 0; i < width; i++ {
		byteIdx := r.bitPos / 8
		bitIdx := 7 - (r.bitPos % 8)
		val = val<<1 | uint64(r.data[byteIdx]>>uint(bitIdx)&1)
		r.bitPos++
	}
	return val, nil
}

// ReadUint16 reads a 16-bit field.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.Read(16)
	return uint16(v), err
}

// ReadUint32 reads a 32-bit field.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.Read(32)
	return uint32(v), err
}

// ReadUE reads an unsigned Exp-Golomb code.
func (r *Reader) ReadUE() (uint64, error) {
	zeros := 0
	for {
		b, err := r.Read(1)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, fmt.Errorf("%w: exp-golomb prefix too long", ErrOutOfData)
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	suffix, err := r.Read(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) - 1 + suffix, nil
}

// Skip advances the cursor by n bits.
func (r *Reader) Skip(n int) error {
	if r.BitsLeft() < n {
		return fmt.Errorf("%w: skip %d bits, have %d", ErrOutOfData, n, r.BitsLeft())
	}
	r.bitPos += n
	return nil
}

// Writer appends bits MSB-first to a growable buffer.
type Writer struct {
	data   []byte
	bitPos int
}

// NewWriter returns a Writer whose buffer is preallocated for capacity bytes.
func NewWriter(capacity int) *Writer {
	return &Writer{data: make([]byte, 0, capacity)}
}

// Write appends the low width bits of value. Higher bits of value are ignored.
func (w *Writer) Write(value uint64, width int) error {
	if width < 1 || width > 64 {
		return fmt.Errorf("%w: %d", ErrWidth, width)
	}
	for i := width - 1; i >= 0; i-- {
		w.putBit(value>>uint(i)&1 == 1)
	}
	return nil
}

// WriteFlag appends a single bit.
func (w *Writer) WriteFlag(v bool) {
	w.putBit(v)
}

func (w *Writer) putBit(v bool) {
	if w.bitPos%8 == 0 {
		w.data = append(w.data, 0)
	}
	if v {
		w.data[w.bitPos/8] |= 1 << uint(7-w.bitPos%8)
	}
	w.bitPos++
}

// Len returns the number of bits written.
func (w *Writer) Len() int {
	return w.bitPos
}

// Bytes returns the written bits, zero-padded to the next byte boundary.
// The returned slice is owned by the caller.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.data))
	copy(out, w.data)
	return out
}
