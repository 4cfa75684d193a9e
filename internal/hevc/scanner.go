package hevc

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the number of bytes read from the input per chunk.
const DefaultChunkSize = 100_000

// Scanner splits an Annex B byte stream into NAL units, reading the input in
// fixed-size chunks. Only NALs whose end is known are returned; the tail of a
// chunk is carried into the next read. Both 3-byte (00 00 01) and 4-byte
// (00 00 00 01) start codes are recognized.
type Scanner struct {
	r         io.Reader
	chunkSize int
	readBuf   []byte
	pending   []byte
	eof       bool

	// scanned is the prefix of pending already searched for start codes. It
	// is only non-zero while pending holds a carried NAL, whose sole start
	// code sits at offset 3.
	scanned int
}

// NewScanner returns a Scanner reading chunkSize bytes at a time from r.
// A non-positive chunkSize selects DefaultChunkSize.
func NewScanner(r io.Reader, chunkSize int) *Scanner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scanner{
		r:         r,
		chunkSize: chunkSize,
		readBuf:   make([]byte, chunkSize),
	}
}

// Next returns the next chunk together with the NAL units found in it. The
// chunk is only valid until the following call to Next. It returns io.EOF
// once the input is exhausted and every NAL has been returned.
func (s *Scanner) Next() ([]byte, []Unit, error) {
	for {
		if s.eof && len(s.pending) == 0 {
			return nil, nil, io.EOF
		}

		if !s.eof {
			n, err := io.ReadFull(s.r, s.readBuf)
			switch {
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
				s.eof = true
			case err != nil:
				return nil, nil, fmt.Errorf("read input: %w", err)
			}
			s.pending = append(s.pending, s.readBuf[:n]...)
		}

		chunk := s.pending
		var starts []int
		from := 0
		if s.scanned > 0 {
			starts = append(starts, 3)
			// A start code split across reads begins at most two bytes back.
			from = max(3, s.scanned-2)
		}
		starts = findStartCodes(chunk, from, starts)
		s.scanned = 0

		if len(starts) == 0 {
			if s.eof {
				s.pending = nil
				continue
			}
			// Keep only what could be the beginning of a split start code.
			if len(chunk) > 3 {
				s.pending = append([]byte(nil), chunk[len(chunk)-3:]...)
			}
			continue
		}

		units := make([]Unit, 0, len(starts))
		for i, start := range starts {
			var end int
			if i+1 < len(starts) {
				end = starts[i+1] - 3
			} else if s.eof {
				end = len(chunk)
			} else {
				break
			}
			for end > start && chunk[end-1] == 0x00 {
				end--
			}
			if end-start < NALHeaderSize {
				continue
			}
			units = append(units, Unit{Start: start, End: end, Type: NALType(chunk[start])})
		}

		if s.eof {
			s.pending = nil
		} else {
			// Carry the unfinished NAL, start code included, into the next chunk.
			// A tail at offset 0 means nothing was consumed; keep growing it in place.
			if tail := starts[len(starts)-1] - 3; tail > 0 {
				s.pending = append(make([]byte, 0, len(chunk)-tail+s.chunkSize), chunk[tail:]...)
			}
			s.scanned = len(s.pending)
		}

		if len(units) == 0 {
			continue
		}
		return chunk, units, nil
	}
}

// findStartCodes appends to starts the offset of the first byte after every
// 00 00 01 sequence in data beginning at or after from.
func findStartCodes(data []byte, from int, starts []int) []int {
	for i := from; i+2 < len(data); {
		if data[i+2] > 1 {
			i += 3
			continue
		}
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
			i += 3
			continue
		}
		i++
	}
	return starts
}
