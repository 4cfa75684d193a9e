package mkv

import (
	"errors"
	"math/bits"
)

// ErrMalformedBlock is returned for a Block or SimpleBlock whose header or
// lacing does not fit its payload.
var ErrMalformedBlock = errors.New("mkv: malformed block")

// Block lacing modes, from bits 1-2 of the flags byte.
const (
	lacingNone  = 0
	lacingXiph  = 1
	lacingFixed = 2
	lacingEBML  = 3
)

// readVint decodes an EBML variable-length integer with its marker bit
// removed and reports how many bytes it occupied.
func readVint(b []byte) (uint64, int, error) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0, ErrMalformedBlock
	}
	n := bits.LeadingZeros8(b[0]) + 1
	if len(b) < n {
		return 0, 0, ErrMalformedBlock
	}
	v := uint64(b[0] & (0xFF >> n))
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, n, nil
}

// parseBlock splits the payload of a Block or SimpleBlock into its track
// number and frames. The frames alias data.
func parseBlock(data []byte) (uint64, [][]byte, error) {
	track, n, err := readVint(data)
	if err != nil {
		return 0, nil, err
	}
	// Relative timecode (2 bytes) and flags.
	if len(data) < n+3 {
		return 0, nil, ErrMalformedBlock
	}
	lacing := (data[n+2] >> 1) & 0x03
	pos := n + 3

	if lacing == lacingNone {
		return track, [][]byte{data[pos:]}, nil
	}

	if pos >= len(data) {
		return 0, nil, ErrMalformedBlock
	}
	count := int(data[pos]) + 1
	pos++
	sizes := make([]int, count)

	switch lacing {
	case lacingXiph:
		for i := 0; i < count-1; i++ {
			for {
				if pos >= len(data) {
					return 0, nil, ErrMalformedBlock
				}
				b := data[pos]
				pos++
				sizes[i] += int(b)
				if b != 0xFF {
					break
				}
			}
		}
	case lacingEBML:
		if count > 1 {
			v, m, err := readVint(data[pos:])
			if err != nil {
				return 0, nil, err
			}
			pos += m
			sizes[0] = int(v)
		}
		for i := 1; i < count-1; i++ {
			v, m, err := readVint(data[pos:])
			if err != nil {
				return 0, nil, err
			}
			pos += m
			// Signed difference to the previous size, biased by 2^(7m-1)-1.
			delta := int64(v) - (int64(1)<<(7*m-1) - 1)
			sizes[i] = sizes[i-1] + int(delta)
			if sizes[i] < 0 {
				return 0, nil, ErrMalformedBlock
			}
		}
	case lacingFixed:
		rest := len(data) - pos
		if rest%count != 0 {
			return 0, nil, ErrMalformedBlock
		}
		for i := range sizes {
			sizes[i] = rest / count
		}
	}

	if lacing != lacingFixed {
		used := 0
		for _, s := range sizes[:count-1] {
			used += s
		}
		last := len(data) - pos - used
		if last < 0 {
			return 0, nil, ErrMalformedBlock
		}
		sizes[count-1] = last
	}

	frames := make([][]byte, count)
	for i, s := range sizes {
		frames[i] = data[pos : pos+s]
		pos += s
	}
	return track, frames, nil
}
