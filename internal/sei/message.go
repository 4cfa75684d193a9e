package sei

import (
	"errors"
	"fmt"

	"github.com/zsiec/hdredit/internal/hevc"
)

// ErrMalformedSEI is returned when an SEI RBSP cannot be walked.
var ErrMalformedSEI = errors.New("sei: malformed SEI message")

// rbspStopByte is rbsp_stop_one_bit followed by alignment zero bits.
const rbspStopByte = 0x80

// Message locates one sei_message inside an SEI RBSP buffer.
type Message struct {
	PayloadType int
	Offset      int
	Size        int
}

// Data returns the payload bytes of m within rbsp.
func (m Message) Data(rbsp []byte) []byte {
	return rbsp[m.Offset : m.Offset+m.Size]
}

// ParseMessages walks the sei_message entries of an SEI NAL. rbsp is the NAL
// with emulation prevention removed, 2-byte header included; offsets are
// relative to it. Walking stops at the RBSP trailing bits.
func ParseMessages(rbsp []byte) ([]Message, error) {
	if len(rbsp) < hevc.NALHeaderSize {
		return nil, fmt.Errorf("%w: NAL of %d bytes", ErrMalformedSEI, len(rbsp))
	}

	var msgs []Message
	i := hevc.NALHeaderSize
	for i < len(rbsp) && !isTrailing(rbsp[i:]) {
		payloadType, n, err := readVarByte(rbsp[i:])
		if err != nil {
			return nil, fmt.Errorf("payload type at %d: %w", i, err)
		}
		i += n

		payloadSize, n, err := readVarByte(rbsp[i:])
		if err != nil {
			return nil, fmt.Errorf("payload size at %d: %w", i, err)
		}
		i += n

		if i+payloadSize > len(rbsp) {
			return nil, fmt.Errorf("%w: payload type %d size %d overruns NAL (%d bytes left)",
				ErrMalformedSEI, payloadType, payloadSize, len(rbsp)-i)
		}

		msgs = append(msgs, Message{PayloadType: payloadType, Offset: i, Size: payloadSize})
		i += payloadSize
	}

	return msgs, nil
}

// readVarByte decodes a value coded as a run of 0xFF bytes, each adding 255,
// terminated by a final byte.
func readVarByte(data []byte) (value, n int, err error) {
	for n < len(data) {
		b := data[n]
		n++
		value += int(b)
		if b != 0xFF {
			return value, n, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: truncated 0xFF-coded field", ErrMalformedSEI)
}

// isTrailing reports whether data holds only rbsp_trailing_bits, optionally
// followed by zero bytes.
func isTrailing(data []byte) bool {
	if data[0] != rbspStopByte {
		return false
	}
	for _, b := range data[1:] {
		if b != 0 {
			return false
		}
	}
	return true
}
